package sources

import (
	"context"

	"FinFusion/internal/domain/models"
	"FinFusion/internal/domain/service"
)

// SatelliteAdapter scores industrial activity observed around a company's
// sites. Values are drawn from a per-symbol activity band.
type SatelliteAdapter struct {
	r     Rand
	bands map[string]band
}

func NewSatelliteAdapter(r Rand) *SatelliteAdapter {
	return &SatelliteAdapter{
		r: orDefault(r),
		bands: map[string]band{
			"RELIANCE": {0.7, 0.3},
			"TCS":      {0.6, 0.2},
			"HDFC":     {0.5, 0.2},
			"INFY":     {0.6, 0.2},
			"ITC":      {0.4, 0.3},
		},
	}
}

func (a *SatelliteAdapter) Kind() models.SourceKind { return models.SourceSatellite }

func (a *SatelliteAdapter) Score(ctx context.Context, symbol string) (models.Opinion, error) {
	if err := ctx.Err(); err != nil {
		return models.Opinion{}, err
	}
	v := neutral
	if b, ok := a.bands[symbol]; ok {
		v = b.draw(a.r)
	}
	return models.Opinion{Source: a.Kind(), Symbol: symbol, Value: models.Clamp01(v)}, nil
}

var _ service.SourceAdapter = (*SatelliteAdapter)(nil)
