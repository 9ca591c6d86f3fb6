package sources

import (
	"context"

	"FinFusion/internal/domain/service"
)

// GeneratedSentiment produces sector sentiment without a news service.
// Each sector has a fixed tilt plus bounded noise.
type GeneratedSentiment struct {
	r    Rand
	tilt map[string]float64
}

func NewGeneratedSentiment(r Rand) *GeneratedSentiment {
	return &GeneratedSentiment{
		r: orDefault(r),
		tilt: map[string]float64{
			"Oil & Gas": 0.2,
			"IT":        0.3,
			"Banking":   0.1,
			"FMCG":      0,
		},
	}
}

func (g *GeneratedSentiment) SectorSentiment(ctx context.Context, sector string) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	v := g.tilt[sector] + (g.r.Float64()*2-1)*0.5
	if v > 1 {
		v = 1
	} else if v < -1 {
		v = -1
	}
	return v, nil
}

var _ service.SentimentProvider = (*GeneratedSentiment)(nil)
