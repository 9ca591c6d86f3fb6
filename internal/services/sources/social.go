package sources

import (
	"context"

	"FinFusion/internal/domain/models"
	"FinFusion/internal/domain/service"
)

// SocialAdapter reports the bullish share of social media mentions.
type SocialAdapter struct {
	r     Rand
	bands map[string]band
}

func NewSocialAdapter(r Rand) *SocialAdapter {
	return &SocialAdapter{
		r: orDefault(r),
		bands: map[string]band{
			"RELIANCE": {0.6, 0.4},
			"TCS":      {0.5, 0.3},
			"HDFC":     {0.5, 0.3},
			"INFY":     {0.6, 0.3},
			"ITC":      {0.4, 0.4},
		},
	}
}

func (a *SocialAdapter) Kind() models.SourceKind { return models.SourceSocial }

func (a *SocialAdapter) Score(ctx context.Context, symbol string) (models.Opinion, error) {
	if err := ctx.Err(); err != nil {
		return models.Opinion{}, err
	}
	v := neutral
	if b, ok := a.bands[symbol]; ok {
		// a zero draw reads as "no data"
		if bullish := b.draw(a.r); bullish > 0 {
			v = bullish
		}
	}
	return models.Opinion{Source: a.Kind(), Symbol: symbol, Value: models.Clamp01(v)}, nil
}

var _ service.SourceAdapter = (*SocialAdapter)(nil)
