package sources

import (
	"context"
	"math"

	"FinFusion/internal/domain/models"
	"FinFusion/internal/domain/service"
)

// rankCeiling is the rank at which the web score reaches zero.
const rankCeiling = 50

// WebAdapter converts a product or app store ranking into a score. Lower
// ranks score higher.
type WebAdapter struct {
	r Rand
	// worst observed rank per symbol; ranks are drawn from 1..max
	maxRank map[string]int
}

func NewWebAdapter(r Rand) *WebAdapter {
	return &WebAdapter{
		r: orDefault(r),
		maxRank: map[string]int{
			"RELIANCE": 20,
			"TCS":      10,
			"HDFC":     15,
			"INFY":     10,
			"ITC":      25,
		},
	}
}

func (a *WebAdapter) Kind() models.SourceKind { return models.SourceWeb }

func (a *WebAdapter) Score(ctx context.Context, symbol string) (models.Opinion, error) {
	if err := ctx.Err(); err != nil {
		return models.Opinion{}, err
	}
	v := neutral
	if n, ok := a.maxRank[symbol]; ok && n > 0 {
		v = RankScore(a.r.Intn(n) + 1)
	}
	return models.Opinion{Source: a.Kind(), Symbol: symbol, Value: models.Clamp01(v)}, nil
}

// RankScore maps a 1-based rank to [0,1].
func RankScore(rank int) float64 {
	return math.Max(0, float64(rankCeiling-rank)/rankCeiling)
}

var _ service.SourceAdapter = (*WebAdapter)(nil)
