package sources

import (
	"context"
	"errors"
	"fmt"

	"FinFusion/internal/domain"
	"FinFusion/internal/domain/models"
	"FinFusion/internal/domain/service"
	"FinFusion/pkg/cache"
)

// OptionsFlowKey is the cache key holding the aggregated FII options flow.
const OptionsFlowKey = "FII_OPTIONS"

// optionsScale is the net value, either side of zero, that saturates the score.
const optionsScale = 5000.0

// OptionsAdapter scores institutional options positioning. The flow is
// market wide, so every symbol reads the same cached aggregate.
type OptionsAdapter struct {
	cache cache.Service
}

func NewOptionsAdapter(c cache.Service) *OptionsAdapter {
	return &OptionsAdapter{cache: c}
}

func (a *OptionsAdapter) Kind() models.SourceKind { return models.SourceOptions }

func (a *OptionsAdapter) Score(ctx context.Context, symbol string) (models.Opinion, error) {
	var flow models.OptionsFlow
	if err := a.cache.Get(ctx, OptionsFlowKey, &flow); err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return models.Opinion{}, fmt.Errorf("%w: no options flow cached", domain.ErrSourceUnavailable)
		}
		return models.Opinion{}, fmt.Errorf("%w: read options flow: %v", domain.ErrSourceUnavailable, err)
	}
	return models.Opinion{Source: a.Kind(), Symbol: symbol, Value: OptionsScore(flow.NetValue)}, nil
}

// OptionsScore maps a net FII options value to [0,1].
func OptionsScore(net float64) float64 {
	return models.Clamp01((net + optionsScale) / (2 * optionsScale))
}

var _ service.SourceAdapter = (*OptionsAdapter)(nil)
