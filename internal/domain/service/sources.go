package service

import (
	"context"

	"FinFusion/internal/domain/models"
)

// SourceAdapter scores a symbol from one independent data source.
// Implementations must return a value within [0,1] or an error; an error
// means the opinion is absent for this cycle.
type SourceAdapter interface {
	Kind() models.SourceKind
	Score(ctx context.Context, symbol string) (models.Opinion, error)
}

// SentimentProvider returns the mean news sentiment of a sector in [-1,1].
type SentimentProvider interface {
	SectorSentiment(ctx context.Context, sector string) (float64, error)
}

// MarketData exposes the cached market state to the alert pipeline.
type MarketData interface {
	Snapshot(ctx context.Context, symbol string) (*models.MarketSnapshot, error)
	Refresh(ctx context.Context, symbols []string) error
	RefreshOptionsFlow(ctx context.Context) (*models.OptionsFlow, error)
}
