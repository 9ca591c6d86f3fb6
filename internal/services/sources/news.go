package sources

import (
	"context"
	"fmt"

	"FinFusion/internal/domain"
	"FinFusion/internal/domain/models"
	"FinFusion/internal/domain/service"
)

// NewsAdapter turns the mean news sentiment of a symbol's sector, in
// [-1,1], into a score.
type NewsAdapter struct {
	provider service.SentimentProvider
	sectors  Sectors
}

func NewNewsAdapter(provider service.SentimentProvider, sectors Sectors) *NewsAdapter {
	if sectors == nil {
		sectors = DefaultSectors()
	}
	return &NewsAdapter{provider: provider, sectors: sectors}
}

func (a *NewsAdapter) Kind() models.SourceKind { return models.SourceNews }

func (a *NewsAdapter) Score(ctx context.Context, symbol string) (models.Opinion, error) {
	sector := a.sectors.Of(symbol)
	s, err := a.provider.SectorSentiment(ctx, sector)
	if err != nil {
		return models.Opinion{}, fmt.Errorf("%w: news sentiment for %s: %v", domain.ErrSourceUnavailable, sector, err)
	}
	return models.Opinion{Source: a.Kind(), Symbol: symbol, Value: SentimentScore(s)}, nil
}

// SentimentScore maps a sentiment in [-1,1] to [0,1].
func SentimentScore(sentiment float64) float64 {
	return models.Clamp01((sentiment + 1) / 2)
}

var _ service.SourceAdapter = (*NewsAdapter)(nil)
