package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"FinFusion/internal/domain"
	domrepo "FinFusion/internal/domain/repository"
	domsvc "FinFusion/internal/domain/service"
	applogger "FinFusion/pkg/logger"
)

// Pipeline runs one cycle of each scheduled job. Symbols are processed
// independently by a bounded pool; one symbol failing never stops the rest.
type Pipeline struct {
	symbols   []string
	workers   int
	market    domsvc.MarketData
	scorer    *FusionScorer
	generator *AlertGenerator
	alerts    *AlertService
	metrics   domrepo.Metrics
	l         *applogger.Logger
	now       func() time.Time
}

func NewPipeline(symbols []string, workers int, market domsvc.MarketData, scorer *FusionScorer, generator *AlertGenerator, alerts *AlertService, metrics domrepo.Metrics, l *applogger.Logger) *Pipeline {
	if workers <= 0 {
		workers = 4
	}
	if l == nil {
		l = applogger.Nop()
	}
	return &Pipeline{
		symbols:   symbols,
		workers:   workers,
		market:    market,
		scorer:    scorer,
		generator: generator,
		alerts:    alerts,
		metrics:   metrics,
		l:         l.Named("pipeline"),
		now:       time.Now,
	}
}

func (p *Pipeline) Symbols() []string { return p.symbols }

// RunMarket refreshes market snapshots and the options flow.
func (p *Pipeline) RunMarket(ctx context.Context) error {
	if err := p.market.Refresh(ctx, p.symbols); err != nil {
		return fmt.Errorf("refresh market: %w", err)
	}
	if _, err := p.market.RefreshOptionsFlow(ctx); err != nil {
		p.l.Warn("refresh options flow failed", applogger.Error(err))
	}
	return nil
}

// RunFusion recomputes the fusion score of every symbol.
func (p *Pipeline) RunFusion(ctx context.Context) error {
	return p.forEach(ctx, "fusion", func(ctx context.Context, symbol string) error {
		_, err := p.scorer.Score(ctx, symbol)
		return err
	})
}

// RunAlerts generates, persists and publishes an alert per symbol that has
// a live fusion score and snapshot.
func (p *Pipeline) RunAlerts(ctx context.Context) error {
	return p.forEach(ctx, "alerts", p.alertFor)
}

func (p *Pipeline) alertFor(ctx context.Context, symbol string) error {
	score, err := p.scorer.Cached(ctx, symbol)
	if errors.Is(err, domain.ErrNotFound) {
		p.l.Debug("no fusion score, skipping", applogger.String("symbol", symbol))
		return nil
	}
	if err != nil {
		return err
	}

	snap, err := p.market.Snapshot(ctx, symbol)
	if errors.Is(err, domain.ErrNotFound) {
		p.l.Debug("no market snapshot, skipping", applogger.String("symbol", symbol))
		return nil
	}
	if err != nil {
		return err
	}

	sig := Classify(symbol, score.Value)
	a, err := p.generator.Generate(sig, score, snap)
	if err != nil {
		return err
	}
	_, err = p.alerts.Submit(ctx, a)
	return err
}

// RunCleanup removes stale alerts.
func (p *Pipeline) RunCleanup(ctx context.Context) error {
	_, err := p.alerts.Cleanup(ctx, p.now().UTC())
	return err
}

func (p *Pipeline) forEach(ctx context.Context, stage string, fn func(context.Context, string) error) error {
	var g errgroup.Group
	g.SetLimit(p.workers)

	for _, symbol := range p.symbols {
		symbol := symbol
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := fn(ctx, symbol); err != nil {
				p.metrics.RecordError(stage)
				p.l.Warn("symbol failed",
					applogger.String("stage", stage),
					applogger.String("symbol", symbol),
					applogger.Error(err),
				)
			}
			return nil
		})
	}
	_ = g.Wait()
	return ctx.Err()
}
