package usecase

import (
	"context"
	"testing"
	"time"

	"FinFusion/internal/domain/models"
	domsvc "FinFusion/internal/domain/service"
	"FinFusion/internal/repository"
	"FinFusion/internal/services/market"
	"FinFusion/pkg/metrics"
)

func TestPipelineEndToEnd(t *testing.T) {
	mc := newMemCache(t)
	ctx := context.Background()

	mkt := market.NewService(mc, repository.NewMemorySnapshotStore(10),
		market.WithBasePrices(map[string]float64{"RELIANCE": 2650, "ITC": 450}))

	adapters := []domsvc.SourceAdapter{
		fixedAdapter{kind: models.SourceSatellite, value: 0.9},
		fixedAdapter{kind: models.SourceSocial, value: 0.8},
	}
	scorer := NewFusionScorer(adapters, equalWeights, mc, metrics.Nop{}, nil, time.Minute, time.Second)

	store := repository.NewMemoryAlertStore()
	bc := &recordingBroadcaster{store: store}
	alerts := NewAlertService(store, bc, repository.NopAlertPublisher{}, scorer, mc, metrics.Nop{}, nil, AlertServiceConfig{})
	gen := NewAlertGenerator(nil, 24*time.Hour, NewAlertID)

	p := NewPipeline([]string{"RELIANCE", "ITC", "NOSNAP"}, 2, mkt, scorer, gen, alerts, metrics.Nop{}, nil)

	// alerts before any fusion score are skipped
	if err := p.RunAlerts(ctx); err != nil {
		t.Fatalf("run alerts: %v", err)
	}
	if bc.count() != 0 {
		t.Fatalf("expected no alerts without fusion scores")
	}

	if err := p.RunMarket(ctx); err != nil {
		t.Fatalf("run market: %v", err)
	}
	if err := p.RunFusion(ctx); err != nil {
		t.Fatalf("run fusion: %v", err)
	}
	// drop one snapshot so that symbol is skipped
	_ = mc.Delete(ctx, market.SnapshotKey("NOSNAP"))

	if err := p.RunAlerts(ctx); err != nil {
		t.Fatalf("run alerts: %v", err)
	}
	if bc.count() != 2 || bc.unstored != 0 {
		t.Fatalf("expected 2 persisted and published alerts, got %d (unstored %d)", bc.count(), bc.unstored)
	}

	list, _ := alerts.List(ctx, models.AlertFilter{})
	for _, a := range list {
		if a.Signal != models.SignalBuy {
			t.Fatalf("expected BUY for fused 0.85, got %s", a.Signal)
		}
		if !(a.TargetPrice > a.EntryPrice && a.EntryPrice > a.StopLoss) {
			t.Fatalf("inconsistent levels %+v", a)
		}
	}

	if err := p.RunCleanup(ctx); err != nil {
		t.Fatalf("run cleanup: %v", err)
	}
}

func TestPipelineStopsOnCancelledContext(t *testing.T) {
	mc := newMemCache(t)
	scorer := NewFusionScorer(nil, equalWeights, mc, metrics.Nop{}, nil, time.Minute, time.Second)
	p := NewPipeline([]string{"TCS"}, 1, nil, scorer, nil, nil, metrics.Nop{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := p.RunFusion(ctx); err == nil {
		t.Fatalf("expected cancelled context error")
	}
}
