package market

import (
	"context"
	"errors"
	"testing"
	"time"

	"FinFusion/internal/domain"
	"FinFusion/internal/domain/models"
	"FinFusion/internal/repository"
	"FinFusion/internal/services/sources"
	"FinFusion/pkg/cache"
)

type midRand struct{}

func (midRand) Float64() float64 { return 0.75 }
func (midRand) Intn(n int) int   { return n / 2 }

var t0 = time.Date(2024, 10, 10, 5, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) (*Service, *cache.MemoryCache, *repository.MemorySnapshotStore) {
	t.Helper()
	mc := cache.NewMemoryCache(cache.WithMemoryCleanup(time.Hour))
	t.Cleanup(func() { _ = mc.Close() })
	hist := repository.NewMemorySnapshotStore(10)
	svc := NewService(mc, hist,
		WithRand(midRand{}),
		WithClock(func() time.Time { return t0 }),
		WithBasePrices(map[string]float64{"RELIANCE": 2650}),
	)
	return svc, mc, hist
}

func TestRefreshCachesAndRecords(t *testing.T) {
	svc, _, hist := newTestService(t)
	ctx := context.Background()

	if err := svc.Refresh(ctx, []string{"RELIANCE", "XYZ"}); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	snap, err := svc.Snapshot(ctx, "RELIANCE")
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	// 0.75 draw is +0.5% of base
	if snap.Price != 2663.25 || snap.Change != 13.25 || snap.ChangePercent != 0.5 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	if snap.Volume != 600000 {
		t.Fatalf("unexpected volume %d", snap.Volume)
	}

	other, _ := svc.Snapshot(ctx, "XYZ")
	if other == nil || other.Open != defaultBasePrice {
		t.Fatalf("expected default base price for unknown symbol, got %+v", other)
	}

	rows, _ := hist.Query(ctx, "RELIANCE", t0.Add(-time.Minute), t0.Add(time.Minute), 10)
	if len(rows) != 1 {
		t.Fatalf("expected one history row, got %d", len(rows))
	}
}

func TestSnapshotMiss(t *testing.T) {
	svc, _, _ := newTestService(t)
	if _, err := svc.Snapshot(context.Background(), "TCS"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestRefreshOptionsFlow(t *testing.T) {
	svc, mc, _ := newTestService(t)
	ctx := context.Background()

	flow, err := svc.RefreshOptionsFlow(ctx)
	if err != nil {
		t.Fatalf("refresh options: %v", err)
	}
	if flow.BuyValue != 4500 || flow.SellValue != 3500 || flow.NetValue != 1000 {
		t.Fatalf("unexpected flow %+v", flow)
	}

	var cached models.OptionsFlow
	if err := mc.Get(ctx, sources.OptionsFlowKey, &cached); err != nil || cached.NetValue != 1000 {
		t.Fatalf("expected cached flow, got %+v %v", cached, err)
	}
}

func TestIngestKeepsNewestInCache(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	newer := &models.MarketSnapshot{Symbol: "TCS", Price: 3900, Timestamp: t0}
	older := &models.MarketSnapshot{Symbol: "TCS", Price: 3800, Timestamp: t0.Add(-time.Minute)}
	if err := svc.Ingest(ctx, newer); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if err := svc.Ingest(ctx, older); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	snap, _ := svc.Snapshot(ctx, "TCS")
	if snap.Price != 3900 {
		t.Fatalf("older snapshot replaced cached one: %+v", snap)
	}
	rows, _ := svc.History(ctx, "TCS", t0.Add(-time.Hour), t0, 0)
	if len(rows) != 2 {
		t.Fatalf("expected both snapshots in history, got %d", len(rows))
	}

	if _, err := svc.History(ctx, "TCS", t0, t0.Add(-time.Hour), 10); err == nil {
		t.Fatalf("expected inverted range to fail")
	}
}
