package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"FinFusion/internal/domain"
	"FinFusion/internal/domain/models"
	"FinFusion/internal/repository"
	"FinFusion/pkg/metrics"
)

// flakyStore fails Create a fixed number of times before delegating.
type flakyStore struct {
	*repository.MemoryAlertStore
	mu       sync.Mutex
	failures int
	calls    int
}

func (s *flakyStore) Create(ctx context.Context, a *models.Alert) error {
	s.mu.Lock()
	s.calls++
	fail := s.calls <= s.failures
	s.mu.Unlock()
	if fail {
		return errors.New("db unavailable")
	}
	return s.MemoryAlertStore.Create(ctx, a)
}

// recordingBroadcaster checks that every published alert is already stored.
type recordingBroadcaster struct {
	mu        sync.Mutex
	store     *repository.MemoryAlertStore
	published []models.Envelope
	unstored  int
}

func (b *recordingBroadcaster) Publish(ctx context.Context, channel string, payload interface{}) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	env := payload.(models.Envelope)
	if a, ok := env.Data.(*models.Alert); ok {
		if _, err := b.store.Get(ctx, a.ID); err != nil {
			b.unstored++
		}
	}
	b.published = append(b.published, env)
	return 1, nil
}

func (b *recordingBroadcaster) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.published)
}

type staticScores map[string]float64

func (s staticScores) Cached(_ context.Context, symbol string) (*models.FusionScore, error) {
	v, ok := s[symbol]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &models.FusionScore{Symbol: symbol, Value: v}, nil
}

func newTestAlertService(t *testing.T, failures int) (*AlertService, *flakyStore, *recordingBroadcaster) {
	t.Helper()
	mem := repository.NewMemoryAlertStore()
	store := &flakyStore{MemoryAlertStore: mem, failures: failures}
	bc := &recordingBroadcaster{store: mem}
	svc := NewAlertService(store, bc, repository.NopAlertPublisher{}, staticScores{"TCS": 0.85}, newMemCache(t), metrics.Nop{}, nil,
		AlertServiceConfig{Channel: "alerts", PersistAttempts: 3})
	svc.now = func() time.Time { return t0 }
	svc.sleep = func(context.Context, time.Duration) error { return nil }
	return svc, store, bc
}

func activeAlert(id string) *models.Alert {
	return &models.Alert{
		ID: id, Symbol: "TCS", Signal: models.SignalBuy,
		EntryPrice: 100, TargetPrice: 103, StopLoss: 98, Confidence: 0.6,
		Status: models.AlertActive, CreatedAt: t0, ExpiresAt: t0.Add(24 * time.Hour), UpdatedAt: t0,
	}
}

func TestSubmitRetriesThenPublishes(t *testing.T) {
	svc, store, bc := newTestAlertService(t, 2)

	if _, err := svc.Submit(context.Background(), activeAlert("a1")); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if store.calls != 3 {
		t.Fatalf("expected 3 persist attempts, got %d", store.calls)
	}
	if bc.count() != 1 || bc.unstored != 0 {
		t.Fatalf("expected one publish after commit, got %d (unstored %d)", bc.count(), bc.unstored)
	}
	env := bc.published[0]
	if env.Type != models.MessageNewAlert || env.Channel != "alerts" {
		t.Fatalf("unexpected envelope %+v", env)
	}
}

func TestSubmitDropsAfterExhaustingRetries(t *testing.T) {
	svc, store, bc := newTestAlertService(t, 10)

	_, err := svc.Submit(context.Background(), activeAlert("a1"))
	if !errors.Is(err, domain.ErrPersistenceFailure) {
		t.Fatalf("expected persistence failure, got %v", err)
	}
	if store.calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", store.calls)
	}
	if bc.count() != 0 {
		t.Fatalf("alert published without being persisted")
	}
}

// lostAckStore commits the first write but reports it as failed.
type lostAckStore struct {
	*repository.MemoryAlertStore
	mu    sync.Mutex
	calls int
}

func (s *lostAckStore) Create(ctx context.Context, a *models.Alert) error {
	s.mu.Lock()
	s.calls++
	first := s.calls == 1
	s.mu.Unlock()
	if err := s.MemoryAlertStore.Create(ctx, a); err != nil {
		return err
	}
	if first {
		return context.DeadlineExceeded
	}
	return nil
}

func TestSubmitSucceedsWhenCommitAckIsLost(t *testing.T) {
	mem := repository.NewMemoryAlertStore()
	store := &lostAckStore{MemoryAlertStore: mem}
	bc := &recordingBroadcaster{store: mem}
	svc := NewAlertService(store, bc, repository.NopAlertPublisher{}, staticScores{}, newMemCache(t), metrics.Nop{}, nil,
		AlertServiceConfig{Channel: "alerts", PersistAttempts: 3})
	svc.now = func() time.Time { return t0 }
	svc.sleep = func(context.Context, time.Duration) error { return nil }

	if _, err := svc.Submit(context.Background(), activeAlert("a1")); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if store.calls != 2 {
		t.Fatalf("expected the retry to confirm the commit, got %d calls", store.calls)
	}
	if bc.count() != 1 || bc.unstored != 0 {
		t.Fatalf("expected one publish of the stored alert, got %d", bc.count())
	}
}

func TestSubmitDoesNotRetryConflictingID(t *testing.T) {
	svc, store, bc := newTestAlertService(t, 0)
	ctx := context.Background()
	if _, err := svc.Submit(ctx, activeAlert("a1")); err != nil {
		t.Fatalf("submit: %v", err)
	}

	other := activeAlert("a1")
	other.Symbol = "ITC"
	_, err := svc.Submit(ctx, other)
	if !errors.Is(err, domain.ErrPersistenceFailure) {
		t.Fatalf("expected persistence failure, got %v", err)
	}
	if store.calls != 2 {
		t.Fatalf("expected no retry on an id conflict, got %d calls", store.calls)
	}
	if bc.count() != 1 {
		t.Fatalf("conflicting alert was published")
	}
}

func TestSubmitRejectsInconsistentLevels(t *testing.T) {
	svc, _, bc := newTestAlertService(t, 0)
	a := activeAlert("a1")
	a.TargetPrice = 90
	if _, err := svc.Submit(context.Background(), a); !errors.Is(err, domain.ErrInvalidAlert) {
		t.Fatalf("expected invalid alert, got %v", err)
	}
	if bc.count() != 0 {
		t.Fatalf("invalid alert was published")
	}
}

func TestCreateManualDefaults(t *testing.T) {
	svc, _, _ := newTestAlertService(t, 0)
	ctx := context.Background()

	a, err := svc.CreateManual(ctx, &models.CreateAlertRequest{Symbol: "tcs", Signal: "BUY", EntryPrice: 3890})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if a.Symbol != "TCS" || a.TargetPrice != 4006.7 || a.StopLoss != 3812.2 {
		t.Fatalf("unexpected levels %+v", a)
	}
	if a.Confidence != 0.7 || a.FusionScore != 0.85 {
		t.Fatalf("expected confidence from cached fusion score, got %v/%v", a.Confidence, a.FusionScore)
	}

	b, err := svc.CreateManual(ctx, &models.CreateAlertRequest{Symbol: "ITC", Signal: "HOLD", EntryPrice: 450})
	if err != nil {
		t.Fatalf("create hold: %v", err)
	}
	if b.Confidence != 0.5 || b.TargetPrice != 450 || b.StopLoss != 450 {
		t.Fatalf("unexpected hold alert %+v", b)
	}

	target := 90.0
	_, err = svc.CreateManual(ctx, &models.CreateAlertRequest{Symbol: "ITC", Signal: "BUY", EntryPrice: 100, TargetPrice: &target})
	if !errors.Is(err, domain.ErrInvalidAlert) {
		t.Fatalf("expected inconsistent manual alert to be rejected, got %v", err)
	}
}

func TestUpdateStatusForwardOnly(t *testing.T) {
	svc, _, _ := newTestAlertService(t, 0)
	ctx := context.Background()
	_, _ = svc.Submit(ctx, activeAlert("a1"))

	if _, err := svc.UpdateStatus(ctx, "a1", models.AlertActive); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("active -> active must be rejected, got %v", err)
	}
	a, err := svc.UpdateStatus(ctx, "a1", models.AlertExpired)
	if err != nil || a.Status != models.AlertExpired {
		t.Fatalf("active -> expired: %v", err)
	}
	if _, err := svc.UpdateStatus(ctx, "a1", models.AlertActive); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expired -> active must be rejected, got %v", err)
	}
	if _, err := svc.UpdateStatus(ctx, "nope", models.AlertCancelled); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestActiveHistoryAndCleanup(t *testing.T) {
	svc, _, _ := newTestAlertService(t, 0)
	ctx := context.Background()

	live := activeAlert("live")
	stale := activeAlert("stale")
	stale.CreatedAt = t0.Add(-48 * time.Hour)
	stale.ExpiresAt = t0.Add(-24 * time.Hour)
	_, _ = svc.Submit(ctx, live)
	_, _ = svc.Submit(ctx, stale)

	active, _ := svc.Active(ctx, 0)
	if len(active) != 1 || active[0].ID != "live" {
		t.Fatalf("expected only live alert to be active, got %d", len(active))
	}
	hist, _ := svc.History(ctx, "tcs", 0)
	if len(hist) != 2 {
		t.Fatalf("expected both alerts in history, got %d", len(hist))
	}

	n, err := svc.Cleanup(ctx, t0)
	if err != nil || n != 1 {
		t.Fatalf("expected one stale alert removed, got %d %v", n, err)
	}

	h, err := svc.Health(ctx)
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	if h.Status != "healthy" || h.ActiveAlerts != 1 || h.RecentAlerts != 1 {
		t.Fatalf("unexpected health %+v", h)
	}
}
