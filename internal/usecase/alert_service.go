package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"FinFusion/internal/domain"
	"FinFusion/internal/domain/models"
	domrepo "FinFusion/internal/domain/repository"
	"FinFusion/pkg/cache"
	applogger "FinFusion/pkg/logger"
	"FinFusion/pkg/util"
)

// AlertServiceConfig holds the alert persistence and delivery settings.
type AlertServiceConfig struct {
	Channel         string
	PersistAttempts int
	PersistBackoff  time.Duration
	PersistTimeout  time.Duration
	PublishTimeout  time.Duration
	Expiry          time.Duration
	ActiveLimit     int
	HistoryLimit    int
}

func (c *AlertServiceConfig) setDefaults() {
	if c.Channel == "" {
		c.Channel = "alerts"
	}
	if c.PersistAttempts <= 0 {
		c.PersistAttempts = 3
	}
	if c.PersistBackoff <= 0 {
		c.PersistBackoff = 200 * time.Millisecond
	}
	if c.PersistTimeout <= 0 {
		c.PersistTimeout = 5 * time.Second
	}
	if c.PublishTimeout <= 0 {
		c.PublishTimeout = 2 * time.Second
	}
	if c.Expiry <= 0 {
		c.Expiry = 24 * time.Hour
	}
	if c.ActiveLimit <= 0 {
		c.ActiveLimit = 20
	}
	if c.HistoryLimit <= 0 {
		c.HistoryLimit = 50
	}
}

// FusionReader reads cached fusion scores.
type FusionReader interface {
	Cached(ctx context.Context, symbol string) (*models.FusionScore, error)
}

// NewAlertID returns a random alert id.
func NewAlertID() string { return uuid.NewString() }

// AlertService persists alerts and fans them out. Publishing always
// happens after a successful commit.
type AlertService struct {
	store   domrepo.AlertStore
	bcast   domrepo.Broadcaster
	events  domrepo.AlertEventPublisher
	scores  FusionReader
	cache   cache.Service
	metrics domrepo.Metrics
	l       *applogger.Logger
	cfg     AlertServiceConfig
	now     func() time.Time
	sleep   func(ctx context.Context, d time.Duration) error
}

func NewAlertService(
	store domrepo.AlertStore,
	bcast domrepo.Broadcaster,
	events domrepo.AlertEventPublisher,
	scores FusionReader,
	c cache.Service,
	metrics domrepo.Metrics,
	l *applogger.Logger,
	cfg AlertServiceConfig,
) *AlertService {
	cfg.setDefaults()
	if l == nil {
		l = applogger.Nop()
	}
	return &AlertService{
		store:   store,
		bcast:   bcast,
		events:  events,
		scores:  scores,
		cache:   c,
		metrics: metrics,
		l:       l.Named("alerts"),
		cfg:     cfg,
		now:     time.Now,
		sleep:   sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Submit validates and persists a, then publishes it. After the configured
// attempts fail the alert is dropped and ErrPersistenceFailure returned.
func (s *AlertService) Submit(ctx context.Context, a *models.Alert) (*models.Alert, error) {
	if err := a.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidAlert, err)
	}

	if err := s.persist(ctx, a); err != nil {
		s.metrics.RecordAlertDropped(a.Symbol)
		s.l.Error("alert dropped",
			applogger.String("id", a.ID),
			applogger.String("symbol", a.Symbol),
			applogger.String("signal", string(a.Signal)),
			applogger.Int("attempts", s.cfg.PersistAttempts),
			applogger.Error(err),
		)
		return nil, fmt.Errorf("%w: %v", domain.ErrPersistenceFailure, err)
	}

	s.metrics.RecordAlertGenerated(string(a.Signal))
	s.publish(ctx, a)
	return a, nil
}

func (s *AlertService) persist(ctx context.Context, a *models.Alert) error {
	var err error
	backoff := s.cfg.PersistBackoff
	for attempt := 1; attempt <= s.cfg.PersistAttempts; attempt++ {
		pctx, cancel := context.WithTimeout(ctx, s.cfg.PersistTimeout)
		err = s.store.Create(pctx, a)
		cancel()
		if err == nil {
			return nil
		}
		if errors.Is(err, domain.ErrAlreadyExists) {
			return err
		}
		s.l.Warn("persist alert failed",
			applogger.String("id", a.ID),
			applogger.Int("attempt", attempt),
			applogger.Error(err),
		)
		if attempt == s.cfg.PersistAttempts {
			break
		}
		if werr := s.sleep(ctx, backoff); werr != nil {
			return fmt.Errorf("%v (retry aborted: %w)", err, werr)
		}
		backoff *= 2
	}
	return err
}

func (s *AlertService) publish(ctx context.Context, a *models.Alert) {
	env := models.NewAlertEnvelope(a, s.now().UTC())
	env.Channel = s.cfg.Channel

	bctx, cancel := context.WithTimeout(ctx, s.cfg.PublishTimeout)
	defer cancel()

	n, err := s.bcast.Publish(bctx, s.cfg.Channel, env)
	if err != nil {
		s.metrics.RecordError("broadcast")
		s.l.Warn("broadcast alert failed", applogger.String("id", a.ID), applogger.Error(err))
	} else {
		s.l.Debug("alert broadcast", applogger.String("id", a.ID), applogger.Int("receivers", n))
	}

	if s.events != nil {
		if err := s.events.PublishAlert(bctx, a); err != nil {
			s.metrics.RecordError("alert_event")
			s.l.Warn("publish alert event failed", applogger.String("id", a.ID), applogger.Error(err))
		}
	}
}

// CreateManual builds an alert from an API request, bypassing the fusion
// pipeline. Missing levels default to the signal direction; a missing
// confidence is taken from the cached fusion score when there is one.
func (s *AlertService) CreateManual(ctx context.Context, req *models.CreateAlertRequest) (*models.Alert, error) {
	kind := models.SignalKind(strings.ToUpper(req.Signal))
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: unknown signal %q", domain.ErrInvalidAlert, req.Signal)
	}
	symbol := util.NormalizeSymbol(req.Symbol)
	entry, target, stop := PriceLevels(kind, req.EntryPrice)
	if req.TargetPrice != nil {
		target = round2(*req.TargetPrice)
	}
	if req.StopLoss != nil {
		stop = round2(*req.StopLoss)
	}

	confidence, fused := NeutralScore, 0.0
	if s.scores != nil {
		if score, err := s.scores.Cached(ctx, symbol); err == nil {
			fused = score.Value
			confidence = Confidence(score.Value)
		}
	}
	if req.Confidence != nil {
		confidence = *req.Confidence
	}

	rationale := strings.TrimSpace(req.Rationale)
	if rationale == "" {
		rationale = fmt.Sprintf("Manual %s alert", kind)
	}

	now := s.now().UTC()
	a := &models.Alert{
		ID:          NewAlertID(),
		Symbol:      symbol,
		Signal:      kind,
		EntryPrice:  entry,
		TargetPrice: target,
		StopLoss:    stop,
		Confidence:  round2(confidence),
		Rationale:   rationale,
		FusionScore: round2(fused),
		Status:      models.AlertActive,
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.cfg.Expiry),
		UpdatedAt:   now,
	}
	return s.Submit(ctx, a)
}

func (s *AlertService) Get(ctx context.Context, id string) (*models.Alert, error) {
	return s.store.Get(ctx, id)
}

// List returns alerts matching f, newest first.
func (s *AlertService) List(ctx context.Context, f models.AlertFilter) ([]*models.Alert, error) {
	if f.Limit <= 0 {
		f.Limit = s.cfg.HistoryLimit
	}
	f.Symbol = util.NormalizeSymbol(f.Symbol)
	return s.store.List(ctx, f)
}

// Active returns active alerts that have not expired yet.
func (s *AlertService) Active(ctx context.Context, limit int) ([]*models.Alert, error) {
	if limit <= 0 {
		limit = s.cfg.ActiveLimit
	}
	now := s.now().UTC()
	return s.store.List(ctx, models.AlertFilter{Status: models.AlertActive, ActiveAt: &now, Limit: limit})
}

// History returns the latest alerts of a symbol regardless of status.
func (s *AlertService) History(ctx context.Context, symbol string, limit int) ([]*models.Alert, error) {
	if limit <= 0 {
		limit = s.cfg.HistoryLimit
	}
	return s.store.List(ctx, models.AlertFilter{Symbol: util.NormalizeSymbol(symbol), Limit: limit})
}

// UpdateStatus moves an alert forward. The store applies the change only
// if the status read here is still current, so two racing updates cannot
// both succeed.
func (s *AlertService) UpdateStatus(ctx context.Context, id string, to models.AlertStatus) (*models.Alert, error) {
	if !to.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", domain.ErrInvalidTransition, to)
	}
	cur, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !cur.Status.CanTransition(to) {
		return nil, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, cur.Status, to)
	}
	updated, err := s.store.UpdateStatus(ctx, id, cur.Status, to)
	if err != nil {
		return nil, err
	}
	s.l.Info("alert status updated",
		applogger.String("id", id),
		applogger.String("from", string(cur.Status)),
		applogger.String("to", string(to)),
	)
	return updated, nil
}

// Cleanup deletes active or cancelled alerts that expired before now.
func (s *AlertService) Cleanup(ctx context.Context, now time.Time) (int64, error) {
	n, err := s.store.DeleteStale(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("cleanup alerts: %w", err)
	}
	if n > 0 {
		s.l.Info("stale alerts removed", applogger.Int64("count", n))
	}
	return n, nil
}

const (
	healthOK       = "healthy"
	healthDegraded = "degraded"
	healthDown     = "unhealthy"
)

// Health summarises the alert store and the cache.
func (s *AlertService) Health(ctx context.Context) (*models.AlertHealth, error) {
	now := s.now().UTC()
	h := &models.AlertHealth{Status: healthOK, Cache: "connected"}

	active, err := s.store.Count(ctx, models.AlertFilter{Status: models.AlertActive, ActiveAt: &now})
	if err != nil {
		h.Status = healthDown
		return h, fmt.Errorf("count active alerts: %w", err)
	}
	since := now.Add(-24 * time.Hour)
	recent, err := s.store.Count(ctx, models.AlertFilter{CreatedAfter: &since})
	if err != nil {
		h.Status = healthDown
		return h, fmt.Errorf("count recent alerts: %w", err)
	}
	h.ActiveAlerts, h.RecentAlerts = active, recent

	if s.cache != nil {
		if err := s.cache.Ping(ctx); err != nil && !errors.Is(err, context.Canceled) {
			h.Status = healthDegraded
			h.Cache = "unavailable"
		}
	}
	return h, nil
}
