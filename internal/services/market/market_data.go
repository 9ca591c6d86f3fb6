package market

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"FinFusion/internal/domain"
	"FinFusion/internal/domain/models"
	"FinFusion/internal/domain/repository"
	"FinFusion/internal/domain/service"
	"FinFusion/internal/services/sources"
	"FinFusion/pkg/cache"
	applogger "FinFusion/pkg/logger"
	"FinFusion/pkg/metrics"
)

const (
	defaultBasePrice = 1000.0
	// noise is the maximum relative move from the base price.
	noise = 0.01

	sourceNSE = "NSE"
)

// SnapshotKey is the cache key of a symbol's latest snapshot.
func SnapshotKey(symbol string) string { return "market:" + symbol }

// Service generates, caches and records market snapshots.
type Service struct {
	cache   cache.Service
	history repository.SnapshotHistory
	metrics repository.Metrics
	l       *applogger.Logger

	r           sources.Rand
	basePrices  map[string]float64
	snapshotTTL time.Duration
	optionsTTL  time.Duration
	now         func() time.Time
}

type Option func(*Service)

func WithBasePrices(prices map[string]float64) Option {
	return func(s *Service) {
		if len(prices) > 0 {
			s.basePrices = prices
		}
	}
}

func WithTTLs(snapshot, options time.Duration) Option {
	return func(s *Service) {
		if snapshot > 0 {
			s.snapshotTTL = snapshot
		}
		if options > 0 {
			s.optionsTTL = options
		}
	}
}

func WithRand(r sources.Rand) Option {
	return func(s *Service) {
		if r != nil {
			s.r = r
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithLogger(l *applogger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.l = l
		}
	}
}

func WithMetrics(m repository.Metrics) Option {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

func NewService(c cache.Service, history repository.SnapshotHistory, opts ...Option) *Service {
	s := &Service{
		cache:       c,
		history:     history,
		metrics:     metrics.Nop{},
		l:           applogger.Nop(),
		r:           sources.NewRand(time.Now().UnixNano()),
		basePrices:  map[string]float64{},
		snapshotTTL: 60 * time.Second,
		optionsTTL:  300 * time.Second,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.l = s.l.Named("market")
	return s
}

// BasePrice returns the reference price of symbol.
func (s *Service) BasePrice(symbol string) float64 {
	if p, ok := s.basePrices[symbol]; ok && p > 0 {
		return p
	}
	return defaultBasePrice
}

func (s *Service) generate(symbol string, now time.Time) *models.MarketSnapshot {
	base := s.BasePrice(symbol)
	price := base * (1 + (s.r.Float64()-0.5)*2*noise)
	change := price - base
	return &models.MarketSnapshot{
		Symbol:        symbol,
		Price:         round2(price),
		Change:        round2(change),
		ChangePercent: round2(change / base * 100),
		Volume:        int64(s.r.Intn(1000000)) + 100000,
		High:          round2(price * 1.02),
		Low:           round2(price * 0.98),
		Open:          base,
		Source:        sourceNSE,
		Timestamp:     now.UTC(),
	}
}

// Refresh generates a snapshot per symbol, caches each one and appends the
// batch to history. History failures are logged; the cached snapshots are
// still served.
func (s *Service) Refresh(ctx context.Context, symbols []string) error {
	if len(symbols) == 0 {
		return nil
	}
	now := s.now()
	batch := make([]*models.MarketSnapshot, 0, len(symbols))
	for _, sym := range symbols {
		snap := s.generate(sym, now)
		if err := s.cache.Set(ctx, SnapshotKey(sym), snap, s.snapshotTTL); err != nil {
			s.l.Warn("cache snapshot failed", applogger.String("symbol", sym), applogger.Error(err))
		}
		batch = append(batch, snap)
	}

	start := time.Now()
	if err := s.history.StoreBatch(ctx, batch); err != nil {
		s.metrics.RecordError("snapshot_history")
		s.l.Warn("store snapshot history failed", applogger.Int("rows", len(batch)), applogger.Error(err))
		return nil
	}
	s.metrics.RecordLatency("snapshot_history_insert", time.Since(start).Seconds())
	s.l.Debug("market refreshed", applogger.Int("symbols", len(batch)))
	return nil
}

// RefreshOptionsFlow produces the aggregated FII options flow and caches it
// under sources.OptionsFlowKey.
func (s *Service) RefreshOptionsFlow(ctx context.Context) (*models.OptionsFlow, error) {
	buy := float64(s.r.Intn(5000) + 2000)
	sell := float64(s.r.Intn(4000) + 1500)
	flow := &models.OptionsFlow{
		BuyValue:  buy,
		SellValue: sell,
		NetValue:  buy - sell,
		Timestamp: s.now().UTC(),
	}
	if err := s.cache.Set(ctx, sources.OptionsFlowKey, flow, s.optionsTTL); err != nil {
		return nil, fmt.Errorf("cache options flow: %w", err)
	}
	return flow, nil
}

// Snapshot returns the cached snapshot of symbol, or domain.ErrNotFound.
func (s *Service) Snapshot(ctx context.Context, symbol string) (*models.MarketSnapshot, error) {
	var snap models.MarketSnapshot
	if err := s.cache.Get(ctx, SnapshotKey(symbol), &snap); err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return nil, fmt.Errorf("snapshot %s: %w", symbol, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("snapshot %s: %w", symbol, err)
	}
	return &snap, nil
}

// Ingest accepts an externally produced snapshot. A snapshot older than
// the cached one only goes to history.
func (s *Service) Ingest(ctx context.Context, snap *models.MarketSnapshot) error {
	var current models.MarketSnapshot
	err := s.cache.Get(ctx, SnapshotKey(snap.Symbol), &current)
	if err != nil || !snap.Timestamp.Before(current.Timestamp) {
		if err := s.cache.Set(ctx, SnapshotKey(snap.Symbol), snap, s.snapshotTTL); err != nil {
			s.l.Warn("cache ingested snapshot failed", applogger.String("symbol", snap.Symbol), applogger.Error(err))
		}
	}
	if err := s.history.Store(ctx, snap); err != nil {
		return fmt.Errorf("store snapshot %s: %w", snap.Symbol, err)
	}
	return nil
}

// History returns stored snapshots of symbol in [from, to], newest first.
func (s *Service) History(ctx context.Context, symbol string, from, to time.Time, limit int) ([]*models.MarketSnapshot, error) {
	if to.Before(from) {
		return nil, fmt.Errorf("invalid range: to before from")
	}
	return s.history.Query(ctx, symbol, from, to, limit)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

var _ service.MarketData = (*Service)(nil)
