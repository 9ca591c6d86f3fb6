package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"FinFusion/internal/domain"
	"FinFusion/internal/domain/models"
	domrepo "FinFusion/internal/domain/repository"
	domsvc "FinFusion/internal/domain/service"
	"FinFusion/pkg/cache"
	applogger "FinFusion/pkg/logger"
)

// NeutralScore is the fused value used when no source responds.
const NeutralScore = 0.5

// FusionKey is the cache key of a symbol's latest fusion score.
func FusionKey(symbol string) string { return "fusion:" + symbol }

// Weights maps each source to its share of the fused score.
type Weights map[models.SourceKind]float64

// WeightsFromConfig converts configured weights keyed by source name.
func WeightsFromConfig(raw map[string]float64) Weights {
	w := make(Weights, len(raw))
	for k, v := range raw {
		w[models.SourceKind(k)] = v
	}
	return w
}

// Fuse combines the opinions that responded. The weighted sum is divided by
// the total weight of the responders only, so a missing source does not
// drag the score toward zero. No weighted responder yields NeutralScore.
func Fuse(opinions []models.Opinion, w Weights) float64 {
	var sum, total float64
	for _, o := range opinions {
		weight := w[o.Source]
		if weight <= 0 {
			continue
		}
		sum += models.Clamp01(o.Value) * weight
		total += weight
	}
	if total <= 0 {
		return NeutralScore
	}
	return models.Clamp01(sum / total)
}

type opinionResult struct {
	kind    models.SourceKind
	opinion models.Opinion
	err     error
}

// FusionScorer fans out to the source adapters, fuses their opinions and
// caches the result per symbol.
type FusionScorer struct {
	adapters []domsvc.SourceAdapter
	weights  Weights
	cache    cache.Service
	metrics  domrepo.Metrics
	l        *applogger.Logger
	ttl      time.Duration
	timeout  time.Duration
	now      func() time.Time
}

func NewFusionScorer(adapters []domsvc.SourceAdapter, weights Weights, c cache.Service, metrics domrepo.Metrics, l *applogger.Logger, ttl, timeout time.Duration) *FusionScorer {
	if ttl <= 0 {
		ttl = 300 * time.Second
	}
	if timeout <= 0 {
		timeout = 800 * time.Millisecond
	}
	if l == nil {
		l = applogger.Nop()
	}
	return &FusionScorer{
		adapters: adapters,
		weights:  weights,
		cache:    c,
		metrics:  metrics,
		l:        l.Named("fusion"),
		ttl:      ttl,
		timeout:  timeout,
		now:      time.Now,
	}
}

// collect queries every adapter concurrently. Adapters that fail or miss the
// deadline are absent from the result.
func (f *FusionScorer) collect(ctx context.Context, symbol string) []models.Opinion {
	wctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	results := make(chan opinionResult, len(f.adapters))
	for _, a := range f.adapters {
		go func(a domsvc.SourceAdapter) {
			o, err := a.Score(wctx, symbol)
			results <- opinionResult{kind: a.Kind(), opinion: o, err: err}
		}(a)
	}

	seen := make(map[models.SourceKind]bool, len(f.adapters))
	opinions := make([]models.Opinion, 0, len(f.adapters))
	for pending := len(f.adapters); pending > 0; pending-- {
		select {
		case r := <-results:
			seen[r.kind] = true
			if r.err != nil {
				f.sourceFailed(symbol, r.kind, r.err)
				continue
			}
			r.opinion.Source = r.kind
			opinions = append(opinions, r.opinion)
		case <-wctx.Done():
			for _, a := range f.adapters {
				if !seen[a.Kind()] {
					f.sourceFailed(symbol, a.Kind(), wctx.Err())
				}
			}
			return opinions
		}
	}
	return opinions
}

func (f *FusionScorer) sourceFailed(symbol string, kind models.SourceKind, err error) {
	f.metrics.RecordSourceFailure(string(kind))
	f.l.Debug("source absent",
		applogger.String("symbol", symbol),
		applogger.String("source", string(kind)),
		applogger.Error(err),
	)
}

// Score computes and caches the fusion score of symbol. It never fails on
// source errors; only a cancelled ctx is returned.
func (f *FusionScorer) Score(ctx context.Context, symbol string) (*models.FusionScore, error) {
	start := f.now()
	opinions := f.collect(ctx, symbol)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	score := &models.FusionScore{
		Symbol:     symbol,
		Value:      Fuse(opinions, f.weights),
		Sources:    make(map[models.SourceKind]float64, len(opinions)),
		ComputedAt: f.now().UTC(),
	}
	for _, o := range opinions {
		score.Sources[o.Source] = o.Value
	}

	if err := f.cache.Set(ctx, FusionKey(symbol), score, f.ttl); err != nil {
		f.l.Warn("cache fusion score failed", applogger.String("symbol", symbol), applogger.Error(err))
	}
	f.metrics.RecordFusionScore(symbol, score.Value)
	f.metrics.RecordLatency("fusion_score", f.now().Sub(start).Seconds())
	return score, nil
}

// Cached returns the live fusion score of symbol, or domain.ErrNotFound
// when it is absent or expired.
func (f *FusionScorer) Cached(ctx context.Context, symbol string) (*models.FusionScore, error) {
	var score models.FusionScore
	if err := f.cache.Get(ctx, FusionKey(symbol), &score); err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return nil, fmt.Errorf("fusion score %s: %w", symbol, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("fusion score %s: %w", symbol, err)
	}
	return &score, nil
}

// CachedAll returns the live fusion scores of the given symbols. Missing
// symbols are omitted.
func (f *FusionScorer) CachedAll(ctx context.Context, symbols []string) (map[string]*models.FusionScore, error) {
	keys := make([]string, len(symbols))
	for i, s := range symbols {
		keys[i] = FusionKey(s)
	}
	raw, err := cache.MGetTyped[models.FusionScore](ctx, f.cache, keys...)
	if err != nil {
		return nil, fmt.Errorf("fusion scores: %w", err)
	}
	out := make(map[string]*models.FusionScore, len(raw))
	for i, key := range keys {
		if s, ok := raw[key]; ok {
			s := s
			out[symbols[i]] = &s
		}
	}
	return out, nil
}
