package usecase

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"FinFusion/internal/domain"
	"FinFusion/internal/domain/models"
	domsvc "FinFusion/internal/domain/service"
	"FinFusion/pkg/cache"
	"FinFusion/pkg/metrics"
)

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

var equalWeights = Weights{
	models.SourceSatellite: 0.2,
	models.SourceNews:      0.2,
	models.SourceOptions:   0.2,
	models.SourceWeb:       0.2,
	models.SourceSocial:    0.2,
}

type fixedAdapter struct {
	kind  models.SourceKind
	value float64
	err   error
	block bool
}

func (a fixedAdapter) Kind() models.SourceKind { return a.kind }

func (a fixedAdapter) Score(ctx context.Context, symbol string) (models.Opinion, error) {
	if a.block {
		<-ctx.Done()
		return models.Opinion{}, ctx.Err()
	}
	if a.err != nil {
		return models.Opinion{}, a.err
	}
	return models.Opinion{Source: a.kind, Symbol: symbol, Value: a.value}, nil
}

func newMemCache(t *testing.T) *cache.MemoryCache {
	t.Helper()
	mc := cache.NewMemoryCache(cache.WithMemoryCleanup(time.Hour))
	t.Cleanup(func() { _ = mc.Close() })
	return mc
}

func TestFuseRenormalisesOverResponders(t *testing.T) {
	all := []models.Opinion{
		{Source: models.SourceSatellite, Value: 0.9},
		{Source: models.SourceNews, Value: 0.7},
		{Source: models.SourceOptions, Value: 0.5},
		{Source: models.SourceWeb, Value: 0.3},
		{Source: models.SourceSocial, Value: 0.6},
	}
	if got := Fuse(all, equalWeights); !approx(got, 0.6) {
		t.Fatalf("expected 0.6, got %f", got)
	}

	partial := []models.Opinion{
		{Source: models.SourceSatellite, Value: 0.8},
		{Source: models.SourceWeb, Value: 0.6},
	}
	if got := Fuse(partial, equalWeights); !approx(got, 0.7) {
		t.Fatalf("missing sources must not bias toward zero, got %f", got)
	}

	if got := Fuse(nil, equalWeights); got != NeutralScore {
		t.Fatalf("expected neutral fallback, got %f", got)
	}

	skewed := Weights{models.SourceSatellite: 0.75, models.SourceNews: 0.25}
	got := Fuse([]models.Opinion{
		{Source: models.SourceSatellite, Value: 1},
		{Source: models.SourceNews, Value: 0},
		{Source: models.SourceSocial, Value: 0},
	}, skewed)
	if !approx(got, 0.75) {
		t.Fatalf("expected 0.75 with unweighted social ignored, got %f", got)
	}
}

func TestFuseStaysInRange(t *testing.T) {
	values := []float64{-3, 0, 0.1, 0.5, 0.99, 1, 7}
	for _, a := range values {
		for _, b := range values {
			got := Fuse([]models.Opinion{
				{Source: models.SourceNews, Value: a},
				{Source: models.SourceSocial, Value: b},
			}, equalWeights)
			if got < 0 || got > 1 {
				t.Fatalf("fused %f out of range for %f,%f", got, a, b)
			}
		}
	}
}

func TestScorerTreatsSlowAndFailingSourcesAsAbsent(t *testing.T) {
	adapters := []domsvc.SourceAdapter{
		fixedAdapter{kind: models.SourceSatellite, value: 0.9},
		fixedAdapter{kind: models.SourceNews, value: 0.7},
		fixedAdapter{kind: models.SourceOptions, err: domain.ErrSourceUnavailable},
		fixedAdapter{kind: models.SourceWeb, block: true},
	}
	s := NewFusionScorer(adapters, equalWeights, newMemCache(t), metrics.Nop{}, nil, time.Minute, 50*time.Millisecond)

	start := time.Now()
	score, err := s.Score(context.Background(), "TCS")
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if time.Since(start) > time.Second {
		t.Fatalf("slow adapter blocked fusion")
	}
	if !approx(score.Value, 0.8) {
		t.Fatalf("expected 0.8 from two responders, got %f", score.Value)
	}
	if len(score.Sources) != 2 {
		t.Fatalf("expected two recorded sources, got %v", score.Sources)
	}
}

func TestScorerNoSourcesIsNeutralHold(t *testing.T) {
	adapters := []domsvc.SourceAdapter{
		fixedAdapter{kind: models.SourceNews, err: errors.New("down")},
		fixedAdapter{kind: models.SourceSocial, err: errors.New("down")},
	}
	s := NewFusionScorer(adapters, equalWeights, newMemCache(t), metrics.Nop{}, nil, time.Minute, time.Second)

	score, _ := s.Score(context.Background(), "XYZ")
	if score.Value != 0.5 {
		t.Fatalf("expected 0.5, got %f", score.Value)
	}
	sig := Classify("XYZ", score.Value)
	if sig.Kind != models.SignalHold || sig.Confidence != 0 {
		t.Fatalf("expected HOLD with zero confidence, got %+v", sig)
	}
}

func TestScorerCachesScores(t *testing.T) {
	mc := newMemCache(t)
	adapters := []domsvc.SourceAdapter{fixedAdapter{kind: models.SourceSocial, value: 0.9}}
	s := NewFusionScorer(adapters, equalWeights, mc, metrics.Nop{}, nil, time.Minute, time.Second)
	ctx := context.Background()

	if _, err := s.Cached(ctx, "TCS"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found before scoring, got %v", err)
	}
	if _, err := s.Score(ctx, "TCS"); err != nil {
		t.Fatalf("score: %v", err)
	}
	got, err := s.Cached(ctx, "TCS")
	if err != nil || !approx(got.Value, 0.9) {
		t.Fatalf("expected cached 0.9, got %+v %v", got, err)
	}

	all, err := s.CachedAll(ctx, []string{"TCS", "INFY"})
	if err != nil {
		t.Fatalf("cached all: %v", err)
	}
	if len(all) != 1 || all["TCS"] == nil {
		t.Fatalf("expected only TCS, got %v", all)
	}
}
