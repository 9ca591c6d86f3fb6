package sources

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"FinFusion/internal/domain"
	"FinFusion/internal/domain/models"
	"FinFusion/pkg/cache"
)

// fixedRand returns f from Float64 and n-1-back from Intn.
type fixedRand struct {
	f    float64
	back int
}

func (r fixedRand) Float64() float64 { return r.f }
func (r fixedRand) Intn(n int) int {
	if v := n - 1 - r.back; v >= 0 {
		return v
	}
	return 0
}

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestSatelliteBands(t *testing.T) {
	ctx := context.Background()
	low := NewSatelliteAdapter(fixedRand{f: 0})
	high := NewSatelliteAdapter(fixedRand{f: 0.999999})

	cases := map[string][2]float64{
		"RELIANCE": {0.7, 1.0},
		"TCS":      {0.6, 0.8},
		"HDFC":     {0.5, 0.7},
		"INFY":     {0.6, 0.8},
		"ITC":      {0.4, 0.7},
	}
	for sym, b := range cases {
		lo, _ := low.Score(ctx, sym)
		hi, _ := high.Score(ctx, sym)
		if !approx(lo.Value, b[0]) {
			t.Fatalf("%s: expected lower bound %.2f, got %f", sym, b[0], lo.Value)
		}
		if hi.Value >= b[1] || hi.Value < b[0] {
			t.Fatalf("%s: %f outside [%.2f,%.2f)", sym, hi.Value, b[0], b[1])
		}
		if lo.Source != models.SourceSatellite || lo.Symbol != sym {
			t.Fatalf("unexpected opinion identity %+v", lo)
		}
	}

	o, err := low.Score(ctx, "XYZ")
	if err != nil || o.Value != 0.5 {
		t.Fatalf("unknown symbol should be neutral, got %v %v", o.Value, err)
	}
}

func TestWebRankScore(t *testing.T) {
	if got := RankScore(1); !approx(got, 0.98) {
		t.Fatalf("rank 1: got %f", got)
	}
	if got := RankScore(50); got != 0 {
		t.Fatalf("rank 50: got %f", got)
	}
	if got := RankScore(80); got != 0 {
		t.Fatalf("rank past ceiling must floor at 0, got %f", got)
	}

	ctx := context.Background()
	worst := NewWebAdapter(fixedRand{})
	o, _ := worst.Score(ctx, "ITC")
	if !approx(o.Value, 0.5) {
		t.Fatalf("ITC worst rank 25 should score 0.5, got %f", o.Value)
	}
	o, _ = worst.Score(ctx, "RELIANCE")
	if !approx(o.Value, 0.6) {
		t.Fatalf("RELIANCE worst rank 20 should score 0.6, got %f", o.Value)
	}
	best := NewWebAdapter(fixedRand{back: 100})
	o, _ = best.Score(ctx, "TCS")
	if !approx(o.Value, 0.98) {
		t.Fatalf("best rank should score 0.98, got %f", o.Value)
	}
	o, _ = best.Score(ctx, "XYZ")
	if o.Value != 0.5 {
		t.Fatalf("unknown symbol should be neutral, got %f", o.Value)
	}
}

func TestSocialBands(t *testing.T) {
	ctx := context.Background()
	a := NewSocialAdapter(fixedRand{f: 0})
	for sym, lo := range map[string]float64{"RELIANCE": 0.6, "TCS": 0.5, "HDFC": 0.5, "INFY": 0.6, "ITC": 0.4} {
		o, _ := a.Score(ctx, sym)
		if !approx(o.Value, lo) {
			t.Fatalf("%s: expected %.1f, got %f", sym, lo, o.Value)
		}
	}
	o, _ := a.Score(ctx, "SBIN")
	if o.Value != 0.5 {
		t.Fatalf("unknown symbol should be neutral, got %f", o.Value)
	}
}

type stubSentiment struct {
	v   float64
	err error
	got string
}

func (s *stubSentiment) SectorSentiment(_ context.Context, sector string) (float64, error) {
	s.got = sector
	return s.v, s.err
}

func TestNewsAdapter(t *testing.T) {
	ctx := context.Background()
	p := &stubSentiment{v: 0.4}
	a := NewNewsAdapter(p, nil)

	o, err := a.Score(ctx, "HDFC")
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if !approx(o.Value, 0.7) || p.got != "Banking" {
		t.Fatalf("expected 0.7 from Banking, got %f from %s", o.Value, p.got)
	}

	_, _ = a.Score(ctx, "ZOMATO")
	if p.got != GeneralSector {
		t.Fatalf("expected General sector, got %s", p.got)
	}

	p.err = errors.New("boom")
	if _, err := a.Score(ctx, "TCS"); !errors.Is(err, domain.ErrSourceUnavailable) {
		t.Fatalf("expected source unavailable, got %v", err)
	}
}

func TestOptionsAdapter(t *testing.T) {
	ctx := context.Background()
	mc := cache.NewMemoryCache(cache.WithMemoryCleanup(time.Hour))
	defer mc.Close()
	a := NewOptionsAdapter(mc)

	if _, err := a.Score(ctx, "TCS"); !errors.Is(err, domain.ErrSourceUnavailable) {
		t.Fatalf("expected absent opinion on miss, got %v", err)
	}

	_ = mc.Set(ctx, OptionsFlowKey, models.OptionsFlow{BuyValue: 5000, SellValue: 2500, NetValue: 2500}, time.Minute)
	o, err := a.Score(ctx, "TCS")
	if err != nil || !approx(o.Value, 0.75) {
		t.Fatalf("expected 0.75, got %f %v", o.Value, err)
	}

	if got := OptionsScore(-9000); got != 0 {
		t.Fatalf("expected clamp to 0, got %f", got)
	}
	if got := OptionsScore(12000); got != 1 {
		t.Fatalf("expected clamp to 1, got %f", got)
	}
}

func TestHTTPSentimentProvider(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/sentiment/sector/Oil & Gas":
			_, _ = w.Write([]byte(`{"sector":"Oil & Gas","sentiment":-0.2,"articles":4}`))
		case "/sentiment/sector/IT":
			_, _ = w.Write([]byte(`{"sector":"IT","sentiment":3,"articles":1}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	p := NewHTTPSentimentProvider(srv.URL+"/", time.Second, 0)
	ctx := context.Background()

	v, err := p.SectorSentiment(ctx, "Oil & Gas")
	if err != nil || !approx(v, -0.2) {
		t.Fatalf("expected -0.2, got %f %v", v, err)
	}
	if _, err := p.SectorSentiment(ctx, "IT"); err == nil {
		t.Fatalf("expected out of range sentiment to fail")
	}
	if _, err := p.SectorSentiment(ctx, "Banking"); err == nil {
		t.Fatalf("expected 404 to fail")
	}
}

func TestGeneratedSentimentBounds(t *testing.T) {
	ctx := context.Background()
	for _, f := range []float64{0, 0.5, 0.999} {
		g := NewGeneratedSentiment(fixedRand{f: f})
		for _, sector := range []string{"IT", "Banking", "FMCG", "Oil & Gas", GeneralSector} {
			v, err := g.SectorSentiment(ctx, sector)
			if err != nil || v < -1 || v > 1 {
				t.Fatalf("%s: sentiment %f out of range (%v)", sector, v, err)
			}
		}
	}
}
