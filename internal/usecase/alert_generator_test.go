package usecase

import (
	"errors"
	"strings"
	"testing"
	"time"

	"FinFusion/internal/domain"
	"FinFusion/internal/domain/models"
)

var t0 = time.Date(2024, 10, 10, 5, 0, 0, 0, time.UTC)

func newTestGenerator() *AlertGenerator {
	g := NewAlertGenerator(nil, 24*time.Hour, func() string { return "alert-1" })
	g.now = func() time.Time { return t0 }
	return g
}

func TestPriceLevels(t *testing.T) {
	cases := []struct {
		kind         models.SignalKind
		entry        float64
		target, stop float64
	}{
		{models.SignalBuy, 2650, 2729.50, 2597.00},
		{models.SignalSell, 2650, 2570.50, 2703.00},
		{models.SignalHold, 2650, 2650, 2650},
		{models.SignalBuy, 450.555, 464.08, 441.55},
	}
	for _, c := range cases {
		_, target, stop := PriceLevels(c.kind, c.entry)
		if target != c.target || stop != c.stop {
			t.Fatalf("%s %.3f: expected %.2f/%.2f, got %.2f/%.2f", c.kind, c.entry, c.target, c.stop, target, stop)
		}
	}
}

func TestGenerateBuyAlert(t *testing.T) {
	g := newTestGenerator()
	score := &models.FusionScore{
		Symbol: "RELIANCE",
		Value:  0.82,
		Sources: map[models.SourceKind]float64{
			models.SourceSatellite: 0.95,
			models.SourceSocial:    0.8,
			models.SourceWeb:       0.7,
		},
	}
	a, err := g.Generate(Classify("RELIANCE", 0.82), score, &models.MarketSnapshot{Symbol: "RELIANCE", Price: 2650})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if a.EntryPrice != 2650 || a.TargetPrice != 2729.5 || a.StopLoss != 2597 {
		t.Fatalf("unexpected levels %+v", a)
	}
	if a.Confidence != 0.64 || a.FusionScore != 0.82 {
		t.Fatalf("unexpected confidence/fusion %v/%v", a.Confidence, a.FusionScore)
	}
	if a.Status != models.AlertActive || !a.ExpiresAt.Equal(t0.Add(24*time.Hour)) {
		t.Fatalf("unexpected status/expiry %s %v", a.Status, a.ExpiresAt)
	}
	if !strings.Contains(a.Rationale, "Oil & Gas") || !strings.Contains(a.Rationale, "all 3 sources bullish") || !strings.Contains(a.Rationale, "satellite") {
		t.Fatalf("unexpected rationale %q", a.Rationale)
	}
}

func TestGenerateSellAndHoldAreConsistent(t *testing.T) {
	g := newTestGenerator()
	snap := &models.MarketSnapshot{Symbol: "ITC", Price: 450}
	for _, fused := range []float64{0.1, 0.29, 0.3, 0.5, 0.7} {
		a, err := g.Generate(Classify("ITC", fused), &models.FusionScore{Value: fused}, snap)
		if err != nil {
			t.Fatalf("fused %.2f: %v", fused, err)
		}
		if err := a.Validate(); err != nil {
			t.Fatalf("fused %.2f: invalid alert: %v", fused, err)
		}
	}
}

func TestGenerateWithoutPrice(t *testing.T) {
	g := newTestGenerator()
	if _, err := g.Generate(Classify("TCS", 0.9), nil, nil); !errors.Is(err, domain.ErrInvalidAlert) {
		t.Fatalf("expected invalid alert, got %v", err)
	}
}

func TestRationaleSplit(t *testing.T) {
	r := Rationale("IT", models.SignalHold, map[models.SourceKind]float64{
		models.SourceNews:   0.2,
		models.SourceSocial: 0.6,
	})
	if !strings.Contains(r, "Mixed momentum in IT") || !strings.Contains(r, "1 bullish / 1 bearish") || !strings.Contains(r, "led by news") {
		t.Fatalf("unexpected rationale %q", r)
	}
}
