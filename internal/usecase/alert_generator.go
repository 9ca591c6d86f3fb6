package usecase

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"FinFusion/internal/domain"
	"FinFusion/internal/domain/models"
	"FinFusion/internal/services/sources"
)

var (
	buyTarget  = decimal.RequireFromString("1.03")
	buyStop    = decimal.RequireFromString("0.98")
	sellTarget = decimal.RequireFromString("0.97")
	sellStop   = decimal.RequireFromString("1.02")
)

// PriceLevels returns target and stop loss for a signal entered at entry,
// rounded to two decimals.
func PriceLevels(kind models.SignalKind, entry float64) (entryOut, target, stop float64) {
	e := decimal.NewFromFloat(entry).Round(2)
	t, s := e, e
	switch kind {
	case models.SignalBuy:
		t, s = e.Mul(buyTarget), e.Mul(buyStop)
	case models.SignalSell:
		t, s = e.Mul(sellTarget), e.Mul(sellStop)
	}
	return e.InexactFloat64(), t.Round(2).InexactFloat64(), s.Round(2).InexactFloat64()
}

func round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

// AlertGenerator turns a classified signal and the latest snapshot into an
// alert ready to persist.
type AlertGenerator struct {
	sectors sources.Sectors
	expiry  time.Duration
	now     func() time.Time
	newID   func() string
}

func NewAlertGenerator(sectors sources.Sectors, expiry time.Duration, newID func() string) *AlertGenerator {
	if sectors == nil {
		sectors = sources.DefaultSectors()
	}
	if expiry <= 0 {
		expiry = 24 * time.Hour
	}
	return &AlertGenerator{sectors: sectors, expiry: expiry, now: time.Now, newID: newID}
}

func (g *AlertGenerator) Generate(sig models.Signal, score *models.FusionScore, snap *models.MarketSnapshot) (*models.Alert, error) {
	if snap == nil || snap.Price <= 0 {
		return nil, fmt.Errorf("%w: no usable price for %s", domain.ErrInvalidAlert, sig.Symbol)
	}
	entry, target, stop := PriceLevels(sig.Kind, snap.Price)
	now := g.now().UTC()

	var fused float64
	var opinions map[models.SourceKind]float64
	if score != nil {
		fused = score.Value
		opinions = score.Sources
	}

	a := &models.Alert{
		ID:          g.newID(),
		Symbol:      sig.Symbol,
		Signal:      sig.Kind,
		EntryPrice:  entry,
		TargetPrice: target,
		StopLoss:    stop,
		Confidence:  round2(sig.Confidence),
		Rationale:   Rationale(g.sectors.Of(sig.Symbol), sig.Kind, opinions),
		FusionScore: round2(fused),
		Status:      models.AlertActive,
		CreatedAt:   now,
		ExpiresAt:   now.Add(g.expiry),
		UpdatedAt:   now,
	}
	if err := a.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidAlert, err)
	}
	return a, nil
}

// Rationale describes the sector move and how far the sources agree. The
// source furthest from neutral is named as the main driver.
func Rationale(sector string, kind models.SignalKind, opinions map[models.SourceKind]float64) string {
	var b strings.Builder
	switch kind {
	case models.SignalBuy:
		fmt.Fprintf(&b, "Positive momentum in %s", sector)
	case models.SignalSell:
		fmt.Fprintf(&b, "Negative momentum in %s", sector)
	default:
		fmt.Fprintf(&b, "Mixed momentum in %s", sector)
	}
	if len(opinions) == 0 {
		b.WriteString(", no source data")
		return b.String()
	}

	kinds := make([]models.SourceKind, 0, len(opinions))
	for k := range opinions {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })

	var bullish, bearish int
	driver := kinds[0]
	for _, k := range kinds {
		v := opinions[k]
		switch {
		case v > NeutralScore:
			bullish++
		case v < NeutralScore:
			bearish++
		}
		if math.Abs(v-NeutralScore) > math.Abs(opinions[driver]-NeutralScore) {
			driver = k
		}
	}

	n := len(opinions)
	switch {
	case bullish == n:
		fmt.Fprintf(&b, ", all %d sources bullish", n)
	case bearish == n:
		fmt.Fprintf(&b, ", all %d sources bearish", n)
	default:
		fmt.Fprintf(&b, ", sources split %d bullish / %d bearish", bullish, bearish)
	}
	fmt.Fprintf(&b, "; led by %s (%.2f)", driver, opinions[driver])
	return b.String()
}
