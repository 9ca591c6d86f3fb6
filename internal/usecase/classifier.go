package usecase

import (
	"math"

	"FinFusion/internal/domain/models"
)

const (
	BuyThreshold  = 0.7
	SellThreshold = 0.3
)

// Classify maps a fused score to a directional signal. Confidence is the
// distance from neutral scaled to [0,1].
func Classify(symbol string, fused float64) models.Signal {
	fused = models.Clamp01(fused)
	kind := models.SignalHold
	switch {
	case fused > BuyThreshold:
		kind = models.SignalBuy
	case fused < SellThreshold:
		kind = models.SignalSell
	}
	return models.Signal{
		Symbol:     symbol,
		Kind:       kind,
		Confidence: Confidence(fused),
	}
}

// Confidence returns |fused-0.5|*2.
func Confidence(fused float64) float64 {
	return models.Clamp01(math.Abs(models.Clamp01(fused)-NeutralScore) * 2)
}
