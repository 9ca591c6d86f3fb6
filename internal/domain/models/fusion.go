package models

import (
	"math"
	"time"
)

// SourceKind identifies an opinion source.
type SourceKind string

const (
	SourceSatellite SourceKind = "satellite"
	SourceNews      SourceKind = "news"
	SourceOptions   SourceKind = "options"
	SourceWeb       SourceKind = "web"
	SourceSocial    SourceKind = "social"
)

// AllSources lists the source kinds in fusion order.
var AllSources = []SourceKind{SourceSatellite, SourceNews, SourceOptions, SourceWeb, SourceSocial}

// Opinion is a single source's view on a symbol, bounded to [0,1].
type Opinion struct {
	Source SourceKind `json:"source"`
	Symbol string     `json:"symbol"`
	Value  float64    `json:"value"`
}

// FusionScore is the weighted combination of the opinions that responded.
type FusionScore struct {
	Symbol     string                 `json:"symbol"`
	Value      float64                `json:"value"`
	Sources    map[SourceKind]float64 `json:"sources,omitempty"`
	ComputedAt time.Time              `json:"computedAt"`
}

type SignalKind string

const (
	SignalBuy  SignalKind = "BUY"
	SignalSell SignalKind = "SELL"
	SignalHold SignalKind = "HOLD"
)

// Valid reports whether k is one of BUY, SELL or HOLD.
func (k SignalKind) Valid() bool {
	return k == SignalBuy || k == SignalSell || k == SignalHold
}

// Signal is the directional reading of a fusion score.
type Signal struct {
	Symbol     string     `json:"symbol"`
	Kind       SignalKind `json:"kind"`
	Confidence float64    `json:"confidence"`
}

// Clamp01 bounds v to [0,1]. NaN maps to the neutral 0.5.
func Clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0.5
	}
	return math.Max(0, math.Min(1, v))
}
