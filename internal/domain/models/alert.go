package models

import (
	"fmt"
	"time"
)

type AlertStatus string

const (
	AlertActive    AlertStatus = "active"
	AlertExecuted  AlertStatus = "executed"
	AlertCancelled AlertStatus = "cancelled"
	AlertExpired   AlertStatus = "expired"
)

// Valid reports whether s is a known status.
func (s AlertStatus) Valid() bool {
	switch s {
	case AlertActive, AlertExecuted, AlertCancelled, AlertExpired:
		return true
	}
	return false
}

// CanTransition reports whether an alert may move from s to next.
// Only active alerts move, and only to a terminal status.
func (s AlertStatus) CanTransition(next AlertStatus) bool {
	if s != AlertActive {
		return false
	}
	return next == AlertExecuted || next == AlertCancelled || next == AlertExpired
}

// Alert is a persisted, time-bounded trading recommendation.
type Alert struct {
	ID          string      `json:"id"`
	Symbol      string      `json:"symbol"`
	Signal      SignalKind  `json:"signal"`
	EntryPrice  float64     `json:"entryPrice"`
	TargetPrice float64     `json:"targetPrice"`
	StopLoss    float64     `json:"stopLoss"`
	Confidence  float64     `json:"confidence"`
	Rationale   string      `json:"rationale"`
	FusionScore float64     `json:"fusionScore"`
	Status      AlertStatus `json:"status"`
	CreatedAt   time.Time   `json:"createdAt"`
	ExpiresAt   time.Time   `json:"expiresAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`
}

// SameRecord reports whether b is the stored copy of a. Timestamps are
// compared at microsecond precision, which is what Postgres keeps.
func (a *Alert) SameRecord(b *Alert) bool {
	return a.ID == b.ID && a.Symbol == b.Symbol && a.Signal == b.Signal &&
		a.CreatedAt.Truncate(time.Microsecond).Equal(b.CreatedAt.Truncate(time.Microsecond))
}

// Validate checks the structural invariants of an alert.
func (a *Alert) Validate() error {
	if a.Symbol == "" {
		return fmt.Errorf("symbol is required")
	}
	if !a.Signal.Valid() {
		return fmt.Errorf("unknown signal %q", a.Signal)
	}
	if !a.Status.Valid() {
		return fmt.Errorf("unknown status %q", a.Status)
	}
	if a.EntryPrice <= 0 {
		return fmt.Errorf("entry price must be positive")
	}
	if a.Confidence < 0 || a.Confidence > 1 {
		return fmt.Errorf("confidence must be within [0,1]")
	}
	if !a.ExpiresAt.After(a.CreatedAt) {
		return fmt.Errorf("expiresAt must be after createdAt")
	}
	switch a.Signal {
	case SignalBuy:
		if !(a.TargetPrice > a.EntryPrice && a.EntryPrice > a.StopLoss) {
			return fmt.Errorf("BUY requires target > entry > stop loss")
		}
	case SignalSell:
		if !(a.TargetPrice < a.EntryPrice && a.EntryPrice < a.StopLoss) {
			return fmt.Errorf("SELL requires target < entry < stop loss")
		}
	case SignalHold:
		if a.TargetPrice != a.EntryPrice || a.StopLoss != a.EntryPrice {
			return fmt.Errorf("HOLD requires target and stop loss equal to entry")
		}
	}
	return nil
}

// AlertFilter narrows alert listings. Zero values mean "any".
type AlertFilter struct {
	Status       AlertStatus
	Symbol       string
	ActiveAt     *time.Time
	CreatedAfter *time.Time
	Limit        int
}

// AlertHealth summarises the alert store for health checks.
type AlertHealth struct {
	Status       string `json:"status"`
	ActiveAlerts int64  `json:"activeAlerts"`
	RecentAlerts int64  `json:"recentAlerts"`
	Cache        string `json:"cache"`
}
