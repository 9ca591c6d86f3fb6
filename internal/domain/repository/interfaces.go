package repository

import (
	"context"
	"time"

	"FinFusion/internal/domain/models"
)

// AlertStore durably stores alerts.
type AlertStore interface {
	Create(ctx context.Context, a *models.Alert) error
	Get(ctx context.Context, id string) (*models.Alert, error)
	List(ctx context.Context, f models.AlertFilter) ([]*models.Alert, error)
	// UpdateStatus moves an alert from one status to another. It returns
	// domain.ErrNotFound when the id is unknown and domain.ErrInvalidTransition
	// when the stored status no longer equals from.
	UpdateStatus(ctx context.Context, id string, from, to models.AlertStatus) (*models.Alert, error)
	// DeleteStale removes active or cancelled alerts whose expiry is before now.
	DeleteStale(ctx context.Context, now time.Time) (int64, error)
	Count(ctx context.Context, f models.AlertFilter) (int64, error)
	Close() error
}

// SnapshotHistory keeps historical market snapshots.
type SnapshotHistory interface {
	Store(ctx context.Context, s *models.MarketSnapshot) error
	StoreBatch(ctx context.Context, ss []*models.MarketSnapshot) error
	Query(ctx context.Context, symbol string, from, to time.Time, limit int) ([]*models.MarketSnapshot, error)
	Health(ctx context.Context) error
	Close() error
}

// AlertEventPublisher forwards persisted alerts to downstream consumers.
type AlertEventPublisher interface {
	PublishAlert(ctx context.Context, a *models.Alert) error
	Close() error
}

// Broadcaster fans a payload out to the live subscribers of a channel. The
// count is the receivers one hop away: local subscribers for the hub,
// subscribed replicas for the Redis relay.
type Broadcaster interface {
	Publish(ctx context.Context, channel string, payload interface{}) (int, error)
}

type Metrics interface {
	RecordFusionScore(symbol string, score float64)
	RecordSourceFailure(source string)
	RecordAlertGenerated(signal string)
	RecordAlertDropped(symbol string)
	RecordJob(job, result string, seconds float64)
	// RecordBroadcast is called by the hub with local deliveries only.
	RecordBroadcast(channel string, delivered int)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}
