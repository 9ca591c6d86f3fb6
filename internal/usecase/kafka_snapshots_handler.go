package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"FinFusion/internal/domain/models"
	domrepo "FinFusion/internal/domain/repository"
	"FinFusion/internal/middleware"
	pkgkafka "FinFusion/pkg/kafka"
)

// KafkaSnapshotsHandler feeds snapshots from a topic into the ingest pipeline.
type KafkaSnapshotsHandler struct {
	topic   string
	next    middleware.Ingester
	metrics domrepo.Metrics
}

func NewKafkaSnapshotsHandler(topic string, next middleware.Ingester, metrics domrepo.Metrics) *KafkaSnapshotsHandler {
	return &KafkaSnapshotsHandler{topic: topic, next: next, metrics: metrics}
}

func (h *KafkaSnapshotsHandler) Topic() string { return h.topic }

// incoming message schema: MarketSnapshot JSON, or the compact {symbol, t, c, v}
func (h *KafkaSnapshotsHandler) Handle(ctx context.Context, b []byte) error {
	var m struct {
		models.MarketSnapshot
		T int64   `json:"t"`
		C float64 `json:"c"`
		V int64   `json:"v"`
	}
	if err := json.Unmarshal(b, &m); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return fmt.Errorf("decode snapshot: %w", err)
	}
	snap := m.MarketSnapshot
	if snap.Timestamp.IsZero() && m.T > 0 {
		if m.T > 1e11 {
			snap.Timestamp = time.UnixMilli(m.T).UTC()
		} else {
			snap.Timestamp = time.Unix(m.T, 0).UTC()
		}
	}
	if snap.Price == 0 {
		snap.Price = m.C
	}
	if snap.Volume == 0 {
		snap.Volume = m.V
	}
	if snap.Source == "" {
		snap.Source = "kafka"
	}
	if !snap.Timestamp.IsZero() {
		h.metrics.RecordLatency("ingest_e2e_seconds", time.Since(snap.Timestamp).Seconds())
	}

	if err := h.next.Ingest(ctx, &snap); err != nil {
		h.metrics.RecordError("consumer_ingest")
		return err
	}
	return nil
}

var _ pkgkafka.MessageHandler = (*KafkaSnapshotsHandler)(nil)
