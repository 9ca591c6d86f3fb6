package repository

import (
	"context"
	"sync"
	"time"

	"FinFusion/internal/domain/models"
	"FinFusion/internal/domain/repository"
)

// MemorySnapshotStore keeps the most recent snapshots per symbol in a
// bounded ring. Used when ClickHouse is disabled.
type MemorySnapshotStore struct {
	mu        sync.RWMutex
	perSymbol int
	rows      map[string][]models.MarketSnapshot
}

func NewMemorySnapshotStore(perSymbol int) *MemorySnapshotStore {
	if perSymbol <= 0 {
		perSymbol = 1440
	}
	return &MemorySnapshotStore{perSymbol: perSymbol, rows: make(map[string][]models.MarketSnapshot)}
}

func (s *MemorySnapshotStore) Store(ctx context.Context, snap *models.MarketSnapshot) error {
	return s.StoreBatch(ctx, []*models.MarketSnapshot{snap})
}

func (s *MemorySnapshotStore) StoreBatch(_ context.Context, snaps []*models.MarketSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, snap := range snaps {
		if snap == nil {
			continue
		}
		rows := append(s.rows[snap.Symbol], *snap)
		if len(rows) > s.perSymbol {
			rows = rows[len(rows)-s.perSymbol:]
		}
		s.rows[snap.Symbol] = rows
	}
	return nil
}

// Query returns snapshots within [from, to], newest first.
func (s *MemorySnapshotStore) Query(_ context.Context, symbol string, from, to time.Time, limit int) ([]*models.MarketSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows := s.rows[symbol]
	out := make([]*models.MarketSnapshot, 0)
	for i := len(rows) - 1; i >= 0; i-- {
		ts := rows[i].Timestamp
		if ts.Before(from) || ts.After(to) {
			continue
		}
		r := rows[i]
		out = append(out, &r)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *MemorySnapshotStore) Health(context.Context) error { return nil }

func (s *MemorySnapshotStore) Close() error { return nil }

var _ repository.SnapshotHistory = (*MemorySnapshotStore)(nil)
