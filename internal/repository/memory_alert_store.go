package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"FinFusion/internal/domain"
	"FinFusion/internal/domain/models"
	"FinFusion/internal/domain/repository"
)

// MemoryAlertStore is a process-local AlertStore used when Postgres is
// disabled and in tests.
type MemoryAlertStore struct {
	mu     sync.RWMutex
	alerts map[string]models.Alert
	now    func() time.Time
}

func NewMemoryAlertStore() *MemoryAlertStore {
	return &MemoryAlertStore{alerts: make(map[string]models.Alert), now: time.Now}
}

func (s *MemoryAlertStore) Create(_ context.Context, a *models.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.alerts[a.ID]; ok {
		if cur.SameRecord(a) {
			return nil
		}
		return fmt.Errorf("alert %s: %w", a.ID, domain.ErrAlreadyExists)
	}
	s.alerts[a.ID] = *a
	return nil
}

func (s *MemoryAlertStore) Get(_ context.Context, id string) (*models.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.alerts[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &a, nil
}

func (s *MemoryAlertStore) List(_ context.Context, f models.AlertFilter) ([]*models.Alert, error) {
	s.mu.RLock()
	out := make([]*models.Alert, 0)
	for _, a := range s.alerts {
		if matches(&a, f) {
			a := a
			out = append(out, &a)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *MemoryAlertStore) Count(_ context.Context, f models.AlertFilter) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	for _, a := range s.alerts {
		if matches(&a, f) {
			n++
		}
	}
	return n, nil
}

func (s *MemoryAlertStore) UpdateStatus(_ context.Context, id string, from, to models.AlertStatus) (*models.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.alerts[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if a.Status != from {
		return nil, domain.ErrInvalidTransition
	}
	a.Status = to
	a.UpdatedAt = s.now()
	s.alerts[id] = a
	return &a, nil
}

func (s *MemoryAlertStore) DeleteStale(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, a := range s.alerts {
		if (a.Status == models.AlertActive || a.Status == models.AlertCancelled) && a.ExpiresAt.Before(now) {
			delete(s.alerts, id)
			n++
		}
	}
	return n, nil
}

func (s *MemoryAlertStore) Close() error { return nil }

func matches(a *models.Alert, f models.AlertFilter) bool {
	if f.Status != "" && a.Status != f.Status {
		return false
	}
	if f.Symbol != "" && a.Symbol != f.Symbol {
		return false
	}
	if f.ActiveAt != nil && !a.ExpiresAt.After(*f.ActiveAt) {
		return false
	}
	if f.CreatedAfter != nil && a.CreatedAt.Before(*f.CreatedAfter) {
		return false
	}
	return true
}

var _ repository.AlertStore = (*MemoryAlertStore)(nil)
