package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errBackend = errors.New("connection refused")

type brokenCache struct{}

func (brokenCache) Set(context.Context, string, interface{}, time.Duration) error { return errBackend }
func (brokenCache) Get(context.Context, string, interface{}) error                { return errBackend }
func (brokenCache) Delete(context.Context, ...string) error                       { return errBackend }
func (brokenCache) Exists(context.Context, ...string) (bool, error)               { return false, errBackend }
func (brokenCache) Increment(context.Context, string, time.Duration) (int64, error) {
	return 0, errBackend
}
func (brokenCache) MGet(context.Context, ...string) (map[string]string, error) { return nil, errBackend }
func (brokenCache) TryLock(context.Context, string, time.Duration) (bool, error) {
	return false, errBackend
}
func (brokenCache) Unlock(context.Context, string) error { return errBackend }
func (brokenCache) Ping(context.Context) error           { return errBackend }

func TestResilientDegradesReadsAndWrites(t *testing.T) {
	var ops []string
	r := NewResilient(brokenCache{}, nil, WithErrorHook(func(op string) { ops = append(ops, op) }))
	ctx := context.Background()

	if err := r.Set(ctx, "k", "v", time.Minute); err != nil {
		t.Fatalf("set should swallow backend errors, got %v", err)
	}
	var s string
	if err := r.Get(ctx, "k", &s); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("get should degrade to miss, got %v", err)
	}
	if err := r.Delete(ctx, "k"); err != nil {
		t.Fatalf("delete should swallow backend errors, got %v", err)
	}
	m, err := r.MGet(ctx, "a", "b")
	if err != nil || len(m) != 0 {
		t.Fatalf("mget should degrade to empty, got %v %v", m, err)
	}
	if len(ops) != 4 {
		t.Fatalf("expected 4 hook calls, got %v", ops)
	}
}

func TestResilientSurfacesCounterAndLockErrors(t *testing.T) {
	r := NewResilient(brokenCache{}, nil)
	ctx := context.Background()

	if _, err := r.Increment(ctx, "rate_limit:x", time.Minute); !errors.Is(err, errBackend) {
		t.Fatalf("expected increment error, got %v", err)
	}
	if _, err := r.TryLock(ctx, "lock:job:x", time.Minute); !errors.Is(err, errBackend) {
		t.Fatalf("expected trylock error, got %v", err)
	}
	if err := r.Ping(ctx); err == nil {
		t.Fatalf("expected ping error")
	}
}

func TestResilientPassesThroughMiss(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	called := false
	r := NewResilient(mc, nil, WithErrorHook(func(string) { called = true }))

	var s string
	if err := r.Get(context.Background(), "absent", &s); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected miss, got %v", err)
	}
	if called {
		t.Fatalf("a plain miss is not a backend failure")
	}
}
