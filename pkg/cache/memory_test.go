package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestMemory(t *testing.T) (*MemoryCache, *fakeClock) {
	t.Helper()
	clk := &fakeClock{now: time.Date(2024, 10, 10, 10, 0, 0, 0, time.UTC)}
	mc := NewMemoryCache(WithMemoryClock(clk.Now), WithMemoryCleanup(time.Hour))
	t.Cleanup(func() { _ = mc.Close() })
	return mc, clk
}

type payload struct {
	Symbol string  `json:"symbol"`
	Value  float64 `json:"value"`
}

func TestMemorySetGetJSON(t *testing.T) {
	mc, _ := newTestMemory(t)
	ctx := context.Background()

	if err := mc.Set(ctx, "fusion:TCS", payload{Symbol: "TCS", Value: 0.8}, time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	var got payload
	if err := mc.Get(ctx, "fusion:TCS", &got); err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Symbol != "TCS" || got.Value != 0.8 {
		t.Fatalf("unexpected value %+v", got)
	}
}

func TestMemoryExpiry(t *testing.T) {
	mc, clk := newTestMemory(t)
	ctx := context.Background()

	_ = mc.Set(ctx, "k", "v", 10*time.Second)
	clk.Advance(9 * time.Second)
	var s string
	if err := mc.Get(ctx, "k", &s); err != nil || s != "v" {
		t.Fatalf("expected hit before expiry, got %q %v", s, err)
	}
	clk.Advance(time.Second)
	if err := mc.Get(ctx, "k", &s); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected miss at expiry, got %v", err)
	}
}

func TestMemoryZeroExpiryPersists(t *testing.T) {
	mc, clk := newTestMemory(t)
	ctx := context.Background()

	_ = mc.Set(ctx, "k", "v", 0)
	clk.Advance(365 * 24 * time.Hour)
	ok, _ := mc.Exists(ctx, "k")
	if !ok {
		t.Fatalf("expected key without expiry to persist")
	}
}

func TestMemoryIncrementWindow(t *testing.T) {
	mc, clk := newTestMemory(t)
	ctx := context.Background()

	for i := int64(1); i <= 3; i++ {
		n, err := mc.Increment(ctx, "rate_limit:1.2.3.4", time.Minute)
		if err != nil {
			t.Fatalf("increment: %v", err)
		}
		if n != i {
			t.Fatalf("expected %d, got %d", i, n)
		}
		clk.Advance(10 * time.Second)
	}

	// window is fixed at creation, later increments do not extend it
	clk.Advance(30 * time.Second)
	n, _ := mc.Increment(ctx, "rate_limit:1.2.3.4", time.Minute)
	if n != 1 {
		t.Fatalf("expected counter reset after window, got %d", n)
	}
}

func TestMemoryTryLock(t *testing.T) {
	mc, clk := newTestMemory(t)
	ctx := context.Background()

	ok, _ := mc.TryLock(ctx, "lock:job:fusion", time.Minute)
	if !ok {
		t.Fatalf("expected first lock to succeed")
	}
	ok, _ = mc.TryLock(ctx, "lock:job:fusion", time.Minute)
	if ok {
		t.Fatalf("expected second lock to fail")
	}
	clk.Advance(time.Minute)
	ok, _ = mc.TryLock(ctx, "lock:job:fusion", time.Minute)
	if !ok {
		t.Fatalf("expected lock to be free after ttl")
	}
	_ = mc.Unlock(ctx, "lock:job:fusion")
	ok, _ = mc.TryLock(ctx, "lock:job:fusion", time.Minute)
	if !ok {
		t.Fatalf("expected lock to be free after unlock")
	}
}

func TestMemoryEvictsLeastRecentlyUsed(t *testing.T) {
	clk := &fakeClock{now: time.Date(2024, 10, 10, 10, 0, 0, 0, time.UTC)}
	mc := NewMemoryCache(WithMemoryMaxSize(2), WithMemoryClock(clk.Now), WithMemoryCleanup(time.Hour))
	defer mc.Close()
	ctx := context.Background()

	_ = mc.Set(ctx, "a", "1", 0)
	clk.Advance(time.Second)
	_ = mc.Set(ctx, "b", "2", 0)
	clk.Advance(time.Second)
	var s string
	_ = mc.Get(ctx, "a", &s)
	clk.Advance(time.Second)
	_ = mc.Set(ctx, "c", "3", 0)

	if ok, _ := mc.Exists(ctx, "b"); ok {
		t.Fatalf("expected b to be evicted")
	}
	if ok, _ := mc.Exists(ctx, "a", "c"); !ok {
		t.Fatalf("expected a and c to remain")
	}
	if mc.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", mc.Len())
	}
}

func TestMGetTyped(t *testing.T) {
	mc, _ := newTestMemory(t)
	ctx := context.Background()

	_ = mc.Set(ctx, "market:TCS", payload{Symbol: "TCS", Value: 3500}, time.Minute)
	_ = mc.Set(ctx, "market:ITC", payload{Symbol: "ITC", Value: 450}, time.Minute)

	got, err := MGetTyped[payload](ctx, mc, "market:TCS", "market:ITC", "market:NONE")
	if err != nil {
		t.Fatalf("mget: %v", err)
	}
	if len(got) != 2 || got["market:ITC"].Value != 450 {
		t.Fatalf("unexpected result %+v", got)
	}
}
