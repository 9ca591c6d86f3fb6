package cache

import (
	"context"
	"errors"
	"io"
	"time"

	"FinFusion/pkg/logger"
)

// Resilient wraps a Service so that backend outages degrade instead of
// failing callers. Reads turn into misses and writes are logged and
// dropped. Increment and TryLock still surface errors so callers can
// decide whether to fail open.
type Resilient struct {
	next    Service
	log     *logger.Logger
	timeout time.Duration
	onError func(op string)
}

func NewResilient(next Service, lgr *logger.Logger, opts ...ResilientOption) *Resilient {
	if lgr == nil {
		lgr = logger.Nop()
	}
	r := &Resilient{
		next:    next,
		log:     lgr.Named("cache"),
		timeout: 500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Resilient) fail(op, key string, err error) {
	r.log.Warn("cache backend failure",
		logger.String("op", op),
		logger.String("key", key),
		logger.Error(err),
	)
	if r.onError != nil {
		r.onError(op)
	}
}

func (r *Resilient) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.timeout)
}

func (r *Resilient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	ctx, cancel := r.bound(ctx)
	defer cancel()
	if err := r.next.Set(ctx, key, value, expiration); err != nil {
		r.fail("set", key, err)
	}
	return nil
}

func (r *Resilient) Get(ctx context.Context, key string, dest interface{}) error {
	ctx, cancel := r.bound(ctx)
	defer cancel()
	err := r.next.Get(ctx, key, dest)
	if err == nil || errors.Is(err, ErrCacheMiss) {
		return err
	}
	r.fail("get", key, err)
	return ErrCacheMiss
}

func (r *Resilient) Delete(ctx context.Context, keys ...string) error {
	ctx, cancel := r.bound(ctx)
	defer cancel()
	if err := r.next.Delete(ctx, keys...); err != nil {
		r.fail("delete", firstKey(keys), err)
	}
	return nil
}

func (r *Resilient) Exists(ctx context.Context, keys ...string) (bool, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()
	ok, err := r.next.Exists(ctx, keys...)
	if err != nil {
		r.fail("exists", firstKey(keys), err)
		return false, nil
	}
	return ok, nil
}

func (r *Resilient) Increment(ctx context.Context, key string, window time.Duration) (int64, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()
	n, err := r.next.Increment(ctx, key, window)
	if err != nil {
		r.fail("increment", key, err)
	}
	return n, err
}

func (r *Resilient) MGet(ctx context.Context, keys ...string) (map[string]string, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()
	out, err := r.next.MGet(ctx, keys...)
	if err != nil {
		r.fail("mget", firstKey(keys), err)
		return make(map[string]string), nil
	}
	return out, nil
}

func (r *Resilient) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()
	ok, err := r.next.TryLock(ctx, key, ttl)
	if err != nil {
		r.fail("trylock", key, err)
	}
	return ok, err
}

func (r *Resilient) Unlock(ctx context.Context, key string) error {
	ctx, cancel := r.bound(ctx)
	defer cancel()
	if err := r.next.Unlock(ctx, key); err != nil {
		r.fail("unlock", key, err)
	}
	return nil
}

func (r *Resilient) Ping(ctx context.Context) error {
	ctx, cancel := r.bound(ctx)
	defer cancel()
	return r.next.Ping(ctx)
}

// Close releases the wrapped backend when it holds resources.
func (r *Resilient) Close() error {
	if c, ok := r.next.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func firstKey(keys []string) string {
	if len(keys) == 0 {
		return ""
	}
	return keys[0]
}

var _ Service = (*Resilient)(nil)
