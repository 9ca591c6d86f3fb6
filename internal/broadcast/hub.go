package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	domrepo "FinFusion/internal/domain/repository"
	"FinFusion/pkg/metrics"
)

// ErrHubClosed is returned when subscribing to a closed hub.
var ErrHubClosed = errors.New("broadcast hub closed")

const defaultBuffer = 64

// Subscription is one consumer attached to a channel. Messages arrive on C
// as encoded JSON. C is closed on Unsubscribe or when the hub closes.
type Subscription struct {
	id      uint64
	channel string
	ch      chan []byte
	once    sync.Once
}

func (s *Subscription) Channel() string { return s.channel }

// C returns the delivery stream.
func (s *Subscription) C() <-chan []byte { return s.ch }

func (s *Subscription) close() {
	s.once.Do(func() { close(s.ch) })
}

// HubStats is a point-in-time view of the hub.
type HubStats struct {
	Channels    int   `json:"channels"`
	Subscribers int   `json:"subscribers"`
	Delivered   int64 `json:"delivered"`
	Dropped     int64 `json:"dropped"`
}

// Hub fans published messages out to the live subscribers of a channel.
// Delivery is best effort: a subscriber whose buffer is full misses the
// message, and nothing is kept for subscribers that join later.
type Hub struct {
	mu       sync.RWMutex
	channels map[string]map[uint64]*Subscription
	nextID   uint64
	closed   bool

	delivered atomic.Int64
	dropped   atomic.Int64
	metrics   domrepo.Metrics
}

func NewHub(m domrepo.Metrics) *Hub {
	if m == nil {
		m = metrics.Nop{}
	}
	return &Hub{channels: make(map[string]map[uint64]*Subscription), metrics: m}
}

// Subscribe attaches a new subscriber to channel with the given buffer.
func (h *Hub) Subscribe(channel string, buffer int) (*Subscription, error) {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, ErrHubClosed
	}
	h.nextID++
	sub := &Subscription{id: h.nextID, channel: channel, ch: make(chan []byte, buffer)}
	subs, ok := h.channels[channel]
	if !ok {
		subs = make(map[uint64]*Subscription)
		h.channels[channel] = subs
	}
	subs[sub.id] = sub
	return sub, nil
}

// Unsubscribe detaches sub and closes its stream. It is idempotent.
func (h *Hub) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	h.mu.Lock()
	if subs, ok := h.channels[sub.channel]; ok {
		delete(subs, sub.id)
		if len(subs) == 0 {
			delete(h.channels, sub.channel)
		}
	}
	h.mu.Unlock()
	sub.close()
}

// Publish delivers payload to every current subscriber of channel without
// blocking and returns how many received it. A channel without subscribers
// is not an error.
func (h *Hub) Publish(ctx context.Context, channel string, payload interface{}) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	data, err := encode(payload)
	if err != nil {
		return 0, err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return 0, ErrHubClosed
	}
	n := 0
	for _, sub := range h.channels[channel] {
		select {
		case sub.ch <- data:
			n++
		default:
			h.dropped.Add(1)
			h.metrics.RecordError("broadcast_drop")
		}
	}
	h.delivered.Add(int64(n))
	h.metrics.RecordBroadcast(channel, n)
	return n, nil
}

// Subscribers returns the number of subscribers on channel.
func (h *Hub) Subscribers(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels[channel])
}

func (h *Hub) Stats() HubStats {
	h.mu.RLock()
	defer h.mu.RUnlock()
	st := HubStats{
		Channels:  len(h.channels),
		Delivered: h.delivered.Load(),
		Dropped:   h.dropped.Load(),
	}
	for _, subs := range h.channels {
		st.Subscribers += len(subs)
	}
	return st
}

// Close detaches every subscriber. Later publishes and subscribes fail.
func (h *Hub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	for name, subs := range h.channels {
		for _, sub := range subs {
			sub.close()
		}
		delete(h.channels, name)
	}
	return nil
}

func encode(payload interface{}) ([]byte, error) {
	switch v := payload.(type) {
	case []byte:
		return v, nil
	case json.RawMessage:
		return v, nil
	default:
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode broadcast payload: %w", err)
		}
		return b, nil
	}
}

var _ domrepo.Broadcaster = (*Hub)(nil)
