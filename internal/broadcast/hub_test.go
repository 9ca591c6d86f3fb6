package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"FinFusion/internal/domain/models"
	"FinFusion/pkg/metrics"
)

func TestPublishWithoutSubscribers(t *testing.T) {
	h := NewHub(nil)
	ctx := context.Background()

	n, err := h.Publish(ctx, "alerts", map[string]string{"id": "a1"})
	if err != nil || n != 0 {
		t.Fatalf("expected silent drop, got %d %v", n, err)
	}

	sub, _ := h.Subscribe("alerts", 4)
	select {
	case msg := <-sub.C():
		t.Fatalf("late subscriber received an earlier event: %s", msg)
	default:
	}
}

func TestPublishFansOutPerChannel(t *testing.T) {
	h := NewHub(nil)
	ctx := context.Background()
	a, _ := h.Subscribe("alerts", 4)
	b, _ := h.Subscribe("alerts", 4)
	other, _ := h.Subscribe("market", 4)

	env := models.Envelope{Type: models.MessageNewAlert, Channel: "alerts", Timestamp: time.Unix(0, 0).UTC()}
	n, err := h.Publish(ctx, "alerts", env)
	if err != nil || n != 2 {
		t.Fatalf("expected 2 deliveries, got %d %v", n, err)
	}

	for _, sub := range []*Subscription{a, b} {
		var got models.Envelope
		if err := json.Unmarshal(<-sub.C(), &got); err != nil || got.Type != models.MessageNewAlert {
			t.Fatalf("unexpected message %+v %v", got, err)
		}
	}
	select {
	case <-other.C():
		t.Fatalf("message leaked to another channel")
	default:
	}
}

func TestSlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	h := NewHub(nil)
	ctx := context.Background()
	slow, _ := h.Subscribe("alerts", 1)
	fast, _ := h.Subscribe("alerts", 8)

	for i := 0; i < 3; i++ {
		if _, err := h.Publish(ctx, "alerts", []byte(`{}`)); err != nil {
			t.Fatalf("publish: %v", err)
		}
	}
	if len(slow.C()) != 1 || len(fast.C()) != 3 {
		t.Fatalf("unexpected buffer depths %d/%d", len(slow.C()), len(fast.C()))
	}
	st := h.Stats()
	if st.Dropped != 2 || st.Delivered != 4 || st.Subscribers != 2 || st.Channels != 1 {
		t.Fatalf("unexpected stats %+v", st)
	}
}

func TestUnsubscribeAndClose(t *testing.T) {
	h := NewHub(nil)
	ctx := context.Background()
	sub, _ := h.Subscribe("alerts", 1)

	h.Unsubscribe(sub)
	h.Unsubscribe(sub)
	if _, ok := <-sub.C(); ok {
		t.Fatalf("expected closed stream after unsubscribe")
	}
	if h.Subscribers("alerts") != 0 {
		t.Fatalf("expected no subscribers")
	}

	live, _ := h.Subscribe("alerts", 1)
	_ = h.Close()
	if _, ok := <-live.C(); ok {
		t.Fatalf("expected stream closed by hub close")
	}
	if _, err := h.Subscribe("alerts", 1); !errors.Is(err, ErrHubClosed) {
		t.Fatalf("expected closed hub error, got %v", err)
	}
	if _, err := h.Publish(ctx, "alerts", []byte(`{}`)); !errors.Is(err, ErrHubClosed) {
		t.Fatalf("expected closed hub error, got %v", err)
	}
}

type broadcastRecorder struct {
	metrics.Nop
	mu    sync.Mutex
	calls map[string][]int
}

func (r *broadcastRecorder) RecordBroadcast(channel string, delivered int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls[channel] = append(r.calls[channel], delivered)
}

func TestPublishRecordsLocalDeliveries(t *testing.T) {
	rec := &broadcastRecorder{calls: make(map[string][]int)}
	h := NewHub(rec)
	ctx := context.Background()
	_, _ = h.Subscribe("alerts", 4)
	_, _ = h.Subscribe("alerts", 4)

	if _, err := h.Publish(ctx, "alerts", map[string]string{"id": "a1"}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if _, err := h.Publish(ctx, "market", map[string]string{"id": "m1"}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if got := rec.calls["alerts"]; len(got) != 1 || got[0] != 2 {
		t.Fatalf("expected one record of 2 deliveries, got %v", got)
	}
	if got := rec.calls["market"]; len(got) != 1 || got[0] != 0 {
		t.Fatalf("expected a zero delivery record, got %v", got)
	}
}
