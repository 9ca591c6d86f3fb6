package broadcast

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	domrepo "FinFusion/internal/domain/repository"
	applogger "FinFusion/pkg/logger"
)

const relayPrefix = "bcast:"

// RedisRelay publishes through Redis pub/sub so every replica's hub
// delivers the message. If Redis rejects a publish the message is
// delivered to the local hub only.
type RedisRelay struct {
	hub    *Hub
	rdb    *redis.Client
	prefix string
	l      *applogger.Logger
}

// NewRedisRelay relays on "<namespace>:bcast:<channel>".
func NewRedisRelay(hub *Hub, rdb *redis.Client, namespace string, l *applogger.Logger) *RedisRelay {
	prefix := relayPrefix
	if namespace != "" {
		prefix = namespace + ":" + relayPrefix
	}
	if l == nil {
		l = applogger.Nop()
	}
	return &RedisRelay{hub: hub, rdb: rdb, prefix: prefix, l: l.Named("relay")}
}

// Publish returns the number of replicas that received the message, or
// the local delivery count after a fallback.
func (r *RedisRelay) Publish(ctx context.Context, channel string, payload interface{}) (int, error) {
	data, err := encode(payload)
	if err != nil {
		return 0, err
	}
	n, err := r.rdb.Publish(ctx, r.prefix+channel, data).Result()
	if err != nil {
		r.l.Warn("relay publish failed, delivering locally",
			applogger.String("channel", channel),
			applogger.Error(err),
		)
		return r.hub.Publish(ctx, channel, data)
	}
	return int(n), nil
}

// Run forwards relayed messages into the local hub until ctx is done.
func (r *RedisRelay) Run(ctx context.Context) error {
	ps := r.rdb.PSubscribe(ctx, r.prefix+"*")
	defer ps.Close()

	if _, err := ps.Receive(ctx); err != nil {
		return fmt.Errorf("relay subscribe: %w", err)
	}
	r.l.Info("relay subscribed", applogger.String("pattern", r.prefix+"*"))

	ch := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			channel := strings.TrimPrefix(msg.Channel, r.prefix)
			if _, err := r.hub.Publish(ctx, channel, []byte(msg.Payload)); err != nil {
				r.l.Debug("relay delivery failed", applogger.String("channel", channel), applogger.Error(err))
			}
		}
	}
}

var _ domrepo.Broadcaster = (*RedisRelay)(nil)
