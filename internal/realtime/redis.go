package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const channelPrefix = "changes:"

func Channel(table string) string {
	return channelPrefix + table
}

// RedisNotifier publishes changes on Redis so every server instance sees
// them, and relays whatever arrives to its local Hub.
type RedisNotifier struct {
	rdb *redis.Client
	hub *Hub
	log *slog.Logger
}

func NewRedisNotifier(rdb *redis.Client, hub *Hub, log *slog.Logger) *RedisNotifier {
	if log == nil {
		log = slog.Default()
	}
	return &RedisNotifier{
		rdb: rdb,
		hub: hub,
		log: log.With(slog.String("component", "realtime.redis")),
	}
}

func (n *RedisNotifier) Publish(ctx context.Context, c Change) error {
	if c.At.IsZero() {
		c.At = time.Now()
	}
	payload, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal change: %w", err)
	}
	if err := n.rdb.Publish(ctx, Channel(c.Table), payload).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", Channel(c.Table), err)
	}
	return nil
}

func (n *RedisNotifier) Subscribe(f Filter) Subscription {
	return n.hub.Subscribe(f)
}

// Run relays Redis messages into the hub until ctx is cancelled.
func (n *RedisNotifier) Run(ctx context.Context) error {
	ps := n.rdb.PSubscribe(ctx, channelPrefix+"*")
	defer ps.Close()

	if _, err := ps.Receive(ctx); err != nil {
		return fmt.Errorf("psubscribe: %w", err)
	}
	n.log.Info("listening for changes", slog.String("pattern", channelPrefix+"*"))

	msgs := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			c, err := decodeChange(msg.Channel, msg.Payload)
			if err != nil {
				n.log.Warn("bad change payload", slog.String("channel", msg.Channel), slog.String("err", err.Error()))
				continue
			}
			if err := n.hub.Publish(ctx, c); err != nil {
				return nil
			}
		}
	}
}

func decodeChange(channel, payload string) (Change, error) {
	var c Change
	if err := json.Unmarshal([]byte(payload), &c); err != nil {
		return c, err
	}
	if c.Table == "" {
		c.Table = strings.TrimPrefix(channel, channelPrefix)
	}
	return c, nil
}
