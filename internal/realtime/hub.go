package realtime

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const subscriberBuffer = 16

type subscriber struct {
	hub    *Hub
	filter Filter
	ch     chan Change
	once   sync.Once
}

func (s *subscriber) C() <-chan Change { return s.ch }

func (s *subscriber) Close() {
	s.once.Do(func() {
		select {
		case s.hub.unregister <- s:
		case <-s.hub.done:
		}
	})
}

// Hub fans changes out to in-process subscribers. A subscriber whose buffer
// is full misses the change; it will catch up on the next one.
type Hub struct {
	register   chan *subscriber
	unregister chan *subscriber
	broadcast  chan Change
	done       chan struct{}
	stopOnce   sync.Once

	clients map[*subscriber]bool
	log     *slog.Logger
}

func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		register:   make(chan *subscriber),
		unregister: make(chan *subscriber),
		broadcast:  make(chan Change, 64),
		done:       make(chan struct{}),
		clients:    make(map[*subscriber]bool),
		log:        log.With(slog.String("component", "realtime")),
	}
}

// Run owns the subscriber set until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	defer h.stopOnce.Do(func() { close(h.done) })
	for {
		select {
		case <-ctx.Done():
			for s := range h.clients {
				delete(h.clients, s)
				close(s.ch)
			}
			return
		case s := <-h.register:
			h.clients[s] = true
		case s := <-h.unregister:
			if h.clients[s] {
				delete(h.clients, s)
				close(s.ch)
			}
		case c := <-h.broadcast:
			for s := range h.clients {
				if !s.filter.Match(c) {
					continue
				}
				select {
				case s.ch <- c:
				default:
					h.log.Debug("subscriber buffer full, change dropped",
						slog.String("table", c.Table), slog.Int64("queue_id", c.QueueID))
				}
			}
		}
	}
}

// Publish never blocks on slow subscribers; it only waits for the run loop.
func (h *Hub) Publish(ctx context.Context, c Change) error {
	if c.At.IsZero() {
		c.At = time.Now()
	}
	select {
	case h.broadcast <- c:
		return nil
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscribe registers a subscriber. After the hub stops, the returned
// subscription's channel is already closed.
func (h *Hub) Subscribe(f Filter) Subscription {
	s := &subscriber{hub: h, filter: f, ch: make(chan Change, subscriberBuffer)}
	select {
	case h.register <- s:
	case <-h.done:
		close(s.ch)
	}
	return s
}
