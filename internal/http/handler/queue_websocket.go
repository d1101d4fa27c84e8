package handler

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"admissions-portal/internal/realtime"
)

/*
|--------------------------------------------------------------------------
| Live boards
|--------------------------------------------------------------------------
*/

type snapshotFunc func(ctx context.Context) (any, error)

// UpgradeOnly rejects plain HTTP requests on WebSocket routes.
func UpgradeOnly(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	return c.Next()
}

// liveSession sends a snapshot on connect and again after each burst of
// matching changes. It returns when the peer goes away.
func (h *Handler) liveSession(conn *websocket.Conn, kind string, filter realtime.Filter, snapshot snapshotFunc) {
	client := realtime.NewClient(conn, kind, h.log)
	defer client.Close()
	client.KeepAlive()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	push := func() {
		data, err := snapshot(ctx)
		if err != nil {
			if ctx.Err() == nil {
				_ = client.WriteJSON(fiber.Map{"type": "error", "message": err.Error()})
			}
			return
		}
		_ = client.WriteJSON(fiber.Map{"type": "snapshot", "data": data})
	}

	if h.notifier != nil {
		sub := h.notifier.Subscribe(filter)
		defer sub.Close()

		refresh := realtime.NewDebouncer(h.refreshDelay, push)
		defer refresh.Stop()

		go relayChanges(sub, client.Done(), refresh.Trigger)
	}

	push()
	client.Drain()
}

// MonitorWS streams the admin monitor of one queue.
func (h *Handler) MonitorWS(conn *websocket.Conn) {
	id, ok := wsID(conn)
	if !ok {
		_ = conn.WriteJSON(fiber.Map{"type": "error", "message": "Invalid queue id"})
		return
	}
	h.liveSession(conn, "monitor", realtime.Filter{QueueID: id}, func(ctx context.Context) (any, error) {
		return h.queues.Monitor(ctx, id)
	})
}

// StatusWS streams one participant's status.
func (h *Handler) StatusWS(conn *websocket.Conn) {
	token := conn.Params("token")
	if token == "" {
		token = conn.Query("token")
	}
	first, err := h.queues.Status(context.Background(), token)
	if err != nil {
		_ = conn.WriteJSON(fiber.Map{"type": "error", "message": err.Error()})
		return
	}
	h.log.Debug("status session", slog.Int64("queue_id", first.QueueID))

	filter := realtime.Filter{Table: realtime.TableQueueEntries, QueueID: first.QueueID}
	h.liveSession(conn, "status", filter, func(ctx context.Context) (any, error) {
		return h.queues.Status(ctx, token)
	})
}

func wsID(conn *websocket.Conn) (int64, bool) {
	id, err := strconv.ParseInt(conn.Params("id"), 10, 64)
	return id, err == nil && id > 0
}

// relayChanges calls trigger for every change on sub until done closes or the
// hub closes the subscription.
func relayChanges(sub realtime.Subscription, done <-chan struct{}, trigger func()) {
	for {
		select {
		case _, ok := <-sub.C():
			if !ok {
				return
			}
			trigger()
		case <-done:
			return
		}
	}
}
