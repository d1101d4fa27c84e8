package handler

import (
	"context"
	"fmt"
	"html"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"admissions-portal/internal/helper"
	"admissions-portal/internal/http/middleware"
	"admissions-portal/internal/listing"
	"admissions-portal/internal/models"
	"admissions-portal/internal/queue"
	"admissions-portal/internal/realtime"
)

/*
|--------------------------------------------------------------------------
| Live list sessions
|--------------------------------------------------------------------------
*/

// Lists served on /ws/lists/:name and the permission each one needs.
var livePermissions = map[string]string{
	"queues":          models.PermissionQueue,
	"archived-queues": models.PermissionQueue,
	"banks":           models.PermissionRoot,
	"logs":            models.PermissionRoot,
}

// listAction is what the browser sends: {"action":"search","value":"kofi"}.
type listAction struct {
	Action string `json:"action"`
	Value  string `json:"value"`
}

// regionUpdate replaces the markup of one area of the list.
type regionUpdate struct {
	Type   string `json:"type"`
	Region string `json:"region"`
	HTML   string `json:"html"`
}

// ListUpgrade checks the list name and the caller's permission before the
// handshake. It runs after JWTAuth.
func (h *Handler) ListUpgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	perm, ok := livePermissions[c.Params("name")]
	if !ok {
		return fail(c, fiber.StatusNotFound, "Unknown list")
	}
	role, _ := c.Locals(middleware.LocalRole).(string)
	if !helper.HasAccess(role, middleware.Permissions(c), perm) {
		return fail(c, fiber.StatusForbidden, helper.ErrInvalidRole.Error())
	}
	return c.Next()
}

func (h *Handler) ListWS(conn *websocket.Conn) {
	client := realtime.NewClient(conn, "list", h.log)
	defer client.Close()
	client.KeepAlive()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var err error
	switch name := conn.Params("name"); name {
	case "queues", "archived-queues":
		view := queue.ViewActive
		if name == "archived-queues" {
			view = queue.ViewArchived
		}
		err = runListSession(ctx, h, client, realtime.Filter{}, func(ctx context.Context, q listing.Query) (listing.Result[models.QueueEventWithStats], error) {
			rows, total, err := h.queues.ListQueues(ctx, queue.ListFilter{Query: q, View: view})
			return listing.Result[models.QueueEventWithStats]{Data: rows, Count: total}, err
		}, renderQueueRow)
	case "banks":
		err = runListSession(ctx, h, client, realtime.Filter{Table: realtime.TableBankAPIKeys}, h.console.Banks, renderBankRow)
	case "logs":
		err = runListSession(ctx, h, client, realtime.Filter{Table: realtime.TableRequestLogs}, h.console.Logs, renderLogRow)
	default:
		err = fmt.Errorf("unknown list %q", name)
	}
	if err != nil {
		h.log.Warn("list session ended", slog.String("client", client.ID), slog.String("err", err.Error()))
	}
}

// runListSession binds one controller to the connection and feeds it the
// browser's actions until the peer leaves. Matching changes reload the
// current page.
func runListSession[T any](ctx context.Context, h *Handler, client *realtime.Client, filter realtime.Filter,
	fetch func(context.Context, listing.Query) (listing.Result[T], error), render func(T) string) error {
	region := func(name string) listing.Region {
		return listing.RegionFunc(func(markup string) {
			_ = client.WriteJSON(regionUpdate{Type: "region", Region: name, HTML: markup})
		})
	}

	ctrl, err := listing.New(ctx, listing.Config[T]{
		Container:  region("rows"),
		Toolbar:    region("toolbar"),
		Pagination: region("pagination"),
		Fetch:      listing.FetchFunc[T](fetch),
		Render:     listing.RenderFunc[T](render),
		Logger:     h.log,
	})
	if err != nil {
		return err
	}
	defer ctrl.Close()

	sendState := func() {
		_ = client.WriteJSON(fiber.Map{"type": "state", "state": ctrl.State()})
	}
	sendState()

	if h.notifier != nil {
		sub := h.notifier.Subscribe(filter)
		defer sub.Close()
		reload := realtime.NewDebouncer(h.refreshDelay, func() {
			ctrl.Load()
			sendState()
		})
		defer reload.Stop()

		go relayChanges(sub, client.Done(), reload.Trigger)
	}

	for {
		var msg listAction
		if err := client.ReadJSON(&msg); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}
		switch msg.Action {
		case "search":
			// The controller debounces; state follows from the delayed load.
			ctrl.HandleSearch(msg.Value)
			continue
		case "date":
			ctrl.HandleDate(msg.Value)
		case "next":
			ctrl.HandlePage(listing.Next)
		case "prev":
			ctrl.HandlePage(listing.Prev)
		case "reload":
			ctrl.Load()
		default:
			_ = client.WriteJSON(fiber.Map{"type": "error", "message": "unknown action " + msg.Action})
			continue
		}
		sendState()
	}
}

/*
|--------------------------------------------------------------------------
| Row renderers
|--------------------------------------------------------------------------
*/

func renderQueueRow(q models.QueueEventWithStats) string {
	return fmt.Sprintf(`<tr data-id="%d"><td>%s</td><td>%s</td><td><span class="badge badge-%s">%s</span></td>`+
		`<td>%d</td><td>%d</td><td>%d</td><td>%d</td></tr>`,
		q.ID, html.EscapeString(q.Name), html.EscapeString(q.Slug),
		html.EscapeString(string(q.Status)), html.EscapeString(string(q.Status)),
		q.Stats.Waiting, q.Stats.Serving, q.Stats.Served, q.Stats.Total)
}

func renderBankRow(b models.BankAPIKey) string {
	status := "Revoked"
	if b.IsActive {
		status = "Active"
	}
	return fmt.Sprintf(`<tr data-id="%d"><td>%s</td><td>%s</td><td><code>%s...</code></td><td>%s</td><td>%s</td></tr>`,
		b.ID, html.EscapeString(b.BankName), html.EscapeString(b.ContactEmail),
		html.EscapeString(b.APIKeyPrefix), status, b.ExpiresAt.Format(listing.DateLayout))
}

func renderLogRow(l models.RequestLog) string {
	bank := "-"
	if l.BankName != nil {
		bank = *l.BankName
	}
	return fmt.Sprintf(`<tr><td>%s</td><td>%s</td><td>%s</td><td>%s</td><td>%d</td><td>%dms</td></tr>`,
		l.RequestTimestamp.Format("2006-01-02 15:04:05"), html.EscapeString(bank),
		html.EscapeString(l.StudentIDQueried), html.EscapeString(l.ResponseStatus),
		l.HTTPStatusCode, l.ResponseTimeMS)
}
