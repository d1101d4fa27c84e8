package realtime

import (
	"context"
	"time"
)

type Event string

const (
	EventInsert Event = "INSERT"
	EventUpdate Event = "UPDATE"
	EventDelete Event = "DELETE"
)

// Tables that publish changes.
const (
	TableQueueEntries = "queue_entries"
	TableQueueEvents  = "queue_events"
	TableSMSTriggers  = "sms_triggers"
	TableBankAPIKeys  = "bank_api_keys"
	TableRequestLogs  = "api_request_logs"
)

// Change describes one row mutation. Subscribers use it only as a signal to
// re-read a full snapshot; it never carries the row itself.
type Change struct {
	Table   string    `json:"table"`
	Event   Event     `json:"event"`
	QueueID int64     `json:"queue_id,omitempty"`
	EntryID int64     `json:"entry_id,omitempty"`
	Token   string    `json:"token,omitempty"`
	At      time.Time `json:"at"`
}

// Filter selects changes by table and, when QueueID is non-zero, by queue.
type Filter struct {
	Table   string
	QueueID int64
}

func (f Filter) Match(c Change) bool {
	if f.Table != "" && f.Table != c.Table {
		return false
	}
	if f.QueueID != 0 && f.QueueID != c.QueueID {
		return false
	}
	return true
}

type Subscription interface {
	C() <-chan Change
	// Close is safe to call more than once.
	Close()
}

// Notifier is the change-feed capability handed to services and sessions.
type Notifier interface {
	Publish(ctx context.Context, c Change) error
	Subscribe(f Filter) Subscription
}
