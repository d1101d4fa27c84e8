package queue

import (
	"context"
	"time"

	"admissions-portal/internal/listing"
	"admissions-portal/internal/models"
)

// View splits the admin list between live and archived queues.
type View string

const (
	ViewActive   View = "active"
	ViewArchived View = "archived"
)

type ListFilter struct {
	listing.Query
	View View
}

// EntryWithQueue is an entry joined with its parent queue's name.
type EntryWithQueue struct {
	models.QueueEntry
	QueueName string `json:"queue_name" db:"queue_name"`
}

// Store is the persistence the queue service needs. Implementations return
// ErrNotFound for missing rows and ErrStaleEntry when a guarded update
// matches nothing.
type Store interface {
	CreateQueue(ctx context.Context, q *models.QueueEvent) error
	GetQueue(ctx context.Context, id int64) (models.QueueEvent, error)
	GetQueueBySlug(ctx context.Context, slug string) (models.QueueEvent, error)
	ListQueues(ctx context.Context, f ListFilter) ([]models.QueueEventWithStats, int, error)
	OpenQueues(ctx context.Context) ([]models.QueueEvent, error)
	SetQueueStatus(ctx context.Context, id int64, status models.EventStatus) error
	// DeleteQueue removes the queue and all of its entries.
	DeleteQueue(ctx context.Context, id int64) error

	// InsertEntry allocates position as max+1 within the queue and fills
	// ID, Position, Version and timestamps on e.
	InsertEntry(ctx context.Context, e *models.QueueEntry) error
	GetEntry(ctx context.Context, id int64) (models.QueueEntry, error)
	GetEntryByToken(ctx context.Context, token string) (EntryWithQueue, error)
	EntriesByTokens(ctx context.Context, tokens []string) ([]EntryWithQueue, error)
	// ActiveEntries returns WAITING and SERVING entries of one queue.
	ActiveEntries(ctx context.Context, queueID int64) ([]models.QueueEntry, error)
	AllEntries(ctx context.Context, queueID int64) ([]models.QueueEntry, error)
	CountWaiting(ctx context.Context, queueID int64) (int, error)

	// TransitionEntry updates status only while the row is still in from.
	TransitionEntry(ctx context.Context, id int64, from, to models.EntryStatus) error
	// SwapPositions exchanges positions of a and b atomically, each update
	// guarded by the version carried on the argument.
	SwapPositions(ctx context.Context, a, b models.QueueEntry) error
	SetAdminMessage(ctx context.Context, id int64, msg string) error
	// MarkReminderSent sets sms_logs.reminder_sent unless already set and
	// reports whether this call set it.
	MarkReminderSent(ctx context.Context, id int64, at time.Time) (bool, error)

	FindStudent(ctx context.Context, studentID string) (models.StudentRecord, error)
}

// TriggerSink queues an outbound SMS for the dispatcher.
type TriggerSink interface {
	EnqueueTrigger(ctx context.Context, t *models.SMSTrigger) error
}

// SMSSwitch reads the global SMS master switch.
type SMSSwitch interface {
	SMSEnabled(ctx context.Context) bool
}
