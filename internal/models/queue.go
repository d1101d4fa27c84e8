package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

type EventStatus string

const (
	EventOpen     EventStatus = "OPEN"
	EventPaused   EventStatus = "PAUSED"
	EventClosed   EventStatus = "CLOSED"
	EventArchived EventStatus = "ARCHIVED"
)

type EntryStatus string

const (
	EntryWaiting   EntryStatus = "WAITING"
	EntryServing   EntryStatus = "SERVING"
	EntryCompleted EntryStatus = "COMPLETED"
	EntryNoShow    EntryStatus = "NO_SHOW"
	EntryRemoved   EntryStatus = "REMOVED"
)

// Terminal reports whether no further transition is allowed out of s.
func (s EntryStatus) Terminal() bool {
	return s == EntryCompleted || s == EntryNoShow || s == EntryRemoved
}

// Active entries are the ones shown on boards and counted for positions.
func (s EntryStatus) Active() bool {
	return s == EntryWaiting || s == EntryServing
}

const (
	SettingsVersion          = 1
	DefaultReminderThreshold = 3
)

type SMSConfig struct {
	EnabledJoin       bool `json:"enabled_join"`
	EnabledReminder   bool `json:"enabled_reminder"`
	ReminderThreshold int  `json:"reminder_threshold"`
}

// QueueSettings is stored as JSON on the queue_events row.
type QueueSettings struct {
	Version      int       `json:"version"`
	SupportPhone string    `json:"support_phone,omitempty"`
	SMS          SMSConfig `json:"sms_config"`
}

// Normalize fills defaults for rows written before thresholds were configurable.
func (s *QueueSettings) Normalize() {
	if s.Version == 0 {
		s.Version = SettingsVersion
	}
	if s.SMS.ReminderThreshold == 0 {
		s.SMS.ReminderThreshold = DefaultReminderThreshold
	}
}

func (s QueueSettings) Validate() error {
	if s.Version > SettingsVersion {
		return fmt.Errorf("unsupported settings version %d", s.Version)
	}
	if s.SMS.ReminderThreshold < 1 {
		return errors.New("reminder_threshold must be at least 1")
	}
	return nil
}

func (s QueueSettings) Value() (driver.Value, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (s *QueueSettings) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*s = QueueSettings{}
		s.Normalize()
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported settings type %T", src)
	}
	if err := json.Unmarshal(raw, s); err != nil {
		return err
	}
	s.Normalize()
	return s.Validate()
}

type QueueEvent struct {
	ID        int64         `json:"id" db:"id"`
	Name      string        `json:"name" db:"name"`
	Slug      string        `json:"slug" db:"slug"`
	Status    EventStatus   `json:"status" db:"status"`
	ExpiresAt *time.Time    `json:"expires_at" db:"expires_at"`
	Settings  QueueSettings `json:"settings" db:"settings"`
	CreatedBy *int64        `json:"created_by" db:"created_by"`
	CreatedAt time.Time     `json:"created_at" db:"created_at"`
}

// Joinable reports whether the public join form accepts new entries at now.
func (q QueueEvent) Joinable(now time.Time) bool {
	if q.Status != EventOpen {
		return false
	}
	return q.ExpiresAt == nil || !now.After(*q.ExpiresAt)
}

type QueueStats struct {
	Total   int `json:"total" db:"total"`
	Waiting int `json:"waiting" db:"waiting"`
	Serving int `json:"serving" db:"serving"`
	Served  int `json:"served" db:"served"`
	Removed int `json:"removed" db:"removed"`
}

type QueueEventWithStats struct {
	QueueEvent
	Stats QueueStats `json:"stats"`
}

// SMSLogs tracks notifications already sent for an entry.
type SMSLogs struct {
	ReminderSent   bool       `json:"reminder_sent,omitempty"`
	ReminderSentAt *time.Time `json:"reminder_sent_at,omitempty"`
	JoinSent       bool       `json:"join_sent,omitempty"`
}

func (l SMSLogs) Value() (driver.Value, error) {
	b, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (l *SMSLogs) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*l = SMSLogs{}
		return nil
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	}
	return fmt.Errorf("unsupported sms_logs type %T", src)
}

type QueueEntry struct {
	ID                int64       `json:"id" db:"id"`
	QueueID           int64       `json:"queue_id" db:"queue_id"`
	Token             string      `json:"token" db:"token"`
	StudentIdentifier string      `json:"student_identifier" db:"student_identifier"`
	StudentPhone      string      `json:"student_phone" db:"student_phone"`
	StudentMasterID   *int64      `json:"student_master_id" db:"student_master_id"`
	IsVerified        bool        `json:"is_verified" db:"is_verified"`
	Position          int         `json:"position" db:"position"`
	Status            EntryStatus `json:"status" db:"status"`
	AdminMessage      string      `json:"admin_message" db:"admin_message"`
	SMSLogs           SMSLogs     `json:"sms_logs" db:"sms_logs"`
	Version           int         `json:"version" db:"version"`
	CreatedAt         time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time   `json:"updated_at" db:"updated_at"`
}

type StudentRecord struct {
	ID        int64  `json:"id" db:"id"`
	StudentID string `json:"student_id" db:"student_id"`
	FirstName string `json:"first_name" db:"first_name"`
	Surname   string `json:"surname" db:"surname"`
}

func (s StudentRecord) FullName() string {
	return s.FirstName + " " + s.Surname
}

type CreateQueueRequest struct {
	Name            string     `json:"name" validate:"required,max=255"`
	Slug            string     `json:"slug" validate:"omitempty,max=255"`
	SupportPhone    string     `json:"support_phone" validate:"omitempty,max=20"`
	ExpiresAt       *time.Time `json:"expires_at"`
	SMSJoin         bool       `json:"sms_join"`
	SMSReminder     bool       `json:"sms_reminder"`
	ReminderTrigger int        `json:"reminder_threshold" validate:"omitempty,min=1,max=100"`
}

type UpdateQueueStatusRequest struct {
	Status EventStatus `json:"status" validate:"required,oneof=OPEN PAUSED CLOSED ARCHIVED"`
}

type JoinQueueRequest struct {
	StudentID string `json:"student_id" validate:"required,max=50"`
	Phone     string `json:"phone" validate:"required"`
}

type WalkInRequest struct {
	Name  string `json:"name" validate:"required,max=255"`
	Phone string `json:"phone" validate:"required"`
}

type UpdateEntryStatusRequest struct {
	Status EntryStatus `json:"status" validate:"required,oneof=WAITING SERVING COMPLETED NO_SHOW REMOVED"`
}

type AdminMessageRequest struct {
	Message string `json:"message" validate:"max=500"`
}
