package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// TemplateData is the free-form placeholder map carried by a trigger row.
type TemplateData map[string]interface{}

func (d TemplateData) Value() (driver.Value, error) {
	if d == nil {
		return "{}", nil
	}
	b, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (d *TemplateData) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*d = TemplateData{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported template_data type %T", src)
	}
	return json.Unmarshal(raw, d)
}

type SMSTemplate struct {
	ID              int64     `json:"id" db:"id"`
	TemplateKey     string    `json:"template_key" db:"template_key"`
	TemplateName    string    `json:"template_name" db:"template_name"`
	Category        string    `json:"category" db:"category"`
	MessageTemplate string    `json:"message_template" db:"message_template"`
	IsActive        bool      `json:"is_active" db:"is_active"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time `json:"updated_at" db:"updated_at"`
}

type SMSTrigger struct {
	ID               int64        `json:"id" db:"id"`
	SourceTable      string       `json:"source_table" db:"source_table"`
	Phone            string       `json:"phone" db:"phone"`
	TemplateKey      string       `json:"template_key" db:"template_key"`
	TemplateData     TemplateData `json:"template_data" db:"template_data"`
	SMSSent          bool         `json:"sms_sent" db:"sms_sent"`
	RetryCount       int          `json:"retry_count" db:"retry_count"`
	ErrorMessage     *string      `json:"error_message" db:"error_message"`
	SentAt           *time.Time   `json:"sent_at" db:"sent_at"`
	GatewayMessageID *string      `json:"gateway_message_id" db:"gateway_message_id"`
	CreatedAt        time.Time    `json:"created_at" db:"created_at"`
}

// TriggerResult is written back onto the trigger row once dispatch settles.
type TriggerResult struct {
	SMSSent          bool
	RetryCount       int
	ErrorMessage     *string
	SentAt           *time.Time
	GatewayMessageID *string
}

const (
	SMSLogSent   = "sent"
	SMSLogFailed = "failed"
)

type SMSLog struct {
	ID              int64     `json:"id" db:"id"`
	TriggerID       int64     `json:"trigger_id" db:"trigger_id"`
	Phone           string    `json:"phone" db:"phone"`
	MessageSent     string    `json:"message_sent" db:"message_sent"`
	Status          string    `json:"status" db:"status"`
	GatewayResponse *string   `json:"gateway_response" db:"gateway_response"`
	ErrorMessage    *string   `json:"error_message" db:"error_message"`
	RetryAttempt    int       `json:"retry_attempt" db:"retry_attempt"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
}

type UpdateTemplateRequest struct {
	MessageTemplate string `json:"message_template" validate:"required,max=640"`
	IsActive        bool   `json:"is_active"`
}
