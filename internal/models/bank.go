package models

import "time"

type BankAPIKey struct {
	ID           int64     `json:"id" db:"id"`
	BankName     string    `json:"bank_name" db:"bank_name"`
	ContactEmail string    `json:"contact_email" db:"contact_email"`
	ContactPhone string    `json:"contact_phone" db:"contact_phone"`
	APIKeyPrefix string    `json:"api_key_prefix" db:"api_key_prefix"`
	APIKeyHash   string    `json:"-" db:"api_key_hash"`
	IsActive     bool      `json:"is_active" db:"is_active"`
	ExpiresAt    time.Time `json:"expires_at" db:"expires_at"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

type CreateBankRequest struct {
	BankName     string `json:"bank_name" validate:"required,max=255"`
	ContactEmail string `json:"contact_email" validate:"required,email"`
	ContactPhone string `json:"contact_phone" validate:"required,max=20"`
}

const (
	RequestSuccess     = "success"
	RequestError       = "error"
	RequestRateLimited = "rate_limited"
	RequestAuthFailed  = "auth_failed"
)

type RequestLog struct {
	ID               int64     `json:"id" db:"id"`
	RequestID        string    `json:"request_id" db:"request_id"`
	BankName         *string   `json:"bank_name" db:"bank_name"`
	StudentIDQueried string    `json:"student_id_queried" db:"student_id_queried"`
	ResponseStatus   string    `json:"response_status" db:"response_status"`
	HTTPStatusCode   int       `json:"http_status_code" db:"http_status_code"`
	ResponseTimeMS   int       `json:"response_time_ms" db:"response_time_ms"`
	IPAddress        *string   `json:"ip_address" db:"ip_address"`
	UserAgent        *string   `json:"user_agent" db:"user_agent"`
	ErrorCode        *string   `json:"error_code" db:"error_code"`
	RequestTimestamp time.Time `json:"request_timestamp" db:"request_timestamp"`
}
