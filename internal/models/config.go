package models

import "time"

// SystemSetting is one raw row of the system_settings table.
type SystemSetting struct {
	Key       string    `json:"key" db:"setting_key"`
	Value     string    `json:"value" db:"setting_value"`
	ValueType string    `json:"value_type" db:"value_type"`
	Version   int       `json:"version" db:"version"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
