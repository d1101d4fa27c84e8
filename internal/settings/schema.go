package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

type Kind string

const (
	KindBool   Kind = "boolean"
	KindNumber Kind = "number"
	KindString Kind = "string"
)

const (
	KeyMaintenanceMode   = "maintenance_mode"
	KeyRequestSigning    = "enable_request_signing"
	KeyGlobalRateLimit   = "global_rate_limit_per_minute"
	KeyAlertPhonePrimary = "alert_phone_primary"
	KeyGlobalSMSEnabled  = "GLOBAL_SMS_ENABLED"
)

var (
	ErrUnknownKey   = errors.New("unknown setting")
	ErrKindMismatch = errors.New("setting value has the wrong type")
	ErrOutOfRange   = errors.New("setting value out of range")
)

// Field describes one key of the closed settings schema.
type Field struct {
	Key         string `json:"key"`
	Label       string `json:"label"`
	Description string `json:"description"`
	Kind        Kind   `json:"type"`
	Danger      bool   `json:"danger,omitempty"`
	NonNegative bool   `json:"-"`
	Default     Value  `json:"default"`
}

var Schema = []Field{
	{
		Key:         KeyMaintenanceMode,
		Label:       "Maintenance Mode",
		Description: "Reject all partner API traffic with a maintenance response.",
		Kind:        KindBool,
		Danger:      true,
		Default:     Bool(false),
	},
	{
		Key:         KeyRequestSigning,
		Label:       "Enforce Request Signing",
		Description: "Require banks to sign requests using their secret key.",
		Kind:        KindBool,
		Default:     Bool(false),
	},
	{
		Key:         KeyGlobalRateLimit,
		Label:       "Global Rate Limit (per minute)",
		Description: "Maximum partner requests accepted per minute.",
		Kind:        KindNumber,
		NonNegative: true,
		Default:     Number(60),
	},
	{
		Key:         KeyAlertPhonePrimary,
		Label:       "Primary Alert Phone",
		Description: "Number notified when the API misbehaves.",
		Kind:        KindString,
		Default:     String(""),
	},
	{
		Key:         KeyGlobalSMSEnabled,
		Label:       "Global SMS Switch",
		Description: "Master switch for every queue SMS.",
		Kind:        KindBool,
		Default:     Bool(true),
	},
}

// Lookup returns the schema field for key.
func Lookup(key string) (Field, error) {
	for _, f := range Schema {
		if f.Key == key {
			return f, nil
		}
	}
	return Field{}, fmt.Errorf("%w: %q", ErrUnknownKey, key)
}

// Value is a tagged union over the three setting kinds.
type Value struct {
	Kind Kind
	b    bool
	n    float64
	s    string
}

func Bool(b bool) Value { return Value{Kind: KindBool, b: b} }
func Number(n float64) Value { return Value{Kind: KindNumber, n: n} }
func String(s string) Value { return Value{Kind: KindString, s: s} }
func (v Value) Bool() bool { return v.b }
func (v Value) Number() float64 { return v.n }
func (v Value) String() string {
	switch v.Kind {
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindNumber:
		return strconv.FormatFloat(v.n, 'f', -1, 64)
	}
	return v.s
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindBool:
		return json.Marshal(v.b)
	case KindNumber:
		return json.Marshal(v.n)
	}
	return json.Marshal(v.s)
}

// Decode reads a stored value. Legacy rows hold booleans as true, "true",
// "\"true\"" or TRUE, and numbers with stray quotes; all of those are accepted.
func Decode(kind Kind, raw string) (Value, error) {
	clean := strings.TrimSpace(raw)
	if len(clean) >= 2 && strings.HasPrefix(clean, `"`) && strings.HasSuffix(clean, `"`) {
		if unq, err := strconv.Unquote(clean); err == nil {
			clean = unq
		} else {
			clean = clean[1 : len(clean)-1]
		}
	}
	switch kind {
	case KindBool:
		switch strings.ToLower(strings.TrimSpace(clean)) {
		case "true", "1":
			return Bool(true), nil
		case "false", "0", "":
			return Bool(false), nil
		}
		return Value{}, fmt.Errorf("%w: %q is not a boolean", ErrKindMismatch, raw)
	case KindNumber:
		n, err := strconv.ParseFloat(strings.TrimSpace(clean), 64)
		if err != nil {
			return Value{}, fmt.Errorf("%w: %q is not a number", ErrKindMismatch, raw)
		}
		return Number(n), nil
	case KindString:
		return String(clean), nil
	}
	return Value{}, fmt.Errorf("unknown setting kind %q", kind)
}

// Parse validates an incoming JSON value for key against the schema. Only
// the native JSON type of the field's kind is accepted.
func Parse(key string, input json.RawMessage) (Value, error) {
	f, err := Lookup(key)
	if err != nil {
		return Value{}, err
	}
	var v Value
	switch f.Kind {
	case KindBool:
		var b bool
		if err := json.Unmarshal(input, &b); err != nil {
			return Value{}, fmt.Errorf("%w: %s expects a boolean", ErrKindMismatch, key)
		}
		v = Bool(b)
	case KindNumber:
		var n float64
		if err := json.Unmarshal(input, &n); err != nil {
			return Value{}, fmt.Errorf("%w: %s expects a number", ErrKindMismatch, key)
		}
		if f.NonNegative && n < 0 {
			return Value{}, fmt.Errorf("%w: %s must be zero or more", ErrOutOfRange, key)
		}
		v = Number(n)
	case KindString:
		var s string
		if err := json.Unmarshal(input, &s); err != nil {
			return Value{}, fmt.Errorf("%w: %s expects a string", ErrKindMismatch, key)
		}
		v = String(strings.TrimSpace(s))
	}
	return v, nil
}
