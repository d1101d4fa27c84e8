package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"admissions-portal/internal/models"
)

var ErrNotSet = errors.New("setting not set")

// Store persists raw setting rows. UpsertSetting bumps the row version.
type Store interface {
	ListSettings(ctx context.Context) ([]models.SystemSetting, error)
	GetSetting(ctx context.Context, key string) (models.SystemSetting, error)
	UpsertSetting(ctx context.Context, key, value string, kind string) error
}

// Entry is a typed setting as shown on the settings console.
type Entry struct {
	Field
	Value   Value `json:"value"`
	Version int   `json:"version"`
}

type Service struct {
	store Store
	log   *slog.Logger
}

func NewService(store Store, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{store: store, log: log.With(slog.String("component", "settings"))}
}

// All returns every schema field with its stored value, or the default when
// the row is missing or unreadable.
func (s *Service) All(ctx context.Context) ([]Entry, error) {
	rows, err := s.store.ListSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("list settings: %w", err)
	}
	byKey := make(map[string]models.SystemSetting, len(rows))
	for _, r := range rows {
		byKey[r.Key] = r
	}

	out := make([]Entry, 0, len(Schema))
	for _, f := range Schema {
		e := Entry{Field: f, Value: f.Default}
		if r, ok := byKey[f.Key]; ok {
			e.Version = r.Version
			if v, err := Decode(f.Kind, r.Value); err == nil {
				e.Value = v
			} else {
				s.log.Warn("stored setting unreadable", slog.String("key", f.Key), slog.String("err", err.Error()))
			}
		}
		out = append(out, e)
	}
	return out, nil
}

// Update validates every field first and writes nothing if any is invalid.
func (s *Service) Update(ctx context.Context, input map[string]json.RawMessage) error {
	values := make(map[string]Value, len(input))
	for key, raw := range input {
		v, err := Parse(key, raw)
		if err != nil {
			return err
		}
		values[key] = v
	}

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := values[k]
		if err := s.store.UpsertSetting(ctx, k, v.String(), string(v.Kind)); err != nil {
			return fmt.Errorf("save %s: %w", k, err)
		}
	}
	return nil
}

// Get returns the typed value of key, falling back to its default when unset.
func (s *Service) Get(ctx context.Context, key string) (Value, error) {
	f, err := Lookup(key)
	if err != nil {
		return Value{}, err
	}
	row, err := s.store.GetSetting(ctx, key)
	if errors.Is(err, ErrNotSet) {
		return f.Default, nil
	}
	if err != nil {
		return Value{}, err
	}
	return Decode(f.Kind, row.Value)
}

// SMSEnabled reads the global SMS switch. A switch that cannot be read
// counts as on.
func (s *Service) SMSEnabled(ctx context.Context) bool {
	v, err := s.Get(ctx, KeyGlobalSMSEnabled)
	if err != nil {
		s.log.Warn("global sms switch unreadable, treating as enabled", slog.String("err", err.Error()))
		return true
	}
	return v.Bool()
}

func (s *Service) SetSMSEnabled(ctx context.Context, on bool) error {
	return s.store.UpsertSetting(ctx, KeyGlobalSMSEnabled, Bool(on).String(), string(KindBool))
}
