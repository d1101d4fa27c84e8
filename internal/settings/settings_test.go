package settings

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"admissions-portal/internal/models"
)

type memStore struct {
	mu      sync.Mutex
	rows    map[string]models.SystemSetting
	failGet error
	writes  int
}

func newMemStore(rows ...models.SystemSetting) *memStore {
	m := &memStore{rows: map[string]models.SystemSetting{}}
	for _, r := range rows {
		m.rows[r.Key] = r
	}
	return m
}

func (m *memStore) ListSettings(context.Context) ([]models.SystemSetting, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.SystemSetting
	for _, r := range m.rows {
		out = append(out, r)
	}
	return out, nil
}

func (m *memStore) GetSetting(_ context.Context, key string) (models.SystemSetting, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failGet != nil {
		return models.SystemSetting{}, m.failGet
	}
	r, ok := m.rows[key]
	if !ok {
		return r, ErrNotSet
	}
	return r, nil
}

func (m *memStore) UpsertSetting(_ context.Context, key, value, kind string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.rows[key]
	r.Key, r.Value, r.ValueType = key, value, kind
	r.Version++
	m.rows[key] = r
	m.writes++
	return nil
}

func TestDecodeToleratesLegacyBooleans(t *testing.T) {
	for _, raw := range []string{"true", `"true"`, "TRUE", ` "True" `, "1"} {
		v, err := Decode(KindBool, raw)
		require.NoError(t, err, raw)
		assert.True(t, v.Bool(), raw)
	}
	v, err := Decode(KindBool, `"false"`)
	require.NoError(t, err)
	assert.False(t, v.Bool())

	_, err = Decode(KindBool, "yes please")
	assert.ErrorIs(t, err, ErrKindMismatch)
}

func TestDecodeNumberAndString(t *testing.T) {
	v, err := Decode(KindNumber, `"120"`)
	require.NoError(t, err)
	assert.Equal(t, 120.0, v.Number())

	_, err = Decode(KindNumber, "lots")
	assert.ErrorIs(t, err, ErrKindMismatch)

	v, err = Decode(KindString, `"0241234567"`)
	require.NoError(t, err)
	assert.Equal(t, "0241234567", v.String())
}

func TestParseRejectsAtBoundary(t *testing.T) {
	_, err := Parse("colour_scheme", json.RawMessage(`"dark"`))
	assert.ErrorIs(t, err, ErrUnknownKey)

	_, err = Parse(KeyMaintenanceMode, json.RawMessage(`"true"`))
	assert.ErrorIs(t, err, ErrKindMismatch)

	_, err = Parse(KeyGlobalRateLimit, json.RawMessage(`-1`))
	assert.ErrorIs(t, err, ErrOutOfRange)

	_, err = Parse(KeyAlertPhonePrimary, json.RawMessage(`233`))
	assert.ErrorIs(t, err, ErrKindMismatch)

	v, err := Parse(KeyGlobalRateLimit, json.RawMessage(`0`))
	require.NoError(t, err)
	assert.Equal(t, "0", v.String())
}

func TestUpdateIsAllOrNothing(t *testing.T) {
	store := newMemStore()
	svc := NewService(store, nil)

	err := svc.Update(context.Background(), map[string]json.RawMessage{
		KeyMaintenanceMode: json.RawMessage(`true`),
		KeyGlobalRateLimit: json.RawMessage(`"fast"`),
	})
	assert.ErrorIs(t, err, ErrKindMismatch)
	assert.Zero(t, store.writes)

	err = svc.Update(context.Background(), map[string]json.RawMessage{
		KeyMaintenanceMode: json.RawMessage(`true`),
		KeyGlobalRateLimit: json.RawMessage(`90`),
	})
	require.NoError(t, err)
	assert.Equal(t, "true", store.rows[KeyMaintenanceMode].Value)
	assert.Equal(t, "boolean", store.rows[KeyMaintenanceMode].ValueType)
	assert.Equal(t, "90", store.rows[KeyGlobalRateLimit].Value)

	require.NoError(t, svc.Update(context.Background(), map[string]json.RawMessage{
		KeyMaintenanceMode: json.RawMessage(`false`),
	}))
	assert.Equal(t, 2, store.rows[KeyMaintenanceMode].Version)
}

func TestAllFillsDefaults(t *testing.T) {
	store := newMemStore(
		models.SystemSetting{Key: KeyMaintenanceMode, Value: `"true"`, Version: 3},
		models.SystemSetting{Key: KeyGlobalRateLimit, Value: "garbage", Version: 1},
	)
	svc := NewService(store, nil)

	entries, err := svc.All(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, len(Schema))

	byKey := map[string]Entry{}
	for _, e := range entries {
		byKey[e.Key] = e
	}
	assert.True(t, byKey[KeyMaintenanceMode].Value.Bool())
	assert.Equal(t, 3, byKey[KeyMaintenanceMode].Version)
	assert.Equal(t, 60.0, byKey[KeyGlobalRateLimit].Value.Number())
	assert.True(t, byKey[KeyGlobalSMSEnabled].Value.Bool())

	b, err := json.Marshal(byKey[KeyMaintenanceMode])
	require.NoError(t, err)
	assert.Contains(t, string(b), `"value":true`)
	assert.Contains(t, string(b), `"type":"boolean"`)
}

func TestSMSSwitch(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	svc := NewService(store, nil)

	assert.True(t, svc.SMSEnabled(ctx), "unset switch uses its default")

	require.NoError(t, svc.SetSMSEnabled(ctx, false))
	assert.False(t, svc.SMSEnabled(ctx))

	store.failGet = errors.New("connection refused")
	assert.True(t, svc.SMSEnabled(ctx), "unreadable switch counts as on")
}
