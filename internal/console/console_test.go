package console

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"admissions-portal/internal/listing"
	"admissions-portal/internal/models"
)

type memStore struct {
	mu    sync.Mutex
	banks []models.BankAPIKey
	logs  []models.RequestLog
	err   error
}

func (m *memStore) ListBanks(_ context.Context, q listing.Query) ([]models.BankAPIKey, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.banks, len(m.banks), nil
}

func (m *memStore) CreateBank(_ context.Context, b *models.BankAPIKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b.ID = int64(len(m.banks) + 1)
	m.banks = append(m.banks, *b)
	return nil
}

func (m *memStore) RevokeBank(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.banks {
		if m.banks[i].ID == id {
			m.banks[i].IsActive = false
			return nil
		}
	}
	return ErrNotFound
}

func (m *memStore) ListRequestLogs(_ context.Context, q listing.Query) ([]models.RequestLog, int, error) {
	return m.logs, len(m.logs), nil
}

func (m *memStore) CountActiveBanks(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, b := range m.banks {
		if b.IsActive {
			n++
		}
	}
	return n, nil
}

func (m *memStore) CountRequests(context.Context) (int, error) {
	if m.err != nil {
		return 0, m.err
	}
	return len(m.logs) + 100, nil
}

func (m *memStore) RequestsSince(_ context.Context, since time.Time) ([]models.RequestLog, error) {
	var out []models.RequestLog
	for _, l := range m.logs {
		if !l.RequestTimestamp.Before(since) {
			out = append(out, l)
		}
	}
	return out, nil
}

func TestGenerateKeyShape(t *testing.T) {
	key, err := GenerateKey(bytes.NewReader(bytes.Repeat([]byte{0xab}, 32)))
	require.NoError(t, err)
	assert.Equal(t, "sk_live_"+strings.Repeat("ab", 32), key)
	assert.Len(t, key, 8+64)

	_, err = GenerateKey(bytes.NewReader([]byte{1, 2}))
	assert.Error(t, err)
}

func TestOnboardRevealsKeyOnceAndStoresHash(t *testing.T) {
	store := &memStore{}
	svc := NewService(store, nil)
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	out, err := svc.Onboard(context.Background(), models.CreateBankRequest{
		BankName: " GCB Bank ", ContactEmail: "it@gcb.example", ContactPhone: "0302000000",
	})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(out.APIKey, KeyPrefix))
	assert.Equal(t, out.APIKey[:12], out.Bank.APIKeyPrefix)
	assert.Equal(t, "GCB Bank", out.Bank.BankName)
	assert.NotContains(t, out.Bank.APIKeyHash, out.APIKey)
	assert.True(t, out.Bank.IsActive)
	assert.Equal(t, now.Add(365*24*time.Hour), out.Bank.ExpiresAt)

	stored := store.banks[0]
	assert.True(t, VerifyKey(stored, out.APIKey))
	tampered := out.APIKey[:len(out.APIKey)-1] + "g"
	assert.False(t, VerifyKey(stored, tampered))
	assert.False(t, VerifyKey(stored, "sk_live_nope"))

	require.NoError(t, svc.Revoke(context.Background(), stored.ID))
	assert.False(t, store.banks[0].IsActive)
	assert.ErrorIs(t, svc.Revoke(context.Background(), 99), ErrNotFound)
}

func TestSummarize(t *testing.T) {
	base := time.Date(2025, 3, 1, 14, 5, 0, 0, time.UTC)
	logs := []models.RequestLog{
		{RequestID: "1", ResponseStatus: models.RequestSuccess, ResponseTimeMS: 100, RequestTimestamp: base},
		{RequestID: "2", ResponseStatus: models.RequestSuccess, ResponseTimeMS: 200, RequestTimestamp: base.Add(10 * time.Minute)},
		{RequestID: "3", ResponseStatus: models.RequestRateLimited, ResponseTimeMS: 5, RequestTimestamp: base.Add(time.Hour)},
		{RequestID: "4", ResponseStatus: models.RequestSuccess, ResponseTimeMS: 101, RequestTimestamp: base.Add(2 * time.Hour)},
		{RequestID: "5", ResponseStatus: models.RequestAuthFailed, ResponseTimeMS: 9, RequestTimestamp: base.Add(2 * time.Hour)},
		{RequestID: "6", ResponseStatus: models.RequestSuccess, ResponseTimeMS: 90, RequestTimestamp: base.Add(3 * time.Hour)},
	}

	d := Summarize(logs, time.UTC)

	assert.Equal(t, 6, d.Requests24h)
	assert.Equal(t, 67, d.SuccessRate)
	assert.Equal(t, 84, d.AvgLatencyMS)
	assert.Equal(t, []HourBucket{{"14:00", 2}, {"15:00", 1}, {"16:00", 2}, {"17:00", 1}}, d.Hourly)
	require.Len(t, d.Recent, 5)
	assert.Equal(t, "6", d.Recent[0].RequestID)
	assert.Equal(t, "2", d.Recent[4].RequestID)

	empty := Summarize(nil, nil)
	assert.Zero(t, empty.SuccessRate)
	assert.Empty(t, empty.Hourly)
}

func TestDashboardAggregates(t *testing.T) {
	now := time.Date(2025, 3, 2, 9, 0, 0, 0, time.UTC)
	store := &memStore{
		banks: []models.BankAPIKey{{ID: 1, IsActive: true}, {ID: 2}},
		logs: []models.RequestLog{
			{ResponseStatus: models.RequestSuccess, ResponseTimeMS: 50, RequestTimestamp: now.Add(-48 * time.Hour)},
			{ResponseStatus: models.RequestSuccess, ResponseTimeMS: 40, RequestTimestamp: now.Add(-time.Hour)},
		},
	}
	svc := NewService(store, nil)
	svc.now = func() time.Time { return now }

	d, err := svc.Dashboard(context.Background(), time.UTC)
	require.NoError(t, err)
	assert.Equal(t, 1, d.ActiveBanks)
	assert.Equal(t, 102, d.TotalRequests)
	assert.Equal(t, 1, d.Requests24h)
	assert.Equal(t, 100, d.SuccessRate)
	assert.Equal(t, 40, d.AvgLatencyMS)

	store.err = errors.New("db down")
	_, err = svc.Dashboard(context.Background(), time.UTC)
	assert.ErrorContains(t, err, "db down")
}
