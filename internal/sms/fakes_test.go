package sms

import (
	"context"
	"errors"
	"sync"
	"time"

	"admissions-portal/internal/models"
)

type memStore struct {
	mu        sync.Mutex
	templates map[string]models.SMSTemplate
	triggers  map[int64]models.SMSTrigger
	logs      []models.SMSLog
	nextID    int64
}

func newMemStore(templates ...models.SMSTemplate) *memStore {
	m := &memStore{templates: map[string]models.SMSTemplate{}, triggers: map[int64]models.SMSTrigger{}}
	for _, t := range templates {
		m.templates[t.TemplateKey] = t
	}
	return m
}

func (m *memStore) ActiveTemplate(_ context.Context, key string) (models.SMSTemplate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.templates[key]
	if !ok || !t.IsActive {
		return models.SMSTemplate{}, ErrTemplateNotFound
	}
	return t, nil
}

func (m *memStore) InsertTrigger(_ context.Context, t *models.SMSTrigger) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	t.ID = m.nextID
	m.triggers[t.ID] = *t
	return nil
}

func (m *memStore) UpdateTrigger(_ context.Context, id int64, res models.TriggerResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.triggers[id]
	if !ok {
		t = models.SMSTrigger{ID: id}
	}
	t.SMSSent = res.SMSSent
	t.RetryCount = res.RetryCount
	t.ErrorMessage = res.ErrorMessage
	t.SentAt = res.SentAt
	t.GatewayMessageID = res.GatewayMessageID
	m.triggers[id] = t
	return nil
}

func (m *memStore) InsertLog(_ context.Context, l *models.SMSLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l.ID = int64(len(m.logs) + 1)
	m.logs = append(m.logs, *l)
	return nil
}

func (m *memStore) PendingTriggers(_ context.Context, limit int) ([]models.SMSTrigger, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.SMSTrigger
	for id := int64(1); id <= m.nextID && len(out) < limit; id++ {
		t, ok := m.triggers[id]
		if ok && !t.SMSSent && t.RetryCount < MaxAttempts {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *memStore) trigger(id int64) models.SMSTrigger {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.triggers[id]
}

func (m *memStore) auditLogs() []models.SMSLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.SMSLog(nil), m.logs...)
}

// scriptedGateway fails the first failures calls, then succeeds.
type scriptedGateway struct {
	mu       sync.Mutex
	failures int
	err      error
	calls    []string
}

func (g *scriptedGateway) Send(_ context.Context, phone, message string) (GatewayResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, phone+"|"+message)
	if len(g.calls) <= g.failures {
		err := g.err
		if err == nil {
			err = errors.New("gateway timeout")
		}
		return GatewayResponse{}, err
	}
	return GatewayResponse{
		Status: "success",
		Data:   []byte(`[{"recipient":"` + phone + `","id":"msg-1"}]`),
		Raw:    []byte(`{"status":"success","data":[{"recipient":"` + phone + `","id":"msg-1"}]}`),
	}, nil
}

func (g *scriptedGateway) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

type memGuard struct {
	mu   sync.Mutex
	held map[int64]bool
}

func (g *memGuard) Acquire(_ context.Context, id int64) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.held == nil {
		g.held = map[int64]bool{}
	}
	if g.held[id] {
		return false, nil
	}
	g.held[id] = true
	return true, nil
}

func (g *memGuard) Release(_ context.Context, id int64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.held, id)
	return nil
}

type sleepRecorder struct {
	mu     sync.Mutex
	sleeps []time.Duration
}

func (r *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sleeps = append(r.sleeps, d)
	return nil
}
