package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"admissions-portal/internal/auth"
	"admissions-portal/internal/config"
	"admissions-portal/internal/models"
	"admissions-portal/internal/queue"
	"admissions-portal/internal/settings"
	"admissions-portal/internal/sms"
)

/*
|--------------------------------------------------------------------------
| Fakes
|--------------------------------------------------------------------------
*/

type adminStore struct {
	mu     sync.Mutex
	admins map[string]models.AdminProfile
}

func (s *adminStore) AdminByEmail(_ context.Context, email string) (models.AdminProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.admins[email]
	if !ok {
		return models.AdminProfile{}, auth.ErrNotFound
	}
	return a, nil
}

func (s *adminStore) CreateAdmin(_ context.Context, a *models.AdminProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.admins[a.Email]; ok {
		return auth.ErrEmailTaken
	}
	a.ID = int64(len(s.admins) + 1)
	s.admins[a.Email] = *a
	return nil
}

// queueStore serves the public join path. Other queue.Store methods are not
// reached by these tests and panic through the nil embedded interface.
type queueStore struct {
	queue.Store

	mu       sync.Mutex
	queues   map[string]models.QueueEvent
	students map[string]models.StudentRecord
	entries  []models.QueueEntry
}

func (s *queueStore) GetQueueBySlug(_ context.Context, slug string) (models.QueueEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.queues[slug]
	if !ok {
		return q, queue.ErrNotFound
	}
	return q, nil
}

func (s *queueStore) FindStudent(_ context.Context, id string) (models.StudentRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.students[strings.ToUpper(id)]
	if !ok {
		return st, queue.ErrNotFound
	}
	return st, nil
}

func (s *queueStore) InsertEntry(_ context.Context, e *models.QueueEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e.ID = int64(len(s.entries) + 1)
	e.Position = len(s.entries) + 1
	e.Version = 1
	e.CreatedAt = time.Now()
	s.entries = append(s.entries, *e)
	return nil
}

func (s *queueStore) CountWaiting(_ context.Context, queueID int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.entries {
		if e.QueueID == queueID && e.Status == models.EntryWaiting {
			n++
		}
	}
	return n, nil
}

type triggerSink struct {
	mu       sync.Mutex
	triggers []models.SMSTrigger
}

func (s *triggerSink) EnqueueTrigger(_ context.Context, t *models.SMSTrigger) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t.ID = int64(len(s.triggers) + 1)
	s.triggers = append(s.triggers, *t)
	return nil
}

type smsStore struct {
	mu        sync.Mutex
	templates map[string]models.SMSTemplate
	results   map[int64]models.TriggerResult
	logs      []models.SMSLog
}

func (s *smsStore) ActiveTemplate(_ context.Context, key string) (models.SMSTemplate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.templates[key]
	if !ok || !t.IsActive {
		return t, sms.ErrTemplateNotFound
	}
	return t, nil
}

func (s *smsStore) UpdateTrigger(_ context.Context, id int64, res models.TriggerResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[id] = res
	return nil
}

func (s *smsStore) InsertLog(_ context.Context, l *models.SMSLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, *l)
	return nil
}

func (s *smsStore) PendingTriggers(context.Context, int) ([]models.SMSTrigger, error) {
	return nil, nil
}

func (s *smsStore) ListTemplates(context.Context) ([]models.SMSTemplate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.SMSTemplate, 0, len(s.templates))
	for _, t := range s.templates {
		out = append(out, t)
	}
	return out, nil
}

func (s *smsStore) UpdateTemplate(_ context.Context, key string, req models.UpdateTemplateRequest) (models.SMSTemplate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.templates[key]
	if !ok {
		return t, sms.ErrTemplateNotFound
	}
	t.MessageTemplate = req.MessageTemplate
	s.templates[key] = t
	return t, nil
}

type gateway struct {
	mu       sync.Mutex
	messages []string
	err      error
}

func (g *gateway) Send(_ context.Context, phone, message string) (sms.GatewayResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.messages = append(g.messages, phone+": "+message)
	if g.err != nil {
		return sms.GatewayResponse{Status: "error"}, g.err
	}
	return sms.GatewayResponse{Status: "success", Raw: []byte(`{"status":"success"}`)}, nil
}

type settingsStore struct {
	mu   sync.Mutex
	rows map[string]models.SystemSetting
}

func (s *settingsStore) ListSettings(context.Context) ([]models.SystemSetting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.SystemSetting, 0, len(s.rows))
	for _, r := range s.rows {
		out = append(out, r)
	}
	return out, nil
}

func (s *settingsStore) GetSetting(_ context.Context, key string) (models.SystemSetting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rows[key]
	if !ok {
		return r, settings.ErrNotSet
	}
	return r, nil
}

func (s *settingsStore) UpsertSetting(_ context.Context, key, value, kind string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.rows[key]
	r.Key, r.Value, r.ValueType = key, value, kind
	r.Version++
	s.rows[key] = r
	return nil
}

/*
|--------------------------------------------------------------------------
| Harness
|--------------------------------------------------------------------------
*/

const testPassword = "correct horse"

type testEnv struct {
	app      *fiber.App
	jwt      *config.JWT
	admins   *adminStore
	queues   *queueStore
	triggers *triggerSink
	sms      *smsStore
	gateway  *gateway
	settings *settingsStore
}

type envOption func(*RouteConfig)

func withFunctionAuth(user, pass string) envOption {
	return func(rc *RouteConfig) {
		rc.FunctionUser = user
		rc.FunctionPass = pass
	}
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	require.NoError(t, err)

	env := &testEnv{
		jwt: config.NewJWT("test-secret"),
		admins: &adminStore{admins: map[string]models.AdminProfile{
			"desk@portal.test": {
				ID: 1, Email: "desk@portal.test", Password: string(hash), FullName: "Desk Officer",
				Role: models.RoleAdmin, Permissions: models.Permissions{AccessQueue: true},
			},
			"root@portal.test": {
				ID: 2, Email: "root@portal.test", Password: string(hash), FullName: "Registrar",
				Role: models.RoleSuperAdmin,
			},
			"banned@portal.test": {
				ID: 3, Email: "banned@portal.test", Password: string(hash), FullName: "Former Staff",
				Role: models.RoleAdmin, IsBanned: true,
			},
		}},
		queues: &queueStore{
			queues: map[string]models.QueueEvent{
				"intake": {ID: 10, Name: "Intake Day", Slug: "intake", Status: models.EventOpen,
					Settings: models.QueueSettings{SMS: models.SMSConfig{EnabledJoin: true}}},
				"paused": {ID: 11, Name: "Paused Desk", Slug: "paused", Status: models.EventPaused},
			},
			students: map[string]models.StudentRecord{
				"STU-001": {ID: 100, StudentID: "STU-001", FirstName: "Kofi", Surname: "Mensah"},
			},
		},
		triggers: &triggerSink{},
		sms: &smsStore{
			templates: map[string]models.SMSTemplate{
				sms.TemplateQueueJoin: {
					TemplateKey: sms.TemplateQueueJoin, IsActive: true,
					MessageTemplate: "Hi {first_name}, you are number {position}.",
				},
			},
			results: map[int64]models.TriggerResult{},
		},
		gateway:  &gateway{},
		settings: &settingsStore{rows: map[string]models.SystemSetting{}},
	}

	settingsSvc := settings.NewService(env.settings, nil)
	dispatcher := sms.NewDispatcher(env.sms, env.gateway, nil, nil)
	dispatcher.Sleep = func(context.Context, time.Duration) error { return nil }

	h := New(Deps{
		Auth:     auth.NewService(env.admins, env.jwt, nil, nil),
		Settings: settingsSvc,
		Queues: queue.NewService(queue.Deps{
			Store:    env.queues,
			Triggers: env.triggers,
			Switch:   settingsSvc,
		}),
		Templates:  env.sms,
		Dispatcher: dispatcher,
	})

	rc := RouteConfig{JWT: env.jwt, Admins: env.admins}
	for _, opt := range opts {
		opt(&rc)
	}
	env.app = fiber.New()
	env.app.Use(recover.New())
	h.Register(env.app, rc)
	return env
}

func (e *testEnv) tokenFor(t *testing.T, email string) string {
	t.Helper()
	a, err := e.admins.AdminByEmail(context.Background(), email)
	require.NoError(t, err)
	tok, err := e.jwt.GenerateToken(a)
	require.NoError(t, err)
	return tok
}

type call struct {
	method string
	path   string
	body   string
	token  string
	header map[string]string
}

func (e *testEnv) do(t *testing.T, c call) (*http.Response, map[string]any) {
	t.Helper()
	var body io.Reader
	if c.body != "" {
		body = strings.NewReader(c.body)
	}
	req := httptest.NewRequest(c.method, c.path, body)
	if c.body != "" {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if c.token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+c.token)
	}
	for k, v := range c.header {
		req.Header.Set(k, v)
	}

	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]any
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &out)
	}
	return resp, out
}
