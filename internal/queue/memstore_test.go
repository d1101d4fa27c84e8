package queue

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"admissions-portal/internal/models"
	"admissions-portal/internal/realtime"
)

// memStore is an in-memory Store used by the service tests.
type memStore struct {
	mu       sync.Mutex
	queues   map[int64]models.QueueEvent
	entries  map[int64]models.QueueEntry
	students []models.StudentRecord
	nextID   int64
	clock    time.Time

	failCountWaiting bool
	// beforeTransition runs once at the start of TransitionEntry.
	beforeTransition func()
	// beforeSwap runs inside SwapPositions before versions are checked.
	beforeSwap func()
}

func newMemStore() *memStore {
	return &memStore{
		queues:  map[int64]models.QueueEvent{},
		entries: map[int64]models.QueueEntry{},
		clock:   time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC),
	}
}

func (m *memStore) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *memStore) tick() time.Time {
	m.clock = m.clock.Add(time.Second)
	return m.clock
}

func (m *memStore) CreateQueue(_ context.Context, q *models.QueueEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.queues {
		if existing.Slug == q.Slug {
			return ErrSlugTaken
		}
	}
	q.ID = m.id()
	m.queues[q.ID] = *q
	return nil
}

func (m *memStore) GetQueue(_ context.Context, id int64) (models.QueueEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.queues[id]
	if !ok {
		return q, ErrNotFound
	}
	return q, nil
}

func (m *memStore) GetQueueBySlug(_ context.Context, slug string) (models.QueueEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, q := range m.queues {
		if q.Slug == slug {
			return q, nil
		}
	}
	return models.QueueEvent{}, ErrNotFound
}

func (m *memStore) ListQueues(_ context.Context, f ListFilter) ([]models.QueueEventWithStats, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.QueueEventWithStats
	for _, q := range m.queues {
		archived := q.Status == models.EventArchived
		if archived != (f.View == ViewArchived) {
			continue
		}
		if f.Search != "" && !strings.Contains(strings.ToLower(q.Name+" "+q.Slug), strings.ToLower(f.Search)) {
			continue
		}
		var st models.QueueStats
		for _, e := range m.entries {
			if e.QueueID != q.ID {
				continue
			}
			st.Total++
			switch e.Status {
			case models.EntryWaiting:
				st.Waiting++
			case models.EntryServing:
				st.Serving++
			case models.EntryCompleted:
				st.Served++
			case models.EntryRemoved:
				st.Removed++
			}
		}
		out = append(out, models.QueueEventWithStats{QueueEvent: q, Stats: st})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	total := len(out)
	if f.From < len(out) {
		out = out[f.From:min(f.To+1, len(out))]
	} else {
		out = nil
	}
	return out, total, nil
}

func (m *memStore) OpenQueues(_ context.Context) ([]models.QueueEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.QueueEvent
	for _, q := range m.queues {
		if q.Status == models.EventOpen {
			out = append(out, q)
		}
	}
	return out, nil
}

func (m *memStore) SetQueueStatus(_ context.Context, id int64, status models.EventStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.queues[id]
	if !ok {
		return ErrNotFound
	}
	q.Status = status
	m.queues[id] = q
	return nil
}

func (m *memStore) DeleteQueue(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.queues[id]; !ok {
		return ErrNotFound
	}
	delete(m.queues, id)
	for eid, e := range m.entries {
		if e.QueueID == id {
			delete(m.entries, eid)
		}
	}
	return nil
}

func (m *memStore) InsertEntry(_ context.Context, e *models.QueueEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	maxPos := 0
	for _, x := range m.entries {
		if x.QueueID == e.QueueID && x.Position > maxPos {
			maxPos = x.Position
		}
	}
	e.ID = m.id()
	e.Position = maxPos + 1
	e.Version = 1
	e.CreatedAt = m.tick()
	e.UpdatedAt = e.CreatedAt
	m.entries[e.ID] = *e
	return nil
}

func (m *memStore) GetEntry(_ context.Context, id int64) (models.QueueEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return e, ErrNotFound
	}
	return e, nil
}

func (m *memStore) withQueue(e models.QueueEntry) EntryWithQueue {
	return EntryWithQueue{QueueEntry: e, QueueName: m.queues[e.QueueID].Name}
}

func (m *memStore) GetEntryByToken(_ context.Context, token string) (EntryWithQueue, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries {
		if e.Token == token {
			return m.withQueue(e), nil
		}
	}
	return EntryWithQueue{}, ErrNotFound
}

func (m *memStore) EntriesByTokens(_ context.Context, tokens []string) ([]EntryWithQueue, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	want := map[string]bool{}
	for _, t := range tokens {
		want[t] = true
	}
	var out []EntryWithQueue
	for _, e := range m.entries {
		if want[e.Token] {
			out = append(out, m.withQueue(e))
		}
	}
	return out, nil
}

func (m *memStore) ActiveEntries(_ context.Context, queueID int64) ([]models.QueueEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.QueueEntry
	for _, e := range m.entries {
		if e.QueueID == queueID && e.Status.Active() {
			out = append(out, e)
		}
	}
	return SortByPosition(out), nil
}

func (m *memStore) AllEntries(_ context.Context, queueID int64) ([]models.QueueEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.QueueEntry
	for _, e := range m.entries {
		if e.QueueID == queueID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memStore) CountWaiting(_ context.Context, queueID int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCountWaiting {
		return 0, errors.New("count failed")
	}
	n := 0
	for _, e := range m.entries {
		if e.QueueID == queueID && e.Status == models.EntryWaiting {
			n++
		}
	}
	return n, nil
}

func (m *memStore) TransitionEntry(_ context.Context, id int64, from, to models.EntryStatus) error {
	if hook := m.beforeTransition; hook != nil {
		hook()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok || e.Status != from {
		return ErrStaleEntry
	}
	e.Status = to
	e.Version++
	m.entries[id] = e
	return nil
}

func (m *memStore) SwapPositions(_ context.Context, a, b models.QueueEntry) error {
	if m.beforeSwap != nil {
		m.beforeSwap()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	ca, okA := m.entries[a.ID]
	cb, okB := m.entries[b.ID]
	if !okA || !okB || ca.Version != a.Version || cb.Version != b.Version {
		return ErrStaleEntry
	}
	ca.Position, cb.Position = b.Position, a.Position
	ca.Version++
	cb.Version++
	m.entries[a.ID] = ca
	m.entries[b.ID] = cb
	return nil
}

func (m *memStore) SetAdminMessage(_ context.Context, id int64, msg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return ErrNotFound
	}
	e.AdminMessage = msg
	e.Version++
	m.entries[id] = e
	return nil
}

func (m *memStore) MarkReminderSent(_ context.Context, id int64, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return false, ErrNotFound
	}
	if e.SMSLogs.ReminderSent {
		return false, nil
	}
	e.SMSLogs.ReminderSent = true
	e.SMSLogs.ReminderSentAt = &at
	m.entries[id] = e
	return true, nil
}

func (m *memStore) FindStudent(_ context.Context, studentID string) (models.StudentRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.students {
		if strings.EqualFold(s.StudentID, studentID) {
			return s, nil
		}
	}
	return models.StudentRecord{}, ErrNotFound
}

type recordingSink struct {
	mu       sync.Mutex
	triggers []models.SMSTrigger
	err      error
}

func (r *recordingSink) EnqueueTrigger(_ context.Context, t *models.SMSTrigger) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	t.ID = int64(len(r.triggers) + 1)
	r.triggers = append(r.triggers, *t)
	return nil
}

func (r *recordingSink) all() []models.SMSTrigger {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.SMSTrigger(nil), r.triggers...)
}

type staticSwitch bool

func (s staticSwitch) SMSEnabled(context.Context) bool { return bool(s) }

type recordingNotifier struct {
	mu      sync.Mutex
	changes []realtime.Change
}

func (n *recordingNotifier) Publish(_ context.Context, c realtime.Change) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.changes = append(n.changes, c)
	return nil
}

func (n *recordingNotifier) Subscribe(realtime.Filter) realtime.Subscription {
	panic("not used")
}

func (n *recordingNotifier) all() []realtime.Change {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]realtime.Change(nil), n.changes...)
}
