package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"admissions-portal/internal/models"
	"admissions-portal/internal/realtime"
	"admissions-portal/internal/sms"
)

const (
	UpNextLimit = 5
	sourceTable = "queue_entries"
)

var (
	phonePattern = regexp.MustCompile(`^0\d{9}$`)
	slugStrip    = regexp.MustCompile(`[^a-z0-9]+`)
)

// ValidPhone reports whether phone is a local 10-digit number starting with 0.
func ValidPhone(phone string) bool {
	return phonePattern.MatchString(phone)
}

// Slugify lower-cases s and collapses every run of other characters to "-".
func Slugify(s string) string {
	return strings.Trim(slugStrip.ReplaceAllString(strings.ToLower(s), "-"), "-")
}

type Deps struct {
	Store    Store
	Triggers TriggerSink
	Switch   SMSSwitch
	Notifier realtime.Notifier
	Logger   *slog.Logger
	// BaseURL prefixes status links in outgoing SMS; optional.
	BaseURL string
	Now     func() time.Time
}

type Service struct {
	store    Store
	triggers TriggerSink
	sw       SMSSwitch
	notifier realtime.Notifier
	log      *slog.Logger
	baseURL  string
	now      func() time.Time
}

func NewService(d Deps) *Service {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return &Service{
		store:    d.Store,
		triggers: d.Triggers,
		sw:       d.Switch,
		notifier: d.Notifier,
		log:      d.Logger.With(slog.String("component", "queue")),
		baseURL:  strings.TrimRight(d.BaseURL, "/"),
		now:      d.Now,
	}
}

func (s *Service) publish(ctx context.Context, c realtime.Change) {
	if s.notifier == nil {
		return
	}
	c.At = s.now()
	if err := s.notifier.Publish(ctx, c); err != nil {
		s.log.Warn("publish change failed",
			slog.String("table", c.Table),
			slog.Int64("queue_id", c.QueueID),
			slog.String("err", err.Error()))
	}
}

func (s *Service) entryChanged(ctx context.Context, ev realtime.Event, e models.QueueEntry) {
	s.publish(ctx, realtime.Change{
		Table:   realtime.TableQueueEntries,
		Event:   ev,
		QueueID: e.QueueID,
		EntryID: e.ID,
		Token:   e.Token,
	})
}

func (s *Service) smsAllowed(ctx context.Context) bool {
	if s.triggers == nil {
		return false
	}
	if s.sw == nil {
		return true
	}
	return s.sw.SMSEnabled(ctx)
}

/*
|--------------------------------------------------------------------------
| Queue events
|--------------------------------------------------------------------------
*/

func (s *Service) CreateQueue(ctx context.Context, req models.CreateQueueRequest, createdBy int64) (models.QueueEvent, error) {
	slug := Slugify(req.Slug)
	if slug == "" {
		slug = Slugify(req.Name)
	}
	if slug == "" {
		return models.QueueEvent{}, errors.New("queue name must contain letters or digits")
	}

	settings := models.QueueSettings{
		Version:      models.SettingsVersion,
		SupportPhone: strings.TrimSpace(req.SupportPhone),
		SMS: models.SMSConfig{
			EnabledJoin:       req.SMSJoin,
			EnabledReminder:   req.SMSReminder,
			ReminderThreshold: req.ReminderTrigger,
		},
	}
	settings.Normalize()
	if err := settings.Validate(); err != nil {
		return models.QueueEvent{}, err
	}

	q := models.QueueEvent{
		Name:      strings.TrimSpace(req.Name),
		Slug:      slug,
		Status:    models.EventOpen,
		ExpiresAt: req.ExpiresAt,
		Settings:  settings,
		CreatedAt: s.now(),
	}
	if createdBy > 0 {
		q.CreatedBy = &createdBy
	}
	if err := s.store.CreateQueue(ctx, &q); err != nil {
		return models.QueueEvent{}, fmt.Errorf("create queue: %w", err)
	}

	s.log.Info("queue created", slog.Int64("queue_id", q.ID), slog.String("slug", q.Slug))
	s.publish(ctx, realtime.Change{Table: realtime.TableQueueEvents, Event: realtime.EventInsert, QueueID: q.ID})
	return q, nil
}

func (s *Service) ListQueues(ctx context.Context, f ListFilter) ([]models.QueueEventWithStats, int, error) {
	if f.View != ViewArchived {
		f.View = ViewActive
	}
	return s.store.ListQueues(ctx, f)
}

func (s *Service) GetQueue(ctx context.Context, id int64) (models.QueueEvent, error) {
	return s.store.GetQueue(ctx, id)
}

// JoinForm is what the public join page needs to decide whether to show the form.
type JoinForm struct {
	Queue    models.QueueEvent `json:"queue"`
	Joinable bool              `json:"joinable"`
	Reason   string            `json:"reason,omitempty"`
}

func (s *Service) JoinForm(ctx context.Context, slug string) (JoinForm, error) {
	q, err := s.store.GetQueueBySlug(ctx, slug)
	if err != nil {
		return JoinForm{}, err
	}
	form := JoinForm{Queue: q, Joinable: q.Joinable(s.now())}
	switch {
	case form.Joinable:
	case q.Status == models.EventOpen:
		form.Reason = "This queue has expired."
	default:
		form.Reason = "This queue is currently " + strings.ToLower(string(q.Status)) + "."
	}
	return form, nil
}

func (s *Service) SetQueueStatus(ctx context.Context, id int64, status models.EventStatus) error {
	if _, err := s.store.GetQueue(ctx, id); err != nil {
		return err
	}
	if err := s.store.SetQueueStatus(ctx, id, status); err != nil {
		return fmt.Errorf("set queue status: %w", err)
	}
	s.publish(ctx, realtime.Change{Table: realtime.TableQueueEvents, Event: realtime.EventUpdate, QueueID: id})
	return nil
}

func (s *Service) ArchiveQueue(ctx context.Context, id int64) error {
	return s.SetQueueStatus(ctx, id, models.EventArchived)
}

func (s *Service) DeleteQueue(ctx context.Context, id int64) error {
	if err := s.store.DeleteQueue(ctx, id); err != nil {
		return fmt.Errorf("delete queue: %w", err)
	}
	s.log.Info("queue deleted", slog.Int64("queue_id", id))
	s.publish(ctx, realtime.Change{Table: realtime.TableQueueEvents, Event: realtime.EventDelete, QueueID: id})
	return nil
}

/*
|--------------------------------------------------------------------------
| Joining
|--------------------------------------------------------------------------
*/

type JoinResult struct {
	Token       string `json:"token"`
	QueueName   string `json:"queue_name"`
	StudentName string `json:"student_name"`
	Position    int    `json:"position"`
}

// Join verifies the student against the master records and appends a
// WAITING entry. Nothing is written when validation fails.
func (s *Service) Join(ctx context.Context, slug string, req models.JoinQueueRequest) (JoinResult, error) {
	phone := strings.TrimSpace(req.Phone)
	if !ValidPhone(phone) {
		return JoinResult{}, ErrInvalidPhone
	}
	studentID := strings.ToUpper(strings.TrimSpace(req.StudentID))
	if studentID == "" {
		return JoinResult{}, ErrStudentNotFound
	}

	q, err := s.store.GetQueueBySlug(ctx, slug)
	if err != nil {
		return JoinResult{}, err
	}
	if !q.Joinable(s.now()) {
		return JoinResult{}, ErrQueueClosed
	}

	student, err := s.store.FindStudent(ctx, studentID)
	if errors.Is(err, ErrNotFound) {
		return JoinResult{}, fmt.Errorf("%w: %s", ErrStudentNotFound, studentID)
	}
	if err != nil {
		return JoinResult{}, fmt.Errorf("find student: %w", err)
	}

	masterID := student.ID
	e := models.QueueEntry{
		QueueID:           q.ID,
		Token:             uuid.NewString(),
		StudentIdentifier: student.FullName(),
		StudentPhone:      phone,
		StudentMasterID:   &masterID,
		IsVerified:        true,
		Status:            models.EntryWaiting,
	}
	if err := s.store.InsertEntry(ctx, &e); err != nil {
		return JoinResult{}, fmt.Errorf("insert entry: %w", err)
	}
	s.entryChanged(ctx, realtime.EventInsert, e)

	position := s.linePosition(ctx, e)
	s.sendJoinSMS(ctx, q, e, position)

	return JoinResult{
		Token:       e.Token,
		QueueName:   q.Name,
		StudentName: e.StudentIdentifier,
		Position:    position,
	}, nil
}

// WalkIn adds an entry on behalf of someone at the desk, skipping the
// master-record check.
func (s *Service) WalkIn(ctx context.Context, queueID int64, req models.WalkInRequest) (models.QueueEntry, error) {
	phone := strings.TrimSpace(req.Phone)
	if !ValidPhone(phone) {
		return models.QueueEntry{}, ErrInvalidPhone
	}
	q, err := s.store.GetQueue(ctx, queueID)
	if err != nil {
		return models.QueueEntry{}, err
	}
	if q.Status == models.EventArchived || q.Status == models.EventClosed {
		return models.QueueEntry{}, ErrQueueClosed
	}

	e := models.QueueEntry{
		QueueID:           q.ID,
		Token:             uuid.NewString(),
		StudentIdentifier: strings.TrimSpace(req.Name),
		StudentPhone:      phone,
		Status:            models.EntryWaiting,
	}
	if err := s.store.InsertEntry(ctx, &e); err != nil {
		return models.QueueEntry{}, fmt.Errorf("insert walk-in: %w", err)
	}
	s.entryChanged(ctx, realtime.EventInsert, e)
	s.sendJoinSMS(ctx, q, e, s.linePosition(ctx, e))
	return e, nil
}

// linePosition is the waiting count right after insert, falling back to the
// stored position when the count cannot be read.
func (s *Service) linePosition(ctx context.Context, e models.QueueEntry) int {
	n, err := s.store.CountWaiting(ctx, e.QueueID)
	if err != nil || n == 0 {
		if err != nil {
			s.log.Warn("count waiting failed", slog.Int64("queue_id", e.QueueID), slog.String("err", err.Error()))
		}
		return e.Position
	}
	return n
}

func (s *Service) statusLink(token string) string {
	if s.baseURL == "" {
		return ""
	}
	return s.baseURL + "/queue-manager/status.html?token=" + token
}

func (s *Service) sendJoinSMS(ctx context.Context, q models.QueueEvent, e models.QueueEntry, position int) {
	if !q.Settings.SMS.EnabledJoin {
		return
	}
	if !s.smsAllowed(ctx) {
		s.log.Info("join sms blocked by global switch", slog.Int64("entry_id", e.ID))
		return
	}
	t := &models.SMSTrigger{
		SourceTable: sourceTable,
		Phone:       sms.FormatPhone(e.StudentPhone),
		TemplateKey: sms.TemplateQueueJoin,
		TemplateData: models.TemplateData{
			"first_name":     e.StudentIdentifier,
			"reference_code": e.Token,
			"fee_type":       q.Name,
			"amount":         position,
			"queue_name":     q.Name,
			"position":       position,
			"status_link":    s.statusLink(e.Token),
		},
	}
	if err := s.triggers.EnqueueTrigger(ctx, t); err != nil {
		// The participant already holds a token; a lost SMS is not fatal.
		s.log.Error("enqueue join sms failed", slog.Int64("entry_id", e.ID), slog.String("err", err.Error()))
	}
}

/*
|--------------------------------------------------------------------------
| Admin monitor
|--------------------------------------------------------------------------
*/

type Monitor struct {
	Queue      models.QueueEvent   `json:"queue"`
	NowServing *models.QueueEntry  `json:"now_serving"`
	Serving    []models.QueueEntry `json:"serving"`
	Waiting    []models.QueueEntry `json:"waiting"`
}

// Monitor builds the admin view: active entries in manual position order.
func (s *Service) Monitor(ctx context.Context, queueID int64) (Monitor, error) {
	q, err := s.store.GetQueue(ctx, queueID)
	if err != nil {
		return Monitor{}, err
	}
	entries, err := s.store.ActiveEntries(ctx, queueID)
	if err != nil {
		return Monitor{}, fmt.Errorf("load entries: %w", err)
	}

	m := Monitor{Queue: q, Serving: []models.QueueEntry{}, Waiting: []models.QueueEntry{}}
	for _, e := range SortByPosition(entries) {
		switch e.Status {
		case models.EntryServing:
			m.Serving = append(m.Serving, e)
		case models.EntryWaiting:
			m.Waiting = append(m.Waiting, e)
		}
	}
	if cur, ok := NowServing(entries); ok {
		m.NowServing = &cur
	}
	return m, nil
}

// CallNext moves the next WAITING entry to SERVING. A concurrent admin who
// got there first makes this return ErrStaleEntry.
func (s *Service) CallNext(ctx context.Context, queueID int64, order Order) (models.QueueEntry, error) {
	entries, err := s.store.ActiveEntries(ctx, queueID)
	if err != nil {
		return models.QueueEntry{}, fmt.Errorf("load entries: %w", err)
	}
	next, ok := NextToCall(entries, order)
	if !ok {
		return models.QueueEntry{}, ErrNobodyWaiting
	}
	if err := s.store.TransitionEntry(ctx, next.ID, models.EntryWaiting, models.EntryServing); err != nil {
		return models.QueueEntry{}, err
	}
	next.Status = models.EntryServing
	s.log.Info("called next", slog.Int64("queue_id", queueID), slog.Int64("entry_id", next.ID))
	s.entryChanged(ctx, realtime.EventUpdate, next)
	return next, nil
}

// ForceCall serves a specific waiting entry out of turn.
func (s *Service) ForceCall(ctx context.Context, entryID int64) (models.QueueEntry, error) {
	return s.SetEntryStatus(ctx, entryID, models.EntryServing)
}

func (s *Service) SetEntryStatus(ctx context.Context, entryID int64, to models.EntryStatus) (models.QueueEntry, error) {
	e, err := s.store.GetEntry(ctx, entryID)
	if err != nil {
		return models.QueueEntry{}, err
	}
	if !CanTransition(e.Status, to) {
		return models.QueueEntry{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, e.Status, to)
	}
	if err := s.store.TransitionEntry(ctx, e.ID, e.Status, to); err != nil {
		return models.QueueEntry{}, err
	}
	e.Status = to
	s.entryChanged(ctx, realtime.EventUpdate, e)
	return e, nil
}

// MoveDown swaps the entry with the WAITING entry just below it in the
// admin ordering. Both rows are written in one transaction and only if
// neither changed since the snapshot was read.
func (s *Service) MoveDown(ctx context.Context, entryID int64) error {
	e, err := s.store.GetEntry(ctx, entryID)
	if err != nil {
		return err
	}
	entries, err := s.store.ActiveEntries(ctx, e.QueueID)
	if err != nil {
		return fmt.Errorf("load entries: %w", err)
	}
	cur, below, err := SwapPair(entries, entryID)
	if err != nil {
		return err
	}
	if err := s.store.SwapPositions(ctx, cur, below); err != nil {
		return err
	}
	s.entryChanged(ctx, realtime.EventUpdate, cur)
	return nil
}

func (s *Service) SetAdminMessage(ctx context.Context, entryID int64, msg string) error {
	e, err := s.store.GetEntry(ctx, entryID)
	if err != nil {
		return err
	}
	if err := s.store.SetAdminMessage(ctx, entryID, strings.TrimSpace(msg)); err != nil {
		return fmt.Errorf("set admin message: %w", err)
	}
	s.entryChanged(ctx, realtime.EventUpdate, e)
	return nil
}

func (s *Service) Entries(ctx context.Context, queueID int64) (models.QueueEvent, []models.QueueEntry, error) {
	q, err := s.store.GetQueue(ctx, queueID)
	if err != nil {
		return models.QueueEvent{}, nil, err
	}
	entries, err := s.store.AllEntries(ctx, queueID)
	if err != nil {
		return models.QueueEvent{}, nil, fmt.Errorf("load entries: %w", err)
	}
	return q, SortFIFO(entries), nil
}

/*
|--------------------------------------------------------------------------
| Participant status
|--------------------------------------------------------------------------
*/

type UpNextItem struct {
	Position    int                `json:"position"`
	DisplayName string             `json:"display_name"`
	Status      models.EntryStatus `json:"status"`
	IsMe        bool               `json:"is_me"`
}

type StatusView struct {
	Token        string             `json:"token"`
	QueueID      int64              `json:"queue_id"`
	QueueName    string             `json:"queue_name"`
	StudentName  string             `json:"student_name"`
	Status       models.EntryStatus `json:"status"`
	PeopleAhead  int                `json:"people_ahead"`
	Display      string             `json:"display"`
	Label        string             `json:"label"`
	AdminMessage string             `json:"admin_message,omitempty"`
	UpNext       []UpNextItem       `json:"up_next"`
}

// Status recomputes a participant's view from a fresh snapshot.
func (s *Service) Status(ctx context.Context, token string) (StatusView, error) {
	e, err := s.store.GetEntryByToken(ctx, token)
	if err != nil {
		return StatusView{}, err
	}
	entries, err := s.store.ActiveEntries(ctx, e.QueueID)
	if err != nil {
		return StatusView{}, fmt.Errorf("load entries: %w", err)
	}
	return BuildStatus(e, entries), nil
}

// BuildStatus derives the status view for e from an active-entry snapshot.
func BuildStatus(e EntryWithQueue, snapshot []models.QueueEntry) StatusView {
	v := StatusView{
		Token:        e.Token,
		QueueID:      e.QueueID,
		QueueName:    e.QueueName,
		StudentName:  e.StudentIdentifier,
		Status:       e.Status,
		AdminMessage: e.AdminMessage,
		UpNext:       []UpNextItem{},
	}

	byPos := SortByPosition(snapshot)
	for i, item := range byPos {
		if i == UpNextLimit {
			break
		}
		isMe := item.Token == e.Token
		v.UpNext = append(v.UpNext, UpNextItem{
			Position:    item.Position,
			DisplayName: displayName(item, isMe),
			Status:      item.Status,
			IsMe:        isMe,
		})
	}

	switch e.Status {
	case models.EntryServing:
		v.Display, v.Label = "NOW", "IT'S YOUR TURN!"
	case models.EntryCompleted:
		v.Display, v.Label = "DONE", "Served"
	case models.EntryRemoved:
		v.Display, v.Label = "X", "Removed from Queue"
	case models.EntryNoShow:
		v.Display, v.Label = "X", "Marked as no-show"
	default:
		ahead, ok := PeopleAhead(snapshot, e.Token)
		if !ok {
			v.Display, v.Label = "5+", "In Queue"
			break
		}
		v.PeopleAhead = ahead
		if ahead+1 > UpNextLimit {
			v.Display = strconv.Itoa(UpNextLimit) + "+"
		} else {
			v.Display = strconv.Itoa(ahead + 1)
		}
		v.Label = "People ahead of you: " + strconv.Itoa(ahead)
	}
	return v
}

func displayName(e models.QueueEntry, isMe bool) string {
	var name string
	if isMe {
		name = e.StudentIdentifier + " (YOU)"
	} else {
		r := []rune(e.StudentIdentifier)
		if len(r) > 2 {
			r = r[:2]
		}
		name = "Student " + string(r) + "**"
	}
	if e.Status == models.EntryServing {
		name += " - Serving Now"
	}
	return name
}

type EntrySummary struct {
	Token       string             `json:"token"`
	QueueName   string             `json:"queue_name"`
	StudentName string             `json:"student_name"`
	Status      models.EntryStatus `json:"status"`
	JoinedAt    time.Time          `json:"joined_at"`
}

// MyEntries lists the entries behind a participant's saved tokens, newest first.
func (s *Service) MyEntries(ctx context.Context, tokens []string) ([]EntrySummary, error) {
	out := []EntrySummary{}
	if len(tokens) == 0 {
		return out, nil
	}
	entries, err := s.store.EntriesByTokens(ctx, tokens)
	if err != nil {
		return nil, fmt.Errorf("load entries: %w", err)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})
	for _, e := range entries {
		out = append(out, EntrySummary{
			Token:       e.Token,
			QueueName:   e.QueueName,
			StudentName: e.StudentIdentifier,
			Status:      e.Status,
			JoinedAt:    e.CreatedAt,
		})
	}
	return out, nil
}
