package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"admissions-portal/internal/listing"
	"admissions-portal/internal/models"
	"admissions-portal/internal/queue"
)

type queueStore struct {
	*MySQLStore
	loc *time.Location
}

// Queues returns the repository behind queue.Service. loc is used to expand
// the date filter of the admin list.
func (ms *MySQLStore) Queues(loc *time.Location) queue.Store {
	if loc == nil {
		loc = time.UTC
	}
	return &queueStore{MySQLStore: ms, loc: loc}
}

const entryColumns = `e.id, e.queue_id, e.token, e.student_identifier, e.student_phone,
	e.student_master_id, e.is_verified, e.position, e.status, e.admin_message,
	e.sms_logs, e.version, e.created_at, e.updated_at`

const queueColumns = `q.id, q.name, q.slug, q.status, q.expires_at, q.settings, q.created_by, q.created_at`

func (s *queueStore) CreateQueue(ctx context.Context, q *models.QueueEvent) error {
	if q.CreatedAt.IsZero() {
		q.CreatedAt = time.Now().UTC()
	}
	id, err := ExecNamedLastID(ctx, s.db, `
		INSERT INTO queue_events (name, slug, status, expires_at, settings, created_by, created_at)
		VALUES (:name, :slug, :status, :expiresAt, :settings, :createdBy, :createdAt)`,
		map[string]any{
			"name":      q.Name,
			"slug":      q.Slug,
			"status":    q.Status,
			"expiresAt": q.ExpiresAt,
			"settings":  q.Settings,
			"createdBy": q.CreatedBy,
			"createdAt": q.CreatedAt,
		})
	if isDuplicate(err) {
		return queue.ErrSlugTaken
	}
	if err != nil {
		return fmt.Errorf("insert queue: %w", err)
	}
	q.ID = id
	return nil
}

func (s *queueStore) getQueue(ctx context.Context, where string, params map[string]any) (models.QueueEvent, error) {
	q, err := QueryNamedOne[models.QueueEvent](ctx, s.db,
		`SELECT `+queueColumns+` FROM queue_events q WHERE `+where, params)
	if isNoRows(err) {
		return q, queue.ErrNotFound
	}
	return q, err
}

func (s *queueStore) GetQueue(ctx context.Context, id int64) (models.QueueEvent, error) {
	return s.getQueue(ctx, "q.id = :id", map[string]any{"id": id})
}

func (s *queueStore) GetQueueBySlug(ctx context.Context, slug string) (models.QueueEvent, error) {
	return s.getQueue(ctx, "q.slug = :slug", map[string]any{"slug": slug})
}

// queueFilter builds the WHERE clause shared by the list and its count.
func queueFilter(f queue.ListFilter, loc *time.Location) (string, map[string]any, error) {
	conds := []string{"q.status <> 'ARCHIVED'"}
	if f.View == queue.ViewArchived {
		conds[0] = "q.status = 'ARCHIVED'"
	}
	params := map[string]any{}
	if f.Search != "" {
		conds = append(conds, "(q.name LIKE :search OR q.slug LIKE :search)")
		params["search"] = listing.LikePattern(f.Search)
	}
	if f.Date != "" {
		start, end, err := listing.DayRange(f.Date, loc)
		if err != nil {
			return "", nil, err
		}
		conds = append(conds, "q.created_at BETWEEN :dayStart AND :dayEnd")
		params["dayStart"] = start.UTC()
		params["dayEnd"] = end.UTC()
	}
	return strings.Join(conds, " AND "), params, nil
}

type queueRow struct {
	models.QueueEvent
	models.QueueStats
}

func (s *queueStore) ListQueues(ctx context.Context, f queue.ListFilter) ([]models.QueueEventWithStats, int, error) {
	where, params, err := queueFilter(f, s.loc)
	if err != nil {
		return nil, 0, err
	}

	total, err := QueryCountNamed(ctx, s.db, `SELECT COUNT(*) FROM queue_events q WHERE `+where, params)
	if err != nil {
		return nil, 0, fmt.Errorf("count queues: %w", err)
	}

	params["limit"] = f.Limit()
	params["offset"] = f.Offset()
	rows, err := QueryListNamed[queueRow](ctx, s.db, `
		SELECT `+queueColumns+`,
			COUNT(e.id) AS total,
			COALESCE(SUM(e.status = 'WAITING'), 0) AS waiting,
			COALESCE(SUM(e.status = 'SERVING'), 0) AS serving,
			COALESCE(SUM(e.status = 'COMPLETED'), 0) AS served,
			COALESCE(SUM(e.status = 'REMOVED'), 0) AS removed
		FROM queue_events q
		LEFT JOIN queue_entries e ON e.queue_id = q.id
		WHERE `+where+`
		GROUP BY q.id
		ORDER BY q.created_at DESC, q.id DESC
		LIMIT :limit OFFSET :offset`, params)
	if err != nil {
		return nil, 0, fmt.Errorf("list queues: %w", err)
	}

	out := make([]models.QueueEventWithStats, 0, len(rows))
	for _, r := range rows {
		out = append(out, models.QueueEventWithStats{QueueEvent: r.QueueEvent, Stats: r.QueueStats})
	}
	return out, total, nil
}

func (s *queueStore) OpenQueues(ctx context.Context) ([]models.QueueEvent, error) {
	return QueryListNamed[models.QueueEvent](ctx, s.db,
		`SELECT `+queueColumns+` FROM queue_events q WHERE q.status = :status`,
		map[string]any{"status": models.EventOpen})
}

func (s *queueStore) SetQueueStatus(ctx context.Context, id int64, status models.EventStatus) error {
	n, err := ExecNamed(ctx, s.db, `UPDATE queue_events SET status = :status WHERE id = :id`,
		map[string]any{"status": status, "id": id})
	if err != nil {
		return fmt.Errorf("update queue status: %w", err)
	}
	if n == 0 {
		// MySQL reports 0 affected rows when the value is unchanged.
		if _, err := s.GetQueue(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

func (s *queueStore) DeleteQueue(ctx context.Context, id int64) error {
	return s.tx(ctx, func(tx *sqlx.Tx) error {
		if _, err := ExecNamed(ctx, tx, `DELETE FROM queue_entries WHERE queue_id = :id`, map[string]any{"id": id}); err != nil {
			return fmt.Errorf("delete entries: %w", err)
		}
		n, err := ExecNamed(ctx, tx, `DELETE FROM queue_events WHERE id = :id`, map[string]any{"id": id})
		if err != nil {
			return fmt.Errorf("delete queue: %w", err)
		}
		if n == 0 {
			return queue.ErrNotFound
		}
		return nil
	})
}

// InsertEntry locks the parent queue row so concurrent joins allocate
// distinct positions.
func (s *queueStore) InsertEntry(ctx context.Context, e *models.QueueEntry) error {
	return s.tx(ctx, func(tx *sqlx.Tx) error {
		var locked int64
		err := tx.GetContext(ctx, &locked, `SELECT id FROM queue_events WHERE id = ? FOR UPDATE`, e.QueueID)
		if isNoRows(err) {
			return queue.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("lock queue: %w", err)
		}

		var next int
		if err := tx.GetContext(ctx, &next,
			`SELECT COALESCE(MAX(position), 0) + 1 FROM queue_entries WHERE queue_id = ?`, e.QueueID); err != nil {
			return fmt.Errorf("next position: %w", err)
		}

		now := time.Now().UTC()
		id, err := ExecNamedLastID(ctx, tx, `
			INSERT INTO queue_entries (queue_id, token, student_identifier, student_phone, student_master_id,
				is_verified, position, status, admin_message, sms_logs, version, created_at, updated_at)
			VALUES (:queueId, :token, :identifier, :phone, :masterId,
				:verified, :position, :status, :message, :smsLogs, 1, :now, :now)`,
			map[string]any{
				"queueId":    e.QueueID,
				"token":      e.Token,
				"identifier": e.StudentIdentifier,
				"phone":      e.StudentPhone,
				"masterId":   e.StudentMasterID,
				"verified":   e.IsVerified,
				"position":   next,
				"status":     e.Status,
				"message":    e.AdminMessage,
				"smsLogs":    e.SMSLogs,
				"now":        now,
			})
		if err != nil {
			return fmt.Errorf("insert entry: %w", err)
		}

		e.ID = id
		e.Position = next
		e.Version = 1
		e.CreatedAt = now
		e.UpdatedAt = now
		return nil
	})
}

func (s *queueStore) GetEntry(ctx context.Context, id int64) (models.QueueEntry, error) {
	e, err := QueryNamedOne[models.QueueEntry](ctx, s.db,
		`SELECT `+entryColumns+` FROM queue_entries e WHERE e.id = :id`, map[string]any{"id": id})
	if isNoRows(err) {
		return e, queue.ErrNotFound
	}
	return e, err
}

const entryWithQueue = `SELECT ` + entryColumns + `, q.name AS queue_name
	FROM queue_entries e JOIN queue_events q ON q.id = e.queue_id`

func (s *queueStore) GetEntryByToken(ctx context.Context, token string) (queue.EntryWithQueue, error) {
	e, err := QueryNamedOne[queue.EntryWithQueue](ctx, s.db, entryWithQueue+` WHERE e.token = :token`,
		map[string]any{"token": token})
	if isNoRows(err) {
		return e, queue.ErrNotFound
	}
	return e, err
}

func (s *queueStore) EntriesByTokens(ctx context.Context, tokens []string) ([]queue.EntryWithQueue, error) {
	if len(tokens) == 0 {
		return []queue.EntryWithQueue{}, nil
	}
	return QueryListNamed[queue.EntryWithQueue](ctx, s.db, entryWithQueue+` WHERE e.token IN (:tokens)`,
		map[string]any{"tokens": tokens})
}

func (s *queueStore) ActiveEntries(ctx context.Context, queueID int64) ([]models.QueueEntry, error) {
	return QueryListNamed[models.QueueEntry](ctx, s.db, `
		SELECT `+entryColumns+` FROM queue_entries e
		WHERE e.queue_id = :queueId AND e.status IN ('WAITING', 'SERVING')
		ORDER BY e.position, e.id`, map[string]any{"queueId": queueID})
}

func (s *queueStore) AllEntries(ctx context.Context, queueID int64) ([]models.QueueEntry, error) {
	return QueryListNamed[models.QueueEntry](ctx, s.db, `
		SELECT `+entryColumns+` FROM queue_entries e
		WHERE e.queue_id = :queueId
		ORDER BY e.created_at, e.id`, map[string]any{"queueId": queueID})
}

func (s *queueStore) CountWaiting(ctx context.Context, queueID int64) (int, error) {
	return QueryCountNamed(ctx, s.db,
		`SELECT COUNT(*) FROM queue_entries WHERE queue_id = :queueId AND status = 'WAITING'`,
		map[string]any{"queueId": queueID})
}

func (s *queueStore) TransitionEntry(ctx context.Context, id int64, from, to models.EntryStatus) error {
	n, err := ExecNamed(ctx, s.db, `
		UPDATE queue_entries SET status = :to, version = version + 1
		WHERE id = :id AND status = :from`,
		map[string]any{"id": id, "from": from, "to": to})
	if err != nil {
		return fmt.Errorf("transition entry: %w", err)
	}
	if n == 0 {
		return queue.ErrStaleEntry
	}
	return nil
}

// SwapPositions applies both updates or neither. Each is guarded by the
// version the caller read, so a concurrent edit aborts the swap.
func (s *queueStore) SwapPositions(ctx context.Context, a, b models.QueueEntry) error {
	return s.tx(ctx, func(tx *sqlx.Tx) error {
		for _, u := range []struct {
			entry    models.QueueEntry
			position int
		}{{a, b.Position}, {b, a.Position}} {
			n, err := ExecNamed(ctx, tx, `
				UPDATE queue_entries SET position = :position, version = version + 1
				WHERE id = :id AND version = :version`,
				map[string]any{"position": u.position, "id": u.entry.ID, "version": u.entry.Version})
			if err != nil {
				return fmt.Errorf("swap positions: %w", err)
			}
			if n == 0 {
				return queue.ErrStaleEntry
			}
		}
		return nil
	})
}

func (s *queueStore) SetAdminMessage(ctx context.Context, id int64, msg string) error {
	n, err := ExecNamed(ctx, s.db, `
		UPDATE queue_entries SET admin_message = :msg, version = version + 1 WHERE id = :id`,
		map[string]any{"id": id, "msg": msg})
	if err != nil {
		return fmt.Errorf("set admin message: %w", err)
	}
	if n == 0 {
		return queue.ErrNotFound
	}
	return nil
}

// MarkReminderSent flips the flag with a conditional update; only the caller
// whose update matched may send the reminder.
func (s *queueStore) MarkReminderSent(ctx context.Context, id int64, at time.Time) (bool, error) {
	n, err := ExecNamed(ctx, s.db, `
		UPDATE queue_entries
		SET sms_logs = JSON_SET(sms_logs, '$.reminder_sent', TRUE, '$.reminder_sent_at', :at)
		WHERE id = :id
		AND COALESCE(JSON_UNQUOTE(JSON_EXTRACT(sms_logs, '$.reminder_sent')), 'false') <> 'true'`,
		map[string]any{"id": id, "at": at.UTC().Format(time.RFC3339Nano)})
	if err != nil {
		return false, fmt.Errorf("mark reminder: %w", err)
	}
	return n == 1, nil
}

func (s *queueStore) FindStudent(ctx context.Context, studentID string) (models.StudentRecord, error) {
	st, err := QueryNamedOne[models.StudentRecord](ctx, s.db,
		`SELECT id, student_id, first_name, surname FROM students WHERE student_id = :sid`,
		map[string]any{"sid": studentID})
	if isNoRows(err) {
		return st, queue.ErrNotFound
	}
	return st, err
}
