package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"admissions-portal/internal/console"
	"admissions-portal/internal/listing"
	"admissions-portal/internal/models"
)

type bankStore struct {
	*MySQLStore
	loc *time.Location
}

// Banks returns the repository behind the developer console. loc expands
// the date filter of the request log.
func (ms *MySQLStore) Banks(loc *time.Location) console.Store {
	if loc == nil {
		loc = time.UTC
	}
	return &bankStore{MySQLStore: ms, loc: loc}
}

const bankColumns = `id, bank_name, contact_email, contact_phone, api_key_prefix, api_key_hash,
	is_active, expires_at, created_at`

const requestLogColumns = `id, request_id, bank_name, student_id_queried, response_status,
	http_status_code, response_time_ms, ip_address, user_agent, error_code, request_timestamp`

func (s *bankStore) ListBanks(ctx context.Context, q listing.Query) ([]models.BankAPIKey, int, error) {
	where := "1 = 1"
	params := map[string]any{}
	if q.Search != "" {
		where = "(bank_name LIKE :search OR contact_email LIKE :search)"
		params["search"] = listing.LikePattern(q.Search)
	}

	total, err := QueryCountNamed(ctx, s.db, `SELECT COUNT(*) FROM bank_api_keys WHERE `+where, params)
	if err != nil {
		return nil, 0, fmt.Errorf("count banks: %w", err)
	}
	params["limit"] = q.Limit()
	params["offset"] = q.Offset()
	rows, err := QueryListNamed[models.BankAPIKey](ctx, s.db, `
		SELECT `+bankColumns+` FROM bank_api_keys WHERE `+where+`
		ORDER BY created_at DESC, id DESC
		LIMIT :limit OFFSET :offset`, params)
	if err != nil {
		return nil, 0, fmt.Errorf("list banks: %w", err)
	}
	return rows, total, nil
}

func (s *bankStore) CreateBank(ctx context.Context, b *models.BankAPIKey) error {
	id, err := ExecNamedLastID(ctx, s.db, `
		INSERT INTO bank_api_keys (bank_name, contact_email, contact_phone, api_key_prefix, api_key_hash,
			is_active, expires_at, created_at)
		VALUES (:name, :email, :phone, :prefix, :hash, :active, :expiresAt, :createdAt)`,
		map[string]any{
			"name":      b.BankName,
			"email":     b.ContactEmail,
			"phone":     b.ContactPhone,
			"prefix":    b.APIKeyPrefix,
			"hash":      b.APIKeyHash,
			"active":    b.IsActive,
			"expiresAt": b.ExpiresAt.UTC(),
			"createdAt": b.CreatedAt.UTC(),
		})
	if isDuplicate(err) {
		return console.ErrBankTaken
	}
	if err != nil {
		return fmt.Errorf("insert bank: %w", err)
	}
	b.ID = id
	return nil
}

func (s *bankStore) RevokeBank(ctx context.Context, id int64) error {
	var exists int
	err := s.db.GetContext(ctx, &exists, `SELECT 1 FROM bank_api_keys WHERE id = ?`, id)
	if isNoRows(err) {
		return console.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("lookup bank: %w", err)
	}
	if _, err := ExecNamed(ctx, s.db, `UPDATE bank_api_keys SET is_active = FALSE WHERE id = :id`,
		map[string]any{"id": id}); err != nil {
		return fmt.Errorf("revoke bank: %w", err)
	}
	return nil
}

func (s *bankStore) ListRequestLogs(ctx context.Context, q listing.Query) ([]models.RequestLog, int, error) {
	var conds []string
	params := map[string]any{}
	if q.Search != "" {
		conds = append(conds, "(bank_name LIKE :search OR student_id_queried LIKE :search)")
		params["search"] = listing.LikePattern(q.Search)
	}
	if q.Date != "" {
		start, end, err := listing.DayRange(q.Date, s.loc)
		if err != nil {
			return nil, 0, err
		}
		conds = append(conds, "request_timestamp BETWEEN :dayStart AND :dayEnd")
		params["dayStart"] = start.UTC()
		params["dayEnd"] = end.UTC()
	}
	where := "1 = 1"
	if len(conds) > 0 {
		where = strings.Join(conds, " AND ")
	}

	total, err := QueryCountNamed(ctx, s.db, `SELECT COUNT(*) FROM api_request_logs WHERE `+where, params)
	if err != nil {
		return nil, 0, fmt.Errorf("count request logs: %w", err)
	}
	params["limit"] = q.Limit()
	params["offset"] = q.Offset()
	rows, err := QueryListNamed[models.RequestLog](ctx, s.db, `
		SELECT `+requestLogColumns+` FROM api_request_logs WHERE `+where+`
		ORDER BY request_timestamp DESC, id DESC
		LIMIT :limit OFFSET :offset`, params)
	if err != nil {
		return nil, 0, fmt.Errorf("list request logs: %w", err)
	}
	return rows, total, nil
}

func (s *bankStore) CountActiveBanks(ctx context.Context) (int, error) {
	return QueryCountNamed(ctx, s.db, `SELECT COUNT(*) FROM bank_api_keys WHERE is_active = TRUE`, nil)
}

func (s *bankStore) CountRequests(ctx context.Context) (int, error) {
	return QueryCountNamed(ctx, s.db, `SELECT COUNT(*) FROM api_request_logs`, nil)
}

func (s *bankStore) RequestsSince(ctx context.Context, since time.Time) ([]models.RequestLog, error) {
	return QueryListNamed[models.RequestLog](ctx, s.db, `
		SELECT `+requestLogColumns+` FROM api_request_logs
		WHERE request_timestamp >= :since
		ORDER BY request_timestamp DESC, id DESC`,
		map[string]any{"since": since.UTC()})
}
