package store

import (
	"context"
	"fmt"
	"time"

	"admissions-portal/internal/models"
	"admissions-portal/internal/sms"
)

// SMSStore backs the dispatcher, the trigger queue and the template console.
type SMSStore struct {
	*MySQLStore
}

func (ms *MySQLStore) SMS() *SMSStore {
	return &SMSStore{MySQLStore: ms}
}

var (
	_ sms.Store        = (*SMSStore)(nil)
	_ sms.TriggerStore = (*SMSStore)(nil)
)

const templateColumns = `id, template_key, template_name, category, message_template, is_active, created_at, updated_at`

func (s *SMSStore) ActiveTemplate(ctx context.Context, key string) (models.SMSTemplate, error) {
	t, err := QueryNamedOne[models.SMSTemplate](ctx, s.db,
		`SELECT `+templateColumns+` FROM sms_templates WHERE template_key = :key AND is_active = TRUE`,
		map[string]any{"key": key})
	if isNoRows(err) {
		return t, sms.ErrTemplateNotFound
	}
	return t, err
}

func (s *SMSStore) ListTemplates(ctx context.Context) ([]models.SMSTemplate, error) {
	return QueryListNamed[models.SMSTemplate](ctx, s.db,
		`SELECT `+templateColumns+` FROM sms_templates ORDER BY category, template_key`, nil)
}

func (s *SMSStore) UpdateTemplate(ctx context.Context, key string, req models.UpdateTemplateRequest) (models.SMSTemplate, error) {
	_, err := ExecNamed(ctx, s.db, `
		UPDATE sms_templates SET message_template = :body, is_active = :active
		WHERE template_key = :key`,
		map[string]any{"key": key, "body": req.MessageTemplate, "active": req.IsActive})
	if err != nil {
		return models.SMSTemplate{}, fmt.Errorf("update template: %w", err)
	}
	t, err := QueryNamedOne[models.SMSTemplate](ctx, s.db,
		`SELECT `+templateColumns+` FROM sms_templates WHERE template_key = :key`,
		map[string]any{"key": key})
	if isNoRows(err) {
		return t, sms.ErrTemplateNotFound
	}
	return t, err
}

func (s *SMSStore) InsertTrigger(ctx context.Context, t *models.SMSTrigger) error {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	id, err := ExecNamedLastID(ctx, s.db, `
		INSERT INTO sms_triggers (source_table, phone, template_key, template_data, created_at)
		VALUES (:source, :phone, :key, :data, :createdAt)`,
		map[string]any{
			"source":    t.SourceTable,
			"phone":     t.Phone,
			"key":       t.TemplateKey,
			"data":      t.TemplateData,
			"createdAt": t.CreatedAt,
		})
	if err != nil {
		return fmt.Errorf("insert trigger: %w", err)
	}
	t.ID = id
	return nil
}

func (s *SMSStore) UpdateTrigger(ctx context.Context, id int64, res models.TriggerResult) error {
	_, err := ExecNamed(ctx, s.db, `
		UPDATE sms_triggers
		SET sms_sent = :sent, retry_count = :retries, error_message = :error,
			sent_at = :sentAt, gateway_message_id = :gatewayId
		WHERE id = :id`,
		map[string]any{
			"id":        id,
			"sent":      res.SMSSent,
			"retries":   res.RetryCount,
			"error":     res.ErrorMessage,
			"sentAt":    res.SentAt,
			"gatewayId": res.GatewayMessageID,
		})
	if err != nil {
		return fmt.Errorf("update trigger %d: %w", id, err)
	}
	return nil
}

func (s *SMSStore) InsertLog(ctx context.Context, l *models.SMSLog) error {
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}
	id, err := ExecNamedLastID(ctx, s.db, `
		INSERT INTO sms_logs (trigger_id, phone, message_sent, status, gateway_response, error_message, retry_attempt, created_at)
		VALUES (:triggerId, :phone, :message, :status, :response, :error, :attempt, :createdAt)`,
		map[string]any{
			"triggerId": l.TriggerID,
			"phone":     l.Phone,
			"message":   l.MessageSent,
			"status":    l.Status,
			"response":  l.GatewayResponse,
			"error":     l.ErrorMessage,
			"attempt":   l.RetryAttempt,
			"createdAt": l.CreatedAt,
		})
	if err != nil {
		return fmt.Errorf("insert sms log: %w", err)
	}
	l.ID = id
	return nil
}

// PendingTriggers returns unsent triggers that still have attempts left,
// oldest first.
func (s *SMSStore) PendingTriggers(ctx context.Context, limit int) ([]models.SMSTrigger, error) {
	return QueryListNamed[models.SMSTrigger](ctx, s.db, `
		SELECT id, source_table, phone, template_key, template_data, sms_sent, retry_count,
			error_message, sent_at, gateway_message_id, created_at
		FROM sms_triggers
		WHERE sms_sent = FALSE AND retry_count < :maxAttempts
		ORDER BY created_at, id
		LIMIT :limit`,
		map[string]any{"maxAttempts": sms.MaxAttempts, "limit": limit})
}
