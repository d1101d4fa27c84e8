package sms

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"admissions-portal/internal/models"
)

const (
	MaxAttempts = 3

	MessageSent = "SMS sent successfully"

	guardTTL = 24 * time.Hour
)

var (
	ErrMissingFields    = errors.New("Missing required fields")
	ErrTemplateNotFound = errors.New("template not found")
	ErrDuplicateTrigger = errors.New("trigger already dispatched")
)

// TemplateError names the template key that could not be loaded.
type TemplateError struct{ Key string }

func (e *TemplateError) Error() string { return "Template not found: " + e.Key }

func (e *TemplateError) Unwrap() error { return ErrTemplateNotFound }

// Store is the persistence the dispatcher needs.
type Store interface {
	ActiveTemplate(ctx context.Context, key string) (models.SMSTemplate, error)
	UpdateTrigger(ctx context.Context, id int64, res models.TriggerResult) error
	InsertLog(ctx context.Context, l *models.SMSLog) error
	PendingTriggers(ctx context.Context, limit int) ([]models.SMSTrigger, error)
}

// Guard stops the same trigger from being dispatched twice within its TTL.
type Guard interface {
	Acquire(ctx context.Context, triggerID int64) (bool, error)
	Release(ctx context.Context, triggerID int64) error
}

// RedisGuard keeps one SETNX key per trigger id.
type RedisGuard struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisGuard(rdb *redis.Client) *RedisGuard {
	return &RedisGuard{rdb: rdb, ttl: guardTTL}
}

func guardKey(id int64) string { return "sms:trigger:" + strconv.FormatInt(id, 10) }

func (g *RedisGuard) Acquire(ctx context.Context, triggerID int64) (bool, error) {
	return g.rdb.SetNX(ctx, guardKey(triggerID), "dispatching", g.ttl).Result()
}

func (g *RedisGuard) Release(ctx context.Context, triggerID int64) error {
	return g.rdb.Del(ctx, guardKey(triggerID)).Err()
}

type Request struct {
	TriggerID    int64               `json:"trigger_id"`
	SourceTable  string              `json:"source_table"`
	Phone        string              `json:"phone"`
	TemplateKey  string              `json:"template_key"`
	TemplateData models.TemplateData `json:"template_data"`
}

// RequestFromTrigger builds a dispatch request from a stored trigger row.
func RequestFromTrigger(t models.SMSTrigger) Request {
	return Request{
		TriggerID:    t.ID,
		SourceTable:  t.SourceTable,
		Phone:        t.Phone,
		TemplateKey:  t.TemplateKey,
		TemplateData: t.TemplateData,
	}
}

type Result struct {
	Success   bool   `json:"success"`
	TriggerID int64  `json:"trigger_id"`
	Phone     string `json:"phone"`
	Message   string `json:"message"`
}

type Dispatcher struct {
	store   Store
	gateway Gateway
	guard   Guard
	log     *slog.Logger

	// Sleep waits between attempts. Tests replace it to avoid real delays.
	Sleep func(ctx context.Context, d time.Duration) error
	Now   func() time.Time
}

// NewDispatcher wires a dispatcher. guard may be nil.
func NewDispatcher(store Store, gw Gateway, guard Guard, log *slog.Logger) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{
		store:   store,
		gateway: gw,
		guard:   guard,
		log:     log.With(slog.String("component", "sms")),
		Sleep:   sleepCtx,
		Now:     time.Now,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Dispatch renders the trigger's template and sends it with up to three
// attempts, then records the outcome on the trigger row and in the audit log.
// A gateway failure is reported in the Result, not as an error; errors are
// reserved for bad input and storage problems.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (Result, error) {
	if req.TriggerID == 0 || req.Phone == "" || req.TemplateKey == "" || req.TemplateData == nil {
		return Result{}, ErrMissingFields
	}
	log := d.log.With(slog.Int64("trigger_id", req.TriggerID))

	if d.guard != nil {
		ok, err := d.guard.Acquire(ctx, req.TriggerID)
		if err != nil {
			log.Warn("dispatch guard unavailable", slog.String("err", err.Error()))
		} else if !ok {
			return Result{}, ErrDuplicateTrigger
		}
	}

	res, sent, err := d.dispatch(ctx, log, req)
	if (err != nil || !sent) && d.guard != nil {
		if rerr := d.guard.Release(context.WithoutCancel(ctx), req.TriggerID); rerr != nil {
			log.Warn("release dispatch guard failed", slog.String("err", rerr.Error()))
		}
	}
	return res, err
}

func (d *Dispatcher) dispatch(ctx context.Context, log *slog.Logger, req Request) (Result, bool, error) {
	tmpl, err := d.store.ActiveTemplate(ctx, req.TemplateKey)
	if err != nil {
		if errors.Is(err, ErrTemplateNotFound) {
			return Result{}, false, &TemplateError{Key: req.TemplateKey}
		}
		return Result{}, false, fmt.Errorf("load template %q: %w", req.TemplateKey, err)
	}

	message := Process(log, tmpl.MessageTemplate, req.TemplateData)

	var (
		resp    GatewayResponse
		lastErr error
		sent    bool
	)
	for attempt := 0; attempt < MaxAttempts; attempt++ {
		resp, lastErr = d.gateway.Send(ctx, req.Phone, message)
		if lastErr == nil {
			sent = true
			log.Info("sms sent", slog.Int("attempt", attempt+1))
			break
		}
		log.Error("sms attempt failed", slog.Int("attempt", attempt+1), slog.String("err", lastErr.Error()))
		if attempt < MaxAttempts-1 {
			if err := d.Sleep(ctx, time.Duration(attempt+1)*time.Second); err != nil {
				lastErr = err
				break
			}
		}
	}

	persistCtx := context.WithoutCancel(ctx)
	if err := d.store.UpdateTrigger(persistCtx, req.TriggerID, d.triggerResult(sent, lastErr, resp)); err != nil {
		return Result{}, sent, fmt.Errorf("update trigger: %w", err)
	}
	if err := d.store.InsertLog(persistCtx, auditRow(req, message, sent, lastErr, resp)); err != nil {
		return Result{}, sent, fmt.Errorf("log sms: %w", err)
	}

	res := Result{Success: sent, TriggerID: req.TriggerID, Phone: req.Phone, Message: MessageSent}
	if !sent {
		res.Message = fmt.Sprintf("Failed after %d attempts: %s", MaxAttempts, lastErr)
	}
	return res, sent, nil
}

func (d *Dispatcher) triggerResult(sent bool, lastErr error, resp GatewayResponse) models.TriggerResult {
	if !sent {
		msg := lastErr.Error()
		return models.TriggerResult{RetryCount: MaxAttempts, ErrorMessage: &msg}
	}
	now := d.Now()
	r := models.TriggerResult{SMSSent: true, SentAt: &now}
	if id := resp.MessageID(); id != "" {
		r.GatewayMessageID = &id
	}
	return r
}

func auditRow(req Request, message string, sent bool, lastErr error, resp GatewayResponse) *models.SMSLog {
	l := &models.SMSLog{
		TriggerID:   req.TriggerID,
		Phone:       req.Phone,
		MessageSent: message,
		Status:      models.SMSLogSent,
	}
	if len(resp.Raw) > 0 {
		raw := string(resp.Raw)
		l.GatewayResponse = &raw
	}
	if !sent {
		msg := lastErr.Error()
		l.Status = models.SMSLogFailed
		l.ErrorMessage = &msg
		l.RetryAttempt = MaxAttempts
	}
	return l
}

// DispatchPending sends up to limit triggers that are unsent and still have
// retries left, returning how many went out.
func (d *Dispatcher) DispatchPending(ctx context.Context, limit int) (int, error) {
	triggers, err := d.store.PendingTriggers(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("load pending triggers: %w", err)
	}
	sent := 0
	for _, t := range triggers {
		if err := ctx.Err(); err != nil {
			return sent, err
		}
		res, err := d.Dispatch(ctx, RequestFromTrigger(t))
		var tmplErr *TemplateError
		switch {
		case errors.Is(err, ErrDuplicateTrigger):
			continue
		case errors.As(err, &tmplErr):
			// Park the row so the worker stops picking it up.
			msg := tmplErr.Error()
			if uerr := d.store.UpdateTrigger(ctx, t.ID, models.TriggerResult{RetryCount: MaxAttempts, ErrorMessage: &msg}); uerr != nil {
				d.log.Error("park trigger failed", slog.Int64("trigger_id", t.ID), slog.String("err", uerr.Error()))
			}
			continue
		case err != nil:
			d.log.Error("dispatch trigger failed", slog.Int64("trigger_id", t.ID), slog.String("err", err.Error()))
			continue
		}
		if res.Success {
			sent++
		}
	}
	return sent, nil
}
