package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"admissions-portal/internal/models"
	"admissions-portal/internal/realtime"
	"admissions-portal/internal/sms"
)

// RunReminders sends the one-shot threshold reminder for queueID and returns
// how many were queued. The reminder_sent flag is claimed before the trigger
// is queued, so two instances racing on the same snapshot send one SMS.
func (s *Service) RunReminders(ctx context.Context, queueID int64) (int, error) {
	q, err := s.store.GetQueue(ctx, queueID)
	if err != nil {
		return 0, err
	}
	if q.Status != models.EventOpen && q.Status != models.EventPaused {
		return 0, nil
	}
	cfg := q.Settings.SMS
	if !cfg.EnabledReminder {
		return 0, nil
	}

	entries, err := s.store.ActiveEntries(ctx, queueID)
	if err != nil {
		return 0, fmt.Errorf("load entries: %w", err)
	}
	due := DueReminders(entries, cfg.ReminderThreshold)
	if len(due) == 0 {
		return 0, nil
	}
	if !s.smsAllowed(ctx) {
		s.log.Info("reminders blocked by global switch", slog.Int64("queue_id", queueID))
		return 0, nil
	}

	sent := 0
	for _, e := range due {
		claimed, err := s.store.MarkReminderSent(ctx, e.ID, s.now())
		if err != nil {
			return sent, fmt.Errorf("mark reminder for entry %d: %w", e.ID, err)
		}
		if !claimed {
			continue
		}
		t := &models.SMSTrigger{
			SourceTable: sourceTable,
			Phone:       sms.FormatPhone(e.StudentPhone),
			TemplateKey: sms.TemplateQueueReminder,
			TemplateData: models.TemplateData{
				"first_name":     e.StudentIdentifier,
				"reference_code": e.Token,
				"fee_type":       q.Name,
				"amount":         cfg.ReminderThreshold,
				"queue_name":     q.Name,
				"position":       cfg.ReminderThreshold,
				"status_link":    s.statusLink(e.Token),
			},
		}
		if err := s.triggers.EnqueueTrigger(ctx, t); err != nil {
			s.log.Error("enqueue reminder failed", slog.Int64("entry_id", e.ID), slog.String("err", err.Error()))
			continue
		}
		sent++
		s.log.Info("reminder queued", slog.Int64("queue_id", queueID), slog.Int64("entry_id", e.ID))
	}
	return sent, nil
}

// SweepReminders runs reminders for every open queue.
func (s *Service) SweepReminders(ctx context.Context) error {
	queues, err := s.store.OpenQueues(ctx)
	if err != nil {
		return fmt.Errorf("list open queues: %w", err)
	}
	for _, q := range queues {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := s.RunReminders(ctx, q.ID); err != nil {
			s.log.Error("run reminders failed", slog.Int64("queue_id", q.ID), slog.String("err", err.Error()))
		}
	}
	return nil
}

const DefaultReminderInterval = time.Minute

// ReminderWorker re-runs reminders for a queue whenever one of its entries
// changes, and sweeps all open queues on an interval as a fallback.
type ReminderWorker struct {
	svc      *Service
	notifier realtime.Notifier
	interval time.Duration
	log      *slog.Logger

	ctx  context.Context
	stop context.CancelFunc
	done chan struct{}
}

func NewReminderWorker(svc *Service, notifier realtime.Notifier, interval time.Duration) *ReminderWorker {
	if interval <= 0 {
		interval = DefaultReminderInterval
	}
	return &ReminderWorker{
		svc:      svc,
		notifier: notifier,
		interval: interval,
		log:      svc.log.With(slog.String("worker", "reminder")),
	}
}

func (w *ReminderWorker) Start(ctx context.Context) error {
	if w.ctx != nil && w.stop != nil {
		return fmt.Errorf("reminder worker already started")
	}
	w.ctx, w.stop = context.WithCancel(ctx)
	w.done = make(chan struct{})

	var changes <-chan realtime.Change
	var sub realtime.Subscription
	if w.notifier != nil {
		sub = w.notifier.Subscribe(realtime.Filter{Table: realtime.TableQueueEntries})
		changes = sub.C()
	}
	go w.worker(w.ctx, sub, changes)
	return nil
}

func (w *ReminderWorker) Stop() error {
	if w.stop == nil {
		return fmt.Errorf("reminder worker already stopped or not started")
	}
	w.stop()
	w.stop = nil
	<-w.done
	return nil
}

func (w *ReminderWorker) worker(ctx context.Context, sub realtime.Subscription, changes <-chan realtime.Change) {
	defer close(w.done)
	if sub != nil {
		defer sub.Close()
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.svc.SweepReminders(ctx); err != nil && ctx.Err() == nil {
				w.log.ErrorContext(ctx, "reminder sweep failed", slog.String("err", err.Error()))
			}
		case c, ok := <-changes:
			if !ok {
				changes = nil
				continue
			}
			if c.QueueID == 0 {
				continue
			}
			if _, err := w.svc.RunReminders(ctx, c.QueueID); err != nil && ctx.Err() == nil {
				w.log.ErrorContext(ctx, "run reminders failed",
					slog.Int64("queue_id", c.QueueID), slog.String("err", err.Error()))
			}
		}
	}
}
