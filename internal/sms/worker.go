package sms

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"admissions-portal/internal/models"
	"admissions-portal/internal/realtime"
)

const (
	DefaultWorkerInterval = 30 * time.Second
	pendingBatch          = 50
)

// TriggerStore persists new trigger rows.
type TriggerStore interface {
	InsertTrigger(ctx context.Context, t *models.SMSTrigger) error
}

// TriggerQueue stores triggers and announces them on the change feed so the
// worker can pick them up without waiting for its next tick.
type TriggerQueue struct {
	store    TriggerStore
	notifier realtime.Notifier
	log      *slog.Logger
}

func NewTriggerQueue(store TriggerStore, notifier realtime.Notifier, log *slog.Logger) *TriggerQueue {
	if log == nil {
		log = slog.Default()
	}
	return &TriggerQueue{store: store, notifier: notifier, log: log}
}

func (q *TriggerQueue) EnqueueTrigger(ctx context.Context, t *models.SMSTrigger) error {
	if err := q.store.InsertTrigger(ctx, t); err != nil {
		return fmt.Errorf("insert trigger: %w", err)
	}
	if q.notifier == nil {
		return nil
	}
	err := q.notifier.Publish(ctx, realtime.Change{
		Table:   realtime.TableSMSTriggers,
		Event:   realtime.EventInsert,
		EntryID: t.ID,
		At:      time.Now(),
	})
	if err != nil {
		q.log.Warn("announce trigger failed", slog.Int64("trigger_id", t.ID), slog.String("err", err.Error()))
	}
	return nil
}

// Worker drains pending triggers on an interval and whenever a new trigger
// is announced.
type Worker struct {
	d        *Dispatcher
	notifier realtime.Notifier
	interval time.Duration

	ctx  context.Context
	stop context.CancelFunc
	done chan struct{}
}

func NewWorker(d *Dispatcher, notifier realtime.Notifier, interval time.Duration) *Worker {
	if interval <= 0 {
		interval = DefaultWorkerInterval
	}
	return &Worker{d: d, notifier: notifier, interval: interval}
}

func (w *Worker) Start(ctx context.Context) error {
	if w.ctx != nil && w.stop != nil {
		return fmt.Errorf("sms worker already started")
	}
	w.ctx, w.stop = context.WithCancel(ctx)
	w.done = make(chan struct{})

	var sub realtime.Subscription
	if w.notifier != nil {
		sub = w.notifier.Subscribe(realtime.Filter{Table: realtime.TableSMSTriggers})
	}
	go w.worker(w.ctx, sub)
	return nil
}

func (w *Worker) Stop() error {
	if w.stop == nil {
		return fmt.Errorf("sms worker already stopped or not started")
	}
	w.stop()
	w.stop = nil
	<-w.done
	return nil
}

func (w *Worker) worker(ctx context.Context, sub realtime.Subscription) {
	defer close(w.done)
	var changes <-chan realtime.Change
	if sub != nil {
		defer sub.Close()
		changes = sub.C()
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.drain(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.drain(ctx)
		case _, ok := <-changes:
			if !ok {
				changes = nil
				continue
			}
			w.drain(ctx)
		}
	}
}

func (w *Worker) drain(ctx context.Context) {
	n, err := w.d.DispatchPending(ctx, pendingBatch)
	if err != nil && ctx.Err() == nil {
		slog.Default().ErrorContext(ctx, "dispatch pending sms failed", slog.String("err", err.Error()))
		return
	}
	if n > 0 {
		w.d.log.Info("pending sms dispatched", slog.Int("sent", n))
	}
}
