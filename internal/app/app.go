// Package app assembles the portal process: store, realtime fan-out,
// background workers and the HTTP server.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"

	"admissions-portal/internal/config"
	"admissions-portal/internal/http/handler"
	"admissions-portal/internal/queue"
	"admissions-portal/internal/realtime"
	"admissions-portal/internal/sms"
	"admissions-portal/internal/store"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	cfg config.Config
	log *slog.Logger

	db  *store.MySQLStore
	rdb *redis.Client
	hs  *fiber.App

	smsWorker *sms.Worker
	reminders *queue.ReminderWorker

	cancel   context.CancelFunc
	wg       sync.WaitGroup
	done     chan struct{}
	doneOnce sync.Once
}

func New(cfg config.Config, log *slog.Logger) *App {
	if log == nil {
		log = slog.Default()
	}
	return &App{
		cfg:  cfg,
		log:  log,
		done: make(chan struct{}),
	}
}

// Start connects the backing services and begins serving. It returns once
// the listener is up; a later listener failure closes Done.
func (a *App) Start(ctx context.Context) error {
	var err error
	a.db, err = OpenStore(ctx, a.cfg)
	if err != nil {
		return fmt.Errorf("cannot create a store: %w", err)
	}

	a.rdb, err = config.NewRedis(ctx, a.cfg.Redis)
	if err != nil {
		a.db.Close()
		return fmt.Errorf("cannot connect to redis: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	hub := realtime.NewHub(a.log)
	a.goRun(func() { hub.Run(runCtx) })

	var notifier realtime.Notifier = hub
	if a.rdb != nil {
		rn := realtime.NewRedisNotifier(a.rdb, hub, a.log)
		a.goRun(func() {
			if err := rn.Run(runCtx); err != nil {
				a.log.Error("redis change feed stopped", slog.String("err", err.Error()))
			}
		})
		notifier = rn
	}

	svc := NewServices(a.cfg, a.db, a.rdb, notifier, a.log)

	a.smsWorker = sms.NewWorker(svc.Dispatcher, notifier, a.cfg.SMSWorkerInterval)
	if err := a.smsWorker.Start(runCtx); err != nil {
		a.teardown()
		return fmt.Errorf("cannot start sms worker: %w", err)
	}
	a.reminders = queue.NewReminderWorker(svc.Queues, notifier, a.cfg.ReminderSweepInterval)
	if err := a.reminders.Start(runCtx); err != nil {
		a.teardown()
		return fmt.Errorf("cannot start reminder worker: %w", err)
	}

	a.hs = fiber.New(fiber.Config{
		AppName:               "admissions-portal",
		CaseSensitive:         true,
		DisableStartupMessage: true,
	})
	a.hs.Use(recover.New())
	a.hs.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))

	handler.New(handler.Deps{
		Auth:       svc.Auth,
		Queues:     svc.Queues,
		Console:    svc.Console,
		Settings:   svc.Settings,
		Templates:  a.db.SMS(),
		Dispatcher: svc.Dispatcher,
		Notifier:   notifier,
		Logger:     a.log,
		Location:   svc.Location,
	}).Register(a.hs, handler.RouteConfig{
		JWT:          svc.JWT,
		Admins:       a.db.Admins(),
		FunctionUser: a.cfg.FunctionUser,
		FunctionPass: a.cfg.FunctionPass,
	})

	addr := net.JoinHostPort(a.cfg.Host, a.cfg.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		a.teardown()
		return fmt.Errorf("cannot listen on %s: %w", addr, err)
	}
	a.log.Info("http server listening", slog.String("addr", addr))

	go func() {
		if err := a.hs.Listener(ln); err != nil {
			a.log.Error("http server stopped", slog.String("err", err.Error()))
		}
		a.closeDone()
	}()
	return nil
}

// Stop drains HTTP, halts the workers and closes the connections.
func (a *App) Stop(ctx context.Context) {
	if a.hs != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
		if err := a.hs.ShutdownWithContext(shutdownCtx); err != nil {
			a.log.Error("http shutdown", slog.String("err", err.Error()))
		}
		cancel()
	}
	a.teardown()
	a.closeDone()
}

func (a *App) Done() <-chan struct{} {
	return a.done
}

func (a *App) goRun(fn func()) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		fn()
	}()
}

func (a *App) teardown() {
	if a.reminders != nil {
		if err := a.reminders.Stop(); err != nil {
			a.log.Warn("reminder worker", slog.String("err", err.Error()))
		}
		a.reminders = nil
	}
	if a.smsWorker != nil {
		if err := a.smsWorker.Stop(); err != nil {
			a.log.Warn("sms worker", slog.String("err", err.Error()))
		}
		a.smsWorker = nil
	}
	if a.cancel != nil {
		a.cancel()
		a.wg.Wait()
		a.cancel = nil
	}
	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil && !errors.Is(err, redis.ErrClosed) {
			a.log.Warn("redis close", slog.String("err", err.Error()))
		}
		a.rdb = nil
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.Warn("db close", slog.String("err", err.Error()))
		}
		a.db = nil
	}
}

func (a *App) closeDone() {
	a.doneOnce.Do(func() { close(a.done) })
}
