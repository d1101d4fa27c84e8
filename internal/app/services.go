package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"admissions-portal/internal/auth"
	"admissions-portal/internal/config"
	"admissions-portal/internal/console"
	"admissions-portal/internal/queue"
	"admissions-portal/internal/realtime"
	"admissions-portal/internal/settings"
	"admissions-portal/internal/sms"
	"admissions-portal/internal/store"
)

// Services is the domain layer built on top of one store. The HTTP server
// and the portalctl commands share it.
type Services struct {
	Store      *store.MySQLStore
	Location   *time.Location
	JWT        *config.JWT
	Auth       *auth.Service
	Settings   *settings.Service
	Console    *console.Service
	Dispatcher *sms.Dispatcher
	Triggers   *sms.TriggerQueue
	Queues     *queue.Service
}

// NewServices wires the domain services. rdb may be nil, in which case the
// SMS dispatcher runs without its duplicate-send guard.
func NewServices(cfg config.Config, ms *store.MySQLStore, rdb *redis.Client, notifier realtime.Notifier, log *slog.Logger) *Services {
	loc := cfg.Location()
	jwt := config.NewJWT(cfg.JWTSecret)

	var guard sms.Guard
	if rdb != nil {
		guard = sms.NewRedisGuard(rdb)
	}
	gw := sms.NewArkeselClient(sms.ArkeselConfig{
		APIKey:   cfg.ArkeselAPIKey,
		SenderID: cfg.ArkeselSenderID,
		BaseURL:  cfg.ArkeselBaseURL,
	})

	settingsSvc := settings.NewService(ms.Settings(), log)
	triggers := sms.NewTriggerQueue(ms.SMS(), notifier, log)

	return &Services{
		Store:      ms,
		Location:   loc,
		JWT:        jwt,
		Auth:       auth.NewService(ms.Admins(), jwt, config.NewRecaptcha(cfg.RecaptchaSecret), log),
		Settings:   settingsSvc,
		Console:    console.NewService(ms.Banks(loc), log),
		Dispatcher: sms.NewDispatcher(ms.SMS(), gw, guard, log),
		Triggers:   triggers,
		Queues: queue.NewService(queue.Deps{
			Store:    ms.Queues(loc),
			Triggers: triggers,
			Switch:   settingsSvc,
			Notifier: notifier,
			Logger:   log,
			BaseURL:  cfg.PublicBaseURL,
		}),
	}
}

// OpenStore connects to MySQL using cfg.DB.
func OpenStore(ctx context.Context, cfg config.Config) (*store.MySQLStore, error) {
	return store.New(ctx, store.Config{
		DSN:                cfg.DB.ConnString(),
		Automigrate:        cfg.DB.Automigrate,
		MaxOpenConnections: cfg.DB.MaxOpen,
		MaxIdleConnections: cfg.DB.MaxIdle,
	})
}
