package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"admissions-portal/internal/app"
	"admissions-portal/internal/config"
	"admissions-portal/internal/logger"
)

func main() {
	runtime.GOMAXPROCS(runtime.NumCPU())

	config.LoadEnv()
	cfg, err := config.Load()
	if err != nil {
		slog.Error("cannot load config", slog.String("err", err.Error()))
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a := app.New(cfg, log)
	if err := a.Start(ctx); err != nil {
		log.Error("cannot start the application", slog.String("err", err.Error()))
		os.Exit(1)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	select {
	case s := <-sigCh:
		log.Warn("signal received, exiting", slog.String("signal", s.String()))
		a.Stop(ctx)
		log.Info("application exited")
	case <-a.Done():
		log.Error("application exited")
		a.Stop(ctx)
		os.Exit(1)
	}
}
