package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"admissions-portal/internal/app"
	"admissions-portal/internal/config"
	"admissions-portal/internal/logger"
	"admissions-portal/internal/realtime"
)

var (
	rootCmd = &cobra.Command{
		Use:           "portalctl",
		Short:         "Operator commands for the admissions portal",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the portalctl version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}

	version = "dev"
)

func main() {
	config.LoadEnv()
	rootCmd.AddCommand(versionCmd, migrateCmd(), createAdminCmd(), generateBankKeyCmd(), dispatchPendingCmd())
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		slog.Error("command failed", slog.String("err", err.Error()))
		os.Exit(1)
	}
}

// withServices opens the store with migrations disabled and hands fn the
// wired services. The connection is closed when fn returns.
func withServices(ctx context.Context, fn func(*app.Services) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(log)

	cfg.DB.Automigrate = false
	ms, err := app.OpenStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer ms.Close()

	rdb, err := config.NewRedis(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	if rdb != nil {
		defer rdb.Close()
	}

	hub := realtime.NewHub(log)
	hubCtx, stop := context.WithCancel(ctx)
	defer stop()
	go hub.Run(hubCtx)

	var notifier realtime.Notifier = hub
	if rdb != nil {
		notifier = realtime.NewRedisNotifier(rdb, hub, log)
	}
	return fn(app.NewServices(cfg, ms, rdb, notifier, log))
}
