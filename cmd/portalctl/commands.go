package main

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"admissions-portal/internal/app"
	"admissions-portal/internal/auth"
	"admissions-portal/internal/config"
	"admissions-portal/internal/models"
	"admissions-portal/internal/store"
)

func migrateCmd() *cobra.Command {
	var down int
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the embedded schema migrations, or roll back with --down",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			cfg.DB.Automigrate = false
			ms, err := app.OpenStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer ms.Close()

			if down > 0 {
				n, err := store.Rollback(ms.SQL(), down)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "rolled back %d migration(s)\n", n)
				return nil
			}
			return store.Migrate(ms.SQL())
		},
	}
	cmd.Flags().IntVar(&down, "down", 0, "number of migrations to roll back")
	return cmd
}

func createAdminCmd() *cobra.Command {
	var (
		in          auth.NewAdmin
		accessRoot  bool
		accessQueue bool
	)
	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Provision an admin profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			in.Permissions = models.Permissions{AccessRoot: accessRoot, AccessQueue: accessQueue}
			return withServices(cmd.Context(), func(s *app.Services) error {
				a, err := s.Auth.CreateAdmin(cmd.Context(), in)
				if err != nil {
					return err
				}
				slog.Info("admin created", slog.Int64("id", a.ID), slog.String("email", a.Email), slog.String("role", a.Role))
				return nil
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&in.Email, "email", "", "login email")
	f.StringVar(&in.Password, "password", "", "initial password")
	f.StringVar(&in.FullName, "name", "", "display name")
	f.StringVar(&in.Role, "role", models.RoleAdmin, "ADMIN or SUPER_ADMIN")
	f.BoolVar(&accessRoot, "access-root", false, "grant the developer console")
	f.BoolVar(&accessQueue, "access-queue", true, "grant the queue screens")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func generateBankKeyCmd() *cobra.Command {
	var req models.CreateBankRequest
	cmd := &cobra.Command{
		Use:   "generate-bank-key",
		Short: "Onboard a partner bank and print its API key once",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(cmd.Context(), func(s *app.Services) error {
				res, err := s.Console.Onboard(cmd.Context(), req)
				if err != nil {
					return err
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&req.BankName, "bank", "", "bank name")
	f.StringVar(&req.ContactEmail, "email", "", "contact email")
	f.StringVar(&req.ContactPhone, "phone", "", "contact phone")
	_ = cmd.MarkFlagRequired("bank")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("phone")
	return cmd
}

func dispatchPendingCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "dispatch-pending",
		Short: "Send every unsent SMS trigger that still has retries left",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(cmd.Context(), func(s *app.Services) error {
				n, err := s.Dispatcher.DispatchPending(cmd.Context(), limit)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "dispatched %d message(s)\n", n)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 100, "maximum triggers to process")
	return cmd
}
