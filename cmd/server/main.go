package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/yukikurage/tenant-onboarding/internal/config"
	"github.com/yukikurage/tenant-onboarding/internal/database"
	"github.com/yukikurage/tenant-onboarding/internal/logger"
	"github.com/yukikurage/tenant-onboarding/internal/server"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "onboarding",
		Short:        "Tenant onboarding service",
		SilenceUsage: true,
	}
	root.AddCommand(newServeCommand())
	root.AddCommand(newMigrateCommand())
	return root
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fx.New(
				server.Module,
				fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
					return &fxevent.ZapLogger{Logger: log.Named("fx")}
				}),
			)
			if err := app.Err(); err != nil {
				return err
			}
			app.Run()
			return nil
		},
	}
}

func newMigrateCommand() *cobra.Command {
	var withIdentity bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			log, err := logger.New(cfg)
			if err != nil {
				return err
			}
			defer log.Sync()

			db, err := database.Connect(cfg, log)
			if err != nil {
				return err
			}
			defer database.Close(db)

			includeIdentity := withIdentity || cfg.IdentityMode == config.IdentityModeLocal
			if err := database.Migrate(db, includeIdentity); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			log.Info("migrations applied", zap.Bool("local_identity", includeIdentity))
			return nil
		},
	}
	cmd.Flags().BoolVar(&withIdentity, "with-identity", false, "also create the local identity tables")
	return cmd
}
