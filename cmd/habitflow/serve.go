package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/aatumaykin/habitflow/internal/app"
	"github.com/aatumaykin/habitflow/internal/logger"
	"github.com/spf13/cobra"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the reminder scheduler",
	Long: `Start the reminder scheduler with the specified configuration.
Every stored habit with a reminder time is armed at startup; the process
runs until SIGINT or SIGTERM and then shuts down gracefully.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadValidConfig()
		if err != nil {
			return err
		}
		log, err := newLogger(cfg)
		if err != nil {
			return err
		}
		logger.SetDefault(log)

		log.Info("starting habitflow",
			logger.Field{Key: "version", Value: Version},
			logger.Field{Key: "git_commit", Value: GitCommit},
			logger.Field{Key: "timezone", Value: cfg.Scheduler.Timezone},
			logger.Field{Key: "transport", Value: cfg.Notify.Transport})

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		return app.New(cfg, log).Run(ctx)
	},
}
