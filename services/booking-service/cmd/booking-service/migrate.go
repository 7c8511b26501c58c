package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/md-rashed-zaman/fitbook/libs/runtime"
	"github.com/md-rashed-zaman/fitbook/services/booking-service/internal/observe"
	"github.com/md-rashed-zaman/fitbook/services/booking-service/internal/storage"
)

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := LoadConfig()
			if err != nil {
				return err
			}
			logger := runtime.NewLogger(cfg.Service)
			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()

			b, err := openBackend(ctx, cfg, logger, observe.Nop{})
			if err != nil {
				return err
			}
			defer b.Close()
			if err := b.requirePool("migrate"); err != nil {
				return err
			}
			if err := storage.Migrate(ctx, b.pool); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			logger.Info("schema applied")
			return nil
		},
	}
}
