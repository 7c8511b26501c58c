package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/md-rashed-zaman/fitbook/libs/runtime"
	"github.com/md-rashed-zaman/fitbook/services/booking-service/internal/observe"
)

// newBackfillCommand fills missing end times from the service duration so the
// detector stops taking the fallback path for legacy rows.
func newBackfillCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "backfill-end-times",
		Short: "Set end_time on appointments stored without one",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := LoadConfig()
			if err != nil {
				return err
			}
			logger := runtime.NewLogger(cfg.Service)
			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
			defer cancel()

			b, err := openBackend(ctx, cfg, logger, observe.Nop{})
			if err != nil {
				return err
			}
			defer b.Close()
			if err := b.requirePool("backfill-end-times"); err != nil {
				return err
			}
			n, err := b.appts.BackfillEndTimes(ctx)
			if err != nil {
				return fmt.Errorf("backfill end times: %w", err)
			}
			logger.Info("end times backfilled", "rows", n)
			return nil
		},
	}
}
