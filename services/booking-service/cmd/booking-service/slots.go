package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/md-rashed-zaman/fitbook/libs/runtime"
	"github.com/md-rashed-zaman/fitbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/fitbook/services/booking-service/internal/calendar"
	"github.com/md-rashed-zaman/fitbook/services/booking-service/internal/observe"
)

type slotDay struct {
	Date    calendar.Date        `json:"date"`
	Weekday string               `json:"weekday"`
	Slots   []calendar.TimeOfDay `json:"slots"`
}

func newSlotsCommand() *cobra.Command {
	var trainerID, serviceID, lang string
	var days int
	cmd := &cobra.Command{
		Use:   "slots",
		Short: "Print bookable start times for a trainer and service",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(trainerID) == "" || strings.TrimSpace(serviceID) == "" {
				return fmt.Errorf("--trainer and --service are required")
			}
			cfg, err := LoadConfig()
			if err != nil {
				return err
			}
			logger := runtime.NewLogger(cfg.Service)
			b, err := openBackend(cmd.Context(), cfg, logger, observe.Nop{})
			if err != nil {
				return err
			}
			defer b.Close()

			byDate, err := b.slots.AvailableSlots(cmd.Context(), trainerID, serviceID, days)
			if err != nil {
				return err
			}
			return writeSlots(cmd.OutOrStdout(), byDate, calendar.ParseLocale(lang))
		},
	}
	cmd.Flags().StringVar(&trainerID, "trainer", "", "trainer id")
	cmd.Flags().StringVar(&serviceID, "service", "", "service id")
	cmd.Flags().IntVar(&days, "days", 0, "horizon in days (0 uses SLOT_HORIZON_DAYS)")
	cmd.Flags().StringVar(&lang, "lang", "en", "weekday name locale")
	return cmd
}

// writeSlots prints one JSON object per day, in date order.
func writeSlots(w io.Writer, byDate map[calendar.Date][]calendar.TimeOfDay, locale calendar.Locale) error {
	enc := json.NewEncoder(w)
	for _, d := range availability.SortedDates(byDate) {
		if err := enc.Encode(slotDay{Date: d, Weekday: calendar.DayName(d.Weekday(), locale), Slots: byDate[d]}); err != nil {
			return err
		}
	}
	return nil
}
