package main

import (
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func scheduleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schedule",
		Short: "Run the daily pipeline on the configured cron schedule",
		RunE:  runSchedule,
	}
}

func runSchedule(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := setup(ctx)
	if err != nil {
		return err
	}

	c := cron.New(cron.WithSeconds())
	_, err = c.AddFunc(rt.cfg.Schedule, func() {
		if cal, err := rt.refreshCalendar(ctx); err != nil {
			log.Warn().Err(err).Msg("Calendar refresh failed, using cached day list")
		} else {
			rt.cal = cal
			rt.app.SetCalendar(cal)
		}

		date := rt.cal.DefaultTradeDate()
		if date == "" {
			log.Warn().Msg("No recent trading day, skipping run")
			return
		}
		if err := rt.app.RunDaily(ctx, date); err != nil {
			log.Error().Err(err).Str("date", date).Msg("Scheduled run failed")
		}
	})
	if err != nil {
		return err
	}

	log.Info().Str("schedule", rt.cfg.Schedule).Msg("Scheduler started")
	c.Start()
	<-ctx.Done()

	stopCtx := c.Stop()
	<-stopCtx.Done()
	log.Info().Msg("Scheduler stopped")
	return nil
}
