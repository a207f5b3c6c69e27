package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"poolwatch/internal/app"
	"poolwatch/internal/calendar"
	"poolwatch/internal/config"
	"poolwatch/internal/fetch"
	"poolwatch/internal/notify"
	"poolwatch/internal/provider"
)

const version = "v1.2.0"

var (
	flagConfig string
	flagDate   string
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("No .env file found")
	}

	rootCmd := &cobra.Command{
		Use:     "poolwatch",
		Short:   "Daily A-share watch-pool engine",
		Version: version,
		Long: `poolwatch builds the daily stock watch pools from interval-return
rankings, diffs them against the previous session, enriches them with
market and anomaly data, and tracks hotspot novelty.`,
	}
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "path to YAML config file")
	rootCmd.PersistentFlags().StringVar(&flagDate, "date", "", "trade date YYYYMMDD (default: most recent session)")

	rootCmd.AddCommand(runCmd(), poolCmd(), diffCmd(), mergeCmd(), hotspotsCmd(), scheduleCmd())

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("Command failed")
		os.Exit(1)
	}
}

// runtime bundles the wired collaborators a subcommand needs.
type runtime struct {
	cfg config.Config
	cal *calendar.Calendar
	app *app.App

	// refreshCalendar re-fetches the trading calendar; long-running modes
	// call it so the day list never goes stale.
	refreshCalendar func(context.Context) (*calendar.Calendar, error)
}

func setup(ctx context.Context) (*runtime, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, err
	}

	marketClient := provider.NewClient(cfg.Providers.MarketURL, "", fetch.NewDoer(doerConfig("market", cfg)))
	rank := provider.NewRankClient(marketClient)
	market := provider.NewMarketClient(marketClient)

	anomalyClient := provider.NewClient(cfg.Providers.AnomalyURL, cfg.Providers.AnomalyToken,
		fetch.NewDoer(doerConfig("anomaly", cfg)))
	anomaly := provider.NewAnomalyClient(anomalyClient)

	calPath := filepath.Join(cfg.DataDir, "calendar.txt")
	cal, err := calendar.Load(calPath)
	if err != nil || cal.DefaultTradeDate() == "" {
		log.Info().Str("path", calPath).Msg("Refreshing trading calendar")
		cal, err = calendar.Refresh(ctx, market, calPath)
		if err != nil {
			return nil, fmt.Errorf("refresh calendar: %w", err)
		}
	}

	var notifier notify.Notifier = notify.Nop{}
	if cfg.Notify.WebhookURL != "" {
		notifier = notify.BestEffort{N: notify.NewWebhook(cfg.Notify.WebhookURL, cfg.Notify.Keyword)}
	}

	return &runtime{
		cfg: cfg,
		cal: cal,
		app: app.New(cfg, rank, market, anomaly, cal, notifier),
		refreshCalendar: func(ctx context.Context) (*calendar.Calendar, error) {
			return calendar.Refresh(ctx, market, calPath)
		},
	}, nil
}

func doerConfig(name string, cfg config.Config) fetch.DoerConfig {
	dc := fetch.DefaultDoerConfig(name)
	if cfg.Providers.RequestsPerSec > 0 {
		dc.RequestsPerSec = cfg.Providers.RequestsPerSec
	}
	return dc
}

// tradeDate resolves the working date: the --date flag when given, else the
// most recent trading session.
func (rt *runtime) tradeDate() (string, error) {
	if flagDate != "" {
		if _, err := time.Parse(calendar.DateFormat, flagDate); err != nil {
			return "", fmt.Errorf("bad --date %q: want YYYYMMDD", flagDate)
		}
		if !rt.cal.IsTradingDay(flagDate) {
			log.Warn().Str("date", flagDate).Msg("Not a known trading day")
		}
		return flagDate, nil
	}
	date := rt.cal.DefaultTradeDate()
	if date == "" {
		return "", fmt.Errorf("no recent trading day in calendar")
	}
	return date, nil
}
