// Package app wires the collaborators into the daily pipeline: fetch the
// day's feeds, score and persist the watch pools, diff against the previous
// session, enrich, track hotspots, and tell the operator what changed.
package app

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"poolwatch/internal/calendar"
	"poolwatch/internal/config"
	"poolwatch/internal/fetch"
	"poolwatch/internal/hotspot"
	"poolwatch/internal/merge"
	"poolwatch/internal/notify"
	"poolwatch/internal/pool"
	"poolwatch/internal/snapshot"
)

// Pool variants. Core is the interval-return battery; First is the
// first-breakout pool.
const (
	CoreVariant  = "core_stocks"
	FirstVariant = "first_stocks"
)

// RankSource answers ranking queries for both pool variants.
type RankSource interface {
	pool.RankSource
	Breakouts(ctx context.Context) ([]pool.Observation, error)
}

// MarketSource serves the enrichment feeds.
type MarketSource interface {
	Overview(ctx context.Context, date string) ([]merge.OverviewRow, merge.FieldSet, error)
	LimitUp(ctx context.Context, date string) ([]merge.LimitUpRow, error)
}

// AnomalySource serves the curated anomaly feed.
type AnomalySource interface {
	Anomalies(ctx context.Context, date string) ([]merge.AnomalyRow, error)
}

type App struct {
	cfg      config.Config
	ranks    RankSource
	market   MarketSource
	anomaly  AnomalySource
	cal      *calendar.Calendar
	store    *snapshot.Store
	notifier notify.Notifier
}

func New(cfg config.Config, ranks RankSource, market MarketSource, anomaly AnomalySource, cal *calendar.Calendar, notifier notify.Notifier) *App {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &App{
		cfg:      cfg,
		ranks:    ranks,
		market:   market,
		anomaly:  anomaly,
		cal:      cal,
		store:    snapshot.NewStore(cfg.DataDir, cfg.LargeCapFloor),
		notifier: notifier,
	}
}

func (a *App) Store() *snapshot.Store { return a.store }

// SetCalendar swaps in a freshly fetched calendar between runs.
func (a *App) SetCalendar(cal *calendar.Calendar) { a.cal = cal }

func (a *App) retryPolicy() fetch.Policy {
	return fetch.Policy{MaxAttempts: a.cfg.Retry.MaxAttempts, BaseDelay: a.cfg.Retry.BaseDelay}
}

func (a *App) mergedPath(date, variant string) string {
	return filepath.Join(a.cfg.DataDir, "csv", fmt.Sprintf("%s_merged_%s.csv", variant, date))
}

func (a *App) emergingPath(date string) string {
	return filepath.Join(a.cfg.DataDir, "csv", fmt.Sprintf("emerging_%s.csv", date))
}

// HistoryPath locates the rolling hotspot history table.
func (a *App) HistoryPath() string {
	return filepath.Join(a.cfg.DataDir, "csv", "hotspot_history.csv")
}

// BuildPools scores and persists both pool variants for date. The core pool
// combines the unfiltered and filtered battery runs; the first pool comes
// from the breakout feed. Returns the records per variant.
func (a *App) BuildPools(ctx context.Context, date string) (map[string][]pool.Record, error) {
	builder := pool.NewBuilder(a.ranks, a.retryPolicy()).WithWorkers(a.cfg.Workers)

	unfiltered, err := builder.Build(ctx, a.cfg.Battery)
	if err != nil {
		return nil, fmt.Errorf("build unfiltered battery: %w", err)
	}
	filtered, err := builder.Build(ctx, pool.Filtered(a.cfg.Battery))
	if err != nil {
		return nil, fmt.Errorf("build filtered battery: %w", err)
	}
	core := pool.Combine(unfiltered, filtered)

	breakouts, err := fetch.Retry(ctx, a.retryPolicy(), "breakouts", func() ([]pool.Observation, error) {
		return a.ranks.Breakouts(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("fetch breakouts: %w", err)
	}
	first, err := pool.Score(breakouts)
	if err != nil {
		return nil, fmt.Errorf("score breakouts: %w", err)
	}

	pools := map[string][]pool.Record{CoreVariant: core, FirstVariant: first}
	for variant, records := range pools {
		if _, err := a.store.Write(date, variant, records); err != nil {
			return nil, err
		}
		if _, err := a.store.WriteCodes(date, variant, records); err != nil {
			return nil, err
		}
	}
	if _, err := a.store.WriteLargeCap(date, CoreVariant, core); err != nil {
		return nil, err
	}

	log.Info().Str("date", date).
		Int("core", len(core)).Int("first", len(first)).
		Msg("Pools written")
	return pools, nil
}

// DiffVariant diffs the stored pool for (date, variant) against the previous
// trading session and writes the added/removed side tables.
func (a *App) DiffVariant(date, variant string) (snapshot.DiffResult, error) {
	today, err := a.store.Read(date, variant)
	if err != nil {
		return snapshot.DiffResult{}, err
	}
	differ := snapshot.NewDiffer(a.store, a.cal)
	res, err := differ.Diff(date, variant, today)
	if err != nil {
		return snapshot.DiffResult{}, err
	}
	if err := differ.WriteSideTables(res, variant); err != nil {
		return snapshot.DiffResult{}, err
	}
	return res, nil
}

// feeds bundles one day's enrichment inputs so they are fetched once and
// reused across variants.
type feeds struct {
	in merge.Inputs
}

func (a *App) fetchFeeds(ctx context.Context, date string) (feeds, error) {
	p := a.retryPolicy()

	anomaly, err := fetch.Retry(ctx, p, "anomaly", func() ([]merge.AnomalyRow, error) {
		return a.anomaly.Anomalies(ctx, date)
	})
	if err != nil {
		return feeds{}, fmt.Errorf("fetch anomalies: %w", err)
	}

	var fields merge.FieldSet
	overview, err := fetch.Retry(ctx, p, "overview", func() ([]merge.OverviewRow, error) {
		rows, fs, err := a.market.Overview(ctx, date)
		fields = fs
		return rows, err
	})
	if err != nil {
		return feeds{}, fmt.Errorf("fetch overview: %w", err)
	}

	limitUp, err := fetch.Retry(ctx, p, "limitup", func() ([]merge.LimitUpRow, error) {
		return a.market.LimitUp(ctx, date)
	})
	if err != nil {
		return feeds{}, fmt.Errorf("fetch limit-up: %w", err)
	}

	return feeds{in: merge.Inputs{
		Overview:       overview,
		OverviewFields: fields,
		LimitUp:        limitUp,
		Anomaly:        anomaly,
	}}, nil
}

// MergeVariant enriches the stored pool for (date, variant) and writes the
// merged table.
func (a *App) MergeVariant(ctx context.Context, date, variant string) ([]merge.Row, error) {
	f, err := a.fetchFeeds(ctx, date)
	if err != nil {
		return nil, err
	}
	return a.mergeVariant(date, variant, f)
}

func (a *App) mergeVariant(date, variant string, f feeds) ([]merge.Row, error) {
	records, err := a.store.Read(date, variant)
	if err != nil {
		return nil, err
	}
	rows, err := merge.Merge(records, f.in)
	if err != nil {
		return nil, fmt.Errorf("merge %s: %w", variant, err)
	}
	if err := snapshot.WriteTable(a.mergedPath(date, variant), merge.Header, merge.Table(rows)); err != nil {
		return nil, err
	}
	return rows, nil
}

// UpdateHotspots appends today's label counts to the history, reports novel
// labels, and writes the emerging side table from the enriched core rows.
func (a *App) UpdateHotspots(date string, anomalies []merge.AnomalyRow, coreRows []merge.Row) ([]string, error) {
	history := hotspot.NewHistory(a.HistoryPath())
	if err := history.Append(date, hotspot.CountLabels(anomalies, date)); err != nil {
		return nil, err
	}
	counts, err := history.Load()
	if err != nil {
		return nil, err
	}

	detector := hotspot.NewDetector(a.cfg.Hotspot.Lookback, a.cfg.Hotspot.GenericLabel)
	novel, err := detector.Novel(counts, date)
	if err != nil {
		return nil, err
	}
	if len(novel) == 0 {
		return nil, nil
	}

	emerging := hotspot.Emerging(coreRows, novel)
	if len(emerging) > 0 {
		if err := snapshot.WriteTable(a.emergingPath(date), merge.Header, merge.Table(emerging)); err != nil {
			return nil, err
		}
	}
	return novel, nil
}

// RunDaily executes the full pipeline for date. The whole run retries on
// failure; the final failure is pushed to the operator before returning.
func (a *App) RunDaily(ctx context.Context, date string) error {
	runID := uuid.NewString()
	logger := log.With().Str("run_id", runID).Str("date", date).Logger()
	logger.Info().Msg("Daily run starting")

	var err error
	for attempt := 1; attempt <= a.cfg.Retry.MaxAttempts; attempt++ {
		if err = a.runOnce(ctx, date, runID); err == nil {
			logger.Info().Int("attempt", attempt).Msg("Daily run complete")
			return nil
		}
		logger.Warn().Err(err).Int("attempt", attempt).Msg("Daily run failed")
		if attempt < a.cfg.Retry.MaxAttempts {
			select {
			case <-time.After(a.cfg.Retry.BaseDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	a.notifier.Send(ctx, fmt.Sprintf("daily run %s failed for %s: %v", runID, date, err))
	return fmt.Errorf("daily run for %s: %w", date, err)
}

func (a *App) runOnce(ctx context.Context, date, runID string) error {
	f, err := a.fetchFeeds(ctx, date)
	if err != nil {
		return err
	}

	pools, err := a.BuildPools(ctx, date)
	if err != nil {
		return err
	}

	var summary strings.Builder
	fmt.Fprintf(&summary, "run %s done for %s\n", runID, date)

	var coreRows []merge.Row
	for _, variant := range []string{CoreVariant, FirstVariant} {
		res, err := a.DiffVariant(date, variant)
		if err != nil {
			return err
		}
		summary.WriteString(res.Message(variant))
		summary.WriteByte('\n')

		rows, err := a.mergeVariant(date, variant, f)
		if err != nil {
			return err
		}
		if variant == CoreVariant {
			coreRows = rows
		}
		log.Debug().Str("variant", variant).Int("size", len(pools[variant])).Msg("Variant merged")
	}

	novel, err := a.UpdateHotspots(date, f.in.Anomaly, coreRows)
	if err != nil {
		return err
	}
	if len(novel) > 0 {
		fmt.Fprintf(&summary, "new hotspots: %s", strings.Join(novel, ", "))
	}

	return a.notifier.Send(ctx, summary.String())
}
