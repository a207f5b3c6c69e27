package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"poolwatch/internal/calendar"
	"poolwatch/internal/config"
	"poolwatch/internal/merge"
	"poolwatch/internal/pool"
)

const testDate = "20260106"

type fakeRanks struct {
	mu           sync.Mutex
	topCalls     int
	breakoutFail int
}

func (f *fakeRanks) TopStocks(ctx context.Context, window, limit int, filtered bool) ([]pool.Observation, error) {
	f.mu.Lock()
	f.topCalls++
	f.mu.Unlock()
	return []pool.Observation{
		{TradeDate: testDate, Code: "600519", Market: "17", Name: "Moutai", MarketCap: 150e8, Window: window, Rank: 1},
		{TradeDate: testDate, Code: "300750", Market: "33", Name: "CATL", MarketCap: 90e8, Window: window, Rank: 2},
	}, nil
}

func (f *fakeRanks) Breakouts(ctx context.Context) ([]pool.Observation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.breakoutFail > 0 {
		f.breakoutFail--
		return nil, errors.New("feed hiccup")
	}
	return []pool.Observation{
		{TradeDate: testDate, Code: "002001", Market: "33", Name: "First", MarketCap: 40e8, Window: 1, Rank: 1},
	}, nil
}

type fakeMarket struct{}

func (fakeMarket) Overview(ctx context.Context, date string) ([]merge.OverviewRow, merge.FieldSet, error) {
	return []merge.OverviewRow{
		{Code: "600519", Market: "17", HeatRank: 3, TradeValue: 250000000},
		{Code: "300750", Market: "33", HeatRank: 9},
		{Code: "002001", Market: "33", HeatRank: 20},
	}, merge.FieldSet{merge.FieldLargeOrderNet: true}, nil
}

func (fakeMarket) LimitUp(ctx context.Context, date string) ([]merge.LimitUpRow, error) {
	return []merge.LimitUpRow{
		{Code: "600519", Market: "17", Date: date, Streak: 2, ReasonCategory: "liquor"},
	}, nil
}

type fakeAnomaly struct{}

func (fakeAnomaly) Anomalies(ctx context.Context, date string) ([]merge.AnomalyRow, error) {
	return []merge.AnomalyRow{
		{Code: "600519", Date: date, Hotspot: "固态电池", Reason: "breakout"},
		{Code: "300750", Date: date, Hotspot: "固态电池"},
	}, nil
}

type recorder struct {
	mu   sync.Mutex
	msgs []string
}

func (r *recorder) Send(ctx context.Context, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, text)
	return nil
}

func testApp(t *testing.T, ranks *fakeRanks, rec *recorder) *App {
	t.Helper()
	cfg := config.Default()
	cfg.DataDir = t.TempDir()
	cfg.Battery = []pool.Query{{Window: 2, Limit: 10}}
	cfg.Retry.BaseDelay = time.Millisecond
	cal := calendar.New([]string{"20260105", testDate})
	return New(cfg, ranks, fakeMarket{}, fakeAnomaly{}, cal, rec)
}

func TestRunDaily_WritesAllArtifacts(t *testing.T) {
	rec := &recorder{}
	a := testApp(t, &fakeRanks{}, rec)

	require.NoError(t, a.RunDaily(context.Background(), testDate))

	dir := a.cfg.DataDir
	for _, name := range []string{
		"csv/core_stocks_" + testDate + ".csv",
		"csv/core_stocks_large_" + testDate + ".csv",
		"csv/first_stocks_" + testDate + ".csv",
		"csv/core_stocks_merged_" + testDate + ".csv",
		"csv/first_stocks_merged_" + testDate + ".csv",
		"csv/hotspot_history.csv",
		"txt/core_stocks_" + testDate + ".txt",
		"txt/first_stocks_" + testDate + ".txt",
	} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, name)
	}

	require.Len(t, rec.msgs, 1)
	assert.Contains(t, rec.msgs[0], testDate)
	assert.Contains(t, rec.msgs[0], "core_stocks")
}

func TestRunDaily_CombinesBatteriesAndBreakouts(t *testing.T) {
	rec := &recorder{}
	ranks := &fakeRanks{}
	a := testApp(t, ranks, rec)

	pools, err := a.BuildPools(context.Background(), testDate)
	require.NoError(t, err)

	assert.Len(t, pools[CoreVariant], 2)
	assert.Len(t, pools[FirstVariant], 1)
	assert.Equal(t, "002001", pools[FirstVariant][0].Code)
	// Unfiltered and filtered battery both queried.
	assert.Equal(t, 2, ranks.topCalls)
}

func TestRunDaily_RetriesWholePipeline(t *testing.T) {
	rec := &recorder{}
	a := testApp(t, &fakeRanks{breakoutFail: 4}, rec)

	// Per-fetch retry absorbs three failures; one more forces a second
	// pipeline attempt.
	require.NoError(t, a.RunDaily(context.Background(), testDate))
	require.Len(t, rec.msgs, 1)
}

func TestRunDaily_FinalFailureNotified(t *testing.T) {
	rec := &recorder{}
	a := testApp(t, &fakeRanks{breakoutFail: 100}, rec)

	err := a.RunDaily(context.Background(), testDate)
	require.Error(t, err)
	require.Len(t, rec.msgs, 1)
	assert.Contains(t, rec.msgs[0], "failed")
}

func TestDiffVariant_ReportsChanges(t *testing.T) {
	rec := &recorder{}
	a := testApp(t, &fakeRanks{}, rec)

	prev := []pool.Record{
		{TradeDate: "20260105", Code: "600519", Market: "17", Name: "Moutai", Importance: 50},
		{TradeDate: "20260105", Code: "000001", Market: "33", Name: "Gone", Importance: 40},
	}
	_, err := a.store.Write("20260105", CoreVariant, prev)
	require.NoError(t, err)

	_, err = a.BuildPools(context.Background(), testDate)
	require.NoError(t, err)

	res, err := a.DiffVariant(testDate, CoreVariant)
	require.NoError(t, err)
	require.True(t, res.HasBaseline)
	require.Len(t, res.Added, 1)
	require.Len(t, res.Removed, 1)
	assert.Equal(t, "300750", res.Added[0].Code)
	assert.Equal(t, "000001", res.Removed[0].Code)
}

func TestUpdateHotspots_AppendOncePerDate(t *testing.T) {
	rec := &recorder{}
	a := testApp(t, &fakeRanks{}, rec)
	ctx := context.Background()

	require.NoError(t, a.RunDaily(ctx, testDate))
	before, err := os.ReadFile(a.HistoryPath())
	require.NoError(t, err)

	// Re-running the same date must not duplicate history rows.
	require.NoError(t, a.RunDaily(ctx, testDate))
	after, err := os.ReadFile(a.HistoryPath())
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after))
}
