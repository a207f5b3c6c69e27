package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"poolwatch/internal/fetch"
)

// fakeRankSource serves canned observations per (window, limit) query and
// counts calls so retry behavior is observable.
type fakeRankSource struct {
	mu      sync.Mutex
	rows    map[string][]Observation
	fail    map[string]int // remaining failures per query
	empty   map[string]bool
	calls   int
	sawFilt bool
}

func (f *fakeRankSource) TopStocks(_ context.Context, window, limit int, filtered bool) ([]Observation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := fmt.Sprintf("%d-%d", window, limit)
	f.calls++
	if filtered {
		f.sawFilt = true
	}
	if f.fail[key] > 0 {
		f.fail[key]--
		return nil, errors.New("source unavailable")
	}
	if f.empty[key] {
		return nil, nil
	}
	return f.rows[key], nil
}

func quickRetry() fetch.Policy {
	return fetch.Policy{MaxAttempts: 3, BaseDelay: time.Millisecond}
}

func TestBuilder_PoolsObservationsAcrossQueries(t *testing.T) {
	src := &fakeRankSource{rows: map[string][]Observation{
		"2-10": {obs("600519", 2, 1), obs("000858", 2, 2)},
		"5-10": {obs("600519", 5, 3)},
	}}
	b := NewBuilder(src, quickRetry())

	records, err := b.Build(context.Background(), []Query{
		{Window: 2, Limit: 10},
		{Window: 5, Limit: 10},
	})
	require.NoError(t, err)
	require.Len(t, records, 2)

	// 600519 appears in both windows, so both observations accumulate
	// before scoring.
	assert.Equal(t, "600519", records[0].Code)
	assert.Equal(t, "2-1|5-3", records[0].Intervals)
}

func TestBuilder_RetriesThenSucceeds(t *testing.T) {
	src := &fakeRankSource{
		rows: map[string][]Observation{"2-10": {obs("600519", 2, 1)}},
		fail: map[string]int{"2-10": 2},
	}
	b := NewBuilder(src, quickRetry())

	records, err := b.Build(context.Background(), []Query{{Window: 2, Limit: 10}})
	require.NoError(t, err)
	assert.Len(t, records, 1)
	assert.Equal(t, 3, src.calls)
}

func TestBuilder_FailsFastOnEmptyQuery(t *testing.T) {
	src := &fakeRankSource{
		rows:  map[string][]Observation{"2-10": {obs("600519", 2, 1)}},
		empty: map[string]bool{"5-10": true},
	}
	b := NewBuilder(src, quickRetry())

	_, err := b.Build(context.Background(), []Query{
		{Window: 2, Limit: 10},
		{Window: 5, Limit: 10},
	})
	assert.ErrorIs(t, err, ErrEmptyResult)
}

func TestBuilder_ExhaustedRetriesFailTheBuild(t *testing.T) {
	src := &fakeRankSource{
		rows: map[string][]Observation{"2-10": {obs("600519", 2, 1)}},
		fail: map[string]int{"2-10": 99},
	}
	b := NewBuilder(src, quickRetry())

	_, err := b.Build(context.Background(), []Query{{Window: 2, Limit: 10}})
	require.Error(t, err)
	assert.Equal(t, 3, src.calls)
}

func TestBuilder_EmptyBatteryRejected(t *testing.T) {
	b := NewBuilder(&fakeRankSource{}, quickRetry())
	_, err := b.Build(context.Background(), nil)
	assert.Error(t, err)
}

func TestFiltered_MarksEveryQuery(t *testing.T) {
	battery := Filtered(DefaultBattery())
	for _, q := range battery {
		assert.True(t, q.Filtered)
	}
	// Original battery untouched.
	for _, q := range DefaultBattery() {
		assert.False(t, q.Filtered)
	}

	src := &fakeRankSource{rows: map[string][]Observation{
		"2-10": {obs("600519", 2, 1)},
	}}
	b := NewBuilder(src, quickRetry())
	_, err := b.Build(context.Background(), Filtered([]Query{{Window: 2, Limit: 10}}))
	require.NoError(t, err)
	assert.True(t, src.sawFilt)
}
