package pool

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"poolwatch/internal/fetch"
)

// RankSource answers "top limit stocks by trailing window-day return"
// queries. filtered selects the restricted universe (no new listings, no
// risk-flagged names, market cap above the source's floor).
type RankSource interface {
	TopStocks(ctx context.Context, window, limit int, filtered bool) ([]Observation, error)
}

// Query is one entry of a pool battery.
type Query struct {
	Window   int  `yaml:"window"`
	Limit    int  `yaml:"limit"`
	Filtered bool `yaml:"filtered"`
}

// DefaultBattery narrows the allowed rank as the window grows: a top-10 spot
// over two days and a top-2 spot over a month are comparably notable.
func DefaultBattery() []Query {
	return []Query{
		{Window: 2, Limit: 10},
		{Window: 3, Limit: 10},
		{Window: 5, Limit: 10},
		{Window: 10, Limit: 5},
		{Window: 15, Limit: 3},
		{Window: 20, Limit: 2},
	}
}

// Builder runs a query battery against a RankSource and scores the pooled
// observations into one ranked pool.
type Builder struct {
	source  RankSource
	retry   fetch.Policy
	workers int
}

func NewBuilder(source RankSource, retry fetch.Policy) *Builder {
	return &Builder{source: source, retry: retry, workers: fetch.DefaultWorkers}
}

// WithWorkers overrides the query fan-out bound.
func (b *Builder) WithWorkers(n int) *Builder {
	b.workers = n
	return b
}

// Build executes every query of the battery (concurrently, bounded), pools
// all observations, and scores them. A query that still fails or comes back
// empty after the retry budget fails the whole build: a partial battery
// would skew every score downstream.
func (b *Builder) Build(ctx context.Context, battery []Query) ([]Record, error) {
	if len(battery) == 0 {
		return nil, fmt.Errorf("empty pool battery")
	}

	var mu sync.Mutex
	results := make([][]Observation, len(battery))

	err := fetch.Map(ctx, b.workers, len(battery), func(ctx context.Context, i int) error {
		q := battery[i]
		log.Info().Int("window", q.Window).Int("limit", q.Limit).Bool("filtered", q.Filtered).
			Msg("Running ranking query")

		obs, err := fetch.Retry(ctx, b.retry, fmt.Sprintf("rank %d-%d", q.Window, q.Limit),
			func() ([]Observation, error) {
				return b.source.TopStocks(ctx, q.Window, q.Limit, q.Filtered)
			})
		if err != nil {
			return fmt.Errorf("ranking query %d-%d: %w", q.Window, q.Limit, err)
		}
		if len(obs) == 0 {
			return fmt.Errorf("ranking query %d-%d: %w", q.Window, q.Limit, ErrEmptyResult)
		}

		mu.Lock()
		results[i] = obs
		mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Aggregate in battery order so interval summaries are reproducible.
	var all []Observation
	for _, obs := range results {
		all = append(all, obs...)
	}
	return Score(all)
}

// Filtered returns a copy of the battery with every query marked filtered.
func Filtered(battery []Query) []Query {
	out := make([]Query, len(battery))
	copy(out, battery)
	for i := range out {
		out[i].Filtered = true
	}
	return out
}
