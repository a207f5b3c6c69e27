// Package pool builds the daily watch pool: it scores raw interval-ranking
// observations into per-stock importance records and deduplicates them into
// one ranked pool per trading day.
package pool

import (
	"errors"
	"fmt"
)

// ErrInvalidObservation marks a ranking row whose rank or window is outside
// the positive domain; such rows are an upstream contract violation, never
// silently skipped.
var ErrInvalidObservation = errors.New("invalid observation")

// ErrEmptyResult marks a configured ranking query that returned zero rows.
// An empty answer where the market guarantees at least one would silently
// bias the pool, so the whole build fails instead.
var ErrEmptyResult = errors.New("ranking query returned no rows")

// Observation is one sighting of a stock in an interval-return ranking:
// "this stock placed Rank-th over the trailing Window trading days".
type Observation struct {
	TradeDate string  // YYYYMMDD
	Code      string  // 6-digit exchange code, zero-padded
	Market    string  // exchange qualifier disambiguating duplicate codes
	Name      string  // display name
	MarketCap float64 // free-float market cap in raw currency units, 0 if unknown
	Window    int     // trailing trading days the ranking covers
	Rank      int     // 1 = best within the window
}

func (o Observation) validate() error {
	if o.Rank <= 0 || o.Window <= 0 {
		return fmt.Errorf("%w: %s window=%d rank=%d", ErrInvalidObservation, o.Code, o.Window, o.Rank)
	}
	return nil
}
