package pool

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
)

// Record is one stock's aggregated standing in a pool for one trading day.
type Record struct {
	TradeDate  string
	Code       string
	Market     string
	Name       string
	MarketCap  float64
	Intervals  string  // "window-rank" pairs joined by "|", in aggregation order
	Importance float64 // rounded to 2 decimals for display stability
}

// Key identifies a stock across pools and feeds.
func (r Record) Key() string { return r.Code + "|" + r.Market }

// Score aggregates observations by stock and computes each stock's
// importance:
//
//	100 * Σ 1 / (ln(1+rank) · ln(1+window))
//
// A better rank over a shorter window contributes more, with slowly
// diminishing returns in both directions; repeated appearances accumulate.
// The result is sorted by importance descending, ties kept in first-seen
// order. Empty input yields an empty pool.
func Score(observations []Observation) ([]Record, error) {
	type group struct {
		rec       Record
		intervals []string
		raw       float64
	}

	var order []string
	groups := make(map[string]*group)

	for _, o := range observations {
		if err := o.validate(); err != nil {
			return nil, err
		}

		key := o.Code + "|" + o.Market
		g, ok := groups[key]
		if !ok {
			g = &group{rec: Record{
				TradeDate: o.TradeDate,
				Code:      o.Code,
				Market:    o.Market,
				Name:      o.Name,
				MarketCap: o.MarketCap,
			}}
			groups[key] = g
			order = append(order, key)
		}
		if g.rec.MarketCap == 0 {
			g.rec.MarketCap = o.MarketCap
		}

		g.intervals = append(g.intervals, fmt.Sprintf("%d-%d", o.Window, o.Rank))
		g.raw += 1 / (math.Log1p(float64(o.Rank)) * math.Log1p(float64(o.Window)))
	}

	records := make([]Record, 0, len(order))
	for _, key := range order {
		g := groups[key]
		g.rec.Intervals = strings.Join(g.intervals, "|")
		g.rec.Importance = round2(100 * g.raw)
		records = append(records, g.rec)
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Importance > records[j].Importance
	})

	log.Debug().Int("observations", len(observations)).Int("stocks", len(records)).
		Msg("Importance scoring complete")
	return records, nil
}

// Combine merges independently built batches of the same pool, keeping per
// stock the single record with the highest importance. Batches are
// alternative evidence views of the same day, so scores are never re-summed
// across them.
func Combine(batches ...[]Record) []Record {
	var order []string
	best := make(map[string]Record)

	for _, batch := range batches {
		for _, rec := range batch {
			key := rec.Key()
			cur, ok := best[key]
			if !ok {
				best[key] = rec
				order = append(order, key)
				continue
			}
			if rec.Importance > cur.Importance {
				best[key] = rec
			}
		}
	}

	combined := make([]Record, 0, len(order))
	for _, key := range order {
		combined = append(combined, best[key])
	}
	sort.SliceStable(combined, func(i, j int) bool {
		return combined[i].Importance > combined[j].Importance
	})
	return combined
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
