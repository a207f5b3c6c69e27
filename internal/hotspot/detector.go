package hotspot

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"poolwatch/internal/merge"
)

// ErrStaleHistory is returned when the history table's freshest date is not
// the requested trading date; novelty analysis on stale data would flag the
// whole previous day as "new".
var ErrStaleHistory = errors.New("hotspot history is stale")

// DefaultLookback is the number of prior trading dates a label must be
// absent from to count as novel.
const DefaultLookback = 10

// Similar reports whether two labels name the same hotspot: one is a
// substring of the other. Symmetric and reflexive but deliberately not
// transitive — see Canonicalize.
func Similar(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}

// GenericBucket is the feed's own catch-all hotspot label. Like the
// merger's DefaultCategory it names the absence of a hotspot, so neither
// may ever surface as novel.
const GenericBucket = "其他"

// Detector flags hotspot labels with no similar label in the lookback
// window.
type Detector struct {
	lookback int
	generic  map[string]struct{}
}

// NewDetector builds a detector excluding generic from novelty on top of
// the always-excluded catch-all buckets (GenericBucket, merge's
// DefaultCategory).
func NewDetector(lookback int, generic string) *Detector {
	if lookback <= 0 {
		lookback = DefaultLookback
	}
	excluded := map[string]struct{}{
		GenericBucket:         {},
		merge.DefaultCategory: {},
	}
	if generic != "" {
		excluded[generic] = struct{}{}
	}
	return &Detector{lookback: lookback, generic: excluded}
}

// Novel returns today's genuinely new labels in first-seen order. history
// must already contain the requested date as its most recent entry.
func (d *Detector) Novel(history []Count, date string) ([]string, error) {
	dates := distinctDatesDesc(history)
	if len(dates) == 0 {
		return nil, fmt.Errorf("%w: history is empty, want %s", ErrStaleHistory, date)
	}
	if dates[0] != date {
		return nil, fmt.Errorf("%w: freshest history date %s, want %s", ErrStaleHistory, dates[0], date)
	}

	past := dates[1:]
	if len(past) > d.lookback {
		past = past[:d.lookback]
	}
	pastSet := make(map[string]struct{}, len(past))
	for _, p := range past {
		pastSet[p] = struct{}{}
	}

	var pastLabels []string
	var today []string
	for _, c := range history {
		if c.Date == date {
			today = append(today, c.Label)
		} else if _, ok := pastSet[c.Date]; ok {
			pastLabels = append(pastLabels, c.Label)
		}
	}

	var novel []string
	for _, label := range today {
		if _, ok := d.generic[label]; ok {
			continue
		}
		seen := false
		for _, p := range pastLabels {
			if Similar(label, p) {
				seen = true
				break
			}
		}
		if !seen {
			novel = append(novel, label)
		}
	}

	log.Info().Str("date", date).Int("today", len(today)).Int("novel", len(novel)).
		Msg("Hotspot novelty detection complete")
	return novel, nil
}

// distinctDatesDesc extracts the unique trading dates present in the
// history, newest first.
func distinctDatesDesc(history []Count) []string {
	seen := make(map[string]struct{})
	var dates []string
	for _, c := range history {
		if _, ok := seen[c.Date]; !ok {
			seen[c.Date] = struct{}{}
			dates = append(dates, c.Date)
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(dates)))
	return dates
}

// Emerging gathers the enriched rows belonging to the novel labels, in
// label order then pool order.
func Emerging(rows []merge.Row, novel []string) []merge.Row {
	var out []merge.Row
	for _, label := range novel {
		for _, r := range rows {
			if r.Hotspot == label {
				out = append(out, r)
			}
		}
	}
	return out
}

// Canonicalize maps each label to the most-recent-dated member of its
// pairwise similarity set. Clustering is pairwise against the seed label,
// not transitive closure: "new-energy" and "new-energy-vehicle" unify, but
// a label similar only to the longer form stays in its own cluster when it
// seeds first. Whether the chain case should unify further is an open
// question; the pairwise behavior is kept as-is.
func Canonicalize(history []Count) map[string]string {
	type labelDate struct {
		label string
		date  string
	}

	var order []labelDate
	latest := make(map[string]string) // label -> latest date
	for _, c := range history {
		if prev, ok := latest[c.Label]; !ok {
			latest[c.Label] = c.Date
			order = append(order, labelDate{c.Label, c.Date})
		} else if c.Date > prev {
			latest[c.Label] = c.Date
		}
	}

	mapping := make(map[string]string, len(order))
	processed := make(map[string]bool, len(order))

	for _, seed := range order {
		if processed[seed.label] {
			continue
		}
		cluster := []string{seed.label}
		for _, other := range order {
			if other.label != seed.label && !processed[other.label] && Similar(seed.label, other.label) {
				cluster = append(cluster, other.label)
			}
		}
		if len(cluster) == 1 {
			processed[seed.label] = true
			continue
		}

		sort.SliceStable(cluster, func(i, j int) bool {
			return latest[cluster[i]] > latest[cluster[j]]
		})
		canonical := cluster[0]
		for _, label := range cluster {
			mapping[label] = canonical
			processed[label] = true
		}
	}
	return mapping
}
