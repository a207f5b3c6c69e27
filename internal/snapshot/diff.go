package snapshot

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"poolwatch/internal/pool"
)

// Calendar is the trading-calendar collaborator the differ needs to locate
// its baseline.
type Calendar interface {
	PreviousTradingDay(date string) (string, bool)
}

// DiffResult captures how today's pool differs from the prior session's.
// Stock identity is the code alone; renames are not tracked.
type DiffResult struct {
	Date         string
	BaselineDate string
	HasBaseline  bool
	Added        []pool.Record // in today's pool, absent yesterday; importance desc
	Removed      []pool.Record // in yesterday's pool, absent today; importance desc
	TodayCount   int
	PrevCount    int
}

// Differ compares a freshly built pool against the persisted previous
// session of the same variant.
type Differ struct {
	store *Store
	cal   Calendar
}

func NewDiffer(store *Store, cal Calendar) *Differ {
	return &Differ{store: store, cal: cal}
}

// Diff locates the previous trading day's snapshot and computes the set
// difference on stock code. A missing baseline (no prior trading day within
// range, or no persisted snapshot) degrades to HasBaseline=false rather
// than failing the run.
func (d *Differ) Diff(date, variant string, today []pool.Record) (DiffResult, error) {
	res := DiffResult{Date: date, TodayCount: len(today)}

	prevDate, ok := d.cal.PreviousTradingDay(date)
	if !ok {
		log.Warn().Str("date", date).Msg("No previous trading day within range, diffing without baseline")
		return res, nil
	}

	previous, err := d.store.Read(prevDate, variant)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			log.Warn().Str("date", prevDate).Str("variant", variant).
				Msg("No baseline snapshot, diffing without baseline")
			return res, nil
		}
		return DiffResult{}, fmt.Errorf("load baseline %s %s: %w", variant, prevDate, err)
	}

	res.HasBaseline = true
	res.BaselineDate = prevDate
	res.PrevCount = len(previous)

	todayCodes := make(map[string]struct{}, len(today))
	for _, r := range today {
		todayCodes[r.Code] = struct{}{}
	}
	prevCodes := make(map[string]struct{}, len(previous))
	for _, r := range previous {
		prevCodes[r.Code] = struct{}{}
	}

	for _, r := range today {
		if _, ok := prevCodes[r.Code]; !ok {
			res.Added = append(res.Added, r)
		}
	}
	for _, r := range previous {
		if _, ok := todayCodes[r.Code]; !ok {
			res.Removed = append(res.Removed, r)
		}
	}

	sort.SliceStable(res.Added, func(i, j int) bool { return res.Added[i].Importance > res.Added[j].Importance })
	sort.SliceStable(res.Removed, func(i, j int) bool { return res.Removed[i].Importance > res.Removed[j].Importance })

	return res, nil
}

// WriteSideTables persists the added/removed detail as their own snapshot
// variants for the day.
func (d *Differ) WriteSideTables(res DiffResult, variant string) error {
	if !res.HasBaseline {
		return nil
	}
	if _, err := d.store.Write(res.Date, variant+"_added", res.Added); err != nil {
		return err
	}
	if _, err := d.store.Write(res.Date, variant+"_removed", res.Removed); err != nil {
		return err
	}
	return nil
}

// Message renders the operator-facing daily review text pushed through the
// notifier.
func (res DiffResult) Message(variant string) string {
	lines := []string{fmt.Sprintf("Daily review: %s", variant)}

	if !res.HasBaseline {
		lines = append(lines,
			fmt.Sprintf("Pool updated, %d stocks", res.TodayCount),
			"No baseline from a previous session")
		return strings.Join(lines, "\n")
	}

	lines = append(lines,
		fmt.Sprintf("Baseline: %s", res.BaselineDate),
		fmt.Sprintf("Today %d | previous %d", res.TodayCount, res.PrevCount))

	if len(res.Added) == 0 && len(res.Removed) == 0 {
		lines = append(lines, "No changes")
		return strings.Join(lines, "\n")
	}

	if len(res.Added) > 0 {
		lines = append(lines, fmt.Sprintf("Added: %d", len(res.Added)))
		for _, r := range res.Added {
			lines = append(lines, fmt.Sprintf("  + %s(%s) intervals:%s", r.Name, r.Code, r.Intervals))
		}
	}
	if len(res.Removed) > 0 {
		lines = append(lines, fmt.Sprintf("Removed: %d", len(res.Removed)))
		for _, r := range res.Removed {
			lines = append(lines, fmt.Sprintf("  - %s(%s) intervals:%s", r.Name, r.Code, r.Intervals))
		}
	}
	return strings.Join(lines, "\n")
}
