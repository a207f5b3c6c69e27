// Package hotspot tracks the per-day hotspot label counts derived from the
// anomaly feed and flags labels that are genuinely new against a lookback
// window.
package hotspot

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/rs/zerolog/log"

	"poolwatch/internal/merge"
)

var historyHeader = []string{"trade_date", "hotspot", "stock_count"}

// Count is one (date, label) entry of the hotspot history table.
type Count struct {
	Date   string
	Label  string
	Stocks int
}

// CountLabels groups the day's anomaly rows by hotspot label, preserving
// first-seen order.
func CountLabels(rows []merge.AnomalyRow, date string) []Count {
	var order []string
	counts := make(map[string]int)

	for _, r := range rows {
		if r.Hotspot == "" {
			continue
		}
		if _, ok := counts[r.Hotspot]; !ok {
			order = append(order, r.Hotspot)
		}
		counts[r.Hotspot]++
	}

	out := make([]Count, 0, len(order))
	for _, label := range order {
		out = append(out, Count{Date: date, Label: label, Stocks: counts[label]})
	}
	return out
}

// History is the flat hotspot-count table, newest dates first on disk.
type History struct {
	path string
}

func NewHistory(path string) *History { return &History{path: path} }

// Load reads the whole table in file order (newest first).
func (h *History) Load() ([]Count, error) {
	f, err := os.Open(h.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open hotspot history: %w", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read hotspot history: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	counts := make([]Count, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if len(row) < 3 {
			continue
		}
		n, err := strconv.Atoi(row[2])
		if err != nil {
			return nil, fmt.Errorf("hotspot history: bad stock count %q: %w", row[2], err)
		}
		counts = append(counts, Count{Date: row[0], Label: row[1], Stocks: n})
	}
	return counts, nil
}

// Append prepends one day's counts. A date already present is skipped, so
// re-running a day never duplicates history.
func (h *History) Append(date string, counts []Count) error {
	existing, err := h.Load()
	if err != nil {
		return err
	}
	for _, c := range existing {
		if c.Date == date {
			log.Info().Str("date", date).Msg("Hotspot history already has this date, skipping append")
			return nil
		}
	}

	merged := make([]Count, 0, len(counts)+len(existing))
	merged = append(merged, counts...)
	merged = append(merged, existing...)

	if err := os.MkdirAll(filepath.Dir(h.path), 0755); err != nil {
		return fmt.Errorf("ensure hotspot history dir: %w", err)
	}
	f, err := os.Create(h.path)
	if err != nil {
		return fmt.Errorf("rewrite hotspot history: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()
	if err := w.Write(historyHeader); err != nil {
		return err
	}
	for _, c := range merged {
		if err := w.Write([]string{c.Date, c.Label, strconv.Itoa(c.Stocks)}); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
