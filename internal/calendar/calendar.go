// Package calendar supplies the exchange trading-day collaborator used to
// anchor every daily run: which dates are market-open, what "today" means
// after the close, and how to step back to the prior session.
package calendar

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// DateFormat is the wire format for trading dates everywhere in the system.
const DateFormat = "20060102"

// maxDaysBack bounds the calendar-day scan when looking for the previous
// trading session (long holiday weeks stay within this).
const maxDaysBack = 10

// Source provides the full list of trading days, typically from an
// exchange-calendar endpoint.
type Source interface {
	TradingDays(ctx context.Context) ([]string, error)
}

// Calendar answers trading-day queries against an in-memory day set.
type Calendar struct {
	days   map[string]struct{}
	sorted []string // ascending YYYYMMDD
	now    func() time.Time
}

// New builds a calendar from YYYYMMDD day strings. Malformed entries are
// dropped with a warning rather than failing the whole load.
func New(days []string) *Calendar {
	c := &Calendar{days: make(map[string]struct{}, len(days)), now: time.Now}
	for _, d := range days {
		d = strings.TrimSpace(d)
		if _, err := time.Parse(DateFormat, d); err != nil {
			if d != "" {
				log.Warn().Str("date", d).Msg("Dropping malformed calendar entry")
			}
			continue
		}
		if _, ok := c.days[d]; !ok {
			c.days[d] = struct{}{}
			c.sorted = append(c.sorted, d)
		}
	}
	sort.Strings(c.sorted)
	return c
}

// Load reads a calendar file, one YYYYMMDD date per line.
func Load(path string) (*Calendar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open calendar %s: %w", path, err)
	}
	defer f.Close()

	var days []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		days = append(days, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read calendar %s: %w", path, err)
	}
	return New(days), nil
}

// Refresh fetches the day list from src and persists it to path so later
// runs can start without a network round trip.
func Refresh(ctx context.Context, src Source, path string) (*Calendar, error) {
	days, err := src.TradingDays(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch trading days: %w", err)
	}

	c := New(days)
	if len(c.sorted) == 0 {
		return nil, fmt.Errorf("trading-day source returned no usable dates")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("ensure calendar dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(strings.Join(c.sorted, "\n")+"\n"), 0644); err != nil {
		return nil, fmt.Errorf("write calendar %s: %w", path, err)
	}
	log.Info().Int("days", len(c.sorted)).Str("path", path).Msg("Trading calendar refreshed")
	return c, nil
}

// IsTradingDay reports whether date (YYYYMMDD) is a market-open day.
func (c *Calendar) IsTradingDay(date string) bool {
	_, ok := c.days[date]
	return ok
}

// PreviousTradingDay returns the nearest trading day strictly before date,
// scanning back at most ten calendar days. ok is false when none is found.
func (c *Calendar) PreviousTradingDay(date string) (string, bool) {
	t, err := time.Parse(DateFormat, date)
	if err != nil {
		return "", false
	}
	for i := 1; i <= maxDaysBack; i++ {
		d := t.AddDate(0, 0, -i).Format(DateFormat)
		if c.IsTradingDay(d) {
			return d, true
		}
	}
	return "", false
}

// DefaultTradeDate is the most recent trading day not after today. Falls
// back to today's date when the calendar has nothing usable.
func (c *Calendar) DefaultTradeDate() string {
	recent := c.RecentTradingDays(1)
	if len(recent) == 0 {
		return c.now().Format(DateFormat)
	}
	return recent[0]
}

// RecentTradingDays returns the latest k trading days up to and including
// today, ascending.
func (c *Calendar) RecentTradingDays(k int) []string {
	today := c.now().Format(DateFormat)

	// Index of first day after today.
	end := sort.SearchStrings(c.sorted, today)
	if end < len(c.sorted) && c.sorted[end] == today {
		end++
	}

	start := end - k
	if start < 0 {
		start = 0
	}
	out := make([]string, end-start)
	copy(out, c.sorted[start:end])
	return out
}
