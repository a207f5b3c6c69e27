// Package snapshot persists one immutable pool table per trading date and
// variant as flat CSV, and diffs consecutive snapshots day over day.
package snapshot

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"poolwatch/internal/pool"
)

// ErrNotFound is returned when no snapshot exists for a date and variant.
var ErrNotFound = errors.New("snapshot not found")

// LargeCapSuffix names the derived sub-variant filtered by market cap.
const LargeCapSuffix = "_large"

var poolHeader = []string{"trade_date", "name", "market_cap", "code", "market_code", "intervals", "importance"}

// Store lays files out as a flat artifact directory:
// data/csv/<variant>_<date>.csv for tables, data/txt/<variant>_<date>.txt
// for bare code lists. Re-running a date overwrites; snapshots are never
// appended to.
type Store struct {
	dir           string
	largeCapFloor float64
}

// NewStore roots a store at dir. largeCapFloor (raw currency units) gates
// the derived large-cap sub-variant; 100e8 is the conventional floor.
func NewStore(dir string, largeCapFloor float64) *Store {
	return &Store{dir: dir, largeCapFloor: largeCapFloor}
}

func (s *Store) csvPath(date, variant string) string {
	return filepath.Join(s.dir, "csv", fmt.Sprintf("%s_%s.csv", variant, date))
}

func (s *Store) txtPath(date, variant string) string {
	return filepath.Join(s.dir, "txt", fmt.Sprintf("%s_%s.txt", variant, date))
}

// Write persists the pool for (date, variant), returning the file path.
func (s *Store) Write(date, variant string, records []pool.Record) (string, error) {
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, []string{
			r.TradeDate,
			r.Name,
			strconv.FormatFloat(r.MarketCap, 'f', -1, 64),
			quoteEscape(padCode(r.Code)),
			r.Market,
			quoteEscape(r.Intervals),
			strconv.FormatFloat(r.Importance, 'f', 2, 64),
		})
	}

	path := s.csvPath(date, variant)
	if err := WriteTable(path, poolHeader, rows); err != nil {
		return "", err
	}
	log.Info().Str("variant", variant).Str("date", date).Int("stocks", len(records)).
		Str("path", path).Msg("Pool snapshot written")
	return path, nil
}

// WriteLargeCap writes the large-cap sub-variant. A filter that leaves
// nothing simply skips the file; that is not an error.
func (s *Store) WriteLargeCap(date, variant string, records []pool.Record) (string, error) {
	var kept []pool.Record
	for _, r := range records {
		if r.MarketCap >= s.largeCapFloor {
			kept = append(kept, r)
		}
	}
	if len(kept) == 0 {
		log.Info().Str("variant", variant).Str("date", date).
			Msg("No large-cap stocks today, skipping sub-variant")
		return "", nil
	}
	return s.Write(date, variant+LargeCapSuffix, kept)
}

// WriteCodes writes the bare code list consumed by external screeners, one
// zero-padded code per line.
func (s *Store) WriteCodes(date, variant string, records []pool.Record) (string, error) {
	var b strings.Builder
	for _, r := range records {
		b.WriteString(padCode(r.Code))
		b.WriteByte('\n')
	}

	path := s.txtPath(date, variant)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("ensure txt dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		return "", fmt.Errorf("write code list %s: %w", path, err)
	}
	return path, nil
}

// Read loads the pool for (date, variant), or ErrNotFound.
func (s *Store) Read(date, variant string) ([]pool.Record, error) {
	path := s.csvPath(date, variant)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s %s", ErrNotFound, variant, date)
		}
		return nil, fmt.Errorf("open snapshot %s: %w", path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read snapshot %s: %w", path, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("snapshot %s has no header", path)
	}

	col := make(map[string]int, len(rows[0]))
	for i, name := range rows[0] {
		col[name] = i
	}
	for _, name := range poolHeader {
		if _, ok := col[name]; !ok {
			return nil, fmt.Errorf("snapshot %s missing column %q", path, name)
		}
	}

	records := make([]pool.Record, 0, len(rows)-1)
	for _, row := range rows[1:] {
		cap64, err := strconv.ParseFloat(row[col["market_cap"]], 64)
		if err != nil {
			return nil, fmt.Errorf("snapshot %s: bad market_cap %q: %w", path, row[col["market_cap"]], err)
		}
		imp, err := strconv.ParseFloat(row[col["importance"]], 64)
		if err != nil {
			return nil, fmt.Errorf("snapshot %s: bad importance %q: %w", path, row[col["importance"]], err)
		}
		records = append(records, pool.Record{
			TradeDate:  row[col["trade_date"]],
			Name:       row[col["name"]],
			MarketCap:  cap64,
			Code:       stripQuote(row[col["code"]]),
			Market:     row[col["market_code"]],
			Intervals:  stripQuote(row[col["intervals"]]),
			Importance: imp,
		})
	}
	return records, nil
}

// WriteTable writes an arbitrary header+rows table as CSV, creating parent
// directories as needed.
func WriteTable(path string, header []string, rows [][]string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("ensure dir for %s: %w", path, err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	w.Flush()
	return w.Error()
}

// padCode zero-pads exchange codes to six digits; spreadsheet round trips
// tend to shed leading zeros.
func padCode(code string) string {
	if len(code) >= 6 {
		return code
	}
	return strings.Repeat("0", 6-len(code)) + code
}

// quoteEscape prefixes a value with a single quote so spreadsheet tools do
// not reinterpret numeric-looking strings. stripQuote undoes it on read.
func quoteEscape(v string) string { return "'" + v }

func stripQuote(v string) string { return strings.TrimPrefix(v, "'") }
