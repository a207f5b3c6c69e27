// Package merge left-joins the daily pool against the collaborator feeds
// (market overview, limit-up events, trading anomalies) into one enriched
// wide table per pool variant.
package merge

import (
	"errors"
	"fmt"
	"math"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"poolwatch/internal/pool"
)

// ErrMissingInput marks a merge attempted without all four required inputs.
// A partial enriched table is never written.
var ErrMissingInput = errors.New("merge input missing or empty")

// DefaultCategory fills text and category columns with no join match, and is
// also the generic hotspot bucket excluded from novelty analysis.
const DefaultCategory = "other"

// hundredMillion converts raw currency units to the 亿 display unit.
var hundredMillion = decimal.NewFromInt(100_000_000)

// OverviewRow is one stock's same-day market overview. Monetary fields are
// raw currency units until the merger converts them.
type OverviewRow struct {
	Code            string
	Market          string
	HeatRank        int
	PctChange       float64
	BodyPct         float64 // close vs open, percent
	Turnover        float64
	TradeValue      float64 // raw
	LargeOrderNet   float64 // raw; optional, see FieldLargeOrderNet
	AuctionPct      float64
	AuctionValue    float64 // raw
	AuctionTurnover float64
	Board           string
}

// LimitUpRow is one same-day limit-up event.
type LimitUpRow struct {
	Code            string
	Market          string
	Date            string
	Streak          int     // consecutive limit-up sessions
	LockedAmount    float64 // raw; order value sealed at the limit price
	ReasonCategory  string
	SealVolumeRatio float64
	SealFloatRatio  float64
}

// AnomalyRow is one stock's entry in the curated trading-anomaly feed.
type AnomalyRow struct {
	Code           string
	Date           string
	Name           string
	Hotspot        string
	HotspotTrigger string
	Reason         string
	Analysis       string
}

// Optional overview fields a source may not provide (the Beijing exchange
// feed has no large-order flow, for example).
const FieldLargeOrderNet = "large_order_net"

// FieldSet is the schema-capability declaration each collaborator makes:
// the merger asks Provides(field) instead of probing values at runtime.
type FieldSet map[string]bool

func (f FieldSet) Provides(field string) bool { return f[field] }

// Inputs bundles the three collaborator tables and their capabilities.
type Inputs struct {
	Overview       []OverviewRow
	OverviewFields FieldSet
	LimitUp        []LimitUpRow
	Anomaly        []AnomalyRow
}

// Row is one pool record enriched with whatever the three feeds know about
// it. Monetary columns are in hundred-millions after cleaning.
type Row struct {
	pool.Record

	// overview
	HeatRank        int
	PctChange       float64
	BodyPct         float64
	Turnover        float64
	TradeValue      float64
	LargeOrderNet   float64
	AuctionPct      float64
	AuctionValue    float64
	AuctionTurnover float64
	Board           string

	// limit-up
	LimitUpDate     string
	Streak          int
	LockedAmount    float64
	ReasonCategory  string
	SealVolumeRatio float64
	SealFloatRatio  float64

	// anomaly
	AnomalyDate    string
	Hotspot        string
	HotspotTrigger string
	Reason         string
	Analysis       string
}

// Merge performs three sequential left joins (overview, limit-up, anomaly)
// and then cleans the result: infinities become missing, missing numerics
// default to zero, missing categories to DefaultCategory, and monetary
// columns are converted to hundred-millions at fixed per-column precision.
// Every pool record appears exactly once in the output.
func Merge(records []pool.Record, in Inputs) ([]Row, error) {
	switch {
	case len(records) == 0:
		return nil, fmt.Errorf("%w: pool", ErrMissingInput)
	case len(in.Overview) == 0:
		return nil, fmt.Errorf("%w: market overview", ErrMissingInput)
	case len(in.LimitUp) == 0:
		return nil, fmt.Errorf("%w: limit-up events", ErrMissingInput)
	case len(in.Anomaly) == 0:
		return nil, fmt.Errorf("%w: anomaly feed", ErrMissingInput)
	}

	overview := make(map[string]OverviewRow, len(in.Overview))
	for _, r := range in.Overview {
		overview[r.Code+"|"+r.Market] = r
	}
	limitUp := make(map[string]LimitUpRow, len(in.LimitUp))
	for _, r := range in.LimitUp {
		limitUp[r.Code+"|"+r.Market] = r
	}
	anomaly := make(map[string]AnomalyRow, len(in.Anomaly))
	for _, r := range in.Anomaly {
		anomaly[r.Code] = r
	}

	hasLargeOrder := in.OverviewFields.Provides(FieldLargeOrderNet)

	rows := make([]Row, 0, len(records))
	for _, rec := range records {
		row := Row{Record: rec}

		if ov, ok := overview[rec.Key()]; ok {
			row.HeatRank = ov.HeatRank
			row.PctChange = ov.PctChange
			row.BodyPct = ov.BodyPct
			row.Turnover = ov.Turnover
			row.TradeValue = ov.TradeValue
			if hasLargeOrder {
				row.LargeOrderNet = ov.LargeOrderNet
			}
			row.AuctionPct = ov.AuctionPct
			row.AuctionValue = ov.AuctionValue
			row.AuctionTurnover = ov.AuctionTurnover
			row.Board = ov.Board
		}
		if zt, ok := limitUp[rec.Key()]; ok {
			row.LimitUpDate = zt.Date
			row.Streak = zt.Streak
			row.LockedAmount = zt.LockedAmount
			row.ReasonCategory = zt.ReasonCategory
			row.SealVolumeRatio = zt.SealVolumeRatio
			row.SealFloatRatio = zt.SealFloatRatio
		}
		if an, ok := anomaly[rec.Code]; ok {
			row.AnomalyDate = an.Date
			row.Hotspot = an.Hotspot
			row.HotspotTrigger = an.HotspotTrigger
			row.Reason = an.Reason
			row.Analysis = an.Analysis
		}

		clean(&row)
		rows = append(rows, row)
	}

	log.Info().Int("pool", len(records)).Int("enriched", len(rows)).Msg("Merge complete")
	return rows, nil
}

// clean runs after joining and before persistence, never the other way
// around: unit conversion must see the joined values.
func clean(row *Row) {
	row.MarketCap = toHundredMillions(row.MarketCap, 0)
	row.TradeValue = toHundredMillions(row.TradeValue, 1)
	row.LargeOrderNet = toHundredMillions(row.LargeOrderNet, 2)
	row.LockedAmount = toHundredMillions(row.LockedAmount, 2)
	row.AuctionValue = toHundredMillions(row.AuctionValue, 2)

	for _, f := range []*float64{
		&row.PctChange, &row.BodyPct, &row.Turnover,
		&row.AuctionPct, &row.AuctionTurnover,
		&row.SealVolumeRatio, &row.SealFloatRatio,
	} {
		if math.IsInf(*f, 0) || math.IsNaN(*f) {
			*f = 0
		}
	}

	if row.Board == "" {
		row.Board = DefaultCategory
	}
	if row.ReasonCategory == "" {
		row.ReasonCategory = DefaultCategory
	}
	if row.Hotspot == "" {
		row.Hotspot = DefaultCategory
	}
}

// toHundredMillions divides a raw currency amount by 1e8 and rounds to the
// given precision. Infinities from upstream division errors are treated as
// missing first, so they land on the zero default like any other miss.
func toHundredMillions(raw float64, places int32) float64 {
	if math.IsInf(raw, 0) || math.IsNaN(raw) {
		return 0
	}
	v, _ := decimal.NewFromFloat(raw).Div(hundredMillion).Round(places).Float64()
	return v
}
