package merge

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"poolwatch/internal/pool"
)

func poolRec(code string) pool.Record {
	return pool.Record{
		TradeDate:  "20260106",
		Code:       code,
		Market:     "17",
		Name:       "stock-" + code,
		MarketCap:  150e8,
		Intervals:  "2-1",
		Importance: 131.32,
	}
}

func fullInputs() Inputs {
	return Inputs{
		Overview: []OverviewRow{{
			Code: "600519", Market: "17",
			HeatRank:      12,
			PctChange:     4.2,
			TradeValue:    250_000_000,
			LargeOrderNet: 12_345_678,
			AuctionValue:  30_000_000,
			Board:         "main",
		}},
		OverviewFields: FieldSet{FieldLargeOrderNet: true},
		LimitUp: []LimitUpRow{{
			Code: "600519", Market: "17",
			Date:           "20260106",
			Streak:         2,
			LockedAmount:   500_000_000,
			ReasonCategory: "new energy",
		}},
		Anomaly: []AnomalyRow{{
			Code:    "600519",
			Date:    "20260106",
			Hotspot: "new energy",
			Reason:  "sector breakout",
		}},
	}
}

func TestMerge_LeftJoinKeepsEveryPoolRow(t *testing.T) {
	records := []pool.Record{poolRec("600519"), poolRec("000001")}

	rows, err := Merge(records, fullInputs())
	require.NoError(t, err)
	require.Len(t, rows, 2)

	// 600519 matched all three feeds.
	assert.Equal(t, 12, rows[0].HeatRank)
	assert.Equal(t, "new energy", rows[0].Hotspot)

	// 000001 matched nothing: numeric defaults zero, categories "other".
	assert.Equal(t, 0.0, rows[1].TradeValue)
	assert.Equal(t, 0, rows[1].Streak)
	assert.Equal(t, DefaultCategory, rows[1].Hotspot)
	assert.Equal(t, DefaultCategory, rows[1].Board)
	assert.Equal(t, DefaultCategory, rows[1].ReasonCategory)
}

func TestMerge_UnitConversion(t *testing.T) {
	rows, err := Merge([]pool.Record{poolRec("600519")}, fullInputs())
	require.NoError(t, err)

	r := rows[0]
	// 250,000,000 raw -> 2.5 hundred-millions at 1 decimal.
	assert.Equal(t, 2.5, r.TradeValue)
	// Market cap rounds to whole hundred-millions.
	assert.Equal(t, 150.0, r.MarketCap)
	assert.Equal(t, 0.12, r.LargeOrderNet)
	assert.Equal(t, 5.0, r.LockedAmount)
	assert.Equal(t, 0.3, r.AuctionValue)
}

func TestMerge_InfinityTreatedAsMissing(t *testing.T) {
	in := fullInputs()
	in.Overview[0].TradeValue = math.Inf(1)
	in.Overview[0].Turnover = math.Inf(-1)

	rows, err := Merge([]pool.Record{poolRec("600519")}, in)
	require.NoError(t, err)
	assert.Equal(t, 0.0, rows[0].TradeValue)
	assert.Equal(t, 0.0, rows[0].Turnover)
}

func TestMerge_CapabilityGatesOptionalFields(t *testing.T) {
	in := fullInputs()
	in.OverviewFields = FieldSet{} // source does not provide large-order flow

	rows, err := Merge([]pool.Record{poolRec("600519")}, in)
	require.NoError(t, err)
	assert.Equal(t, 0.0, rows[0].LargeOrderNet)
	// Other overview fields still join.
	assert.Equal(t, 12, rows[0].HeatRank)
}

func TestMerge_ExchangeQualifierDisambiguates(t *testing.T) {
	in := fullInputs()
	// Same numeric code on a different exchange must not join.
	in.Overview[0].Market = "33"
	in.LimitUp[0].Market = "33"

	rows, err := Merge([]pool.Record{poolRec("600519")}, in)
	require.NoError(t, err)
	assert.Equal(t, 0, rows[0].HeatRank)
	assert.Equal(t, 0, rows[0].Streak)
	// Anomaly joins on bare code regardless of exchange.
	assert.Equal(t, "new energy", rows[0].Hotspot)
}

func TestMerge_MissingInputFails(t *testing.T) {
	records := []pool.Record{poolRec("600519")}

	_, err := Merge(nil, fullInputs())
	assert.ErrorIs(t, err, ErrMissingInput)

	in := fullInputs()
	in.Overview = nil
	_, err = Merge(records, in)
	assert.ErrorIs(t, err, ErrMissingInput)

	in = fullInputs()
	in.LimitUp = nil
	_, err = Merge(records, in)
	assert.ErrorIs(t, err, ErrMissingInput)

	in = fullInputs()
	in.Anomaly = nil
	_, err = Merge(records, in)
	assert.ErrorIs(t, err, ErrMissingInput)
}

func TestTable_MatchesHeader(t *testing.T) {
	rows, err := Merge([]pool.Record{poolRec("600519")}, fullInputs())
	require.NoError(t, err)

	table := Table(rows)
	require.Len(t, table, 1)
	assert.Len(t, table[0], len(Header))
	assert.Equal(t, "'600519", table[0][2])
	assert.Equal(t, "2.5", table[0][11])
}
