package provider

import (
	"context"
	"fmt"

	"poolwatch/internal/merge"
)

// MarketClient serves the same-day market overview and limit-up feeds.
type MarketClient struct {
	c *Client
}

func NewMarketClient(c *Client) *MarketClient { return &MarketClient{c: c} }

// Overview fetches the whole-market per-stock overview for date. The
// returned FieldSet declares which optional columns this feed carries.
func (m *MarketClient) Overview(ctx context.Context, date string) ([]merge.OverviewRow, merge.FieldSet, error) {
	var payload struct {
		Data struct {
			Fields []string `json:"fields"`
			Diff   []struct {
				Code            string  `json:"f12"`
				Name            string  `json:"f14"`
				Market          int     `json:"f13"`
				HeatRank        int     `json:"f267"`
				PctChange       float64 `json:"f3"`
				Open            float64 `json:"f17"`
				Close           float64 `json:"f2"`
				Turnover        float64 `json:"f8"`
				TradeValue      float64 `json:"f6"`
				LargeOrderNet   float64 `json:"f62"`
				AuctionPct      float64 `json:"f277_pct"`
				AuctionValue    float64 `json:"f277"`
				AuctionTurnover float64 `json:"f277_to"`
				Board           string  `json:"f100"`
			} `json:"diff"`
		} `json:"data"`
	}
	path := fmt.Sprintf("/api/qt/overview/get?np=1&fltt=2&date=%s", date)
	if err := m.c.getJSON(ctx, "overview", path, &payload); err != nil {
		return nil, nil, err
	}

	fields := merge.FieldSet{}
	for _, f := range payload.Data.Fields {
		fields[f] = true
	}

	rows := make([]merge.OverviewRow, 0, len(payload.Data.Diff))
	for _, d := range payload.Data.Diff {
		row := merge.OverviewRow{
			Code:            padCode(d.Code),
			Market:          fmt.Sprintf("%d", d.Market),
			HeatRank:        d.HeatRank,
			PctChange:       d.PctChange,
			Turnover:        d.Turnover,
			TradeValue:      d.TradeValue,
			LargeOrderNet:   d.LargeOrderNet,
			AuctionPct:      d.AuctionPct,
			AuctionValue:    d.AuctionValue,
			AuctionTurnover: d.AuctionTurnover,
			Board:           d.Board,
		}
		// Body move: close against open, the intraday conviction measure.
		if d.Open > 0 {
			row.BodyPct = (d.Close/d.Open - 1) * 100
		}
		rows = append(rows, row)
	}
	return rows, fields, nil
}

// LimitUp fetches the day's limit-up events.
func (m *MarketClient) LimitUp(ctx context.Context, date string) ([]merge.LimitUpRow, error) {
	var payload struct {
		Data struct {
			Date string `json:"date"`
			Diff []struct {
				Code            string  `json:"f12"`
				Market          int     `json:"f13"`
				Streak          int     `json:"f_streak"`
				LockedAmount    float64 `json:"f_locked"`
				ReasonCategory  string  `json:"f_reason"`
				SealVolumeRatio float64 `json:"f_svr"`
				SealFloatRatio  float64 `json:"f_sfr"`
			} `json:"diff"`
		} `json:"data"`
	}
	path := fmt.Sprintf("/api/qt/limitup/get?np=1&fltt=2&date=%s", date)
	if err := m.c.getJSON(ctx, "limitup", path, &payload); err != nil {
		return nil, err
	}

	rows := make([]merge.LimitUpRow, 0, len(payload.Data.Diff))
	for _, d := range payload.Data.Diff {
		rows = append(rows, merge.LimitUpRow{
			Code:            padCode(d.Code),
			Market:          fmt.Sprintf("%d", d.Market),
			Date:            payload.Data.Date,
			Streak:          d.Streak,
			LockedAmount:    d.LockedAmount,
			ReasonCategory:  d.ReasonCategory,
			SealVolumeRatio: d.SealVolumeRatio,
			SealFloatRatio:  d.SealFloatRatio,
		})
	}
	return rows, nil
}

// TradingDays fetches the exchange calendar day list (YYYYMMDD), satisfying
// calendar.Source.
func (m *MarketClient) TradingDays(ctx context.Context) ([]string, error) {
	var payload struct {
		Data struct {
			Days []string `json:"days"`
		} `json:"data"`
	}
	if err := m.c.getJSON(ctx, "calendar", "/api/qt/tradedates/get", &payload); err != nil {
		return nil, err
	}
	return payload.Data.Days, nil
}
