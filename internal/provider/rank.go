package provider

import (
	"context"
	"fmt"
	"strings"

	"poolwatch/internal/pool"
)

// RankClient answers interval-return ranking queries. Implements
// pool.RankSource.
type RankClient struct {
	c *Client
}

func NewRankClient(c *Client) *RankClient { return &RankClient{c: c} }

// TopStocks fetches the top limit stocks by trailing window-day return.
// filtered restricts the universe: no new listings, no risk-flagged names,
// market cap above the source-side floor.
func (r *RankClient) TopStocks(ctx context.Context, window, limit int, filtered bool) ([]pool.Observation, error) {
	filterFlag := 0
	if filtered {
		filterFlag = 1
	}
	path := fmt.Sprintf("/api/qt/ranklist/get?np=1&fltt=2&window=%d&pn=%d&selected=%d", window, limit, filterFlag)

	var payload struct {
		Data struct {
			Date string `json:"date"`
			Diff []struct {
				Code      string  `json:"f12"`
				Name      string  `json:"f14"`
				Market    int     `json:"f13"`
				Rank      int     `json:"f3_rank"`
				MarketCap float64 `json:"f21"`
			} `json:"diff"`
		} `json:"data"`
	}
	if err := r.c.getJSON(ctx, "rank", path, &payload); err != nil {
		return nil, err
	}

	obs := make([]pool.Observation, 0, len(payload.Data.Diff))
	for _, d := range payload.Data.Diff {
		obs = append(obs, pool.Observation{
			TradeDate: payload.Data.Date,
			Code:      padCode(d.Code),
			Market:    fmt.Sprintf("%d", d.Market),
			Name:      d.Name,
			MarketCap: d.MarketCap,
			Window:    window,
			Rank:      d.Rank,
		})
	}
	return obs, nil
}

// Breakouts fetches today's first-breakout stocks: a limit-class move today
// with none in the prior ten sessions. Returned as window-1 observations
// ranked by move size so one scorer serves both pool variants.
func (r *RankClient) Breakouts(ctx context.Context) ([]pool.Observation, error) {
	var payload struct {
		Data struct {
			Date string `json:"date"`
			Diff []struct {
				Code      string  `json:"f12"`
				Name      string  `json:"f14"`
				Market    int     `json:"f13"`
				MarketCap float64 `json:"f21"`
			} `json:"diff"`
		} `json:"data"`
	}
	if err := r.c.getJSON(ctx, "rank", "/api/qt/breakout/get?np=1&fltt=2", &payload); err != nil {
		return nil, err
	}

	obs := make([]pool.Observation, 0, len(payload.Data.Diff))
	for i, d := range payload.Data.Diff {
		obs = append(obs, pool.Observation{
			TradeDate: payload.Data.Date,
			Code:      padCode(d.Code),
			Market:    fmt.Sprintf("%d", d.Market),
			Name:      d.Name,
			MarketCap: d.MarketCap,
			Window:    1,
			Rank:      i + 1, // feed order is move size descending
		})
	}
	return obs, nil
}

func padCode(code string) string {
	if len(code) >= 6 {
		return code
	}
	return strings.Repeat("0", 6-len(code)) + code
}
