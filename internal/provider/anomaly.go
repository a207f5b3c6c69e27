package provider

import (
	"context"
	"fmt"
	"strings"

	"poolwatch/internal/merge"
)

// AnomalyClient serves the curated trading-anomaly feed: per-stock hotspot
// labels plus free-text rationale.
type AnomalyClient struct {
	c *Client
}

func NewAnomalyClient(c *Client) *AnomalyClient { return &AnomalyClient{c: c} }

// Anomalies fetches the anomaly explanations for one trading date. The
// feed groups stocks under hotspot sections; the first section is the
// feed's own day summary and carries no stocks.
func (a *AnomalyClient) Anomalies(ctx context.Context, date string) ([]merge.AnomalyRow, error) {
	body := map[string]string{"date": dashDate(date)}

	var payload struct {
		ErrCode string `json:"errCode"`
		Msg     string `json:"msg"`
		Data    []struct {
			Name   string `json:"name"`
			Reason string `json:"reason"`
			List   []struct {
				Name    string `json:"name"`
				Code    string `json:"code"` // exchange-prefixed, e.g. "sh600519"
				Article struct {
					ActionInfo struct {
						Time    string `json:"time"`
						Expound string `json:"expound"`
					} `json:"action_info"`
				} `json:"article"`
			} `json:"list"`
		} `json:"data"`
	}
	if err := a.c.postJSON(ctx, "anomaly", "/api/v1/action/field", body, &payload); err != nil {
		return nil, err
	}
	if payload.ErrCode != "0" {
		return nil, wrapErr("anomaly", fmt.Errorf("errCode %s: %s", payload.ErrCode, payload.Msg))
	}
	if len(payload.Data) == 0 {
		return nil, nil
	}

	var rows []merge.AnomalyRow
	for _, section := range payload.Data[1:] {
		for _, stock := range section.List {
			reason, analysis := splitExpound(stock.Article.ActionInfo.Expound)
			rows = append(rows, merge.AnomalyRow{
				Code:           stripExchangePrefix(stock.Code),
				Date:           date,
				Name:           stock.Name,
				Hotspot:        section.Name,
				HotspotTrigger: section.Reason,
				Reason:         reason,
				Analysis:       analysis,
			})
		}
	}
	return rows, nil
}

// splitExpound separates the one-line move reason from the longer analysis
// below it.
func splitExpound(expound string) (reason, analysis string) {
	parts := strings.SplitN(expound, "\n", 2)
	reason = parts[0]
	if len(parts) > 1 {
		analysis = parts[1]
	}
	return reason, analysis
}

// stripExchangePrefix drops the two-letter exchange prefix from feed codes.
func stripExchangePrefix(code string) string {
	if len(code) > 2 && (code[0] < '0' || code[0] > '9') {
		return code[2:]
	}
	return code
}

// dashDate converts YYYYMMDD to the feed's YYYY-MM-DD parameter form.
func dashDate(date string) string {
	if len(date) != 8 {
		return date
	}
	return date[:4] + "-" + date[4:6] + "-" + date[6:]
}
