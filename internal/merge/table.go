package merge

import "strconv"

// Header lists the enriched-table columns in persisted order.
var Header = []string{
	"trade_date", "name", "code", "market_code", "intervals", "importance", "market_cap",
	"heat_rank", "pct_change", "body_pct", "turnover", "trade_value", "large_order_net",
	"auction_pct", "auction_value", "auction_turnover", "board",
	"limit_up_date", "streak", "locked_amount", "reason_category", "seal_volume_ratio", "seal_float_ratio",
	"anomaly_date", "hotspot", "hotspot_trigger", "reason", "analysis",
}

// Table renders enriched rows for the CSV writer, matching Header.
func Table(rows []Row) [][]string {
	out := make([][]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, []string{
			r.TradeDate,
			r.Name,
			"'" + r.Code,
			r.Market,
			"'" + r.Intervals,
			ftoa(r.Importance, 2),
			ftoa(r.MarketCap, 0),
			strconv.Itoa(r.HeatRank),
			ftoa(r.PctChange, 2),
			ftoa(r.BodyPct, 2),
			ftoa(r.Turnover, 2),
			ftoa(r.TradeValue, 1),
			ftoa(r.LargeOrderNet, 2),
			ftoa(r.AuctionPct, 2),
			ftoa(r.AuctionValue, 2),
			ftoa(r.AuctionTurnover, 2),
			r.Board,
			r.LimitUpDate,
			strconv.Itoa(r.Streak),
			ftoa(r.LockedAmount, 2),
			r.ReasonCategory,
			ftoa(r.SealVolumeRatio, 2),
			ftoa(r.SealFloatRatio, 2),
			r.AnomalyDate,
			r.Hotspot,
			r.HotspotTrigger,
			r.Reason,
			r.Analysis,
		})
	}
	return out
}

func ftoa(v float64, places int) string {
	return strconv.FormatFloat(v, 'f', places, 64)
}
