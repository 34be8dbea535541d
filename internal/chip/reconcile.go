package chip

import (
	"sort"

	"github.com/twchip/chipkline/internal/contracts"
)

// Reconcile left-joins branch daily flow onto the price calendar by date.
//
// Flow records are deduplicated by date with the last occurrence winning,
// then joined onto the price series; price days the branch did not trade
// fill to zero flow — a branch that didn't trade contributes zero, which is
// distinct from a date with no price bar at all, which never appears.
// CumulativeNet is the ascending-date prefix sum over the whole series and
// is always recomputed from scratch: a forced refresh can rewrite
// historical rows, so incremental updates are never safe.
//
// With no flow records the output is the price series in price-only mode.
func Reconcile(stockID, branchName string, prices []contracts.PriceBar, flows []contracts.BranchDailyRecord, coveredStart, coveredEnd string) contracts.MergedSeries {
	series := contracts.MergedSeries{
		StockID:      stockID,
		BranchName:   branchName,
		PriceOnly:    len(flows) == 0,
		CoveredStart: coveredStart,
		CoveredEnd:   coveredEnd,
	}

	ordered := make([]contracts.PriceBar, len(prices))
	copy(ordered, prices)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Date < ordered[j].Date
	})

	// Last occurrence wins on duplicate dates.
	byDate := make(map[string]contracts.BranchDailyRecord, len(flows))
	for _, rec := range flows {
		byDate[rec.Date] = rec
	}

	var cumulative int64
	series.Points = make([]contracts.MergedPoint, 0, len(ordered))
	for _, bar := range ordered {
		point := contracts.MergedPoint{PriceBar: bar}
		if rec, ok := byDate[bar.Date]; ok {
			point.FlowBuy = rec.Buy
			point.FlowSell = rec.Sell
			point.FlowNet = rec.Net
		}
		cumulative += point.FlowNet
		point.CumulativeNet = cumulative
		series.Points = append(series.Points, point)
	}

	return series
}
