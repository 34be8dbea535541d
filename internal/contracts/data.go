// Package contracts defines the data model shared between the extractors,
// the reconciliation engine and the API layer. Dates are carried as
// "2006-01-02" strings: that is the join key between the independently
// sourced price and flow series, and string keys keep the join timezone-free.
package contracts

// BrokerRankRow is one branch's aggregate volume over the statistically
// covered window. Volumes are in lots (張).
type BrokerRankRow struct {
	BranchName string `json:"branch_name"`
	BuyVolume  int64  `json:"buy_volume"`
	SellVolume int64  `json:"sell_volume"`
	NetVolume  int64  `json:"net_volume"`
	SharePct   string `json:"share_pct"`
}

// RankSummary holds the per-side total/average summary cells. These are
// display text, not re-parsed numbers: the source format is inconsistent and
// may carry non-numeric placeholders.
type RankSummary struct {
	Total string `json:"total"`
	Avg   string `json:"avg"`
}

// BranchIdentity holds the URL parameters needed to query one branch's
// detail page. Key is the display name with all whitespace (including
// full-width space) stripped.
type BranchIdentity struct {
	Key      string `json:"key"`
	BranchID string `json:"branch_id"` // "b" query parameter
	HashID   string `json:"hash_id"`   // "BHID" query parameter
	Category string `json:"category"`  // "C" query parameter, defaults to "1"
}

// RankingResult is the full output of one ranking-page extraction. A failed
// extraction is represented by the zero value; partial results are never
// produced.
type RankingResult struct {
	Buyers      []BrokerRankRow           `json:"buyers"`
	Sellers     []BrokerRankRow           `json:"sellers"`
	BuySummary  RankSummary               `json:"buy_summary"`
	SellSummary RankSummary               `json:"sell_summary"`
	Identities  map[string]BranchIdentity `json:"identities"`
	SourceURL   string                    `json:"source_url"`
}

// Empty reports whether the extraction produced nothing.
func (r *RankingResult) Empty() bool {
	return len(r.Buyers) == 0 && len(r.Sellers) == 0
}

// BranchNames returns buyer then seller branch names, deduplicated in order.
func (r *RankingResult) BranchNames() []string {
	seen := make(map[string]bool)
	var names []string
	for _, rows := range [][]BrokerRankRow{r.Buyers, r.Sellers} {
		for _, row := range rows {
			if !seen[row.BranchName] {
				seen[row.BranchName] = true
				names = append(names, row.BranchName)
			}
		}
	}
	return names
}

// BranchDailyRecord is one trading day of one branch's buy/sell activity.
// Net is always recomputed as Buy−Sell; the source's own net column is not
// trusted.
type BranchDailyRecord struct {
	Date string `json:"date"` // "2006-01-02"
	Buy  int64  `json:"buy"`
	Sell int64  `json:"sell"`
	Net  int64  `json:"net"`
}

// PriceBar is one trading day of OHLC data with simple moving averages.
// MA pointers are nil while the rolling window is unfilled, which is
// distinct from zero.
type PriceBar struct {
	Date   string  `json:"date"` // "2006-01-02"
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume int64   `json:"volume"`

	MA5  *float64 `json:"ma5,omitempty"`
	MA10 *float64 `json:"ma10,omitempty"`
	MA20 *float64 `json:"ma20,omitempty"`
	MA60 *float64 `json:"ma60,omitempty"`
}

// MergedPoint is one calendar entry of the merged series: the price bar,
// the branch's net flow on that day (zero when the branch did not trade),
// and the running cumulative net position.
type MergedPoint struct {
	PriceBar
	FlowBuy       int64 `json:"flow_buy"`
	FlowSell      int64 `json:"flow_sell"`
	FlowNet       int64 `json:"flow_net"`
	CumulativeNet int64 `json:"cumulative_net"`
}

// MergedSeries is the reconciliation output handed to the presentation
// layer. PriceOnly marks the degraded mode where no branch data was
// available and the flow columns carry no information.
type MergedSeries struct {
	StockID    string        `json:"stock_id"`
	BranchName string        `json:"branch_name,omitempty"`
	Points     []MergedPoint `json:"points"`
	PriceOnly  bool          `json:"price_only"`

	// Statistically covered sub-range, for highlight annotation.
	CoveredStart string `json:"covered_start"`
	CoveredEnd   string `json:"covered_end"`
}

// TotalNet returns the final cumulative net position, 0 for empty series.
func (m *MergedSeries) TotalNet() int64 {
	if len(m.Points) == 0 {
		return 0
	}
	return m.Points[len(m.Points)-1].CumulativeNet
}
