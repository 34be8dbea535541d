package fubon

import (
	"strings"

	"github.com/twchip/chipkline/internal/contracts"
)

// SummaryLocator extracts the per-side total/average summary strings from
// the ranking table rows. The source page is brittle here — the summary
// cells historically sat at fixed absolute positions — so the strategy is
// isolated behind this interface and the rest of the pipeline never touches
// the page-position assumption.
type SummaryLocator interface {
	Locate(rows [][]string) (buy, sell contracts.RankSummary)
}

// LabelSummaryLocator finds the summary rows by their labels (合計 / 平均).
// This is the default: it survives rows shifting position.
type LabelSummaryLocator struct{}

// Locate scans for the labeled rows. Buy-side values sit next to the label,
// sell-side values two cells further.
func (LabelSummaryLocator) Locate(rows [][]string) (contracts.RankSummary, contracts.RankSummary) {
	buy := contracts.RankSummary{Total: "0", Avg: "0"}
	sell := contracts.RankSummary{Total: "0", Avg: "0"}

	for _, row := range rows {
		if len(row) < 2 {
			continue
		}

		label := row[0]
		switch {
		case strings.Contains(label, "合計"):
			buy.Total = strings.TrimSpace(row[1])
			if len(row) >= 4 {
				sell.Total = strings.TrimSpace(row[3])
			}
		case strings.Contains(label, "平均"):
			buy.Avg = strings.TrimSpace(row[1])
			if len(row) >= 4 {
				sell.Avg = strings.TrimSpace(row[3])
			}
		}
	}

	return buy, sell
}

// PositionalSummaryLocator reads the summary from the fixed row positions
// the source page has always used (rows 22 and 23 of the ranking table,
// 1-based). Kept as the literal-fidelity fallback for page layouts where
// the labels are embedded in images rather than text.
type PositionalSummaryLocator struct{}

// Locate reads the fixed positions, returning "0" placeholders when the
// table is shorter than expected.
func (PositionalSummaryLocator) Locate(rows [][]string) (contracts.RankSummary, contracts.RankSummary) {
	buy := contracts.RankSummary{Total: "0", Avg: "0"}
	sell := contracts.RankSummary{Total: "0", Avg: "0"}

	pick := func(rowIdx, cellIdx int) (string, bool) {
		if rowIdx < len(rows) && cellIdx < len(rows[rowIdx]) {
			return strings.TrimSpace(rows[rowIdx][cellIdx]), true
		}
		return "", false
	}

	if v, ok := pick(21, 1); ok {
		buy.Total = v
	}
	if v, ok := pick(22, 1); ok {
		buy.Avg = v
	}
	if v, ok := pick(21, 3); ok {
		sell.Total = v
	}
	if v, ok := pick(22, 3); ok {
		sell.Avg = v
	}

	return buy, sell
}
