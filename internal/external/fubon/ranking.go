package fubon

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/twchip/chipkline/internal/browser"
	"github.com/twchip/chipkline/internal/contracts"
)

// topRankRows is how many branches each side of the ranking keeps.
const topRankRows = 15

// FetchRanking fetches and parses the aggregate branch ranking for a stock
// over a date range. A failed extraction returns a result that is empty
// apart from SourceURL; partial results are never returned.
func (c *Client) FetchRanking(ctx context.Context, stockID, startDate, endDate string) contracts.RankingResult {
	pageURL := c.RankingURL(stockID, startDate, endDate)
	result := contracts.RankingResult{SourceURL: pageURL}

	log := c.logger.WithFields(map[string]interface{}{
		"stock_id": stockID,
		"start":    startDate,
		"end":      endDate,
	})

	err := c.session(ctx, func(drv browser.Driver) {
		if err := drv.Navigate(ctx, pageURL); err != nil {
			log.WithError(err).Warn("Ranking page navigation failed")
			return
		}

		if err := drv.WaitForText(ctx, markerBuyers, c.cfg.MarkerWait); err != nil {
			// No retry: the user re-runs the query if the site was slow.
			log.Warn("Ranking marker never rendered")
			return
		}

		html, err := drv.PageSource(ctx)
		if err != nil {
			log.WithError(err).Warn("Ranking page source read failed")
			return
		}

		parsed, err := ParseRanking(html, c.summaryLocator)
		if err != nil {
			log.WithError(err).Warn("Ranking parse failed")
			return
		}

		parsed.SourceURL = pageURL
		result = parsed
	})
	if err != nil {
		log.WithError(err).Warn("Ranking fetch failed")
	}

	if !result.Empty() {
		log.WithFields(map[string]interface{}{
			"buyers":   len(result.Buyers),
			"sellers":  len(result.Sellers),
			"branches": len(result.Identities),
		}).Debug("Fetched ranking")
	}

	return result
}

// ParseRanking parses the rendered ranking page markup.
func ParseRanking(html string, loc SummaryLocator) (contracts.RankingResult, error) {
	var result contracts.RankingResult

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return result, fmt.Errorf("parse markup: %w", err)
	}

	rows, headerIdx, ok := findRankingTable(doc)
	if !ok {
		return result, fmt.Errorf("ranking header row not found")
	}

	var buyers, sellers []contracts.BrokerRankRow
	for _, row := range rows[headerIdx+1:] {
		if len(row) >= 5 {
			if r, ok := rankRowFromCells(row[0:5]); ok {
				buyers = append(buyers, r)
			}
		}
		if len(row) >= 10 {
			if r, ok := rankRowFromCells(row[5:10]); ok {
				sellers = append(sellers, r)
			}
		}
	}

	// Buy side keeps strict net accumulators only.
	filtered := buyers[:0]
	for _, r := range buyers {
		if r.NetVolume > 0 {
			filtered = append(filtered, r)
		}
	}
	buyers = filtered
	sort.SliceStable(buyers, func(i, j int) bool {
		return buyers[i].NetVolume > buyers[j].NetVolume
	})
	if len(buyers) > topRankRows {
		buyers = buyers[:topRankRows]
	}

	// Sell side ranks by magnitude but keeps the original sign.
	sort.SliceStable(sellers, func(i, j int) bool {
		return abs64(sellers[i].NetVolume) > abs64(sellers[j].NetVolume)
	})
	if len(sellers) > topRankRows {
		sellers = sellers[:topRankRows]
	}

	result.Buyers = buyers
	result.Sellers = sellers
	result.BuySummary, result.SellSummary = loc.Locate(rows)
	result.Identities = harvestIdentities(doc)

	return result, nil
}

// rankRowFromCells builds one ranking row from a 5-cell column group,
// rejecting unnamed and aggregate rows.
func rankRowFromCells(cells []string) (contracts.BrokerRankRow, bool) {
	name := strings.TrimSpace(cells[0])
	if name == "" || isAggregateRow(name) {
		return contracts.BrokerRankRow{}, false
	}

	return contracts.BrokerRankRow{
		BranchName: name,
		BuyVolume:  cleanInt(cells[1]),
		SellVolume: cleanInt(cells[2]),
		NetVolume:  cleanInt(cells[3]),
		SharePct:   strings.TrimSpace(cells[4]),
	}, true
}

// findRankingTable locates the leaf table whose header row carries both the
// buyer and seller labels, and returns its rows plus the header row index.
func findRankingTable(doc *goquery.Document) ([][]string, int, bool) {
	var rows [][]string
	headerIdx := -1

	doc.Find("table").EachWithBreak(func(_ int, table *goquery.Selection) bool {
		if table.Find("table").Length() > 0 {
			return true // not a leaf, keep scanning
		}

		candidate := tableRows(table)
		for i, row := range candidate {
			joined := strings.Join(row, " ")
			if strings.Contains(joined, markerBuyers) && strings.Contains(joined, markerSellers) {
				rows = candidate
				headerIdx = i
				return false
			}
		}
		return true
	})

	return rows, headerIdx, headerIdx >= 0
}

// tableRows flattens a table selection into per-row cell texts.
func tableRows(table *goquery.Selection) [][]string {
	var rows [][]string
	table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		var cells []string
		tr.Find("th, td").Each(func(_ int, cell *goquery.Selection) {
			cells = append(cells, strings.TrimSpace(cell.Text()))
		})
		rows = append(rows, cells)
	})
	return rows
}

// harvestIdentities collects branch detail-page link parameters from every
// in-page anchor pointing at the branch detail endpoint.
func harvestIdentities(doc *goquery.Document) map[string]contracts.BranchIdentity {
	identities := make(map[string]contracts.BranchIdentity)

	doc.Find(`a[href*="zco0.djhtm"]`).Each(func(_ int, link *goquery.Selection) {
		name := NormalizeName(link.Text())
		href, hasHref := link.Attr("href")
		if name == "" || !hasHref {
			return
		}

		parsed, err := url.Parse(href)
		if err != nil {
			return
		}

		params := parsed.Query()
		branchID := params.Get("b")
		hashID := params.Get("BHID")
		if branchID == "" || hashID == "" {
			return
		}

		identities[name] = contracts.BranchIdentity{
			Key:      name,
			BranchID: branchID,
			HashID:   hashID,
			Category: "1",
		}
	})

	return identities
}

func abs64(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}
