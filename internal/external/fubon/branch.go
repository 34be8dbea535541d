package fubon

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/twchip/chipkline/internal/browser"
	"github.com/twchip/chipkline/internal/contracts"
)

// FetchBranchDaily fetches one branch's daily buy/sell history over a date
// range, following the in-page 下一頁 control across up to MaxPages pages.
// A wait timeout mid-pagination keeps the pages collected so far; no usable
// page at all yields nil.
func (c *Client) FetchBranchDaily(ctx context.Context, stockID string, id contracts.BranchIdentity, startDate, endDate string) []contracts.BranchDailyRecord {
	pageURL := c.BranchDetailURL(stockID, id, startDate, endDate)

	log := c.logger.WithFields(map[string]interface{}{
		"stock_id": stockID,
		"branch":   id.Key,
	})

	var pages []pageTable

	err := c.session(ctx, func(drv browser.Driver) {
		if err := drv.Navigate(ctx, pageURL); err != nil {
			log.WithError(err).Warn("Branch detail navigation failed")
			return
		}

		for page := 0; page < c.cfg.MaxPages; page++ {
			if err := drv.WaitForText(ctx, markerDate, c.cfg.TableWait); err != nil {
				// Keep whatever earlier pages produced.
				break
			}

			html, err := drv.PageSource(ctx)
			if err != nil {
				break
			}

			if tbl, ok := extractDetailTable(html); ok {
				pages = append(pages, tbl)
			}

			clicked, err := drv.ClickLinkWithText(ctx, markerNext)
			if err != nil || !clicked {
				break
			}

			// Let the next page render before re-reading the table.
			select {
			case <-ctx.Done():
				return
			case <-time.After(c.cfg.PageDelay):
			}
		}
	})
	if err != nil {
		log.WithError(err).Warn("Branch detail fetch failed")
		return nil
	}

	records, err := consolidatePages(pages, c.now())
	if err != nil {
		log.WithError(err).Warn("Branch detail consolidation failed")
		return nil
	}

	log.WithFields(map[string]interface{}{
		"pages":   len(pages),
		"records": len(records),
	}).Debug("Fetched branch daily history")

	return records
}

// pageTable is one raw extracted page: a header row plus data rows.
type pageTable struct {
	headers []string
	rows    [][]string
}

// extractDetailTable locates the leaf table whose header carries the 日期
// column and returns it raw.
func extractDetailTable(html string) (pageTable, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return pageTable{}, false
	}

	var result pageTable
	found := false

	doc.Find("table").EachWithBreak(func(_ int, table *goquery.Selection) bool {
		if table.Find("table").Length() > 0 {
			return true
		}

		rows := tableRows(table)
		for i, row := range rows {
			headers := normalizeHeaders(row)
			if len(headers) > 0 && strings.Contains(headers[0], markerDate) {
				result = pageTable{
					headers: headers,
					rows:    rows[i+1:],
				}
				found = true
				return false
			}
		}
		return true
	})

	return result, found
}

// normalizeHeaders strips all whitespace from column headers.
func normalizeHeaders(headers []string) []string {
	out := make([]string, len(headers))
	for i, h := range headers {
		out[i] = strings.NewReplacer(" ", "", "　", "").Replace(strings.TrimSpace(h))
	}
	return out
}

// detailColumns maps the canonical columns to their cell indexes.
type detailColumns struct {
	date, buy, sell, net int
}

// resolveColumns reconciles the page schema to the canonical
// 日期/買進/賣出/買賣超 set. Pages missing the net column but carrying at
// least four columns use the first four positionally.
func resolveColumns(headers []string) (detailColumns, error) {
	idx := map[string]int{}
	for i, h := range headers {
		idx[h] = i
	}

	if _, hasNet := idx["買賣超"]; !hasNet {
		if len(headers) >= 4 {
			return detailColumns{date: 0, buy: 1, sell: 2, net: 3}, nil
		}
		return detailColumns{}, fmt.Errorf("detail table has %d columns, need 4", len(headers))
	}

	cols := detailColumns{date: -1, buy: -1, sell: -1, net: -1}
	if i, ok := idx["日期"]; ok {
		cols.date = i
	}
	if i, ok := idx["買進"]; ok {
		cols.buy = i
	}
	if i, ok := idx["賣出"]; ok {
		cols.sell = i
	}
	if i, ok := idx["買賣超"]; ok {
		cols.net = i
	}

	if cols.date < 0 || cols.buy < 0 || cols.sell < 0 || cols.net < 0 {
		return detailColumns{}, fmt.Errorf("detail table missing canonical columns: %v", headers)
	}

	return cols, nil
}

// consolidatePages concatenates all page tables, reconciles the schema,
// cleans the rows and returns them sorted ascending by normalized date.
func consolidatePages(pages []pageTable, now time.Time) ([]contracts.BranchDailyRecord, error) {
	if len(pages) == 0 {
		return nil, fmt.Errorf("no detail pages extracted")
	}

	cols, err := resolveColumns(pages[0].headers)
	if err != nil {
		return nil, err
	}

	var records []contracts.BranchDailyRecord
	for _, page := range pages {
		for _, row := range page.rows {
			maxIdx := cols.date
			for _, i := range []int{cols.buy, cols.sell, cols.net} {
				if i > maxIdx {
					maxIdx = i
				}
			}
			if len(row) <= maxIdx {
				continue
			}

			// Pagination re-emits the header as a data row.
			if strings.Contains(row[cols.date], markerDate) {
				continue
			}

			date, ok := NormalizeDate(row[cols.date], now)
			if !ok {
				continue
			}

			buy := cleanInt(row[cols.buy])
			sell := cleanInt(row[cols.sell])

			records = append(records, contracts.BranchDailyRecord{
				Date: date,
				Buy:  buy,
				Sell: sell,
				// The source's own net column is ignored.
				Net: buy - sell,
			})
		}
	}

	if len(records) == 0 {
		return nil, fmt.Errorf("no parsable detail rows")
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Date < records[j].Date
	})

	return records, nil
}
