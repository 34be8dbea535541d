package fubon

import (
	"testing"
	"time"
)

func detailPage(rows [][]string) pageTable {
	return pageTable{
		headers: []string{"日期", "買進", "賣出", "買賣超"},
		rows:    rows,
	}
}

func TestConsolidatePages(t *testing.T) {
	now := time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC)

	pages := []pageTable{
		detailPage([][]string{
			{"113/12/31", "1,200", "+200", "999"}, // source net column lies; ignored
			{"12/30", "300", "500", "-200"},
		}),
		detailPage([][]string{
			{"日期", "買進", "賣出", "買賣超"}, // residual header row from pagination
			{"113/12/27", "50", "60", "-10"},
			{"garbage-date", "1", "2", "-1"},
		}),
	}

	records, err := consolidatePages(pages, now)
	if err != nil {
		t.Fatalf("consolidatePages failed: %v", err)
	}

	if len(records) != 3 {
		t.Fatalf("got %d records, want 3", len(records))
	}

	// Sorted ascending by normalized date.
	wantDates := []string{"2024-12-27", "2024-12-30", "2024-12-31"}
	for i, want := range wantDates {
		if records[i].Date != want {
			t.Errorf("records[%d].Date = %s, want %s", i, records[i].Date, want)
		}
	}

	// Net recomputed from buy−sell, not read from the page.
	last := records[2]
	if last.Buy != 1200 || last.Sell != 200 || last.Net != 1000 {
		t.Errorf("records[2] = %+v, want buy=1200 sell=200 net=1000", last)
	}
}

func TestConsolidatePagesSchemaFallback(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	// Net column header missing entirely: first four columns are taken
	// positionally as date/buy/sell/net.
	pages := []pageTable{{
		headers: []string{"日期", "欄A", "欄B", "欄C", "備註"},
		rows: [][]string{
			{"114/05/30", "100", "40", "x", "y"},
		},
	}}

	records, err := consolidatePages(pages, now)
	if err != nil {
		t.Fatalf("consolidatePages failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	if records[0].Date != "2025-05-30" || records[0].Net != 60 {
		t.Errorf("record = %+v", records[0])
	}
}

func TestConsolidatePagesIncompleteSchema(t *testing.T) {
	now := time.Now()

	pages := []pageTable{{
		headers: []string{"日期", "買進"},
		rows:    [][]string{{"113/01/02", "5"}},
	}}

	if _, err := consolidatePages(pages, now); err == nil {
		t.Error("expected error for table with fewer than 4 columns and no net header")
	}
}

func TestConsolidatePagesEmpty(t *testing.T) {
	if _, err := consolidatePages(nil, time.Now()); err == nil {
		t.Error("expected error when no pages were extracted")
	}

	pages := []pageTable{detailPage([][]string{{"bad", "1", "2", "3"}})}
	if _, err := consolidatePages(pages, time.Now()); err == nil {
		t.Error("expected error when no row parses")
	}
}

func TestExtractDetailTable(t *testing.T) {
	html := `
	<html><body>
	<table><tr><td>網頁外框 日期字樣</td></tr><tr><td>
	<table>
	  <tr><td> 日 期 </td><td>買進</td><td>賣出</td><td>買賣超</td></tr>
	  <tr><td>113/12/31</td><td>1,200</td><td>200</td><td>+1,000</td></tr>
	</table>
	</td></tr></table>
	</body></html>`

	tbl, ok := extractDetailTable(html)
	if !ok {
		t.Fatal("detail table not found")
	}

	if tbl.headers[0] != "日期" {
		t.Errorf("headers[0] = %q, want 日期 (whitespace stripped)", tbl.headers[0])
	}
	if len(tbl.rows) != 1 || tbl.rows[0][0] != "113/12/31" {
		t.Errorf("rows = %v", tbl.rows)
	}
}

func TestExtractDetailTableAbsent(t *testing.T) {
	if _, ok := extractDetailTable("<html><body><p>查無資料</p></body></html>"); ok {
		t.Error("expected no table in markup without one")
	}
}
