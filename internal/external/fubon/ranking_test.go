package fubon

import (
	"testing"
)

// sampleRankingHTML mimics the rendered ranking page: the data table is a
// leaf table nested inside layout tables, with the header row, data rows
// split into buy/sell column groups, summary rows and detail-page links.
const sampleRankingHTML = `
<html><body>
<table><tr><td>
<table>
  <tr><td colspan="10">主力進出排行</td></tr>
  <tr>
    <td>買超券商</td><td>買進</td><td>賣出</td><td>買賣超</td><td>佔成交量%</td>
    <td>賣超券商</td><td>買進</td><td>賣出</td><td>買賣超</td><td>佔成交量%</td>
  </tr>
  <tr>
    <td><a href="zco0/zco0.djhtm?A=2313&BHID=9200&b=9217&C=1">凱基台北</a></td>
    <td>+1,234</td><td>200</td><td>+1,034</td><td>3.2%</td>
    <td><a href="zco0/zco0.djhtm?A=2313&BHID=5850&b=5854&C=1">永豐金　板橋</a></td>
    <td>150</td><td>2,150</td><td>-2,000</td><td>6.1%</td>
  </tr>
  <tr>
    <td><a href="zco0/zco0.djhtm?A=2313&BHID=9800&b=9802&C=1">富邦建國</a></td>
    <td>2,500</td><td>100</td><td>+2,400</td><td>7.4%</td>
    <td><a href="zco0/zco0.djhtm?A=2313&BHID=1160&b=116P&C=1">日盛嘉義</a></td>
    <td>80</td><td>580</td><td>-500</td><td>1.5%</td>
  </tr>
  <tr>
    <td>元大忠孝</td>
    <td>900</td><td>1,000</td><td>-100</td><td>0.3%</td>
    <td>統一高雄</td>
    <td>60</td><td>960</td><td>-900</td><td>2.8%</td>
  </tr>
  <tr><td></td><td>12</td><td>34</td><td>-22</td><td>0.1%</td><td></td><td>1</td><td>2</td><td>-1</td><td>0.0%</td></tr>
  <tr><td>合計買超張數</td><td>3,434</td><td>合計賣超張數</td><td>3,400</td></tr>
  <tr><td>平均買超成本</td><td>45.67</td><td>平均賣超成本</td><td>45.12</td></tr>
</table>
</td></tr></table>
</body></html>`

func TestParseRanking(t *testing.T) {
	result, err := ParseRanking(sampleRankingHTML, LabelSummaryLocator{})
	if err != nil {
		t.Fatalf("ParseRanking failed: %v", err)
	}

	// Buy side: net>0 only, sorted descending. 元大忠孝 (net -100) dropped.
	if len(result.Buyers) != 2 {
		t.Fatalf("got %d buyers, want 2", len(result.Buyers))
	}
	if result.Buyers[0].BranchName != "富邦建國" || result.Buyers[0].NetVolume != 2400 {
		t.Errorf("top buyer = %+v, want 富邦建國/2400", result.Buyers[0])
	}
	if result.Buyers[1].BuyVolume != 1234 {
		t.Errorf("buy volume = %d, want 1234 (separators and + stripped)", result.Buyers[1].BuyVolume)
	}
	for i := 1; i < len(result.Buyers); i++ {
		if result.Buyers[i].NetVolume > result.Buyers[i-1].NetVolume {
			t.Error("buyers not sorted descending by net")
		}
	}

	// Sell side: by |net| descending, sign preserved.
	if len(result.Sellers) != 3 {
		t.Fatalf("got %d sellers, want 3", len(result.Sellers))
	}
	if result.Sellers[0].BranchName != "永豐金　板橋" || result.Sellers[0].NetVolume != -2000 {
		t.Errorf("top seller = %+v, want 永豐金板橋/-2000", result.Sellers[0])
	}
	if result.Sellers[1].NetVolume != -900 {
		t.Errorf("second seller net = %d, want -900", result.Sellers[1].NetVolume)
	}

	// Summary comes from the labeled rows.
	if result.BuySummary.Total != "3,434" || result.BuySummary.Avg != "45.67" {
		t.Errorf("buy summary = %+v", result.BuySummary)
	}
	if result.SellSummary.Total != "3,400" || result.SellSummary.Avg != "45.12" {
		t.Errorf("sell summary = %+v", result.SellSummary)
	}

	// Identities keyed by normalized name; full-width space stripped.
	if len(result.Identities) != 4 {
		t.Fatalf("got %d identities, want 4", len(result.Identities))
	}
	id, ok := result.Identities["永豐金板橋"]
	if !ok {
		t.Fatal("identity for 永豐金板橋 missing")
	}
	if id.BranchID != "5854" || id.HashID != "5850" || id.Category != "1" {
		t.Errorf("identity = %+v", id)
	}
}

func TestParseRankingNoHeader(t *testing.T) {
	html := `<html><body><table><tr><td>買超券商</td></tr></table></body></html>`

	_, err := ParseRanking(html, LabelSummaryLocator{})
	if err == nil {
		t.Error("expected error when header row lacks both side labels")
	}
}

func TestParseRankingTruncatesToTop15(t *testing.T) {
	html := `<html><body><table>
	<tr><td>買超券商</td><td>買進</td><td>賣出</td><td>買賣超</td><td>%</td>
	<td>賣超券商</td><td>買進</td><td>賣出</td><td>買賣超</td><td>%</td></tr>`
	for i := 0; i < 20; i++ {
		html += `<tr><td>買方` + string(rune('A'+i)) + `</td><td>100</td><td>0</td><td>100</td><td>1%</td>` +
			`<td>賣方` + string(rune('A'+i)) + `</td><td>0</td><td>100</td><td>-100</td><td>1%</td></tr>`
	}
	html += `</table></body></html>`

	result, err := ParseRanking(html, LabelSummaryLocator{})
	if err != nil {
		t.Fatalf("ParseRanking failed: %v", err)
	}

	if len(result.Buyers) != topRankRows {
		t.Errorf("buyers = %d, want %d", len(result.Buyers), topRankRows)
	}
	if len(result.Sellers) != topRankRows {
		t.Errorf("sellers = %d, want %d", len(result.Sellers), topRankRows)
	}
}

func TestCleanInt(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"+1,234", 1234},
		{"-567", -567},
		{"-1,234,567", -1234567},
		{"0", 0},
		{"nan", 0},
		{"", 0},
		{"-", 0},
		{"  42 ", 42},
		{"abc", 0},
	}

	for _, tt := range tests {
		if got := cleanInt(tt.in); got != tt.want {
			t.Errorf("cleanInt(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{" 凱基 台北 ", "凱基台北"},
		{"永豐金　板橋", "永豐金板橋"},
		{"富邦", "富邦"},
	}

	for _, tt := range tests {
		if got := NormalizeName(tt.in); got != tt.want {
			t.Errorf("NormalizeName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPositionalSummaryLocatorShortTable(t *testing.T) {
	rows := [][]string{{"只有一列"}}

	buy, sell := PositionalSummaryLocator{}.Locate(rows)
	if buy.Total != "0" || sell.Total != "0" {
		t.Errorf("short table should yield placeholders, got %+v %+v", buy, sell)
	}
}
