package twse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/twchip/chipkline/pkg/config"
	"github.com/twchip/chipkline/pkg/logger"
)

const sampleListing = `[
  {"公司代號":"2330","公司簡稱":"台積電","公司名稱":"台灣積體電路製造股份有限公司"},
  {"公司代號":"2317","公司簡稱":"鴻海","公司名稱":"鴻海精密工業股份有限公司"},
  {"公司代號":"9999","公司簡稱":"","公司名稱":"無簡稱股份有限公司"},
  {"公司代號":"","公司簡稱":"孤兒列"}
]`

func testClient(baseURL string) *Client {
	cfg := &config.Config{}
	cfg.TWSE.BaseURL = baseURL
	return NewClient(cfg, logger.Nop())
}

func TestCompanyName(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != listedCompaniesPath {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		atomic.AddInt32(&hits, 1)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(sampleListing))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	ctx := context.Background()

	if got := c.CompanyName(ctx, "2330"); got != "台積電" {
		t.Errorf("CompanyName(2330) = %q, want 台積電", got)
	}

	// Served from memory after the first fetch.
	if got := c.CompanyName(ctx, "2317"); got != "鴻海" {
		t.Errorf("CompanyName(2317) = %q, want 鴻海", got)
	}
	if got := atomic.LoadInt32(&hits); got != 1 {
		t.Errorf("dataset fetched %d times, want 1", got)
	}

	// Short name missing falls back to the full name.
	if got := c.CompanyName(ctx, "9999"); got != "無簡稱股份有限公司" {
		t.Errorf("CompanyName(9999) = %q", got)
	}

	// Rows without a code are skipped: 3 usable entries.
	if c.Count() != 3 {
		t.Errorf("Count() = %d, want 3", c.Count())
	}

	if got := c.CompanyName(ctx, "0000"); got != "" {
		t.Errorf("CompanyName(0000) = %q, want empty", got)
	}
}

func TestCompanyNameFetchFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	if got := c.CompanyName(context.Background(), "2330"); got != "" {
		t.Errorf("CompanyName on failure = %q, want empty", got)
	}
}

func TestRefreshReplacesCache(t *testing.T) {
	payload := `[{"公司代號":"1101","公司簡稱":"台泥"}]`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(payload))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	ctx := context.Background()
	if err := c.Refresh(ctx); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if got := c.CompanyName(ctx, "1101"); got != "台泥" {
		t.Errorf("CompanyName(1101) = %q", got)
	}

	payload = `[{"公司代號":"1102","公司簡稱":"亞泥"}]`
	if err := c.Refresh(ctx); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if got := c.CompanyName(ctx, "1101"); got != "" {
		t.Errorf("stale entry survived refresh: %q", got)
	}
	if got := c.CompanyName(ctx, "1102"); got != "亞泥" {
		t.Errorf("CompanyName(1102) = %q", got)
	}
}
