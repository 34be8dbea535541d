package chip

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/twchip/chipkline/internal/contracts"
	"github.com/twchip/chipkline/pkg/logger"
)

type stubRangeSource struct {
	bars    []contracts.PriceBar
	err     error
	gotDays int
}

func (s *stubRangeSource) History(_ context.Context, _ string, days int) ([]contracts.PriceBar, error) {
	s.gotDays = days
	return s.bars, s.err
}

func barsFrom(base time.Time, n int) []contracts.PriceBar {
	bars := make([]contracts.PriceBar, n)
	for i := range bars {
		bars[i] = contracts.PriceBar{Date: base.AddDate(0, 0, i).Format("2006-01-02"), Close: 100}
	}
	return bars
}

func fixedResolver(src RangeSource) *RangeResolver {
	r := NewRangeResolver(src, logger.Nop())
	r.now = func() time.Time { return time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC) }
	return r
}

func TestResolveTakesTailTradingDays(t *testing.T) {
	src := &stubRangeSource{bars: barsFrom(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), 250)}
	r := fixedResolver(src)

	start, end, degraded := r.Resolve(context.Background(), "2330", 20)
	if degraded {
		t.Fatal("should not be degraded")
	}
	// Tail of 20 bars out of 250 starting 2024-06-01.
	if start != "2025-01-17" || end != "2025-02-05" {
		t.Errorf("range = [%s, %s]", start, end)
	}
	// Buffer floor applies for short windows: 20+60 < 200.
	if src.gotDays != 200 {
		t.Errorf("buffer days = %d, want 200", src.gotDays)
	}
}

func TestResolveLongWindowAdjustment(t *testing.T) {
	src := &stubRangeSource{bars: barsFrom(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), 300)}
	r := fixedResolver(src)

	start, _, _ := r.Resolve(context.Background(), "2330", 120)
	// 120 adjusts to 119 trading days: tail starts at index 300-119=181.
	want := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, 181).Format("2006-01-02")
	if start != want {
		t.Errorf("start = %s, want %s", start, want)
	}
	// Buffer is adjusted_N + pad = 179, below floor.
	if src.gotDays != 200 {
		t.Errorf("buffer days = %d, want 200", src.gotDays)
	}

	src.bars = barsFrom(time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), 400)
	r.Resolve(context.Background(), "2330", 240)
	if src.gotDays != 299 {
		t.Errorf("buffer days = %d, want 299 (239+60)", src.gotDays)
	}
}

func TestResolveShortSeriesKeepsAll(t *testing.T) {
	src := &stubRangeSource{bars: barsFrom(time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC), 5)}
	r := fixedResolver(src)

	start, end, degraded := r.Resolve(context.Background(), "2330", 60)
	if degraded {
		t.Fatal("should not be degraded")
	}
	if start != "2025-01-02" || end != "2025-01-06" {
		t.Errorf("range = [%s, %s]", start, end)
	}
}

func TestResolveEmptyFallsBackScaled(t *testing.T) {
	r := fixedResolver(&stubRangeSource{})

	start, end, degraded := r.Resolve(context.Background(), "2330", 40)
	if !degraded {
		t.Fatal("expected degraded mode")
	}
	// 40 × 1.5 = 60 calendar days back from 2025-01-10.
	if start != "2024-11-11" || end != "2025-01-10" {
		t.Errorf("range = [%s, %s]", start, end)
	}
}

func TestResolveFaultFallsBackPlain(t *testing.T) {
	r := fixedResolver(&stubRangeSource{err: errors.New("connection refused")})

	start, end, degraded := r.Resolve(context.Background(), "2330", 40)
	if !degraded {
		t.Fatal("expected degraded mode")
	}
	if start != "2024-12-01" || end != "2025-01-10" {
		t.Errorf("range = [%s, %s]", start, end)
	}
}
