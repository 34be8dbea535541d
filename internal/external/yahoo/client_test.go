package yahoo

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/twchip/chipkline/internal/contracts"
	"github.com/twchip/chipkline/pkg/logger"
)

func syntheticBars(n int) []contracts.PriceBar {
	bars := make([]contracts.PriceBar, n)
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range bars {
		bars[i] = contracts.PriceBar{
			Date:   base.AddDate(0, 0, i).Format("2006-01-02"),
			Close:  float64(i + 1),
			Volume: 1000,
		}
	}
	return bars
}

func TestComputeMovingAverages(t *testing.T) {
	bars := syntheticBars(25)
	ComputeMovingAverages(bars)

	// Window unfilled: first 4 bars have no MA5.
	for i := 0; i < 4; i++ {
		if bars[i].MA5 != nil {
			t.Errorf("bar %d: MA5 should be nil while window unfilled, got %v", i, *bars[i].MA5)
		}
	}

	// Closes are 1..25, so MA5 at index 4 is mean(1..5) = 3.
	if bars[4].MA5 == nil || *bars[4].MA5 != 3 {
		t.Errorf("bar 4: MA5 = %v, want 3", bars[4].MA5)
	}
	if bars[24].MA5 == nil || *bars[24].MA5 != 23 {
		t.Errorf("bar 24: MA5 = %v, want 23", bars[24].MA5)
	}

	// MA20 at index 19 is mean(1..20) = 10.5.
	if bars[19].MA20 == nil || *bars[19].MA20 != 10.5 {
		t.Errorf("bar 19: MA20 = %v, want 10.5", bars[19].MA20)
	}
	if bars[18].MA20 != nil {
		t.Errorf("bar 18: MA20 should be nil")
	}

	// Only 25 bars: MA60 never fills.
	for i := range bars {
		if bars[i].MA60 != nil {
			t.Fatalf("bar %d: MA60 should be nil with only 25 bars", i)
		}
	}
}

func TestFetchRecentFallsBackToAlternateVenue(t *testing.T) {
	p := NewProvider(logger.Nop())
	p.now = func() time.Time { return time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC) }

	var symbols []string
	p.fetchChart = func(ctx context.Context, symbol string, from, to time.Time) ([]contracts.PriceBar, error) {
		symbols = append(symbols, symbol)
		if symbol == "6488.TW" {
			return nil, nil // empty on the main board
		}
		return syntheticBars(10), nil
	}

	bars := p.FetchRecent(context.Background(), "6488", 30)
	if len(bars) != 10 {
		t.Fatalf("got %d bars, want 10", len(bars))
	}
	if len(symbols) != 2 || symbols[0] != "6488.TW" || symbols[1] != "6488.TWO" {
		t.Errorf("symbols tried = %v, want [6488.TW 6488.TWO]", symbols)
	}
	if bars[9].MA5 == nil {
		t.Error("moving averages not computed on fetched bars")
	}
}

func TestFetchRecentFaultYieldsNil(t *testing.T) {
	p := NewProvider(logger.Nop())
	p.fetchChart = func(ctx context.Context, symbol string, from, to time.Time) ([]contracts.PriceBar, error) {
		return nil, errors.New("boom")
	}

	if bars := p.FetchRecent(context.Background(), "2330", 30); bars != nil {
		t.Errorf("got %d bars on fault, want nil", len(bars))
	}
}

func TestFetchRecentWindow(t *testing.T) {
	p := NewProvider(logger.Nop())
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return now }

	var gotFrom, gotTo time.Time
	p.fetchChart = func(ctx context.Context, symbol string, from, to time.Time) ([]contracts.PriceBar, error) {
		gotFrom, gotTo = from, to
		return syntheticBars(1), nil
	}

	p.FetchRecent(context.Background(), "2330", 200)
	if !gotTo.Equal(now) {
		t.Errorf("to = %v, want %v", gotTo, now)
	}
	if want := now.AddDate(0, 0, -200); !gotFrom.Equal(want) {
		t.Errorf("from = %v, want %v", gotFrom, want)
	}
}

func TestFetchDailyUsesTwoYearWindow(t *testing.T) {
	p := NewProvider(logger.Nop())
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return now }

	var gotFrom time.Time
	p.fetchChart = func(ctx context.Context, symbol string, from, to time.Time) ([]contracts.PriceBar, error) {
		gotFrom = from
		return syntheticBars(1), nil
	}

	p.FetchDaily(context.Background(), "2330")
	if want := now.AddDate(0, 0, -lookbackDays); !gotFrom.Equal(want) {
		t.Errorf("from = %v, want %v", gotFrom, want)
	}
}

func ExampleComputeMovingAverages() {
	bars := syntheticBars(5)
	ComputeMovingAverages(bars)
	fmt.Println(*bars[4].MA5)
	// Output: 3
}
