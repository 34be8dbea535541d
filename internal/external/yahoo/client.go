// Package yahoo fetches daily OHLC history from Yahoo Finance via the
// finance-go chart API. Taiwan listings resolve as "<id>.TW" with ".TWO"
// as the alternate venue suffix for TPEx-listed stocks.
package yahoo

import (
	"context"
	"fmt"
	"time"

	"github.com/piquette/finance-go/chart"
	"github.com/piquette/finance-go/datetime"
	"github.com/shopspring/decimal"

	"github.com/twchip/chipkline/internal/contracts"
	"github.com/twchip/chipkline/pkg/logger"
)

// Venue suffixes: TWSE main board first, TPEx on empty result.
const (
	suffixPrimary   = ".TW"
	suffixAlternate = ".TWO"
)

// lookbackDays is the fixed long price-history window (2 years).
const lookbackDays = 730

// maWindows are the simple-moving-average windows computed over close.
var maWindows = []int{5, 10, 20, 60}

// Provider fetches price history.
type Provider struct {
	logger *logger.Logger
	now    func() time.Time

	// fetchChart is swapped in tests.
	fetchChart func(ctx context.Context, symbol string, from, to time.Time) ([]contracts.PriceBar, error)
}

// NewProvider creates a price history provider.
func NewProvider(log *logger.Logger) *Provider {
	p := &Provider{
		logger: log,
		now:    time.Now,
	}
	p.fetchChart = p.yahooChart
	return p
}

// FetchDaily returns the full 2-year daily history for a stock, with moving
// averages attached. Any fault yields nil.
func (p *Provider) FetchDaily(ctx context.Context, stockID string) []contracts.PriceBar {
	return p.FetchRecent(ctx, stockID, lookbackDays)
}

// FetchRecent returns the last `days` calendar days of daily history. Any
// fault yields nil.
func (p *Provider) FetchRecent(ctx context.Context, stockID string, days int) []contracts.PriceBar {
	bars, err := p.History(ctx, stockID, days)
	if err != nil {
		p.logger.WithFields(map[string]interface{}{
			"stock_id": stockID,
			"error":    err.Error(),
		}).Warn("Price history fetch failed")
		return nil
	}
	if len(bars) == 0 {
		p.logger.WithField("stock_id", stockID).Warn("Price history empty on both venues")
		return nil
	}

	p.logger.WithFields(map[string]interface{}{
		"stock_id": stockID,
		"bars":     len(bars),
	}).Debug("Fetched price history")

	return bars
}

// History fetches daily bars without swallowing faults, so callers that
// need to distinguish "provider empty" from "provider broken" can. Moving
// averages are attached when any bars come back.
func (p *Provider) History(ctx context.Context, stockID string, days int) ([]contracts.PriceBar, error) {
	to := p.now()
	from := to.AddDate(0, 0, -days)

	bars, err := p.fetchChart(ctx, stockID+suffixPrimary, from, to)
	if err != nil || len(bars) == 0 {
		bars, err = p.fetchChart(ctx, stockID+suffixAlternate, from, to)
	}
	if err != nil {
		return nil, err
	}

	ComputeMovingAverages(bars)
	return bars, nil
}

// yahooChart reads daily bars from the Yahoo chart endpoint.
func (p *Provider) yahooChart(ctx context.Context, symbol string, from, to time.Time) ([]contracts.PriceBar, error) {
	params := &chart.Params{
		Symbol:   symbol,
		Start:    datetime.New(&from),
		End:      datetime.New(&to),
		Interval: datetime.OneDay,
	}

	iter := chart.Get(params)

	var bars []contracts.PriceBar
	for iter.Next() {
		select {
		case <-ctx.Done():
			return bars, ctx.Err()
		default:
		}

		b := iter.Bar()
		bars = append(bars, contracts.PriceBar{
			// Bar timestamps are exchange-local midnights; the date string
			// is the join key, so drop the timezone entirely.
			Date:   time.Unix(int64(b.Timestamp), 0).UTC().Format("2006-01-02"),
			Open:   toFloat(b.Open),
			High:   toFloat(b.High),
			Low:    toFloat(b.Low),
			Close:  toFloat(b.Close),
			Volume: int64(b.Volume),
		})
	}

	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("chart iteration for %s: %w", symbol, err)
	}

	return bars, nil
}

// toFloat truncates a chart decimal to float64; TWSE prices have at most
// two decimal places so the conversion is lossless in practice.
func toFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}

// ComputeMovingAverages fills the SMA columns in place. Bars are assumed
// sorted ascending by date. Early bars whose window is unfilled keep nil —
// an unfilled window is not a zero average.
func ComputeMovingAverages(bars []contracts.PriceBar) {
	for _, window := range maWindows {
		if len(bars) < window {
			continue
		}

		var sum float64
		for i := range bars {
			sum += bars[i].Close
			if i >= window {
				sum -= bars[i-window].Close
			}
			if i >= window-1 {
				avg := sum / float64(window)
				setMA(&bars[i], window, avg)
			}
		}
	}
}

func setMA(bar *contracts.PriceBar, window int, value float64) {
	v := value
	switch window {
	case 5:
		bar.MA5 = &v
	case 10:
		bar.MA10 = &v
	case 20:
		bar.MA20 = &v
	case 60:
		bar.MA60 = &v
	}
}
