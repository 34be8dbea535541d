// Package chip implements the broker-branch flow pipeline: resolving a
// trading-day window to calendar dates, matching branch identities, merging
// branch daily flow onto the price calendar, and orchestrating the per-query
// state machine.
package chip

import (
	"context"
	"time"

	"github.com/twchip/chipkline/internal/contracts"
	"github.com/twchip/chipkline/pkg/logger"
)

const (
	// The ranking site and the price provider disagree by one trading day
	// on windows of 120 days and up.
	longWindowThreshold = 120

	// Calendar-day buffer fetched to cover adjusted_N trading days.
	rangeBufferPad   = 60
	rangeBufferFloor = 200
)

// RangeSource supplies recent price history for date resolution.
type RangeSource interface {
	History(ctx context.Context, stockID string, days int) ([]contracts.PriceBar, error)
}

// RangeResolver converts a "last N trading days" request into a calendar
// (start, end) pair by consulting the price calendar.
type RangeResolver struct {
	source RangeSource
	logger *logger.Logger
	now    func() time.Time
}

// NewRangeResolver creates a resolver backed by the given price source.
func NewRangeResolver(source RangeSource, log *logger.Logger) *RangeResolver {
	return &RangeResolver{
		source: source,
		logger: log,
		now:    time.Now,
	}
}

// Resolve returns the calendar dates of the first and last of the last
// `days` trading days. Degraded is true when the price calendar was
// unavailable and the dates are naive calendar-day subtractions, which are
// an approximation of trading days, not an equivalent.
func (r *RangeResolver) Resolve(ctx context.Context, stockID string, days int) (start, end string, degraded bool) {
	adjusted := days
	if days >= longWindowThreshold {
		adjusted = days - 1
	}

	buffer := adjusted + rangeBufferPad
	if buffer < rangeBufferFloor {
		buffer = rangeBufferFloor
	}

	bars, err := r.source.History(ctx, stockID, buffer)
	if err != nil {
		r.logger.WithFields(map[string]interface{}{
			"stock_id": stockID,
			"error":    err.Error(),
		}).Warn("Range resolution degraded: price source fault")
		return r.calendarFallback(days, 1.0)
	}
	if len(bars) == 0 {
		r.logger.WithField("stock_id", stockID).Warn("Range resolution degraded: no price data")
		return r.calendarFallback(days, 1.5)
	}

	tail := bars
	if len(tail) > adjusted {
		tail = tail[len(tail)-adjusted:]
	}
	return tail[0].Date, tail[len(tail)-1].Date, false
}

// calendarFallback subtracts scaled calendar days from now.
func (r *RangeResolver) calendarFallback(days int, scale float64) (string, string, bool) {
	now := r.now()
	start := now.AddDate(0, 0, -int(float64(days)*scale))
	return start.Format("2006-01-02"), now.Format("2006-01-02"), true
}
