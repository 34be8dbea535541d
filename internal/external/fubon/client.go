// Package fubon extracts brokerage-branch (分點) trading data from the
// Fubon e-broker ranking pages. The pages are rendered by scripts, so every
// fetch goes through a browser session; parsing is done with goquery over
// the rendered markup.
//
// Extractors are total functions: any failure — marker never rendered,
// unexpected table shape, driver fault — yields an empty result. Errors
// never cross the package boundary.
package fubon

import (
	"context"
	"fmt"
	"time"

	"github.com/twchip/chipkline/internal/browser"
	"github.com/twchip/chipkline/internal/contracts"
	"github.com/twchip/chipkline/pkg/config"
	"github.com/twchip/chipkline/pkg/logger"
)

// Page markers. The ranking header carries both 買超券商 and 賣超券商; the
// branch detail table is recognized by its 日期 header.
const (
	markerBuyers  = "買超券商"
	markerSellers = "賣超券商"
	markerDate    = "日期"
	markerNext    = "下一頁"
)

// Client fetches and parses the ranking and branch detail pages.
type Client struct {
	factory        browser.Factory
	logger         *logger.Logger
	cfg            config.FubonConfig
	summaryLocator SummaryLocator
	now            func() time.Time
}

// NewClient creates a new Fubon client.
func NewClient(factory browser.Factory, cfg config.FubonConfig, log *logger.Logger) *Client {
	return &Client{
		factory:        factory,
		logger:         log,
		cfg:            cfg,
		summaryLocator: LabelSummaryLocator{},
		now:            time.Now,
	}
}

// WithSummaryLocator swaps the ranking summary location strategy.
func (c *Client) WithSummaryLocator(loc SummaryLocator) *Client {
	c.summaryLocator = loc
	return c
}

// RankingURL builds the ranking page URL for a stock and date range.
func (c *Client) RankingURL(stockID, startDate, endDate string) string {
	return fmt.Sprintf("%s/z/zc/zco/zco.djhtm?a=%s&e=%s&f=%s",
		c.cfg.BaseURL, stockID, startDate, endDate)
}

// BranchDetailURL builds the per-branch detail page URL.
func (c *Client) BranchDetailURL(stockID string, id contracts.BranchIdentity, startDate, endDate string) string {
	category := id.Category
	if category == "" {
		category = "1"
	}
	return fmt.Sprintf("%s/z/zc/zco/zco0/zco0.djhtm?A=%s&BHID=%s&b=%s&C=%s&D=%s&E=%s&ver=V3",
		c.cfg.BaseURL, stockID, id.HashID, id.BranchID, category, startDate, endDate)
}

// session runs fn inside a fresh browser session. The session is released
// on every exit path, including panics inside fn.
func (c *Client) session(ctx context.Context, fn func(drv browser.Driver)) error {
	drv, err := c.factory.NewSession(ctx)
	if err != nil {
		return fmt.Errorf("acquire browser session: %w", err)
	}

	defer func() {
		// Teardown must run even when ctx is already cancelled.
		quitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := drv.Quit(quitCtx); err != nil {
			c.logger.WithError(err).Warn("Browser session teardown failed")
		}
	}()

	fn(drv)
	return nil
}
