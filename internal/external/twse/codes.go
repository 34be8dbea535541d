// Package twse resolves stock IDs to company names via the TWSE open API.
package twse

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/twchip/chipkline/pkg/config"
	"github.com/twchip/chipkline/pkg/httputil"
	"github.com/twchip/chipkline/pkg/logger"
)

// listedCompaniesPath is the open-data dataset of TWSE-listed companies.
const listedCompaniesPath = "/opendata/t187ap03_L"

// listedCompany is one row of the t187ap03_L dataset. Field names are the
// dataset's own Chinese column headers.
type listedCompany struct {
	Code      string `json:"公司代號"`
	ShortName string `json:"公司簡稱"`
	FullName  string `json:"公司名稱"`
}

// Client resolves company names, caching the full listing in memory.
type Client struct {
	http    *httputil.Client
	baseURL string
	logger  *logger.Logger

	mu    sync.RWMutex
	names map[string]string
}

// NewClient creates a TWSE open API client.
func NewClient(cfg *config.Config, log *logger.Logger) *Client {
	return &Client{
		http:    httputil.New(log),
		baseURL: cfg.TWSE.BaseURL,
		logger:  log,
		names:   make(map[string]string),
	}
}

// CompanyName returns the short name for a stock ID, or "" when unknown.
// The listing is fetched once and served from memory afterwards.
func (c *Client) CompanyName(ctx context.Context, stockID string) string {
	c.mu.RLock()
	loaded := len(c.names) > 0
	name := c.names[stockID]
	c.mu.RUnlock()

	if loaded {
		return name
	}

	if err := c.Refresh(ctx); err != nil {
		c.logger.WithError(err).Warn("Company listing fetch failed")
		return ""
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.names[stockID]
}

// Refresh re-fetches the listed-company dataset and replaces the cache.
func (c *Client) Refresh(ctx context.Context) error {
	body, err := c.http.GetBody(ctx, c.baseURL+listedCompaniesPath)
	if err != nil {
		return fmt.Errorf("fetch listed companies: %w", err)
	}

	var companies []listedCompany
	if err := json.Unmarshal([]byte(body), &companies); err != nil {
		return fmt.Errorf("decode listed companies: %w", err)
	}

	names := make(map[string]string, len(companies))
	for _, co := range companies {
		if co.Code == "" {
			continue
		}
		name := co.ShortName
		if name == "" {
			name = co.FullName
		}
		names[co.Code] = name
	}

	c.mu.Lock()
	c.names = names
	c.mu.Unlock()

	c.logger.WithField("companies", len(names)).Debug("Refreshed company listing")
	return nil
}

// Count returns the number of cached companies.
func (c *Client) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.names)
}
