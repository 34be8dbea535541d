package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/twchip/chipkline/pkg/config"
	"github.com/twchip/chipkline/pkg/httputil"
	"github.com/twchip/chipkline/pkg/logger"
)

// pollInterval is how often bounded waits re-check the page.
const pollInterval = 250 * time.Millisecond

// WebDriverFactory opens sessions against a chromedriver endpoint.
type WebDriverFactory struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	baseURL    string
}

// NewWebDriverFactory creates a factory for the configured endpoint.
func NewWebDriverFactory(cfg *config.Config, httpClient *httputil.Client, log *logger.Logger) *WebDriverFactory {
	return &WebDriverFactory{
		httpClient: httpClient,
		logger:     log,
		baseURL:    cfg.WebDriver.URL,
	}
}

// NewSession starts a headless Chrome session.
func (f *WebDriverFactory) NewSession(ctx context.Context) (Driver, error) {
	payload := map[string]interface{}{
		"capabilities": map[string]interface{}{
			"alwaysMatch": map[string]interface{}{
				"browserName": "chrome",
				"goog:chromeOptions": map[string]interface{}{
					"args": []string{
						"--headless=new",
						"--no-sandbox",
						"--disable-dev-shm-usage",
						"--disable-gpu",
						"--window-size=1920,1080",
					},
				},
			},
		},
	}

	var result struct {
		Value struct {
			SessionID string `json:"sessionId"`
		} `json:"value"`
	}

	if err := f.postJSON(ctx, f.baseURL+"/session", payload, &result); err != nil {
		return nil, fmt.Errorf("create webdriver session: %w", err)
	}
	if result.Value.SessionID == "" {
		return nil, fmt.Errorf("create webdriver session: empty session id")
	}

	f.logger.WithField("session_id", result.Value.SessionID).Debug("WebDriver session started")

	return &webDriverSession{
		factory:   f,
		sessionID: result.Value.SessionID,
	}, nil
}

func (f *WebDriverFactory) postJSON(ctx context.Context, url string, payload, dest interface{}) error {
	resp, err := f.httpClient.PostJSON(ctx, url, payload)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("webdriver error: status %d: %s", resp.StatusCode, body)
	}

	if dest != nil {
		if err := json.Unmarshal(body, dest); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}

	// Protocol-level errors (e.g. "no such element") come back as 4xx with
	// an error value; the caller decides whether that is fatal.
	if resp.StatusCode >= http.StatusBadRequest {
		return errNotFound
	}

	return nil
}

var errNotFound = fmt.Errorf("webdriver: not found")

// webDriverSession implements Driver over the wire protocol.
type webDriverSession struct {
	factory   *WebDriverFactory
	sessionID string
}

func (s *webDriverSession) url(path string) string {
	return fmt.Sprintf("%s/session/%s%s", s.factory.baseURL, s.sessionID, path)
}

// Navigate loads the given URL.
func (s *webDriverSession) Navigate(ctx context.Context, pageURL string) error {
	payload := map[string]string{"url": pageURL}
	if err := s.factory.postJSON(ctx, s.url("/url"), payload, nil); err != nil {
		return fmt.Errorf("navigate to %s: %w", pageURL, err)
	}
	return nil
}

// PageSource returns the current rendered markup.
func (s *webDriverSession) PageSource(ctx context.Context) (string, error) {
	resp, err := s.factory.httpClient.Get(ctx, s.url("/source"))
	if err != nil {
		return "", fmt.Errorf("get page source: %w", err)
	}
	defer resp.Body.Close()

	var result struct {
		Value string `json:"value"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode page source: %w", err)
	}

	return result.Value, nil
}

// WaitForText polls for an element containing the given text.
func (s *webDriverSession) WaitForText(ctx context.Context, text string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	xpath := fmt.Sprintf("//*[contains(text(), %s)]", xpathLiteral(text))

	for {
		if _, err := s.findElement(ctx, xpath); err == nil {
			return nil
		}

		if time.Now().After(deadline) {
			return ErrWaitTimeout
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

// ClickLinkWithText clicks the first matching enabled anchor.
func (s *webDriverSession) ClickLinkWithText(ctx context.Context, text string) (bool, error) {
	xpath := fmt.Sprintf("//a[contains(text(), %s)]", xpathLiteral(text))

	elementID, err := s.findElement(ctx, xpath)
	if err != nil {
		return false, nil
	}

	enabled, err := s.elementEnabled(ctx, elementID)
	if err != nil || !enabled {
		return false, nil
	}

	if err := s.factory.postJSON(ctx, s.url("/element/"+elementID+"/click"), map[string]string{}, nil); err != nil {
		return false, fmt.Errorf("click link: %w", err)
	}

	return true, nil
}

// Quit tears down the session.
func (s *webDriverSession) Quit(ctx context.Context) error {
	resp, err := s.factory.httpClient.Delete(ctx, s.url(""))
	if err != nil {
		return fmt.Errorf("quit session: %w", err)
	}
	resp.Body.Close()

	s.factory.logger.WithField("session_id", s.sessionID).Debug("WebDriver session closed")
	return nil
}

func (s *webDriverSession) findElement(ctx context.Context, xpath string) (string, error) {
	payload := map[string]string{
		"using": "xpath",
		"value": xpath,
	}

	var result struct {
		Value map[string]string `json:"value"`
	}
	if err := s.factory.postJSON(ctx, s.url("/element"), payload, &result); err != nil {
		return "", err
	}

	// The element reference key is the W3C ELEMENT constant; tolerate the
	// legacy key as chromedriver has shipped both.
	for _, key := range []string{"element-6066-11e4-a52e-4f735466cecf", "ELEMENT"} {
		if id, ok := result.Value[key]; ok && id != "" {
			return id, nil
		}
	}

	return "", errNotFound
}

func (s *webDriverSession) elementEnabled(ctx context.Context, elementID string) (bool, error) {
	resp, err := s.factory.httpClient.Get(ctx, s.url("/element/"+elementID+"/enabled"))
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	var result struct {
		Value bool `json:"value"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return false, err
	}

	return result.Value, nil
}

// xpathLiteral quotes a string for use inside an XPath expression. XPath 1.0
// has no escape syntax, so strings containing both quote kinds need concat().
func xpathLiteral(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}

	out := "concat("
	for i, part := range strings.Split(s, "'") {
		if i > 0 {
			out += `, "'", `
		}
		out += "'" + part + "'"
	}
	return out + ")"
}
