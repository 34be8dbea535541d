// Package browser provides the headless-browser capability the extractors
// depend on: navigate to a page, wait for rendered content, read the markup,
// click through pagination. The concrete implementation speaks the W3C
// WebDriver wire protocol against a chromedriver endpoint; extractor tests
// substitute a fake.
package browser

import (
	"context"
	"errors"
	"time"
)

// ErrWaitTimeout is returned when a bounded wait elapses without the target
// appearing. Callers treat it as "not found", never as a reason to retry.
var ErrWaitTimeout = errors.New("browser: wait timed out")

// Driver is one live browser session. Sessions are single-use: acquired at
// the start of an extractor invocation and released at the end, on every
// exit path. Leaking the underlying browser process is the dominant failure
// mode of this class of system, so Quit must always run.
type Driver interface {
	// Navigate loads the given URL.
	Navigate(ctx context.Context, url string) error

	// WaitForText blocks until an element containing the given text is
	// present, or the timeout elapses (ErrWaitTimeout).
	WaitForText(ctx context.Context, text string, timeout time.Duration) error

	// PageSource returns the current rendered markup.
	PageSource(ctx context.Context) (string, error)

	// ClickLinkWithText clicks the first anchor containing the given text.
	// Returns false when no such link exists or it is disabled.
	ClickLinkWithText(ctx context.Context, text string) (bool, error)

	// Quit tears down the session and its browser process.
	Quit(ctx context.Context) error
}

// Factory opens browser sessions.
type Factory interface {
	NewSession(ctx context.Context) (Driver, error)
}
