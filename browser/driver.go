// Package browser drives a web browser for page objects. Driver is the small
// set of primitives a browser must offer; every primitive answers right away
// and never waits for the page. Page builds the waiting helpers page objects
// use on top of a Driver.
package browser

import (
	"context"
	"errors"
)

// TabID identifies a browser tab.
type TabID string

// ErrNoDriver is returned by Page helpers when no Driver is attached.
var ErrNoDriver = errors.New("no browser driver attached to the page")

// Driver is implemented by Chrome and by test fakes. Selectors are CSS
// selectors evaluated inside the current frame of the current tab.
type Driver interface {
	// Navigate loads url in the current tab.
	Navigate(ctx context.Context, url string) error
	// URL returns the address of the current tab.
	URL(ctx context.Context) (string, error)
	// NewTab opens url in a new tab and makes it current.
	NewTab(ctx context.Context, url string) (TabID, error)
	// SwitchTab makes id the current tab.
	SwitchTab(ctx context.Context, id TabID) error
	// CurrentTab returns the current tab.
	CurrentTab(ctx context.Context) (TabID, error)
	// Tabs lists open tabs in opening order.
	Tabs(ctx context.Context) ([]TabID, error)
	// SwitchFrame scopes later queries to the document of the iframe
	// matching sel, relative to the current frame. An empty sel goes back to
	// the top-level document.
	SwitchFrame(ctx context.Context, sel string) error

	// Count returns the number of elements matching sel.
	Count(ctx context.Context, sel string) (int, error)
	// Displayed reports whether the first element matching sel is rendered.
	Displayed(ctx context.Context, sel string) (bool, error)
	// Enabled reports whether the first element matching sel is enabled.
	Enabled(ctx context.Context, sel string) (bool, error)
	Text(ctx context.Context, sel string) (string, error)
	Value(ctx context.Context, sel string) (string, error)
	// HTML returns the inner HTML of the first element matching sel.
	HTML(ctx context.Context, sel string) (string, error)

	Click(ctx context.Context, sel string) error
	// ClickAt clicks the element at zero-based position index among the
	// elements matching sel.
	ClickAt(ctx context.Context, sel string, index int) error
	// Fill replaces the value of an input then moves the focus away from it.
	Fill(ctx context.Context, sel, value string) error
	// SelectByText picks the option of a select element by its visible text.
	SelectByText(ctx context.Context, sel, text string) error

	// Screenshot captures the current tab as PNG.
	Screenshot(ctx context.Context) ([]byte, error)
	Close() error
}
