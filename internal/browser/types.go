// internal/browser/types.go
package browser

import (
	"context"
	"errors"
	"time"
)

// BrowserConfig defines browser automation configuration
type BrowserConfig struct {
	Headless       bool          `yaml:"headless" json:"headless"`
	ExecPath       string        `yaml:"exec_path,omitempty" json:"exec_path,omitempty"`
	UserDataDir    string        `yaml:"user_data_dir,omitempty" json:"user_data_dir,omitempty"`
	Timeout        time.Duration `yaml:"timeout" json:"timeout"`
	ViewportWidth  int           `yaml:"viewport_width" json:"viewport_width"`
	ViewportHeight int           `yaml:"viewport_height" json:"viewport_height"`
	UserAgent      string        `yaml:"user_agent,omitempty" json:"user_agent,omitempty"`
	DisableImages  bool          `yaml:"disable_images" json:"disable_images"`
	// InitScript runs in every page of the session before any site script
	InitScript string `yaml:"-" json:"-"`
}

// DefaultBrowserConfig returns default browser configuration
func DefaultBrowserConfig() *BrowserConfig {
	return &BrowserConfig{
		Headless:       true,
		Timeout:        30 * time.Second,
		ViewportWidth:  1366,
		ViewportHeight: 768,
		DisableImages:  true, // Faster loading
	}
}

// ErrNoNode is returned by Element.QuerySelector when nothing matches
var ErrNoNode = errors.New("no matching element")

// Launcher starts a browser session
type Launcher interface {
	Launch(ctx context.Context, config *BrowserConfig) (Session, error)
}

// Session owns one browser instance
type Session interface {
	// NewPage opens a tab with the session's init script applied
	NewPage(ctx context.Context) (Page, error)

	// Close shuts the browser down. Safe to call more than once.
	Close() error
}

// Page is one browser tab
type Page interface {
	// Navigate loads url and waits for the document body within timeout
	Navigate(ctx context.Context, url string, timeout time.Duration) error

	// Reload reloads the current document within timeout
	Reload(ctx context.Context, timeout time.Duration) error

	// Title returns the document title
	Title(ctx context.Context) (string, error)

	// URL returns the current location
	URL(ctx context.Context) (string, error)

	// WaitForSelector waits until selector matches a visible element
	WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error

	// QuerySelectorAll returns the elements matching selector right now.
	// Handles are only valid until the DOM changes; re-query instead of caching.
	QuerySelectorAll(ctx context.Context, selector string) ([]Element, error)

	// Evaluate runs a JavaScript expression and decodes its result into out
	Evaluate(ctx context.Context, script string, out interface{}) error

	// HTML returns the outer HTML of the document
	HTML(ctx context.Context) (string, error)

	// Screenshot captures the full page as PNG
	Screenshot(ctx context.Context) ([]byte, error)

	// Close closes the tab
	Close() error
}

// Element is a handle to a DOM node
type Element interface {
	// Text returns the rendered text of the element
	Text(ctx context.Context) (string, error)

	// Attribute returns the attribute value and whether it is present
	Attribute(ctx context.Context, name string) (string, bool, error)

	// AttributeValues returns every attribute value of the element and its descendants
	AttributeValues(ctx context.Context) ([]string, error)

	// QuerySelector returns the first descendant matching selector or ErrNoNode
	QuerySelector(ctx context.Context, selector string) (Element, error)

	// QuerySelectorAll returns every descendant matching selector
	QuerySelectorAll(ctx context.Context, selector string) ([]Element, error)

	// Click dispatches a mouse click on the element
	Click(ctx context.Context) error
}

// StatsReporter is implemented by sessions that keep load statistics
type StatsReporter interface {
	GetStats() BrowserStats
}

// BrowserStats contains browser automation statistics
type BrowserStats struct {
	PagesLoaded      int           `json:"pages_loaded"`
	AverageLoadTime  time.Duration `json:"average_load_time"`
	Errors           int           `json:"errors"`
	TimeoutsOccurred int           `json:"timeouts_occurred"`
	PagesOpened      int           `json:"pages_opened"`
}
