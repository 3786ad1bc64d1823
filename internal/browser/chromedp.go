// internal/browser/chromedp.go
package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
)

// DefaultActionTimeout bounds element-level operations that have no explicit timeout
const DefaultActionTimeout = 10 * time.Second

const (
	innerTextJS       = `function() { return this.innerText || this.textContent || ""; }`
	clickJS           = `function() { this.click(); return true; }`
	attributeValuesJS = `function() {
	const out = [];
	const all = [this, ...this.querySelectorAll('*')];
	for (const el of all) {
		for (const attr of el.attributes) { out.push(attr.value); }
	}
	return out;
}`
)

// ChromeLauncher launches sessions backed by a local Chrome through chromedp
type ChromeLauncher struct{}

// NewChromeLauncher creates a launcher
func NewChromeLauncher() *ChromeLauncher {
	return &ChromeLauncher{}
}

// Launch starts Chrome and returns the session that owns it
func (l *ChromeLauncher) Launch(ctx context.Context, config *BrowserConfig) (Session, error) {
	return NewChromeSession(ctx, config)
}

// ChromeSession implements Session using chromedp
type ChromeSession struct {
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	config        *BrowserConfig
	stats         *BrowserStats
	statsMu       sync.Mutex
	closeOnce     sync.Once
}

// NewChromeSession starts a browser with the given configuration
func NewChromeSession(ctx context.Context, config *BrowserConfig) (*ChromeSession, error) {
	if config == nil {
		config = DefaultBrowserConfig()
	}

	opts := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.DisableGPU,
		chromedp.NoSandbox, // Required for Docker environments
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("enable-automation", false),
		chromedp.WindowSize(config.ViewportWidth, config.ViewportHeight),
	}

	if config.Headless {
		opts = append(opts, chromedp.Headless)
	}
	if config.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(config.ExecPath))
	}
	if config.UserDataDir != "" {
		opts = append(opts, chromedp.UserDataDir(config.UserDataDir))
	}
	if config.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(config.UserAgent))
	}
	if config.DisableImages {
		opts = append(opts, chromedp.Flag("blink-settings", "imagesEnabled=false"))
	}

	// The browser lives until Close, not until the caller's ctx ends
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	s := &ChromeSession{
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		config:        config,
		stats:         &BrowserStats{},
	}

	startCtx, cancel := context.WithTimeout(browserCtx, config.Timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(startCtx); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	return s, nil
}

// NewPage opens a new tab and applies the init script once
func (s *ChromeSession) NewPage(ctx context.Context) (Page, error) {
	tabCtx, tabCancel := chromedp.NewContext(s.browserCtx)

	p := &ChromePage{
		ctx:     tabCtx,
		cancel:  tabCancel,
		session: s,
	}

	setup := []chromedp.Action{
		chromedp.EmulateViewport(int64(s.config.ViewportWidth), int64(s.config.ViewportHeight)),
	}
	if s.config.InitScript != "" {
		script := s.config.InitScript
		setup = append(setup, chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(script).Do(ctx)
			return err
		}))
	}

	runCtx, cancel := p.runContext(ctx, s.config.Timeout)
	defer cancel()
	if err := chromedp.Run(runCtx, setup...); err != nil {
		tabCancel()
		s.recordError()
		return nil, fmt.Errorf("failed to open page: %w", err)
	}

	s.statsMu.Lock()
	s.stats.PagesOpened++
	s.statsMu.Unlock()

	return p, nil
}

// GetStats returns a copy of the browser statistics
func (s *ChromeSession) GetStats() BrowserStats {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	return *s.stats
}

func (s *ChromeSession) recordError() {
	s.statsMu.Lock()
	s.stats.Errors++
	s.statsMu.Unlock()
}

func (s *ChromeSession) recordTimeout() {
	s.statsMu.Lock()
	s.stats.TimeoutsOccurred++
	s.statsMu.Unlock()
}

func (s *ChromeSession) recordLoad(loadTime time.Duration) {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	s.stats.PagesLoaded++
	if s.stats.PagesLoaded == 1 {
		s.stats.AverageLoadTime = loadTime
	} else {
		s.stats.AverageLoadTime = (s.stats.AverageLoadTime + loadTime) / 2
	}
}

// Close closes the browser
func (s *ChromeSession) Close() error {
	s.closeOnce.Do(func() {
		if s.browserCancel != nil {
			s.browserCancel()
		}
		if s.allocCancel != nil {
			s.allocCancel()
		}
	})
	return nil
}

// ChromePage implements Page for one chromedp tab
type ChromePage struct {
	ctx       context.Context
	cancel    context.CancelFunc
	session   *ChromeSession
	closeOnce sync.Once
}

// runContext derives a context from the tab that also ends when ctx ends
func (p *ChromePage) runContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	var runCtx context.Context
	var cancel context.CancelFunc
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(p.ctx, timeout)
	} else {
		runCtx, cancel = context.WithCancel(p.ctx)
	}
	stop := context.AfterFunc(ctx, cancel)
	return runCtx, func() {
		stop()
		cancel()
	}
}

func (p *ChromePage) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := p.runContext(ctx, timeout)
	defer cancel()
	err := chromedp.Run(runCtx, actions...)
	if err != nil && runCtx.Err() == context.DeadlineExceeded {
		p.session.recordTimeout()
	}
	return err
}

// Navigate navigates to a URL and waits for the body
func (p *ChromePage) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	start := time.Now()
	err := p.run(ctx, timeout, chromedp.Navigate(url), chromedp.WaitReady("body", chromedp.ByQuery))
	if err != nil {
		p.session.recordError()
		return fmt.Errorf("navigation failed: %w", err)
	}
	p.session.recordLoad(time.Since(start))
	return nil
}

// Reload reloads the current page and waits for the body
func (p *ChromePage) Reload(ctx context.Context, timeout time.Duration) error {
	start := time.Now()
	err := p.run(ctx, timeout, chromedp.Reload(), chromedp.WaitReady("body", chromedp.ByQuery))
	if err != nil {
		p.session.recordError()
		return fmt.Errorf("reload failed: %w", err)
	}
	p.session.recordLoad(time.Since(start))
	return nil
}

// Title returns the document title
func (p *ChromePage) Title(ctx context.Context) (string, error) {
	var title string
	if err := p.run(ctx, DefaultActionTimeout, chromedp.Title(&title)); err != nil {
		return "", fmt.Errorf("failed to read title: %w", err)
	}
	return title, nil
}

// URL returns the current location
func (p *ChromePage) URL(ctx context.Context) (string, error) {
	var location string
	if err := p.run(ctx, DefaultActionTimeout, chromedp.Location(&location)); err != nil {
		return "", fmt.Errorf("failed to read location: %w", err)
	}
	return location, nil
}

// WaitForSelector waits for an element to appear
func (p *ChromePage) WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error {
	if err := p.run(ctx, timeout, chromedp.WaitVisible(selector, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("element wait timeout: %w", err)
	}
	return nil
}

// QuerySelectorAll returns the nodes matching selector without waiting
func (p *ChromePage) QuerySelectorAll(ctx context.Context, selector string) ([]Element, error) {
	var nodes []*cdp.Node
	err := p.run(ctx, DefaultActionTimeout,
		chromedp.Nodes(selector, &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0)))
	if err != nil {
		return nil, fmt.Errorf("query %q failed: %w", selector, err)
	}
	return p.wrap(nodes), nil
}

func (p *ChromePage) wrap(nodes []*cdp.Node) []Element {
	elements := make([]Element, 0, len(nodes))
	for _, node := range nodes {
		elements = append(elements, &ChromeElement{page: p, node: node})
	}
	return elements
}

// Evaluate runs JavaScript code
func (p *ChromePage) Evaluate(ctx context.Context, script string, out interface{}) error {
	if err := p.run(ctx, DefaultActionTimeout, chromedp.Evaluate(script, out)); err != nil {
		return fmt.Errorf("script execution failed: %w", err)
	}
	return nil
}

// HTML returns the current page HTML
func (p *ChromePage) HTML(ctx context.Context) (string, error) {
	var html string
	if err := p.run(ctx, DefaultActionTimeout, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("failed to get HTML: %w", err)
	}
	return html, nil
}

// Screenshot takes a screenshot of the page
func (p *ChromePage) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := p.run(ctx, p.session.config.Timeout, chromedp.FullScreenshot(&buf, 90)); err != nil {
		return nil, fmt.Errorf("screenshot failed: %w", err)
	}
	return buf, nil
}

// Close closes the tab
func (p *ChromePage) Close() error {
	p.closeOnce.Do(p.cancel)
	return nil
}

// ChromeElement implements Element over a cdp node snapshot
type ChromeElement struct {
	page *ChromePage
	node *cdp.Node
}

func (e *ChromeElement) callOnNode(ctx context.Context, function string, res interface{}) error {
	return e.page.run(ctx, DefaultActionTimeout, chromedp.ActionFunc(func(ctx context.Context) error {
		obj, err := dom.ResolveNode().WithNodeID(e.node.NodeID).Do(ctx)
		if err != nil {
			return fmt.Errorf("resolve node: %w", err)
		}
		defer runtime.ReleaseObject(obj.ObjectID).Do(ctx)

		return chromedp.CallFunctionOn(function, res,
			func(p *runtime.CallFunctionOnParams) *runtime.CallFunctionOnParams {
				return p.WithObjectID(obj.ObjectID)
			}).Do(ctx)
	}))
}

// Text returns the rendered text of the node
func (e *ChromeElement) Text(ctx context.Context) (string, error) {
	var text string
	if err := e.callOnNode(ctx, innerTextJS, &text); err != nil {
		return "", fmt.Errorf("failed to read text: %w", err)
	}
	return text, nil
}

// Attribute returns an attribute from the node snapshot
func (e *ChromeElement) Attribute(ctx context.Context, name string) (string, bool, error) {
	value, ok := e.node.Attribute(name)
	return value, ok, nil
}

// AttributeValues returns all attribute values in the node's subtree
func (e *ChromeElement) AttributeValues(ctx context.Context) ([]string, error) {
	var values []string
	if err := e.callOnNode(ctx, attributeValuesJS, &values); err != nil {
		return nil, fmt.Errorf("failed to read attributes: %w", err)
	}
	return values, nil
}

// QuerySelector returns the first matching descendant
func (e *ChromeElement) QuerySelector(ctx context.Context, selector string) (Element, error) {
	elements, err := e.QuerySelectorAll(ctx, selector)
	if err != nil {
		return nil, err
	}
	if len(elements) == 0 {
		return nil, ErrNoNode
	}
	return elements[0], nil
}

// QuerySelectorAll returns all matching descendants
func (e *ChromeElement) QuerySelectorAll(ctx context.Context, selector string) ([]Element, error) {
	var nodes []*cdp.Node
	err := e.page.run(ctx, DefaultActionTimeout,
		chromedp.Nodes(selector, &nodes, chromedp.ByQueryAll, chromedp.FromNode(e.node), chromedp.AtLeast(0)))
	if err != nil {
		return nil, fmt.Errorf("query %q failed: %w", selector, err)
	}
	return e.page.wrap(nodes), nil
}

// Click clicks the node through the DOM so off-screen toggles still fire
func (e *ChromeElement) Click(ctx context.Context) error {
	var ok bool
	if err := e.callOnNode(ctx, clickJS, &ok); err != nil {
		return fmt.Errorf("click failed: %w", err)
	}
	return nil
}
