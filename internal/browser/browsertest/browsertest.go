// Package browsertest provides an in-memory browser backed by goquery for
// exercising navigation and extraction code without launching Chrome.
package browsertest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/valpere/LeadScrapexter/internal/browser"
)

// RevealAttr marks an element whose click appends the attribute's HTML to it
const RevealAttr = "data-test-reveal"

// ErrNotFound is returned when navigating to a URL that has no registered page
var ErrNotFound = errors.New("net::ERR_NAME_NOT_RESOLVED")

// Browser is a fake Launcher and Session serving registered HTML by URL
type Browser struct {
	mu        sync.Mutex
	pages     map[string]string
	opened    []*Page
	closed    bool
	launches  int
	LaunchErr error
}

// NewBrowser creates an empty fake browser
func NewBrowser() *Browser {
	return &Browser{pages: make(map[string]string)}
}

// AddPage registers or replaces the HTML served for url
func (b *Browser) AddPage(url, html string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pages[url] = html
}

func (b *Browser) lookup(url string) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	html, ok := b.pages[url]
	return html, ok
}

// Launch implements browser.Launcher
func (b *Browser) Launch(ctx context.Context, config *browser.BrowserConfig) (browser.Session, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.LaunchErr != nil {
		return nil, b.LaunchErr
	}
	b.launches++
	b.closed = false
	return b, nil
}

// NewPage implements browser.Session
func (b *Browser) NewPage(ctx context.Context) (browser.Page, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, errors.New("browser is closed")
	}
	p := NewPage("")
	p.browser = b
	b.opened = append(b.opened, p)
	return p, nil
}

// Close implements browser.Session
func (b *Browser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

// Closed reports whether Close was called after the last launch
func (b *Browser) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// PagesOpened returns how many pages were opened in total
func (b *Browser) PagesOpened() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.opened)
}

// OpenPages returns how many pages are still open
func (b *Browser) OpenPages() int {
	b.mu.Lock()
	pages := append([]*Page(nil), b.opened...)
	b.mu.Unlock()

	open := 0
	for _, p := range pages {
		if !p.IsClosed() {
			open++
		}
	}
	return open
}

// Page is a fake browser.Page. Hooks run before the default behaviour and
// may replace content through the owning Browser or SetHTML.
type Page struct {
	mu          sync.Mutex
	browser     *Browser
	url         string
	doc         *goquery.Document
	closed      bool
	navigations int
	reloads     int
	clicks      int

	OnNavigate func(url string, timeout time.Duration) error
	OnReload   func(timeout time.Duration) error
	OnEvaluate func(script string, out interface{}) error
}

// NewPage creates a standalone page showing html
func NewPage(html string) *Page {
	p := &Page{}
	p.SetHTML(html)
	return p
}

// SetHTML replaces the current document
func (p *Page) SetHTML(html string) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		doc, _ = goquery.NewDocumentFromReader(strings.NewReader(""))
	}
	p.mu.Lock()
	p.doc = doc
	p.mu.Unlock()
}

// Navigate implements browser.Page
func (p *Page) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	p.navigations++
	hook := p.OnNavigate
	p.mu.Unlock()

	if hook != nil {
		if err := hook(url, timeout); err != nil {
			return err
		}
	}

	if p.browser != nil {
		html, ok := p.browser.lookup(url)
		if !ok {
			return fmt.Errorf("navigate %s: %w", url, ErrNotFound)
		}
		p.SetHTML(html)
	}

	p.mu.Lock()
	p.url = url
	p.mu.Unlock()
	return nil
}

// Reload implements browser.Page by re-reading the registered HTML
func (p *Page) Reload(ctx context.Context, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	p.reloads++
	hook := p.OnReload
	url := p.url
	p.mu.Unlock()

	if hook != nil {
		if err := hook(timeout); err != nil {
			return err
		}
	}

	if p.browser != nil && url != "" {
		if html, ok := p.browser.lookup(url); ok {
			p.SetHTML(html)
		}
	}
	return nil
}

// Title implements browser.Page
func (p *Page) Title(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return strings.TrimSpace(p.doc.Find("title").First().Text()), nil
}

// URL implements browser.Page
func (p *Page) URL(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url, nil
}

// WaitForSelector succeeds immediately when selector matches, else times out
func (p *Page) WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error {
	p.mu.Lock()
	found := p.doc.Find(selector).Length() > 0
	p.mu.Unlock()
	if !found {
		return fmt.Errorf("waiting for %q: %w", selector, context.DeadlineExceeded)
	}
	return nil
}

// QuerySelectorAll implements browser.Page
func (p *Page) QuerySelectorAll(ctx context.Context, selector string) ([]browser.Element, error) {
	p.mu.Lock()
	sel := p.doc.Find(selector)
	p.mu.Unlock()
	return p.wrap(sel), nil
}

func (p *Page) wrap(sel *goquery.Selection) []browser.Element {
	elements := make([]browser.Element, 0, sel.Length())
	sel.Each(func(_ int, s *goquery.Selection) {
		elements = append(elements, &Element{page: p, sel: s})
	})
	return elements
}

// Evaluate delegates to OnEvaluate
func (p *Page) Evaluate(ctx context.Context, script string, out interface{}) error {
	p.mu.Lock()
	hook := p.OnEvaluate
	p.mu.Unlock()
	if hook == nil {
		return errors.New("evaluate not supported by fake page")
	}
	return hook(script, out)
}

// HTML implements browser.Page
func (p *Page) HTML(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return goquery.OuterHtml(p.doc.Selection)
}

// Screenshot returns a fixed placeholder image
func (p *Page) Screenshot(ctx context.Context) ([]byte, error) {
	return []byte("\x89PNG\r\n\x1a\n"), nil
}

// Close implements browser.Page
func (p *Page) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

// IsClosed reports whether Close was called
func (p *Page) IsClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Navigations returns how many times Navigate was called
func (p *Page) Navigations() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.navigations
}

// Reloads returns how many times Reload was called
func (p *Page) Reloads() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reloads
}

// Clicks returns how many element clicks happened on this page
func (p *Page) Clicks() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.clicks
}

// Element is a fake browser.Element over a goquery selection
type Element struct {
	page *Page
	sel  *goquery.Selection
}

// Text implements browser.Element
func (e *Element) Text(ctx context.Context) (string, error) {
	e.page.mu.Lock()
	defer e.page.mu.Unlock()
	return browser.SelectionText(e.sel), nil
}

// Attribute implements browser.Element
func (e *Element) Attribute(ctx context.Context, name string) (string, bool, error) {
	e.page.mu.Lock()
	defer e.page.mu.Unlock()
	value, ok := e.sel.Attr(name)
	return value, ok, nil
}

// AttributeValues implements browser.Element
func (e *Element) AttributeValues(ctx context.Context) ([]string, error) {
	e.page.mu.Lock()
	defer e.page.mu.Unlock()

	var values []string
	e.sel.Find("*").AddBack().Each(func(_ int, s *goquery.Selection) {
		for _, node := range s.Nodes {
			for _, attr := range node.Attr {
				values = append(values, attr.Val)
			}
		}
	})
	return values, nil
}

// QuerySelector implements browser.Element
func (e *Element) QuerySelector(ctx context.Context, selector string) (browser.Element, error) {
	e.page.mu.Lock()
	sel := e.sel.Find(selector).First()
	e.page.mu.Unlock()
	if sel.Length() == 0 {
		return nil, browser.ErrNoNode
	}
	return &Element{page: e.page, sel: sel}, nil
}

// QuerySelectorAll implements browser.Element
func (e *Element) QuerySelectorAll(ctx context.Context, selector string) ([]browser.Element, error) {
	e.page.mu.Lock()
	sel := e.sel.Find(selector)
	e.page.mu.Unlock()
	return e.page.wrap(sel), nil
}

// Click reveals the HTML stored in RevealAttr, once
func (e *Element) Click(ctx context.Context) error {
	e.page.mu.Lock()
	defer e.page.mu.Unlock()
	e.page.clicks++
	if reveal, ok := e.sel.Attr(RevealAttr); ok {
		e.sel.RemoveAttr(RevealAttr)
		e.sel.AppendHtml(reveal)
	}
	return nil
}
