// internal/scraper/hidden_email.go
package scraper

import (
	"context"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/valpere/LeadScrapexter/internal/browser"
	"github.com/valpere/LeadScrapexter/internal/contact"
	"github.com/valpere/LeadScrapexter/internal/navigation"
)

const mailtoSelector = `a[href^="mailto:"]`

var mailtoPattern = regexp.MustCompile(`(?i)mailto:([^"'\s?&<>]+)`)

// HiddenEmailFinder discovers emails that are not in a listing's visible text.
// Strategies run in order and the first hit wins:
// a mailto link, a click-to-expand section re-checked for a mailto link,
// then a mailto pattern inside any attribute value.
type HiddenEmailFinder struct {
	ExpandSelectors []string
	ExpandWait      time.Duration
	Sleep           navigation.Sleeper
}

// NewHiddenEmailFinder creates a finder that clicks expandSelectors and waits expandWait
func NewHiddenEmailFinder(expandSelectors []string, expandWait time.Duration) *HiddenEmailFinder {
	return &HiddenEmailFinder{
		ExpandSelectors: expandSelectors,
		ExpandWait:      expandWait,
		Sleep:           navigation.ContextSleep,
	}
}

// Find returns the first hidden email or "" when none is found
func (f *HiddenEmailFinder) Find(ctx context.Context, listing browser.Element) (string, error) {
	if email := f.mailtoLink(ctx, listing); email != "" {
		return email, nil
	}

	for _, sel := range f.ExpandSelectors {
		toggle, err := listing.QuerySelector(ctx, sel)
		if err != nil {
			continue
		}
		if err := toggle.Click(ctx); err != nil {
			continue
		}
		if err := f.Sleep(ctx, f.ExpandWait); err != nil {
			return "", err
		}
		if email := f.mailtoLink(ctx, listing); email != "" {
			return email, nil
		}
	}

	values, err := listing.AttributeValues(ctx)
	if err != nil {
		return "", err
	}
	for _, value := range values {
		if match := mailtoPattern.FindStringSubmatch(value); match != nil {
			if email := mailtoEmail("mailto:" + match[1]); email != "" {
				return email, nil
			}
		}
	}

	return "", nil
}

func (f *HiddenEmailFinder) mailtoLink(ctx context.Context, listing browser.Element) string {
	link, err := listing.QuerySelector(ctx, mailtoSelector)
	if err != nil {
		return ""
	}
	href, ok, err := link.Attribute(ctx, "href")
	if err != nil || !ok {
		return ""
	}
	return mailtoEmail(href)
}

// mailtoEmail extracts a valid, lower-cased address from a mailto href
func mailtoEmail(href string) string {
	href = strings.TrimSpace(href)
	if len(href) < len("mailto:") || !strings.EqualFold(href[:len("mailto:")], "mailto:") {
		return ""
	}
	addr := href[len("mailto:"):]
	if i := strings.IndexByte(addr, '?'); i >= 0 {
		addr = addr[:i]
	}
	if unescaped, err := url.QueryUnescape(addr); err == nil {
		addr = unescaped
	}
	emails := contact.ExtractEmails(addr)
	if len(emails) == 0 {
		return ""
	}
	return emails[0]
}
