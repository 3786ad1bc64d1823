// internal/scraper/site.go
package scraper

import (
	"context"
	"net/url"
	"regexp"
	"strings"

	"github.com/valpere/LeadScrapexter/internal/browser"
	"github.com/valpere/LeadScrapexter/internal/contact"
	"github.com/valpere/LeadScrapexter/pkg/types"
)

// SearchQuery is what to search for and where
type SearchQuery struct {
	Terms    string `json:"terms"`
	Location string `json:"location"`
}

// ListingInfo holds the structured fields of one listing
type ListingInfo struct {
	Name    string
	Phone   string // 10 digits or empty
	Address string
	Website string
	Email   string // direct mailto link, if any
	Text    string // full rendered text of the listing
}

// HasIdentity reports whether the listing can become a contact record
func (l *ListingInfo) HasIdentity() bool {
	return l.Name != "" || l.Phone != ""
}

// Site adapts one directory site to the generic scrape loop
type Site interface {
	Source() types.Source
	BuildSearchURL(query SearchQuery, page int) string
	// ListingSelectors are tried in order; the first with matches is used for the whole page
	ListingSelectors() []string
	ExtractListingInfo(ctx context.Context, listing browser.Element) (*ListingInfo, error)
	ExtractHiddenEmail(ctx context.Context, listing browser.Element) (string, error)
	// ProfileURL returns the detail page to follow, if the site has one for this listing
	ProfileURL(ctx context.Context, listing browser.Element) (string, bool)
	HasNextPage(ctx context.Context, page browser.Page) (bool, error)
	NextPageURL(query SearchQuery, current int) string
}

// SiteSelectors configures field lookup for a selector-driven site.
// Every list is a fallback chain tried in order.
type SiteSelectors struct {
	Listings []string `yaml:"listings" json:"listings"`
	Name     []string `yaml:"name" json:"name"`
	Phone    []string `yaml:"phone" json:"phone"`
	Address  []string `yaml:"address" json:"address"`
	Street   []string `yaml:"street,omitempty" json:"street,omitempty"`
	Locality []string `yaml:"locality,omitempty" json:"locality,omitempty"`
	Website  []string `yaml:"website" json:"website"`
	Expand   []string `yaml:"expand,omitempty" json:"expand,omitempty"`
	Profile  []string `yaml:"profile,omitempty" json:"profile,omitempty"`
	NextPage []string `yaml:"next_page" json:"next_page"`
}

// merge returns s with empty lists filled from defaults
func (s SiteSelectors) merge(defaults SiteSelectors) SiteSelectors {
	pick := func(v, d []string) []string {
		if len(v) > 0 {
			return v
		}
		return d
	}
	return SiteSelectors{
		Listings: pick(s.Listings, defaults.Listings),
		Name:     pick(s.Name, defaults.Name),
		Phone:    pick(s.Phone, defaults.Phone),
		Address:  pick(s.Address, defaults.Address),
		Street:   pick(s.Street, defaults.Street),
		Locality: pick(s.Locality, defaults.Locality),
		Website:  pick(s.Website, defaults.Website),
		Expand:   pick(s.Expand, defaults.Expand),
		Profile:  pick(s.Profile, defaults.Profile),
		NextPage: pick(s.NextPage, defaults.NextPage),
	}
}

var ordinalRegex = regexp.MustCompile(`^\s*\d+\s*[.)]\s*`)

// StripOrdinal removes a leading result number such as "1. " from a name
func StripOrdinal(name string) string {
	return strings.TrimSpace(ordinalRegex.ReplaceAllString(name, ""))
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// selectorSite implements the field extraction shared by all sites
type selectorSite struct {
	source    types.Source
	baseURL   string
	selectors SiteSelectors
	emails    *HiddenEmailFinder
	buildURL  func(query SearchQuery, page int) string
}

func (s *selectorSite) Source() types.Source { return s.source }

func (s *selectorSite) BuildSearchURL(query SearchQuery, page int) string {
	return s.buildURL(query, page)
}

func (s *selectorSite) NextPageURL(query SearchQuery, current int) string {
	return s.buildURL(query, current+1)
}

func (s *selectorSite) ListingSelectors() []string {
	return s.selectors.Listings
}

func (s *selectorSite) ExtractListingInfo(ctx context.Context, listing browser.Element) (*ListingInfo, error) {
	text, err := listing.Text(ctx)
	if err != nil {
		return nil, err
	}

	info := &ListingInfo{Text: text}
	info.Name = StripOrdinal(collapseSpace(firstText(ctx, listing, s.selectors.Name)))

	if raw := firstText(ctx, listing, s.selectors.Phone); raw != "" {
		if phones := contact.ExtractPhones(raw); len(phones) > 0 {
			info.Phone = phones[0]
		}
	}

	info.Address = s.address(ctx, listing)
	info.Website = s.resolve(firstAttr(ctx, listing, s.selectors.Website, "href"))
	info.Email = mailtoEmail(firstAttr(ctx, listing, []string{mailtoSelector}, "href"))

	return info, nil
}

// address joins street and locality when both are marked up separately,
// else takes the whole address block
func (s *selectorSite) address(ctx context.Context, listing browser.Element) string {
	street := collapseSpace(firstText(ctx, listing, s.selectors.Street))
	locality := collapseSpace(firstText(ctx, listing, s.selectors.Locality))
	if street != "" && locality != "" {
		return street + ", " + locality
	}
	if block := collapseSpace(firstText(ctx, listing, s.selectors.Address)); block != "" {
		return block
	}
	if street != "" {
		return street
	}
	return locality
}

func (s *selectorSite) ExtractHiddenEmail(ctx context.Context, listing browser.Element) (string, error) {
	return s.emails.Find(ctx, listing)
}

func (s *selectorSite) ProfileURL(ctx context.Context, listing browser.Element) (string, bool) {
	if len(s.selectors.Profile) == 0 {
		return "", false
	}
	href := s.resolve(firstAttr(ctx, listing, s.selectors.Profile, "href"))
	return href, href != ""
}

func (s *selectorSite) HasNextPage(ctx context.Context, page browser.Page) (bool, error) {
	for _, sel := range s.selectors.NextPage {
		elements, err := page.QuerySelectorAll(ctx, sel)
		if err != nil {
			return false, err
		}
		if len(elements) > 0 {
			return true, nil
		}
	}
	return false, nil
}

// resolve makes href absolute against the site base URL
func (s *selectorSite) resolve(href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(strings.ToLower(href), "javascript:") {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if ref.IsAbs() {
		return ref.String()
	}
	base, err := url.Parse(s.baseURL)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

// firstText returns the text of the first selector that matches
func firstText(ctx context.Context, el browser.Element, selectors []string) string {
	for _, sel := range selectors {
		match, err := el.QuerySelector(ctx, sel)
		if err != nil {
			continue
		}
		if text, err := match.Text(ctx); err == nil && strings.TrimSpace(text) != "" {
			return strings.TrimSpace(text)
		}
	}
	return ""
}

// firstAttr returns attr of the first selector that matches and carries it
func firstAttr(ctx context.Context, el browser.Element, selectors []string, attr string) string {
	for _, sel := range selectors {
		match, err := el.QuerySelector(ctx, sel)
		if err != nil {
			continue
		}
		if value, ok, err := match.Attribute(ctx, attr); err == nil && ok && strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value)
		}
	}
	return ""
}
