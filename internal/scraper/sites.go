// internal/scraper/sites.go
package scraper

import (
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/valpere/LeadScrapexter/pkg/types"
)

const (
	yellowPagesBaseURL = "https://www.yellowpages.com"
	mantaBaseURL       = "https://www.manta.com"
)

// DefaultYellowPagesSelectors are the selector chains for yellowpages.com
func DefaultYellowPagesSelectors() SiteSelectors {
	return SiteSelectors{
		Listings: []string{".search-results .result", "div.result", "div.v-card"},
		Name:     []string{"a.business-name span", "a.business-name", "h2.n"},
		Phone:    []string{".phones.phone.primary", ".phones", ".phone"},
		Address:  []string{".adr", ".address"},
		Street:   []string{".street-address"},
		Locality: []string{".locality"},
		Website:  []string{"a.track-visit-website", "a.website-link"},
		Expand:   []string{".more-info", "a.toggle-more"},
		NextPage: []string{".pagination a.next", "a.next"},
	}
}

// DefaultMantaSelectors are the selector chains for manta.com
func DefaultMantaSelectors() SiteSelectors {
	return SiteSelectors{
		Listings: []string{`div[data-test="search-result"]`, ".search-result", "li.list-group-item"},
		Name:     []string{`a[data-test="business-name"]`, "h2 a", ".name"},
		Phone:    []string{`[data-test="phone"]`, ".phone"},
		Address:  []string{`[data-test="address"]`, ".address"},
		Website:  []string{`a[data-test="website"]`, "a.website"},
		Expand:   []string{`[data-test="more-info"]`},
		Profile:  []string{`a[data-test="business-name"]`, "h2 a"},
		NextPage: []string{`a[rel="next"]`, ".pagination .next a"},
	}
}

// NewYellowPages creates the yellowpages.com adapter. Empty selector lists
// fall back to DefaultYellowPagesSelectors.
func NewYellowPages(selectors SiteSelectors, expandWait time.Duration) Site {
	selectors = selectors.merge(DefaultYellowPagesSelectors())
	return &selectorSite{
		source:    types.SourceYellowPages,
		baseURL:   yellowPagesBaseURL,
		selectors: selectors,
		emails:    NewHiddenEmailFinder(selectors.Expand, expandWait),
		buildURL: func(query SearchQuery, page int) string {
			params := url.Values{}
			params.Set("search_terms", query.Terms)
			params.Set("geo_location_terms", query.Location)
			if page > 1 {
				params.Set("page", strconv.Itoa(page))
			}
			return fmt.Sprintf("%s/search?%s", yellowPagesBaseURL, params.Encode())
		},
	}
}

// NewManta creates the manta.com adapter. Manta listings link to richer
// company profiles, which the engine follows when enabled.
func NewManta(selectors SiteSelectors, expandWait time.Duration) Site {
	selectors = selectors.merge(DefaultMantaSelectors())
	return &selectorSite{
		source:    types.SourceManta,
		baseURL:   mantaBaseURL,
		selectors: selectors,
		emails:    NewHiddenEmailFinder(selectors.Expand, expandWait),
		buildURL: func(query SearchQuery, page int) string {
			params := url.Values{}
			params.Set("search", query.Terms)
			params.Set("search_location", query.Location)
			if page > 1 {
				params.Set("pg", strconv.Itoa(page))
			}
			return fmt.Sprintf("%s/search?%s", mantaBaseURL, params.Encode())
		},
	}
}

// NewSite returns the adapter for source
func NewSite(source types.Source, selectors SiteSelectors, expandWait time.Duration) (Site, error) {
	switch source {
	case types.SourceYellowPages:
		return NewYellowPages(selectors, expandWait), nil
	case types.SourceManta:
		return NewManta(selectors, expandWait), nil
	default:
		return nil, fmt.Errorf("unsupported source %q", source)
	}
}
