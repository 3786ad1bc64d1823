// internal/scraper/engine.go
package scraper

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/valpere/LeadScrapexter/internal/browser"
	"github.com/valpere/LeadScrapexter/internal/contact"
	"github.com/valpere/LeadScrapexter/internal/errors"
	"github.com/valpere/LeadScrapexter/internal/monitoring"
	"github.com/valpere/LeadScrapexter/internal/navigation"
	"github.com/valpere/LeadScrapexter/internal/utils"
	"github.com/valpere/LeadScrapexter/pkg/types"
)

// EngineConfig defines the configuration for the listing engine
type EngineConfig struct {
	BatchSize      int           `yaml:"batch_size" json:"batch_size"`
	BatchDelay     time.Duration `yaml:"batch_delay" json:"batch_delay"`
	ExpandWait     time.Duration `yaml:"expand_wait" json:"expand_wait"`
	ListingTimeout time.Duration `yaml:"listing_timeout" json:"listing_timeout"`
	FollowProfiles bool          `yaml:"follow_profiles" json:"follow_profiles"`
}

// DefaultEngineConfig returns the default engine configuration
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		BatchSize:      5,
		BatchDelay:     time.Second,
		ExpandWait:     1500 * time.Millisecond,
		ListingTimeout: 45 * time.Second,
		FollowProfiles: true,
	}
}

// PageStats are the counters of one processed result page
type PageStats struct {
	Selector          string   `json:"selector"`
	ListingsFound     int      `json:"listings_found"`
	ListingsProcessed int      `json:"listings_processed"`
	ListingsFailed    int      `json:"listings_failed"`
	Duplicates        int      `json:"duplicates"`
	NewContacts       int      `json:"new_contacts"`
	Errors            []string `json:"errors,omitempty"`
}

// ErrorCollector collects listing errors from concurrent tasks
type ErrorCollector struct {
	errors []string
	mutex  sync.RWMutex
}

// Add adds an error to the collector
func (ec *ErrorCollector) Add(err error) {
	ec.mutex.Lock()
	defer ec.mutex.Unlock()
	ec.errors = append(ec.errors, err.Error())
}

// GetErrors returns all collected errors
func (ec *ErrorCollector) GetErrors() []string {
	ec.mutex.RLock()
	defer ec.mutex.RUnlock()
	result := make([]string, len(ec.errors))
	copy(result, ec.errors)
	return result
}

// Engine extracts deduplicated contact records from a loaded result page
type Engine struct {
	config    EngineConfig
	logger    utils.Logger
	metrics   *monitoring.MetricsManager
	navigator *navigation.Navigator
	sleep     navigation.Sleeper
	now       func() time.Time
}

// NewEngine creates an engine. navigator loads profile pages and may be nil
// when profiles are not followed.
func NewEngine(config EngineConfig, logger utils.Logger, metrics *monitoring.MetricsManager, navigator *navigation.Navigator) *Engine {
	if config.BatchSize <= 0 {
		config.BatchSize = 5
	}
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	return &Engine{
		config:    config,
		logger:    logger,
		metrics:   metrics,
		navigator: navigator,
		sleep:     navigation.ContextSleep,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// SetSleeper replaces the inter-batch wait, used by tests
func (e *Engine) SetSleeper(s navigation.Sleeper) {
	e.sleep = s
}

// ProcessPage walks every listing on page in sequential batches whose
// members run concurrently. A failing listing yields zero contacts; only
// page-level failures and cancellation are returned as errors.
func (e *Engine) ProcessPage(ctx context.Context, page browser.Page, site Site, session *Session) (*PageStats, error) {
	stats := &PageStats{}
	source := string(site.Source())
	log := e.logger.WithFields(map[string]interface{}{"session_id": session.ID, "source": source})

	selector, listings, err := e.chooseSelector(ctx, page, site)
	if err != nil {
		return stats, err
	}
	if selector == "" {
		log.Info("no listings found on page")
		return stats, nil
	}

	stats.Selector = selector
	stats.ListingsFound = len(listings)
	e.metrics.RecordListingsFound(source, len(listings))
	log.WithField("selector", selector).Infof("found %d listings", len(listings))

	collector := &ErrorCollector{}
	var mu sync.Mutex

	for start := 0; start < stats.ListingsFound; start += e.config.BatchSize {
		if start > 0 {
			if err := e.sleep(ctx, e.config.BatchDelay); err != nil {
				return stats, err
			}
		}

		// handles from an earlier batch may point at replaced nodes
		fresh, err := page.QuerySelectorAll(ctx, selector)
		if err != nil {
			return stats, fmt.Errorf("re-query listings: %w", err)
		}
		if start >= len(fresh) {
			log.Warnf("listing count shrank from %d to %d", stats.ListingsFound, len(fresh))
			break
		}
		end := start + e.config.BatchSize
		if end > len(fresh) {
			end = len(fresh)
		}

		g, gctx := errgroup.WithContext(ctx)
		for i := start; i < end; i++ {
			index, listing := i, fresh[i]
			g.Go(func() error {
				outcome, err := e.processListing(gctx, listing, site, session)

				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					if ctx.Err() != nil {
						return ctx.Err()
					}
					stats.ListingsFailed++
					collector.Add(fmt.Errorf("listing %d: %w", index+1, err))
					e.metrics.RecordListingFailed(source)
					log.WithField("listing", index+1).Warnf("listing extraction failed: %v", err)
					return nil
				}
				stats.ListingsProcessed++
				e.metrics.RecordListingProcessed(source)
				switch {
				case outcome.duplicate:
					stats.Duplicates++
					e.metrics.RecordDuplicateDropped(source)
				case outcome.added > 0:
					stats.NewContacts += outcome.added
					e.metrics.RecordContactsEmitted(source, outcome.added)
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return stats, err
		}
	}

	stats.Errors = collector.GetErrors()
	session.addStats(*stats)
	log.Infof("page done: %d processed, %d failed, %d duplicates, %d new contacts",
		stats.ListingsProcessed, stats.ListingsFailed, stats.Duplicates, stats.NewContacts)
	return stats, nil
}

// chooseSelector returns the first selector with at least one match
func (e *Engine) chooseSelector(ctx context.Context, page browser.Page, site Site) (string, []browser.Element, error) {
	for _, sel := range site.ListingSelectors() {
		listings, err := page.QuerySelectorAll(ctx, sel)
		if err != nil {
			return "", nil, fmt.Errorf("query listings with %q: %w", sel, err)
		}
		if len(listings) > 0 {
			return sel, listings, nil
		}
	}
	return "", nil, nil
}

type listingOutcome struct {
	duplicate bool
	added     int
}

func (e *Engine) processListing(ctx context.Context, listing browser.Element, site Site, session *Session) (listingOutcome, error) {
	if e.config.ListingTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.config.ListingTimeout)
		defer cancel()
	}

	info, err := site.ExtractListingInfo(ctx, listing)
	if err != nil {
		return listingOutcome{}, errors.New(errors.KindListingExtraction, "extract", "", err)
	}
	if !info.HasIdentity() {
		return listingOutcome{}, nil
	}

	if !session.Claim(types.NewBusinessIdentity(info.Name, info.Phone, info.Address)) {
		return listingOutcome{duplicate: true}, nil
	}

	hidden := info.Email
	if hidden == "" {
		found, err := site.ExtractHiddenEmail(ctx, listing)
		if err != nil {
			if ctx.Err() != nil {
				return listingOutcome{}, err
			}
			e.logger.WithField("listing", info.Name).Debugf("hidden email lookup failed: %v", err)
		}
		hidden = found
	}

	candidates := contact.Extract(info.Text, site.Source())
	records := Reconcile(candidates, info, hidden, site.Source(), e.now())

	if e.config.FollowProfiles {
		if profileURL, ok := site.ProfileURL(ctx, listing); ok {
			records = e.followProfile(ctx, profileURL, records, info, site.Source(), session)
		}
	}

	return listingOutcome{added: session.Add(records...)}, nil
}

// Reconcile turns extractor candidates into records for one listing.
// Structured listing fields win for name, phone, address and website;
// each candidate keeps its own email, else the hidden email is used.
// Without candidates a single record is built from the listing fields.
func Reconcile(candidates []contact.Candidate, info *ListingInfo, hiddenEmail string, source types.Source, scrapedAt time.Time) []types.ContactRecord {
	if !info.HasIdentity() {
		return nil
	}

	build := func(email, phone string) types.ContactRecord {
		return types.ContactRecord{
			BusinessName: info.Name,
			Website:      info.Website,
			Address:      info.Address,
			Email:        firstNonEmpty(email, hiddenEmail),
			Phone:        firstNonEmpty(info.Phone, phone),
			Source:       source,
			ScrapedAt:    scrapedAt,
		}
	}

	if len(candidates) == 0 {
		return []types.ContactRecord{build("", "")}
	}

	records := make([]types.ContactRecord, 0, len(candidates))
	for _, c := range candidates {
		records = append(records, build(c.Email, c.Phone))
	}
	return records
}

// followProfile opens the listing's profile in its own tab, extracts contacts
// from it and merges them into records. Failures keep the listing's records.
func (e *Engine) followProfile(ctx context.Context, profileURL string, records []types.ContactRecord, info *ListingInfo, source types.Source, session *Session) []types.ContactRecord {
	if e.navigator == nil || !session.CanOpenTabs() {
		return records
	}
	log := e.logger.WithFields(map[string]interface{}{"session_id": session.ID, "listing": info.Name, "url": profileURL})

	tab, release, err := session.OpenTab(ctx)
	if err != nil {
		log.Warnf("profile tab unavailable: %v", err)
		return records
	}
	defer release()

	if _, err := e.navigator.Load(ctx, tab, profileURL); err != nil {
		log.Warnf("profile page not loaded: %v", err)
		return records
	}

	html, err := tab.HTML(ctx)
	if err != nil {
		log.Warnf("profile HTML unavailable: %v", err)
		return records
	}
	text, err := browser.DocumentText(html)
	if err != nil {
		log.Warnf("profile HTML not parsed: %v", err)
		return records
	}

	return MergeContacts(records, contact.Extract(text, source), info, source, e.now())
}

// MergeContacts folds extra candidates into records. A candidate matching a
// record by email or phone only fills that record's empty fields; others are
// added as new records of the same business.
func MergeContacts(records []types.ContactRecord, extra []contact.Candidate, info *ListingInfo, source types.Source, scrapedAt time.Time) []types.ContactRecord {
	for _, c := range extra {
		matched := false
		for i := range records {
			r := &records[i]
			if (c.Email != "" && r.Email == c.Email) || (c.Phone != "" && r.Phone == c.Phone) {
				r.Email = firstNonEmpty(r.Email, c.Email)
				r.Phone = firstNonEmpty(r.Phone, c.Phone)
				matched = true
				break
			}
		}
		if matched || c.Email == "" {
			continue
		}
		records = append(records, types.ContactRecord{
			BusinessName: info.Name,
			Website:      info.Website,
			Address:      info.Address,
			Email:        c.Email,
			Phone:        firstNonEmpty(info.Phone, c.Phone),
			Source:       source,
			ScrapedAt:    scrapedAt,
		})
	}
	return records
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
