// internal/scraper/scraper.go
package scraper

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/valpere/LeadScrapexter/internal/antidetect"
	"github.com/valpere/LeadScrapexter/internal/browser"
	"github.com/valpere/LeadScrapexter/internal/errors"
	"github.com/valpere/LeadScrapexter/internal/monitoring"
	"github.com/valpere/LeadScrapexter/internal/navigation"
	"github.com/valpere/LeadScrapexter/internal/output"
	"github.com/valpere/LeadScrapexter/internal/utils"
	"github.com/valpere/LeadScrapexter/pkg/types"
)

// RecordExporter writes one page of records and returns the file path
type RecordExporter interface {
	Export(records []types.ContactRecord, source types.Source, opts output.ExportOptions) (string, error)
}

// ContactSink mirrors exported records to secondary storage
type ContactSink interface {
	Save(ctx context.Context, records []types.ContactRecord) (int, error)
	Close() error
}

// Config holds everything a scrape needs besides the request
type Config struct {
	Browser      browser.BrowserConfig    `yaml:"browser" json:"browser"`
	Navigation   navigation.Config        `yaml:"navigation" json:"navigation"`
	Engine       EngineConfig             `yaml:"extraction" json:"extraction"`
	Retry        errors.RetryConfig       `yaml:"retry" json:"retry"`
	PageInterval time.Duration            `yaml:"page_interval" json:"page_interval"`
	MaxTabs      int                      `yaml:"max_tabs" json:"max_tabs"`
	UserAgents   []string                 `yaml:"user_agents,omitempty" json:"user_agents,omitempty"`
	Sites        map[string]SiteSelectors `yaml:"sites,omitempty" json:"sites,omitempty"`
	DebugDir     string                   `yaml:"debug_dir,omitempty" json:"debug_dir,omitempty"`
}

// DefaultConfig returns the default scrape configuration
func DefaultConfig() Config {
	return Config{
		Browser:      *browser.DefaultBrowserConfig(),
		Navigation:   navigation.DefaultConfig(),
		Engine:       DefaultEngineConfig(),
		Retry:        errors.RetryConfig{MaxRetries: 2, BaseDelay: 5 * time.Second, BackoffFactor: 2, MaxDelay: time.Minute},
		PageInterval: 3 * time.Second,
		MaxTabs:      2,
	}
}

// Request describes one scrape invocation
type Request struct {
	Source    types.Source `json:"source"`
	Query     string       `json:"query"`
	Location  string       `json:"location"`
	StartPage int          `json:"start_page"`
	MaxPages  int          `json:"max_pages"`
}

// Validate checks the request
func (r *Request) Validate() error {
	if !r.Source.IsValid() {
		return errors.Config("validate request", fmt.Errorf("unknown source %q", r.Source))
	}
	if strings.TrimSpace(r.Query) == "" {
		return errors.Config("validate request", fmt.Errorf("query is required"))
	}
	if r.StartPage < 1 {
		r.StartPage = 1
	}
	if r.MaxPages < 1 {
		r.MaxPages = 1
	}
	return nil
}

// PageResult is the outcome of one result page
type PageResult struct {
	Page  int        `json:"page"`
	URL   string     `json:"url"`
	Stats *PageStats `json:"stats"`
	File  string     `json:"file,omitempty"`
}

// ScrapeResult is a completed scrape. Zero records is a valid result.
type ScrapeResult struct {
	SessionID string                `json:"session_id"`
	Source    types.Source          `json:"source"`
	Location  *output.LocationKey   `json:"location,omitempty"`
	Pages     []PageResult          `json:"pages"`
	Records   []types.ContactRecord `json:"records"`
	Files     []string              `json:"files"`
	Stats     SessionStats          `json:"stats"`
	Duration  time.Duration         `json:"duration"`
}

// Empty reports whether the scrape completed without finding any contact
func (r *ScrapeResult) Empty() bool {
	return len(r.Records) == 0
}

// Scraper runs scrapes end to end: browser, navigation, extraction, export
type Scraper struct {
	config   Config
	launcher browser.Launcher
	exporter RecordExporter
	logger   utils.Logger
	metrics  *monitoring.MetricsManager
	sinks    []ContactSink
	retry    *errors.Service
	sleep    navigation.Sleeper
}

// Option configures a Scraper
type Option func(*Scraper)

// WithMetrics records scrape metrics
func WithMetrics(m *monitoring.MetricsManager) Option {
	return func(s *Scraper) { s.metrics = m }
}

// WithSink mirrors every exported page to sink
func WithSink(sink ContactSink) Option {
	return func(s *Scraper) { s.sinks = append(s.sinks, sink) }
}

// WithSleeper replaces every wait, used by tests
func WithSleeper(sleep navigation.Sleeper) Option {
	return func(s *Scraper) { s.sleep = sleep }
}

// NewScraper creates a scraper
func NewScraper(config Config, launcher browser.Launcher, exporter RecordExporter, logger utils.Logger, opts ...Option) *Scraper {
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	s := &Scraper{
		config:   config,
		launcher: launcher,
		exporter: exporter,
		logger:   logger,
		retry:    errors.NewService().WithRetryConfig(config.Retry),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scrape runs req. A non-nil error means the scrape could not complete;
// pages exported before the failure stay on disk and are listed in the result.
func (s *Scraper) Scrape(ctx context.Context, req Request) (result *ScrapeResult, err error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	site, err := NewSite(req.Source, s.config.Sites[string(req.Source)], s.config.Engine.ExpandWait)
	if err != nil {
		return nil, errors.Config("select site", err)
	}
	if ss, ok := site.(*selectorSite); ok && s.sleep != nil {
		ss.emails.Sleep = s.sleep
	}

	result = &ScrapeResult{Source: req.Source}
	if req.Location != "" {
		if loc, ok := output.ParseLocation(req.Location); ok {
			result.Location = &loc
		}
	}

	start := time.Now()
	s.metrics.RecordScrapeStart()
	defer func() {
		status := "ok"
		switch {
		case err != nil:
			status = errors.KindOf(err).String()
		case result.Empty():
			status = "empty"
		}
		result.Duration = time.Since(start)
		s.metrics.RecordScrapeEnd(string(req.Source), status, result.Duration)
	}()

	profile := antidetect.NewStealthProfile(antidetect.NewUserAgentRotator(s.config.UserAgents), s.config.Browser.UserAgent)
	bcfg := s.config.Browser
	bcfg.UserAgent = profile.UserAgent
	bcfg.InitScript = profile.Script()

	bs, err := s.launcher.Launch(ctx, &bcfg)
	if err != nil {
		return result, fmt.Errorf("failed to launch browser: %w", err)
	}

	session := NewSession(req.Source, bs, s.config.MaxTabs)
	defer session.Close()
	result.SessionID = session.ID

	log := s.logger.WithFields(map[string]interface{}{
		"session_id": session.ID,
		"source":     string(req.Source),
		"query":      req.Query,
		"location":   req.Location,
	})
	log.Info("scrape started")
	if reporter, ok := bs.(browser.StatsReporter); ok {
		defer func() {
			st := reporter.GetStats()
			log.WithFields(map[string]interface{}{
				"pages_opened": st.PagesOpened,
				"pages_loaded": st.PagesLoaded,
				"avg_load":     st.AverageLoadTime.String(),
				"timeouts":     st.TimeoutsOccurred,
				"errors":       st.Errors,
			}).Debug("browser stats")
		}()
	}

	page, err := bs.NewPage(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to open page: %w", err)
	}
	defer page.Close()

	navOpts := []navigation.Option{
		navigation.WithMetrics(s.metrics),
		navigation.WithSource(string(req.Source)),
	}
	if s.config.DebugDir != "" {
		navOpts = append(navOpts, navigation.WithDebugDir(s.config.DebugDir))
	}
	if s.sleep != nil {
		navOpts = append(navOpts, navigation.WithSleeper(s.sleep))
	}
	navigator := navigation.NewNavigator(s.config.Navigation, log, navOpts...)

	engine := NewEngine(s.config.Engine, log, s.metrics, navigator)
	if s.sleep != nil {
		engine.SetSleeper(s.sleep)
	}

	limiter := antidetect.NewRateLimiter(s.config.PageInterval, 1)
	query := SearchQuery{Terms: req.Query, Location: req.Location}

	for pageNum := req.StartPage; pageNum < req.StartPage+req.MaxPages; pageNum++ {
		if err := limiter.Wait(ctx); err != nil {
			return result, err
		}

		url := site.BuildSearchURL(query, pageNum)
		if pageNum > req.StartPage {
			url = site.NextPageURL(query, pageNum-1)
		}
		pageLog := log.WithField("page", pageNum)
		pageLog.Infof("loading %s", url)

		err := s.retry.ExecuteWithRetry(ctx, func() error {
			_, err := navigator.Load(ctx, page, url)
			return err
		}, fmt.Sprintf("load page %d", pageNum))
		if err != nil {
			pageLog.Errorf("page could not be loaded: %v", err)
			return result, err
		}

		pageStart := time.Now()
		stats, err := engine.ProcessPage(ctx, page, site, session)
		s.metrics.ObserveOperation("page", time.Since(pageStart))
		if err != nil {
			return result, fmt.Errorf("page %d: %w", pageNum, err)
		}

		pr := PageResult{Page: pageNum, URL: url, Stats: stats}
		if fresh := session.TakeNew(); len(fresh) > 0 {
			path, err := s.exporter.Export(fresh, req.Source, output.ExportOptions{Page: pageNum, Location: result.Location})
			if err != nil {
				return result, err
			}
			pr.File = path
			result.Files = append(result.Files, path)
			pageLog.WithField("file", filepath.Base(path)).Infof("exported %d contacts", len(fresh))
			s.mirror(ctx, fresh, pageLog)
		}
		result.Pages = append(result.Pages, pr)

		if stats.ListingsFound == 0 {
			pageLog.Info("no listings on page, stopping")
			break
		}

		hasNext, err := site.HasNextPage(ctx, page)
		if err != nil {
			pageLog.Warnf("next page check failed: %v", err)
			break
		}
		if !hasNext {
			pageLog.Info("last page reached")
			break
		}
	}

	result.Records = session.Records()
	result.Stats = session.Stats()
	log.Infof("scrape finished: %d contacts in %d files", len(result.Records), len(result.Files))
	return result, nil
}

// mirror saves records to every sink. Mirror failures are logged only.
func (s *Scraper) mirror(ctx context.Context, records []types.ContactRecord, log utils.Logger) {
	for _, sink := range s.sinks {
		saved, err := sink.Save(ctx, records)
		if err != nil {
			log.Warnf("contact mirror failed: %v", err)
			continue
		}
		log.Debugf("mirrored %d contacts", saved)
	}
}
