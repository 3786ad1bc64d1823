// pkg/api/api.go

// Package api wires configuration, browser, exporters and mirrors into a
// single client for programs embedding LeadScrapexter.
package api

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/valpere/LeadScrapexter/internal/browser"
	"github.com/valpere/LeadScrapexter/internal/config"
	"github.com/valpere/LeadScrapexter/internal/errors"
	"github.com/valpere/LeadScrapexter/internal/monitoring"
	"github.com/valpere/LeadScrapexter/internal/output"
	"github.com/valpere/LeadScrapexter/internal/scraper"
	"github.com/valpere/LeadScrapexter/internal/utils"
)

// Sink is a secondary contact store that can report its health
type Sink interface {
	scraper.ContactSink
	Ping(ctx context.Context) error
}

// Client scrapes directory sites and merges their output
type Client struct {
	config     *Config
	logger     utils.Logger
	metrics    *monitoring.MetricsManager
	launcher   browser.Launcher
	exporter   *output.Exporter
	merger     *output.Merger
	sinks      []Sink
	scrapeOpts []scraper.Option
}

// Option configures a Client
type Option func(*Client)

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(logger utils.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithLauncher replaces the Chrome launcher
func WithLauncher(launcher browser.Launcher) Option {
	return func(c *Client) { c.launcher = launcher }
}

// WithMetrics shares a metrics manager, e.g. with the status server
func WithMetrics(metrics *monitoring.MetricsManager) Option {
	return func(c *Client) { c.metrics = metrics }
}

// WithSink adds a contact mirror besides the one from database config
func WithSink(sink Sink) Option {
	return func(c *Client) { c.sinks = append(c.sinks, sink) }
}

// WithScraperOptions passes options through to every scrape
func WithScraperOptions(opts ...scraper.Option) Option {
	return func(c *Client) { c.scrapeOpts = append(c.scrapeOpts, opts...) }
}

// NewClient builds a client from cfg. When cfg.Database names a driver the
// mirror is opened here, so an unreachable database fails fast.
func NewClient(ctx context.Context, cfg *Config, opts ...Option) (*Client, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Config("validate config", err)
	}

	c := &Client{config: cfg}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = utils.NewNopLogger()
	}
	if c.metrics == nil {
		c.metrics = monitoring.NewMetricsManager(monitoring.MetricsConfig{
			Namespace:       cfg.Metrics.Namespace,
			EnableGoMetrics: cfg.Metrics.EnableGoMetrics,
		})
	}
	if c.launcher == nil {
		c.launcher = browser.NewChromeLauncher()
	}

	c.exporter = output.NewExporter(cfg.Output.Root, c.logger.WithField("component", "exporter"), c.metrics)
	c.merger = output.NewMerger(cfg.Output.Root, c.logger.WithField("component", "merger"), c.metrics)

	sink, err := openSink(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	if sink != nil {
		c.logger.WithField("driver", cfg.Database.Driver).Info("contact mirror enabled")
		c.sinks = append(c.sinks, sink)
	}

	return c, nil
}

func openSink(ctx context.Context, db config.DatabaseConfig) (Sink, error) {
	switch db.Driver {
	case config.DriverNone:
		return nil, nil
	case config.DriverMongoDB:
		return output.OpenMongoStore(ctx, db.DSN, db.Database, db.Table)
	case config.DriverSQLite, config.DriverPostgres, config.DriverMySQL:
		return output.OpenContactStore(ctx, db.Driver, db.DSN, db.Table)
	default:
		return nil, errors.Config("open contact mirror", fmt.Errorf("unsupported driver %q", db.Driver))
	}
}

// Config returns the client's configuration
func (c *Client) Config() *Config {
	return c.config
}

// Metrics returns the metrics manager
func (c *Client) Metrics() *monitoring.MetricsManager {
	return c.metrics
}

// OutputRoot returns the absolute output root when it can be resolved
func (c *Client) OutputRoot() string {
	if abs, err := filepath.Abs(c.config.Output.Root); err == nil {
		return abs
	}
	return c.config.Output.Root
}

// Scrape runs one scrape and mirrors exported pages to every sink
func (c *Client) Scrape(ctx context.Context, req Request) (*ScrapeResult, error) {
	opts := []scraper.Option{scraper.WithMetrics(c.metrics)}
	for _, sink := range c.sinks {
		opts = append(opts, scraper.WithSink(sink))
	}
	opts = append(opts, c.scrapeOpts...)

	s := scraper.NewScraper(c.config.ToScraperConfig(), c.launcher, c.exporter, c.logger, opts...)
	return s.Scrape(ctx, req)
}

// Merge consolidates CSV files under the output root into a workbook
func (c *Client) Merge(opts MergeOptions) (*MergeResult, error) {
	if opts.Pattern == "" {
		opts.Pattern = c.config.Output.MergePattern
	}
	return c.merger.Merge(opts)
}

// Statistics counts rows of the CSV files under the output root
func (c *Client) Statistics(pattern string) (*Statistics, error) {
	return c.merger.Statistics(pattern)
}

// Files lists CSV files under the output root
func (c *Client) Files(pattern string) ([]string, error) {
	return c.merger.Files(pattern)
}

// HealthChecks returns the checks the status server registers
func (c *Client) HealthChecks() []*monitoring.HealthCheck {
	checks := []*monitoring.HealthCheck{
		monitoring.OutputDirHealthCheck(c.config.Output.Root),
		monitoring.GoroutineHealthCheck(1000),
	}
	for i, sink := range c.sinks {
		name := "contact_mirror"
		if i > 0 {
			name = fmt.Sprintf("contact_mirror_%d", i+1)
		}
		checks = append(checks, monitoring.DatabaseHealthCheck(name, sink.Ping))
	}
	return checks
}

// Close releases every sink
func (c *Client) Close() error {
	var first error
	for _, sink := range c.sinks {
		if err := sink.Close(); err != nil && first == nil {
			first = err
		}
	}
	c.sinks = nil
	return first
}
