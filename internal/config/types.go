// internal/config/types.go

// Package config provides the configuration file format for LeadScrapexter.
// A single YAML file covers the browser, the anti-bot ladder, listing
// extraction, output layout, optional contact mirrors, metrics and logging.
package config

import (
	"time"

	"github.com/valpere/LeadScrapexter/internal/browser"
	"github.com/valpere/LeadScrapexter/internal/errors"
	"github.com/valpere/LeadScrapexter/internal/navigation"
	"github.com/valpere/LeadScrapexter/internal/output"
	"github.com/valpere/LeadScrapexter/internal/scraper"
	"github.com/valpere/LeadScrapexter/internal/utils"
)

// AppConfig is the root of the configuration file.
type AppConfig struct {
	// Browser controls how Chrome is launched
	Browser browser.BrowserConfig `yaml:"browser" json:"browser"`

	// Navigation holds the navigation timeout and the bypass ladder budgets
	Navigation navigation.Config `yaml:"navigation" json:"navigation"`

	// Extraction configures batching and per-listing timeouts
	Extraction scraper.EngineConfig `yaml:"extraction" json:"extraction"`

	// Output is where CSV and workbook files are written
	Output OutputConfig `yaml:"output" json:"output"`

	// Sites overrides selector chains per source
	Sites map[string]scraper.SiteSelectors `yaml:"sites,omitempty" json:"sites,omitempty"`

	// RateLimit paces result pages
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`

	// Retry applies to page loads only
	Retry errors.RetryConfig `yaml:"retry" json:"retry"`

	// Database optionally mirrors exported contacts
	Database DatabaseConfig `yaml:"database" json:"database"`

	Metrics MetricsConfig       `yaml:"metrics" json:"metrics"`
	Logging utils.LoggingConfig `yaml:"logging" json:"logging"`

	// UserAgents replaces the built-in rotation list
	UserAgents []string `yaml:"user_agents,omitempty" json:"user_agents,omitempty"`

	// DebugDir receives a screenshot whenever the ladder fails
	DebugDir string `yaml:"debug_dir,omitempty" json:"debug_dir,omitempty"`
}

// OutputConfig defines output settings.
type OutputConfig struct {
	// Root is the directory holding <Source>/<City ST>/ trees
	Root string `yaml:"root" json:"root"`

	// SeparateSheets writes one sheet per source plus All_Combined when merging
	SeparateSheets bool `yaml:"separate_sheets" json:"separate_sheets"`

	// MergePattern filters CSV files by base name when merging
	MergePattern string `yaml:"merge_pattern,omitempty" json:"merge_pattern,omitempty"`
}

// RateLimitConfig paces page loads.
type RateLimitConfig struct {
	// PageInterval is the minimum time between two result pages
	PageInterval time.Duration `yaml:"page_interval" json:"page_interval"`

	// MaxTabs bounds concurrently open profile tabs
	MaxTabs int `yaml:"max_tabs" json:"max_tabs"`
}

// Database drivers accepted in database.driver
const (
	DriverNone     = ""
	DriverSQLite   = output.DriverSQLite
	DriverPostgres = output.DriverPostgres
	DriverMySQL    = output.DriverMySQL
	DriverMongoDB  = "mongodb"
)

// DatabaseConfig selects an optional contact mirror.
type DatabaseConfig struct {
	Driver string `yaml:"driver" json:"driver"`
	// DSN is the SQL data source name, or the connection URI for mongodb
	DSN string `yaml:"dsn" json:"dsn"`
	// Table is the SQL table, or the collection for mongodb
	Table    string `yaml:"table" json:"table"`
	Database string `yaml:"database,omitempty" json:"database,omitempty"`
}

// Enabled reports whether a mirror is configured
func (d DatabaseConfig) Enabled() bool {
	return d.Driver != DriverNone
}

// MetricsConfig configures the Prometheus registry and the status server.
type MetricsConfig struct {
	Namespace       string `yaml:"namespace" json:"namespace"`
	EnableGoMetrics bool   `yaml:"enable_go_metrics" json:"enable_go_metrics"`
	// Addr is the listen address of `leadscrapexter serve`
	Addr string `yaml:"addr" json:"addr"`
}
