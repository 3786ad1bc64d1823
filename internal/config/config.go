// internal/config/config.go
package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/valpere/LeadScrapexter/internal/browser"
	"github.com/valpere/LeadScrapexter/internal/errors"
	"github.com/valpere/LeadScrapexter/internal/navigation"
	"github.com/valpere/LeadScrapexter/internal/scraper"
	"github.com/valpere/LeadScrapexter/internal/utils"
	"github.com/valpere/LeadScrapexter/pkg/types"
)

const (
	defaultOutputRoot  = "output"
	defaultTable       = "contacts"
	defaultMongoDB     = "leadscrapexter"
	defaultMetricsAddr = ":9090"
	defaultNamespace   = "leadscrapexter"
)

// DefaultConfig returns a configuration that needs no file at all
func DefaultConfig() *AppConfig {
	sc := scraper.DefaultConfig()
	return &AppConfig{
		Browser:    sc.Browser,
		Navigation: sc.Navigation,
		Extraction: sc.Engine,
		Output:     OutputConfig{Root: defaultOutputRoot},
		RateLimit:  RateLimitConfig{PageInterval: sc.PageInterval, MaxTabs: sc.MaxTabs},
		Retry:      sc.Retry,
		Metrics:    MetricsConfig{Namespace: defaultNamespace, Addr: defaultMetricsAddr},
		Logging:    utils.LoggingConfig{Level: "info", Format: "text"},
	}
}

// LoadFromFile loads configuration from a YAML file
func LoadFromFile(filename string) (*AppConfig, error) {
	if filename == "" {
		return nil, errors.Config("load config", fmt.Errorf("configuration filename cannot be empty"))
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Config("load config", fmt.Errorf("configuration file not found: %s", filename))
		}
		return nil, errors.Config("load config", fmt.Errorf("failed to read configuration file: %w", err))
	}

	return LoadFromBytes(data)
}

// LoadFromBytes parses YAML over the defaults, expands ${ENV} references and validates
func LoadFromBytes(data []byte) (*AppConfig, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errors.Config("load config", fmt.Errorf("configuration data cannot be empty"))
	}

	config := DefaultConfig()
	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), config); err != nil {
		return nil, errors.Config("parse config", fmt.Errorf("failed to parse YAML configuration: %w", err))
	}

	applyDefaults(config)

	if err := config.Validate(); err != nil {
		return nil, errors.Config("validate config", err)
	}

	return config, nil
}

// LoadFromReader loads configuration from an io.Reader
func LoadFromReader(reader io.Reader) (*AppConfig, error) {
	if reader == nil {
		return nil, errors.Config("load config", fmt.Errorf("reader cannot be nil"))
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, errors.Config("load config", fmt.Errorf("failed to read from reader: %w", err))
	}

	return LoadFromBytes(data)
}

// SaveToFile validates config and writes it as YAML, creating parent directories
func SaveToFile(config *AppConfig, filename string) error {
	if filename == "" {
		return errors.Config("save config", fmt.Errorf("filename cannot be empty"))
	}

	var buf bytes.Buffer
	if err := SaveToWriter(config, &buf); err != nil {
		return err
	}

	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Persistence("create directory", dir, err)
	}
	if err := os.WriteFile(filename, buf.Bytes(), 0644); err != nil {
		return errors.Persistence("write config", filename, err)
	}

	return nil
}

// SaveToWriter validates config and writes it as YAML
func SaveToWriter(config *AppConfig, writer io.Writer) error {
	if config == nil {
		return errors.Config("save config", fmt.Errorf("configuration cannot be nil"))
	}
	if writer == nil {
		return errors.Config("save config", fmt.Errorf("writer cannot be nil"))
	}

	if err := config.Validate(); err != nil {
		return errors.Config("validate config", err)
	}

	enc := yaml.NewEncoder(writer)
	enc.SetIndent(2)
	if err := enc.Encode(config); err != nil {
		return errors.Config("save config", fmt.Errorf("failed to marshal configuration to YAML: %w", err))
	}
	return enc.Close()
}

// GenerateTemplate returns the default configuration with every site's
// selector chains spelled out, ready to be edited
func GenerateTemplate() *AppConfig {
	config := DefaultConfig()
	config.Sites = map[string]scraper.SiteSelectors{
		string(types.SourceYellowPages): scraper.DefaultYellowPagesSelectors(),
		string(types.SourceManta):       scraper.DefaultMantaSelectors(),
	}
	config.Database = DatabaseConfig{Driver: DriverSQLite, DSN: "output/contacts.db", Table: defaultTable}
	return config
}

// ToScraperConfig converts the file sections into the scrape orchestrator's configuration
func (c *AppConfig) ToScraperConfig() scraper.Config {
	sites := make(map[string]scraper.SiteSelectors, len(c.Sites))
	for name, sel := range c.Sites {
		if source, err := types.ParseSource(name); err == nil {
			sites[string(source)] = sel
		}
	}
	return scraper.Config{
		Browser:      c.Browser,
		Navigation:   c.Navigation,
		Engine:       c.Extraction,
		Retry:        c.Retry,
		PageInterval: c.RateLimit.PageInterval,
		MaxTabs:      c.RateLimit.MaxTabs,
		UserAgents:   c.UserAgents,
		Sites:        sites,
		DebugDir:     c.DebugDir,
	}
}

// applyDefaults fills values a file explicitly zeroed where zero is not meaningful
func applyDefaults(config *AppConfig) {
	defBrowser := browser.DefaultBrowserConfig()
	if config.Browser.Timeout == 0 {
		config.Browser.Timeout = defBrowser.Timeout
	}
	if config.Browser.ViewportWidth == 0 {
		config.Browser.ViewportWidth = defBrowser.ViewportWidth
	}
	if config.Browser.ViewportHeight == 0 {
		config.Browser.ViewportHeight = defBrowser.ViewportHeight
	}

	defNav := navigation.DefaultConfig()
	if config.Navigation.NavigationTimeout == 0 {
		config.Navigation.NavigationTimeout = defNav.NavigationTimeout
	}
	if config.Navigation.ReloadTimeout == 0 {
		config.Navigation.ReloadTimeout = defNav.ReloadTimeout
	}
	if config.Navigation.RenavigateTimeout == 0 {
		config.Navigation.RenavigateTimeout = defNav.RenavigateTimeout
	}
	if len(config.Navigation.Markers) == 0 {
		config.Navigation.Markers = defNav.Markers
	}

	defEngine := scraper.DefaultEngineConfig()
	if config.Extraction.BatchSize == 0 {
		config.Extraction.BatchSize = defEngine.BatchSize
	}
	if config.Extraction.ListingTimeout == 0 {
		config.Extraction.ListingTimeout = defEngine.ListingTimeout
	}

	if strings.TrimSpace(config.Output.Root) == "" {
		config.Output.Root = defaultOutputRoot
	}
	if config.RateLimit.MaxTabs == 0 {
		config.RateLimit.MaxTabs = scraper.DefaultConfig().MaxTabs
	}

	if config.Database.Enabled() {
		config.Database.Driver = strings.ToLower(config.Database.Driver)
		if config.Database.Table == "" {
			config.Database.Table = defaultTable
		}
		if config.Database.Driver == DriverMongoDB && config.Database.Database == "" {
			config.Database.Database = defaultMongoDB
		}
	}

	if config.Metrics.Namespace == "" {
		config.Metrics.Namespace = defaultNamespace
	}
	if config.Metrics.Addr == "" {
		config.Metrics.Addr = defaultMetricsAddr
	}
	if config.Logging.Level == "" {
		config.Logging.Level = "info"
	}
	if config.Logging.Format == "" {
		config.Logging.Format = "text"
	}
}
