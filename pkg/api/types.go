// pkg/api/types.go
package api

import (
	"github.com/valpere/LeadScrapexter/internal/config"
	"github.com/valpere/LeadScrapexter/internal/output"
	"github.com/valpere/LeadScrapexter/internal/scraper"
	"github.com/valpere/LeadScrapexter/pkg/types"
)

// Re-export types from internal packages for the public API
type (
	Config         = config.AppConfig
	DatabaseConfig = config.DatabaseConfig
	Request        = scraper.Request
	ScrapeResult   = scraper.ScrapeResult
	PageResult     = scraper.PageResult
	MergeOptions   = output.MergeOptions
	MergeResult    = output.MergeResult
	Statistics     = output.Statistics
	ContactRecord  = types.ContactRecord
	Source         = types.Source
)

// Sources with a site adapter
const (
	SourceYellowPages = types.SourceYellowPages
	SourceManta       = types.SourceManta
)

// DefaultConfig returns a configuration that needs no file
func DefaultConfig() *Config {
	return config.DefaultConfig()
}

// LoadConfig reads and validates a YAML configuration file
func LoadConfig(path string) (*Config, error) {
	return config.LoadFromFile(path)
}
