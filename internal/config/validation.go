// internal/config/validation.go - Validation with per-field error messages
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/andybalholm/cascadia"

	"github.com/valpere/LeadScrapexter/internal/output"
	"github.com/valpere/LeadScrapexter/internal/scraper"
	"github.com/valpere/LeadScrapexter/pkg/types"
)

// ValidationError represents a single invalid field
type ValidationError struct {
	Field   string `json:"field"`
	Value   string `json:"value"`
	Message string `json:"message"`
}

// Error implements the error interface
func (ve ValidationError) Error() string {
	if ve.Value != "" {
		return fmt.Sprintf("%s: %s (value: %s)", ve.Field, ve.Message, ve.Value)
	}
	return fmt.Sprintf("%s: %s", ve.Field, ve.Message)
}

// ValidationErrors aggregates every problem found in one pass
type ValidationErrors []ValidationError

// Error implements the error interface
func (ve ValidationErrors) Error() string {
	var b strings.Builder
	b.WriteString("configuration validation failed:")
	for i, err := range ve {
		fmt.Fprintf(&b, "\n  %d. %s", i+1, err.Error())
	}
	return b.String()
}

// ValidationResult holds validation results
type ValidationResult struct {
	Valid    bool             `json:"valid"`
	Errors   ValidationErrors `json:"errors"`
	Warnings []string         `json:"warnings"`
}

func (r *ValidationResult) fail(field, value, format string, args ...interface{}) {
	r.Errors = append(r.Errors, ValidationError{Field: field, Value: value, Message: fmt.Sprintf(format, args...)})
}

func (r *ValidationResult) warn(format string, args ...interface{}) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// Validate returns ValidationErrors listing every invalid field, or nil
func (c *AppConfig) Validate() error {
	result := c.ValidateWithDetails()
	if !result.Valid {
		return result.Errors
	}
	return nil
}

// ValidateWithDetails returns errors and non-fatal warnings
func (c *AppConfig) ValidateWithDetails() *ValidationResult {
	result := &ValidationResult{
		Errors:   make(ValidationErrors, 0),
		Warnings: make([]string, 0),
	}

	c.validateBrowser(result)
	c.validateNavigation(result)
	c.validateExtraction(result)
	c.validateOutput(result)
	c.validateSites(result)
	c.validateRateLimit(result)
	c.validateDatabase(result)
	c.validateLogging(result)

	result.Valid = len(result.Errors) == 0
	return result
}

func (c *AppConfig) validateBrowser(result *ValidationResult) {
	if c.Browser.Timeout <= 0 {
		result.fail("browser.timeout", c.Browser.Timeout.String(), "Browser timeout must be positive")
	}
	if c.Browser.ViewportWidth <= 0 || c.Browser.ViewportHeight <= 0 {
		result.fail("browser.viewport", fmt.Sprintf("%dx%d", c.Browser.ViewportWidth, c.Browser.ViewportHeight),
			"Viewport dimensions must be positive")
	}
	if !c.Browser.Headless {
		result.warn("Headful browser requires a display")
	}
}

func (c *AppConfig) validateNavigation(result *ValidationResult) {
	nav := c.Navigation
	timeouts := []struct {
		field string
		value time.Duration
	}{
		{"navigation.timeout", nav.NavigationTimeout},
		{"navigation.reload_timeout", nav.ReloadTimeout},
		{"navigation.renavigate_timeout", nav.RenavigateTimeout},
	}
	for _, t := range timeouts {
		if t.value <= 0 {
			result.fail(t.field, t.value.String(), "Timeout must be positive")
		}
	}
	waits := []struct {
		field string
		value time.Duration
	}{
		{"navigation.passive_wait", nav.PassiveWait},
		{"navigation.reload_wait", nav.ReloadWait},
		{"navigation.long_wait", nav.LongWait},
		{"navigation.renavigate_wait", nav.RenavigateWait},
	}
	for _, w := range waits {
		if w.value < 0 {
			result.fail(w.field, w.value.String(), "Wait cannot be negative")
		}
	}
	for i, marker := range nav.Markers {
		if strings.TrimSpace(marker) == "" {
			result.fail(fmt.Sprintf("navigation.markers[%d]", i), "", "Protection marker cannot be empty")
		}
	}
	if nav.NavigationTimeout > 0 && nav.NavigationTimeout < 10*time.Second {
		result.warn("Navigation timeout below 10s will fail on slow result pages")
	}
}

func (c *AppConfig) validateExtraction(result *ValidationResult) {
	ext := c.Extraction
	if ext.BatchSize < 1 || ext.BatchSize > 50 {
		result.fail("extraction.batch_size", fmt.Sprint(ext.BatchSize), "Batch size must be between 1 and 50")
	}
	if ext.BatchDelay < 0 {
		result.fail("extraction.batch_delay", ext.BatchDelay.String(), "Batch delay cannot be negative")
	}
	if ext.ExpandWait < 0 {
		result.fail("extraction.expand_wait", ext.ExpandWait.String(), "Expand wait cannot be negative")
	}
	if ext.ListingTimeout <= 0 {
		result.fail("extraction.listing_timeout", ext.ListingTimeout.String(), "Listing timeout must be positive")
	}
	if ext.BatchSize > 10 {
		result.warn("Batch sizes above 10 are likely to trigger rate limiting")
	}
}

func (c *AppConfig) validateOutput(result *ValidationResult) {
	if strings.TrimSpace(c.Output.Root) == "" {
		result.fail("output.root", "", "Output root directory is required")
	}
}

func (c *AppConfig) validateSites(result *ValidationResult) {
	for name, sel := range c.Sites {
		if _, err := types.ParseSource(name); err != nil {
			result.fail(fmt.Sprintf("sites.%s", name), name, "Unknown source (valid: yellowpages, manta)")
			continue
		}
		for field, chain := range selectorChains(sel) {
			for i, s := range chain {
				if err := validateCSSSelector(s); err != nil {
					result.fail(fmt.Sprintf("sites.%s.%s[%d]", name, field, i), s, "Invalid CSS selector: %v", err)
				}
			}
		}
	}
}

func selectorChains(s scraper.SiteSelectors) map[string][]string {
	return map[string][]string{
		"listings":  s.Listings,
		"name":      s.Name,
		"phone":     s.Phone,
		"address":   s.Address,
		"street":    s.Street,
		"locality":  s.Locality,
		"website":   s.Website,
		"expand":    s.Expand,
		"profile":   s.Profile,
		"next_page": s.NextPage,
	}
}

func (c *AppConfig) validateRateLimit(result *ValidationResult) {
	if c.RateLimit.PageInterval < 0 {
		result.fail("rate_limit.page_interval", c.RateLimit.PageInterval.String(), "Page interval cannot be negative")
	} else if c.RateLimit.PageInterval < time.Second {
		result.warn("Page interval below 1s may get the session blocked")
	}
	if c.RateLimit.MaxTabs < 1 {
		result.fail("rate_limit.max_tabs", fmt.Sprint(c.RateLimit.MaxTabs), "At least one tab is required")
	}

	if c.Retry.MaxRetries < 0 {
		result.fail("retry.max_retries", fmt.Sprint(c.Retry.MaxRetries), "Max retries cannot be negative")
	}
	if c.Retry.BackoffFactor < 1 {
		result.fail("retry.backoff_factor", fmt.Sprint(c.Retry.BackoffFactor), "Backoff factor must be at least 1")
	}
	if c.Retry.BaseDelay < 0 || c.Retry.MaxDelay < c.Retry.BaseDelay {
		result.fail("retry.max_delay", c.Retry.MaxDelay.String(), "Max delay must be at least base delay")
	}
}

func (c *AppConfig) validateDatabase(result *ValidationResult) {
	db := c.Database
	switch db.Driver {
	case DriverNone:
		return
	case DriverSQLite, DriverPostgres, DriverMySQL:
		if strings.TrimSpace(db.DSN) == "" {
			result.fail("database.dsn", "", "DSN is required for driver %s", db.Driver)
		}
		if !output.ValidTableName(db.Table) {
			result.fail("database.table", db.Table, "Table name must be alphanumeric with underscores")
		}
	case DriverMongoDB:
		if !strings.HasPrefix(db.DSN, "mongodb://") && !strings.HasPrefix(db.DSN, "mongodb+srv://") {
			result.fail("database.dsn", db.DSN, "MongoDB DSN must start with mongodb:// or mongodb+srv://")
		}
		if db.Table == "" {
			result.fail("database.table", "", "Collection name is required")
		}
	default:
		result.fail("database.driver", db.Driver, "Unsupported driver (valid: sqlite3, postgres, mysql, mongodb)")
	}
}

func (c *AppConfig) validateLogging(result *ValidationResult) {
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		result.fail("logging.level", c.Logging.Level, "Invalid log level (valid: debug, info, warn, error)")
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		result.fail("logging.format", c.Logging.Format, "Invalid log format (valid: text, json)")
	}
}

// validateCSSSelector compiles selector with the same engine goquery uses
func validateCSSSelector(selector string) error {
	selector = strings.TrimSpace(selector)
	if selector == "" {
		return fmt.Errorf("empty selector")
	}
	_, err := cascadia.Compile(selector)
	return err
}

// GetValidationSuggestions provides actionable suggestions for fixing validation errors
func (c *AppConfig) GetValidationSuggestions(result *ValidationResult) []string {
	suggestions := make([]string, 0)

	var hasSelectorError, hasNavigationError, hasDatabaseError bool
	for _, err := range result.Errors {
		switch {
		case strings.HasPrefix(err.Field, "sites."):
			hasSelectorError = true
		case strings.HasPrefix(err.Field, "navigation."):
			hasNavigationError = true
		case strings.HasPrefix(err.Field, "database."):
			hasDatabaseError = true
		}
	}

	if hasSelectorError {
		suggestions = append(suggestions,
			"Test CSS selectors using browser developer tools",
			"Remove a selector override to fall back to the built-in chain")
	}
	if hasNavigationError {
		suggestions = append(suggestions,
			"Durations use Go syntax such as 30s, 1m30s or 500ms")
	}
	if hasDatabaseError {
		suggestions = append(suggestions,
			"Leave database.driver empty to disable the contact mirror")
	}
	if len(suggestions) == 0 {
		suggestions = append(suggestions,
			"Review the configuration file for syntax errors",
			"Check YAML indentation and formatting",
			"Run 'leadscrapexter template' for a complete example")
	}

	return suggestions
}
