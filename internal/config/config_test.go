// internal/config/config_test.go
package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/valpere/LeadScrapexter/internal/errors"
	"github.com/valpere/LeadScrapexter/pkg/types"
)

func TestLoadFromBytes(t *testing.T) {
	configYAML := `
browser:
  headless: true
  timeout: 45s
navigation:
  timeout: 90s
  long_wait: 20s
extraction:
  batch_size: 3
  batch_delay: 2s
output:
  root: /tmp/leads
  separate_sheets: true
rate_limit:
  page_interval: 4s
`

	config, err := LoadFromBytes([]byte(configYAML))
	if err != nil {
		t.Fatalf("LoadFromBytes failed: %v", err)
	}

	if config.Browser.Timeout != 45*time.Second {
		t.Errorf("expected browser timeout 45s, got %v", config.Browser.Timeout)
	}
	if config.Navigation.NavigationTimeout != 90*time.Second {
		t.Errorf("expected navigation timeout 90s, got %v", config.Navigation.NavigationTimeout)
	}
	if config.Navigation.LongWait != 20*time.Second {
		t.Errorf("expected long wait 20s, got %v", config.Navigation.LongWait)
	}
	if config.Extraction.BatchSize != 3 {
		t.Errorf("expected batch size 3, got %d", config.Extraction.BatchSize)
	}
	if !config.Output.SeparateSheets || config.Output.Root != "/tmp/leads" {
		t.Errorf("unexpected output section %+v", config.Output)
	}
}

func TestLoadFromBytes_KeepsDefaultsForMissingSections(t *testing.T) {
	config, err := LoadFromBytes([]byte("output:\n  root: out\n"))
	if err != nil {
		t.Fatalf("LoadFromBytes failed: %v", err)
	}

	def := DefaultConfig()
	if config.Navigation.ReloadWait != def.Navigation.ReloadWait {
		t.Errorf("expected default reload wait %v, got %v", def.Navigation.ReloadWait, config.Navigation.ReloadWait)
	}
	if len(config.Navigation.Markers) != len(def.Navigation.Markers) {
		t.Errorf("expected default markers, got %v", config.Navigation.Markers)
	}
	if !config.Extraction.FollowProfiles {
		t.Error("expected follow_profiles to default to true")
	}
	if config.Logging.Level != "info" || config.Logging.Format != "text" {
		t.Errorf("unexpected logging defaults %+v", config.Logging)
	}
}

func TestLoadFromBytes_ExpandsEnvironment(t *testing.T) {
	t.Setenv("LEADS_TEST_DSN", "postgres://user:secret@db:5432/leads")

	config, err := LoadFromBytes([]byte(`
database:
  driver: Postgres
  dsn: ${LEADS_TEST_DSN}
`))
	if err != nil {
		t.Fatalf("LoadFromBytes failed: %v", err)
	}

	if config.Database.DSN != "postgres://user:secret@db:5432/leads" {
		t.Errorf("expected expanded DSN, got %q", config.Database.DSN)
	}
	if config.Database.Driver != DriverPostgres {
		t.Errorf("expected driver to be normalized, got %q", config.Database.Driver)
	}
	if config.Database.Table != "contacts" {
		t.Errorf("expected default table, got %q", config.Database.Table)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "leads.yaml")
	if err := os.WriteFile(path, []byte("extraction:\n  batch_size: 4\n"), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	config, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	if config.Extraction.BatchSize != 4 {
		t.Errorf("expected batch size 4, got %d", config.Extraction.BatchSize)
	}

	_, err = LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	if !errors.Is(err, errors.ErrConfig) {
		t.Errorf("expected configuration error for a missing file, got %v", err)
	}
}

func TestGenerateTemplate(t *testing.T) {
	config := GenerateTemplate()

	if err := config.Validate(); err != nil {
		t.Fatalf("generated template should be valid: %v", err)
	}
	if len(config.Sites) != 2 {
		t.Errorf("expected selectors for both sources, got %d", len(config.Sites))
	}

	var buf bytes.Buffer
	if err := SaveToWriter(config, &buf); err != nil {
		t.Fatalf("SaveToWriter failed: %v", err)
	}

	reloaded, err := LoadFromBytes(buf.Bytes())
	if err != nil {
		t.Fatalf("template should load back: %v\n%s", err, buf.String())
	}
	if reloaded.Navigation.RenavigateTimeout != config.Navigation.RenavigateTimeout {
		t.Errorf("expected renavigate timeout %v, got %v", config.Navigation.RenavigateTimeout, reloaded.Navigation.RenavigateTimeout)
	}
	if !strings.Contains(buf.String(), "long_wait: 15s") {
		t.Errorf("expected durations written in Go syntax, got:\n%s", buf.String())
	}
}

func TestSaveToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "leads.yaml")

	if err := SaveToFile(DefaultConfig(), path); err != nil {
		t.Fatalf("SaveToFile failed: %v", err)
	}
	if _, err := LoadFromFile(path); err != nil {
		t.Errorf("saved file should load: %v", err)
	}

	invalid := DefaultConfig()
	invalid.Extraction.BatchSize = 0
	if err := SaveToFile(invalid, filepath.Join(t.TempDir(), "bad.yaml")); err == nil {
		t.Error("expected invalid configuration to be rejected")
	}
}

func TestToScraperConfig(t *testing.T) {
	config := DefaultConfig()
	config.RateLimit.PageInterval = 7 * time.Second
	config.RateLimit.MaxTabs = 4
	config.DebugDir = "/tmp/shots"
	config.Sites = GenerateTemplate().Sites
	config.Sites["Yellow Pages"] = config.Sites[string(types.SourceYellowPages)]
	delete(config.Sites, string(types.SourceYellowPages))

	sc := config.ToScraperConfig()

	if sc.PageInterval != 7*time.Second || sc.MaxTabs != 4 {
		t.Errorf("rate limit not carried over: %v / %d", sc.PageInterval, sc.MaxTabs)
	}
	if sc.DebugDir != "/tmp/shots" {
		t.Errorf("expected debug dir, got %q", sc.DebugDir)
	}
	if _, ok := sc.Sites[string(types.SourceYellowPages)]; !ok {
		t.Errorf("expected site key to be normalized, got %v", sc.Sites)
	}
	if sc.Engine.BatchSize != config.Extraction.BatchSize {
		t.Errorf("expected extraction section as engine config")
	}
}
