// cmd/leadscrapexter/main_test.go
package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valpere/LeadScrapexter/internal/browser/browsertest"
	"github.com/valpere/LeadScrapexter/internal/config"
	"github.com/valpere/LeadScrapexter/internal/output"
	"github.com/valpere/LeadScrapexter/internal/scraper"
	"github.com/valpere/LeadScrapexter/pkg/api"
	"github.com/valpere/LeadScrapexter/pkg/types"
)

func runCLI(t *testing.T, opts []api.Option, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(args, &stdout, &stderr, opts...)
	return code, stdout.String(), stderr.String()
}

func noSleep(ctx context.Context, d time.Duration) error { return ctx.Err() }

// writeConfig saves a configuration that scrapes without waiting
func writeConfig(t *testing.T, root string) string {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Output.Root = root
	cfg.RateLimit.PageInterval = 0
	cfg.Retry.MaxRetries = 0
	cfg.Extraction.BatchDelay = 0
	cfg.Extraction.ExpandWait = 0

	path := filepath.Join(t.TempDir(), "leadscrapexter.yaml")
	require.NoError(t, config.SaveToFile(cfg, path))
	return path
}

func listing(name, phone string) string {
	return fmt.Sprintf(`<div class="result">
		<a class="business-name" href="/austin-tx/mip/x"><span>%s</span></a>
		<div class="phones phone primary">%s</div>
		<div class="adr"><div class="street-address">1 Main St</div><div class="locality">Austin, TX 78701</div></div>
	</div>`, name, phone)
}

func searchBrowser(body string) []api.Option {
	query := scraper.SearchQuery{Terms: "plumbers", Location: "Austin, TX"}
	url := scraper.NewYellowPages(scraper.SiteSelectors{}, 0).BuildSearchURL(query, 1)

	b := browsertest.NewBrowser()
	b.AddPage(url, `<html><head><title>Plumbers in Austin, TX</title></head><body>`+body+`</body></html>`)
	return []api.Option{
		api.WithLauncher(b),
		api.WithScraperOptions(scraper.WithSleeper(noSleep)),
	}
}

func TestVersion(t *testing.T) {
	code, stdout, _ := runCLI(t, nil, "version")
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "LeadScrapexter dev")
	assert.Contains(t, stdout, "Git commit:")
}

func TestTemplate(t *testing.T) {
	code, stdout, _ := runCLI(t, nil, "template")
	require.Equal(t, 0, code)

	cfg, err := config.LoadFromBytes([]byte(stdout))
	require.NoError(t, err)
	assert.Equal(t, "sqlite3", cfg.Database.Driver)
	assert.Len(t, cfg.Sites, 2)
}

func TestTemplateFileThenValidate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "template.yaml")

	code, stdout, _ := runCLI(t, nil, "template", "--file", path)
	require.Equal(t, 0, code)
	assert.Contains(t, stdout, "Template written to")

	code, stdout, _ = runCLI(t, nil, "validate", path)
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "is valid")
}

func TestValidate_Errors(t *testing.T) {
	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("extraction:\n  batch_size: 80\n"), 0644))

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"invalid value", []string{"validate", bad}, "batch"},
		{"missing file", []string{"validate", filepath.Join(t.TempDir(), "nope.yaml")}, "Configuration Error"},
		{"missing argument", []string{"validate"}, "Configuration Error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _, stderr := runCLI(t, nil, tt.args...)
			assert.Equal(t, 2, code)
			assert.Contains(t, stderr, tt.want)
		})
	}
}

func TestScrape_BadArguments(t *testing.T) {
	code, _, stderr := runCLI(t, nil, "scrape", "--source", "google", "--query", "plumbers")
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "Configuration Error")

	code, _, _ = runCLI(t, nil, "scrape", "--bogus")
	assert.Equal(t, 2, code)

	code, _, stderr = runCLI(t, nil, "scrape", "--source", "manta")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "query")
}

func TestScrapeStatsMerge(t *testing.T) {
	root := t.TempDir()
	cfgPath := writeConfig(t, root)
	opts := searchBrowser(`<div class="search-results">` +
		listing("Alpha Drains", "(512) 555-0101") +
		listing("Bravo Pipes", "(512) 555-0102") +
		listing("Alpha Drains", "(512) 555-0101") +
		`</div>`)

	code, stdout, stderr := runCLI(t, opts, "--config", cfgPath, "scrape",
		"--source", "yellowpages", "--query", "plumbers", "--location", "Austin, TX")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "Scraped 2 contacts from 1 pages of YellowPages")
	assert.Contains(t, stdout, "1 duplicates")
	assert.Contains(t, stdout, filepath.Join(root, "YellowPages", "Austin TX", "yellowpages_Austin_TX_contacts_Page1.csv"))

	code, stdout, _ = runCLI(t, nil, "--config", cfgPath, "stats")
	require.Equal(t, 0, code)
	assert.Contains(t, stdout, "Files: 1")
	assert.Contains(t, stdout, "Contacts: 2")
	assert.Contains(t, stdout, "Austin, TX")

	code, stdout, stderr = runCLI(t, nil, "--config", cfgPath, "merge", "--separate-sheets", "--name", "leads.xlsx")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "Merged 2 rows from 1 files")
	assert.Contains(t, stdout, "leads.xlsx")
	assert.Contains(t, stdout, output.SheetCombined)
}

func TestScrape_NoDataIsNotAnError(t *testing.T) {
	root := t.TempDir()
	cfgPath := writeConfig(t, root)
	opts := searchBrowser(`<p>No results found</p>`)

	code, stdout, stderr := runCLI(t, opts, "--config", cfgPath, "scrape",
		"--source", "yp", "--query", "plumbers", "--location", "Austin, TX")
	assert.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "No data found")
	assert.Contains(t, stdout, `"plumbers" in Austin, TX`)
	assert.Empty(t, stderr)
}

func TestMerge_NothingToMerge(t *testing.T) {
	code, _, stderr := runCLI(t, nil, "--output", t.TempDir(), "merge")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "Nothing To Merge")
	assert.Contains(t, stderr, "no CSV files")
	assert.NotContains(t, stderr, "Unexpected Error")
}

func TestOutputFromEnvironment(t *testing.T) {
	root := t.TempDir()
	austin := output.NewLocationKey("Austin", "TX")
	_, err := output.NewExporter(root, nil, nil).Export([]types.ContactRecord{
		{BusinessName: "Charlie Rooter", Phone: "5125550103", Source: types.SourceManta, ScrapedAt: time.Now()},
	}, types.SourceManta, output.ExportOptions{Page: 1, Location: &austin})
	require.NoError(t, err)

	t.Setenv("LEADSCRAPEXTER_OUTPUT", root)
	code, stdout, _ := runCLI(t, nil, "stats", "--pattern", "manta")
	require.Equal(t, 0, code)
	assert.Contains(t, stdout, "Contacts: 1")
	assert.Contains(t, stdout, "Manta")
}
