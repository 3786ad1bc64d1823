// pkg/api/api_test.go
package api

import (
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
	"github.com/valpere/LeadScrapexter/internal/errors"
	"github.com/valpere/LeadScrapexter/internal/output"
	"github.com/valpere/LeadScrapexter/internal/scraper"
)

func noSleep(ctx context.Context, d time.Duration) error { return ctx.Err() }

func fastConfig(root string) *Config {
	cfg := DefaultConfig()
	cfg.Output.Root = root
	cfg.RateLimit.PageInterval = 0
	cfg.Retry.MaxRetries = 0
	cfg.Extraction.BatchDelay = 0
	cfg.Extraction.ExpandWait = 0
	return cfg
}

func listing(name, phone string) string {
	return fmt.Sprintf(`<div class="result">
		<a class="business-name" href="/austin-tx/mip/x"><span>%s</span></a>
		<div class="phones phone primary">%s</div>
		<div class="adr"><div class="street-address">1 Main St</div><div class="locality">Austin, TX 78701</div></div>
	</div>`, name, phone)
}

func austinBrowser() *browsertest.Browser {
	query := scraper.SearchQuery{Terms: "plumbers", Location: "Austin, TX"}
	url := scraper.NewYellowPages(scraper.SiteSelectors{}, 0).BuildSearchURL(query, 1)

	b := browsertest.NewBrowser()
	b.AddPage(url, `<html><head><title>Plumbers in Austin, TX</title></head><body><div class="search-results">`+
		listing("Alpha Drains", "(512) 555-0101")+
		listing("Bravo Pipes", "(512) 555-0102")+
		`</div></body></html>`)
	return b
}

func TestClient_ScrapeMirrorAndMerge(t *testing.T) {
	root := t.TempDir()
	cfg := fastConfig(root)
	cfg.Database = config.DatabaseConfig{Driver: config.DriverSQLite, DSN: filepath.Join(root, "leads.db"), Table: "contacts"}

	ctx := context.Background()
	b := austinBrowser()
	client, err := NewClient(ctx, cfg, WithLauncher(b), WithScraperOptions(scraper.WithSleeper(noSleep)))
	require.NoError(t, err)
	defer client.Close()

	result, err := client.Scrape(ctx, Request{Source: SourceYellowPages, Query: "plumbers", Location: "Austin, TX"})
	require.NoError(t, err)
	require.Len(t, result.Records, 2)
	require.Len(t, result.Files, 1)
	assert.Equal(t, filepath.Join(root, "YellowPages", "Austin TX", "yellowpages_Austin_TX_contacts_Page1.csv"), result.Files[0])

	require.Len(t, client.sinks, 1)
	count, err := client.sinks[0].(*output.ContactStore).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	files, err := client.Files("")
	require.NoError(t, err)
	assert.Equal(t, result.Files, files)

	stats, err := client.Statistics("")
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalRows)
	assert.Equal(t, 2, stats.BySource["YellowPages"])

	merged, err := client.Merge(MergeOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, merged.Rows)
	_, err = os.Stat(merged.OutputPath)
	assert.NoError(t, err)

	checks := client.HealthChecks()
	names := make([]string, 0, len(checks))
	for _, c := range checks {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"output_dir", "goroutines", "contact_mirror"}, names)
}

func TestNewClient_InvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Extraction.BatchSize = 0

	_, err := NewClient(context.Background(), cfg)
	require.Error(t, err)
	assert.Equal(t, errors.KindConfig, errors.KindOf(err))
}

func TestNewClient_Defaults(t *testing.T) {
	client, err := NewClient(context.Background(), nil)
	require.NoError(t, err)
	defer client.Close()

	assert.Equal(t, "output", client.Config().Output.Root)
	assert.NotNil(t, client.Metrics())
	assert.True(t, filepath.IsAbs(client.OutputRoot()))
	assert.Empty(t, client.sinks)
}

func TestClient_MergeUsesConfiguredPattern(t *testing.T) {
	root := t.TempDir()
	cfg := fastConfig(root)
	cfg.Output.MergePattern = "manta"

	client, err := NewClient(context.Background(), cfg)
	require.NoError(t, err)

	_, err = client.Merge(MergeOptions{})
	assert.ErrorIs(t, err, output.ErrNoCSVFiles)
}
