// internal/server/server_test.go
package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valpere/LeadScrapexter/internal/errors"
	"github.com/valpere/LeadScrapexter/internal/monitoring"
	"github.com/valpere/LeadScrapexter/internal/output"
	"github.com/valpere/LeadScrapexter/pkg/types"
)

var _ Backend = (*output.Merger)(nil)

func seedOutput(t *testing.T, root string) {
	t.Helper()
	exporter := output.NewExporter(root, nil, nil)
	austin := output.NewLocationKey("Austin", "TX")
	scraped := time.Date(2024, 3, 9, 14, 30, 0, 0, time.UTC)

	_, err := exporter.Export([]types.ContactRecord{
		{BusinessName: "Alpha Drains", Phone: "5125550101", Source: types.SourceYellowPages, ScrapedAt: scraped},
		{BusinessName: "Bravo Pipes", Phone: "5125550102", Source: types.SourceYellowPages, ScrapedAt: scraped},
	}, types.SourceYellowPages, output.ExportOptions{Page: 1, Location: &austin})
	require.NoError(t, err)

	_, err = exporter.Export([]types.ContactRecord{
		{BusinessName: "Charlie Rooter", Phone: "5125550103", Source: types.SourceManta, ScrapedAt: scraped},
	}, types.SourceManta, output.ExportOptions{Page: 1, Location: &austin})
	require.NoError(t, err)
}

func setupTestServer(t *testing.T, root string, cfg Config) (*httptest.Server, *monitoring.MetricsManager) {
	t.Helper()
	metrics := monitoring.NewMetricsManager(monitoring.MetricsConfig{})
	health := monitoring.NewHealthManager("test")
	health.RegisterCheck(monitoring.OutputDirHealthCheck(root))

	s := New(cfg, output.NewMerger(root, nil, metrics), health, metrics, nil)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return ts, metrics
}

func decode(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestHealthEndpoint(t *testing.T) {
	ts, _ := setupTestServer(t, t.TempDir(), Config{})

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)

	var body map[string]interface{}
	decode(t, resp, &body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "healthy", body["status"])
}

func TestMetricsEndpoint(t *testing.T) {
	root := t.TempDir()
	seedOutput(t, root)
	ts, _ := setupTestServer(t, root, Config{})

	resp, err := http.Post(ts.URL+"/api/v1/merge", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()

	resp, err = http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "leadscrapexter_scraper_operation_duration_seconds")
}

func TestFilesAndStatistics(t *testing.T) {
	root := t.TempDir()
	seedOutput(t, root)
	ts, _ := setupTestServer(t, root, Config{})

	resp, err := http.Get(ts.URL + "/api/v1/files")
	require.NoError(t, err)
	var files struct {
		Files []string `json:"files"`
		Total int      `json:"total"`
	}
	decode(t, resp, &files)
	assert.Equal(t, 2, files.Total)

	resp, err = http.Get(ts.URL + "/api/v1/files?pattern=manta")
	require.NoError(t, err)
	decode(t, resp, &files)
	assert.Equal(t, 1, files.Total)

	resp, err = http.Get(ts.URL + "/api/v1/statistics")
	require.NoError(t, err)
	var stats output.Statistics
	decode(t, resp, &stats)
	assert.Equal(t, 3, stats.TotalRows)
	assert.Equal(t, map[string]int{"YellowPages": 2, "Manta": 1}, stats.BySource)
	assert.Equal(t, 3, stats.ByLocation["Austin, TX"])
}

func TestFiles_EmptyRoot(t *testing.T) {
	ts, _ := setupTestServer(t, t.TempDir()+"/missing", Config{})

	resp, err := http.Get(ts.URL + "/api/v1/files")
	require.NoError(t, err)
	var files struct {
		Files []string `json:"files"`
	}
	decode(t, resp, &files)
	assert.Equal(t, []string{}, files.Files)
}

func TestMerge(t *testing.T) {
	root := t.TempDir()
	seedOutput(t, root)
	ts, _ := setupTestServer(t, root, Config{})

	body := bytes.NewBufferString(`{"separate_sheets": true}`)
	resp, err := http.Post(ts.URL+"/api/v1/merge", "application/json", body)
	require.NoError(t, err)

	var result output.MergeResult
	decode(t, resp, &result)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, 3, result.Rows)
	require.Len(t, result.Sheets, 3)
	assert.Equal(t, output.SheetCombined, result.Sheets[2].Name)
	assert.True(t, strings.HasSuffix(result.OutputPath, ".xlsx"))
}

func TestMerge_Errors(t *testing.T) {
	root := t.TempDir()
	ts, _ := setupTestServer(t, root, Config{})

	resp, err := http.Post(ts.URL+"/api/v1/merge", "application/json", bytes.NewBufferString(`{"separate_sheets": "yes"}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Post(ts.URL+"/api/v1/merge", "application/json", bytes.NewBufferString(`{"bogus": 1}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Post(ts.URL+"/api/v1/merge", "application/json", bytes.NewBufferString(`{}`))
	require.NoError(t, err)
	var e errorResponse
	decode(t, resp, &e)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, e.Error, "no CSV files")

	resp, err = http.Get(ts.URL + "/api/v1/merge")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

type blockingBackend struct {
	release chan struct{}
	started chan struct{}
}

func (b *blockingBackend) Files(string) ([]string, error) { return nil, nil }

func (b *blockingBackend) Statistics(string) (*output.Statistics, error) {
	return nil, errors.MergeRead("/out/bad.csv", fmt.Errorf("bare quote"))
}

func (b *blockingBackend) Merge(output.MergeOptions) (*output.MergeResult, error) {
	close(b.started)
	<-b.release
	return &output.MergeResult{}, nil
}

func TestMerge_RejectsConcurrentMerge(t *testing.T) {
	backend := &blockingBackend{release: make(chan struct{}), started: make(chan struct{})}
	ts := httptest.NewServer(New(Config{}, backend, nil, nil, nil).Handler())
	defer ts.Close()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		resp, err := http.Post(ts.URL+"/api/v1/merge", "application/json", nil)
		if err == nil {
			resp.Body.Close()
		}
	}()
	<-backend.started

	resp, err := http.Post(ts.URL+"/api/v1/merge", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	close(backend.release)
	wg.Wait()
}

func TestStatistics_ErrorKind(t *testing.T) {
	backend := &blockingBackend{}
	ts := httptest.NewServer(New(Config{}, backend, nil, nil, nil).Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/v1/statistics")
	require.NoError(t, err)
	var e errorResponse
	decode(t, resp, &e)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "merge_read", e.Kind)
}

func TestRateLimit(t *testing.T) {
	ts, _ := setupTestServer(t, t.TempDir(), Config{RequestsPerSecond: 0.001, Burst: 2})

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		resp, err := http.Get(ts.URL + "/api/v1/files")
		require.NoError(t, err)
		resp.Body.Close()
		codes = append(codes, resp.StatusCode)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	// health is outside the limited subrouter
	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
