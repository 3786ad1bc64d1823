// internal/output/exporter_test.go
package output

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valpere/LeadScrapexter/internal/errors"
	"github.com/valpere/LeadScrapexter/internal/monitoring"
	"github.com/valpere/LeadScrapexter/pkg/types"
)

var testTime = time.Date(2024, 3, 9, 14, 30, 0, 0, time.UTC)

func sampleRecords(source types.Source, names ...string) []types.ContactRecord {
	records := make([]types.ContactRecord, 0, len(names))
	for i, name := range names {
		records = append(records, types.ContactRecord{
			BusinessName: name,
			Website:      "https://example.com/" + strconv.Itoa(i),
			Address:      "3300 Arctic Blvd Ste 102Anchorage, AK 99503",
			Email:        "info" + strconv.Itoa(i) + "@example.com",
			Phone:        "907555010" + strconv.Itoa(i),
			Source:       source,
			ScrapedAt:    testTime,
		})
	}
	return records
}

func readRows(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func austin() *LocationKey {
	key := NewLocationKey("Austin", "TX")
	return &key
}

func TestExporter_Export(t *testing.T) {
	root := t.TempDir()
	metrics := monitoring.NewMetricsManager(monitoring.MetricsConfig{})
	exporter := NewExporter(root, nil, metrics)

	path, err := exporter.Export(sampleRecords(types.SourceYellowPages, "Acme", "Bolt", "Crane"),
		types.SourceYellowPages, ExportOptions{Page: 1, Location: austin()})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "YellowPages", "Austin TX", "yellowpages_Austin_TX_contacts_Page1.csv"), path)

	rows := readRows(t, path)
	require.Len(t, rows, 4)
	assert.Equal(t, CSVHeader, rows[0])
	for i, row := range rows[1:] {
		assert.Equal(t, strconv.Itoa(i+1), row[0])
	}
	assert.Equal(t, "Acme", rows[1][1])
	assert.Equal(t, "3300 Arctic Blvd, Ste 102, Anchorage, AK 99503", rows[1][3])
	assert.Equal(t, "(907) 555-0100", rows[1][5])
	assert.Equal(t, "yellowpages", rows[1][6])
	assert.Equal(t, "2024-03-09T14:30:00Z", rows[1][7])
}

func TestExporter_ExportTimestampedWithoutLocation(t *testing.T) {
	root := t.TempDir()
	exporter := NewExporter(root, nil, nil)
	exporter.now = func() time.Time { return testTime }

	path, err := exporter.Export(sampleRecords(types.SourceManta, "Acme"), types.SourceManta, ExportOptions{})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "manta_contacts_20240309_143000.csv"), path)
}

func TestExporter_ExportEmptyWritesHeader(t *testing.T) {
	exporter := NewExporter(t.TempDir(), nil, nil)

	path, err := exporter.Export(nil, types.SourceManta, ExportOptions{Page: 3, Location: austin()})
	require.NoError(t, err)

	rows := readRows(t, path)
	require.Len(t, rows, 1)
	assert.Equal(t, CSVHeader, rows[0])
}

func TestExporter_AppendContinuesSerials(t *testing.T) {
	exporter := NewExporter(t.TempDir(), nil, nil)

	path, err := exporter.Export(sampleRecords(types.SourceYellowPages, "Acme", "Bolt", "Crane"),
		types.SourceYellowPages, ExportOptions{Page: 1, Location: austin()})
	require.NoError(t, err)

	n, err := exporter.Append(path, sampleRecords(types.SourceYellowPages, "Delta", "Echo"))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	rows := readRows(t, path)
	require.Len(t, rows, 6)
	assert.Equal(t, CSVHeader, rows[0])
	for i, row := range rows[1:] {
		assert.Equal(t, strconv.Itoa(i+1), row[0])
	}
	assert.Equal(t, "Delta", rows[4][1])
	assert.Equal(t, "3300 Arctic Blvd, Ste 102, Anchorage, AK 99503", rows[5][3])

	records, err := ReadContacts(path)
	require.NoError(t, err)
	require.Len(t, records, 5)
	assert.Equal(t, 5, records[4].Serial)
	assert.Equal(t, testTime, records[4].ScrapedAt)
}

func TestExporter_AppendMissingFileFails(t *testing.T) {
	exporter := NewExporter(t.TempDir(), nil, nil)

	_, err := exporter.Append(filepath.Join(exporter.Root, "missing.csv"), sampleRecords(types.SourceManta, "Acme"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrPersistence))
	assert.Equal(t, errors.KindPersistence, errors.KindOf(err))
}

func TestExporter_ExportUnwritableRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(root, []byte("x"), 0644))

	exporter := NewExporter(root, nil, nil)
	_, err := exporter.Export(sampleRecords(types.SourceManta, "Acme"), types.SourceManta, ExportOptions{Page: 1, Location: austin()})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrPersistence))
}
