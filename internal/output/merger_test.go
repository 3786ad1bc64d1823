// internal/output/merger_test.go
package output

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/valpere/LeadScrapexter/internal/errors"
	"github.com/valpere/LeadScrapexter/pkg/types"
)

// seedAustin writes the two Yellow Pages pages for Austin, TX: 3 and 2 rows
func seedAustin(t *testing.T, root string) {
	t.Helper()
	exporter := NewExporter(root, nil, nil)
	_, err := exporter.Export(sampleRecords(types.SourceYellowPages, "Acme", "Bolt", "Crane"),
		types.SourceYellowPages, ExportOptions{Page: 1, Location: austin()})
	require.NoError(t, err)
	_, err = exporter.Export(sampleRecords(types.SourceYellowPages, "Delta", "Echo"),
		types.SourceYellowPages, ExportOptions{Page: 2, Location: austin()})
	require.NoError(t, err)
}

func sheetRows(t *testing.T, path, sheet string) [][]string {
	t.Helper()
	book, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer book.Close()
	rows, err := book.GetRows(sheet)
	require.NoError(t, err)
	return rows
}

func TestMerger_SingleSheetAustin(t *testing.T) {
	root := filepath.Join(t.TempDir(), "output")
	seedAustin(t, root)

	merger := NewMerger(root, nil, nil)
	result, err := merger.Merge(MergeOptions{})
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(root, "YellowPages", "Austin TX", "yellowpages_Austin_TX_contacts_merged.xlsx"), result.OutputPath)
	assert.Equal(t, 5, result.Rows)
	assert.Len(t, result.Files, 2)
	assert.Equal(t, []SheetSummary{{Name: SheetContacts, Rows: 5}}, result.Sheets)

	rows := sheetRows(t, result.OutputPath, SheetContacts)
	require.Len(t, rows, 6)
	assert.Equal(t, append(append([]string{}, CSVHeader...), SourceFileColumn), rows[0])
	for i, row := range rows[1:] {
		assert.Equal(t, []string{"1", "2", "3", "4", "5"}[i], row[0])
	}
	assert.Equal(t, "yellowpages_Austin_TX_contacts_Page1.csv", rows[1][len(rows[1])-1])
	assert.Equal(t, "yellowpages_Austin_TX_contacts_Page2.csv", rows[5][len(rows[5])-1])
	assert.Equal(t, "Echo", rows[5][1])
}

func TestMerger_SeparateSheets(t *testing.T) {
	root := t.TempDir()
	seedAustin(t, root)
	_, err := NewExporter(root, nil, nil).Export(sampleRecords(types.SourceManta, "Foxtrot"),
		types.SourceManta, ExportOptions{Page: 1, Location: austin()})
	require.NoError(t, err)

	result, err := NewMerger(root, nil, nil).Merge(MergeOptions{SeparateSheets: true})
	require.NoError(t, err)

	// Manta sorts first, so the workbook lands next to the Manta data
	assert.Equal(t, filepath.Join(root, "Manta", "Austin TX", "manta_Austin_TX_contacts_merged.xlsx"), result.OutputPath)
	assert.Equal(t, []SheetSummary{
		{Name: "Manta", Rows: 1},
		{Name: "YellowPages", Rows: 5},
		{Name: SheetCombined, Rows: 6},
	}, result.Sheets)

	manta := sheetRows(t, result.OutputPath, "Manta")
	require.Len(t, manta, 2)
	assert.Equal(t, "1", manta[1][0])

	yp := sheetRows(t, result.OutputPath, "YellowPages")
	require.Len(t, yp, 6)
	assert.Equal(t, "2", yp[1][0])
	assert.Equal(t, "6", yp[5][0])

	combined := sheetRows(t, result.OutputPath, SheetCombined)
	require.Len(t, combined, 7)
	assert.Equal(t, "1", combined[1][0])
	assert.Equal(t, "6", combined[6][0])
}

func TestMerger_Idempotent(t *testing.T) {
	root := t.TempDir()
	seedAustin(t, root)
	merger := NewMerger(root, nil, nil)

	first, err := merger.Merge(MergeOptions{SeparateSheets: true})
	require.NoError(t, err)
	second, err := merger.Merge(MergeOptions{SeparateSheets: true})
	require.NoError(t, err)

	assert.Equal(t, first.Rows, second.Rows)
	assert.Equal(t, first.Sheets, second.Sheets)
	assert.Equal(t, first.OutputPath, second.OutputPath)
}

func TestMerger_SkipsUnreadableFiles(t *testing.T) {
	root := t.TempDir()
	seedAustin(t, root)
	broken := filepath.Join(root, "YellowPages", "Austin TX", "yellowpages_Austin_TX_contacts_Page3.csv")
	require.NoError(t, os.WriteFile(broken, []byte("sno,businessName\n1,\"unterminated\n"), 0644))

	merger := NewMerger(root, nil, nil)
	result, err := merger.Merge(MergeOptions{})
	require.NoError(t, err)
	assert.Equal(t, 5, result.Rows)
	assert.Equal(t, []string{broken}, result.Skipped)

	stats, err := merger.Statistics("")
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalFiles)
	assert.Equal(t, 5, stats.TotalRows)
	assert.Equal(t, map[string]int{"YellowPages": 5}, stats.BySource)
	assert.Equal(t, map[string]int{"Austin, TX": 5}, stats.ByLocation)
	assert.Equal(t, []string{broken}, stats.Skipped)
}

func TestMerger_AllUnreadable(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "bad.csv"), nil, 0644))

	_, err := NewMerger(root, nil, nil).Merge(MergeOptions{})
	require.Error(t, err)
	assert.Equal(t, errors.KindMergeRead, errors.KindOf(err))
}

func TestMerger_NoFiles(t *testing.T) {
	_, err := NewMerger(t.TempDir(), nil, nil).Merge(MergeOptions{})
	assert.ErrorIs(t, err, ErrNoCSVFiles)

	_, err = NewMerger(filepath.Join(t.TempDir(), "missing"), nil, nil).Merge(MergeOptions{})
	assert.ErrorIs(t, err, ErrNoCSVFiles)
}

func TestMerger_PatternAndOutputName(t *testing.T) {
	root := t.TempDir()
	seedAustin(t, root)
	merger := NewMerger(root, nil, nil)

	files, err := merger.Files("Page2")
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.True(t, strings.HasSuffix(files[0], "yellowpages_Austin_TX_contacts_Page2.csv"))

	result, err := merger.Merge(MergeOptions{Pattern: "Page2", OutputName: "second_page"})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "YellowPages", "Austin TX", "second_page.xlsx"), result.OutputPath)
	assert.Equal(t, 2, result.Rows)
}

func TestMerger_RootFallback(t *testing.T) {
	root := t.TempDir()
	exporter := NewExporter(root, nil, nil)
	_, err := exporter.Export(sampleRecords(types.SourceManta, "Acme"), types.SourceManta, ExportOptions{})
	require.NoError(t, err)

	result, err := NewMerger(root, nil, nil).Merge(MergeOptions{})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "contacts_merged.xlsx"), result.OutputPath)
}

func TestSourceNameFromFilename(t *testing.T) {
	assert.Equal(t, "YellowPages", SourceNameFromFilename("yellowpages_Austin_TX_contacts_Page1.csv"))
	assert.Equal(t, "Manta", SourceNameFromFilename("export_manta_contacts.csv"))
	assert.Equal(t, "Acme", SourceNameFromFilename("acme_directory_contacts.csv"))
}

func TestSanitizeSheetName(t *testing.T) {
	assert.Equal(t, "YellowPages1", SanitizeSheetName("Yellow/Pages[1]:*?"))
	assert.Equal(t, "Sheet", SanitizeSheetName("[]"))
	assert.Len(t, []rune(SanitizeSheetName(strings.Repeat("x", 40))), 31)

	used := map[string]bool{}
	assert.Equal(t, "Manta", uniqueSheetName("Manta", used))
	assert.Equal(t, "manta_2", uniqueSheetName("manta", used))
	long := strings.Repeat("y", 31)
	assert.Equal(t, long, uniqueSheetName(long, used))
	assert.Equal(t, strings.Repeat("y", 29)+"_2", uniqueSheetName(long, used))
}

func TestColumnWidth(t *testing.T) {
	assert.Equal(t, 8.0, columnWidth("sno"))
	assert.Equal(t, 50.0, columnWidth("address"))
	assert.Equal(t, 35.0, columnWidth("email"))
	assert.Equal(t, 40.0, columnWidth("website"))
	assert.Equal(t, 30.0, columnWidth("businessName"))
	assert.Equal(t, 15.0, columnWidth("phone"))
}
