// internal/output/merger.go
package output

import (
	"encoding/csv"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/valpere/LeadScrapexter/internal/errors"
	"github.com/valpere/LeadScrapexter/internal/monitoring"
	"github.com/valpere/LeadScrapexter/internal/utils"
	"github.com/valpere/LeadScrapexter/pkg/types"
)

const (
	// SheetContacts is the sheet written when rows are not split by source
	SheetContacts = "Contacts"
	// SheetCombined is the extra sheet holding every row in separate-sheets mode
	SheetCombined = "All_Combined"
	// SourceFileColumn tags each merged row with the CSV it came from
	SourceFileColumn = "sourceFile"

	maxSheetNameLength = 31
)

// ErrNoCSVFiles is returned when a merge finds nothing to merge
var ErrNoCSVFiles = errors.ErrNothingToMerge

var identifierColumns = map[string]bool{
	"no.": true, "no": true, "id": true, "s.no": true, "s.no.": true,
	"sno": true, "serial": true, "#": true,
}

var sheetNameReplacer = strings.NewReplacer("[", "", "]", "", ":", "", "*", "", "?", "", "/", "", `\`, "")

// MergeOptions configures one merge
type MergeOptions struct {
	// Pattern keeps only files whose name contains it
	Pattern string `json:"pattern,omitempty"`
	// SeparateSheets writes one sheet per source plus an All_Combined sheet
	SeparateSheets bool `json:"separate_sheets"`
	// OutputName overrides the derived workbook name. A bare name is placed
	// next to the source data; a path is used as is.
	OutputName string `json:"output_name,omitempty"`
}

// SheetSummary describes one written sheet
type SheetSummary struct {
	Name string `json:"name"`
	Rows int    `json:"rows"`
}

// MergeResult is the outcome of a merge
type MergeResult struct {
	OutputPath string         `json:"output_path"`
	Files      []string       `json:"files"`
	Skipped    []string       `json:"skipped,omitempty"`
	Rows       int            `json:"rows"`
	Sheets     []SheetSummary `json:"sheets"`
}

// Statistics counts the rows of every matched CSV
type Statistics struct {
	TotalFiles int            `json:"total_files"`
	TotalRows  int            `json:"total_rows"`
	BySource   map[string]int `json:"by_source"`
	ByLocation map[string]int `json:"by_location"`
	Skipped    []string       `json:"skipped,omitempty"`
}

// Merger consolidates the contact CSVs under Root into workbooks
type Merger struct {
	Root    string
	logger  utils.Logger
	metrics *monitoring.MetricsManager
}

// NewMerger creates a merger rooted at root
func NewMerger(root string, logger utils.Logger, metrics *monitoring.MetricsManager) *Merger {
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	if root == "" {
		root = "output"
	}
	return &Merger{Root: root, logger: logger, metrics: metrics}
}

// Files walks Root recursively and returns every .csv path whose file
// name contains pattern, sorted
func (m *Merger) Files(pattern string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(m.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ".csv") {
			return nil
		}
		if pattern != "" && !strings.Contains(d.Name(), pattern) {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Persistence("scan directory", m.Root, err)
	}
	sort.Strings(files)
	return files, nil
}

// csvTable is one parsed CSV file
type csvTable struct {
	path   string
	header []string
	rows   [][]string
}

func readCSV(path string) (*csvTable, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("missing header row")
	}
	return &csvTable{path: path, header: records[0], rows: records[1:]}, nil
}

// readAll parses files, skipping the unreadable ones
func (m *Merger) readAll(files []string) ([]*csvTable, []string) {
	var tables []*csvTable
	var skipped []string
	for _, path := range files {
		table, err := readCSV(path)
		if err != nil {
			m.metrics.RecordMergeFile("skipped")
			m.logger.WithField("file", path).Warnf("skipping unreadable CSV: %v", errors.MergeRead(path, err))
			skipped = append(skipped, path)
			continue
		}
		m.metrics.RecordMergeFile("read")
		tables = append(tables, table)
	}
	return tables, skipped
}

// mergedRow is one data row keyed by column name
type mergedRow struct {
	values map[string]string
}

type rowGroup struct {
	name     string
	rows     []mergedRow
	combined bool
}

// Merge reads every matched CSV and writes a single workbook. Unreadable
// files are skipped; the merge fails only when nothing could be read or
// the workbook cannot be written.
func (m *Merger) Merge(opts MergeOptions) (*MergeResult, error) {
	files, err := m.Files(opts.Pattern)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, ErrNoCSVFiles
	}

	tables, skipped := m.readAll(files)
	if len(tables) == 0 {
		return nil, errors.MergeRead(m.Root, fmt.Errorf("all %d CSV files are unreadable", len(files)))
	}

	columns := unionColumns(tables)
	var all []mergedRow
	var groups []*rowGroup
	groupIndex := make(map[string]*rowGroup)

	for _, table := range tables {
		name := filepath.Base(table.path)
		source := SourceNameFromFilename(name)
		group, ok := groupIndex[source]
		if !ok {
			group = &rowGroup{name: source}
			groupIndex[source] = group
			groups = append(groups, group)
		}
		for _, row := range table.rows {
			values := make(map[string]string, len(columns))
			for i, col := range table.header {
				if i < len(row) {
					values[col] = row[i]
				}
			}
			values[SourceFileColumn] = name
			r := mergedRow{values: values}
			group.rows = append(group.rows, r)
			all = append(all, r)
		}
	}

	outputPath, err := m.outputPath(files[0], opts.OutputName)
	if err != nil {
		return nil, err
	}

	book := excelize.NewFile()
	defer book.Close()

	result := &MergeResult{OutputPath: outputPath, Skipped: skipped, Rows: len(all)}
	for _, t := range tables {
		result.Files = append(result.Files, t.path)
	}

	used := make(map[string]bool)
	var sheets []rowGroup
	if opts.SeparateSheets {
		for _, g := range groups {
			sheets = append(sheets, rowGroup{name: uniqueSheetName(SanitizeSheetName(g.name), used), rows: g.rows})
		}
		sheets = append(sheets, rowGroup{name: uniqueSheetName(SheetCombined, used), rows: all, combined: true})
	} else {
		sheets = append(sheets, rowGroup{name: SheetContacts, rows: all})
	}

	offset := 0
	for i, sheet := range sheets {
		start := 1
		if opts.SeparateSheets && !sheet.combined {
			// per-source sheets continue numbering from the previous one
			start = offset + 1
			offset += len(sheet.rows)
		}
		if err := writeSheet(book, i, sheet.name, columns, sheet.rows, start); err != nil {
			return nil, errors.Persistence("write sheet", outputPath, err)
		}
		result.Sheets = append(result.Sheets, SheetSummary{Name: sheet.name, Rows: len(sheet.rows)})
	}
	book.SetActiveSheet(0)

	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return nil, errors.Persistence("create directory", filepath.Dir(outputPath), err)
	}
	if err := book.SaveAs(outputPath); err != nil {
		m.metrics.RecordOutputError("merge")
		return nil, errors.Persistence("save workbook", outputPath, err)
	}

	m.logger.WithField("file", outputPath).Infof("merged %d rows from %d files into %d sheets",
		result.Rows, len(result.Files), len(result.Sheets))
	return result, nil
}

// Statistics counts files and rows without writing anything
func (m *Merger) Statistics(pattern string) (*Statistics, error) {
	files, err := m.Files(pattern)
	if err != nil {
		return nil, err
	}

	stats := &Statistics{BySource: make(map[string]int), ByLocation: make(map[string]int)}
	tables, skipped := m.readAll(files)
	stats.Skipped = skipped
	for _, table := range tables {
		name := filepath.Base(table.path)
		stats.TotalFiles++
		stats.TotalRows += len(table.rows)
		stats.BySource[SourceNameFromFilename(name)] += len(table.rows)
		if _, key, ok := LocationFromFilename(name); ok {
			stats.ByLocation[key.String()] += len(table.rows)
		}
	}
	return stats, nil
}

// outputPath places the workbook in the location directory of the first
// CSV, or in Root when its name carries no location
func (m *Merger) outputPath(firstFile, override string) (string, error) {
	name := filepath.Base(firstFile)
	dir := m.Root
	base := "contacts_merged.xlsx"
	if token, key, ok := LocationFromFilename(name); ok {
		dir = filepath.Join(m.Root, SourceNameFromFilename(name), key.Dir())
		base = fmt.Sprintf("%s_%s_contacts_merged.xlsx", strings.ToLower(token), key.FileToken())
	}

	if override == "" {
		return filepath.Join(dir, base), nil
	}
	if !strings.EqualFold(filepath.Ext(override), ".xlsx") {
		override += ".xlsx"
	}
	if filepath.IsAbs(override) || strings.ContainsRune(override, filepath.Separator) {
		return override, nil
	}
	return filepath.Join(dir, override), nil
}

func writeSheet(book *excelize.File, index int, name string, columns []string, rows []mergedRow, firstSerial int) error {
	if index == 0 {
		if err := book.SetSheetName(book.GetSheetName(0), name); err != nil {
			return err
		}
	} else if _, err := book.NewSheet(name); err != nil {
		return err
	}

	header := make([]interface{}, len(columns))
	for i, col := range columns {
		header[i] = col
	}
	if err := book.SetSheetRow(name, "A1", &header); err != nil {
		return err
	}

	for i, row := range rows {
		values := make([]interface{}, len(columns))
		for j, col := range columns {
			if isIdentifierColumn(col) {
				values[j] = firstSerial + i
			} else {
				values[j] = row.values[col]
			}
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := book.SetSheetRow(name, cell, &values); err != nil {
			return err
		}
	}

	for i, col := range columns {
		colName, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := book.SetColWidth(name, colName, colName, columnWidth(col)); err != nil {
			return err
		}
	}

	style, err := book.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E0E0E0"}, Pattern: 1},
	})
	if err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(len(columns), 1)
	if err != nil {
		return err
	}
	if err := book.SetCellStyle(name, "A1", last, style); err != nil {
		return err
	}

	return book.SetPanes(name, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

// unionColumns returns every header in first-seen order, then sourceFile
func unionColumns(tables []*csvTable) []string {
	seen := map[string]bool{SourceFileColumn: true}
	var columns []string
	for _, t := range tables {
		for _, col := range t.header {
			if !seen[col] {
				seen[col] = true
				columns = append(columns, col)
			}
		}
	}
	return append(columns, SourceFileColumn)
}

func isIdentifierColumn(name string) bool {
	return identifierColumns[strings.ToLower(strings.TrimSpace(name))]
}

// columnWidth picks a width from the header text
func columnWidth(header string) float64 {
	h := strings.ToLower(header)
	switch {
	case isIdentifierColumn(header):
		return 8
	case strings.Contains(h, "address"):
		return 50
	case strings.Contains(h, "website") || strings.Contains(h, "url"):
		return 40
	case strings.Contains(h, "email"):
		return 35
	case strings.Contains(h, "name"), h == SourceFileColumn:
		return 30
	default:
		return 15
	}
}

// SourceNameFromFilename returns the canonical source of a contact file:
// a known source token anywhere in the name, else the first
// underscore-delimited segment title-cased
func SourceNameFromFilename(name string) string {
	base := strings.ToLower(filepath.Base(name))
	for _, src := range types.ValidSources() {
		if strings.Contains(base, string(src)) {
			return src.CanonicalName()
		}
	}
	first := strings.SplitN(strings.TrimSuffix(filepath.Base(name), filepath.Ext(name)), "_", 2)[0]
	if first == "" {
		return "Unknown"
	}
	return cases.Title(language.English).String(first)
}

// SanitizeSheetName strips characters Excel rejects and truncates to 31 runes
func SanitizeSheetName(name string) string {
	name = strings.Trim(sheetNameReplacer.Replace(strings.TrimSpace(name)), "'")
	if name == "" {
		name = "Sheet"
	}
	if runes := []rune(name); len(runes) > maxSheetNameLength {
		name = string(runes[:maxSheetNameLength])
	}
	return name
}

// uniqueSheetName appends a counter until name is unused, case-insensitively
func uniqueSheetName(name string, used map[string]bool) string {
	candidate := name
	for n := 2; used[strings.ToLower(candidate)]; n++ {
		suffix := "_" + strconv.Itoa(n)
		runes := []rune(name)
		if len(runes)+len(suffix) > maxSheetNameLength {
			runes = runes[:maxSheetNameLength-len(suffix)]
		}
		candidate = string(runes) + suffix
	}
	used[strings.ToLower(candidate)] = true
	return candidate
}
