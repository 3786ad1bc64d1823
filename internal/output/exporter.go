// internal/output/exporter.go
package output

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/valpere/LeadScrapexter/internal/errors"
	"github.com/valpere/LeadScrapexter/internal/monitoring"
	"github.com/valpere/LeadScrapexter/internal/utils"
	"github.com/valpere/LeadScrapexter/pkg/types"
)

// CSVHeader is the exact header row of every contact file
var CSVHeader = []string{"sno", "businessName", "website", "address", "email", "phone", "source", "scrapedAt"}

const timestampLayout = "20060102_150405"

// ExportOptions selects the file a page of records is written to
type ExportOptions struct {
	// Page names the file "..._contacts_Page<N>.csv"; zero uses a timestamp
	Page     int
	Location *LocationKey
}

// Exporter writes contact records as CSV files under a
// <Root>/<Source>/<City> <State>/ directory layout
type Exporter struct {
	Root    string
	logger  utils.Logger
	metrics *monitoring.MetricsManager
	now     func() time.Time
}

// NewExporter creates an exporter rooted at root
func NewExporter(root string, logger utils.Logger, metrics *monitoring.MetricsManager) *Exporter {
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	if root == "" {
		root = "output"
	}
	return &Exporter{
		Root:    root,
		logger:  logger,
		metrics: metrics,
		now:     time.Now,
	}
}

// Dir returns the directory records of source and location are written to
func (e *Exporter) Dir(source types.Source, location *LocationKey) string {
	if location == nil || location.IsZero() {
		return e.Root
	}
	return filepath.Join(e.Root, source.CanonicalName(), location.Dir())
}

// FileName derives the CSV file name for source and opts
func (e *Exporter) FileName(source types.Source, opts ExportOptions) string {
	prefix := string(source)
	if opts.Location != nil && !opts.Location.IsZero() {
		prefix += "_" + opts.Location.FileToken()
	}
	if opts.Page > 0 {
		return fmt.Sprintf("%s_contacts_Page%d.csv", prefix, opts.Page)
	}
	return fmt.Sprintf("%s_contacts_%s.csv", prefix, e.now().Format(timestampLayout))
}

// Export writes records to a new file with a header and serials 1..N.
// An existing file of the same name is replaced.
func (e *Exporter) Export(records []types.ContactRecord, source types.Source, opts ExportOptions) (string, error) {
	dir := e.Dir(source, opts.Location)
	if err := os.MkdirAll(dir, 0755); err != nil {
		e.metrics.RecordOutputError("mkdir")
		return "", errors.Persistence("create directory", dir, err)
	}

	path := filepath.Join(dir, e.FileName(source, opts))
	file, err := os.Create(path)
	if err != nil {
		e.metrics.RecordOutputError("create")
		return "", errors.Persistence("create file", path, err)
	}
	defer file.Close()

	if err := writeRows(file, records, 1, true); err != nil {
		e.metrics.RecordOutputError("write")
		return "", errors.Persistence("write contacts", path, err)
	}
	if err := file.Close(); err != nil {
		e.metrics.RecordOutputError("close")
		return "", errors.Persistence("close file", path, err)
	}

	e.metrics.RecordRowsWritten(string(source), "export", len(records))
	e.logger.WithField("file", path).Infof("wrote %d contacts", len(records))
	return path, nil
}

// Append adds records to an existing file without a header, continuing the
// serial numbers. It fails if path does not exist.
func (e *Exporter) Append(path string, records []types.ContactRecord) (int, error) {
	existing, err := countRows(path)
	if err != nil {
		e.metrics.RecordOutputError("append")
		return 0, errors.Persistence("read existing file", path, err)
	}

	file, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		e.metrics.RecordOutputError("append")
		return 0, errors.Persistence("open file", path, err)
	}
	defer file.Close()

	if err := writeRows(file, records, existing+1, existing == 0 && isEmpty(file)); err != nil {
		e.metrics.RecordOutputError("write")
		return 0, errors.Persistence("append contacts", path, err)
	}
	if err := file.Close(); err != nil {
		e.metrics.RecordOutputError("close")
		return 0, errors.Persistence("close file", path, err)
	}

	source := ""
	if len(records) > 0 {
		source = string(records[0].Source)
	}
	e.metrics.RecordRowsWritten(source, "append", len(records))
	e.logger.WithField("file", path).Infof("appended %d contacts after row %d", len(records), existing)
	return len(records), nil
}

// ReadContacts loads a contact CSV written by Export or Append
func ReadContacts(path string) ([]types.ContactRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	rows, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	index := make(map[string]int, len(rows[0]))
	for i, name := range rows[0] {
		index[name] = i
	}
	field := func(row []string, name string) string {
		if i, ok := index[name]; ok && i < len(row) {
			return row[i]
		}
		return ""
	}

	records := make([]types.ContactRecord, 0, len(rows)-1)
	for _, row := range rows[1:] {
		serial, _ := strconv.Atoi(field(row, "sno"))
		scrapedAt, _ := time.Parse(time.RFC3339, field(row, "scrapedAt"))
		records = append(records, types.ContactRecord{
			Serial:       serial,
			BusinessName: field(row, "businessName"),
			Website:      field(row, "website"),
			Address:      field(row, "address"),
			Email:        field(row, "email"),
			Phone:        field(row, "phone"),
			Source:       types.Source(field(row, "source")),
			ScrapedAt:    scrapedAt,
		})
	}
	return records, nil
}

func writeRows(w io.Writer, records []types.ContactRecord, firstSerial int, header bool) error {
	writer := csv.NewWriter(w)
	if header {
		if err := writer.Write(CSVHeader); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
	}
	for i, r := range records {
		if err := writer.Write(contactRow(r, firstSerial+i)); err != nil {
			return fmt.Errorf("failed to write record: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}

func contactRow(r types.ContactRecord, serial int) []string {
	scrapedAt := ""
	if !r.ScrapedAt.IsZero() {
		scrapedAt = r.ScrapedAt.UTC().Format(time.RFC3339)
	}
	return []string{
		strconv.Itoa(serial),
		r.BusinessName,
		r.Website,
		NormalizeAddress(r.Address),
		r.Email,
		types.FormatPhone(r.Phone),
		string(r.Source),
		scrapedAt,
	}
}

// countRows returns the number of data rows in an existing contact file
func countRows(path string) (int, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	rows := 0
	for {
		_, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, err
		}
		rows++
	}
	if rows == 0 {
		return 0, nil
	}
	return rows - 1, nil
}

func isEmpty(file *os.File) bool {
	info, err := file.Stat()
	return err == nil && info.Size() == 0
}
