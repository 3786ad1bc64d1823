// internal/output/store.go
package output

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
	_ "github.com/lib/pq"              // PostgreSQL driver
	_ "github.com/mattn/go-sqlite3"    // SQLite driver

	"github.com/valpere/LeadScrapexter/internal/errors"
	"github.com/valpere/LeadScrapexter/pkg/types"
)

// Supported SQL drivers
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
)

var tableNameRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidTableName reports whether name can be interpolated into DDL as-is
func ValidTableName(name string) bool {
	return tableNameRegex.MatchString(name)
}

// ContactKey is the unique key of a stored contact: the business identity
// plus the email, so one business may keep several addresses
func ContactKey(r types.ContactRecord) string {
	return string(r.Identity()) + "|" + strings.ToLower(strings.TrimSpace(r.Email))
}

// dialect holds the statements that differ between SQL databases
type dialect struct {
	createTable string
	insert      string
}

func dialectFor(driver, table string) (dialect, error) {
	columns := "contact_key, business_name, website, address, email, phone, source, scraped_at"
	switch driver {
	case DriverSQLite:
		return dialect{
			createTable: fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				contact_key TEXT NOT NULL UNIQUE,
				business_name TEXT, website TEXT, address TEXT,
				email TEXT, phone TEXT, source TEXT,
				scraped_at TIMESTAMP
			)`, table),
			insert: fmt.Sprintf("INSERT OR IGNORE INTO %s (%s) VALUES (?, ?, ?, ?, ?, ?, ?, ?)", table, columns),
		}, nil
	case DriverPostgres:
		return dialect{
			createTable: fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
				id BIGSERIAL PRIMARY KEY,
				contact_key TEXT NOT NULL UNIQUE,
				business_name TEXT, website TEXT, address TEXT,
				email TEXT, phone TEXT, source TEXT,
				scraped_at TIMESTAMPTZ
			)`, table),
			insert: fmt.Sprintf("INSERT INTO %s (%s) VALUES ($1, $2, $3, $4, $5, $6, $7, $8) ON CONFLICT (contact_key) DO NOTHING", table, columns),
		}, nil
	case DriverMySQL:
		return dialect{
			createTable: fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
				id BIGINT AUTO_INCREMENT PRIMARY KEY,
				contact_key VARCHAR(512) NOT NULL,
				business_name TEXT, website TEXT, address TEXT,
				email TEXT, phone VARCHAR(32), source VARCHAR(32),
				scraped_at DATETIME,
				UNIQUE KEY uq_%s_contact_key (contact_key)
			) CHARACTER SET utf8mb4`, table, table),
			insert: fmt.Sprintf("INSERT IGNORE INTO %s (%s) VALUES (?, ?, ?, ?, ?, ?, ?, ?)", table, columns),
		}, nil
	default:
		return dialect{}, fmt.Errorf("unsupported database driver %q", driver)
	}
}

// ContactStore mirrors contact records into a SQL table. Records already
// stored under the same ContactKey are ignored.
type ContactStore struct {
	db      *sql.DB
	driver  string
	table   string
	dialect dialect
}

// OpenContactStore connects to dsn with driver and creates table if needed
func OpenContactStore(ctx context.Context, driver, dsn, table string) (*ContactStore, error) {
	if table == "" {
		table = "contacts"
	}
	if !ValidTableName(table) {
		return nil, errors.Config("open contact store", fmt.Errorf("invalid table name %q", table))
	}
	d, err := dialectFor(driver, table)
	if err != nil {
		return nil, errors.Config("open contact store", err)
	}
	if dsn == "" {
		return nil, errors.Config("open contact store", fmt.Errorf("%s DSN is required", driver))
	}

	if driver == DriverSQLite {
		if dir := filepath.Dir(dsn); dir != "." && !strings.HasPrefix(dsn, ":memory:") && !strings.HasPrefix(dsn, "file:") {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, errors.Persistence("create database directory", dir, err)
			}
		}
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, errors.Persistence("connect", driver, err)
	}
	if driver == DriverSQLite {
		// single writer
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Persistence("ping", driver, err)
	}

	s := &ContactStore{db: db, driver: driver, table: table, dialect: d}
	if err := s.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// EnsureSchema creates the contacts table if it does not exist
func (s *ContactStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, s.dialect.createTable); err != nil {
		return errors.Persistence("create table", s.table, err)
	}
	return nil
}

// Save inserts records in one transaction and returns how many were new
func (s *ContactStore) Save(ctx context.Context, records []types.ContactRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, errors.Persistence("begin transaction", s.table, err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, s.dialect.insert)
	if err != nil {
		return 0, errors.Persistence("prepare insert", s.table, err)
	}
	defer stmt.Close()

	inserted := 0
	for _, r := range records {
		res, err := stmt.ExecContext(ctx,
			ContactKey(r), r.BusinessName, r.Website, NormalizeAddress(r.Address),
			r.Email, types.FormatPhone(r.Phone), string(r.Source), r.ScrapedAt.UTC())
		if err != nil {
			return 0, errors.Persistence("insert contact", s.table, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			inserted += int(n)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, errors.Persistence("commit", s.table, err)
	}
	return inserted, nil
}

// Count returns the number of stored contacts
func (s *ContactStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+s.table).Scan(&n); err != nil {
		return 0, errors.Persistence("count contacts", s.table, err)
	}
	return n, nil
}

// Ping checks the connection
func (s *ContactStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Driver returns the SQL driver name
func (s *ContactStore) Driver() string {
	return s.driver
}

// Close closes the database
func (s *ContactStore) Close() error {
	return s.db.Close()
}
