package audit

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/dagbolade/install-integrity-sidecar/internal/integrity"
	_ "modernc.org/sqlite"
)

type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db, now: time.Now}

	if err := store.initializeSchema(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

// Log appends an entry. A zero Timestamp is set to the current time.
func (s *SQLiteStore) Log(ctx context.Context, entry Entry) error {
	if err := validateEntry(entry); err != nil {
		return err
	}

	if entry.Timestamp.IsZero() {
		entry.Timestamp = s.now()
	}

	return s.insertEntry(ctx, entry)
}

func (s *SQLiteStore) GetAll(ctx context.Context) ([]Entry, error) {
	rows, err := s.queryAllEntries(ctx)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanEntries(rows)
}

// Summary counts entries per logging response.
func (s *SQLiteStore) Summary(ctx context.Context) (map[integrity.Response]int, error) {
	rows, err := s.db.QueryContext(ctx, querySummary)
	if err != nil {
		return nil, fmt.Errorf("query summary: %w", err)
	}
	defer rows.Close()

	counts := make(map[integrity.Response]int)
	for rows.Next() {
		var resp integrity.Response
		var count int
		if err := rows.Scan(&resp, &count); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		counts[resp] = count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}

	return counts, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initializeSchema() error {
	for _, stmt := range schemaStatements() {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("execute schema: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) insertEntry(ctx context.Context, e Entry) error {
	const maxRetries = 3
	var err error

	var rule any
	if len(e.Rule) > 0 {
		rule = string(e.Rule)
	}

	for attempt := 0; attempt < maxRetries; attempt++ {
		_, err = s.db.ExecContext(ctx, queryInsertEntry,
			e.ReportID, formatTimestamp(e.Timestamp), e.PackageName, e.VersionCode, e.InstallerName,
			e.Effect.String(), int64(e.Response), e.RuleID, rule, e.AppCertCause, e.InstallerCause,
		)
		if err == nil {
			return nil
		}

		if strings.Contains(err.Error(), "database is locked") || strings.Contains(err.Error(), "SQLITE_BUSY") {
			backoff := time.Duration(attempt+1) * 10 * time.Millisecond
			time.Sleep(backoff)
			continue
		}

		return fmt.Errorf("insert entry: %w", err)
	}

	return fmt.Errorf("insert entry after %d retries: %w", maxRetries, err)
}

func (s *SQLiteStore) queryAllEntries(ctx context.Context) (*sql.Rows, error) {
	rows, err := s.db.QueryContext(ctx, querySelectAll)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	return rows, nil
}
