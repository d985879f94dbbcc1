package audit

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dagbolade/install-integrity-sidecar/internal/integrity"
)

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	entries := []Entry{}

	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}

	return entries, nil
}

func scanEntry(rows *sql.Rows) (Entry, error) {
	var e Entry
	var timestamp, effect string
	var rule sql.NullString

	err := rows.Scan(
		&e.ID, &e.ReportID, &timestamp, &e.PackageName, &e.VersionCode, &e.InstallerName,
		&effect, &e.Response, &e.RuleID, &rule, &e.AppCertCause, &e.InstallerCause,
	)
	if err != nil {
		return Entry{}, fmt.Errorf("scan row: %w", err)
	}

	parsedTime, err := parseTimestamp(timestamp)
	if err != nil {
		return Entry{}, err
	}
	e.Timestamp = parsedTime

	e.Effect, err = integrity.ParseEffect(effect)
	if err != nil {
		return Entry{}, fmt.Errorf("scan row: %w", err)
	}

	if rule.Valid {
		e.Rule = json.RawMessage(rule.String)
	}

	return e, nil
}

func parseTimestamp(timestamp string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, timestamp)
	if err == nil {
		return t, nil
	}

	// Fallback to SQLite datetime format
	t, err = time.Parse("2006-01-02 15:04:05", timestamp)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp: %w", err)
	}

	return t, nil
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}
