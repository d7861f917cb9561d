// Package store persists cleaned event batches to the relational store.
// Inserts are bulk, transactional, and conflict-skipping on the
// (site_name, event_id) natural key: an event already written by an
// earlier run is silently skipped, never updated.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/tributary-data/tributary/internal/errors"
	"github.com/tributary-data/tributary/internal/event"
	"github.com/tributary-data/tributary/internal/formpayload"
)

// timestampLayout preserves microsecond precision through a round-trip.
const timestampLayout = "2006-01-02T15:04:05.000000Z07:00"

// columns is the persisted column order: every relevant collector field
// plus the two pipeline-added fields.
var columns = append(event.Relevant(), event.FieldSiteName, event.FieldFormSubmitIsNewsletter)

// Store is the SQLite-backed events store.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens (creating if necessary) the events database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, errors.NewStoreError("failed to open events database", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{db: db, path: path}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	defs := make([]string, 0, len(columns))
	for _, c := range columns {
		defs = append(defs, fmt.Sprintf("%s %s", c, sqliteType(c)))
	}
	stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS events (
		%s,
		PRIMARY KEY (%s, %s)
	)`, strings.Join(defs, ",\n\t\t"), event.FieldSiteName, event.FieldEventID)

	if _, err := s.db.Exec(stmt); err != nil {
		return errors.NewStoreError("failed to create events table", err)
	}
	return nil
}

func sqliteType(f event.Field) string {
	kind, _ := f.KindOf()
	switch kind {
	case event.KindInt, event.KindBool:
		return "INTEGER"
	case event.KindFloat:
		return "REAL"
	default:
		return "TEXT"
	}
}

// WriteEvents bulk-inserts a cleaned batch inside one transaction, skipping
// rows whose natural key already exists. It returns the number of rows
// actually inserted; the caller logs inserted versus skipped.
func (s *Store) WriteEvents(ctx context.Context, batch event.Batch) (int, error) {
	if len(batch) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, errors.NewStoreError("failed to begin transaction", err)
	}
	defer tx.Rollback()

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(columns)), ",")
	names := make([]string, len(columns))
	for i, c := range columns {
		names[i] = string(c)
	}
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
		"INSERT OR IGNORE INTO events (%s) VALUES (%s)",
		strings.Join(names, ", "), placeholders,
	))
	if err != nil {
		return 0, errors.NewStoreError("failed to prepare insert", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, row := range batch {
		args := make([]interface{}, len(columns))
		for i, c := range columns {
			v, err := serializeValue(row[c])
			if err != nil {
				return 0, err
			}
			args[i] = v
		}

		res, err := stmt.ExecContext(ctx, args...)
		if err != nil {
			return 0, errors.NewStoreError("failed to insert event row", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, errors.NewStoreError("failed to count inserted rows", err)
		}
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, errors.NewStoreError("failed to commit batch", err)
	}
	return inserted, nil
}

// ReadEvents loads all persisted rows for one publisher, with cell values
// restored to their registry kinds. Used by round-trip tests and ad-hoc
// inspection.
func (s *Store) ReadEvents(ctx context.Context, siteName string) (event.Batch, error) {
	names := make([]string, len(columns))
	for i, c := range columns {
		names[i] = string(c)
	}
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(
		"SELECT %s FROM events WHERE %s = ?", strings.Join(names, ", "), event.FieldSiteName,
	), siteName)
	if err != nil {
		return nil, errors.NewStoreError("failed to query events", err)
	}
	defer rows.Close()

	var batch event.Batch
	for rows.Next() {
		cells := make([]interface{}, len(columns))
		ptrs := make([]interface{}, len(columns))
		for i := range cells {
			ptrs[i] = &cells[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, errors.NewStoreError("failed to scan event row", err)
		}

		row := make(event.Row, len(columns))
		for i, c := range columns {
			v, err := deserializeValue(c, cells[i])
			if err != nil {
				return nil, err
			}
			row[c] = v
		}
		batch = append(batch, row)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewStoreError("failed to iterate events", err)
	}
	return batch, nil
}

// serializeValue maps a typed cell to its SQL representation. Timestamps
// become RFC3339 strings with microsecond precision; payloads become
// normalized JSON text; nil stays NULL.
func serializeValue(v interface{}) (interface{}, error) {
	switch tv := v.(type) {
	case nil:
		return nil, nil
	case string, int64, float64, bool:
		return tv, nil
	case time.Time:
		return tv.UTC().Format(timestampLayout), nil
	case *formpayload.Raw:
		if tv == nil {
			return nil, nil
		}
		encoded, err := json.Marshal(tv.Data)
		if err != nil {
			return nil, errors.NewStoreError("failed to serialize payload", err)
		}
		return string(encoded), nil
	default:
		return nil, errors.NewStoreError(fmt.Sprintf("unsupported cell type %T", v), nil)
	}
}

// deserializeValue restores a scanned SQL value to the field's registry kind.
func deserializeValue(f event.Field, v interface{}) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	kind, _ := f.KindOf()

	switch kind {
	case event.KindInt:
		n, ok := v.(int64)
		if !ok {
			return nil, errors.NewStoreError(fmt.Sprintf("column %s holds %T, want int64", f, v), nil)
		}
		return n, nil
	case event.KindBool:
		n, ok := v.(int64)
		if !ok {
			return nil, errors.NewStoreError(fmt.Sprintf("column %s holds %T, want int64", f, v), nil)
		}
		return n != 0, nil
	case event.KindFloat:
		switch fv := v.(type) {
		case float64:
			return fv, nil
		case int64:
			return float64(fv), nil
		}
		return nil, errors.NewStoreError(fmt.Sprintf("column %s holds %T, want float", f, v), nil)
	case event.KindDatetime:
		s, ok := asString(v)
		if !ok {
			return nil, errors.NewStoreError(fmt.Sprintf("column %s holds %T, want text", f, v), nil)
		}
		t, err := time.Parse(timestampLayout, s)
		if err != nil {
			return nil, errors.NewStoreError("failed to parse stored timestamp", err)
		}
		return t.UTC(), nil
	case event.KindJSON:
		s, ok := asString(v)
		if !ok {
			return nil, errors.NewStoreError(fmt.Sprintf("column %s holds %T, want text", f, v), nil)
		}
		data, err := formpayload.Decode(s)
		if err != nil {
			return nil, err
		}
		return &formpayload.Raw{Source: s, Data: data}, nil
	default:
		s, ok := asString(v)
		if !ok {
			return nil, errors.NewStoreError(fmt.Sprintf("column %s holds %T, want text", f, v), nil)
		}
		return s, nil
	}
}

func asString(v interface{}) (string, bool) {
	switch tv := v.(type) {
	case string:
		return tv, true
	case []byte:
		return string(tv), true
	}
	return "", false
}
