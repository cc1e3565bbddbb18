// Package history keeps a record of builds in a SQLite database.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"git.home.luguber.info/inful/mrefbuilder/internal/foundation/errors"
)

// Record is one build.
type Record struct {
	ID            string
	StartedAt     time.Time
	Duration      time.Duration
	Status        string
	Output        string
	ConfigHash    string
	AddIns        []string
	Namespaces    int
	Types         int
	Members       int
	MergedTypes   int
	MergedMembers int
	Error         string
}

// Store defines the interface for persisting and retrieving build records.
type Store interface {
	Append(ctx context.Context, r Record) error
	// Recent returns up to n records, newest first.
	Recent(ctx context.Context, n int) ([]Record, error)
	Get(ctx context.Context, id string) (Record, error)
	// Prune deletes all but the newest keep records.
	Prune(ctx context.Context, keep int) (int, error)
	Close() error
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// Open opens or creates a history database. Use ":memory:" for an in-memory database.
func Open(dbPath string) (*SQLiteStore, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, errors.WrapError(err, errors.CategoryFileSystem, "could not create history directory").
				WithContext("path", dbPath).
				Build()
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryHistory, "could not open history database").
			WithContext("path", dbPath).
			Build()
	}
	// An in-memory database exists per connection.
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db}
	if err := store.initialize(); err != nil {
		_ = db.Close()
		return nil, errors.WrapError(err, errors.CategoryHistory, "failed to initialize history schema").Build()
	}
	return store, nil
}

func (s *SQLiteStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS builds (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		started_at INTEGER NOT NULL,
		duration_ms INTEGER NOT NULL,
		status TEXT NOT NULL,
		output TEXT NOT NULL,
		config_hash TEXT NOT NULL,
		addins TEXT,
		namespaces INTEGER NOT NULL,
		types INTEGER NOT NULL,
		members INTEGER NOT NULL,
		merged_types INTEGER NOT NULL,
		merged_members INTEGER NOT NULL,
		error TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_builds_started_at ON builds(started_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Append stores a build record.
func (s *SQLiteStore) Append(ctx context.Context, r Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	addins, err := json.Marshal(r.AddIns)
	if err != nil {
		return errors.WrapError(err, errors.CategoryHistory, "failed to marshal add-ins").Build()
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO builds (id, started_at, duration_ms, status, output, config_hash, addins,
			namespaces, types, members, merged_types, merged_members, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.StartedAt.UnixMilli(), r.Duration.Milliseconds(), r.Status, r.Output, r.ConfigHash, string(addins),
		r.Namespaces, r.Types, r.Members, r.MergedTypes, r.MergedMembers, r.Error,
	)
	if err != nil {
		return errors.WrapError(err, errors.CategoryHistory, "failed to append build record").
			WithContext("build_id", r.ID).
			Build()
	}
	return nil
}

const selectColumns = `SELECT id, started_at, duration_ms, status, output, config_hash, addins,
	namespaces, types, members, merged_types, merged_members, error FROM builds`

// Recent returns up to n records, newest first.
func (s *SQLiteStore) Recent(ctx context.Context, n int) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, selectColumns+" ORDER BY seq DESC LIMIT ?", n)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryHistory, "failed to query builds").Build()
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.WrapError(err, errors.CategoryHistory, "failed to iterate builds").Build()
	}
	return out, nil
}

// Get returns the record of one build.
func (s *SQLiteStore) Get(ctx context.Context, id string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, selectColumns+" WHERE id = ?", id)
	r, err := scanRecord(row)
	if stderrors.Is(err, sql.ErrNoRows) {
		return Record{}, errors.NewError(errors.CategoryNotFound, "build not found").
			WithContext("build_id", id).
			Build()
	}
	return r, err
}

// Prune deletes all but the newest keep records and returns the number deleted.
func (s *SQLiteStore) Prune(ctx context.Context, keep int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"DELETE FROM builds WHERE seq NOT IN (SELECT seq FROM builds ORDER BY seq DESC LIMIT ?)", keep)
	if err != nil {
		return 0, errors.WrapError(err, errors.CategoryHistory, "failed to prune builds").Build()
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.WrapError(err, errors.CategoryHistory, "failed to prune builds").Build()
	}
	return int(n), nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (Record, error) {
	var (
		r          Record
		startedAt  int64
		durationMS int64
		addins     sql.NullString
		errText    sql.NullString
	)
	err := row.Scan(&r.ID, &startedAt, &durationMS, &r.Status, &r.Output, &r.ConfigHash, &addins,
		&r.Namespaces, &r.Types, &r.Members, &r.MergedTypes, &r.MergedMembers, &errText)
	if stderrors.Is(err, sql.ErrNoRows) {
		return Record{}, err
	}
	if err != nil {
		return Record{}, errors.WrapError(err, errors.CategoryHistory, "failed to scan build record").Build()
	}

	r.StartedAt = time.UnixMilli(startedAt)
	r.Duration = time.Duration(durationMS) * time.Millisecond
	r.Error = errText.String
	if addins.Valid && addins.String != "" {
		if err := json.Unmarshal([]byte(addins.String), &r.AddIns); err != nil {
			return Record{}, errors.WrapError(err, errors.CategoryHistory, "failed to unmarshal add-ins").Build()
		}
	}
	return r, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}
