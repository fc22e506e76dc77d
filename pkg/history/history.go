/*
Package history keeps completed probe runs in a SQLite database, so that a
new matrix can be compared with earlier runs over the same toolchains.
*/
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/tmaxmax/abiprobe/pkg/probe"
)

// ErrNotFound is returned when no run matches a query.
var ErrNotFound = errors.New("history: run not found")

// Run is a stored probe run.
type Run struct {
	ID uuid.UUID
	// Key identifies the ordered toolchain set, as returned by probe.Key.
	Key      string
	Started  time.Time
	Duration time.Duration
	Host     string
	Matrix   *probe.Matrix
}

// Store persists runs in SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// Open opens or creates the history database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("history: failed to open %s: %w", path, err)
	}

	// A single connection keeps in-memory databases alive and serializes writers.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.initDB(); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: failed to initialize %s: %w", path, err)
	}

	return s, nil
}

func (s *Store) initDB() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		toolchains TEXT NOT NULL,
		started INTEGER NOT NULL,
		duration INTEGER NOT NULL,
		host TEXT NOT NULL DEFAULT '',
		matrix TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_toolchains_started ON runs(toolchains, started DESC);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started DESC);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Save stores m under a new run ID.
func (s *Store) Save(ctx context.Context, m *probe.Matrix) (uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := uuid.NewV7()
	if err != nil {
		return uuid.Nil, fmt.Errorf("history: failed to generate run id: %w", err)
	}

	data, err := json.Marshal(m)
	if err != nil {
		return uuid.Nil, fmt.Errorf("history: failed to encode matrix: %w", err)
	}

	query := `
	INSERT INTO runs (id, toolchains, started, duration, host, matrix)
	VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err = s.db.ExecContext(ctx, query, id.String(), m.Key(), m.Started.UnixNano(), int64(m.Duration), m.Host, string(data))
	if err != nil {
		return uuid.Nil, fmt.Errorf("history: failed to save run: %w", err)
	}

	return id, nil
}

const selectRun = `SELECT id, toolchains, started, duration, host, matrix FROM runs`

// Get returns the run with the given ID.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return scanRun(s.db.QueryRowContext(ctx, selectRun+` WHERE id = ?`, id.String()))
}

// Previous returns the latest run over the given toolchain key that started before the given time.
func (s *Store) Previous(ctx context.Context, key string, before time.Time) (*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := selectRun + ` WHERE toolchains = ? AND started < ? ORDER BY started DESC LIMIT 1`
	return scanRun(s.db.QueryRowContext(ctx, query, key, before.UnixNano()))
}

// List returns at most limit runs, newest first. A limit below 1 returns all runs.
func (s *Store) List(ctx context.Context, limit int) ([]*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit < 1 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx, selectRun+` ORDER BY started DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("history: failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: failed to list runs: %w", err)
	}

	return runs, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	var (
		r        Run
		id       string
		started  int64
		duration int64
		data     string
	)

	err := row.Scan(&id, &r.Key, &started, &duration, &r.Host, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("history: failed to read run: %w", err)
	}

	if r.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("history: corrupt run id %q: %w", id, err)
	}

	r.Started = time.Unix(0, started)
	r.Duration = time.Duration(duration)

	r.Matrix = &probe.Matrix{}
	if err := json.Unmarshal([]byte(data), r.Matrix); err != nil {
		return nil, fmt.Errorf("history: corrupt matrix for run %s: %w", id, err)
	}

	return &r, nil
}
