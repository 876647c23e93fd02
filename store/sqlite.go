package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/tliron/commonlog"
	_ "modernc.org/sqlite" // SQLite driver
)

var log = commonlog.GetLogger("obli.store")

// ErrNotFound is returned when no artifact matches a key.
var ErrNotFound = errors.New("store: artifact not found")

// ErrAmbiguous is returned when a key prefix matches several artifacts.
var ErrAmbiguous = errors.New("store: ambiguous key prefix")

// Store is an artifact database. It is safe for concurrent use.
type Store struct {
	db   *sql.DB
	path string
	mu   sync.Mutex

	putStmt *sql.Stmt
}

// Open opens (creating if needed) the artifact database at path.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("store: db path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("store: failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite only supports single writer

	s := &Store{db: db, path: path}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: failed to initialize schema: %w", err)
	}
	s.putStmt, err = db.Prepare(`
		INSERT INTO artifacts (key, path, target, created_at, data)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET
			path = excluded.path,
			created_at = excluded.created_at,
			data = excluded.data`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("store: failed to prepare statements: %w", err)
	}
	log.Debugf("opened %s", path)
	return s, nil
}

func (s *Store) initSchema() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS artifacts (
		key TEXT PRIMARY KEY,
		path TEXT NOT NULL,
		target TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		data BLOB NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_artifacts_path ON artifacts(path, created_at);
	`)
	return err
}

// Put records an artifact, replacing any artifact with the same key.
func (s *Store) Put(ctx context.Context, a *Artifact) error {
	data, err := Marshal(a)
	if err != nil {
		return fmt.Errorf("store: marshal artifact: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.putStmt.ExecContext(ctx, a.Key, a.Path, a.Target, a.CreatedAt, data); err != nil {
		return fmt.Errorf("store: put %s: %w", a.Path, err)
	}
	return nil
}

// Get returns the artifact whose key starts with prefix.
func (s *Store) Get(ctx context.Context, prefix string) (*Artifact, error) {
	if prefix == "" || strings.ContainsAny(prefix, "%_") {
		return nil, fmt.Errorf("store: invalid key %q", prefix)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, `SELECT data FROM artifacts WHERE key LIKE ? ORDER BY key LIMIT 2`, prefix+"%")
	if err != nil {
		return nil, fmt.Errorf("store: get %s: %w", prefix, err)
	}
	defer rows.Close()

	var found [][]byte
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		found = append(found, data)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	switch len(found) {
	case 0:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, prefix)
	case 1:
		return Unmarshal(found[0])
	}
	return nil, fmt.Errorf("%w: %s", ErrAmbiguous, prefix)
}

// List returns every artifact, ordered by path and then newest first.
func (s *Store) List(ctx context.Context) ([]*Artifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, `SELECT data FROM artifacts ORDER BY path, created_at DESC, key`)
	if err != nil {
		return nil, fmt.Errorf("store: list: %w", err)
	}
	defer rows.Close()

	var out []*Artifact
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		a, err := Unmarshal(data)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// Close closes the database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.putStmt != nil {
		s.putStmt.Close()
	}
	return s.db.Close()
}
