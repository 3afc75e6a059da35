package settings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/glebarez/go-sqlite"
)

// SQLiteStore keeps option records in an SQLite table, one row per scope and key.
type SQLiteStore struct {
	db         *sql.DB
	scope      Scope
	writeMutex *sync.Mutex
}

// NewSQLiteStore creates a new store with the given filename as the db.
// If file name is empty, a new in-memory db is opened.
func NewSQLiteStore(filename string, scope Scope) SQLiteStore {
	if filename == "" {
		filename = "file::memory:?cache=shared"
	}
	db, err := sql.Open("sqlite", filename)
	if err != nil {
		panic(err)
	}
	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS options (
		scope TEXT NOT NULL,
		key TEXT NOT NULL,
		value BLOB,
		updated_at INTEGER,
		PRIMARY KEY (scope, key)
	)`)
	if err != nil {
		panic(err)
	}
	_, err = db.Exec("PRAGMA journal_mode=WAL")
	if err != nil {
		panic(err)
	}
	return SQLiteStore{
		db:         db,
		scope:      scope,
		writeMutex: &sync.Mutex{},
	}
}

// WithScope returns a store sharing the same db but operating on another scope.
func (s SQLiteStore) WithScope(scope Scope) SQLiteStore {
	s.scope = scope
	return s
}

func (s SQLiteStore) Get(ctx context.Context, key string) (map[string]any, bool, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx,
		"SELECT value FROM options WHERE scope = ? AND key = ?", string(s.scope), key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("settings: read %s/%s: %w", s.scope, key, err)
	}
	record, err := decodeRecord(value)
	if err != nil {
		return nil, false, err
	}
	return record, true, nil
}

func (s SQLiteStore) Set(ctx context.Context, key string, value map[string]any) error {
	b, err := encodeRecord(value)
	if err != nil {
		return err
	}
	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()
	_, err = s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO options (scope, key, value, updated_at) VALUES (?, ?, ?, ?)",
		string(s.scope), key, b, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("settings: write %s/%s: %w", s.scope, key, err)
	}
	return nil
}

// Close closes the underlying db.
func (s SQLiteStore) Close() error {
	return s.db.Close()
}
