package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/abramin/xreflens/internal/merge"
	"github.com/abramin/xreflens/internal/model"
)

var (
	// ErrReadOnly is returned by writes against a store opened read-only.
	ErrReadOnly = errors.New("store is read-only")
	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("store is closed")
)

// Store is a persistent associative store from string keys to nested
// JSON values, backed by SQLite.
//
// Writes are buffered and reach the database on Sync or Close. Reads see
// buffered writes. Only one process should hold a store open for writing.
type Store struct {
	db       *sql.DB
	dbPath   string
	readOnly bool

	mu      sync.Mutex
	closed  bool
	pending map[string]any
	deleted map[string]struct{}
}

// OpenProject creates or opens the index database of a project, stored at
// .xreflens/index.db relative to the given directory.
func OpenProject(projectDir string) (*Store, error) {
	return Open(filepath.Join(projectDir, ".xreflens", "index.db"), Options{})
}

// Open creates or opens a store at dbPath.
func Open(dbPath string, opts Options) (*Store, error) {
	if opts.ReadOnly {
		if _, err := os.Stat(dbPath); err != nil {
			return nil, fmt.Errorf("opening %s: %w", dbPath, err)
		}
	} else if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = -64000", // 64MB cache
	}
	if opts.ReadOnly {
		pragmas = []string{
			"PRAGMA query_only = ON",
			"PRAGMA cache_size = -64000",
		}
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting pragma: %w", err)
		}
	}

	if !opts.ReadOnly {
		if _, err := db.Exec(schema); err != nil {
			db.Close()
			return nil, fmt.Errorf("creating schema: %w", err)
		}
	}

	return &Store{
		db:       db,
		dbPath:   dbPath,
		readOnly: opts.ReadOnly,
		pending:  make(map[string]any),
		deleted:  make(map[string]struct{}),
	}, nil
}

// Close flushes pending writes and closes the database.
func (s *Store) Close() error {
	syncErr := s.Sync()
	if errors.Is(syncErr, ErrClosed) {
		syncErr = nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return syncErr
	}
	s.closed = true
	closeErr := s.db.Close()
	if syncErr != nil {
		return syncErr
	}
	return closeErr
}

// DBPath returns the path to the database file.
func (s *Store) DBPath() string {
	return s.dbPath
}

// DB returns the underlying database for advanced queries.
// Use with caution - prefer adding methods to Store instead.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Get returns the value stored under key.
func (s *Store) Get(key string) (any, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, false, ErrClosed
	}
	if _, gone := s.deleted[key]; gone {
		return nil, false, nil
	}
	if v, ok := s.pending[key]; ok {
		return v, true, nil
	}

	raw, ok, err := s.load(key)
	if err != nil || !ok {
		return nil, ok, err
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, false, fmt.Errorf("decoding %q: %w", key, err)
	}
	return v, true, nil
}

// Decode unmarshals the value stored under key into out.
func (s *Store) Decode(key string, out any) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, ErrClosed
	}
	if _, gone := s.deleted[key]; gone {
		return false, nil
	}
	if v, ok := s.pending[key]; ok {
		return true, model.FromTreeValue(v, out)
	}

	raw, ok, err := s.load(key)
	if err != nil || !ok {
		return ok, err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("decoding %q: %w", key, err)
	}
	return true, nil
}

func (s *Store) load(key string) ([]byte, bool, error) {
	var raw []byte
	err := s.db.QueryRow("SELECT value FROM entries WHERE key = ?", key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading %q: %w", key, err)
	}
	return raw, true, nil
}

// Has reports whether key is present.
func (s *Store) Has(key string) (bool, error) {
	_, ok, err := s.Get(key)
	return ok, err
}

// Set stores value under key, replacing any previous value.
func (s *Store) Set(key string, value any) error {
	value, err := normalize(value)
	if err != nil {
		return fmt.Errorf("encoding %q: %w", key, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writable(); err != nil {
		return err
	}
	s.pending[key] = value
	delete(s.deleted, key)
	return nil
}

// Delete removes key.
func (s *Store) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writable(); err != nil {
		return err
	}
	delete(s.pending, key)
	s.deleted[key] = struct{}{}
	return nil
}

// Update merges src into the store key by key. Existing values are
// extended, never blindly overwritten.
func (s *Store) Update(src map[string]any) error {
	return merge.Into(s, src)
}

// Lookup implements merge.Target.
func (s *Store) Lookup(key string) (any, bool, error) {
	return s.Get(key)
}

// Put implements merge.Target.
func (s *Store) Put(key string, value any) error {
	return s.Set(key, value)
}

// Keys returns every key starting with prefix, sorted.
func (s *Store) Keys(prefix string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}

	rows, err := s.db.Query(
		"SELECT key FROM entries WHERE substr(key, 1, length(?)) = ? ORDER BY key", prefix, prefix)
	if err != nil {
		return nil, fmt.Errorf("listing keys: %w", err)
	}
	defer rows.Close()

	seen := make(map[string]struct{})
	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("scanning key: %w", err)
		}
		if _, gone := s.deleted[key]; gone {
			continue
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing keys: %w", err)
	}
	for key := range s.pending {
		if _, ok := seen[key]; !ok && strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	slices.Sort(keys)
	return keys, nil
}

// Sync durably writes every pending change in one transaction.
func (s *Store) Sync() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if len(s.pending) == 0 && len(s.deleted) == 0 {
		return nil
	}
	if s.readOnly {
		return ErrReadOnly
	}

	batch, err := s.BeginBatch()
	if err != nil {
		return fmt.Errorf("beginning batch: %w", err)
	}
	for key := range s.deleted {
		if err := batch.Delete(key); err != nil {
			batch.Rollback()
			return fmt.Errorf("deleting %q: %w", key, err)
		}
	}
	for key, value := range s.pending {
		if err := batch.Put(key, value); err != nil {
			batch.Rollback()
			return fmt.Errorf("writing %q: %w", key, err)
		}
	}
	if err := batch.Commit(); err != nil {
		return fmt.Errorf("committing batch: %w", err)
	}

	s.pending = make(map[string]any)
	s.deleted = make(map[string]struct{})
	return nil
}

func (s *Store) writable() error {
	if s.closed {
		return ErrClosed
	}
	if s.readOnly {
		return ErrReadOnly
	}
	return nil
}

// normalize converts typed values into the maps/slices/scalars that Get
// returns, so buffered and persisted values merge identically.
func normalize(v any) (any, error) {
	switch v.(type) {
	case nil, string, bool, float64, map[string]any, []any:
		return merge.Clone(v), nil
	}
	return model.ToTree(v)
}

// SetMetadata stores a key-value pair in the metadata table.
func (s *Store) SetMetadata(key, value string) error {
	if s.readOnly {
		return ErrReadOnly
	}
	_, err := s.db.Exec(`
		INSERT INTO metadata (key, value)
		VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

// GetMetadata retrieves a value from the metadata table.
func (s *Store) GetMetadata(key string) (string, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM metadata WHERE key = ?", key).Scan(&value)
	return value, err
}

// GetStats returns statistics about the indexed data.
func (s *Store) GetStats() (*Stats, error) {
	stats := &Stats{}

	counts := []struct {
		prefix string
		dest   *int
	}{
		{model.FilePrefix, &stats.FileCount},
		{model.SymbolPrefix, &stats.SymbolCount},
		{"", &stats.EntryCount},
	}
	for _, c := range counts {
		keys, err := s.Keys(c.prefix)
		if err != nil {
			return nil, fmt.Errorf("counting %q: %w", c.prefix, err)
		}
		*c.dest = len(keys)
	}

	if v, ok, err := s.Get(model.KeyBaseDir); err == nil && ok {
		stats.BaseDir, _ = v.(string)
	}
	if ts, err := s.GetMetadata("indexed_at"); err == nil {
		stats.IndexedAt, _ = time.Parse(time.RFC3339, ts)
	}

	return stats, nil
}

// WriteIndexJSON writes index.json beside the database for quick inspection.
func (s *Store) WriteIndexJSON() error {
	stats, err := s.GetStats()
	if err != nil {
		return fmt.Errorf("getting stats: %w", err)
	}

	fileKeys, err := s.Keys(model.FilePrefix)
	if err != nil {
		return fmt.Errorf("listing files: %w", err)
	}
	files := make([]string, 0, len(fileKeys))
	for _, key := range fileKeys {
		files = append(files, strings.TrimPrefix(key, model.FilePrefix))
	}

	meta := &IndexMetadata{
		Version:     "1",
		BaseDir:     stats.BaseDir,
		IndexedAt:   stats.IndexedAt,
		FileCount:   stats.FileCount,
		SymbolCount: stats.SymbolCount,
		Files:       files,
	}

	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling index.json: %w", err)
	}

	indexPath := filepath.Join(filepath.Dir(s.dbPath), "index.json")
	if err := os.WriteFile(indexPath, data, 0644); err != nil {
		return fmt.Errorf("writing index.json: %w", err)
	}

	return nil
}

// BeginBatch starts a transaction for batch writes.
// Call Commit() when done, or Rollback() on error.
func (s *Store) BeginBatch() (*BatchTx, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	return &BatchTx{tx: tx}, nil
}

// BatchTx wraps a transaction for batch operations.
type BatchTx struct {
	tx *sql.Tx
}

// Commit commits the batch transaction.
func (b *BatchTx) Commit() error {
	return b.tx.Commit()
}

// Rollback rolls back the batch transaction.
func (b *BatchTx) Rollback() error {
	return b.tx.Rollback()
}

// Put writes one entry within the batch.
func (b *BatchTx) Put(key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	_, err = b.tx.Exec(`
		INSERT INTO entries (key, value)
		VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, string(data))
	return err
}

// Delete removes one entry within the batch.
func (b *BatchTx) Delete(key string) error {
	_, err := b.tx.Exec("DELETE FROM entries WHERE key = ?", key)
	return err
}
