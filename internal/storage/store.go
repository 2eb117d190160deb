package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

const (
	// DriverSQLite3 is the cgo driver from github.com/mattn/go-sqlite3.
	DriverSQLite3 = "sqlite3"
	// DriverSQLite is the pure Go driver from modernc.org/sqlite.
	DriverSQLite = "sqlite"
)

// Table names an entity table that GetOrCreateID can resolve.
type Table int

const (
	URLList Table = iota
	WordList
)

type entityTable struct {
	name   string
	column string
}

var entityTables = map[Table]entityTable{
	URLList:  {name: "urllist", column: "url"},
	WordList: {name: "wordlist", column: "word"},
}

func (t Table) String() string {
	if et, ok := entityTables[t]; ok {
		return et.name
	}
	return fmt.Sprintf("Table(%d)", int(t))
}

// Store is the Index Store. It is safe for concurrent use; sqlite writes are
// serialized over a single connection.
type Store struct {
	db     *sql.DB
	driver string
	logger *slog.Logger

	mu     sync.Mutex
	closed bool
}

type Option func(*Store)

func WithDriver(driver string) Option {
	return func(s *Store) {
		if driver != "" {
			s.driver = driver
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func Open(ctx context.Context, dbPath string, opts ...Option) (*Store, error) {
	s := &Store{
		driver: DriverSQLite3,
		logger: slog.Default().With("component", "storage"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.driver != DriverSQLite3 && s.driver != DriverSQLite {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, s.driver)
	}

	db, err := sql.Open(s.driver, dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	s.db = db

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := s.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	s.logger.Debug("store opened", "path", dbPath, "driver", s.driver)
	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.closed = true
	return s.db.Close()
}

// Reset drops every table and recreates an empty schema.
func (s *Store) Reset(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range dropOrder {
		if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+table); err != nil {
			return fmt.Errorf("failed to drop %s: %w", table, err)
		}
	}
	if _, err := tx.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("failed to recreate schema: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit reset: %w", err)
	}
	s.logger.Info("store reset")
	return nil
}

// GetOrCreateID returns the id of value in table, inserting it first if absent.
func (s *Store) GetOrCreateID(ctx context.Context, table Table, value string) (int64, error) {
	return getOrCreateID(ctx, s.db, table, value)
}

func getOrCreateID(ctx context.Context, q querier, table Table, value string) (int64, error) {
	et, ok := entityTables[table]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownTable, table)
	}

	selectQuery := fmt.Sprintf("SELECT id FROM %s WHERE %s = ?", et.name, et.column)

	var id int64
	err := q.QueryRowContext(ctx, selectQuery, value).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("failed to query %s %q: %w", et.name, value, err)
	}

	insertQuery := fmt.Sprintf("INSERT INTO %s (%s) VALUES (?) ON CONFLICT(%s) DO NOTHING", et.name, et.column, et.column)
	if _, err := q.ExecContext(ctx, insertQuery, value); err != nil {
		return 0, fmt.Errorf("failed to insert %s %q: %w", et.name, value, err)
	}
	if err := q.QueryRowContext(ctx, selectQuery, value).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to read back %s %q: %w", et.name, value, err)
	}
	return id, nil
}

// IsIndexed reports whether address has at least one word location.
func (s *Store) IsIndexed(ctx context.Context, address string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM wordlocation w
			JOIN urllist u ON u.id = w.urlid
			WHERE u.url = ?
		)`, address).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check indexed state of %s: %w", address, err)
	}
	return exists, nil
}

func isIndexedID(ctx context.Context, q querier, urlID int64) (bool, error) {
	var exists bool
	err := q.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM wordlocation WHERE urlid = ?)",
		urlID,
	).Scan(&exists)
	return exists, err
}

func (s *Store) URLID(ctx context.Context, address string) (int64, error) {
	return s.lookupID(ctx, "SELECT id FROM urllist WHERE url = ?", address)
}

func (s *Store) WordID(ctx context.Context, word string) (int64, error) {
	return s.lookupID(ctx, "SELECT id FROM wordlist WHERE word = ?", word)
}

func (s *Store) lookupID(ctx context.Context, query, value string) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, query, value).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: %q", ErrNotFound, value)
	}
	if err != nil {
		return 0, err
	}
	return id, nil
}

// URLAddresses resolves ids to their addresses. Ids without a urllist row are
// absent from the map.
func (s *Store) URLAddresses(ctx context.Context, ids []int64) (map[int64]string, error) {
	addresses := make(map[int64]string, len(ids))
	for _, chunk := range chunkIDs(uniqueIDs(ids), maxVariables) {
		rows, err := s.db.QueryContext(ctx,
			"SELECT id, url FROM urllist WHERE id IN ("+placeholders(len(chunk))+")",
			idArgs(chunk)...,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to query urllist: %w", err)
		}
		for rows.Next() {
			var id int64
			var address string
			if err := rows.Scan(&id, &address); err != nil {
				rows.Close()
				return nil, err
			}
			addresses[id] = address
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, err
		}
	}
	return addresses, nil
}

// Stats holds row counts per table.
type Stats struct {
	URLs          int
	Words         int
	WordLocations int
	Links         int
	LinkWords     int
	PageRanks     int
	HiddenNodes   int
	WordHidden    int
	HiddenURL     int
}

func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	counts := []struct {
		table string
		dst   *int
	}{
		{"urllist", &st.URLs},
		{"wordlist", &st.Words},
		{"wordlocation", &st.WordLocations},
		{"link", &st.Links},
		{"linkwords", &st.LinkWords},
		{"pagerank", &st.PageRanks},
		{"hiddennode", &st.HiddenNodes},
		{"wordhidden", &st.WordHidden},
		{"hiddenurl", &st.HiddenURL},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+c.table).Scan(c.dst); err != nil {
			return Stats{}, fmt.Errorf("failed to count %s: %w", c.table, err)
		}
	}
	return st, nil
}
