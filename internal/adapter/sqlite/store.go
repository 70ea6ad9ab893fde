// Package sqlite implements the history store on an embedded SQLite
// database. WAL journaling makes appends durable before they return and
// lets the aggregation engine's read-only scans run alongside writes.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/sperola37/smoke-watching/internal/domain"
)

// Store is a SQLite-backed domain.HistoryStore.
type Store struct {
	db *sql.DB
}

var _ domain.HistoryStore = (*Store)(nil)

// Open opens or creates the database at dbPath, creating parent
// directories as needed. An empty dbPath defaults to
// $TMPDIR/smoke-watching/history.db.
func Open(dbPath string) (*Store, error) {
	if dbPath == "" {
		dbPath = filepath.Join(os.TempDir(), "smoke-watching", "history.db")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1) // single writer; WAL allows concurrent readers
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec(`PRAGMA synchronous=FULL`); err != nil {
		return nil, fmt.Errorf("set synchronous mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.createTables(); err != nil {
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createTables() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS history (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			address    TEXT NOT NULL,
			photo      TEXT NOT NULL DEFAULT '',
			occurred_ns INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_history_address ON history(address)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Append adds one entry to the address's log. Rows are insert-only; there
// is no update or delete path.
func (s *Store) Append(ctx context.Context, address string, entry domain.HistoryEntry) error {
	if address == "" {
		return fmt.Errorf("append: empty address")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO history (address, photo, occurred_ns) VALUES (?, ?, ?)`,
		address, entry.Photo, entry.Timestamp.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("insert history entry: %w", err)
	}
	return nil
}

// ReadAll returns every entry for the address in insertion order.
func (s *Store) ReadAll(ctx context.Context, address string) ([]domain.HistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT photo, occurred_ns FROM history WHERE address = ? ORDER BY id`,
		address,
	)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var entries []domain.HistoryEntry
	for rows.Next() {
		var photo string
		var ns int64
		if err := rows.Scan(&photo, &ns); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		entries = append(entries, domain.HistoryEntry{
			Address:   address,
			Photo:     photo,
			Timestamp: time.Unix(0, ns).UTC(),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history rows: %w", err)
	}
	return entries, nil
}

// ListAddresses enumerates every address with at least one entry.
func (s *Store) ListAddresses(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT address FROM history ORDER BY address`)
	if err != nil {
		return nil, fmt.Errorf("query addresses: %w", err)
	}
	defer rows.Close()

	var addresses []string
	for rows.Next() {
		var a string
		if err := rows.Scan(&a); err != nil {
			return nil, fmt.Errorf("scan address: %w", err)
		}
		addresses = append(addresses, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate addresses: %w", err)
	}
	return addresses, nil
}
