// Package sqlite persists the cost ledger audit trail in SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // register sqlite driver

	"github.com/ashish-admin/stra-tech-sub002/internal/domain"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS cost_entries (
	id         TEXT PRIMARY KEY,
	service    TEXT NOT NULL,
	operation  TEXT NOT NULL,
	units      INTEGER NOT NULL,
	cost       REAL NOT NULL,
	request_id TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_cost_entries_created_at ON cost_entries(created_at);
`

// Config contains ledger database settings.
type Config struct {
	Path string `env:"LEDGER_DB_PATH" envDefault:"data/ledger.db"`
}

// Store implements domain.CostStore.
type Store struct {
	db *sql.DB
}

// Open opens or creates the ledger database at the given path.
func Open(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o750); err != nil {
			return nil, fmt.Errorf("creating ledger dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=synchronous(normal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening ledger db: %w", err)
	}
	// SQLite allows one writer; a single connection also keeps :memory: databases shared.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Append stores one entry.
func (s *Store) Append(ctx context.Context, entry domain.CostEntry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO cost_entries (id, service, operation, units, cost, request_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.Service, entry.Operation, entry.Units, entry.Cost, entry.RequestID,
		entry.CreatedAt.UTC().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("inserting cost entry: %w", err)
	}
	return nil
}

// SumSince returns per-service spend of entries created at or after since.
func (s *Store) SumSince(ctx context.Context, since time.Time) (map[string]float64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT service, SUM(cost) FROM cost_entries WHERE created_at >= ? GROUP BY service`,
		since.UTC().UnixNano(),
	)
	if err != nil {
		return nil, fmt.Errorf("summing cost entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	sums := make(map[string]float64)
	for rows.Next() {
		var service string
		var total float64
		if err := rows.Scan(&service, &total); err != nil {
			return nil, fmt.Errorf("scanning cost sum: %w", err)
		}
		sums[service] = total
	}
	return sums, rows.Err()
}

// EntriesSince returns entries created at or after since, oldest first.
func (s *Store) EntriesSince(ctx context.Context, since time.Time) ([]domain.CostEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, service, operation, units, cost, request_id, created_at
		 FROM cost_entries WHERE created_at >= ? ORDER BY created_at, id`,
		since.UTC().UnixNano(),
	)
	if err != nil {
		return nil, fmt.Errorf("querying cost entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []domain.CostEntry
	for rows.Next() {
		var e domain.CostEntry
		var createdAt int64
		if err := rows.Scan(&e.ID, &e.Service, &e.Operation, &e.Units, &e.Cost, &e.RequestID, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning cost entry: %w", err)
		}
		e.CreatedAt = time.Unix(0, createdAt).UTC()
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
