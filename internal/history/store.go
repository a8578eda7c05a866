// Package history persists terminal gate outcomes to a local SQLite
// database, so stats and recent-dispatch queries survive across CLI
// invocations and daemon restarts. The audit log remains the tamper-evident
// record; history is the queryable one.
package history

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS dispatches (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	ts         TEXT NOT NULL,
	address    INTEGER NOT NULL,
	data       TEXT NOT NULL,
	bus        INTEGER NOT NULL,
	mode       TEXT NOT NULL,
	outcome    TEXT NOT NULL,
	reason     TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_dispatches_address ON dispatches(address);
CREATE INDEX IF NOT EXISTS idx_dispatches_outcome ON dispatches(outcome);
`

// Dispatch is one recorded gate outcome.
type Dispatch struct {
	ID        int64
	Timestamp time.Time
	Address   uint32
	Data      string // payload hex
	Bus       int
	Mode      string
	Outcome   string
	Reason    string
}

// Store is a SQLite-backed dispatch history.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the history database and ensures the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("history: open database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: create schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Record inserts one dispatch. A zero Timestamp is filled with now.
func (s *Store) Record(d Dispatch) error {
	if d.Timestamp.IsZero() {
		d.Timestamp = time.Now().UTC()
	}
	_, err := s.db.Exec(
		`INSERT INTO dispatches (ts, address, data, bus, mode, outcome, reason) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		d.Timestamp.Format(time.RFC3339Nano), d.Address, d.Data, d.Bus, d.Mode, d.Outcome, d.Reason,
	)
	if err != nil {
		return fmt.Errorf("history: insert dispatch: %w", err)
	}
	return nil
}

// Recent returns the newest dispatches, most recent first.
func (s *Store) Recent(limit int) ([]Dispatch, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(
		`SELECT id, ts, address, data, bus, mode, outcome, reason
		 FROM dispatches ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("history: query recent: %w", err)
	}
	defer rows.Close()

	var out []Dispatch
	for rows.Next() {
		var d Dispatch
		var ts string
		if err := rows.Scan(&d.ID, &ts, &d.Address, &d.Data, &d.Bus, &d.Mode, &d.Outcome, &d.Reason); err != nil {
			return nil, fmt.Errorf("history: scan dispatch: %w", err)
		}
		parsed, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("history: parse timestamp %q: %w", ts, err)
		}
		d.Timestamp = parsed
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: iterate dispatches: %w", err)
	}
	return out, nil
}

// Summary aggregates outcomes and the most frequently targeted addresses.
type Summary struct {
	Total        int
	ByOutcome    map[string]int
	TopAddresses []AddressCount
}

// AddressCount pairs an address with its dispatch count.
type AddressCount struct {
	Address uint32
	Count   int
}

// Summarize computes outcome counts and the top targeted addresses.
func (s *Store) Summarize(topN int) (Summary, error) {
	if topN <= 0 {
		topN = 10
	}
	sum := Summary{ByOutcome: make(map[string]int)}

	rows, err := s.db.Query(`SELECT outcome, COUNT(*) FROM dispatches GROUP BY outcome`)
	if err != nil {
		return Summary{}, fmt.Errorf("history: query outcomes: %w", err)
	}
	for rows.Next() {
		var outcome string
		var n int
		if err := rows.Scan(&outcome, &n); err != nil {
			rows.Close()
			return Summary{}, fmt.Errorf("history: scan outcome: %w", err)
		}
		sum.ByOutcome[outcome] = n
		sum.Total += n
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return Summary{}, fmt.Errorf("history: iterate outcomes: %w", err)
	}

	rows, err = s.db.Query(
		`SELECT address, COUNT(*) AS n FROM dispatches GROUP BY address ORDER BY n DESC, address ASC LIMIT ?`, topN)
	if err != nil {
		return Summary{}, fmt.Errorf("history: query addresses: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var ac AddressCount
		if err := rows.Scan(&ac.Address, &ac.Count); err != nil {
			return Summary{}, fmt.Errorf("history: scan address: %w", err)
		}
		sum.TopAddresses = append(sum.TopAddresses, ac)
	}
	if err := rows.Err(); err != nil {
		return Summary{}, fmt.Errorf("history: iterate addresses: %w", err)
	}

	return sum, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
