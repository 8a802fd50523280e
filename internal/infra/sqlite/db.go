// Package sqlite implements the trade store over a single SQLite file.
//
// Accounts and inventory rows carry a version stamp; CommitTrade validates
// the whole read set with compare-and-set updates inside one transaction, so
// a concurrent settlement that touched any record forces a clean conflict
// instead of a partial reapply.
package sqlite

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// DB wraps the SQLite handle. It is an explicit dependency passed into the
// orchestrator and the settlement engine; no package-level singleton.
type DB struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and applies the schema.
func Open(path string) (*DB, error) {
	handle, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA synchronous=NORMAL",
	}
	for _, p := range pragmas {
		if _, err := handle.Exec(p); err != nil {
			handle.Close()
			return nil, fmt.Errorf("setting pragma %q: %w", p, err)
		}
	}

	db := &DB{db: handle}
	if err := db.migrate(); err != nil {
		handle.Close()
		return nil, err
	}
	return db, nil
}

// Close releases the database handle.
func (db *DB) Close() error {
	return db.db.Close()
}

// Migrations returns the schema migration statements.
// Each string is a single SQL statement (SQLite executes one at a time).
func Migrations() []string {
	return []string{
		// Trading accounts. Version bumps on every balance mutation.
		`CREATE TABLE IF NOT EXISTS accounts (
			id                TEXT PRIMARY KEY,
			name              TEXT NOT NULL,
			balance           REAL NOT NULL DEFAULT 0 CHECK (balance >= 0),
			negotiation_limit REAL NOT NULL DEFAULT 0 CHECK (negotiation_limit BETWEEN 0 AND 1),
			version           INTEGER NOT NULL DEFAULT 1,
			updated_at        TEXT NOT NULL DEFAULT (datetime('now'))
		)`,

		// Owner-scoped inventory. Version bumps on every quantity mutation.
		`CREATE TABLE IF NOT EXISTS inventory (
			product_id   TEXT NOT NULL,
			owner_id     TEXT NOT NULL,
			product_name TEXT NOT NULL,
			unit_price   REAL NOT NULL DEFAULT 0,
			quantity     INTEGER NOT NULL DEFAULT 0 CHECK (quantity >= 0),
			version      INTEGER NOT NULL DEFAULT 1,
			updated_at   TEXT NOT NULL DEFAULT (datetime('now')),
			PRIMARY KEY (product_id, owner_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_inventory_owner ON inventory(owner_id)`,

		// Immutable receipts, the sole durable record of a completed trade.
		`CREATE TABLE IF NOT EXISTS receipts (
			transaction_id      TEXT PRIMARY KEY,
			buyer_name          TEXT NOT NULL,
			merchant_name       TEXT NOT NULL,
			items_json          TEXT NOT NULL,
			original_total      REAL NOT NULL,
			negotiated_discount REAL NOT NULL,
			final_total         REAL NOT NULL,
			created_at          TEXT NOT NULL
		)`,

		// Archived negotiation sessions (terminal states only).
		`CREATE TABLE IF NOT EXISTS sessions (
			id           TEXT PRIMARY KEY,
			buyer_id     TEXT NOT NULL,
			seller_id    TEXT NOT NULL,
			product_id   TEXT NOT NULL,
			state        TEXT NOT NULL,
			agreed_price REAL NOT NULL DEFAULT 0,
			turn_count   INTEGER NOT NULL DEFAULT 0,
			history_json TEXT NOT NULL,
			started_at   TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_buyer ON sessions(buyer_id)`,
	}
}

func (db *DB) migrate() error {
	for _, stmt := range Migrations() {
		if _, err := db.db.Exec(stmt); err != nil {
			return fmt.Errorf("applying migration: %w", err)
		}
	}
	return nil
}
