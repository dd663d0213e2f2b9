package db

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"pmcell-separacao/internal/logger"

	_ "modernc.org/sqlite"
)

// DB wraps a SQLite database connection.
type DB struct {
	sql *sql.DB
}

// Open opens (or creates) the SQLite database at path and runs migrations.
func Open(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("ping db: %w", err)
	}
	d := &DB{sql: sqlDB}
	if err := d.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migrate db: %w", err)
	}
	logger.Success("DB", fmt.Sprintf("Opened %s", path))
	return d, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.sql.Close()
}

// Ping verifies the connection is alive; the health endpoint uses it.
func (d *DB) Ping() error {
	return d.sql.Ping()
}

func (d *DB) migrate() error {
	version := 0
	// Try to read current version
	d.sql.QueryRow("SELECT version FROM schema_version ORDER BY version DESC LIMIT 1").Scan(&version)

	if version < 1 {
		_, err := d.sql.Exec(`
			CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY);

			CREATE TABLE IF NOT EXISTS users (
				id         INTEGER PRIMARY KEY AUTOINCREMENT,
				name       TEXT NOT NULL,
				pin        TEXT NOT NULL UNIQUE,
				pin_hash   TEXT NOT NULL,
				role       TEXT NOT NULL DEFAULT 'separator',
				photo_url  TEXT,
				is_active  INTEGER NOT NULL DEFAULT 1,
				last_login TEXT,
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL
			);

			CREATE TABLE IF NOT EXISTS orders (
				id                INTEGER PRIMARY KEY AUTOINCREMENT,
				order_number      TEXT NOT NULL UNIQUE,
				client_name       TEXT NOT NULL,
				seller_name       TEXT NOT NULL,
				order_date        TEXT NOT NULL,
				total_value       REAL NOT NULL,
				logistics_type    TEXT,
				package_type      TEXT,
				observations      TEXT NOT NULL DEFAULT '',
				status            TEXT NOT NULL DEFAULT 'pending',
				items_count       INTEGER NOT NULL DEFAULT 0,
				items_separated   INTEGER NOT NULL DEFAULT 0,
				items_in_purchase INTEGER NOT NULL DEFAULT 0,
				items_not_sent    INTEGER NOT NULL DEFAULT 0,
				created_at        TEXT NOT NULL,
				updated_at        TEXT NOT NULL,
				completed_at      TEXT
			);
			CREATE INDEX IF NOT EXISTS idx_orders_number ON orders(order_number);
			CREATE INDEX IF NOT EXISTS idx_orders_status ON orders(status);

			CREATE TABLE IF NOT EXISTS order_items (
				id                     INTEGER PRIMARY KEY AUTOINCREMENT,
				order_id               INTEGER NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
				product_code           TEXT NOT NULL,
				product_reference      TEXT NOT NULL,
				product_name           TEXT NOT NULL,
				quantity               INTEGER NOT NULL,
				unit_price             REAL NOT NULL,
				total_price            REAL NOT NULL,
				is_separated           INTEGER NOT NULL DEFAULT 0,
				separated_at           TEXT,
				separated_by_id        INTEGER REFERENCES users(id),
				sent_to_purchase       INTEGER NOT NULL DEFAULT 0,
				sent_to_purchase_at    TEXT,
				sent_to_purchase_by_id INTEGER REFERENCES users(id),
				not_sent               INTEGER NOT NULL DEFAULT 0,
				not_sent_at            TEXT,
				not_sent_by_id         INTEGER REFERENCES users(id),
				not_sent_reason        TEXT,
				created_at             TEXT NOT NULL,
				updated_at             TEXT NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_items_order ON order_items(order_id);

			CREATE TABLE IF NOT EXISTS order_accesses (
				id          INTEGER PRIMARY KEY AUTOINCREMENT,
				order_id    INTEGER NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
				user_id     INTEGER NOT NULL REFERENCES users(id),
				accessed_at TEXT NOT NULL,
				left_at     TEXT
			);
			-- At most one live session per (order, user); closed rows fall
			-- out of the index once left_at is set.
			CREATE UNIQUE INDEX IF NOT EXISTS idx_accesses_live
				ON order_accesses(order_id, user_id) WHERE left_at IS NULL;

			CREATE TABLE IF NOT EXISTS purchase_items (
				id               INTEGER PRIMARY KEY AUTOINCREMENT,
				order_item_id    INTEGER NOT NULL UNIQUE REFERENCES order_items(id) ON DELETE CASCADE,
				requested_at     TEXT NOT NULL,
				requested_by_id  INTEGER NOT NULL REFERENCES users(id),
				is_completed     INTEGER NOT NULL DEFAULT 0,
				completed_at     TEXT,
				completed_by_id  INTEGER REFERENCES users(id),
				notes            TEXT NOT NULL DEFAULT '',
				completion_notes TEXT NOT NULL DEFAULT ''
			);

			INSERT OR IGNORE INTO schema_version (version) VALUES (1);
		`)
		if err != nil {
			return fmt.Errorf("migration v1: %w", err)
		}
		logger.Info("DB", "Applied migration v1")
	}

	return nil
}

// SqlDB returns the underlying *sql.DB for transactional use by the service layer.
func (d *DB) SqlDB() *sql.DB {
	return d.sql
}

// now returns the canonical timestamp format used across the schema.
func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// Now exposes the schema timestamp format to the service layer, which
// stamps facet transitions with the same clock the stores use.
func Now() string {
	return now()
}

// IsUniqueViolation reports whether err is a SQLite UNIQUE constraint failure.
func IsUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func nullStr(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}

func nullInt(i *int64) interface{} {
	if i == nil {
		return nil
	}
	return *i
}

func strPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func intPtr(ni sql.NullInt64) *int64 {
	if !ni.Valid {
		return nil
	}
	n := ni.Int64
	return &n
}
