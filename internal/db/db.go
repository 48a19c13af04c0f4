// Package db is the SQLite store behind the bot: client conversation records, the
// barber/service catalog and appointments.
package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
	"github.com/rs/zerolog"
)

// DB wraps the connection pool.
type DB struct {
	*sql.DB
	path     string
	location *time.Location
	logger   *zerolog.Logger
	now      func() time.Time
}

// NewDB opens (creating if needed) the database at path and applies the schema.
// Timestamps are returned in loc.
func NewDB(path string, loc *time.Location, logger *zerolog.Logger) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// IMMEDIATE transactions take the write lock up front, so a check-then-insert
	// inside one transaction cannot interleave with another writer.
	dsn := path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_txlock=immediate&_foreign_keys=on"
	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if loc == nil {
		loc = time.UTC
	}
	instance := &DB{
		DB:       sqlDB,
		path:     path,
		location: loc,
		logger:   logger,
		now:      time.Now,
	}

	if err := instance.createTables(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	logger.Info().Str("path", path).Msg("Database initialized")
	return instance, nil
}

// Path returns the database file location.
func (db *DB) Path() string {
	return db.path
}

func (db *DB) createTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS barbers (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT UNIQUE NOT NULL,
			is_active BOOLEAN NOT NULL DEFAULT 1,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS services (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT UNIQUE NOT NULL,
			duration_minutes INTEGER NOT NULL,
			price_cents INTEGER NOT NULL DEFAULT 0,
			is_active BOOLEAN NOT NULL DEFAULT 1,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS clients (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			client_key TEXT UNIQUE NOT NULL,
			name TEXT NOT NULL DEFAULT '',
			conversation_state TEXT NOT NULL DEFAULT 'START',
			conversation_ctx_json TEXT NOT NULL DEFAULT '{}',
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS appointments (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			client_id INTEGER NOT NULL REFERENCES clients(id),
			barber_id INTEGER NOT NULL REFERENCES barbers(id),
			service_id INTEGER NOT NULL REFERENCES services(id),
			start_at DATETIME NOT NULL,
			end_at DATETIME NOT NULL,
			status TEXT NOT NULL DEFAULT 'scheduled',
			reminder_sent_at DATETIME,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			CHECK (end_at > start_at),
			CHECK (status IN ('scheduled', 'cancelled'))
		)`,
		`CREATE INDEX IF NOT EXISTS idx_appointments_barber_start ON appointments(barber_id, start_at)`,
		`CREATE INDEX IF NOT EXISTS idx_appointments_client ON appointments(client_id, status)`,
		`CREATE INDEX IF NOT EXISTS idx_appointments_reminders ON appointments(status, reminder_sent_at, start_at)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_appointments_barber_start_scheduled
			ON appointments(barber_id, start_at) WHERE status = 'scheduled'`,
	}

	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			return err
		}
	}
	return nil
}

// utc normalizes timestamps before binding so stored values compare lexically.
func utc(t time.Time) time.Time {
	return t.UTC()
}

func (db *DB) local(t time.Time) time.Time {
	return t.In(db.location)
}
