// Package snapshot is the durable on-device mirror of every entity collection,
// used for offline bootstrap and as a write-through cache. Each collection
// lives under a well-known key as a JSON blob in a sqlite key/value table.
package snapshot

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

// Keys persisted locally. Values are stable; changing one orphans data written
// by earlier builds.
const (
	KeyTransactions   = "transactions"
	KeyPayslips       = "payslips"
	KeyRecurring      = "recurringTransactions"
	KeyBills          = "bills"
	KeyBudgets        = "budgets"
	KeyGoals          = "goals"
	KeyUserProfile    = "userProfile"
	KeyAccountID      = "accountId"
	KeyAccountName    = "accountName"
	KeyMigration      = "migrationVersion"
	KeyCardVisibility = "dashboardCardVisibility"
	KeyCardOrder      = "dashboardCardOrder"
)

func migrations() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS snapshots (
			key        TEXT PRIMARY KEY,
			value      TEXT NOT NULL,
			updated_at TEXT NOT NULL DEFAULT (datetime('now'))
		)`,
	}
}

// Store is the sqlite-backed snapshot store.
type Store struct {
	db  *sql.DB
	log zerolog.Logger
}

// Open opens (creating if needed) the snapshot database at path.
func Open(path string, log zerolog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("snapshot.Open: %w", err)
	}
	for _, stmt := range migrations() {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("snapshot.Open: migrating: %w", err)
		}
	}
	return &Store{db: db, log: log}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// loadRaw returns the raw blob under key. Missing keys and read errors both
// report absent; the snapshot is a cache, never a reason to fail a load.
func (s *Store) loadRaw(key string) ([]byte, bool) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM snapshots WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, false
	}
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("snapshot read failed")
		return nil, false
	}
	return []byte(value), true
}

func (s *Store) saveRaw(key string, value []byte) error {
	_, err := s.db.Exec(`
		INSERT INTO snapshots (key, value, updated_at)
		VALUES (?, ?, datetime('now'))
		ON CONFLICT(key) DO UPDATE SET
			value      = excluded.value,
			updated_at = datetime('now')
	`, key, string(value))
	if err != nil {
		return fmt.Errorf("snapshot save %q: %w", key, err)
	}
	return nil
}

// LoadCollection reads the collection under key. Absent or malformed data
// yields (nil, false), never an error: the caller proceeds as if no snapshot
// existed.
func LoadCollection[T any](s *Store, key string) ([]T, bool) {
	raw, ok := s.loadRaw(key)
	if !ok {
		return nil, false
	}
	var items []T
	if err := json.Unmarshal(raw, &items); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("malformed snapshot, treating as absent")
		return nil, false
	}
	return items, true
}

// SaveCollection overwrites the whole collection under key.
func SaveCollection[T any](s *Store, key string, items []T) error {
	if items == nil {
		items = []T{}
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("snapshot marshal %q: %w", key, err)
	}
	return s.saveRaw(key, raw)
}

// LoadValue reads a single JSON-encoded record (e.g. the user profile).
func LoadValue[T any](s *Store, key string) (T, bool) {
	var zero T
	raw, ok := s.loadRaw(key)
	if !ok {
		return zero, false
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("malformed snapshot, treating as absent")
		return zero, false
	}
	return v, true
}

// SaveValue writes a single JSON-encoded record under key.
func SaveValue[T any](s *Store, key string, v T) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("snapshot marshal %q: %w", key, err)
	}
	return s.saveRaw(key, raw)
}

// LoadString reads a plain string value (account id, account name).
func (s *Store) LoadString(key string) (string, bool) {
	raw, ok := s.loadRaw(key)
	if !ok {
		return "", false
	}
	return string(raw), true
}

// SaveString writes a plain string value.
func (s *Store) SaveString(key, value string) error {
	return s.saveRaw(key, []byte(value))
}

// Delete removes a key. Missing keys are fine.
func (s *Store) Delete(key string) error {
	if _, err := s.db.Exec(`DELETE FROM snapshots WHERE key = ?`, key); err != nil {
		return fmt.Errorf("snapshot delete %q: %w", key, err)
	}
	return nil
}
