package plugin

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// Storage is the optional persistent backing store for plugin-declared
// persistence:read/persistence:write capabilities (spec §4.10, §5:
// "Plugin storage is per-plugin, prefix-scoped, never shared").
type Storage struct {
	db *sql.DB
}

// OpenStorage opens (creating if needed) a SQLite-backed key/value store
// at path. An in-memory store ("file::memory:?cache=shared" or ":memory:")
// is valid for tests and short-lived hosts.
func OpenStorage(path string) (*Storage, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("plugin: open storage: %w", err)
	}
	const schema = `CREATE TABLE IF NOT EXISTS plugin_storage (
		plugin TEXT NOT NULL,
		key TEXT NOT NULL,
		value TEXT NOT NULL,
		PRIMARY KEY (plugin, key)
	)`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("plugin: init storage schema: %w", err)
	}
	return &Storage{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Storage) Close() error { return s.db.Close() }

// scoped returns a view of s restricted to one plugin's key prefix.
func (s *Storage) scoped(plugin string) *scopedStorage {
	return &scopedStorage{db: s.db, plugin: plugin}
}

type scopedStorage struct {
	db     *sql.DB
	plugin string
}

func (s *scopedStorage) Get(key string) (string, bool, error) {
	var value string
	row := s.db.QueryRow(`SELECT value FROM plugin_storage WHERE plugin = ? AND key = ?`, s.plugin, key)
	if err := row.Scan(&value); err != nil {
		if err == sql.ErrNoRows {
			return "", false, nil
		}
		return "", false, fmt.Errorf("plugin: storage get: %w", err)
	}
	return value, true, nil
}

func (s *scopedStorage) Set(key, value string) error {
	_, err := s.db.Exec(`INSERT INTO plugin_storage (plugin, key, value) VALUES (?, ?, ?)
		ON CONFLICT(plugin, key) DO UPDATE SET value = excluded.value`, s.plugin, key, value)
	if err != nil {
		return fmt.Errorf("plugin: storage set: %w", err)
	}
	return nil
}

func (s *scopedStorage) Delete(key string) error {
	_, err := s.db.Exec(`DELETE FROM plugin_storage WHERE plugin = ? AND key = ?`, s.plugin, key)
	if err != nil {
		return fmt.Errorf("plugin: storage delete: %w", err)
	}
	return nil
}
