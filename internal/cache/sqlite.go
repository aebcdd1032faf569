package cache

import (
	"database/sql"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS kv (
	namespace  TEXT    NOT NULL,
	key        TEXT    NOT NULL,
	value      BLOB    NOT NULL,
	expires_at INTEGER,
	updated_at DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (namespace, key)
);

CREATE INDEX IF NOT EXISTS idx_kv_expires_at ON kv(expires_at);
`

// OpenSQLite opens a SQLite database at dsn, configures WAL mode and applies
// the key/value schema. The returned handle can back several namespaces.
func OpenSQLite(dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	if _, err := db.Exec(sqliteMigration); err != nil {
		db.Close()
		return nil, eris.Wrap(err, "sqlite: migrate")
	}
	return db, nil
}

// SQLiteCache implements Cache on a namespaced SQLite table
type SQLiteCache struct {
	db        *sql.DB
	namespace string
	ttl       time.Duration
}

// NewSQLiteCache creates a cache over one namespace of db
func NewSQLiteCache(db *sql.DB, namespace string, ttl time.Duration) *SQLiteCache {
	return &SQLiteCache{db: db, namespace: namespace, ttl: ttl}
}

// Get retrieves a value; expired rows are treated as a miss
func (c *SQLiteCache) Get(key string) ([]byte, bool) {
	var (
		value     []byte
		expiresAt sql.NullInt64
	)
	err := c.db.QueryRow(
		`SELECT value, expires_at FROM kv WHERE namespace = ? AND key = ?`,
		c.namespace, key,
	).Scan(&value, &expiresAt)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			zap.L().Warn("sqlite cache read failed",
				zap.String("namespace", c.namespace),
				zap.String("key", key),
				zap.Error(err),
			)
		}
		return nil, false
	}
	if expiresAt.Valid && time.Now().UnixNano() > expiresAt.Int64 {
		_ = c.Delete(key)
		return nil, false
	}
	return value, true
}

// Set upserts a value
func (c *SQLiteCache) Set(key string, value []byte, ttl time.Duration) error {
	if ttl == 0 {
		ttl = c.ttl
	}
	var expiresAt sql.NullInt64
	if ttl > 0 {
		expiresAt = sql.NullInt64{Int64: time.Now().Add(ttl).UnixNano(), Valid: true}
	}

	_, err := c.db.Exec(
		`INSERT INTO kv (namespace, key, value, expires_at, updated_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(namespace, key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at, updated_at = excluded.updated_at`,
		c.namespace, key, value, expiresAt, time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: set %s/%s", c.namespace, key)
}

// Delete removes a value; missing keys are a no-op
func (c *SQLiteCache) Delete(key string) error {
	_, err := c.db.Exec(`DELETE FROM kv WHERE namespace = ? AND key = ?`, c.namespace, key)
	return eris.Wrapf(err, "sqlite: delete %s/%s", c.namespace, key)
}

// Clear removes every value in the namespace
func (c *SQLiteCache) Clear() error {
	_, err := c.db.Exec(`DELETE FROM kv WHERE namespace = ?`, c.namespace)
	return eris.Wrapf(err, "sqlite: clear %s", c.namespace)
}

// Keys lists unexpired keys in the namespace, sorted
func (c *SQLiteCache) Keys() ([]string, error) {
	rows, err := c.db.Query(
		`SELECT key FROM kv WHERE namespace = ? AND (expires_at IS NULL OR expires_at >= ?) ORDER BY key`,
		c.namespace, time.Now().UnixNano(),
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list %s", c.namespace)
	}
	defer rows.Close()

	keys := []string{}
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan key")
		}
		keys = append(keys, k)
	}
	return keys, eris.Wrap(rows.Err(), "sqlite: list iterate")
}
