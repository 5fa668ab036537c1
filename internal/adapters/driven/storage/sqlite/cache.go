package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/megu-dl/megu/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/megu-dl/megu/internal/core/domain"
	"github.com/megu-dl/megu/internal/core/ports/driven"
)

// namespacePattern constrains cache namespaces to safe, plugin-like names.
var namespacePattern = regexp.MustCompile(`^[a-z]+[a-z0-9_-]{3,31}[a-z0-9]$`)

// ErrInvalidNamespace is returned for namespace names that do not match
// the allowed pattern.
var ErrInvalidNamespace = errors.New("invalid cache namespace")

var _ driven.PluginCache = (*Cache)(nil)

// Cache is a SQLite-backed plugin cache.
type Cache struct {
	db   *sql.DB
	path string
}

// NewCache creates a SQLite cache at the specified cache directory.
// If cacheDir is empty, defaults to ~/.megu/cache/cache.db.
func NewCache(cacheDir string) (*Cache, error) {
	if cacheDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		cacheDir = filepath.Join(home, ".megu", "cache")
	}

	if err := os.MkdirAll(cacheDir, 0700); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}

	dbPath := filepath.Join(cacheDir, "cache.db")

	// Open database with WAL mode for better concurrency
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	c := &Cache{
		db:   db,
		path: dbPath,
	}

	if err := c.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return c, nil
}

// Close closes the database connection.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Path returns the database file path.
func (c *Cache) Path() string {
	return c.path
}

// Get returns the cached value for a key. Expired entries are treated
// as absent and removed lazily.
func (c *Cache) Get(ctx context.Context, namespace, key string) ([]byte, error) {
	if err := validateNamespace(namespace); err != nil {
		return nil, err
	}

	row := c.db.QueryRowContext(ctx, `
		SELECT value, expires_at
		FROM cache_entries WHERE namespace = ? AND key = ?
	`, namespace, key)

	var value []byte
	var expiresAt sql.NullTime
	if err := row.Scan(&value, &expiresAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning cache entry: %w", err)
	}

	if expiresAt.Valid && !expiresAt.Time.After(time.Now().UTC()) {
		if err := c.Delete(ctx, namespace, key); err != nil {
			return nil, err
		}
		return nil, domain.ErrNotFound
	}

	return value, nil
}

// Set stores a value for a key, replacing any previous entry. A
// non-zero ttl expires the entry after the given duration.
func (c *Cache) Set(ctx context.Context, namespace, key string, value []byte, ttl time.Duration) error {
	if err := validateNamespace(namespace); err != nil {
		return err
	}

	var expiresAt sql.NullTime
	if ttl > 0 {
		expiresAt = sql.NullTime{Time: time.Now().UTC().Add(ttl), Valid: true}
	}

	_, err := c.db.ExecContext(ctx, `
		INSERT INTO cache_entries (namespace, key, value, expires_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(namespace, key) DO UPDATE SET
			value = excluded.value,
			expires_at = excluded.expires_at
	`, namespace, key, value, expiresAt)

	if err != nil {
		return fmt.Errorf("saving cache entry: %w", err)
	}
	return nil
}

// Delete removes a key. Deleting an absent key is not an error.
func (c *Cache) Delete(ctx context.Context, namespace, key string) error {
	if err := validateNamespace(namespace); err != nil {
		return err
	}

	_, err := c.db.ExecContext(ctx,
		"DELETE FROM cache_entries WHERE namespace = ? AND key = ?", namespace, key)
	if err != nil {
		return fmt.Errorf("deleting cache entry: %w", err)
	}
	return nil
}

// Purge removes every entry in a namespace.
func (c *Cache) Purge(ctx context.Context, namespace string) error {
	if err := validateNamespace(namespace); err != nil {
		return err
	}

	_, err := c.db.ExecContext(ctx,
		"DELETE FROM cache_entries WHERE namespace = ?", namespace)
	if err != nil {
		return fmt.Errorf("purging cache namespace: %w", err)
	}
	return nil
}

// validateNamespace rejects namespace names outside the allowed pattern.
func validateNamespace(namespace string) error {
	if !namespacePattern.MatchString(namespace) {
		return fmt.Errorf("%w: %q", ErrInvalidNamespace, namespace)
	}
	return nil
}

// migrate runs all pending migrations.
func (c *Cache) migrate(fsys embed.FS) error {
	// Ensure schema_migrations table exists
	_, err := c.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	// Get current version
	var currentVersion int
	row := c.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	// Find all up migrations
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// Extract version number (e.g., "001_initial.up.sql" -> 1)
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue // Skip files that don't match pattern
		}

		if version <= currentVersion {
			continue // Already applied
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		if _, err := c.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}

		if _, err := c.db.Exec(
			"INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}

	return nil
}
