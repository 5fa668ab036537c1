package driven

import (
	"context"
	"time"
)

// PluginCache is a disk-backed key/value cache offered to plugin
// discovery logic, namespaced per plugin. The pipeline core never reads
// it; it exists so plugins can avoid re-scraping site metadata.
//
// Namespace names must match ^[a-z]+[a-z0-9_-]{3,31}[a-z0-9]$.
type PluginCache interface {
	// Get returns the cached value for a key, or domain.ErrNotFound when
	// the key is absent or its entry has expired.
	Get(ctx context.Context, namespace, key string) ([]byte, error)

	// Set stores a value for a key. A non-zero ttl expires the entry.
	Set(ctx context.Context, namespace, key string, value []byte, ttl time.Duration) error

	// Delete removes a key. Deleting an absent key is not an error.
	Delete(ctx context.Context, namespace, key string) error

	// Purge removes every entry in a namespace.
	Purge(ctx context.Context, namespace string) error

	// Close releases the underlying storage.
	Close() error
}
