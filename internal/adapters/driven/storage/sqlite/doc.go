// Package sqlite provides the SQLite-backed plugin cache.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation
// that requires no CGO, enabling easy cross-compilation. It implements
// the driven.PluginCache interface: a namespaced key/value store plugins
// use to avoid re-scraping site metadata between runs.
//
// # Schema
//
// The database schema is managed through versioned migrations stored in
// the migrations/ directory. Each migration is a pair of .up.sql and
// .down.sql files.
//
// # Data Location
//
// By default, the database is stored at ~/.megu/cache/cache.db
//
// # Thread Safety
//
// All operations are thread-safe. The cache uses database-level locking
// provided by SQLite in WAL mode.
package sqlite
