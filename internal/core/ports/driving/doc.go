// Package driving defines the interfaces through which callers drive the core.
//
// These are the "driving" or "primary" ports in hexagonal architecture.
// The CLI adapter (and library consumers) depend on these interfaces;
// core services implement them.
//
//   - Pipeline: The end-to-end fetch(url, destination) operation
//   - PluginResolver: URL to plugin resolution
//
// # Import Rules
//
//   - Can Import: domain and driven port packages only
//   - Cannot Import: Any adapter or service package
package driving
