// Package driven defines the interfaces that core calls OUT to collaborators.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces; adapters and external plugin
// packages implement them.
//
//   - Plugin: Site-specific content discovery and finalization
//   - Downloader: Executes a content's resources into a manifest
//   - PluginCache: Disk-backed key/value cache for discovery logic
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter or plugin package
package driven
