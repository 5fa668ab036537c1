// Package file provides file-based configuration for the megu CLI.
//
// Settings are stored as a TOML file in the megu config directory,
// ~/.megu/config.toml by default. Missing files and missing keys fall
// back to defaults, so a fresh installation needs no configuration.
package file
