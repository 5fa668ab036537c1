// Package domain defines the core business entities for Megu.
//
// This package is part of the hexagonal architecture's innermost layer.
// It defines the fundamental types of the content pipeline:
//
//   - URL: A parsed, absolute locator used as the pipeline's input key
//   - Resource: One fetchable network operation
//   - Content: One discoverable, downloadable media variant
//   - Artifact: The on-disk result of executing one Resource
//   - Manifest: The complete, verified set of Artifacts for one Content
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. All other packages depend on
// domain, never the reverse. It imports nothing from internal/.
package domain
