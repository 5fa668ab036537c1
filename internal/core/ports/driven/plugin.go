package driven

import (
	"context"

	"github.com/megu-dl/megu/internal/core/domain"
)

// Plugin is the external collaborator providing discovery and
// finalization for a class of URLs. The pipeline core never parses a
// site's HTML or API; that knowledge lives entirely behind this port.
type Plugin interface {
	// Name returns the human-readable plugin name.
	Name() string

	// Domains returns the hostname glob patterns the plugin declares.
	// A plugin is only asked CanHandle when one of its patterns matches
	// the URL's hostname; this is a pre-filter, not a replacement for
	// CanHandle, since plugins may need additional path checks.
	Domains() []string

	// CanHandle reports whether the plugin can discover content at the URL.
	CanHandle(u domain.URL) bool

	// IterContent lazily discovers content at the URL.
	// Returns channels for content and errors; both are closed when
	// discovery finishes. A discovery failure is sent on the error
	// channel and wraps domain.ErrDiscovery when surfaced by the core.
	IterContent(ctx context.Context, u domain.URL) (<-chan domain.Content, <-chan error)

	// Finalize merges a manifest's artifacts into one file at (or moved
	// to) the returned path. It may assume the manifest is aligned, every
	// artifact file exists, and toPath's parent directory exists. After
	// Finalize is called, artifact ownership belongs to the plugin: it
	// may rename, move, or delete artifact files.
	Finalize(ctx context.Context, manifest domain.Manifest, toPath string) (string, error)
}
