package driving

import (
	"context"

	"github.com/megu-dl/megu/internal/core/domain"
	"github.com/megu-dl/megu/internal/core/ports/driven"
)

// FetchResult is one element of the pipeline's output sequence.
// Either Path is set (the content was downloaded and finalized there),
// Err is set (that content failed; iteration continues), or Skipped is
// true (the destination already held a verified copy).
type FetchResult struct {
	// Content is the content item the result belongs to.
	Content domain.Content

	// Path is the finalized file path on success.
	Path string

	// Skipped reports that an existing destination file verified against
	// the content's checksum, so no fetch was performed.
	Skipped bool

	// Err is the failure for this content, wrapping one of the domain
	// sentinels, or nil.
	Err error
}

// Pipeline composes plugin resolution, content filtering, download, and
// finalization into the end-to-end fetch operation.
type Pipeline interface {
	// Fetch resolves rawURL to a plugin, lazily iterates its discovered
	// content through the pipeline's content filter, downloads and
	// finalizes each survivor into toDir, and streams one FetchResult
	// per content on the returned channel, in discovery order.
	//
	// The channel is closed when the run finishes. Per-content failures
	// are reported in-stream and do not abort the run. Fetch itself
	// returns an error only when no content can possibly be produced:
	// a bad URL, a missing destination directory, or a discovery stream
	// that fails before yielding anything (domain.ErrDiscovery).
	//
	// Cancelling ctx interrupts in-flight resource fetches, discards
	// their temporary artifacts, and stops before any further content.
	// Results already yielded are not rolled back.
	Fetch(ctx context.Context, rawURL string, toDir string) (<-chan FetchResult, error)

	// Discover resolves rawURL to a plugin and returns every content item
	// it yields, unfiltered, in discovery order. Nothing is downloaded.
	Discover(ctx context.Context, rawURL string) ([]domain.Content, error)
}

// PluginResolver selects the plugin responsible for a URL.
type PluginResolver interface {
	// Resolve returns the first registered plugin that matches the URL's
	// hostname and accepts it, falling back to a generic single-GET
	// plugin. Resolution never fails.
	Resolve(u domain.URL) driven.Plugin
}
