package domain

import (
	"fmt"
	"mime"
	"time"
)

// Meta holds descriptive, non-essential attributes of a Content.
// It never affects pipeline correctness; everything here is advisory.
type Meta struct {
	// Title is the site's title for the content.
	Title string

	// Description is the site's description of the content.
	Description string

	// Publisher is the username of the content's author.
	Publisher string

	// PublishedAt is when the content was published on the site.
	PublishedAt time.Time

	// Duration is the media duration, when applicable.
	Duration time.Duration

	// Filename is the site's suggested file name, if any.
	Filename string

	// Thumbnail is the URL of the content's thumbnail, if any.
	Thumbnail URL
}

// Content describes one discoverable, downloadable media variant.
// Plugins construct Content during discovery; it is immutable thereafter.
//
// ID identifies the same logical item at different qualities (for
// example a full image versus its thumbnail). Quality orders variants
// sharing an ID — higher wins. Group clusters related content drawn
// from a single URL (every post in a thread, say) for reporting; it is
// never selected upon.
type Content struct {
	// ID is the unique identifier of the content.
	ID string

	// Group clusters logically related content from one URL.
	Group string

	// Name is the human-readable name of the content.
	Name string

	// URL is the source URL the content was discovered from.
	URL URL

	// Quality ranks variants sharing an ID. Must be positive.
	Quality float64

	// Size is the expected total size in bytes, or 0 when unknown.
	Size int64

	// Type is the mimetype of the finalized content.
	Type string

	// Resources are the network operations that reproduce the content.
	// Must be non-empty; order is significant.
	Resources []Resource

	// Meta carries advisory metadata about the content.
	Meta Meta

	// Checksums declare digests the fetched bytes must verify against.
	Checksums []Checksum

	// Extra carries miscellaneous plugin-specific properties.
	Extra map[string]any
}

// Validate checks the content against the model invariants: a non-empty
// ID, a positive quality, and at least one valid resource.
func (c Content) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidContent)
	}
	if c.Quality <= 0 {
		return fmt.Errorf("%w: content %s has non-positive quality %v", ErrInvalidContent, c.ID, c.Quality)
	}
	if len(c.Resources) == 0 {
		return fmt.Errorf("%w: content %s has no resources", ErrInvalidContent, c.ID)
	}
	for i, r := range c.Resources {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("content %s resource %d: %w", c.ID, i, err)
		}
	}
	return nil
}

// Extension returns the file extension for the content's mimetype,
// including the leading dot, or "" when none is known.
func (c Content) Extension() string {
	exts, err := mime.ExtensionsByType(c.Type)
	if err != nil || len(exts) == 0 {
		return ""
	}
	return exts[0]
}

// Filename returns the file name the content should be saved as when
// the caller provides no explicit name.
func (c Content) Filename() string {
	return c.ID + c.Extension()
}
