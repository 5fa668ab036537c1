package driven

import (
	"context"

	"github.com/megu-dl/megu/internal/core/domain"
)

// ProgressFunc reports fetch progress for a content item.
// It receives the content ID, the number of bytes just written, and the
// expected total size (0 when unknown). Implementations must be safe
// for concurrent use; resources of one content fetch in parallel.
type ProgressFunc func(contentID string, n int, total int64)

// Downloader executes the resources of a content item, producing a
// manifest of verified on-disk artifacts.
type Downloader interface {
	// Name returns the human-readable downloader name.
	Name() string

	// CanHandle reports whether the downloader can fetch the content's
	// resources (e.g. every resource uses a protocol it speaks).
	CanHandle(content domain.Content) bool

	// DownloadContent fetches every resource of the content.
	// It fails with domain.ErrInvalidContent before any network I/O when
	// the content is malformed, domain.ErrFetch when a resource cannot
	// be completed after retries, and domain.ErrChecksum when a declared
	// checksum does not verify. On failure no artifact files remain.
	// The progress hook may be nil.
	DownloadContent(ctx context.Context, content domain.Content, progress ProgressFunc) (*domain.Manifest, error)
}
