// Package httpdl implements the HTTP fetch engine.
//
// The engine executes the resources of a content item concurrently under
// a shared bounded pool, streams response bodies to scoped staging
// files, retries transient failures with exponential backoff, verifies
// declared checksums, and assembles the resulting manifest. It is the
// default driven.Downloader of the pipeline.
package httpdl

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/megu-dl/megu/internal/core/domain"
	"github.com/megu-dl/megu/internal/core/ports/driven"
	"github.com/megu-dl/megu/internal/logger"
)

// Defaults for the engine's tunable parameters.
const (
	DefaultPoolSize       = 8
	DefaultMaxAttempts    = 3
	DefaultRetryBaseDelay = 500 * time.Millisecond
	DefaultRetryMaxDelay  = 15 * time.Second
	DefaultAttemptTimeout = 2 * time.Minute

	// sizeTolerance is the advisory slack allowed between a content's
	// declared size and the sum of its artifact sizes.
	sizeTolerance = 0.05
)

// Config holds the engine's tunable parameters.
// The zero value of any field falls back to the package default.
type Config struct {
	// StagingDir is where per-content artifact directories are created.
	StagingDir string

	// PoolSize bounds concurrently in-flight resource fetches across
	// the whole pipeline, not per content.
	PoolSize int

	// MaxAttempts bounds attempts per resource, including the first.
	MaxAttempts int

	// RetryBaseDelay is the backoff delay after the first failure;
	// subsequent delays double up to RetryMaxDelay.
	RetryBaseDelay time.Duration

	// RetryMaxDelay caps the backoff delay.
	RetryMaxDelay time.Duration

	// AttemptTimeout bounds each fetch attempt. Exceeding it counts as
	// a transient failure eligible for retry.
	AttemptTimeout time.Duration

	// RequestsPerSecond rate-limits request starts. Zero disables
	// rate limiting.
	RequestsPerSecond float64
}

// withDefaults fills unset config fields.
func (c Config) withDefaults() Config {
	if c.StagingDir == "" {
		c.StagingDir = filepath.Join(os.TempDir(), "megu", "staging")
	}
	if c.PoolSize == 0 {
		c.PoolSize = DefaultPoolSize
	}
	if c.MaxAttempts == 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.RetryBaseDelay == 0 {
		c.RetryBaseDelay = DefaultRetryBaseDelay
	}
	if c.RetryMaxDelay == 0 {
		c.RetryMaxDelay = DefaultRetryMaxDelay
	}
	if c.AttemptTimeout == 0 {
		c.AttemptTimeout = DefaultAttemptTimeout
	}
	return c
}

// Ensure Downloader implements the interface.
var _ driven.Downloader = (*Downloader)(nil)

// Downloader is the HTTP fetch engine.
type Downloader struct {
	cfg     Config
	client  *http.Client
	pool    *Pool
	limiter *rate.Limiter
}

// New creates an HTTP downloader with the given configuration.
// Redirects are followed transparently by the underlying client; the
// per-attempt timeout comes from request contexts, not the client.
func New(cfg Config) *Downloader {
	return NewWithTransport(cfg, nil)
}

// NewWithTransport creates an HTTP downloader using a custom transport.
// A nil transport uses http.DefaultTransport. Tests use this to observe
// and fault-inject requests.
func NewWithTransport(cfg Config, transport http.RoundTripper) *Downloader {
	cfg = cfg.withDefaults()

	d := &Downloader{
		cfg:    cfg,
		client: &http.Client{Transport: transport},
		pool:   NewPool(cfg.PoolSize),
	}
	if cfg.RequestsPerSecond > 0 {
		d.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.PoolSize)
	}
	return d
}

// Name returns the downloader name.
func (d *Downloader) Name() string {
	return "http"
}

// CanHandle reports whether every resource of the content is an HTTP
// operation this engine can execute.
func (d *Downloader) CanHandle(content domain.Content) bool {
	for _, resource := range content.Resources {
		switch resource.URL.Scheme() {
		case "http", "https":
		default:
			return false
		}
	}
	return len(content.Resources) > 0
}

// DownloadContent fetches every resource of the content concurrently,
// bounded by the shared pool, and returns the verified manifest.
// See driven.Downloader for the failure contract.
func (d *Downloader) DownloadContent(
	ctx context.Context,
	content domain.Content,
	progress driven.ProgressFunc,
) (*domain.Manifest, error) {
	// Malformed content is rejected before any network I/O.
	if err := content.Validate(); err != nil {
		return nil, err
	}

	stagingDir := filepath.Join(d.cfg.StagingDir, uuid.NewString())
	if err := os.MkdirAll(stagingDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating staging directory: %w", err)
	}

	artifacts, err := d.fetchAll(ctx, content, stagingDir, progress)
	if err != nil {
		discardStaging(stagingDir)
		return nil, err
	}

	d.checkSizeDiscrepancy(content, artifacts)

	if len(content.Checksums) > 0 {
		if err := verifyChecksums(content, artifacts); err != nil {
			discardStaging(stagingDir)
			return nil, err
		}
	}

	manifest := &domain.Manifest{Content: content, Artifacts: artifacts}
	if err := manifest.Validate(); err != nil {
		discardStaging(stagingDir)
		return nil, err
	}
	return manifest, nil
}

// fetchAll fans the content's resources out over the shared pool and
// reassembles completions into resource declaration order. The first
// terminal failure cancels the remaining fetches for this content only.
func (d *Downloader) fetchAll(
	ctx context.Context,
	content domain.Content,
	stagingDir string,
	progress driven.ProgressFunc,
) ([]domain.Artifact, error) {
	fetchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Completion buffer keyed by resource index; declaration order is
	// restored here regardless of completion order.
	artifacts := make([]domain.Artifact, len(content.Resources))
	errCh := make(chan error, 1)

	var wg sync.WaitGroup
	for i, resource := range content.Resources {
		wg.Add(1)
		go func(index int, resource domain.Resource) {
			defer wg.Done()

			if err := d.pool.Acquire(fetchCtx); err != nil {
				reportErr(errCh, err)
				return
			}
			defer d.pool.Release()

			if d.limiter != nil {
				if err := d.limiter.Wait(fetchCtx); err != nil {
					reportErr(errCh, err)
					return
				}
			}

			artifact, err := d.fetchResource(fetchCtx, content, index, resource, stagingDir, progress)
			if err != nil {
				reportErr(errCh, err)
				cancel()
				return
			}
			artifacts[index] = artifact
		}(i, resource)
	}
	wg.Wait()

	select {
	case err := <-errCh:
		if ctxErr := ctx.Err(); ctxErr != nil {
			// The caller cancelled; report that rather than whichever
			// fetch happened to fail first.
			return nil, ctxErr
		}
		return nil, err
	default:
		return artifacts, nil
	}
}

// reportErr records the first failure without blocking.
func reportErr(errCh chan<- error, err error) {
	select {
	case errCh <- err:
	default:
	}
}

// checkSizeDiscrepancy logs when the fetched total exceeds the declared
// content size beyond tolerance. Advisory only, never fatal: plugin
// supplied sizes are estimates more often than not.
func (d *Downloader) checkSizeDiscrepancy(content domain.Content, artifacts []domain.Artifact) {
	if content.Size <= 0 {
		return
	}

	var total int64
	for _, artifact := range artifacts {
		total += artifact.Size
	}

	limit := float64(content.Size) * (1 + sizeTolerance)
	if float64(total) > limit {
		logger.Warn(
			"Content %s: fetched %d bytes but %d were declared",
			content.ID, total, content.Size,
		)
	}
}

// verifyChecksums digests the concatenation of artifacts in resource
// order and compares against every declared checksum.
func verifyChecksums(content domain.Content, artifacts []domain.Artifact) error {
	files := make([]*os.File, 0, len(artifacts))
	readers := make([]io.Reader, 0, len(artifacts))
	defer func() {
		for _, f := range files {
			f.Close()
		}
	}()

	for _, artifact := range artifacts {
		f, err := os.Open(artifact.Path)
		if err != nil {
			return fmt.Errorf("opening artifact %s: %w", artifact.Path, err)
		}
		files = append(files, f)
		readers = append(readers, f)
	}

	types := make([]domain.HashType, 0, len(content.Checksums))
	for _, checksum := range content.Checksums {
		types = append(types, checksum.Type)
	}

	digests, err := domain.HashReader(io.MultiReader(readers...), types...)
	if err != nil {
		return fmt.Errorf("digesting artifacts for content %s: %w", content.ID, err)
	}

	for _, checksum := range content.Checksums {
		if digests[checksum.Type] != checksum.Digest {
			return fmt.Errorf(
				"%w: content %s %s digest %s, declared %s",
				domain.ErrChecksum, content.ID, checksum.Type, digests[checksum.Type], checksum.Digest,
			)
		}
	}
	return nil
}

// discardStaging removes a content's staging directory and everything in it.
func discardStaging(stagingDir string) {
	if err := os.RemoveAll(stagingDir); err != nil {
		logger.Warn("Failed to remove staging directory %s: %v", stagingDir, err)
	}
}
