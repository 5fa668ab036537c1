package httpdl

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/megu-dl/megu/internal/core/domain"
	"github.com/megu-dl/megu/internal/core/ports/driven"
	"github.com/megu-dl/megu/internal/logger"
)

// copyChunkSize is the buffer size used when streaming bodies to disk.
const copyChunkSize = 64 * 1024

// transientError marks a failure eligible for retry: connection errors,
// attempt timeouts, and 5xx responses.
type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

func transient(err error) error {
	return &transientError{err: err}
}

func isTransient(err error) bool {
	var t *transientError
	return errors.As(err, &t)
}

// fetchResource executes one resource with bounded retries and returns
// its artifact. Transient failures back off exponentially with jitter;
// terminal failures (4xx, malformed responses) fail immediately.
func (d *Downloader) fetchResource(
	ctx context.Context,
	content domain.Content,
	index int,
	resource domain.Resource,
	stagingDir string,
	progress driven.ProgressFunc,
) (domain.Artifact, error) {
	// The index keeps identical resources (same fingerprint) from
	// sharing a staging path.
	toPath := filepath.Join(stagingDir, fmt.Sprintf("%s.%d.%s", content.ID, index, resource.Fingerprint()))

	var lastErr error
	for attempt := 1; attempt <= d.cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			delay := d.backoffDelay(attempt)
			logger.Debug(
				"Retrying resource %d of content %s in %s (attempt %d/%d): %v",
				index, content.ID, delay, attempt, d.cfg.MaxAttempts, lastErr,
			)
			select {
			case <-ctx.Done():
				return domain.Artifact{}, ctx.Err()
			case <-time.After(delay):
			}
		}

		size, err := d.fetchOnce(ctx, content, resource, toPath, progress)
		if err == nil {
			return domain.Artifact{Resource: resource, Path: toPath, Size: size}, nil
		}
		if ctx.Err() != nil {
			return domain.Artifact{}, ctx.Err()
		}
		if !isTransient(err) {
			return domain.Artifact{}, fmt.Errorf(
				"%w: resource %d of content %s: %v", domain.ErrFetch, index, content.ID, err,
			)
		}
		lastErr = err
	}

	return domain.Artifact{}, fmt.Errorf(
		"%w: resource %d of content %s after %d attempts: %v",
		domain.ErrFetch, index, content.ID, d.cfg.MaxAttempts, lastErr,
	)
}

// backoffDelay returns the delay before the given attempt (attempt >= 2),
// doubling from the base delay and capped, with up to 25% jitter.
func (d *Downloader) backoffDelay(attempt int) time.Duration {
	delay := d.cfg.RetryBaseDelay << uint(attempt-2) //nolint:gosec // attempt >= 2
	if delay > d.cfg.RetryMaxDelay || delay <= 0 {
		delay = d.cfg.RetryMaxDelay
	}
	jitter := time.Duration(rand.Int63n(int64(delay)/4 + 1)) //nolint:gosec // Not security sensitive.
	return delay + jitter
}

// fetchOnce performs a single attempt: request, stream to a partial
// file, and promote the partial file to the artifact path.
func (d *Downloader) fetchOnce(
	ctx context.Context,
	content domain.Content,
	resource domain.Resource,
	toPath string,
	progress driven.ProgressFunc,
) (int64, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, d.cfg.AttemptTimeout)
	defer cancel()

	req, err := buildRequest(attemptCtx, resource)
	if err != nil {
		return 0, err
	}

	resp, err := d.client.Do(req)
	if err != nil {
		// Connection-level failures (reset, refused, timeout) retry.
		return 0, transient(err)
	}
	defer resp.Body.Close()

	if err := classifyStatus(resp.StatusCode); err != nil {
		return 0, err
	}

	size, err := streamToFile(resp.Body, toPath, content, progress)
	if err != nil {
		return 0, err
	}
	return size, nil
}

// buildRequest converts a resource into an HTTP request.
func buildRequest(ctx context.Context, resource domain.Resource) (*http.Request, error) {
	var body io.Reader
	if len(resource.Body) > 0 {
		body = bytes.NewReader(resource.Body)
	}

	req, err := http.NewRequestWithContext(ctx, string(resource.Method), resource.URL.String(), body)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	for key, value := range resource.Headers {
		req.Header.Set(key, value)
	}
	return req, nil
}

// classifyStatus maps a response status to the retry taxonomy:
// 2xx success (204 excepted, there is nothing to store), 4xx terminal,
// 5xx transient. Redirects are followed by the client and never reach
// this point.
func classifyStatus(status int) error {
	switch {
	case status == http.StatusNoContent:
		return fmt.Errorf("response has no content")
	case status >= 200 && status < 300:
		return nil
	case status >= 500:
		return transient(fmt.Errorf("server error %d", status))
	case status >= 400:
		return fmt.Errorf("request rejected with status %d", status)
	default:
		return fmt.Errorf("unhandled response status %d", status)
	}
}

// streamToFile writes the body to toPath via a partial file so a torn
// attempt never leaves a plausible-looking artifact behind.
func streamToFile(
	body io.Reader,
	toPath string,
	content domain.Content,
	progress driven.ProgressFunc,
) (int64, error) {
	partPath := toPath + ".part"

	f, err := os.Create(partPath)
	if err != nil {
		return 0, fmt.Errorf("creating %s: %w", partPath, err)
	}

	var written int64
	buf := make([]byte, copyChunkSize)
	for {
		n, readErr := body.Read(buf)
		if n > 0 {
			if _, writeErr := f.Write(buf[:n]); writeErr != nil {
				f.Close()
				os.Remove(partPath)
				return 0, fmt.Errorf("writing %s: %w", partPath, writeErr)
			}
			written += int64(n)
			if progress != nil {
				progress(content.ID, n, content.Size)
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			// An interrupted body is retryable; the next attempt
			// rewrites the partial file from scratch.
			f.Close()
			os.Remove(partPath)
			return 0, transient(fmt.Errorf("reading response body: %w", readErr))
		}
	}

	if err := f.Close(); err != nil {
		os.Remove(partPath)
		return 0, fmt.Errorf("closing %s: %w", partPath, err)
	}
	if err := os.Rename(partPath, toPath); err != nil {
		os.Remove(partPath)
		return 0, fmt.Errorf("promoting %s: %w", partPath, err)
	}
	return written, nil
}
