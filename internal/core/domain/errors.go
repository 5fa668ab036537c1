package domain

import "errors"

// Domain errors represent pipeline failures.
// Each stage of the pipeline fails with a distinct sentinel so callers
// can decide between retry, abort, and report-and-continue.
var (
	// ErrInvalidURL indicates a URL could not be parsed or is not absolute.
	ErrInvalidURL = errors.New("invalid url")

	// ErrInvalidContent indicates malformed content from a plugin,
	// such as an empty resource list or a non-positive quality.
	ErrInvalidContent = errors.New("invalid content")

	// ErrDiscovery indicates a plugin's discovery routine failed.
	// Surfaced per-URL; it aborts that URL's pipeline run only.
	ErrDiscovery = errors.New("content discovery failed")

	// ErrFetch indicates a resource fetch exhausted its retries
	// or failed terminally.
	ErrFetch = errors.New("resource fetch failed")

	// ErrChecksum indicates a declared checksum did not match the
	// digest of the fetched bytes.
	ErrChecksum = errors.New("checksum verification failed")

	// ErrFinalization indicates a plugin's merge step failed.
	ErrFinalization = errors.New("content finalization failed")

	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUnsupportedHashType indicates an unknown checksum algorithm.
	ErrUnsupportedHashType = errors.New("unsupported hash type")
)
