package domain

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// HTTPMethod is the HTTP method of a resource request.
type HTTPMethod string

// HTTP methods resources may declare.
const (
	MethodGet  HTTPMethod = "GET"
	MethodHead HTTPMethod = "HEAD"
	MethodPost HTTPMethod = "POST"
	MethodPut  HTTPMethod = "PUT"
)

// Resource describes one fetchable network operation.
// It is a pure description: a Resource never identifies where its bytes
// will be stored — that is a fetch engine concern. Treat as immutable
// once constructed.
type Resource struct {
	// Method is the HTTP method to fetch the resource URL with.
	Method HTTPMethod

	// URL is the resource URL to fetch.
	URL URL

	// Headers are the request headers to send, if any.
	Headers map[string]string

	// Body is the request body to send, if any.
	Body []byte
}

// Validate checks the resource for structural problems.
func (r Resource) Validate() error {
	if r.Method == "" {
		return fmt.Errorf("%w: resource has no method", ErrInvalidContent)
	}
	if r.URL.IsZero() {
		return fmt.Errorf("%w: resource has no url", ErrInvalidContent)
	}
	return nil
}

// Fingerprint returns a stable unique identifier for the resource,
// derived from its method, URL, headers, and body. Two resources with
// identical requests share a fingerprint.
func (r Resource) Fingerprint() string {
	var sb strings.Builder
	sb.WriteString(string(r.Method))
	sb.WriteByte('|')
	sb.WriteString(r.URL.String())

	// Header order must not affect the fingerprint.
	keys := make([]string, 0, len(r.Headers))
	for k := range r.Headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		sb.WriteByte('|')
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(r.Headers[k])
	}

	digest := xxhash.New()
	digest.WriteString(sb.String())
	if len(r.Body) > 0 {
		digest.Write([]byte{'|'})
		digest.Write(r.Body)
	}

	return fmt.Sprintf("%016x", digest.Sum64())
}
