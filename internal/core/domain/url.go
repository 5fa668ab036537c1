package domain

import (
	"fmt"
	"net/url"
	"strings"
)

// URL is an immutable, absolute locator.
// The hostname is lower-cased on parse so that domain matching is
// case-insensitive everywhere downstream.
type URL struct {
	u *url.URL
}

// ParseURL parses a raw URL string into a URL.
// The URL must be absolute (have a scheme and a host).
func ParseURL(raw string) (URL, error) {
	parsed, err := url.Parse(raw)
	if err != nil {
		return URL{}, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if !parsed.IsAbs() || parsed.Host == "" {
		return URL{}, fmt.Errorf("%w: %q is not absolute", ErrInvalidURL, raw)
	}

	parsed.Host = strings.ToLower(parsed.Host)
	return URL{u: parsed}, nil
}

// MustParseURL parses a raw URL string and panics on failure.
// Intended for tests and static plugin declarations.
func MustParseURL(raw string) URL {
	u, err := ParseURL(raw)
	if err != nil {
		panic(err)
	}
	return u
}

// IsZero reports whether the URL is the uninitialised zero value.
func (u URL) IsZero() bool {
	return u.u == nil
}

// String returns the full URL string.
func (u URL) String() string {
	if u.u == nil {
		return ""
	}
	return u.u.String()
}

// Scheme returns the URL scheme (e.g. "https").
func (u URL) Scheme() string {
	if u.u == nil {
		return ""
	}
	return u.u.Scheme
}

// Hostname returns the lower-cased hostname without any port.
func (u URL) Hostname() string {
	if u.u == nil {
		return ""
	}
	return u.u.Hostname()
}

// Path returns the URL path component.
func (u URL) Path() string {
	if u.u == nil {
		return ""
	}
	return u.u.Path
}

// Query returns a copy of the parsed query parameters.
func (u URL) Query() url.Values {
	if u.u == nil {
		return url.Values{}
	}
	return u.u.Query()
}
