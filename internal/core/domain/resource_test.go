package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestResource_Validate tests structural validation of a resource
func TestResource_Validate(t *testing.T) {
	r := Resource{Method: MethodGet, URL: MustParseURL("https://example.com/a")}
	require.NoError(t, r.Validate())

	assert.ErrorIs(t, Resource{URL: r.URL}.Validate(), ErrInvalidContent)
	assert.ErrorIs(t, Resource{Method: MethodGet}.Validate(), ErrInvalidContent)
}

// TestResource_Fingerprint_Stable tests that equal resources share a fingerprint
func TestResource_Fingerprint_Stable(t *testing.T) {
	a := Resource{
		Method:  MethodGet,
		URL:     MustParseURL("https://example.com/a"),
		Headers: map[string]string{"Range": "bytes=0-100", "Accept": "*/*"},
	}
	b := Resource{
		Method:  MethodGet,
		URL:     MustParseURL("https://example.com/a"),
		Headers: map[string]string{"Accept": "*/*", "Range": "bytes=0-100"},
	}

	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
	assert.Len(t, a.Fingerprint(), 16)
}

// TestResource_Fingerprint_Distinct tests that request differences change the fingerprint
func TestResource_Fingerprint_Distinct(t *testing.T) {
	base := Resource{Method: MethodGet, URL: MustParseURL("https://example.com/a")}

	other := base
	other.Method = MethodPost
	assert.NotEqual(t, base.Fingerprint(), other.Fingerprint())

	other = base
	other.URL = MustParseURL("https://example.com/b")
	assert.NotEqual(t, base.Fingerprint(), other.Fingerprint())

	other = base
	other.Body = []byte("payload")
	assert.NotEqual(t, base.Fingerprint(), other.Fingerprint())
}
