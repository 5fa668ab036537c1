package httpdl

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/megu-dl/megu/internal/core/domain"
)

// testConfig returns an engine config suitable for fast tests.
func testConfig(t *testing.T) Config {
	t.Helper()
	return Config{
		StagingDir:     t.TempDir(),
		PoolSize:       4,
		MaxAttempts:    3,
		RetryBaseDelay: time.Millisecond,
		RetryMaxDelay:  5 * time.Millisecond,
		AttemptTimeout: 5 * time.Second,
	}
}

// contentFor builds a single-resource content pointing at the given URL.
func contentFor(t *testing.T, rawURL string) domain.Content {
	t.Helper()
	return domain.Content{
		ID:      "test-item",
		Group:   "test-item",
		Name:    "Test Item",
		URL:     domain.MustParseURL(rawURL),
		Quality: 1,
		Type:    "application/octet-stream",
		Resources: []domain.Resource{
			{Method: domain.MethodGet, URL: domain.MustParseURL(rawURL)},
		},
	}
}

// countingTransport counts round trips before delegating.
type countingTransport struct {
	requests atomic.Int64
	inner    http.RoundTripper
}

func (c *countingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	c.requests.Add(1)
	inner := c.inner
	if inner == nil {
		inner = http.DefaultTransport
	}
	return inner.RoundTrip(req)
}

// stagingEntries lists the engine staging directory contents.
func stagingEntries(t *testing.T, dir string) []os.DirEntry {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	return entries
}

// TestDownloadContent_EmptyResources tests rejection before any network I/O
func TestDownloadContent_EmptyResources(t *testing.T) {
	transport := &countingTransport{}
	d := NewWithTransport(testConfig(t), transport)

	content := contentFor(t, "https://example.com/a")
	content.Resources = nil

	_, err := d.DownloadContent(context.Background(), content, nil)

	assert.ErrorIs(t, err, domain.ErrInvalidContent)
	assert.Zero(t, transport.requests.Load(), "no network I/O for invalid content")
}

// TestDownloadContent_SingleResource tests the basic fetch path
func TestDownloadContent_SingleResource(t *testing.T) {
	payload := []byte("some media bytes")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(payload)
	}))
	defer server.Close()

	cfg := testConfig(t)
	d := New(cfg)

	content := contentFor(t, server.URL)
	manifest, err := d.DownloadContent(context.Background(), content, nil)
	require.NoError(t, err)
	require.Len(t, manifest.Artifacts, 1)

	artifact := manifest.Artifacts[0]
	assert.Equal(t, int64(len(payload)), artifact.Size)

	fetched, err := os.ReadFile(artifact.Path)
	require.NoError(t, err)
	assert.Equal(t, payload, fetched)

	// No .part files left behind.
	assert.NotContains(t, artifact.Path, ".part")
}

// TestDownloadContent_IdenticalResourcesGetDistinctArtifacts tests that
// resources sharing a fingerprint stage to separate files
func TestDownloadContent_IdenticalResourcesGetDistinctArtifacts(t *testing.T) {
	payload := []byte("repeated segment")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(payload)
	}))
	defer server.Close()

	d := New(testConfig(t))

	content := contentFor(t, server.URL)
	content.Resources = append(content.Resources, content.Resources[0])

	manifest, err := d.DownloadContent(context.Background(), content, nil)
	require.NoError(t, err)
	require.Len(t, manifest.Artifacts, 2)

	assert.NotEqual(t, manifest.Artifacts[0].Path, manifest.Artifacts[1].Path)
	for _, artifact := range manifest.Artifacts {
		fetched, err := os.ReadFile(artifact.Path)
		require.NoError(t, err)
		assert.Equal(t, payload, fetched)
	}
}

// TestDownloadContent_PreservesResourceOrder tests that artifact order
// follows resource declaration order, not completion order
func TestDownloadContent_PreservesResourceOrder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// The first declared part completes last.
		if r.URL.Path == "/part0" {
			time.Sleep(50 * time.Millisecond)
		}
		fmt.Fprint(w, r.URL.Path)
	}))
	defer server.Close()

	d := New(testConfig(t))

	content := contentFor(t, server.URL)
	content.Resources = []domain.Resource{
		{Method: domain.MethodGet, URL: domain.MustParseURL(server.URL + "/part0")},
		{Method: domain.MethodGet, URL: domain.MustParseURL(server.URL + "/part1")},
		{Method: domain.MethodGet, URL: domain.MustParseURL(server.URL + "/part2")},
	}

	manifest, err := d.DownloadContent(context.Background(), content, nil)
	require.NoError(t, err)
	require.Len(t, manifest.Artifacts, 3)

	for i, artifact := range manifest.Artifacts {
		data, err := os.ReadFile(artifact.Path)
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("/part%d", i), string(data))
		assert.Equal(t, content.Resources[i].Fingerprint(), artifact.Resource.Fingerprint())
	}
}

// TestDownloadContent_RetriesTransient tests recovery from 5xx responses
func TestDownloadContent_RetriesTransient(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte("eventually"))
	}))
	defer server.Close()

	d := New(testConfig(t))

	manifest, err := d.DownloadContent(context.Background(), contentFor(t, server.URL), nil)
	require.NoError(t, err)
	assert.EqualValues(t, 3, calls.Load())
	require.Len(t, manifest.Artifacts, 1)
}

// TestDownloadContent_ExhaustedRetries tests the FetchError after retries
func TestDownloadContent_ExhaustedRetries(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	cfg := testConfig(t)
	d := New(cfg)

	_, err := d.DownloadContent(context.Background(), contentFor(t, server.URL), nil)

	assert.ErrorIs(t, err, domain.ErrFetch)
	assert.EqualValues(t, cfg.MaxAttempts, calls.Load())
	assert.Empty(t, stagingEntries(t, cfg.StagingDir), "failed download must not leave artifacts")
}

// TestDownloadContent_TerminalStatus tests that 4xx fails without retry
func TestDownloadContent_TerminalStatus(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	cfg := testConfig(t)
	d := New(cfg)

	_, err := d.DownloadContent(context.Background(), contentFor(t, server.URL), nil)

	assert.ErrorIs(t, err, domain.ErrFetch)
	assert.EqualValues(t, 1, calls.Load(), "terminal failures must not retry")
	assert.Empty(t, stagingEntries(t, cfg.StagingDir))
}

// TestDownloadContent_FailureDiscardsSiblingArtifacts tests per-content cleanup
func TestDownloadContent_FailureDiscardsSiblingArtifacts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/bad" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.Write([]byte("fine"))
	}))
	defer server.Close()

	cfg := testConfig(t)
	d := New(cfg)

	content := contentFor(t, server.URL)
	content.Resources = []domain.Resource{
		{Method: domain.MethodGet, URL: domain.MustParseURL(server.URL + "/ok")},
		{Method: domain.MethodGet, URL: domain.MustParseURL(server.URL + "/bad")},
	}

	_, err := d.DownloadContent(context.Background(), content, nil)

	assert.ErrorIs(t, err, domain.ErrFetch)
	assert.Empty(t, stagingEntries(t, cfg.StagingDir))
}

// TestDownloadContent_ChecksumVerifies tests a correct declared digest
func TestDownloadContent_ChecksumVerifies(t *testing.T) {
	payload := []byte("checksummed bytes")
	digest := sha256.Sum256(payload)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(payload)
	}))
	defer server.Close()

	d := New(testConfig(t))

	content := contentFor(t, server.URL)
	content.Checksums = []domain.Checksum{
		{Type: domain.HashSHA256, Digest: hex.EncodeToString(digest[:])},
	}

	manifest, err := d.DownloadContent(context.Background(), content, nil)
	require.NoError(t, err)
	assert.Len(t, manifest.Artifacts, 1)
}

// TestDownloadContent_ChecksumMismatch tests the ChecksumError path
func TestDownloadContent_ChecksumMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not what was declared"))
	}))
	defer server.Close()

	cfg := testConfig(t)
	d := New(cfg)

	content := contentFor(t, server.URL)
	content.Checksums = []domain.Checksum{
		{Type: domain.HashSHA256, Digest: "deadbeef"},
	}

	_, err := d.DownloadContent(context.Background(), content, nil)

	assert.ErrorIs(t, err, domain.ErrChecksum)
	assert.Empty(t, stagingEntries(t, cfg.StagingDir), "mismatched artifacts must be discarded")
}

// TestDownloadContent_ChecksumOverConcatenation tests multi-resource digests
func TestDownloadContent_ChecksumOverConcatenation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, r.URL.Path[1:])
	}))
	defer server.Close()

	// Digest over "firstsecond", the concatenation in resource order.
	digest := sha256.Sum256([]byte("firstsecond"))

	d := New(testConfig(t))

	content := contentFor(t, server.URL)
	content.Resources = []domain.Resource{
		{Method: domain.MethodGet, URL: domain.MustParseURL(server.URL + "/first")},
		{Method: domain.MethodGet, URL: domain.MustParseURL(server.URL + "/second")},
	}
	content.Checksums = []domain.Checksum{
		{Type: domain.HashSHA256, Digest: hex.EncodeToString(digest[:])},
	}

	manifest, err := d.DownloadContent(context.Background(), content, nil)
	require.NoError(t, err)
	assert.Len(t, manifest.Artifacts, 2)
}

// TestDownloadContent_ConcurrencyBound tests that the shared pool caps
// in-flight fetches across all content items
func TestDownloadContent_ConcurrencyBound(t *testing.T) {
	const poolSize = 2

	var inFlight, peak atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		current := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			observed := peak.Load()
			if current <= observed || peak.CompareAndSwap(observed, current) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		w.Write([]byte("x"))
	}))
	defer server.Close()

	cfg := testConfig(t)
	cfg.PoolSize = poolSize
	d := New(cfg)

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		content := contentFor(t, server.URL)
		content.ID = fmt.Sprintf("item-%d", i)
		content.Resources = []domain.Resource{
			{Method: domain.MethodGet, URL: domain.MustParseURL(server.URL + fmt.Sprintf("/%d/a", i))},
			{Method: domain.MethodGet, URL: domain.MustParseURL(server.URL + fmt.Sprintf("/%d/b", i))},
			{Method: domain.MethodGet, URL: domain.MustParseURL(server.URL + fmt.Sprintf("/%d/c", i))},
		}

		wg.Add(1)
		go func(c domain.Content) {
			defer wg.Done()
			_, err := d.DownloadContent(context.Background(), c, nil)
			assert.NoError(t, err)
		}(content)
	}
	wg.Wait()

	assert.LessOrEqual(t, peak.Load(), int64(poolSize),
		"in-flight fetches must never exceed the pool size")
}

// TestDownloadContent_Cancellation tests that cancelling mid-fetch
// leaves no temporary files behind
func TestDownloadContent_Cancellation(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("partial"))
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	cfg := testConfig(t)
	cfg.MaxAttempts = 1
	d := New(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	progress := func(string, int, int64) { cancel() }

	_, err := d.DownloadContent(ctx, contentFor(t, server.URL), progress)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, stagingEntries(t, cfg.StagingDir),
		"cancellation must discard temporary artifacts")
}

// TestDownloadContent_ProgressReported tests the progress hook wiring
func TestDownloadContent_ProgressReported(t *testing.T) {
	payload := []byte("progress payload")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(payload)
	}))
	defer server.Close()

	d := New(testConfig(t))

	var reported atomic.Int64
	content := contentFor(t, server.URL)
	content.Size = int64(len(payload))

	_, err := d.DownloadContent(context.Background(), content,
		func(id string, n int, total int64) {
			assert.Equal(t, content.ID, id)
			assert.Equal(t, content.Size, total)
			reported.Add(int64(n))
		})

	require.NoError(t, err)
	assert.EqualValues(t, len(payload), reported.Load())
}

// TestCanHandle tests protocol support detection
func TestCanHandle(t *testing.T) {
	d := New(testConfig(t))

	web := contentFor(t, "https://example.com/a")
	assert.True(t, d.CanHandle(web))

	ftp := contentFor(t, "https://example.com/a")
	ftp.Resources = []domain.Resource{
		{Method: domain.MethodGet, URL: domain.MustParseURL("ftp://example.com/a")},
	}
	assert.False(t, d.CanHandle(ftp))

	empty := contentFor(t, "https://example.com/a")
	empty.Resources = nil
	assert.False(t, d.CanHandle(empty))
}
