// Package generic implements the fallback plugin used when no
// registered plugin handles a URL. It assumes a single HTTP GET at the
// URL reproduces the content whole.
package generic

import (
	"context"
	"crypto/md5" //nolint:gosec // Content IDs, not security.
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"time"

	"github.com/megu-dl/megu/internal/core/domain"
	"github.com/megu-dl/megu/internal/core/ports/driven"
	"github.com/megu-dl/megu/internal/logger"
)

const (
	fallbackMimetype = "application/octet-stream"

	// cacheNamespace scopes cached probe results in the plugin cache.
	cacheNamespace = "generic-probe"

	// probeTTL bounds how long a cached probe result is trusted.
	probeTTL = time.Hour
)

// Ensure Plugin implements the interface.
var _ driven.Plugin = (*Plugin)(nil)

// Plugin is the generic single-GET plugin.
type Plugin struct {
	client *http.Client
	cache  driven.PluginCache
}

// New creates a generic plugin.
func New() *Plugin {
	return &Plugin{client: &http.Client{}}
}

// NewWithClient creates a generic plugin using a custom HTTP client.
func NewWithClient(client *http.Client) *Plugin {
	return &Plugin{client: client}
}

// WithCache installs a plugin cache used to remember probe results
// across runs and returns the plugin.
func (p *Plugin) WithCache(cache driven.PluginCache) *Plugin {
	p.cache = cache
	return p
}

// Name returns the plugin name.
func (p *Plugin) Name() string {
	return "generic"
}

// Domains returns the wildcard pattern; the generic plugin matches
// every hostname.
func (p *Plugin) Domains() []string {
	return []string{"*"}
}

// CanHandle always returns true. The generic plugin is the guaranteed
// last resort of resolution.
func (p *Plugin) CanHandle(_ domain.URL) bool {
	return true
}

// IterContent probes the URL with a HEAD request and, when it responds
// successfully, yields a single content item backed by one GET resource.
func (p *Plugin) IterContent(ctx context.Context, u domain.URL) (<-chan domain.Content, <-chan error) {
	contentCh := make(chan domain.Content)
	errsCh := make(chan error, 1)

	go func() {
		defer close(contentCh)
		defer close(errsCh)

		info, ok := p.cachedProbe(ctx, u)
		if !ok {
			probed, found, err := p.probe(ctx, u)
			if err != nil {
				errsCh <- err
				return
			}
			// A URL that refuses HEAD simply has no generic content.
			if !found {
				return
			}
			info = probed
			p.storeProbe(ctx, u, info)
		}

		id := contentID(u)
		content := domain.Content{
			ID:      id,
			Group:   id,
			Name:    "Generic Content",
			URL:     u,
			Quality: 1,
			Size:    info.Size,
			Type:    info.Type,
			Resources: []domain.Resource{
				{Method: domain.MethodGet, URL: u},
			},
		}

		select {
		case contentCh <- content:
		case <-ctx.Done():
		}
	}()

	return contentCh, errsCh
}

// probeInfo is the cached outcome of a successful HEAD probe.
type probeInfo struct {
	Size int64  `json:"size"`
	Type string `json:"type"`
}

// probe issues the HEAD request. The second return reports whether the
// URL responded successfully.
func (p *Plugin) probe(ctx context.Context, u domain.URL) (probeInfo, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, u.String(), nil)
	if err != nil {
		return probeInfo{}, false, fmt.Errorf("probing %s: %w", u, err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return probeInfo{}, false, fmt.Errorf("probing %s: %w", u, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return probeInfo{}, false, nil
	}

	return probeInfo{Size: max(resp.ContentLength, 0), Type: mimetypeOf(resp)}, true, nil
}

// cachedProbe looks a probe result up in the plugin cache. Cache
// failures are advisory; a miss just re-probes.
func (p *Plugin) cachedProbe(ctx context.Context, u domain.URL) (probeInfo, bool) {
	if p.cache == nil {
		return probeInfo{}, false
	}

	raw, err := p.cache.Get(ctx, cacheNamespace, u.String())
	if err != nil {
		return probeInfo{}, false
	}

	var info probeInfo
	if err := json.Unmarshal(raw, &info); err != nil {
		logger.Debug("Dropping undecodable probe cache entry for %s: %v", u, err)
		return probeInfo{}, false
	}
	return info, true
}

// storeProbe records a probe result in the plugin cache.
func (p *Plugin) storeProbe(ctx context.Context, u domain.URL, info probeInfo) {
	if p.cache == nil {
		return
	}

	raw, err := json.Marshal(info)
	if err != nil {
		return
	}
	if err := p.cache.Set(ctx, cacheNamespace, u.String(), raw, probeTTL); err != nil {
		logger.Debug("Failed to cache probe result for %s: %v", u, err)
	}
}

// Finalize expects exactly one artifact and renames it to the
// destination path.
func (p *Plugin) Finalize(_ context.Context, manifest domain.Manifest, toPath string) (string, error) {
	if len(manifest.Artifacts) != 1 {
		return "", fmt.Errorf(
			"generic plugin expects exactly 1 artifact, manifest has %d", len(manifest.Artifacts),
		)
	}

	artifact := manifest.Artifacts[0]
	if _, err := os.Stat(artifact.Path); err != nil {
		return "", fmt.Errorf("no artifact file at %s: %w", artifact.Path, err)
	}

	if err := moveFile(artifact.Path, toPath); err != nil {
		return "", err
	}
	return toPath, nil
}

// contentID derives the stable content ID for a URL.
func contentID(u domain.URL) string {
	sum := md5.Sum([]byte(u.String())) //nolint:gosec // Identity, not security.
	return "generic-" + hex.EncodeToString(sum[:])
}

// mimetypeOf extracts a clean mimetype from the response.
func mimetypeOf(resp *http.Response) string {
	raw := resp.Header.Get("Content-Type")
	if raw == "" {
		return fallbackMimetype
	}
	mimetype, _, err := mime.ParseMediaType(raw)
	if err != nil {
		return fallbackMimetype
	}
	return mimetype
}

// moveFile renames a file, falling back to copy+remove when source and
// destination are on different filesystems.
func moveFile(from, to string) error {
	if err := os.Rename(from, to); err == nil {
		return nil
	}

	src, err := os.Open(from)
	if err != nil {
		return fmt.Errorf("opening %s: %w", from, err)
	}
	defer src.Close()

	dst, err := os.Create(to)
	if err != nil {
		return fmt.Errorf("creating %s: %w", to, err)
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(to)
		return fmt.Errorf("copying to %s: %w", to, err)
	}
	if err := dst.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", to, err)
	}

	return os.Remove(from)
}
