package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/megu-dl/megu/internal/core/domain"
	"github.com/megu-dl/megu/internal/core/ports/driven"
	"github.com/megu-dl/megu/internal/core/ports/driving"
	"github.com/megu-dl/megu/internal/logger"
)

// Ensure Pipeline implements the interface.
var _ driving.Pipeline = (*Pipeline)(nil)

// Pipeline composes plugin resolution, content filtering, download, and
// finalization into the end-to-end fetch operation.
type Pipeline struct {
	resolver    driving.PluginResolver
	downloaders []driven.Downloader
	filter      ContentFilter
	progress    driven.ProgressFunc
}

// NewPipeline creates a pipeline over the given resolver and downloaders.
// Downloaders are consulted in order per content; the first whose
// CanHandle accepts the content executes it. The content filter defaults
// to BestContent.
func NewPipeline(resolver driving.PluginResolver, downloaders ...driven.Downloader) *Pipeline {
	return &Pipeline{
		resolver:    resolver,
		downloaders: downloaders,
		filter:      BestContent,
	}
}

// SetFilter replaces the pipeline's content filter.
func (p *Pipeline) SetFilter(filter ContentFilter) {
	if filter != nil {
		p.filter = filter
	}
}

// SetProgress installs a progress hook passed to downloads.
func (p *Pipeline) SetProgress(progress driven.ProgressFunc) {
	p.progress = progress
}

// Fetch runs the pipeline for one URL. See driving.Pipeline.
//
// Discovery is drained fully up front: the default filter cannot pick a
// winner for an ID until every candidate has been seen, so the stream is
// buffered and replayed through the filter. Downloads then run lazily,
// one content at a time, as the caller consumes the result channel.
func (p *Pipeline) Fetch(ctx context.Context, rawURL string, toDir string) (<-chan driving.FetchResult, error) {
	u, err := domain.ParseURL(rawURL)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(toDir)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("no directory at %s", toDir)
	}

	plugin := p.resolver.Resolve(u)

	discovered, err := drainDiscovery(ctx, plugin, u)
	if err != nil {
		return nil, err
	}
	logger.Info("Discovered %d content items at %s via %s", len(discovered), u, plugin.Name())

	filtered := p.filter(replay(discovered))

	results := make(chan driving.FetchResult)
	go func() {
		defer close(results)
		// The filter chain blocks on unbuffered sends; returning early
		// without draining it would strand its goroutines.
		defer func() {
			for range filtered {
			}
		}()

		for content := range filtered {
			if ctx.Err() != nil {
				return
			}

			result := p.fetchOne(ctx, plugin, content, toDir)
			if ctx.Err() != nil {
				// Cancelled mid-download; the partial result is
				// meaningless and must not be reported as a failure.
				return
			}

			select {
			case results <- result:
			case <-ctx.Done():
				return
			}
		}
	}()

	return results, nil
}

// Discover runs plugin resolution and discovery only. See driving.Pipeline.
func (p *Pipeline) Discover(ctx context.Context, rawURL string) ([]domain.Content, error) {
	u, err := domain.ParseURL(rawURL)
	if err != nil {
		return nil, err
	}

	plugin := p.resolver.Resolve(u)
	return drainDiscovery(ctx, plugin, u)
}

// fetchOne runs the download → finalize cycle for a single content item.
func (p *Pipeline) fetchOne(
	ctx context.Context,
	plugin driven.Plugin,
	content domain.Content,
	toDir string,
) driving.FetchResult {
	toPath := filepath.Join(toDir, content.Filename())

	if verified, err := existingVerified(toPath, content); err == nil && verified {
		logger.Info("Skipping %s: %s already verified", content.ID, toPath)
		return driving.FetchResult{Content: content, Path: toPath, Skipped: true}
	}

	downloader := p.downloaderFor(content)
	if downloader == nil {
		return driving.FetchResult{
			Content: content,
			Err:     fmt.Errorf("%w: no downloader handles content %s", domain.ErrFetch, content.ID),
		}
	}

	manifest, err := downloader.DownloadContent(ctx, content, p.progress)
	if err != nil {
		return driving.FetchResult{Content: content, Err: err}
	}

	finalPath, err := p.finalize(ctx, plugin, *manifest, toPath)
	if err != nil {
		return driving.FetchResult{Content: content, Err: err}
	}

	return driving.FetchResult{Content: content, Path: finalPath}
}

// finalize hands the manifest to the owning plugin exactly once and
// guarantees that leftover artifacts are removed once the plugin
// returns, success or failure, unless the plugin already relocated them.
func (p *Pipeline) finalize(
	ctx context.Context,
	plugin driven.Plugin,
	manifest domain.Manifest,
	toPath string,
) (string, error) {
	defer discardArtifacts(manifest)

	finalPath, err := plugin.Finalize(ctx, manifest, toPath)
	if err != nil {
		return "", fmt.Errorf("%w: plugin %s: %v", domain.ErrFinalization, plugin.Name(), err)
	}
	return finalPath, nil
}

// downloaderFor returns the first downloader that handles the content.
func (p *Pipeline) downloaderFor(content domain.Content) driven.Downloader {
	for _, downloader := range p.downloaders {
		if downloader.CanHandle(content) {
			return downloader
		}
		logger.Debug("Downloader %s cannot handle content %s", downloader.Name(), content.ID)
	}
	return nil
}

// drainDiscovery consumes a plugin's discovery stream to completion.
// Any discovery error aborts the run for this URL.
func drainDiscovery(ctx context.Context, plugin driven.Plugin, u domain.URL) ([]domain.Content, error) {
	contentCh, errsCh := plugin.IterContent(ctx, u)

	var discovered []domain.Content
	for contentCh != nil || errsCh != nil {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()

		case err, ok := <-errsCh:
			if !ok {
				errsCh = nil
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("%w: plugin %s: %v", domain.ErrDiscovery, plugin.Name(), err)
			}

		case content, ok := <-contentCh:
			if !ok {
				contentCh = nil
				continue
			}
			discovered = append(discovered, content)
		}
	}

	return discovered, nil
}

// replay feeds a drained content slice back into a stream for filtering.
func replay(items []domain.Content) <-chan domain.Content {
	out := make(chan domain.Content)
	go func() {
		defer close(out)
		for _, content := range items {
			out <- content
		}
	}()
	return out
}

// existingVerified reports whether toPath already holds bytes matching
// the content's declared checksum. Content without checksums can never
// verify; the finalizer decides what to do with the existing file.
func existingVerified(toPath string, content domain.Content) (bool, error) {
	if len(content.Checksums) == 0 {
		return false, nil
	}
	if _, err := os.Stat(toPath); err != nil {
		return false, nil
	}

	declared := content.Checksums[0]
	digests, err := domain.HashFile(toPath, declared.Type)
	if err != nil {
		return false, err
	}
	return digests[declared.Type] == declared.Digest, nil
}

// discardArtifacts removes any artifact files the finalizer left behind,
// then the staging directory that held them if it is now empty.
func discardArtifacts(manifest domain.Manifest) {
	for _, artifact := range manifest.Artifacts {
		if err := os.Remove(artifact.Path); err != nil && !os.IsNotExist(err) {
			logger.Warn("Failed to remove artifact %s: %v", artifact.Path, err)
		}
	}
	if len(manifest.Artifacts) > 0 {
		// Best effort: the staging directory is shared by this
		// content's artifacts only.
		_ = os.Remove(filepath.Dir(manifest.Artifacts[0].Path))
	}
}
