package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/megu-dl/megu/internal/core/domain"
	"github.com/megu-dl/megu/internal/core/ports/driven"
	"github.com/megu-dl/megu/internal/core/services"
)

// fakePlugin yields a fixed content list and finalizes by renaming the
// single artifact.
type fakePlugin struct {
	contents []domain.Content
}

func (p *fakePlugin) Name() string                { return "fake" }
func (p *fakePlugin) Domains() []string           { return []string{"*"} }
func (p *fakePlugin) CanHandle(_ domain.URL) bool { return true }

func (p *fakePlugin) IterContent(ctx context.Context, _ domain.URL) (<-chan domain.Content, <-chan error) {
	contentCh := make(chan domain.Content)
	errsCh := make(chan error)
	go func() {
		defer close(contentCh)
		defer close(errsCh)
		for _, content := range p.contents {
			select {
			case contentCh <- content:
			case <-ctx.Done():
				return
			}
		}
	}()
	return contentCh, errsCh
}

func (p *fakePlugin) Finalize(_ context.Context, manifest domain.Manifest, toPath string) (string, error) {
	if len(manifest.Artifacts) != 1 {
		return "", fmt.Errorf("expected 1 artifact, got %d", len(manifest.Artifacts))
	}
	if err := os.Rename(manifest.Artifacts[0].Path, toPath); err != nil {
		return "", err
	}
	return toPath, nil
}

// fakeDownloader writes one artifact per content into its staging
// directory. Content IDs prefixed "bad" fail.
type fakeDownloader struct {
	stagingDir string
}

func (d *fakeDownloader) Name() string                    { return "fake" }
func (d *fakeDownloader) CanHandle(_ domain.Content) bool { return true }

func (d *fakeDownloader) DownloadContent(
	_ context.Context,
	content domain.Content,
	progress driven.ProgressFunc,
) (*domain.Manifest, error) {
	if len(content.ID) >= 3 && content.ID[:3] == "bad" {
		return nil, fmt.Errorf("%w: content %s refused", domain.ErrFetch, content.ID)
	}

	data := []byte("payload for " + content.ID)
	path := filepath.Join(d.stagingDir, content.ID)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, err
	}
	if progress != nil {
		progress(content.ID, len(data), content.Size)
	}

	return &domain.Manifest{
		Content: content,
		Artifacts: []domain.Artifact{
			{Resource: content.Resources[0], Path: path, Size: int64(len(data))},
		},
	}, nil
}

// setupTestServices wires the package-level services with fakes and
// returns a cleanup restoring the untouched state.
func setupTestServices(stagingDir string, contents ...domain.Content) func() {
	plugin := &fakePlugin{contents: contents}
	resolver = services.NewPluginResolver(plugin)
	pipeline = services.NewPipeline(resolver, &fakeDownloader{stagingDir: stagingDir})

	return func() {
		resolver = nil
		pipeline = nil
		settingsStore = nil
		getDir = ""
		getName = ""
		getQuality = 0
		getType = ""
	}
}

// testContent builds a valid content item for CLI tests.
func testContent(id, group, name string, quality float64) domain.Content {
	u := domain.MustParseURL("https://example.com/" + id)
	return domain.Content{
		ID:      id,
		Group:   group,
		Name:    name,
		URL:     u,
		Quality: quality,
		Type:    "video/mp4",
		Resources: []domain.Resource{
			{Method: domain.MethodGet, URL: u},
		},
	}
}
