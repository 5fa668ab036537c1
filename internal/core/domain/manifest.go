package domain

import "fmt"

// Artifact is the on-disk result of executing exactly one Resource.
// The fetch engine owns an artifact until the manifest is handed to the
// reconciler; ownership then transfers to the plugin's finalize routine,
// which may rename, move, or delete the file.
type Artifact struct {
	// Resource is the resource that produced this artifact.
	Resource Resource

	// Path is the local file holding the fetched bytes.
	Path string

	// Size is the artifact size in bytes.
	Size int64
}

// Manifest is the complete, verified set of artifacts for one Content.
// Artifacts are positionally aligned with Content.Resources. A manifest
// is only ever constructed after every resource of the content has been
// successfully and verifiably fetched; partial manifests do not exist.
// Manifests are ephemeral: built, passed once to finalize, discarded.
type Manifest struct {
	// Content is the content the artifacts belong to.
	Content Content

	// Artifacts are the fetched files, one per resource, in resource order.
	Artifacts []Artifact
}

// Validate checks the manifest alignment invariant.
func (m Manifest) Validate() error {
	if len(m.Artifacts) != len(m.Content.Resources) {
		return fmt.Errorf(
			"%w: manifest for content %s has %d artifacts for %d resources",
			ErrInvalidContent, m.Content.ID, len(m.Artifacts), len(m.Content.Resources),
		)
	}
	return nil
}
