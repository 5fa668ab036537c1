package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validContent() Content {
	return Content{
		ID:      "item-1",
		Group:   "item-1",
		Name:    "Test Item",
		URL:     MustParseURL("https://example.com/item/1"),
		Quality: 1,
		Size:    1024,
		Type:    "image/png",
		Resources: []Resource{
			{Method: MethodGet, URL: MustParseURL("https://example.com/item/1.png")},
		},
	}
}

// TestContent_Validate tests that a well-formed content passes validation
func TestContent_Validate(t *testing.T) {
	require.NoError(t, validContent().Validate())
}

// TestContent_Validate_EmptyID tests rejection of content without an ID
func TestContent_Validate_EmptyID(t *testing.T) {
	c := validContent()
	c.ID = ""
	assert.ErrorIs(t, c.Validate(), ErrInvalidContent)
}

// TestContent_Validate_NoResources tests rejection of content with zero resources
func TestContent_Validate_NoResources(t *testing.T) {
	c := validContent()
	c.Resources = nil
	assert.ErrorIs(t, c.Validate(), ErrInvalidContent)
}

// TestContent_Validate_NonPositiveQuality tests rejection of bad quality values
func TestContent_Validate_NonPositiveQuality(t *testing.T) {
	for _, quality := range []float64{0, -1} {
		c := validContent()
		c.Quality = quality
		assert.ErrorIs(t, c.Validate(), ErrInvalidContent)
	}
}

// TestContent_Validate_BadResource tests rejection of a malformed resource
func TestContent_Validate_BadResource(t *testing.T) {
	c := validContent()
	c.Resources = append(c.Resources, Resource{Method: MethodGet})
	assert.ErrorIs(t, c.Validate(), ErrInvalidContent)
}

// TestContent_Extension tests mimetype to extension mapping
func TestContent_Extension(t *testing.T) {
	c := validContent()
	assert.Equal(t, ".png", c.Extension())

	c.Type = "application/x-unknown-nonsense"
	assert.Empty(t, c.Extension())
}

// TestContent_Filename tests the default file name derivation
func TestContent_Filename(t *testing.T) {
	c := validContent()
	assert.Equal(t, "item-1.png", c.Filename())

	c.Type = ""
	assert.Equal(t, "item-1", c.Filename())
}

// TestManifest_Validate tests the artifact alignment invariant
func TestManifest_Validate(t *testing.T) {
	c := validContent()

	aligned := Manifest{
		Content: c,
		Artifacts: []Artifact{
			{Resource: c.Resources[0], Path: "/tmp/a", Size: 1024},
		},
	}
	require.NoError(t, aligned.Validate())

	partial := Manifest{Content: c}
	assert.ErrorIs(t, partial.Validate(), ErrInvalidContent)
}
