// Package docker holds the small shared types the Docker v2 schema 2
// manifest and manifest list dialects both embed.
package docker

// Versioned provides the accessors for schema version and media type,
// embedded by both Manifest and ManifestList.
type Versioned struct {
	// SchemaVersion is the image manifest schema that this image follows.
	SchemaVersion int `json:"schemaVersion"`

	// MediaType is the media type of this schema.
	MediaType string `json:"mediaType,omitempty"`
}
