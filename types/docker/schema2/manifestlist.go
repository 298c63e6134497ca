package schema2

import (
	"github.com/ocipack/ocipack/types"
	"github.com/ocipack/ocipack/types/docker"
)

// ManifestListSchemaVersion is a pre-configured versioned field for manifest lists
var ManifestListSchemaVersion = docker.Versioned{
	SchemaVersion: 2,
	MediaType:     types.MediaTypeDocker2ManifestList,
}

// ManifestList references manifests for various platforms.
type ManifestList struct {
	docker.Versioned

	// Manifests references the platform-specific manifests.
	Manifests []types.Descriptor `json:"manifests"`
}
