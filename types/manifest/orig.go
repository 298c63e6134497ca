package manifest

import (
	ociv1 "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/ocipack/ocipack/types/docker/schema2"
)

// Type aliases so New's type switch can name the four supported upstream
// manifest/index shapes without importing them at every call site.
type (
	oci1ManifestOrig        = ociv1.Manifest
	oci1IndexOrig           = ociv1.Index
	docker2ManifestOrig     = schema2.Manifest
	docker2ManifestListOrig = schema2.ManifestList
)
