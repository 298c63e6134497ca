// Package transform converts a manifest between the OCI v1 and Docker v2
// schema 2 dialects: a bidirectional layer media-type table plus the
// manifest-level field mapping spec.md §4.I describes. Grounded on
// types/manifest's dialect structs and types/mediatype.go's constant
// table, which already enumerates exactly the pairs this package maps.
package transform

import (
	"fmt"

	"github.com/opencontainers/go-digest"
	ociv1 "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/ocipack/ocipack/imgconfig"
	"github.com/ocipack/ocipack/types"
	"github.com/ocipack/ocipack/types/docker/schema2"
	"github.com/ocipack/ocipack/types/manifest"
)

// Dialect is reused from imgconfig so callers don't need to juggle two
// identical enums for "which manifest family am I targeting".
type Dialect = imgconfig.Dialect

const (
	OCI    = imgconfig.OCI
	Docker = imgconfig.Docker
)

type layerPair struct{ oci, docker string }

// layerTable is the bidirectional mapping spec.md §4.I names; entries with
// no counterpart (plain-tar OCI layers) are intentionally absent and fail
// when a conversion is attempted into the other dialect.
var layerTable = []layerPair{
	{types.MediaTypeOCI1LayerGzip, types.MediaTypeDocker2LayerGzip},
	{types.MediaTypeOCI1ForeignLayer, types.MediaTypeDocker2ForeignLayer},
}

// LayerMediaType maps a source layer media type to its equivalent in the
// target dialect. A layer already in the target dialect passes through
// unchanged. An unmappable media type (OCI plain tar/zstd have no Docker
// v2 schema 2 counterpart) fails naming the offending value.
func LayerMediaType(src string, target Dialect) (string, error) {
	base := types.MediaTypeBase(src)
	for _, p := range layerTable {
		switch target {
		case Docker:
			if p.oci == base {
				return p.docker, nil
			}
		default:
			if p.docker == base {
				return p.oci, nil
			}
		}
	}
	switch target {
	case Docker:
		switch base {
		case types.MediaTypeDocker2Layer, types.MediaTypeDocker2LayerGzip, types.MediaTypeDocker2ForeignLayer:
			return base, nil
		}
	default:
		switch base {
		case types.MediaTypeOCI1Layer, types.MediaTypeOCI1LayerGzip, types.MediaTypeOCI1LayerZstd, types.MediaTypeOCI1ForeignLayer:
			return base, nil
		}
	}
	return "", fmt.Errorf("unmappable layer media type %q for target dialect: %w", src, types.ErrUnsupportedMediaType)
}

// Manifest converts src into the target dialect, remapping every layer's
// media type through LayerMediaType and pointing the config descriptor at
// a (possibly just re-serialized) config blob identified by configDigest/
// configSize. Converting to the same dialect src is already in is
// equivalent to refreshing only the config descriptor. Manifest
// lists/indexes are not supported; convert each platform manifest and
// rebuild the list separately.
func Manifest(src manifest.Manifest, target Dialect, configDigest digest.Digest, configSize int64) (manifest.Manifest, error) {
	if src.IsList() {
		return nil, fmt.Errorf("manifest list/index conversion is not supported: %w", types.ErrUnsupportedMediaType)
	}
	srcLayers, err := src.GetLayers()
	if err != nil {
		return nil, err
	}
	annotations, err := src.GetAnnotations()
	if err != nil {
		return nil, err
	}
	newLayers := make([]types.Descriptor, len(srcLayers))
	for i, l := range srcLayers {
		mt, err := LayerMediaType(l.MediaType, target)
		if err != nil {
			return nil, fmt.Errorf("layer %d: %w", i, err)
		}
		nl := l
		nl.MediaType = mt
		newLayers[i] = nl
	}

	switch target {
	case Docker:
		configDesc := types.Descriptor{
			MediaType: types.MediaTypeDocker2ImageConfig,
			Digest:    configDigest,
			Size:      configSize,
		}
		orig := schema2.Manifest{
			Versioned:   schema2.ManifestSchemaVersion,
			Config:      configDesc,
			Layers:      newLayers,
			Annotations: annotations,
		}
		return manifest.New(manifest.WithOrig(orig))
	default:
		configDesc := ociv1.Descriptor{
			MediaType: types.MediaTypeOCI1ImageConfig,
			Digest:    configDigest,
			Size:      configSize,
		}
		orig := ociv1.Manifest{
			MediaType:   types.MediaTypeOCI1Manifest,
			Config:      configDesc,
			Layers:      toOCILayers(newLayers),
			Annotations: annotations,
		}
		orig.SchemaVersion = 2
		return manifest.New(manifest.WithOrig(orig))
	}
}

func toOCILayers(dl []types.Descriptor) []ociv1.Descriptor {
	ret := make([]ociv1.Descriptor, len(dl))
	for i, d := range dl {
		od := ociv1.Descriptor{
			MediaType:   d.MediaType,
			Size:        d.Size,
			Digest:      d.Digest,
			URLs:        d.URLs,
			Annotations: d.Annotations,
			Data:        d.Data,
		}
		if d.Platform != nil {
			od.Platform = &ociv1.Platform{
				OS:           d.Platform.OS,
				Architecture: d.Platform.Architecture,
				Variant:      d.Platform.Variant,
				OSVersion:    d.Platform.OSVersion,
				OSFeatures:   d.Platform.OSFeatures,
			}
		}
		ret[i] = od
	}
	return ret
}
