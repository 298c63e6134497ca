package types

import "strings"

// Media type strings for the manifest, index, and config dialects this
// module understands, plus the layer media types referenced from them.
const (
	// MediaTypeDocker2Manifest is a Docker v2 schema 2 single-platform manifest.
	MediaTypeDocker2Manifest = "application/vnd.docker.distribution.manifest.v2+json"
	// MediaTypeDocker2ManifestList is a Docker v2 schema 2 manifest list (multi-platform).
	MediaTypeDocker2ManifestList = "application/vnd.docker.distribution.manifest.list.v2+json"
	// MediaTypeDocker2ImageConfig is the Docker v2 container image config.
	MediaTypeDocker2ImageConfig = "application/vnd.docker.container.image.v1+json"
	// MediaTypeDocker2Layer is an uncompressed Docker layer.
	MediaTypeDocker2Layer = "application/vnd.docker.image.rootfs.diff.tar"
	// MediaTypeDocker2LayerGzip is a gzip compressed Docker layer.
	MediaTypeDocker2LayerGzip = "application/vnd.docker.image.rootfs.diff.tar.gzip"
	// MediaTypeDocker2ForeignLayer is a non-distributable Docker layer.
	MediaTypeDocker2ForeignLayer = "application/vnd.docker.image.rootfs.foreign.diff.tar.gzip"

	// MediaTypeOCI1Manifest is an OCI v1 single-platform manifest.
	MediaTypeOCI1Manifest = "application/vnd.oci.image.manifest.v1+json"
	// MediaTypeOCI1ManifestList is an OCI v1 index (multi-platform).
	MediaTypeOCI1ManifestList = "application/vnd.oci.image.index.v1+json"
	// MediaTypeOCI1ImageConfig is the OCI v1 image config.
	MediaTypeOCI1ImageConfig = "application/vnd.oci.image.config.v1+json"
	// MediaTypeOCI1Layer is an uncompressed OCI layer.
	MediaTypeOCI1Layer = "application/vnd.oci.image.layer.v1.tar"
	// MediaTypeOCI1LayerGzip is a gzip compressed OCI layer.
	MediaTypeOCI1LayerGzip = "application/vnd.oci.image.layer.v1.tar+gzip"
	// MediaTypeOCI1LayerZstd is a zstd compressed OCI layer.
	MediaTypeOCI1LayerZstd = "application/vnd.oci.image.layer.v1.tar+zstd"
	// MediaTypeOCI1ForeignLayer is a non-distributable OCI layer.
	MediaTypeOCI1ForeignLayer = "application/vnd.oci.image.layer.nondistributable.v1.tar+gzip"
)

// MediaTypeBase strips a trailing "; charset=..." (or any other parameter)
// from a media type string so it can be compared against the constants above.
func MediaTypeBase(mt string) string {
	if i := strings.Index(mt, ";"); i >= 0 {
		mt = mt[:i]
	}
	return strings.TrimSpace(mt)
}
