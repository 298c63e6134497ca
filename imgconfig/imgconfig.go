// Package imgconfig implements the build-time mutators applied to an
// image's manifest and config blob: inserting a synthesized top layer,
// merging labels/envs/ports, and overwriting the entrypoint-adjacent
// fields, finishing with a deterministic serialization of the config.
// Grounded on types/manifest/oci1.go + types/manifest/docker2.go (the
// dialect-tagged descriptor shapes) and types/blob/ociconfig.go (the
// canonical config value mutated here), following the mutator style of
// the teacher's mod/config.go (GetConfig/SetConfig round-trips, one
// mutator per exported func).
package imgconfig

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/opencontainers/go-digest"
	ociv1 "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/ocipack/ocipack/pkg/archive"
	"github.com/ocipack/ocipack/types"
	"github.com/ocipack/ocipack/types/blob"
	"github.com/ocipack/ocipack/types/docker/schema2"
	"github.com/ocipack/ocipack/types/manifest"
)

// Dialect is the manifest family a layer/config mutation targets, since
// the two dialects disagree on what they can represent (Docker-v2-S2 has
// no zstd/plain-tar layer media type and ignores config labels).
type Dialect int

const (
	OCI Dialect = iota
	Docker
)

// DialectOf reports which dialect m belongs to.
func DialectOf(m manifest.Manifest) Dialect {
	switch types.MediaTypeBase(m.GetDescriptor().MediaType) {
	case types.MediaTypeDocker2Manifest, types.MediaTypeDocker2ManifestList:
		return Docker
	default:
		return OCI
	}
}

func layerMediaType(d Dialect, ct archive.CompressType) (string, error) {
	if d == Docker {
		if ct != archive.CompressGzip {
			return "", fmt.Errorf("docker v2 schema 2 has no layer media type for compress type %v: %w", ct, types.ErrUnsupportedMediaType)
		}
		return types.MediaTypeDocker2LayerGzip, nil
	}
	switch ct {
	case archive.CompressGzip:
		return types.MediaTypeOCI1LayerGzip, nil
	case archive.CompressZstd:
		return types.MediaTypeOCI1LayerZstd, nil
	case archive.CompressNone:
		return types.MediaTypeOCI1Layer, nil
	default:
		return "", fmt.Errorf("no OCI layer media type for compress type %v: %w", ct, types.ErrUnsupportedMediaType)
	}
}

func toOCIDesc(d types.Descriptor) ociv1.Descriptor {
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
	return od
}

// AddTopLayer inserts a layer descriptor at index 0 of m's layer list for
// a compressed tar of the given size and digest, choosing the dialect's
// layer media type for ct. Only applies to a single manifest, not an
// index/manifest-list.
func AddTopLayer(m manifest.Manifest, size int64, compressedTarSHA256 digest.Digest, ct archive.CompressType) error {
	if m.IsList() {
		return fmt.Errorf("add_top_layer requires a single manifest, not an index: %w", types.ErrUnsupportedMediaType)
	}
	dialect := DialectOf(m)
	mt, err := layerMediaType(dialect, ct)
	if err != nil {
		return err
	}
	desc := types.Descriptor{MediaType: mt, Size: size, Digest: compressedTarSHA256}
	switch orig := m.GetOrig().(type) {
	case ociv1.Manifest:
		orig.Layers = append([]ociv1.Descriptor{toOCIDesc(desc)}, orig.Layers...)
		return m.SetOrig(orig)
	case schema2.Manifest:
		orig.Layers = append([]types.Descriptor{desc}, orig.Layers...)
		return m.SetOrig(orig)
	default:
		return fmt.Errorf("add_top_layer: unsupported manifest type %T: %w", orig, types.ErrUnsupportedMediaType)
	}
}

// Config wraps a canonical OCI image config blob and the mutators the
// build orchestrator drives over it. Every mutator operates on one
// ociv1.Image-shaped value regardless of the target manifest's dialect;
// dialect-specific rules (Docker-v2-S2 dropping labels) are applied at
// the point a mutator is called, not by keeping two parallel config types.
type Config struct {
	oc blob.OCIConfig
}

// New wraps an already-fetched config blob for mutation.
func New(oc blob.OCIConfig) *Config {
	return &Config{oc: oc}
}

// AddDiffLayer inserts a diff-id at index 0 of the config's rootfs,
// matching the order AddTopLayer inserts the corresponding layer
// descriptor into the manifest.
func (c *Config) AddDiffLayer(tarSHA256 digest.Digest) {
	img := c.oc.GetConfig()
	img.RootFS.DiffIDs = append([]digest.Digest{tarSHA256}, img.RootFS.DiffIDs...)
	c.oc.SetConfig(img)
}

// AddLabels merges labels into the config. A no-op for an empty map.
// Docker-v2-S2 has no config field for labels in this model, so they are
// silently dropped when dialect is Docker; OCI merges with new keys
// winning on collision.
func (c *Config) AddLabels(labels map[string]string, dialect Dialect) {
	if len(labels) == 0 || dialect == Docker {
		return
	}
	img := c.oc.GetConfig()
	if img.Config.Labels == nil {
		img.Config.Labels = map[string]string{}
	}
	for k, v := range labels {
		img.Config.Labels[k] = v
	}
	c.oc.SetConfig(img)
}

// AddEnvs renders each entry as "KEY=VALUE" and appends to the existing
// list; duplicates are allowed, last one wins per container runtime
// convention. A no-op for an empty map.
func (c *Config) AddEnvs(envs map[string]string) {
	if len(envs) == 0 {
		return
	}
	keys := make([]string, 0, len(envs))
	for k := range envs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	img := c.oc.GetConfig()
	for _, k := range keys {
		img.Config.Env = append(img.Config.Env, fmt.Sprintf("%s=%s", k, envs[k]))
	}
	c.oc.SetConfig(img)
}

// OverwriteCmd replaces the config's Cmd.
func (c *Config) OverwriteCmd(cmd []string) {
	img := c.oc.GetConfig()
	img.Config.Cmd = cmd
	c.oc.SetConfig(img)
}

// OverwriteEntrypoint replaces the config's Entrypoint.
func (c *Config) OverwriteEntrypoint(entrypoint []string) {
	img := c.oc.GetConfig()
	img.Config.Entrypoint = entrypoint
	c.oc.SetConfig(img)
}

// OverwriteWorkDir replaces the config's WorkingDir.
func (c *Config) OverwriteWorkDir(s string) {
	img := c.oc.GetConfig()
	img.Config.WorkingDir = s
	c.oc.SetConfig(img)
}

// OverwriteUser replaces the config's User.
func (c *Config) OverwriteUser(s string) {
	img := c.oc.GetConfig()
	img.Config.User = s
	c.oc.SetConfig(img)
}

// AddPorts merges each entry into ExposedPorts, mapped to an empty
// object. A no-op for an empty list.
func (c *Config) AddPorts(exposes []string) {
	if len(exposes) == 0 {
		return
	}
	img := c.oc.GetConfig()
	if img.Config.ExposedPorts == nil {
		img.Config.ExposedPorts = map[string]struct{}{}
	}
	for _, p := range exposes {
		img.Config.ExposedPorts[p] = struct{}{}
	}
	c.oc.SetConfig(img)
}

// Image returns the current canonical config value.
func (c *Config) Image() ociv1.Image {
	return c.oc.GetConfig()
}

// Serialize marshals the current config deterministically (encoding/json
// sorts map keys and never introduces trailing whitespace) and returns the
// bytes alongside the digest and size computed from exactly those bytes.
func (c *Config) Serialize() ([]byte, digest.Digest, int64, error) {
	raw, err := json.Marshal(c.oc.GetConfig())
	if err != nil {
		return nil, "", 0, fmt.Errorf("failed to serialize image config: %w", err)
	}
	return raw, digest.FromBytes(raw), int64(len(raw)), nil
}
