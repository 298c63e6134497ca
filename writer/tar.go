package writer

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/opencontainers/go-digest"

	"github.com/ocipack/ocipack/cache"
	"github.com/ocipack/ocipack/pkg/archive"
	"github.com/ocipack/ocipack/types/manifest"
)

const ociLayoutContent = `{"imageLayoutVersion":"1.0.0"}`

type indexEntry struct {
	MediaType string `json:"mediaType"`
	Size      int64  `json:"size"`
	Digest    string `json:"digest"`
}

type ociIndex struct {
	SchemaVersion int          `json:"schemaVersion"`
	Manifests     []indexEntry `json:"manifests"`
}

type legacyManifestEntry struct {
	Config   string   `json:"Config"`
	RepoTags []string `json:"RepoTags"`
	Layers   []string `json:"Layers"`
}

// WriteTar writes an OCI image layout containing m, configRaw, and every
// layer referenced by m (read compressed from c, decompressed for the
// layout) to destPath, gzip-encoding the whole stream when gzipOutput is
// set. Fails if destPath already exists.
func WriteTar(ctx context.Context, c *cache.Cache, m manifest.Manifest, configRaw []byte, repoTag string, destPath string, gzipOutput bool) error {
	f, err := os.OpenFile(destPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to create archive %s: %w", destPath, err)
	}
	defer f.Close()

	var w io.Writer = f
	var gz *gzip.Writer
	if gzipOutput {
		gz, err = gzip.NewWriterLevel(f, gzip.BestSpeed)
		if err != nil {
			return fmt.Errorf("failed to start gzip stream: %w", err)
		}
		defer gz.Close()
		w = gz
	}

	tw := tar.NewWriter(w)
	defer tw.Close()

	layers, err := m.GetLayers()
	if err != nil {
		return fmt.Errorf("failed to read layers: %w", err)
	}
	layerPaths := make([]string, 0, len(layers))
	for _, l := range layers {
		name, err := writeLayerEntry(tw, c, l.Digest)
		if err != nil {
			return fmt.Errorf("failed to write layer %s: %w", l.Digest, err)
		}
		layerPaths = append(layerPaths, name)
	}

	configDesc, err := m.GetConfig()
	if err != nil {
		return fmt.Errorf("failed to read config descriptor: %w", err)
	}
	configName := blobPath(configDesc.Digest.Encoded())
	if err := writeEntry(tw, configName, configRaw, 0644); err != nil {
		return err
	}

	manifestRaw, err := m.RawBody()
	if err != nil {
		return fmt.Errorf("failed to read manifest body: %w", err)
	}
	desc := m.GetDescriptor()

	// size here is the byte length of the media type string, not of the
	// manifest JSON. This matches the behavior being preserved rather than
	// a fresh implementation's natural choice, which would report the
	// manifest's actual byte length.
	index := ociIndex{
		SchemaVersion: 2,
		Manifests: []indexEntry{{
			MediaType: desc.MediaType,
			Size:      int64(len(desc.MediaType)),
			Digest:    desc.Digest.String(),
		}},
	}
	indexJSON, err := json.Marshal(index)
	if err != nil {
		return fmt.Errorf("failed to marshal index.json: %w", err)
	}
	if err := writeEntry(tw, "index.json", indexJSON, 0644); err != nil {
		return err
	}

	legacy := []legacyManifestEntry{{
		Config:   configName,
		RepoTags: []string{repoTag},
		Layers:   layerPaths,
	}}
	legacyJSON, err := json.Marshal(legacy)
	if err != nil {
		return fmt.Errorf("failed to marshal manifest.json: %w", err)
	}
	if err := writeEntry(tw, "manifest.json", legacyJSON, 0644); err != nil {
		return err
	}

	if err := writeEntry(tw, "oci-layout", []byte(ociLayoutContent), 0644); err != nil {
		return err
	}

	manifestName := blobPath(desc.Digest.Encoded())
	if err := writeEntry(tw, manifestName, manifestRaw, 0644); err != nil {
		return err
	}

	return nil
}

func blobPath(hex string) string {
	return filepath.Join("blobs", "sha256", hex)
}

func writeEntry(tw *tar.Writer, name string, data []byte, mode int64) error {
	hdr := &tar.Header{
		Format: tar.FormatPAX,
		Name:   filepath.ToSlash(name),
		Mode:   mode,
		Size:   int64(len(data)),
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("failed to write tar header for %s: %w", name, err)
	}
	if _, err := tw.Write(data); err != nil {
		return fmt.Errorf("failed to write tar entry %s: %w", name, err)
	}
	return nil
}

// writeLayerEntry decompresses the cached blob for d through a temp file
// (so the tar header can carry the decompressed size, which tar requires
// up front) and streams the result into tw, returning the entry's path.
func writeLayerEntry(tw *tar.Writer, c *cache.Cache, d digest.Digest) (string, error) {
	diffID, err := c.DiffID(d)
	if err != nil {
		return "", fmt.Errorf("failed to read diff-id: %w", err)
	}
	ct, err := c.CompressType(d)
	if err != nil {
		return "", fmt.Errorf("failed to read compress type: %w", err)
	}

	blob, err := c.Open(d)
	if err != nil {
		return "", fmt.Errorf("failed to open cached blob: %w", err)
	}
	defer blob.Close()

	var src io.Reader = blob
	if ct != archive.CompressNone {
		src, err = archive.Decompress(blob)
		if err != nil {
			return "", fmt.Errorf("failed to decompress cached blob: %w", err)
		}
	}

	tmp, err := os.CreateTemp(c.TempDir(), "layer-decompressed-*")
	if err != nil {
		return "", fmt.Errorf("failed to stage decompressed layer: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)
	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to decompress layer to disk: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize decompressed layer: %w", err)
	}

	fi, err := os.Stat(tmpPath)
	if err != nil {
		return "", fmt.Errorf("failed to stat decompressed layer: %w", err)
	}
	f, err := os.Open(tmpPath)
	if err != nil {
		return "", fmt.Errorf("failed to reopen decompressed layer: %w", err)
	}
	defer f.Close()

	name := blobPath(diffID.Encoded())
	hdr := &tar.Header{
		Format: tar.FormatPAX,
		Name:   filepath.ToSlash(name),
		Mode:   0644,
		Size:   fi.Size(),
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return "", fmt.Errorf("failed to write tar header for %s: %w", name, err)
	}
	if _, err := io.Copy(tw, f); err != nil {
		return "", fmt.Errorf("failed to write tar entry %s: %w", name, err)
	}
	return name, nil
}
