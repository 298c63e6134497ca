// Package writer implements the two target writers spec.md §4.L names:
// a registry push (registry.go) and an OCI-layout tar archive (tar.go).
// Both consume a manifest plus serialized config and read layer bytes
// back out of the local cache; neither re-downloads anything.
package writer

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/opencontainers/go-digest"

	"github.com/ocipack/ocipack/cache"
	"github.com/ocipack/ocipack/registry"
	"github.com/ocipack/ocipack/scheduler"
	"github.com/ocipack/ocipack/transfer"
	"github.com/ocipack/ocipack/types/manifest"
)

// PushToRegistry uploads every layer referenced by m (read from c), the
// config blob (configRaw), and finally m itself to reference on cl,
// reusing registry+transfer+scheduler the way a pull reuses them for
// downloads. Blobs the registry already has are skipped without reading
// them back out of the cache, matching has_blob's role in the teacher's
// own push path.
func PushToRegistry(ctx context.Context, cl *registry.Client, c *cache.Cache, m manifest.Manifest, configRaw []byte, reference string, out io.Writer) error {
	layers, err := m.GetLayers()
	if err != nil {
		return fmt.Errorf("failed to read layers: %w", err)
	}
	configDesc, err := m.GetConfig()
	if err != nil {
		return fmt.Errorf("failed to read config descriptor: %w", err)
	}

	configPath, cleanup, err := stageConfig(c, configRaw)
	if err != nil {
		return err
	}
	defer cleanup()

	type upload struct {
		digest digest.Digest
		path   string
	}
	uploads := make([]upload, 0, len(layers)+1)
	for _, l := range layers {
		uploads = append(uploads, upload{digest: l.Digest, path: c.BlobPath(l.Digest)})
	}
	uploads = append(uploads, upload{digest: configDesc.Digest, path: configPath})

	jobs := make([]scheduler.Job, len(uploads))
	for i, u := range uploads {
		u := u
		exists, err := cl.HasBlob(ctx, u.digest)
		if err != nil {
			return fmt.Errorf("failed to check for existing blob %s: %w", u.digest, err)
		}
		jobs[i] = transfer.NewUploadJob(u.digest, u.path, exists, func(ctx context.Context, body io.Reader, contentLength int64) (int, []byte, error) {
			return cl.UploadBlob(ctx, u.digest, body, contentLength)
		})
	}
	results := scheduler.Run(ctx, jobs, out)
	for i, res := range results {
		if res.State == transfer.Failed {
			return fmt.Errorf("failed to upload %s: %w", uploads[i].digest, res.Err)
		}
	}

	return cl.PutManifest(ctx, m, reference)
}

// stageConfig writes raw config bytes to a temp file under c so the upload
// job can stream it the same way it streams a layer from the cache.
func stageConfig(c *cache.Cache, raw []byte) (string, func(), error) {
	f, err := os.CreateTemp(c.TempDir(), "push-config-*")
	if err != nil {
		return "", func() {}, fmt.Errorf("failed to stage config for upload: %w", err)
	}
	path := f.Name()
	if _, err := f.Write(raw); err != nil {
		f.Close()
		os.Remove(path)
		return "", func() {}, fmt.Errorf("failed to stage config for upload: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", func() {}, fmt.Errorf("failed to stage config for upload: %w", err)
	}
	return path, func() { os.Remove(path) }, nil
}
