// Package cache implements the content-addressed local blob store that
// backs pulls and pushes: compressed layer blobs keyed by their sha256,
// with sidecar files recording the decompressed diff-id and compression
// type used to synthesize config blobs without re-reading every layer.
package cache

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/opencontainers/go-digest"

	"github.com/ocipack/ocipack/pkg/archive"
)

// Cache is a content-addressed store rooted at <home>/cache.
type Cache struct {
	root string

	mu    sync.Mutex
	locks map[digest.Digest]*sync.Mutex
}

// New opens (creating if needed) a cache rooted at <home>/cache.
func New(home string) (*Cache, error) {
	root := filepath.Join(home, "cache")
	for _, dir := range []string{filepath.Join(root, "blobs", "download"), filepath.Join(root, "temp")} {
		if err := os.MkdirAll(dir, 0777); err != nil {
			return nil, fmt.Errorf("failed to create cache dir %s: %w", dir, err)
		}
	}
	return &Cache{root: root, locks: map[digest.Digest]*sync.Mutex{}}, nil
}

func (c *Cache) blobPath(d digest.Digest) string {
	return filepath.Join(c.root, "blobs", d.Encoded())
}

// BlobPath is the path a verified, compressed blob is stored at.
func (c *Cache) BlobPath(d digest.Digest) string { return c.blobPath(d) }

func (c *Cache) diffIDPath(d digest.Digest) string { return c.blobPath(d) + ".tar.sha" }
func (c *Cache) ctPath(d digest.Digest) string     { return c.blobPath(d) + ".ct" }

// DownloadDir is the staging area for in-progress downloads.
func (c *Cache) DownloadDir() string { return filepath.Join(c.root, "blobs", "download") }

// TempDir is scratch space for tar synthesis and JSON staging.
func (c *Cache) TempDir() string { return filepath.Join(c.root, "temp") }

// Lock acquires a per-digest mutex so concurrent jobs for the same blob in
// this process serialize onto a single transfer; the returned func releases
// it. Distinct digests never block each other.
func (c *Cache) Lock(d digest.Digest) func() {
	mu := c.mutex(d)
	mu.Lock()
	return mu.Unlock
}

// Mutex returns the per-digest mutex for d without locking it, for callers
// that need to lock several digests as one set (see internal/muset) rather
// than one at a time.
func (c *Cache) Mutex(d digest.Digest) *sync.Mutex {
	return c.mutex(d)
}

func (c *Cache) mutex(d digest.Digest) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	mu, ok := c.locks[d]
	if !ok {
		mu = &sync.Mutex{}
		c.locks[d] = mu
	}
	return mu
}

// Has reports whether a verified blob with digest d is present.
func (c *Cache) Has(d digest.Digest) bool {
	_, err := os.Stat(c.blobPath(d))
	return err == nil
}

// Size returns the byte length of a cached blob.
func (c *Cache) Size(d digest.Digest) (int64, error) {
	fi, err := os.Stat(c.blobPath(d))
	if err != nil {
		return 0, err
	}
	return fi.Size(), nil
}

// Open returns a reader for a cached blob's compressed bytes.
func (c *Cache) Open(d digest.Digest) (io.ReadCloser, error) {
	return os.Open(c.blobPath(d))
}

// DiffID returns the decompressed-tar sha256 recorded for a cached blob.
func (c *Cache) DiffID(d digest.Digest) (digest.Digest, error) {
	b, err := os.ReadFile(c.diffIDPath(d))
	if err != nil {
		return "", err
	}
	return digest.Parse(strings.TrimSpace(string(b)))
}

// CompressType returns the compression recorded for a cached blob.
func (c *Cache) CompressType(d digest.Digest) (archive.CompressType, error) {
	b, err := os.ReadFile(c.ctPath(d))
	if err != nil {
		return archive.CompressNone, err
	}
	switch strings.TrimSpace(string(b)) {
	case "TAR":
		return archive.CompressNone, nil
	case "TGZ":
		return archive.CompressGzip, nil
	case "ZSTD":
		return archive.CompressZstd, nil
	default:
		return archive.CompressNone, fmt.Errorf("unknown compress type sidecar for %s", d)
	}
}

func compressTypeLabel(ct archive.CompressType) string {
	switch ct {
	case archive.CompressGzip:
		return "TGZ"
	case archive.CompressZstd:
		return "ZSTD"
	default:
		return "TAR"
	}
}

// StageFile creates a new file under the download staging area for a
// streaming write; the caller passes its path back to Commit once the
// digest has been verified.
func (c *Cache) StageFile() (*os.File, error) {
	return os.CreateTemp(c.DownloadDir(), "blob-*")
}

// Commit moves a verified, fully-written staged download into its
// canonical blob path and then writes the diff-id and compress-type
// sidecars, in that order, so a sidecar never appears before its blob.
func (c *Cache) Commit(d digest.Digest, stagedPath string, diffID digest.Digest, ct archive.CompressType) error {
	dst := c.blobPath(d)
	if err := os.Rename(stagedPath, dst); err != nil {
		return fmt.Errorf("failed to move blob into cache: %w", err)
	}
	if err := os.WriteFile(c.diffIDPath(d), []byte(diffID.String()), 0644); err != nil {
		return fmt.Errorf("failed to write diff-id sidecar: %w", err)
	}
	if err := os.WriteFile(c.ctPath(d), []byte(compressTypeLabel(ct)), 0644); err != nil {
		return fmt.Errorf("failed to write compress-type sidecar: %w", err)
	}
	return nil
}
