package writer

import (
	"archive/tar"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/opencontainers/go-digest"
	ociv1 "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/ocipack/ocipack/cache"
	"github.com/ocipack/ocipack/pkg/archive"
	"github.com/ocipack/ocipack/types"
	"github.com/ocipack/ocipack/types/manifest"
)

func cacheWithLayer(t *testing.T, c *cache.Cache, plain []byte) digest.Digest {
	t.Helper()
	compressed, err := archive.Compress(bytes.NewReader(plain), archive.CompressGzip)
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}
	buf, err := io.ReadAll(compressed)
	if err != nil {
		t.Fatalf("read compressed: %v", err)
	}
	compDigest := digest.FromBytes(buf)
	diffID := digest.FromBytes(plain)
	staged, err := c.StageFile()
	if err != nil {
		t.Fatalf("StageFile: %v", err)
	}
	if _, err := staged.Write(buf); err != nil {
		t.Fatalf("write staged: %v", err)
	}
	staged.Close()
	if err := c.Commit(compDigest, staged.Name(), diffID, archive.CompressGzip); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	return compDigest
}

func TestWriteTarProducesSixEntries(t *testing.T) {
	dir := t.TempDir()
	c, err := cache.New(dir)
	if err != nil {
		t.Fatalf("cache.New: %v", err)
	}

	layerPlain := []byte("hello layer contents")
	layerDigest := cacheWithLayer(t, c, layerPlain)

	cfg := ociv1.Image{Architecture: "amd64", OS: "linux"}
	cfgRaw, err := json.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	cfgDigest := digest.FromBytes(cfgRaw)

	orig := ociv1.Manifest{
		MediaType: types.MediaTypeOCI1Manifest,
		Config:    ociv1.Descriptor{MediaType: types.MediaTypeOCI1ImageConfig, Size: int64(len(cfgRaw)), Digest: cfgDigest},
		Layers:    []ociv1.Descriptor{{MediaType: types.MediaTypeOCI1LayerGzip, Size: 1, Digest: layerDigest}},
	}
	m, err := manifest.New(manifest.WithOrig(orig))
	if err != nil {
		t.Fatalf("manifest.New: %v", err)
	}

	destPath := filepath.Join(dir, "out.tar")
	if err := WriteTar(context.Background(), c, m, cfgRaw, "example.com/repo:tag", destPath, false); err != nil {
		t.Fatalf("WriteTar: %v", err)
	}

	f, err := os.Open(destPath)
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	defer f.Close()
	tr := tar.NewReader(f)
	names := map[string]int64{}
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("tar.Next: %v", err)
		}
		names[hdr.Name] = hdr.Size
	}
	if len(names) != 6 {
		t.Fatalf("expected 6 entries, got %d: %v", len(names), names)
	}
	for _, want := range []string{
		"blobs/sha256/" + digest.FromBytes(layerPlain).Encoded(),
		"blobs/sha256/" + cfgDigest.Encoded(),
		"index.json",
		"manifest.json",
		"oci-layout",
	} {
		if _, ok := names[want]; !ok {
			t.Errorf("missing entry %s, got %v", want, names)
		}
	}

	desc := m.GetDescriptor()
	raw, err := m.RawBody()
	if err != nil {
		t.Fatalf("RawBody: %v", err)
	}
	if _, ok := names["blobs/sha256/"+digest.FromBytes(raw).Encoded()]; !ok {
		t.Errorf("missing manifest blob entry for digest %s", desc.Digest)
	}
}

func TestWriteTarFailsIfDestExists(t *testing.T) {
	dir := t.TempDir()
	c, err := cache.New(dir)
	if err != nil {
		t.Fatalf("cache.New: %v", err)
	}
	destPath := filepath.Join(dir, "out.tar")
	if err := os.WriteFile(destPath, []byte("existing"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg := ociv1.Image{}
	cfgRaw, _ := json.Marshal(cfg)
	cfgDigest := digest.FromBytes(cfgRaw)
	orig := ociv1.Manifest{
		MediaType: types.MediaTypeOCI1Manifest,
		Config:    ociv1.Descriptor{MediaType: types.MediaTypeOCI1ImageConfig, Size: int64(len(cfgRaw)), Digest: cfgDigest},
	}
	m, err := manifest.New(manifest.WithOrig(orig))
	if err != nil {
		t.Fatalf("manifest.New: %v", err)
	}
	if err := WriteTar(context.Background(), c, m, cfgRaw, "example.com/repo:tag", destPath, false); err == nil {
		t.Fatal("expected error writing over an existing archive")
	}
}
