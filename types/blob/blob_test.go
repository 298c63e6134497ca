package blob

import (
	"archive/tar"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"testing"

	"github.com/opencontainers/go-digest"
	ociv1 "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/ocipack/ocipack/types"
	"github.com/ocipack/ocipack/types/ref"
)

var (
	exRef, _ = ref.New("localhost:5000/library/alpine:latest")
	exBlob   = []byte(`{"created":"2021-11-24T20:19:40Z","architecture":"amd64","os":"linux","config":{"Cmd":["/bin/sh"]},"rootfs":{"type":"layers","diff_ids":["sha256:8d3ac3489996423f53d6087c81180006263b79f206d3fdec9e66f0e27ceb8759"]}}`)
	exLen     = int64(len(exBlob))
	exDigest  = digest.FromBytes(exBlob)
	exMT      = types.MediaTypeDocker2ImageConfig
	exHeaders = http.Header{
		"Content-Type":          {exMT},
		"Content-Length":        {fmt.Sprintf("%d", exLen)},
		"Docker-Content-Digest": {exDigest.String()},
	}
	exDesc = types.Descriptor{
		MediaType: exMT,
		Digest:    exDigest,
		Size:      exLen,
	}
)

// seekCloser adds a no-op Close to a bytes.Reader while keeping its Seek.
type seekCloser struct{ *bytes.Reader }

func (seekCloser) Close() error { return nil }

// buildTar creates an in-memory tar with the given files, honoring a
// ".wh." prefix on a name to emit a whiteout entry.
func buildTar(t *testing.T, files map[string]string) []byte {
	t.Helper()
	buf := &bytes.Buffer{}
	tw := tar.NewWriter(buf)
	for name, content := range files {
		hdr := &tar.Header{Name: name, Mode: 0644, Size: int64(len(content))}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatalf("write header: %v", err)
		}
		if _, err := tw.Write([]byte(content)); err != nil {
			t.Fatalf("write content: %v", err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("close tar: %v", err)
	}
	return buf.Bytes()
}

func TestReader(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		b := NewReader()
		_, err := b.RawBody()
		if err != nil {
			t.Fatalf("unexpected error on empty read: %v", err)
		}
		if err := b.Close(); err != nil {
			t.Errorf("close failed: %v", err)
		}
	})

	t.Run("reader", func(t *testing.T) {
		b := NewReader(
			WithReader(io.NopCloser(bytes.NewReader(exBlob))),
			WithHeader(exHeaders),
			WithRef(exRef),
		)
		bb, err := b.RawBody()
		if err != nil {
			t.Fatalf("rawbody: %v", err)
		}
		if !bytes.Equal(bb, exBlob) {
			t.Errorf("rawbody mismatch, expected %s, received %s", exBlob, bb)
		}
		if b.GetDescriptor().Digest != exDigest {
			t.Errorf("digest, expected %s, received %s", exDigest, b.GetDescriptor().Digest)
		}
		if b.GetDescriptor().Size != exLen {
			t.Errorf("size, expected %d, received %d", exLen, b.GetDescriptor().Size)
		}
		if b.GetDescriptor().MediaType != exMT {
			t.Errorf("media type, expected %s, received %s", exMT, b.GetDescriptor().MediaType)
		}
	})

	t.Run("size mismatch", func(t *testing.T) {
		short := exHeaders.Clone()
		short.Set("Content-Length", fmt.Sprintf("%d", exLen-5))
		b := NewReader(
			WithReader(io.NopCloser(bytes.NewReader(exBlob))),
			WithHeader(short),
		)
		_, err := b.RawBody()
		if err == nil {
			t.Fatalf("expected size mismatch error")
		}
	})

	t.Run("digest mismatch", func(t *testing.T) {
		bad := exHeaders.Clone()
		bad.Set("Docker-Content-Digest", digest.FromString("not the right content").String())
		b := NewReader(
			WithReader(io.NopCloser(bytes.NewReader(exBlob))),
			WithHeader(bad),
		)
		_, err := b.RawBody()
		if err == nil {
			t.Fatalf("expected digest mismatch error")
		}
	})

	t.Run("ociconfig", func(t *testing.T) {
		b := NewReader(
			WithReader(io.NopCloser(bytes.NewReader(exBlob))),
			WithDesc(exDesc),
			WithRef(exRef),
		)
		oc, err := b.ToOCIConfig()
		if err != nil {
			t.Fatalf("ToOCIConfig: %v", err)
		}
		if oc.GetDescriptor().Digest != exDigest {
			t.Errorf("digest, expected %s, received %s", exDigest, oc.GetDescriptor().Digest)
		}
		if oc.GetConfig().Architecture != "amd64" {
			t.Errorf("unexpected architecture: %s", oc.GetConfig().Architecture)
		}
	})

	t.Run("seek", func(t *testing.T) {
		b := NewReader(
			WithReader(seekCloser{bytes.NewReader(exBlob)}),
			WithHeader(exHeaders),
		)
		partial := make([]byte, 5)
		if _, err := b.Read(partial); err != nil {
			t.Fatalf("partial read: %v", err)
		}
		if _, err := b.Seek(5, io.SeekStart); err == nil {
			t.Errorf("arbitrary seek should fail")
		}
		pos, err := b.Seek(0, io.SeekStart)
		if err != nil {
			t.Fatalf("seek to start: %v", err)
		}
		if pos != 0 {
			t.Errorf("expected seek to reset to 0, received %d", pos)
		}
		all, err := io.ReadAll(b)
		if err != nil {
			t.Fatalf("readall after seek: %v", err)
		}
		if !bytes.Equal(all, exBlob) {
			t.Errorf("content mismatch after seek")
		}
	})
}

func TestOCIConfig(t *testing.T) {
	var img ociv1.Image
	if err := json.Unmarshal(exBlob, &img); err != nil {
		t.Fatalf("unmarshal fixture: %v", err)
	}
	oc := NewOCIConfig(WithImage(img), WithDesc(exDesc))
	if oc.GetConfig().Architecture != "amd64" {
		t.Errorf("unexpected architecture: %s", oc.GetConfig().Architecture)
	}
	raw, err := oc.RawBody()
	if err != nil {
		t.Fatalf("rawbody: %v", err)
	}
	var roundTrip ociv1.Image
	if err := json.Unmarshal(raw, &roundTrip); err != nil {
		t.Fatalf("unmarshal round trip: %v", err)
	}
	if roundTrip.Architecture != img.Architecture {
		t.Errorf("round trip mismatch: %s vs %s", roundTrip.Architecture, img.Architecture)
	}
}

func TestTarReader(t *testing.T) {
	content := buildTar(t, map[string]string{"layer1.txt": "1\n"})
	dig := digest.FromBytes(content)

	tt := []struct {
		name string
		desc types.Descriptor
	}{
		{name: "no desc"},
		{name: "good desc", desc: types.Descriptor{MediaType: types.MediaTypeOCI1Layer, Size: int64(len(content)), Digest: dig}},
	}
	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			btr := NewTarReader(WithReader(io.NopCloser(bytes.NewReader(content))), WithDesc(tc.desc))
			tr, err := btr.GetTarReader()
			if err != nil {
				t.Fatalf("get tar reader: %v", err)
			}
			found := false
			for {
				th, err := tr.Next()
				if err != nil {
					if errors.Is(err, io.EOF) {
						break
					}
					t.Fatalf("tar read: %v", err)
				}
				if th.Name == "layer1.txt" {
					found = true
				}
			}
			if !found {
				t.Errorf("expected to find layer1.txt in tar")
			}
			if err := btr.Close(); err != nil {
				t.Errorf("close: %v", err)
			}
		})
	}
}

func TestReadFile(t *testing.T) {
	content := buildTar(t, map[string]string{
		"layer1.txt":    "1\n",
		".wh.layer2.txt": "",
		"layer3.txt":    "3\n",
	})
	dig := digest.FromBytes(content)

	tt := []struct {
		name      string
		filename  string
		content   string
		expectErr error
	}{
		{name: "present", filename: "layer1.txt", content: "1\n"},
		{name: "present absolute", filename: "/layer1.txt", content: "1\n"},
		{name: "deleted", filename: "layer2.txt", expectErr: types.ErrFileDeleted},
		{name: "later file", filename: "layer3.txt", content: "3\n"},
		{name: "missing", filename: "missing.txt", expectErr: types.ErrFileNotFound},
	}
	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			btr := NewTarReader(WithReader(io.NopCloser(bytes.NewReader(content))), WithDesc(types.Descriptor{Size: int64(len(content)), Digest: dig, MediaType: types.MediaTypeOCI1Layer}))
			defer btr.Close()
			th, rdr, err := btr.ReadFile(tc.filename)
			if tc.expectErr != nil {
				if !errors.Is(err, tc.expectErr) {
					t.Errorf("expected %v, received %v", tc.expectErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("readfile: %v", err)
			}
			if th == nil || rdr == nil {
				t.Fatalf("expected header and reader")
			}
			got, err := io.ReadAll(rdr)
			if err != nil {
				t.Fatalf("read content: %v", err)
			}
			if string(got) != tc.content {
				t.Errorf("content, expected %q, received %q", tc.content, string(got))
			}
		})
	}

	t.Run("reserved whiteout name", func(t *testing.T) {
		btr := NewTarReader(WithReader(io.NopCloser(bytes.NewReader(content))))
		defer btr.Close()
		_, _, err := btr.ReadFile(".wh.layer2.txt")
		if err == nil {
			t.Errorf("expected error for reserved whiteout filename")
		}
	})

	t.Run("digest mismatch on miss", func(t *testing.T) {
		btr := NewTarReader(
			WithReader(io.NopCloser(bytes.NewReader(content))),
			WithDesc(types.Descriptor{Size: int64(len(content)), Digest: digest.FromString("wrong"), MediaType: types.MediaTypeOCI1Layer}),
		)
		defer btr.Close()
		_, _, err := btr.ReadFile("missing.txt")
		if !errors.Is(err, types.ErrDigestMismatch) {
			t.Errorf("expected digest mismatch, received %v", err)
		}
	})
}
