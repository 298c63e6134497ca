package transfer

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/opencontainers/go-digest"

	"github.com/ocipack/ocipack/cache"
)

func digestOf(b []byte) digest.Digest {
	h := sha256.Sum256(b)
	return digest.NewDigestFromEncoded(digest.SHA256, fmt.Sprintf("%x", h))
}

func TestDownloadJobVerifiesAndCommits(t *testing.T) {
	dir := t.TempDir()
	c, err := cache.New(dir)
	if err != nil {
		t.Fatalf("cache.New: %v", err)
	}
	content := bytes.Repeat([]byte("a"), 1024)
	d := digestOf(content)
	fetch := func(ctx context.Context) (int, http.Header, io.ReadCloser, error) {
		h := http.Header{}
		h.Set("Content-Type", "application/octet-stream")
		h.Set("Content-Length", fmt.Sprintf("%d", len(content)))
		return 200, h, io.NopCloser(bytes.NewReader(content)), nil
	}
	job := NewDownloadJob(d, int64(len(content)), c, fetch)
	res := <-job.Start(context.Background())
	if res.State != Succeeded {
		t.Fatalf("expected success, got %v: %v", res.State, res.Err)
	}
	if !c.Has(d) {
		t.Fatalf("expected cache to have blob after commit")
	}
}

func TestDownloadJobDigestMismatch(t *testing.T) {
	dir := t.TempDir()
	c, err := cache.New(dir)
	if err != nil {
		t.Fatalf("cache.New: %v", err)
	}
	content := []byte("hello world")
	wrongDigest := digestOf([]byte("something else"))
	fetch := func(ctx context.Context) (int, http.Header, io.ReadCloser, error) {
		h := http.Header{}
		h.Set("Content-Type", "application/octet-stream")
		return 200, h, io.NopCloser(bytes.NewReader(content)), nil
	}
	job := NewDownloadJob(wrongDigest, int64(len(content)), c, fetch)
	res := <-job.Start(context.Background())
	if res.State != Failed {
		t.Fatalf("expected failure on digest mismatch, got %v", res.State)
	}
}

func TestDownloadJobPreCompletedOnCacheHit(t *testing.T) {
	dir := t.TempDir()
	c, err := cache.New(dir)
	if err != nil {
		t.Fatalf("cache.New: %v", err)
	}
	content := []byte("cached already")
	d := digestOf(content)
	staged, err := c.StageFile()
	if err != nil {
		t.Fatalf("StageFile: %v", err)
	}
	if _, err := staged.Write(content); err != nil {
		t.Fatalf("write staged: %v", err)
	}
	staged.Close()
	if err := c.Commit(d, staged.Name(), d, 0); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	called := false
	fetch := func(ctx context.Context) (int, http.Header, io.ReadCloser, error) {
		called = true
		return 0, nil, nil, fmt.Errorf("should not be called")
	}
	job := NewDownloadJob(d, int64(len(content)), c, fetch)
	res := <-job.Start(context.Background())
	if res.State != Succeeded {
		t.Fatalf("expected pre-completed success, got %v", res.State)
	}
	if called {
		t.Errorf("fetch should not be invoked on cache hit")
	}
}

func TestUploadJobPreCompletedWhenExists(t *testing.T) {
	dir := t.TempDir()
	f, err := os.CreateTemp(dir, "blob")
	if err != nil {
		t.Fatalf("CreateTemp: %v", err)
	}
	f.WriteString("data")
	f.Close()
	called := false
	upload := func(ctx context.Context, body io.Reader, n int64) (int, []byte, error) {
		called = true
		return 0, nil, fmt.Errorf("should not be called")
	}
	job := NewUploadJob(digestOf([]byte("data")), f.Name(), true, upload)
	res := <-job.Start(context.Background())
	if res.State != Succeeded {
		t.Fatalf("expected pre-completed success, got %v", res.State)
	}
	if called {
		t.Errorf("upload should not be invoked when blob already exists")
	}
}

func TestUploadJobUploadsAndTracksProgress(t *testing.T) {
	dir := t.TempDir()
	content := bytes.Repeat([]byte("x"), 4096)
	f, err := os.CreateTemp(dir, "blob")
	if err != nil {
		t.Fatalf("CreateTemp: %v", err)
	}
	f.Write(content)
	f.Close()
	upload := func(ctx context.Context, body io.Reader, n int64) (int, []byte, error) {
		if n != int64(len(content)) {
			t.Errorf("unexpected content length: %d", n)
		}
		if _, err := io.Copy(io.Discard, body); err != nil {
			return 0, nil, err
		}
		return 201, nil, nil
	}
	job := NewUploadJob(digestOf(content), f.Name(), false, upload)
	res := <-job.Start(context.Background())
	if res.State != Succeeded {
		t.Fatalf("expected success, got %v: %v", res.State, res.Err)
	}
	st := job.Status()
	if st.Done != int64(len(content)) {
		t.Errorf("expected done=%d, got %d", len(content), st.Done)
	}
}

func TestUploadJobFailureStatus(t *testing.T) {
	dir := t.TempDir()
	f, err := os.CreateTemp(dir, "blob")
	if err != nil {
		t.Fatalf("CreateTemp: %v", err)
	}
	f.WriteString("data")
	f.Close()
	upload := func(ctx context.Context, body io.Reader, n int64) (int, []byte, error) {
		io.Copy(io.Discard, body)
		return 500, []byte("internal error"), nil
	}
	job := NewUploadJob(digestOf([]byte("data")), f.Name(), false, upload)
	res := <-job.Start(context.Background())
	if res.State != Failed {
		t.Fatalf("expected failure, got %v", res.State)
	}
}

func TestStartTwiceAfterCompletionPanics(t *testing.T) {
	dir := t.TempDir()
	c, err := cache.New(dir)
	if err != nil {
		t.Fatalf("cache.New: %v", err)
	}
	content := []byte("data")
	d := digestOf(content)
	fetch := func(ctx context.Context) (int, http.Header, io.ReadCloser, error) {
		h := http.Header{}
		h.Set("Content-Type", "application/octet-stream")
		return 200, h, io.NopCloser(bytes.NewReader(content)), nil
	}
	job := NewDownloadJob(d, int64(len(content)), c, fetch)
	<-job.Start(context.Background())

	defer func() {
		if r := recover(); r == nil {
			t.Errorf("expected panic calling Start twice")
		}
	}()
	job.Start(context.Background())
	time.Sleep(time.Millisecond)
}
