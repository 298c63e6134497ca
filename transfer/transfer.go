// Package transfer implements the per-blob download/upload job state
// machines the scheduler drives: Pending -> Running -> exactly one of
// Succeeded/Failed, with a lock-light progress snapshot pollable between
// Start and completion. Grounded on the streaming sha256-verify-then-
// atomic-rename idiom the teacher's blob transport code uses, and on
// types/blob.Reader's reader wrapping pattern. Downloads are capped at
// the advertised size via internal/limitread so a server that keeps
// streaming past Content-Length fails the job instead of filling disk.
package transfer

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"sync/atomic"

	"github.com/opencontainers/go-digest"

	"github.com/ocipack/ocipack/cache"
	"github.com/ocipack/ocipack/internal/limitread"
	"github.com/ocipack/ocipack/pkg/archive"
	"github.com/ocipack/ocipack/types"
)

// State is a transfer job's lifecycle stage.
type State int

const (
	Pending State = iota
	Running
	Succeeded
	Failed
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Running:
		return "running"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Status is an immutable progress snapshot. Done never moves backwards
// between successive snapshots of the same job.
type Status struct {
	Digest digest.Digest
	Short  string
	Total  int64
	Done   int64
	State  State
}

// Result is a job's terminal outcome.
type Result struct {
	Digest  digest.Digest
	State   State
	Message string
	Err     error
}

func shortHash(d digest.Digest) string {
	enc := d.Encoded()
	if len(enc) > 12 {
		return enc[:12]
	}
	return enc
}

// countingReader tracks bytes read under an atomic counter so Status can be
// polled without blocking the I/O path.
type countingReader struct {
	r    io.Reader
	done *int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	if n > 0 {
		atomic.AddInt64(c.done, int64(n))
	}
	return n, err
}

// Fetcher performs the GET for a download job and returns the raw response
// parts the job needs; the registry client supplies this closure since it
// alone knows the URL and auth header.
type Fetcher func(ctx context.Context) (status int, header http.Header, body io.ReadCloser, err error)

// DownloadJob downloads one blob into the cache, verifying its sha256
// before the file is renamed into its canonical cache path.
type DownloadJob struct {
	digest       digest.Digest
	expectedSize int64
	c            *cache.Cache
	fetch        Fetcher

	mu      sync.Mutex
	state   State
	total   int64
	done    int64
	started bool
}

// NewDownloadJob builds a download job. If the cache already has a
// verified copy, the returned job is pre-completed and start costs nothing.
func NewDownloadJob(d digest.Digest, expectedSize int64, c *cache.Cache, fetch Fetcher) *DownloadJob {
	j := &DownloadJob{digest: d, expectedSize: expectedSize, c: c, fetch: fetch}
	if c.Has(d) {
		size, err := c.Size(d)
		if err == nil {
			j.state = Succeeded
			j.total = size
			j.done = size
		}
	}
	return j
}

// Status returns a snapshot of the job's progress.
func (j *DownloadJob) Status() Status {
	j.mu.Lock()
	defer j.mu.Unlock()
	return Status{Digest: j.digest, Short: shortHash(j.digest), Total: j.total, Done: atomic.LoadInt64(&j.done), State: j.state}
}

// Start transitions Pending->Running and runs the transfer in a goroutine,
// sending exactly one Result on the returned channel. Calling Start more
// than once panics, matching the "at most once" contract.
func (j *DownloadJob) Start(ctx context.Context) <-chan Result {
	ch := make(chan Result, 1)
	j.mu.Lock()
	if j.started {
		j.mu.Unlock()
		panic("transfer: Start called more than once")
	}
	j.started = true
	if j.state == Succeeded {
		state, total := j.state, j.total
		j.mu.Unlock()
		ch <- Result{Digest: j.digest, State: state, Message: "cache hit"}
		_ = total
		return ch
	}
	j.state = Running
	j.mu.Unlock()

	go j.run(ctx, ch)
	return ch
}

func (j *DownloadJob) run(ctx context.Context, ch chan<- Result) {
	res := j.doRun(ctx)
	j.mu.Lock()
	j.state = res.State
	j.mu.Unlock()
	ch <- res
}

func (j *DownloadJob) doRun(ctx context.Context) Result {
	status, header, body, err := j.fetch(ctx)
	if err != nil {
		return Result{Digest: j.digest, State: Failed, Err: fmt.Errorf("download request failed: %w", err)}
	}
	defer body.Close()
	if status < 200 || status >= 300 {
		b, _ := io.ReadAll(io.LimitReader(body, 4096))
		return Result{Digest: j.digest, State: Failed, Err: fmt.Errorf("%w: status %d: %s", types.ErrHTTPStatus, status, string(b))}
	}
	ct := types.MediaTypeBase(header.Get("Content-Type"))
	if ct != "application/octet-stream" && ct != "binary/octet-stream" {
		return Result{Digest: j.digest, State: Failed, Err: fmt.Errorf("unexpected content type %q for blob download: %w", ct, types.ErrUnsupportedMediaType)}
	}
	total := j.expectedSize
	if cl := header.Get("Content-Length"); cl != "" {
		var n int64
		if _, err := fmt.Sscanf(cl, "%d", &n); err == nil && n > 0 {
			total = n
		}
	}
	j.mu.Lock()
	j.total = total
	j.mu.Unlock()

	staged, err := j.c.StageFile()
	if err != nil {
		return Result{Digest: j.digest, State: Failed, Err: fmt.Errorf("failed to stage download: %w", err)}
	}
	stagedPath := staged.Name()
	hasher := sha256.New()
	var src io.Reader = body
	if total > 0 {
		src = &limitread.LimitRead{Reader: body, Limit: total}
	}
	cr := &countingReader{r: io.TeeReader(src, hasher), done: &j.done}
	if _, err := io.Copy(staged, cr); err != nil {
		staged.Close()
		os.Remove(stagedPath)
		return Result{Digest: j.digest, State: Failed, Err: fmt.Errorf("download copy failed: %w", err)}
	}
	if err := staged.Close(); err != nil {
		os.Remove(stagedPath)
		return Result{Digest: j.digest, State: Failed, Err: fmt.Errorf("failed to finalize staged download: %w", err)}
	}
	got := digest.NewDigestFromEncoded(digest.SHA256, fmt.Sprintf("%x", hasher.Sum(nil)))
	if got != j.digest {
		os.Remove(stagedPath)
		return Result{Digest: j.digest, State: Failed, Err: fmt.Errorf("%w: expected %s, got %s", types.ErrDigestMismatch, j.digest, got)}
	}

	diffID, ct2, err := diffIDOf(stagedPath)
	if err != nil {
		os.Remove(stagedPath)
		return Result{Digest: j.digest, State: Failed, Err: fmt.Errorf("failed to compute diff-id: %w", err)}
	}
	if err := j.c.Commit(j.digest, stagedPath, diffID, ct2); err != nil {
		return Result{Digest: j.digest, State: Failed, Err: err}
	}
	return Result{Digest: j.digest, State: Succeeded, Message: "downloaded"}
}

// diffIDOf decompresses a staged compressed blob to compute the sha256 of
// its decompressed form and the compression type it used.
func diffIDOf(path string) (digest.Digest, archive.CompressType, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", archive.CompressNone, err
	}
	defer f.Close()
	head := make([]byte, 10)
	n, _ := io.ReadFull(f, head)
	ct := archive.DetectCompression(head[:n])
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", archive.CompressNone, err
	}
	dr, err := archive.Decompress(f)
	if err != nil {
		return "", archive.CompressNone, err
	}
	hasher := sha256.New()
	if _, err := io.Copy(hasher, dr); err != nil {
		return "", archive.CompressNone, err
	}
	return digest.NewDigestFromEncoded(digest.SHA256, fmt.Sprintf("%x", hasher.Sum(nil))), ct, nil
}

// Uploader performs the PUT for an upload job.
type Uploader func(ctx context.Context, body io.Reader, contentLength int64) (status int, respBody []byte, err error)

// UploadJob uploads one local blob to a registry.
type UploadJob struct {
	digest    digest.Digest
	localPath string
	exists    bool
	upload    Uploader

	mu      sync.Mutex
	state   State
	total   int64
	done    int64
	started bool
}

// NewUploadJob builds an upload job. If exists is true (has_blob already
// returned true) the job is pre-completed and never touches the network.
func NewUploadJob(d digest.Digest, localPath string, exists bool, upload Uploader) *UploadJob {
	j := &UploadJob{digest: d, localPath: localPath, exists: exists, upload: upload}
	if exists {
		j.state = Succeeded
		if fi, err := os.Stat(localPath); err == nil {
			j.total = fi.Size()
			j.done = fi.Size()
		}
	}
	return j
}

func (j *UploadJob) Status() Status {
	j.mu.Lock()
	defer j.mu.Unlock()
	return Status{Digest: j.digest, Short: shortHash(j.digest), Total: j.total, Done: atomic.LoadInt64(&j.done), State: j.state}
}

func (j *UploadJob) Start(ctx context.Context) <-chan Result {
	ch := make(chan Result, 1)
	j.mu.Lock()
	if j.started {
		j.mu.Unlock()
		panic("transfer: Start called more than once")
	}
	j.started = true
	if j.state == Succeeded {
		j.mu.Unlock()
		ch <- Result{Digest: j.digest, State: Succeeded, Message: "exists"}
		return ch
	}
	j.state = Running
	j.mu.Unlock()
	go j.run(ctx, ch)
	return ch
}

func (j *UploadJob) run(ctx context.Context, ch chan<- Result) {
	res := j.doRun(ctx)
	j.mu.Lock()
	j.state = res.State
	j.mu.Unlock()
	ch <- res
}

func (j *UploadJob) doRun(ctx context.Context) Result {
	f, err := os.Open(j.localPath)
	if err != nil {
		return Result{Digest: j.digest, State: Failed, Err: fmt.Errorf("failed to open local blob: %w", err)}
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		return Result{Digest: j.digest, State: Failed, Err: fmt.Errorf("failed to stat local blob: %w", err)}
	}
	j.mu.Lock()
	j.total = fi.Size()
	j.mu.Unlock()
	cr := &countingReader{r: f, done: &j.done}
	status, body, err := j.upload(ctx, cr, fi.Size())
	if err != nil {
		return Result{Digest: j.digest, State: Failed, Err: fmt.Errorf("upload request failed: %w", err)}
	}
	if status < 200 || status >= 300 {
		limited := body
		if len(limited) > 4096 {
			limited = limited[:4096]
		}
		return Result{Digest: j.digest, State: Failed, Err: fmt.Errorf("upload of %s failed with status %d: %s: %w", shortHash(j.digest), status, bytes.TrimSpace(limited), types.ErrHTTPStatus)}
	}
	return Result{Digest: j.digest, State: Succeeded, Message: "uploaded"}
}
