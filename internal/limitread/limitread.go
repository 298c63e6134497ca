// Package limitread wraps a reader to fail fast if more bytes arrive than
// a descriptor's advertised size, instead of silently truncating or
// buffering unbounded content from a registry.
package limitread

import (
	"io"

	"github.com/ocipack/ocipack/types"
)

// LimitRead reads from Reader, returning ErrSizeLimitExceeded if the
// caller tries to read past Limit bytes total.
type LimitRead struct {
	Reader io.Reader
	Limit  int64
	read   int64
}

// Read implements io.Reader. It only reports ErrSizeLimitExceeded when a
// caller requests more than Limit and the underlying reader actually has
// data beyond that point; a caller that never asks for more than Limit
// bytes never triggers it, even if the source happens to be larger.
func (lr *LimitRead) Read(p []byte) (int, error) {
	if lr.read >= lr.Limit {
		return 0, io.EOF
	}
	remain := lr.Limit - lr.read
	if int64(len(p)) <= remain {
		n, err := lr.Reader.Read(p)
		lr.read += int64(n)
		return n, err
	}
	n, err := lr.Reader.Read(p[:remain])
	lr.read += int64(n)
	if err == nil && int64(n) == remain {
		var probe [1]byte
		pn, _ := lr.Reader.Read(probe[:])
		if pn > 0 {
			return n, types.ErrSizeLimitExceeded
		}
	}
	return n, err
}
