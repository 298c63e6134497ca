package blob

import (
	"io"
	"net/http"

	ociv1 "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/ocipack/ocipack/types"
	"github.com/ocipack/ocipack/types/ref"
)

// Blob interface is used for returning blobs
type Blob interface {
	Common
	RawBody() ([]byte, error)
}

// BlobConfig accumulates the options passed to a blob constructor.
type BlobConfig struct {
	desc   types.Descriptor
	header http.Header
	image  ociv1.Image
	r      ref.Ref
	rdr    io.ReadCloser
	resp   *http.Response
}

// Opts configures a blob constructed by NewReader/NewTarReader/NewOCIConfig.
type Opts func(*BlobConfig)

// WithDesc sets the blob's descriptor.
func WithDesc(d types.Descriptor) Opts {
	return func(bc *BlobConfig) {
		bc.desc = d
	}
}

// WithHeader sets the headers received alongside the blob.
func WithHeader(header http.Header) Opts {
	return func(bc *BlobConfig) {
		bc.header = header
	}
}

// WithImage provides an already-decoded OCI image config.
func WithImage(image ociv1.Image) Opts {
	return func(bc *BlobConfig) {
		bc.image = image
	}
}

// WithReader provides the streaming body of the blob.
func WithReader(rc io.ReadCloser) Opts {
	return func(bc *BlobConfig) {
		bc.rdr = rc
	}
}

// WithRef associates the reference a blob was fetched from.
func WithRef(r ref.Ref) Opts {
	return func(bc *BlobConfig) {
		bc.r = r
	}
}

// WithResp associates the raw http.Response a blob was read from.
func WithResp(resp *http.Response) Opts {
	return func(bc *BlobConfig) {
		bc.resp = resp
		if bc.header == nil {
			bc.header = resp.Header
		}
	}
}
