// Package manifest abstracts the two supported manifest dialects (OCI v1
// and Docker v2 schema 2) and their list/index counterparts behind one
// interface, dispatching on media type.
package manifest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	digest "github.com/opencontainers/go-digest"

	"github.com/ocipack/ocipack/types"
	"github.com/ocipack/ocipack/types/platform"
	"github.com/ocipack/ocipack/types/ref"
)

// Manifest is implemented by every supported manifest/index dialect. Calls
// that don't apply to a given dialect (e.g. GetLayers on an index) return
// ErrUnsupportedMediaType.
type Manifest interface {
	GetAnnotations() (map[string]string, error)
	GetConfig() (types.Descriptor, error)
	GetConfigDigest() (digest.Digest, error)
	GetDescriptor() types.Descriptor
	GetLayers() ([]types.Descriptor, error)
	GetManifestList() ([]types.Descriptor, error)
	GetOrig() interface{}
	GetPlatformDesc(p *platform.Platform) (*types.Descriptor, error)
	GetPlatformList() ([]*platform.Platform, error)
	GetRef() ref.Ref
	IsList() bool
	IsSet() bool
	MarshalJSON() ([]byte, error)
	MarshalPretty() ([]byte, error)
	RawBody() ([]byte, error)
	RawHeaders() (http.Header, error)
	SetAnnotation(key, val string) error
	SetOrig(interface{}) error
}

// common is embedded by each dialect's struct and implements the parts of
// Manifest that don't depend on the underlying type.
type common struct {
	r         ref.Ref
	desc      types.Descriptor
	manifSet  bool
	rawBody   []byte
	rawHeader http.Header
}

func (c *common) GetDescriptor() types.Descriptor { return c.desc }
func (c *common) GetRef() ref.Ref                 { return c.r }
func (c *common) IsSet() bool                     { return c.manifSet }
func (c *common) RawBody() ([]byte, error) {
	if !c.manifSet {
		return nil, fmt.Errorf("manifest unavailable, perform a manifest get first: %w", types.ErrUnavailable)
	}
	return c.rawBody, nil
}
func (c *common) RawHeaders() (http.Header, error) { return c.rawHeader, nil }

func (c *common) IsList() bool {
	switch types.MediaTypeBase(c.desc.MediaType) {
	case types.MediaTypeDocker2ManifestList, types.MediaTypeOCI1ManifestList:
		return true
	default:
		return false
	}
}

// manifestConfig accumulates New's options before a manifest is built.
type manifestConfig struct {
	r      ref.Ref
	desc   types.Descriptor
	raw    []byte
	orig   interface{}
	header http.Header
}

// Opts configures a manifest constructed by New.
type Opts func(*manifestConfig)

// WithDesc sets the manifest's descriptor.
func WithDesc(desc types.Descriptor) Opts {
	return func(mc *manifestConfig) { mc.desc = desc }
}

// WithHeader sets the headers received alongside the manifest body.
func WithHeader(header http.Header) Opts {
	return func(mc *manifestConfig) { mc.header = header }
}

// WithOrig constructs the manifest directly from an already-typed value
// (ociv1.Manifest, ociv1.Index, schema2.Manifest, or schema2.ManifestList).
func WithOrig(orig interface{}) Opts {
	return func(mc *manifestConfig) { mc.orig = orig }
}

// WithRaw provides the raw manifest body bytes as received over the wire.
func WithRaw(raw []byte) Opts {
	return func(mc *manifestConfig) { mc.raw = raw }
}

// WithRef associates the reference a manifest was fetched by.
func WithRef(r ref.Ref) Opts {
	return func(mc *manifestConfig) { mc.r = r }
}

// New builds a Manifest from the given options, dispatching on media type.
func New(opts ...Opts) (Manifest, error) {
	mc := manifestConfig{}
	for _, opt := range opts {
		opt(&mc)
	}
	c := common{
		r:         mc.r,
		desc:      mc.desc,
		rawBody:   mc.raw,
		rawHeader: mc.header,
	}
	if mc.header != nil {
		if c.desc.MediaType == "" {
			c.desc.MediaType = mc.header.Get("Content-Type")
		}
		if c.desc.Size == 0 {
			if cl, err := strconv.Atoi(mc.header.Get("Content-Length")); err == nil {
				c.desc.Size = int64(cl)
			}
		}
		if c.desc.Digest == "" {
			if d, err := digest.Parse(mc.header.Get("Docker-Content-Digest")); err == nil {
				c.desc.Digest = d
			}
		}
	}
	if mc.orig != nil {
		return fromOrig(c, mc.orig)
	}
	return fromCommon(c)
}

func fromOrig(c common, orig interface{}) (Manifest, error) {
	mj, err := json.Marshal(orig)
	if err != nil {
		return nil, err
	}
	origDigest := c.desc.Digest
	c.manifSet = true
	if len(c.rawBody) == 0 {
		c.rawBody = mj
	}
	c.desc.Digest = digest.FromBytes(mj)
	if c.desc.Size == 0 {
		c.desc.Size = int64(len(mj))
	}
	var m Manifest
	var mt string
	switch mOrig := orig.(type) {
	case oci1ManifestOrig:
		mt = mOrig.MediaType
		c.desc.MediaType = types.MediaTypeOCI1Manifest
		m = &oci1Manifest{common: c, Manifest: mOrig}
	case oci1IndexOrig:
		mt = mOrig.MediaType
		c.desc.MediaType = types.MediaTypeOCI1ManifestList
		m = &oci1Index{common: c, Index: mOrig}
	case docker2ManifestOrig:
		mt = mOrig.MediaType
		c.desc.MediaType = types.MediaTypeDocker2Manifest
		m = &docker2Manifest{common: c, Manifest: mOrig}
	case docker2ManifestListOrig:
		mt = mOrig.MediaType
		c.desc.MediaType = types.MediaTypeDocker2ManifestList
		m = &docker2ManifestList{common: c, ManifestList: mOrig}
	default:
		return nil, fmt.Errorf("unsupported type to convert to a manifest: %T", orig)
	}
	if err := verifyMT(c.desc.MediaType, mt); err != nil {
		return nil, err
	}
	if origDigest != "" && origDigest != c.desc.Digest {
		return nil, fmt.Errorf("manifest digest mismatch, expected %s, computed %s", origDigest, c.desc.Digest)
	}
	return m, nil
}

func fromCommon(c common) (Manifest, error) {
	var m Manifest
	var err error
	var mt string
	origDigest := c.desc.Digest
	if len(c.rawBody) > 0 {
		c.manifSet = true
		c.desc.Digest = digest.FromBytes(c.rawBody)
		c.desc.Size = int64(len(c.rawBody))
	}
	if c.desc.MediaType == "" && len(c.rawBody) > 0 {
		probe := struct {
			MediaType string `json:"mediaType,omitempty"`
		}{}
		_ = json.Unmarshal(c.rawBody, &probe)
		c.desc.MediaType = probe.MediaType
	}
	switch types.MediaTypeBase(c.desc.MediaType) {
	case types.MediaTypeDocker2Manifest:
		var orig docker2ManifestOrig
		if len(c.rawBody) > 0 {
			err = json.Unmarshal(c.rawBody, &orig)
			mt = orig.MediaType
		}
		m = &docker2Manifest{common: c, Manifest: orig}
	case types.MediaTypeDocker2ManifestList:
		var orig docker2ManifestListOrig
		if len(c.rawBody) > 0 {
			err = json.Unmarshal(c.rawBody, &orig)
			mt = orig.MediaType
		}
		m = &docker2ManifestList{common: c, ManifestList: orig}
	case types.MediaTypeOCI1Manifest:
		var orig oci1ManifestOrig
		if len(c.rawBody) > 0 {
			err = json.Unmarshal(c.rawBody, &orig)
			mt = orig.MediaType
		}
		m = &oci1Manifest{common: c, Manifest: orig}
	case types.MediaTypeOCI1ManifestList:
		var orig oci1IndexOrig
		if len(c.rawBody) > 0 {
			err = json.Unmarshal(c.rawBody, &orig)
			mt = orig.MediaType
		}
		m = &oci1Index{common: c, Index: orig}
	default:
		return nil, fmt.Errorf("%w: %q", types.ErrUnsupportedMediaType, c.desc.MediaType)
	}
	if err != nil {
		return nil, fmt.Errorf("error unmarshaling manifest for %s: %w", c.r.CommonName(), err)
	}
	if err := verifyMT(c.desc.MediaType, mt); err != nil {
		return nil, err
	}
	if origDigest != "" && origDigest != c.desc.Digest {
		return nil, fmt.Errorf("manifest digest mismatch, expected %s, computed %s", origDigest, c.desc.Digest)
	}
	return m, nil
}

func verifyMT(expected, received string) error {
	if received != "" && types.MediaTypeBase(expected) != types.MediaTypeBase(received) {
		return fmt.Errorf("manifest contains an unexpected media type: expected %s, received %s", expected, received)
	}
	return nil
}

// GetDigest returns the digest from the manifest descriptor.
func GetDigest(m Manifest) digest.Digest { return m.GetDescriptor().Digest }

// GetMediaType returns the media type from the manifest descriptor.
func GetMediaType(m Manifest) string { return m.GetDescriptor().MediaType }

func getPlatformDesc(p *platform.Platform, dl []types.Descriptor) (*types.Descriptor, error) {
	var best *types.Descriptor
	for i := range dl {
		d := dl[i]
		if d.Platform == nil {
			continue
		}
		match, compat, better := platform.Compare(*p, *d.Platform, platform.Platform{})
		if match {
			return &d, nil
		}
		if compat && better {
			best = &dl[i]
		}
	}
	if best != nil {
		return best, nil
	}
	return nil, fmt.Errorf("no manifest found matching platform %s: %w", p.String(), types.ErrNotFound)
}

func getPlatformList(dl []types.Descriptor) ([]*platform.Platform, error) {
	var l []*platform.Platform
	for _, d := range dl {
		if d.Platform != nil {
			l = append(l, d.Platform)
		}
	}
	return l, nil
}
