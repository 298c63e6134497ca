// Package registry implements the six OCI Distribution operations a pull
// or push needs: manifest, has_blob, config_blob, download_blob,
// upload_blob, and put_manifest, layered over internal/reghttp for the
// wire and internal/regauth for bearer tokens. Grounded on the teacher's
// scheme/reg blob operations and its manifest get/put API.
package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/opencontainers/go-digest"
	ociv1 "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/ocipack/ocipack/config"
	"github.com/ocipack/ocipack/internal/reghttp"
	"github.com/ocipack/ocipack/internal/regauth"
	"github.com/ocipack/ocipack/types"
	"github.com/ocipack/ocipack/types/manifest"
	"github.com/ocipack/ocipack/types/platform"
	"github.com/ocipack/ocipack/types/ref"
)

// Client talks to one registry host for one repository.
type Client struct {
	hc   *reghttp.Client
	auth *regauth.Handler
	base string
	name string
}

// New builds a Client for r, using host's connection settings and
// credentials when provided. When host is nil (no matching config entry),
// the ref's registry name is used directly, still applying the docker.io
// rewrite to registry-1.docker.io.
func New(hc *reghttp.Client, r ref.Ref, host *config.Host) *Client {
	hostname := r.Registry
	scheme := "https"
	var cred regauth.Cred
	if host != nil {
		if host.Hostname != "" {
			hostname = host.Hostname
		}
		if host.TLS == config.TLSDisabled {
			scheme = "http"
		}
		hc2 := host.GetCred()
		cred = regauth.Cred{User: hc2.User, Password: hc2.Password, Token: hc2.Token}
	} else if r.Registry == config.DockerRegistry {
		hostname = config.DockerRegistryDNS
	}
	base := scheme + "://" + hostname
	return &Client{
		hc:   hc,
		auth: regauth.New(hc.HTTPClient(), base, cred, nil),
		base: base,
		name: r.Repository,
	}
}

func (c *Client) blobURL(d digest.Digest) string {
	return fmt.Sprintf("%s/v2/%s/blobs/%s", c.base, c.name, d.String())
}

func (c *Client) manifestURL(reference string) string {
	return fmt.Sprintf("%s/v2/%s/manifests/%s", c.base, c.name, reference)
}

var manifestAccept = []string{
	types.MediaTypeOCI1Manifest,
	types.MediaTypeOCI1ManifestList,
	types.MediaTypeDocker2Manifest,
	types.MediaTypeDocker2ManifestList,
}

// Manifest fetches the manifest for reference (a tag or digest string). If
// the result is an index/manifest-list and p is non-nil, the matching
// platform's manifest is fetched and returned instead.
func (c *Client) Manifest(ctx context.Context, r ref.Ref, p *platform.Platform) (manifest.Manifest, error) {
	reference := r.Tag
	if r.Digest != "" {
		reference = r.Digest
	}
	m, err := c.getManifest(ctx, r, reference)
	if err != nil {
		return nil, err
	}
	if !m.IsList() || p == nil {
		return m, nil
	}
	desc, err := m.GetPlatformDesc(p)
	if err != nil {
		return nil, fmt.Errorf("no manifest matching platform %s: %w", p, err)
	}
	return c.getManifest(ctx, r, desc.Digest.String())
}

func (c *Client) getManifest(ctx context.Context, r ref.Ref, reference string) (manifest.Manifest, error) {
	token, err := c.auth.Token(ctx, c.name, regauth.Pull)
	if err != nil {
		return nil, err
	}
	resp, err := c.hc.Do(ctx, reghttp.Req{
		Method: http.MethodGet,
		URL:    c.manifestURL(reference),
		Accept: manifestAccept,
		Auth:   "Bearer " + token,
	})
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("manifest %s not found: %w", reference, types.ErrNotFound)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("manifest get failed with status %d: %w", resp.StatusCode, types.ErrHTTPStatus)
	}
	return manifest.New(
		manifest.WithRef(r),
		manifest.WithHeader(resp.Header),
		manifest.WithRaw(resp.Bytes()),
	)
}

// HasBlob reports whether digest d exists in the repository.
func (c *Client) HasBlob(ctx context.Context, d digest.Digest) (bool, error) {
	token, err := c.auth.Token(ctx, c.name, regauth.Pull)
	if err != nil {
		return false, err
	}
	resp, err := c.hc.Do(ctx, reghttp.Req{
		Method: http.MethodHead,
		URL:    c.blobURL(d),
		Auth:   "Bearer " + token,
	})
	if err != nil {
		return false, err
	}
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return true, nil
	case resp.StatusCode == http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("blob head failed with status %d: %w", resp.StatusCode, types.ErrHTTPStatus)
	}
}

// ConfigBlob fetches and unmarshals the config blob at digest d into an
// ociv1.Image, also returning its raw bytes.
func (c *Client) ConfigBlob(ctx context.Context, d digest.Digest) (ociv1.Image, []byte, error) {
	raw, err := c.getBlobBytes(ctx, d)
	if err != nil {
		return ociv1.Image{}, nil, err
	}
	var img ociv1.Image
	if err := json.Unmarshal(raw, &img); err != nil {
		return ociv1.Image{}, nil, fmt.Errorf("failed to parse config blob %s: %w", d, err)
	}
	return img, raw, nil
}

func (c *Client) getBlobBytes(ctx context.Context, d digest.Digest) ([]byte, error) {
	token, err := c.auth.Token(ctx, c.name, regauth.Pull)
	if err != nil {
		return nil, err
	}
	resp, err := c.hc.Do(ctx, reghttp.Req{
		Method: http.MethodGet,
		URL:    c.blobURL(d),
		Accept: []string{"application/octet-stream"},
		Auth:   "Bearer " + token,
	})
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("blob get failed with status %d: %w", resp.StatusCode, types.ErrHTTPStatus)
	}
	return resp.Bytes(), nil
}

// DownloadBlob performs the GET for a blob download and returns the
// response parts unconsumed, suitable for transfer.Fetcher.
func (c *Client) DownloadBlob(ctx context.Context, d digest.Digest) (int, http.Header, io.ReadCloser, error) {
	token, err := c.auth.Token(ctx, c.name, regauth.Pull)
	if err != nil {
		return 0, nil, nil, err
	}
	resp, err := c.hc.Do(ctx, reghttp.Req{
		Method: http.MethodGet,
		URL:    c.blobURL(d),
		Accept: []string{"application/octet-stream"},
		Auth:   "Bearer " + token,
		Stream: true,
	})
	if err != nil {
		return 0, nil, nil, err
	}
	return resp.StatusCode, resp.Header, resp.Reader(), nil
}

// UploadBlob performs the monolithic single-PUT upload flow: POST to open
// an upload session, then PUT the body with digest= set on the returned
// location, suitable for transfer.Uploader.
func (c *Client) UploadBlob(ctx context.Context, d digest.Digest, body io.Reader, contentLength int64) (int, []byte, error) {
	token, err := c.auth.Token(ctx, c.name, regauth.PushAndPull)
	if err != nil {
		return 0, nil, err
	}
	startURL := fmt.Sprintf("%s/v2/%s/blobs/uploads/", c.base, c.name)
	startResp, err := c.hc.Do(ctx, reghttp.Req{
		Method: http.MethodPost,
		URL:    startURL,
		Auth:   "Bearer " + token,
	})
	if err != nil {
		return 0, nil, err
	}
	if startResp.StatusCode != http.StatusAccepted {
		return startResp.StatusCode, startResp.Bytes(), nil
	}
	location := startResp.Header.Get("Location")
	if location == "" {
		return 0, nil, fmt.Errorf("upload session missing location header: %w", types.ErrMissingLocation)
	}
	if location[0] == '/' {
		// a path-only Location is relative to the registry base URL
		location = c.base + location
	}
	putURL := location
	if containsQuery(location) {
		putURL = location + "&digest=" + d.String()
	} else {
		putURL = location + "?digest=" + d.String()
	}
	putResp, err := c.hc.Do(ctx, reghttp.Req{
		Method:        http.MethodPut,
		URL:           putURL,
		Auth:          "Bearer " + token,
		Body:          body,
		ContentLength: contentLength,
		ContentType:   "application/octet-stream",
	})
	if err != nil {
		return 0, nil, err
	}
	return putResp.StatusCode, putResp.Bytes(), nil
}

func containsQuery(u string) bool {
	for _, r := range u {
		if r == '?' {
			return true
		}
	}
	return false
}

// PutManifest pushes a manifest to reference (a tag string).
func (c *Client) PutManifest(ctx context.Context, m manifest.Manifest, reference string) error {
	token, err := c.auth.Token(ctx, c.name, regauth.PushAndPull)
	if err != nil {
		return err
	}
	raw, err := m.RawBody()
	if err != nil {
		return fmt.Errorf("failed to serialize manifest: %w", err)
	}
	resp, err := c.hc.Do(ctx, reghttp.Req{
		Method:        http.MethodPut,
		URL:           c.manifestURL(reference),
		Auth:          "Bearer " + token,
		Body:          bytes.NewReader(raw),
		ContentLength: int64(len(raw)),
		ContentType:   m.GetDescriptor().MediaType,
	})
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("manifest put failed with status %d: %s: %w", resp.StatusCode, string(resp.Bytes()), types.ErrHTTPStatus)
	}
	return nil
}
