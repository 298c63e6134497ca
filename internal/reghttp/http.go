// Package reghttp is the single-host HTTP request primitive the registry
// client is built on: one configurable *http.Client, one Do call that
// accepts a method/URL/accept-list/auth/body and returns a response exposing
// either an eagerly-read buffer or a streaming body.
package reghttp

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Req describes a single HTTP request to issue against a registry host.
type Req struct {
	Method        string
	URL           string
	Accept        []string
	Auth          string // full Authorization header value, e.g. "Bearer xyz"
	Headers       http.Header
	JSONBody      interface{} // marshaled as the request body when set
	Body          io.Reader   // streaming body, mutually exclusive with JSONBody
	ContentLength int64       // required when Body is set
	ContentType   string
	// Stream keeps the response body open for the caller to read and close,
	// used for blob downloads; otherwise the body is read eagerly and closed.
	Stream bool
}

// Resp is the result of a Req.
type Resp struct {
	StatusCode int
	Header     http.Header
	body       []byte
	rdr        io.ReadCloser
}

// Bytes returns the eagerly-read response body. It is empty for a streamed
// response; use Reader instead.
func (r *Resp) Bytes() []byte { return r.body }

// Reader returns the streaming response body for a Stream request. The
// caller must Close it.
func (r *Resp) Reader() io.ReadCloser { return r.rdr }

// Client issues requests using a single configured *http.Client.
type Client struct {
	hc *http.Client
}

// Opts configures a Client built by New.
type Opts func(*Client)

// WithTimeout sets the overall per-request timeout.
func WithTimeout(d time.Duration) Opts {
	return func(c *Client) { c.hc.Timeout = d }
}

// WithConnectTimeout sets the TCP/TLS connect timeout.
func WithConnectTimeout(d time.Duration) Opts {
	return func(c *Client) {
		if t, ok := c.hc.Transport.(*http.Transport); ok {
			t.DialContext = (&net.Dialer{Timeout: d}).DialContext
		}
	}
}

// WithTLSInsecure disables TLS certificate verification.
func WithTLSInsecure(insecure bool) Opts {
	return func(c *Client) {
		if t, ok := c.hc.Transport.(*http.Transport); ok {
			if t.TLSClientConfig == nil {
				t.TLSClientConfig = &tls.Config{}
			}
			t.TLSClientConfig.InsecureSkipVerify = insecure
		}
	}
}

// WithProxy routes requests through an HTTP proxy, with optional basic
// credentials embedded in the proxy URL.
func WithProxy(proxyURL string) Opts {
	return func(c *Client) {
		if t, ok := c.hc.Transport.(*http.Transport); ok {
			if u, err := url.Parse(proxyURL); err == nil {
				t.Proxy = http.ProxyURL(u)
			}
		}
	}
}

// New builds a Client with net/http's defaults: transparent gzip decoding
// and redirect following. Responses with a deflate Content-Encoding are not
// decoded.
func New(opts ...Opts) *Client {
	c := &Client{
		hc: &http.Client{
			Transport: &http.Transport{},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// HTTPClient returns the underlying *http.Client, e.g. for sharing the same
// transport settings (proxy, TLS, timeouts) with a regauth.Handler.
func (c *Client) HTTPClient() *http.Client { return c.hc }

// Do issues req and returns its response.
func (c *Client) Do(ctx context.Context, req Req) (*Resp, error) {
	var body io.Reader
	contentLength := req.ContentLength
	contentType := req.ContentType
	if req.JSONBody != nil {
		b, err := json.Marshal(req.JSONBody)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		body = bytes.NewReader(b)
		contentLength = int64(len(b))
		if contentType == "" {
			contentType = "application/json"
		}
	} else if req.Body != nil {
		body = req.Body
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	if req.Headers != nil {
		httpReq.Header = req.Headers.Clone()
	}
	if len(req.Accept) > 0 {
		httpReq.Header.Set("Accept", strings.Join(req.Accept, ", "))
	}
	if req.Auth != "" {
		httpReq.Header.Set("Authorization", req.Auth)
	}
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	if req.Body != nil {
		if contentLength <= 0 {
			return nil, fmt.Errorf("streaming request body requires a known Content-Length")
		}
		httpReq.ContentLength = contentLength
		httpReq.Header.Set("Content-Length", strconv.FormatInt(contentLength, 10))
	} else if contentLength > 0 {
		httpReq.ContentLength = contentLength
	}
	httpResp, err := c.hc.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	resp := &Resp{StatusCode: httpResp.StatusCode, Header: httpResp.Header}
	if req.Stream {
		resp.rdr = httpResp.Body
		return resp, nil
	}
	defer httpResp.Body.Close()
	resp.body, err = io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return resp, nil
}
