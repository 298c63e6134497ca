// Package regauth is a Bearer-only token handler for the OCI Distribution
// auth flow: discover the registry's bearer realm once, exchange basic
// credentials for scoped tokens, and cache them until expiry. Grounded on
// pkg/auth's WWW-Authenticate parser, scoped down to drop the pluggable
// handler registry (Basic and other schemes) this module has no use for.
package regauth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ocipack/ocipack/types"
)

// Cred is a set of login credentials for a host.
type Cred struct {
	User, Password, Token string
}

// Kind distinguishes the two scope lines this module issues.
type Kind int

const (
	// Pull requests "repository:<name>:pull".
	Pull Kind = iota
	// PushAndPull requests "repository:<name>:pull,push"; a cached
	// PushAndPull token also satisfies a Pull request.
	PushAndPull
)

func scopeLine(name string, kind Kind) string {
	if kind == PushAndPull {
		return fmt.Sprintf("repository:%s:pull,push", name)
	}
	return fmt.Sprintf("repository:%s:pull", name)
}

type tokenEntry struct {
	token  string
	kind   Kind
	expiry time.Time
}

// Handler discovers and caches bearer tokens for one registry host.
type Handler struct {
	client *http.Client
	base   string // scheme://host, e.g. https://registry-1.docker.io
	cred   Cred
	log    *logrus.Logger

	mu         sync.Mutex
	discovered bool
	realm      string
	service    string
	cache      map[string]tokenEntry // keyed by scope name (repository path)
}

// New creates a Handler for one registry host.
func New(client *http.Client, base string, cred Cred, log *logrus.Logger) *Handler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Handler{
		client: client,
		base:   base,
		cred:   cred,
		log:    log,
		cache:  map[string]tokenEntry{},
	}
}

// discover performs the unauthenticated GET /v2/ probe and parses the
// Www-Authenticate header for the bearer realm/service. Caller must hold h.mu.
func (h *Handler) discover(ctx context.Context) error {
	if h.discovered {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.base+"/v2/", nil)
	if err != nil {
		return fmt.Errorf("failed to build discovery request: %w", err)
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("discovery request failed: %w", err)
	}
	defer resp.Body.Close()
	headers := resp.Header.Values("Www-Authenticate")
	if len(headers) == 0 {
		return fmt.Errorf("no Www-Authenticate header from %s: %w", h.base, types.ErrEmptyChallenge)
	}
	challenges, err := ParseAuthHeaders(headers)
	if err != nil {
		return err
	}
	for _, c := range challenges {
		if c.AuthType != "bearer" {
			continue
		}
		realm, ok := c.Params["realm"]
		if !ok {
			return fmt.Errorf("bearer challenge missing realm: %w", types.ErrInvalidChallenge)
		}
		h.realm = realm
		h.service = c.Params["service"]
		h.discovered = true
		return nil
	}
	return fmt.Errorf("no bearer challenge in Www-Authenticate header: %w", types.ErrInvalidChallenge)
}

// Token returns a bearer token with at least the requested scope,
// exchanging a new one if the cache is empty, expired, or insufficient.
func (h *Handler) Token(ctx context.Context, name string, kind Kind) (string, error) {
	h.mu.Lock()
	if err := h.discover(ctx); err != nil {
		h.mu.Unlock()
		return "", err
	}
	if e, ok := h.cache[name]; ok && time.Now().Before(e.expiry) {
		if e.kind == PushAndPull || e.kind == kind {
			tok := e.token
			h.mu.Unlock()
			return tok, nil
		}
	}
	realm, service := h.realm, h.service
	cred := h.cred
	h.mu.Unlock()

	token, expiresIn, err := h.exchange(ctx, realm, service, scopeLine(name, kind), cred)
	if err != nil {
		return "", err
	}

	h.mu.Lock()
	h.cache[name] = tokenEntry{token: token, kind: kind, expiry: time.Now().Add(expiresIn)}
	h.mu.Unlock()
	return token, nil
}

type tokenResp struct {
	Token       string `json:"token"`
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

func (h *Handler) exchange(ctx context.Context, realm, service, scope string, cred Cred) (string, time.Duration, error) {
	u, err := url.Parse(realm)
	if err != nil {
		return "", 0, fmt.Errorf("invalid auth realm %q: %w", realm, err)
	}
	q := u.Query()
	if service != "" {
		q.Set("service", service)
	}
	q.Set("scope", scope)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", 0, fmt.Errorf("failed to build token request: %w", err)
	}
	if cred.User != "" || cred.Password != "" {
		req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString(
			[]byte(cred.User+":"+cred.Password)))
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("token exchange request failed: %w", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", 0, fmt.Errorf("token exchange failed with status %d: %s: %w", resp.StatusCode, strings.TrimSpace(string(body)), types.ErrUnauthorized)
	}
	var tr tokenResp
	if err := json.Unmarshal(body, &tr); err != nil {
		return "", 0, fmt.Errorf("failed to parse token response: %s: %w", string(body), err)
	}
	token := tr.Token
	if token == "" {
		token = tr.AccessToken
	}
	if token == "" {
		return "", 0, fmt.Errorf("token response missing token: %s", string(body))
	}
	expiresIn := tr.ExpiresIn
	if expiresIn <= 0 {
		h.log.Warnf("token response for %s missing expires_in, assuming 60s", scope)
		expiresIn = 60
	}
	return token, time.Duration(expiresIn) * time.Second, nil
}
