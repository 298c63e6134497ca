// Package pull resolves a reference down to a concrete layer set and fills
// the local cache with every blob a build or push needs, driving
// registry+transfer+scheduler the way mod/mod.go's image copy walks a
// source image one descriptor at a time, except here the destination is
// the cache rather than another registry directly.
package pull

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/opencontainers/go-digest"
	ociv1 "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/ocipack/ocipack/cache"
	"github.com/ocipack/ocipack/internal/muset"
	"github.com/ocipack/ocipack/registry"
	"github.com/ocipack/ocipack/scheduler"
	"github.com/ocipack/ocipack/transfer"
	"github.com/ocipack/ocipack/types"
	"github.com/ocipack/ocipack/types/manifest"
	"github.com/ocipack/ocipack/types/platform"
	"github.com/ocipack/ocipack/types/ref"
)

// Result is everything a build or direct re-push needs after a successful
// pull: the resolved (possibly platform-selected) manifest, its config
// blob both parsed and raw, and the layer descriptors, each already
// verified into the cache.
type Result struct {
	Manifest     manifest.Manifest
	Config       ociv1.Image
	ConfigRaw    []byte
	ConfigDigest digest.Digest
	Layers       []types.Descriptor
}

// Pull resolves r against cl (selecting p's platform out of a manifest
// list/index when r names one), fetches the config blob, and downloads
// every layer into c, reporting progress to out when it is a terminal.
func Pull(ctx context.Context, cl *registry.Client, c *cache.Cache, r ref.Ref, p *platform.Platform, out io.Writer) (*Result, error) {
	m, err := cl.Manifest(ctx, r, p)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve manifest for %s: %w", r.CommonName(), err)
	}
	if m.IsList() {
		return nil, fmt.Errorf("manifest %s is a list and no platform was selected: %w", r.CommonName(), types.ErrUnsupportedMediaType)
	}
	configDesc, err := m.GetConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to read config descriptor: %w", err)
	}
	img, raw, err := cl.ConfigBlob(ctx, configDesc.Digest)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch config blob %s: %w", configDesc.Digest, err)
	}

	layers, err := m.GetLayers()
	if err != nil {
		return nil, fmt.Errorf("failed to read layers: %w", err)
	}

	if err := downloadLayers(ctx, cl, c, layers, out); err != nil {
		return nil, err
	}

	return &Result{
		Manifest:     m,
		Config:       img,
		ConfigRaw:    raw,
		ConfigDigest: configDesc.Digest,
		Layers:       layers,
	}, nil
}

// downloadLayers builds one job per distinct digest (a manifest can list the
// same layer twice), runs every job to completion, and returns the first
// failure in manifest order. The full set of per-digest mutexes is locked together via
// internal/muset before jobs are constructed so two overlapping pulls in
// this process can never deadlock waiting on each other's digest subsets,
// only serialize on the digests they actually share.
func downloadLayers(ctx context.Context, cl *registry.Client, c *cache.Cache, layers []types.Descriptor, out io.Writer) error {
	order := make([]digest.Digest, 0, len(layers))
	seen := make(map[digest.Digest]bool, len(layers))
	mus := make([]*sync.Mutex, 0, len(layers))
	for _, l := range layers {
		if seen[l.Digest] {
			continue
		}
		seen[l.Digest] = true
		order = append(order, l.Digest)
		mus = append(mus, c.Mutex(l.Digest))
	}
	muset.Lock(mus...)
	defer func() {
		for _, mu := range mus {
			mu.Unlock()
		}
	}()

	sizeByDigest := make(map[digest.Digest]int64, len(layers))
	for _, l := range layers {
		sizeByDigest[l.Digest] = l.Size
	}

	jobs := make([]scheduler.Job, len(order))
	for i, d := range order {
		d := d
		jobs[i] = transfer.NewDownloadJob(d, sizeByDigest[d], c, func(ctx context.Context) (int, http.Header, io.ReadCloser, error) {
			return cl.DownloadBlob(ctx, d)
		})
	}
	results := scheduler.Run(ctx, jobs, out)
	for i, res := range results {
		if res.State == transfer.Failed {
			return fmt.Errorf("failed to download layer %s: %w", order[i], res.Err)
		}
	}
	return nil
}
