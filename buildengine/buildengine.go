// Package buildengine composes a pull with top-layer synthesis and config
// mutation into the build/transform orchestrator spec.md §4.K describes:
// it drives pull to land a base image in the cache, tars any staged files
// into one new layer, applies a buildplan.Plan's instructions to the
// config, and returns the result for a target writer. Grounded on the
// teacher's mod package, whose exported With* options drive exactly this
// "copy plus mutate" sequence for a single image.
package buildengine

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/opencontainers/go-digest"

	"github.com/ocipack/ocipack/buildplan"
	"github.com/ocipack/ocipack/cache"
	"github.com/ocipack/ocipack/imgconfig"
	"github.com/ocipack/ocipack/internal/copy"
	"github.com/ocipack/ocipack/pkg/archive"
	"github.com/ocipack/ocipack/pull"
	"github.com/ocipack/ocipack/registry"
	"github.com/ocipack/ocipack/transform"
	"github.com/ocipack/ocipack/types/blob"
	"github.com/ocipack/ocipack/types/manifest"
	"github.com/ocipack/ocipack/types/platform"
	"github.com/ocipack/ocipack/types/ref"
)

// Result is a completed build: the target-dialect manifest (pointing at the
// serialized config by digest and size) and the raw config bytes a writer
// needs to push or archive alongside it. The config blob is not stored in
// the cache.
type Result struct {
	Manifest  manifest.Manifest
	ConfigRaw []byte
	Config    digest.Digest
}

// Build pulls plan.From into c through cl, synthesizes a new top layer
// from plan.Files (when non-empty), applies plan.Instructions to the
// config, converts the result to dialect, and commits the new layer into
// c. The serialized config is returned in the Result, not committed to c.
func Build(ctx context.Context, cl *registry.Client, c *cache.Cache, plan *buildplan.Plan, dialect imgconfig.Dialect, out io.Writer) (*Result, error) {
	baseRef, err := ref.New(plan.From.Ref)
	if err != nil {
		return nil, fmt.Errorf("invalid base image %q: %w", plan.From.Ref, err)
	}
	var p *platform.Platform
	if plan.From.Platform != "" {
		parsed, err := platform.Parse(plan.From.Platform)
		if err != nil {
			return nil, err
		}
		p = &parsed
	}

	pulled, err := pull.Pull(ctx, cl, c, baseRef, p, out)
	if err != nil {
		return nil, fmt.Errorf("failed to pull base image %s: %w", plan.From.Ref, err)
	}

	oc := blob.NewOCIConfig(blob.WithImage(pulled.Config))
	cfg := imgconfig.New(oc)

	if len(plan.Files) > 0 {
		if err := addTopLayer(c, pulled.Manifest, cfg, plan.Files); err != nil {
			return nil, err
		}
	}

	for _, inst := range plan.Instructions {
		switch v := inst.(type) {
		case buildplan.EnvSet:
			cfg.AddEnvs(v)
		case buildplan.LabelSet:
			cfg.AddLabels(v, dialect)
		case buildplan.Cmd:
			cfg.OverwriteCmd(v)
		case buildplan.Entrypoint:
			cfg.OverwriteEntrypoint(v)
		case buildplan.WorkDir:
			cfg.OverwriteWorkDir(string(v))
		case buildplan.User:
			cfg.OverwriteUser(string(v))
		case buildplan.ExposePort:
			cfg.AddPorts([]string{string(v)})
		default:
			return nil, fmt.Errorf("unsupported build instruction %T", inst)
		}
	}

	rawCfg, cfgDigest, cfgSize, err := cfg.Serialize()
	if err != nil {
		return nil, err
	}

	converted, err := transform.Manifest(pulled.Manifest, dialect, cfgDigest, cfgSize)
	if err != nil {
		return nil, err
	}

	return &Result{Manifest: converted, ConfigRaw: rawCfg, Config: cfgDigest}, nil
}

// addTopLayer stages plan.Files into a temp directory, tars and gzips it,
// commits the result into c as a new cache blob, and records it at index 0
// of both m's layer list and cfg's diff-id list.
func addTopLayer(c *cache.Cache, m manifest.Manifest, cfg *imgconfig.Config, files []buildplan.CopyFile) error {
	stageDir, err := os.MkdirTemp(c.TempDir(), "layer-*")
	if err != nil {
		return fmt.Errorf("failed to create layer staging dir: %w", err)
	}
	defer os.RemoveAll(stageDir)
	for _, f := range files {
		if err := stageFile(stageDir, f); err != nil {
			return err
		}
	}

	tarPath := filepath.Join(c.TempDir(), fmt.Sprintf("layer-%d.tar", os.Getpid()))
	tarFile, err := os.Create(tarPath)
	if err != nil {
		return fmt.Errorf("failed to create layer tar: %w", err)
	}
	defer os.Remove(tarPath)
	if err := archive.Tar(context.Background(), stageDir, tarFile); err != nil {
		tarFile.Close()
		return fmt.Errorf("failed to tar staged layer: %w", err)
	}
	if _, err := tarFile.Seek(0, io.SeekStart); err != nil {
		tarFile.Close()
		return err
	}

	diffHasher := sha256.New()
	tarReader := io.TeeReader(tarFile, diffHasher)
	compressed, err := archive.Compress(tarReader, archive.CompressGzip)
	if err != nil {
		tarFile.Close()
		return fmt.Errorf("failed to compress layer: %w", err)
	}

	staged, err := c.StageFile()
	if err != nil {
		tarFile.Close()
		return fmt.Errorf("failed to stage new layer blob: %w", err)
	}
	stagedPath := staged.Name()
	compressedHasher := sha256.New()
	size, err := io.Copy(staged, io.TeeReader(compressed, compressedHasher))
	tarFile.Close()
	if err != nil {
		staged.Close()
		os.Remove(stagedPath)
		return fmt.Errorf("failed to write compressed layer: %w", err)
	}
	if err := staged.Close(); err != nil {
		os.Remove(stagedPath)
		return fmt.Errorf("failed to finalize compressed layer: %w", err)
	}

	compressedDigest := digest.NewDigestFromEncoded(digest.SHA256, fmt.Sprintf("%x", compressedHasher.Sum(nil)))
	diffID := digest.NewDigestFromEncoded(digest.SHA256, fmt.Sprintf("%x", diffHasher.Sum(nil)))

	if err := c.Commit(compressedDigest, stagedPath, diffID, archive.CompressGzip); err != nil {
		return err
	}
	if err := imgconfig.AddTopLayer(m, size, compressedDigest, archive.CompressGzip); err != nil {
		return err
	}
	cfg.AddDiffLayer(diffID)
	return nil
}

func stageFile(stageDir string, f buildplan.CopyFile) error {
	dstPath := filepath.Join(stageDir, filepath.FromSlash(f.Dst))
	srcInfo, err := os.Stat(f.Src)
	if err != nil {
		return fmt.Errorf("failed to stat copy source %s: %w", f.Src, err)
	}
	if srcInfo.IsDir() {
		if err := os.MkdirAll(dstPath, 0755); err != nil {
			return fmt.Errorf("failed to create staging dir for %s: %w", f.Dst, err)
		}
		if err := copy.Copy(dstPath, f.Src); err != nil {
			return fmt.Errorf("failed to stage directory %s: %w", f.Src, err)
		}
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(dstPath), 0755); err != nil {
		return fmt.Errorf("failed to create staging dir for %s: %w", f.Dst, err)
	}
	src, err := os.Open(f.Src)
	if err != nil {
		return fmt.Errorf("failed to open copy source %s: %w", f.Src, err)
	}
	defer src.Close()
	dst, err := os.Create(dstPath)
	if err != nil {
		return fmt.Errorf("failed to stage copy destination %s: %w", f.Dst, err)
	}
	defer dst.Close()
	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("failed to stage %s: %w", f.Src, err)
	}
	return nil
}
