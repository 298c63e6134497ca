package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ocipack/ocipack/pull"
	"github.com/ocipack/ocipack/types/platform"
	"github.com/ocipack/ocipack/types/ref"
)

type pullOpts struct {
	platform string
}

func newPullCmd() *cobra.Command {
	opts := pullOpts{}
	cmd := &cobra.Command{
		Use:   "pull <image_ref>",
		Short: "pull an image's manifest, config, and layers into the local cache",
		Example: `
# pull an image for the local platform
ocipack pull alpine:3

# pull a specific platform from a manifest list
ocipack pull --platform linux/arm64 alpine:3`,
		Args: cobra.ExactArgs(1),
		RunE: opts.run,
	}
	cmd.Flags().StringVar(&opts.platform, "platform", "", "platform to select from a manifest list (os/arch[/variant])")
	return cmd
}

func (o pullOpts) run(cmd *cobra.Command, args []string) error {
	r, err := ref.New(args[0])
	if err != nil {
		return fmt.Errorf("invalid image reference %q: %w", args[0], err)
	}
	var p *platform.Platform
	if o.platform != "" {
		parsed, err := platform.Parse(o.platform)
		if err != nil {
			return err
		}
		p = &parsed
	}

	c, err := openCache()
	if err != nil {
		return err
	}
	cl := newClient(r)

	res, err := pull.Pull(cmd.Context(), cl, c, r, p, os.Stderr)
	if err != nil {
		return fmt.Errorf("pull failed: %w", err)
	}

	out := struct {
		Manifest string
		Config   string
		Layers   int
	}{
		Manifest: res.Manifest.GetDescriptor().Digest.String(),
		Config:   res.ConfigDigest.String(),
		Layers:   len(res.Layers),
	}
	return printResult(out)
}
