package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ocipack/ocipack/types/platform"
	"github.com/ocipack/ocipack/types/ref"
)

type imageManifestOpts struct {
	platform string
}

func newImageCmd() *cobra.Command {
	top := &cobra.Command{
		Use:   "image <cmd>",
		Short: "inspect a remote image's manifest or config",
	}
	top.AddCommand(newImageManifestCmd())
	top.AddCommand(newImageConfigCmd())
	return top
}

func newImageManifestCmd() *cobra.Command {
	opts := imageManifestOpts{}
	cmd := &cobra.Command{
		Use:   "manifest <image_ref>",
		Short: "show an image's manifest",
		Args:  cobra.ExactArgs(1),
		RunE:  opts.run,
	}
	cmd.Flags().StringVar(&opts.platform, "platform", "", "platform to select from a manifest list (os/arch[/variant])")
	return cmd
}

func (o imageManifestOpts) run(cmd *cobra.Command, args []string) error {
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

	cl := newClient(r)
	m, err := cl.Manifest(cmd.Context(), r, p)
	if err != nil {
		return fmt.Errorf("failed to get manifest for %s: %w", r.CommonName(), err)
	}
	raw, err := m.RawBody()
	if err != nil {
		return err
	}
	var data interface{}
	if err := json.Unmarshal(raw, &data); err != nil {
		return fmt.Errorf("failed to parse manifest body: %w", err)
	}
	return printResult(data)
}

func newImageConfigCmd() *cobra.Command {
	opts := imageManifestOpts{}
	cmd := &cobra.Command{
		Use:   "config <image_ref>",
		Short: "show an image's config",
		Args:  cobra.ExactArgs(1),
		RunE:  opts.runConfig,
	}
	cmd.Flags().StringVar(&opts.platform, "platform", "", "platform to select from a manifest list (os/arch[/variant])")
	return cmd
}

func (o imageManifestOpts) runConfig(cmd *cobra.Command, args []string) error {
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

	cl := newClient(r)
	m, err := cl.Manifest(cmd.Context(), r, p)
	if err != nil {
		return fmt.Errorf("failed to get manifest for %s: %w", r.CommonName(), err)
	}
	configDesc, err := m.GetConfig()
	if err != nil {
		return fmt.Errorf("failed to read config descriptor: %w", err)
	}
	img, _, err := cl.ConfigBlob(cmd.Context(), configDesc.Digest)
	if err != nil {
		return fmt.Errorf("failed to fetch config blob: %w", err)
	}
	return printResult(img)
}
