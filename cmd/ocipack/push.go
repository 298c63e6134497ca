package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ocipack/ocipack/types/manifest"
	"github.com/ocipack/ocipack/types/ref"
	"github.com/ocipack/ocipack/writer"
)

func newPushCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "push <manifest.json> <config.json> <dest_ref>",
		Short: "push a manifest and config (from \"ocipack build\") to a registry",
		Example: `
# push a build's output to a registry
ocipack push manifest.json config.json registry.example.org/team/app:v1`,
		Args: cobra.ExactArgs(3),
		RunE: runPush,
	}
	return cmd
}

func runPush(cmd *cobra.Command, args []string) error {
	manifestPath, configPath, destRef := args[0], args[1], args[2]

	manifestRaw, err := os.ReadFile(manifestPath)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", manifestPath, err)
	}
	configRaw, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", configPath, err)
	}
	m, err := manifest.New(manifest.WithRaw(manifestRaw))
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", manifestPath, err)
	}

	r, err := ref.New(destRef)
	if err != nil {
		return fmt.Errorf("invalid destination reference %q: %w", destRef, err)
	}
	reference := r.Tag
	if r.Digest != "" {
		reference = r.Digest
	}

	c, err := openCache()
	if err != nil {
		return err
	}
	cl := newClient(r)

	if err := writer.PushToRegistry(cmd.Context(), cl, c, m, configRaw, reference, os.Stderr); err != nil {
		return fmt.Errorf("push failed: %w", err)
	}

	out := struct {
		Pushed   string
		Manifest string
	}{
		Pushed:   r.CommonName(),
		Manifest: m.GetDescriptor().Digest.String(),
	}
	return printResult(out)
}
