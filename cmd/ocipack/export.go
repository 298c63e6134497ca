package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ocipack/ocipack/types/manifest"
	"github.com/ocipack/ocipack/writer"
)

type exportOpts struct {
	repoTag string
	gzip    bool
}

func newExportCmd() *cobra.Command {
	opts := exportOpts{}
	cmd := &cobra.Command{
		Use:   "export <manifest.json> <config.json> <dest.tar>",
		Short: "write a manifest and config (from \"ocipack build\") as an OCI image layout archive",
		Example: `
# export a build's output to an archive loadable by docker/podman
ocipack export --repo-tag app:v1 manifest.json config.json app.tar`,
		Args: cobra.ExactArgs(3),
		RunE: opts.run,
	}
	cmd.Flags().StringVar(&opts.repoTag, "repo-tag", "", "repo:tag recorded in the archive's legacy manifest.json")
	cmd.Flags().BoolVar(&opts.gzip, "gzip", false, "gzip-compress the archive")
	return cmd
}

func (o exportOpts) run(cmd *cobra.Command, args []string) error {
	manifestPath, configPath, destPath := args[0], args[1], args[2]

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

	c, err := openCache()
	if err != nil {
		return err
	}

	if err := writer.WriteTar(cmd.Context(), c, m, configRaw, o.repoTag, destPath, o.gzip); err != nil {
		return fmt.Errorf("export failed: %w", err)
	}

	out := struct {
		Archive  string
		Manifest string
	}{
		Archive:  destPath,
		Manifest: m.GetDescriptor().Digest.String(),
	}
	return printResult(out)
}
