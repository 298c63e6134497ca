package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ocipack/ocipack/buildengine"
	"github.com/ocipack/ocipack/buildplan"
	"github.com/ocipack/ocipack/imgconfig"
	"github.com/ocipack/ocipack/types/ref"
)

// buildPlanFile is the on-disk JSON shape a build plan is provided in:
// Dockerfile parsing is out of scope, so the caller (a Dockerfile parser,
// a generator, or a hand-written document) hands ocipack an already
// decided set of mutations instead.
type buildPlanFile struct {
	From struct {
		Ref      string `json:"ref"`
		Platform string `json:"platform,omitempty"`
	} `json:"from"`
	Files []struct {
		Src string `json:"src"`
		Dst string `json:"dst"`
	} `json:"files,omitempty"`
	Env         map[string]string `json:"env,omitempty"`
	Labels      map[string]string `json:"labels,omitempty"`
	Cmd         []string          `json:"cmd,omitempty"`
	Entrypoint  []string          `json:"entrypoint,omitempty"`
	WorkDir     string            `json:"workdir,omitempty"`
	User        string            `json:"user,omitempty"`
	ExposePorts []string          `json:"exposePorts,omitempty"`
}

func (f buildPlanFile) toPlan() *buildplan.Plan {
	plan := &buildplan.Plan{
		From: buildplan.FromImage{Ref: f.From.Ref, Platform: f.From.Platform},
	}
	for _, cf := range f.Files {
		plan.Files = append(plan.Files, buildplan.CopyFile{Src: cf.Src, Dst: cf.Dst})
	}
	if len(f.Env) > 0 {
		plan.Instructions = append(plan.Instructions, buildplan.EnvSet(f.Env))
	}
	if len(f.Labels) > 0 {
		plan.Instructions = append(plan.Instructions, buildplan.LabelSet(f.Labels))
	}
	if len(f.Cmd) > 0 {
		plan.Instructions = append(plan.Instructions, buildplan.Cmd(f.Cmd))
	}
	if len(f.Entrypoint) > 0 {
		plan.Instructions = append(plan.Instructions, buildplan.Entrypoint(f.Entrypoint))
	}
	if f.WorkDir != "" {
		plan.Instructions = append(plan.Instructions, buildplan.WorkDir(f.WorkDir))
	}
	if f.User != "" {
		plan.Instructions = append(plan.Instructions, buildplan.User(f.User))
	}
	for _, p := range f.ExposePorts {
		plan.Instructions = append(plan.Instructions, buildplan.ExposePort(p))
	}
	return plan
}

type buildOpts struct {
	dialect    string
	outputJSON string
}

func newBuildCmd() *cobra.Command {
	opts := buildOpts{}
	cmd := &cobra.Command{
		Use:   "build <plan.json>",
		Short: "build a new image by layering a build plan onto a base image",
		Long: `Build reads a build plan document (base image, files to add, and config
mutations), pulls the base image into the local cache, synthesizes a new
top layer from the plan's files, applies the plan's mutations to the
config, and writes the resulting manifest and config as JSON. Pass the
result to "ocipack push" or "ocipack export" to publish it.`,
		Args: cobra.ExactArgs(1),
		RunE: opts.run,
	}
	cmd.Flags().StringVar(&opts.dialect, "dialect", "oci", "target manifest dialect: oci or docker")
	cmd.Flags().StringVar(&opts.outputJSON, "output", "", "directory to write manifest.json and config.json into (defaults to the current directory)")
	return cmd
}

func (o buildOpts) run(cmd *cobra.Command, args []string) error {
	planRaw, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read build plan %s: %w", args[0], err)
	}
	var pf buildPlanFile
	if err := json.Unmarshal(planRaw, &pf); err != nil {
		return fmt.Errorf("failed to parse build plan %s: %w", args[0], err)
	}
	plan := pf.toPlan()
	if plan.From.Ref == "" {
		return fmt.Errorf("build plan is missing a base image reference")
	}

	var dialect imgconfig.Dialect
	switch o.dialect {
	case "oci", "":
		dialect = imgconfig.OCI
	case "docker":
		dialect = imgconfig.Docker
	default:
		return fmt.Errorf("unknown dialect %q, expected oci or docker", o.dialect)
	}

	baseRef, err := ref.New(plan.From.Ref)
	if err != nil {
		return fmt.Errorf("invalid base image reference %q: %w", plan.From.Ref, err)
	}

	c, err := openCache()
	if err != nil {
		return err
	}
	cl := newClient(baseRef)

	res, err := buildengine.Build(cmd.Context(), cl, c, plan, dialect, os.Stderr)
	if err != nil {
		return fmt.Errorf("build failed: %w", err)
	}

	outDir := o.outputJSON
	if outDir == "" {
		outDir = "."
	}
	manifestRaw, err := res.Manifest.RawBody()
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(outDir, "manifest.json"), manifestRaw, 0644); err != nil {
		return fmt.Errorf("failed to write manifest.json: %w", err)
	}
	if err := os.WriteFile(filepath.Join(outDir, "config.json"), res.ConfigRaw, 0644); err != nil {
		return fmt.Errorf("failed to write config.json: %w", err)
	}

	out := struct {
		Manifest string
		Config   string
	}{
		Manifest: res.Manifest.GetDescriptor().Digest.String(),
		Config:   res.Config.String(),
	}
	return printResult(out)
}
