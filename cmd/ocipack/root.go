// Command ocipack pulls, builds, pushes, and exports OCI/Docker images
// without a daemon. Grounded on cmd/regctl/root.go's cobra command tree
// and global flag set.
package main

import (
	"embed"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ocipack/ocipack/cache"
	"github.com/ocipack/ocipack/config"
	"github.com/ocipack/ocipack/internal/reghttp"
	"github.com/ocipack/ocipack/internal/version"
	"github.com/ocipack/ocipack/pkg/template"
	"github.com/ocipack/ocipack/registry"
	"github.com/ocipack/ocipack/types/ref"
)

const usageDesc = `Pull, build, push, and export OCI and Docker v2 images without a daemon.`

//go:embed embed/*
var embedFS embed.FS

var log *logrus.Logger

var rootCmd = &cobra.Command{
	Use:           "ocipack <cmd>",
	Short:         "Pull, build, push, and export container images",
	Long:          usageDesc,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show the version",
	Args:  cobra.ExactArgs(0),
	RunE:  runVersion,
}

var rootOpts struct {
	verbosity string
	format    string
	cacheDir  string
}

func init() {
	log = &logrus.Logger{
		Out:       os.Stderr,
		Formatter: new(logrus.TextFormatter),
		Hooks:     make(logrus.LevelHooks),
		Level:     logrus.WarnLevel,
	}
	setupVCSVars()

	rootCmd.PersistentFlags().StringVarP(&rootOpts.verbosity, "verbosity", "v", logrus.WarnLevel.String(), "Log level (debug, info, warn, error, fatal, panic)")
	rootCmd.PersistentFlags().StringVar(&rootOpts.cacheDir, "cache-dir", defaultCacheDir(), "Local content-addressed cache directory")
	rootCmd.PersistentFlags().StringVar(&rootOpts.format, "format", "{{jsonPretty .}}", "Format output with go template syntax")
	rootCmd.PersistentPreRunE = rootPreRun

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(newPullCmd())
	rootCmd.AddCommand(newBuildCmd())
	rootCmd.AddCommand(newPushCmd())
	rootCmd.AddCommand(newExportCmd())
	rootCmd.AddCommand(newImageCmd())
}

func rootPreRun(cmd *cobra.Command, args []string) error {
	lvl, err := logrus.ParseLevel(rootOpts.verbosity)
	if err != nil {
		return err
	}
	log.SetLevel(lvl)
	return nil
}

func runVersion(cmd *cobra.Command, args []string) error {
	return template.Writer(os.Stdout, rootOpts.format, version.GetInfo())
}

func defaultCacheDir() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "ocipack")
	}
	return filepath.Join(dir, "ocipack")
}

func openCache() (*cache.Cache, error) {
	return cache.New(rootOpts.cacheDir)
}

// printResult renders v to stdout using the global --format template.
func printResult(v interface{}) error {
	return template.Writer(os.Stdout, rootOpts.format, v)
}

// newClient builds a registry.Client for r, preferring a docker config.json
// host entry (credentials, TLS, mirrors) when one matches the ref's
// registry, falling back to an unauthenticated default host.
func newClient(r ref.Ref) *registry.Client {
	var host *config.Host
	if hosts, err := config.DockerLoad(); err == nil {
		for i := range hosts {
			if hosts[i].Name == r.Registry {
				host = &hosts[i]
				break
			}
		}
	} else {
		log.WithFields(logrus.Fields{"err": err}).Debug("failed to load docker config")
	}
	if host == nil {
		host = config.HostNewName(r.Registry)
	}
	return registry.New(reghttp.New(), r, host)
}

func setupVCSVars() {
	verS := struct {
		VCSRef string
		VCSTag string
	}{}
	verB, err := embedFS.ReadFile("embed/version.json")
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return
	}
	if len(verB) > 0 {
		if err := json.Unmarshal(verB, &verS); err != nil {
			return
		}
	}
	if verS.VCSRef != "" {
		version.VCSRef = verS.VCSRef
	}
	if verS.VCSTag != "" {
		version.VCSTag = verS.VCSTag
	}
}
