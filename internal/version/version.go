// Package version reports the build-time identity of the ocipack binary.
package version

import "runtime"

// VCSRef and VCSTag are set by the release build via -ldflags.
var (
	VCSRef = "unknown"
	VCSTag = ""
)

// Info describes the running binary's version.
type Info struct {
	VCSRef  string `json:"vcsRef"`
	VCSTag  string `json:"vcsTag,omitempty"`
	GoVer   string `json:"goVer"`
	Os      string `json:"os"`
	Arch    string `json:"arch"`
}

// GetInfo returns the current build's version info.
func GetInfo() Info {
	return Info{
		VCSRef: VCSRef,
		VCSTag: VCSTag,
		GoVer:  runtime.Version(),
		Os:     runtime.GOOS,
		Arch:   runtime.GOARCH,
	}
}
