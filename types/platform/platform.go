// Package platform models an OCI/Docker platform tuple (os/arch/variant)
// and the matching rules used to pick an entry from a manifest index.
package platform

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/ocipack/ocipack/types"
)

// Platform identifies the os/architecture (and optional variant) an image
// manifest targets.
type Platform struct {
	OS           string   `json:"os"`
	Architecture string   `json:"architecture"`
	Variant      string   `json:"variant,omitempty"`
	OSVersion    string   `json:"os.version,omitempty"`
	OSFeatures   []string `json:"os.features,omitempty"`
}

// String renders the platform as "os/arch[/variant]".
func (p Platform) String() string {
	s := p.OS + "/" + p.Architecture
	if p.Variant != "" {
		s += "/" + p.Variant
	}
	return s
}

// Parse converts a platform string ("os/arch[/variant]") into a Platform.
func Parse(s string) (Platform, error) {
	if s == "" {
		return Platform{}, fmt.Errorf("%w: empty platform string", types.ErrParsingFailed)
	}
	parts := strings.Split(s, "/")
	if len(parts) < 2 || len(parts) > 3 {
		return Platform{}, fmt.Errorf("%w: invalid platform %q", types.ErrParsingFailed, s)
	}
	for _, part := range parts {
		if part == "" || part == "*" {
			return Platform{}, fmt.Errorf("%w: invalid platform %q", types.ErrParsingFailed, s)
		}
	}
	p := Platform{OS: parts[0], Architecture: parts[1]}
	if len(parts) == 3 {
		p.Variant = normalizeVariant(p.Architecture, parts[2])
	}
	return p, nil
}

// normalizeVariant drops each architecture's implicit default variant
// ("v1" on amd64, "v8" on arm64) so it compares equal to an unset variant.
func normalizeVariant(arch, variant string) string {
	switch arch {
	case "amd64":
		if variant == "v1" {
			return ""
		}
	case "arm64":
		if variant == "v8" {
			return ""
		}
	}
	return variant
}

// Compatible reports whether a manifest built for target can run on host:
// the OS must match, the architectures must match when both are set, and
// target's variant must not rank above host's. It does not rank candidates
// against each other; Compare does that.
func Compatible(host, target Platform) bool {
	if host.OS != target.OS {
		return false
	}
	if host.Architecture != "" && target.Architecture != "" && host.Architecture != target.Architecture {
		return false
	}
	return variantRank(target.Architecture, target.Variant) <= variantRank(host.Architecture, host.Variant)
}

// Match reports whether target is an exact match for host, including variant.
func Match(host, target Platform) bool {
	if host.OS != target.OS || host.Architecture != target.Architecture {
		return false
	}
	return normalizeVariant(host.Architecture, host.Variant) == normalizeVariant(target.Architecture, target.Variant)
}

// Compare reports match, compatibility, and whether target is a better
// (equal or higher) variant than prev for the given host.
func Compare(host, target, prev Platform) (match, compat, better bool) {
	match = Match(host, target)
	compat = Compatible(host, target)
	if !compat {
		return
	}
	hv := variantRank(host.Architecture, host.Variant)
	tv := variantRank(target.Architecture, target.Variant)
	if tv > hv {
		// target requires a newer variant than the host supports
		compat = false
		return
	}
	pv := variantRank(prev.Architecture, prev.Variant)
	better = tv >= pv
	return
}

// variantRank orders arm variants numerically (v5 < v6 < v7 < v8); unknown
// or absent variants rank as 0, the most permissive case.
func variantRank(arch, variant string) int {
	variant = normalizeVariant(arch, variant)
	switch variant {
	case "v5":
		return 5
	case "v6":
		return 6
	case "v7":
		return 7
	case "v8":
		return 8
	default:
		return 0
	}
}

// cpuVariant returns a fixed variant for the current GOARCH: v8 on arm64
// and v7 on arm. The CPU itself is not probed. Other architectures have no
// variant.
func cpuVariant() string {
	switch runtime.GOARCH {
	case "arm64":
		return "v8"
	case "arm":
		return "v7"
	default:
		return ""
	}
}
