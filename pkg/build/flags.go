// SPDX-License-Identifier: MIT
//
// Package build exposes metadata embedded into the binary at link time:
//
//	go build -ldflags "-X pitchscope/pkg/build.buildVersion=v0.3.0 \
//	  -X pitchscope/pkg/build.buildCommit=$(git rev-parse --short HEAD) \
//	  -X pitchscope/pkg/build.buildTime=$(date -u +%FT%TZ) \
//	  -X pitchscope/pkg/build.buildUuid=$(uuidgen)"
//
// Development builds run with the defaults below.
package build

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const (
	DefaultName        = "pitchscope"
	DefaultDescription = "Live monophonic pitch monitor"
	unknown            = "unknown"
)

type ldFlags struct {
	Name        string
	Description string
	Time        string
	Commit      string
	Version     string
	Uuid        string
}

// Populated by -ldflags during compilation.
var (
	buildName    string
	buildTime    string
	buildCommit  string
	buildVersion string
	buildUuid    string
	buildFlags   = defaultFlags()
)

func defaultFlags() *ldFlags {
	return &ldFlags{
		Name:        DefaultName,
		Description: DefaultDescription,
		Time:        unknown,
		Commit:      unknown,
		Version:     unknown,
		Uuid:        unknown,
	}
}

// Initialize copies the link-time values into the build information. Every
// value that is set is applied; the returned error names the ones that are
// missing or malformed so release builds can refuse to start.
func Initialize() error {
	var missing []string
	set := func(dst *string, val, name string) {
		if val == "" {
			missing = append(missing, name)
			return
		}
		*dst = val
	}

	if buildName != "" {
		buildFlags.Name = buildName
	}
	set(&buildFlags.Time, buildTime, "BuildTime")
	set(&buildFlags.Commit, buildCommit, "BuildCommit")
	set(&buildFlags.Version, buildVersion, "BuildVersion")

	if buildUuid == "" {
		missing = append(missing, "BuildUuid")
	} else if id, err := uuid.Parse(buildUuid); err != nil {
		missing = append(missing, fmt.Sprintf("BuildUuid (%v)", err))
	} else {
		buildFlags.Uuid = id.String()
	}

	if len(missing) > 0 {
		return fmt.Errorf("build flags not set: %s", strings.Join(missing, ", "))
	}
	return nil
}

// GetBuildFlags returns the current build information.
func GetBuildFlags() *ldFlags {
	return buildFlags
}

// String renders the version line, e.g. "pitchscope v0.3.0 (1a2b3c4, 2025-04-13T10:00:00Z)".
func (f *ldFlags) String() string {
	return fmt.Sprintf("%s %s (%s, %s)", f.Name, f.Version, f.Commit, f.Time)
}
