// Package version holds build metadata, overridden at link time with
// -ldflags "-X github.com/MrSnakeDoc/untold/internal/version.Version=...".
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

var (
	Version   = "dev"             // ex: v0.1.0
	Commit    = ""                // ex: abcd123, falls back to the VCS stamp
	BuildDate = ""                // ex: 2025-08-11T18:42:00Z
	GoVersion = runtime.Version() // go version
)

func init() {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			if Commit == "" && len(s.Value) >= 7 {
				Commit = s.Value[:7]
			}
		case "vcs.time":
			if BuildDate == "" {
				BuildDate = s.Value
			}
		}
	}
}

// String is the one-line build description logged at startup.
func String() string {
	commit, built := Commit, BuildDate
	if commit == "" {
		commit = "none"
	}
	if built == "" {
		built = "unknown"
	}
	return fmt.Sprintf("%s (commit=%s, built=%s, go=%s)", Version, commit, built, GoVersion)
}
