// Package version carries the build identity stamped into release binaries.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Set at build time through -ldflags; left at these defaults for local runs.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// GetVersionInfo renders the one-line version banner. When no commit was
// stamped in, it falls back to the revision Go embedded at build time.
func GetVersionInfo() string {
	commit := GitCommit
	if commit == "unknown" {
		if info, ok := debug.ReadBuildInfo(); ok {
			for _, s := range info.Settings {
				if s.Key == "vcs.revision" {
					commit = s.Value
					break
				}
			}
		}
	}
	return fmt.Sprintf("tutor-agent version %s (commit: %s, built: %s, go: %s)",
		Version, commit, BuildTime, runtime.Version())
}
