package version

import (
	"runtime"
	"strings"
	"testing"
)

func TestGetVersionInfo_Defaults(t *testing.T) {
	info := GetVersionInfo()

	if !strings.Contains(info, "tutor-agent version dev") {
		t.Errorf("banner %q missing default version", info)
	}
	// BuildTime has no fallback, so the default always shows through.
	if !strings.Contains(info, "built: unknown") {
		t.Errorf("banner %q missing default build time", info)
	}
	if !strings.Contains(info, runtime.Version()) {
		t.Errorf("banner %q missing Go version %s", info, runtime.Version())
	}
}

func TestGetVersionInfo_Stamped(t *testing.T) {
	origVersion, origCommit, origBuildTime := Version, GitCommit, BuildTime
	defer func() {
		Version, GitCommit, BuildTime = origVersion, origCommit, origBuildTime
	}()

	Version = "v1.2.3"
	GitCommit = "abc123"
	BuildTime = "2026-08-25T00:00:00Z"

	info := GetVersionInfo()
	for _, want := range []string{"v1.2.3", "commit: abc123", "built: 2026-08-25T00:00:00Z"} {
		if !strings.Contains(info, want) {
			t.Errorf("banner %q missing %q", info, want)
		}
	}
}
