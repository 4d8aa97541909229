// Package version holds build metadata of the ebm binary. The variables are
// overridden with -ldflags "-X" at release time.
package version

import (
	"fmt"
	"runtime/debug"
)

// Build metadata.
var (
	Version = "dev"
	Commit  = "<unknown>"
	Date    = "<unknown>"
)

// InitBinaryVersion fills Version and Commit from the module build info when
// they were not set by the linker.
func InitBinaryVersion() {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}

	if Version == "dev" && info.Main.Version != "" && info.Main.Version != "(devel)" {
		Version = info.Main.Version
	}

	for _, setting := range info.Settings {
		if setting.Key == "vcs.revision" && Commit == "<unknown>" {
			Commit = setting.Value
		}
	}
}

// String formats the metadata for the version command.
func String() string {
	return fmt.Sprintf("ebm %s (commit: %s, built: %s)", Version, Commit, Date)
}
