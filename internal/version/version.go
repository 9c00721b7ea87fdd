// Package version reports the build version of the binary.
package version

import (
	"runtime/debug"
)

// Version and Commit are set at link time with
// -ldflags "-X github.com/bgricker/jobctx/internal/version.Version=v1.2.3".
var (
	Version = ""
	Commit  = ""
)

// Info describes the running build.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit,omitempty"`
	GoVersion string `json:"go_version"`
}

// Current returns the build info, falling back to the module version and VCS
// revision recorded by the Go toolchain.
func Current() Info {
	info := Info{Version: Version, Commit: Commit}

	if bi, ok := debug.ReadBuildInfo(); ok {
		info.GoVersion = bi.GoVersion
		if info.Version == "" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
			info.Version = bi.Main.Version
		}
		if info.Commit == "" {
			for _, s := range bi.Settings {
				if s.Key == "vcs.revision" {
					info.Commit = s.Value
				}
			}
		}
	}

	if info.Version == "" {
		info.Version = "dev"
	}
	return info
}

// String renders the info on one line.
func (i Info) String() string {
	s := "jobctx " + i.Version
	if i.Commit != "" {
		commit := i.Commit
		if len(commit) > 12 {
			commit = commit[:12]
		}
		s += " (" + commit + ")"
	}
	if i.GoVersion != "" {
		s += " " + i.GoVersion
	}
	return s
}
