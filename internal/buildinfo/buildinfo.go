// Package buildinfo reports the version baked into the binaries.
package buildinfo

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Set with -ldflags "-X github.com/kayky-cas/romaria-da-vovo/internal/buildinfo.Version=..."
var (
	Version = "dev"
	Commit  = ""
	BuiltAt = ""
)

// vcs falls back to the revision and time the go tool stamped into the
// binary when ldflags left Commit or BuiltAt empty.
func vcs() (commit, at string) {
	commit, at = Commit, BuiltAt
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return commit, at
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if commit == "" {
				commit = s.Value
				if len(commit) > 12 {
					commit = commit[:12]
				}
			}
		case "vcs.time":
			if at == "" {
				at = s.Value
			}
		}
	}
	return commit, at
}

func Info() map[string]string {
	commit, at := vcs()
	return map[string]string{
		"version": Version,
		"commit":  commit,
		"builtAt": at,
		"go":      runtime.Version(),
	}
}

// String is the one-line form printed by -version.
func String() string {
	commit, at := vcs()
	s := Version
	if commit != "" {
		s += fmt.Sprintf(" (%s)", commit)
	}
	if at != "" {
		s += " built " + at
	}
	return s
}
