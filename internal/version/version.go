// Package version holds build information injected with -ldflags.
package version

import "fmt"

var (
	Version   = "0.1.0-dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
	GoVersion = "unknown"
)

// SetInfo overrides the build information. Empty values are ignored.
func SetInfo(v, bt, gc, gv string) {
	if v != "" {
		Version = v
	}
	if bt != "" {
		BuildTime = bt
	}
	if gc != "" {
		GitCommit = gc
	}
	if gv != "" {
		GoVersion = gv
	}
}

func Banner() string {
	return "HabitFlow - recurring habit reminder scheduler"
}

// String returns a one-line version summary.
func String() string {
	return fmt.Sprintf("habitflow %s (commit %s, built %s)", Version, GitCommit, BuildTime)
}
