package version

import "fmt"

var (
	// Version is the release of the controller.
	Version = "0.1.0"
	// Commit is the short git SHA of the build, or "none".
	Commit = "none"
	// BuildTime is the UTC time of the build.
	BuildTime = "unknown"
)

// Short returns the release string only.
func Short() string {
	return Version
}

// Full returns the release with commit and build time, for the version
// command and the startup log line.
func Full() string {
	return fmt.Sprintf("alarm-controller %s (commit %s, built %s)", Version, Commit, BuildTime)
}
