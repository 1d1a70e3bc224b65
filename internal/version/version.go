// Package version carries build metadata stamped in via -ldflags.
package version

import "fmt"

var (
	// Version is the current application version
	Version = "dev"
	// GitSHA is the git commit SHA
	GitSHA = "unknown"
	// BuildTime is the build timestamp
	BuildTime = "unknown"
)

// String renders the build metadata as a single line suitable for a
// -version flag or a startup log.
func String() string {
	return fmt.Sprintf("brewtrace %s (%s, built %s)", Version, GitSHA, BuildTime)
}
