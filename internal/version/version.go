// Package version holds application version info, set at build time.
// Build with: go build -ldflags "-X httpsserve/internal/version.Version=v1.0.0 -X httpsserve/internal/version.Commit=abc123"
package version

import "fmt"

// Version is the application version. Defaults to "dev" when not set via ldflags.
var Version = "dev"

// Commit is the source revision the binary was built from.
var Commit = "unknown"

// String returns the version line printed by --version.
func String() string {
	return fmt.Sprintf("%s (commit: %s)", Version, Commit)
}
