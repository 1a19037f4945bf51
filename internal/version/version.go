// Package version exposes the propdex build metadata stamped at build time
// via -ldflags.
package version

// Stamped by the release build; the zero values identify a local dev build.
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)
