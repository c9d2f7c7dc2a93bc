// Package version exposes the build version string.
package version

// Version is the service version, overridable at build time with
// -ldflags "-X github.com/qulab/qulab/internal/version.Version=...".
var Version = "0.1.0-dev"
