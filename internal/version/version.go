// Package version exposes build version information.
package version

// Version is the application version, overridable at build time via
// -ldflags "-X github.com/ahlt-platform/ahlt/internal/version.Version=...".
var Version = "0.3.0"
