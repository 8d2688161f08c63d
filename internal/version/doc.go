// Package version exposes build metadata for the project.
//
// Variables Version, Commit, and BuildTime are injected at build time via
// Go ldflags. Get falls back to the module build info for local builds.
// Short and Full render the version string for CLI output and logs.
package version
