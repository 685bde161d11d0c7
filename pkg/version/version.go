// Package version carries build metadata set with -ldflags.
package version

import (
	"fmt"
	"log/slog"
	"runtime"
)

var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// String describes the build for `stm-ai version`.
func String() string {
	return fmt.Sprintf("stm-ai version %s (commit: %s, built: %s, go: %s)",
		Version, GitCommit, BuildTime, runtime.Version())
}

// Attr groups the build metadata for startup logs.
func Attr() slog.Attr {
	return slog.Group("build",
		slog.String("version", Version),
		slog.String("commit", GitCommit),
		slog.String("built", BuildTime))
}
