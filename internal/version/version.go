// SPDX-License-Identifier: MIT

// Package version holds build metadata stamped in via -ldflags.
package version

var (
	// Version is the release tag of the binary.
	Version = "dev"

	// Commit is the git short hash of the build.
	Commit = "unknown"

	// Date is the build timestamp.
	Date = "unknown"
)

// String renders the metadata as a single line for -version output.
func String() string {
	return Version + " (" + Commit + ", " + Date + ")"
}
