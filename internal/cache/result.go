// SPDX-License-Identifier: MIT

package cache

// Result distinguishes a key that was never attempted from one that was
// attempted and failed.
type Result int

const (
	// Unknown means nothing is recorded for the key.
	Unknown Result = iota
	// KnownFailure means an attempt was recorded and produced nothing usable.
	KnownFailure
	// KnownSuccess means an attempt was recorded and produced a value.
	KnownSuccess
)

func (r Result) String() string {
	switch r {
	case KnownFailure:
		return "failure"
	case KnownSuccess:
		return "success"
	default:
		return "unknown"
	}
}
