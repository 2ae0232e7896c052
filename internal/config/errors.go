// SPDX-License-Identifier: MIT

package config

import "errors"

var (
	// ErrInvalid classifies configuration that failed validation.
	ErrInvalid = errors.New("invalid configuration")

	// ErrUnknownConfigField classifies strict YAML parse failures caused by unknown keys.
	// Use errors.Is(err, ErrUnknownConfigField) instead of string matching.
	ErrUnknownConfigField = errors.New("unknown config field")
)
