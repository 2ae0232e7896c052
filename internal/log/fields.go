// SPDX-License-Identifier: MIT

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldService = "service"
	FieldVersion = "version"
	FieldRunID   = "run_id"

	// Process / pipeline fields
	FieldEvent     = "event"
	FieldComponent = "component"

	// Domain fields
	FieldProvider   = "provider"
	FieldDefinition = "definition"
	FieldURL        = "url"
	FieldState      = "state"
	FieldOutcome    = "outcome"
	FieldChannels   = "channels"
	FieldDepth      = "depth"

	// Path fields
	FieldPath       = "path"
	FieldCacheDir   = "cache_dir"
	FieldOutput     = "output_path"
	FieldCatalog    = "catalog"
	FieldDurationMS = "duration_ms"
)
