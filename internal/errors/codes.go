// Package errors provides structured error handling for psearch.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: IO errors (file, disk, index storage)
//   - 4XX: Validation errors (queries, fields, presets, patterns)
//   - 5XX: Internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryIO indicates file, disk and index storage errors.
	CategoryIO Category = "IO"
	// CategoryValidation indicates input validation errors.
	CategoryValidation Category = "VALIDATION"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates unrecoverable error, must abort.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates the operation failed; an interactive caller may continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "ERR_102_CONFIG_INVALID"

	// IO errors (200-299)
	ErrCodeIO           = "ERR_201_IO"
	ErrCodeFileRead     = "ERR_202_FILE_READ"
	ErrCodeIndexRead    = "ERR_205_INDEX_READ"
	ErrCodeIndexMissing = "ERR_206_INDEX_MISSING"
	ErrCodeIndexLocked  = "ERR_207_INDEX_LOCKED"

	// Validation errors (400-499)
	ErrCodeQuerySyntax    = "ERR_401_QUERY_SYNTAX"
	ErrCodeInvalidField   = "ERR_402_INVALID_FIELD"
	ErrCodeUnknownPreset  = "ERR_403_UNKNOWN_PRESET"
	ErrCodeInvalidPattern = "ERR_404_INVALID_PATTERN"

	// Internal errors (500-599)
	ErrCodeInternal = "ERR_501_INTERNAL"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	// "101" from "ERR_101_CONFIG_NOT_FOUND"
	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryIO
	case '4':
		return CategoryValidation
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeIO, ErrCodeIndexRead, ErrCodeIndexMissing, ErrCodeIndexLocked,
		ErrCodeInvalidField, ErrCodeUnknownPreset, ErrCodeConfigInvalid:
		return SeverityFatal
	case ErrCodeFileRead:
		// per-file read failures never abort an index build
		return SeverityWarning
	}
	return SeverityError
}
