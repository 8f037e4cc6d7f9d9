package errors

import (
	"errors"
	"fmt"
)

// PSError is the structured error type for psearch.
// It provides context for logging, exit status selection and user presentation.
type PSError struct {
	// Code is the unique error code (e.g., "ERR_401_QUERY_SYNTAX").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, IO, Validation, Internal).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Suggestion is an actionable suggestion for the user.
	Suggestion string
}

// Error implements the error interface.
func (e *PSError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *PSError) Unwrap() error {
	return e.Cause
}

// Is matches by code, so errors.Is(err, &PSError{Code: ErrCodeQuerySyntax}) works.
func (e *PSError) Is(target error) bool {
	if t, ok := target.(*PSError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
func (e *PSError) WithDetail(key, value string) *PSError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
func (e *PSError) WithSuggestion(suggestion string) *PSError {
	e.Suggestion = suggestion
	return e
}

// New creates a new PSError with the given code and message.
// Category and severity are derived from the code.
func New(code string, message string, cause error) *PSError {
	return &PSError{
		Code:     code,
		Message:  message,
		Category: categoryFromCode(code),
		Severity: severityFromCode(code),
		Cause:    cause,
	}
}

// wrap creates a PSError from an existing error.
func wrap(code string, err error) *PSError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *PSError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// IOError creates a filesystem or index storage error.
func IOError(message string, cause error) *PSError {
	return New(ErrCodeIO, message, cause)
}

// IndexReadError creates an error for failures while reading a built index.
func IndexReadError(message string, cause error) *PSError {
	return New(ErrCodeIndexRead, message, cause)
}

// IndexMissingError reports that no index generation exists at path.
func IndexMissingError(path string) *PSError {
	return New(ErrCodeIndexMissing, fmt.Sprintf("no index found at %s", path), nil).
		WithDetail("path", path).
		WithSuggestion("run 'psearch index' first")
}

// QuerySyntaxError creates a malformed-query error at the given byte offset.
func QuerySyntaxError(pos int, message string, cause error) *PSError {
	return New(ErrCodeQuerySyntax, fmt.Sprintf("%s at position %d", message, pos), cause).
		WithDetail("position", fmt.Sprint(pos))
}

// InvalidFieldError reports a field outside the fixed field set.
func InvalidFieldError(field string) *PSError {
	return New(ErrCodeInvalidField, fmt.Sprintf("unknown field %q", field), nil).
		WithDetail("field", field).
		WithSuggestion("use one of: contents, path, filename")
}

// UnknownPresetError reports a preset name that no provider defines.
func UnknownPresetError(name string) *PSError {
	return New(ErrCodeUnknownPreset, fmt.Sprintf("Unknown preset: %s", name), nil).
		WithDetail("preset", name).
		WithSuggestion("run 'psearch presets' to list the available presets")
}

// InvalidPatternError reports a regular expression or glob that does not compile.
func InvalidPatternError(pattern string, cause error) *PSError {
	return New(ErrCodeInvalidPattern, fmt.Sprintf("invalid pattern %q", pattern), cause).
		WithDetail("pattern", pattern)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *PSError {
	return New(ErrCodeInternal, message, cause)
}

// IsFatal checks if an error has fatal severity.
func IsFatal(err error) bool {
	var pe *PSError
	if errors.As(err, &pe) {
		return pe.Severity == SeverityFatal
	}
	return false
}

// HasCode reports whether err or any error it wraps is a PSError with code.
func HasCode(err error, code string) bool {
	var pe *PSError
	for err != nil {
		if !errors.As(err, &pe) {
			return false
		}
		if pe.Code == code {
			return true
		}
		err = pe.Cause
	}
	return false
}

// GetCategory extracts the category from the first PSError in the chain.
func GetCategory(err error) Category {
	var pe *PSError
	if errors.As(err, &pe) {
		return pe.Category
	}
	return ""
}
