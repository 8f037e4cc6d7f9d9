package errors

import (
	"errors"
	"fmt"
	"strings"
)

// FormatForCLI formats an error for terminal display: message, hint and code.
func FormatForCLI(err error) string {
	if err == nil {
		return ""
	}

	var pe *PSError
	if !errors.As(err, &pe) {
		pe = wrap(ErrCodeInternal, err)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Error: %s\n", pe.Message))
	if pe.Suggestion != "" {
		sb.WriteString(fmt.Sprintf("  Hint: %s\n", pe.Suggestion))
	}
	sb.WriteString(fmt.Sprintf("  Code: %s\n", pe.Code))
	return sb.String()
}

// LogAttrs formats an error as alternating slog key/value pairs.
func LogAttrs(err error) []any {
	if err == nil {
		return nil
	}

	var pe *PSError
	if !errors.As(err, &pe) {
		return []any{"error", err.Error()}
	}

	attrs := []any{
		"error_code", pe.Code,
		"error", pe.Message,
		"category", string(pe.Category),
	}
	if pe.Cause != nil {
		attrs = append(attrs, "cause", pe.Cause.Error())
	}
	for k, v := range pe.Details {
		attrs = append(attrs, "detail_"+k, v)
	}
	return attrs
}
