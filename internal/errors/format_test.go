package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatForCLI(t *testing.T) {
	t.Run("structured error includes hint and code", func(t *testing.T) {
		out := FormatForCLI(UnknownPresetError("missing"))

		assert.Contains(t, out, "Error: Unknown preset: missing")
		assert.Contains(t, out, "Hint: run 'psearch presets'")
		assert.Contains(t, out, "Code: ERR_403_UNKNOWN_PRESET")
	})

	t.Run("plain error is wrapped as internal", func(t *testing.T) {
		out := FormatForCLI(errors.New("boom"))

		assert.Contains(t, out, "Error: boom")
		assert.Contains(t, out, "Code: ERR_501_INTERNAL")
	})

	t.Run("nil", func(t *testing.T) {
		assert.Empty(t, FormatForCLI(nil))
	})
}

func TestLogAttrs(t *testing.T) {
	attrs := LogAttrs(InvalidFieldError("author"))

	require.GreaterOrEqual(t, len(attrs), 6)
	assert.Equal(t, "error_code", attrs[0])
	assert.Equal(t, ErrCodeInvalidField, attrs[1])
	assert.Contains(t, attrs, "detail_field")

	assert.Equal(t, []any{"error", "plain"}, LogAttrs(errors.New("plain")))
	assert.Nil(t, LogAttrs(nil))
}
