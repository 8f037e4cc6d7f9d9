package ui

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultStyles_HeaderRendersText(t *testing.T) {
	// Given: default styles
	styles := DefaultStyles()

	// When: rendering header text
	rendered := styles.Header.Render("Test")

	// Then: header contains the text
	assert.Contains(t, rendered, "Test")
}

func TestGetStyles_WithNoColor(t *testing.T) {
	// When: getting styles with noColor=true
	styles := GetStyles(true)

	// Then: returns no-color styles (plain rendering)
	assert.Equal(t, "test", styles.Success.Render("test"))
	assert.Equal(t, "test", styles.Warning.Render("test"))
}

func TestGetStyles_WithColor(t *testing.T) {
	styles := GetStyles(false)
	assert.Contains(t, styles.Success.Render("test"), "test")
}
