package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPresetsCmd_ListsMergedTable(t *testing.T) {
	// Given: a configured preset overriding a built-in one
	root := newProject(t)
	writeFile(t, root, ".psearch.yaml", "presets:\n  todo: HACK\n  greek: gamma\n")

	// When: listing presets
	res := runCLI(t, "", "--root", root, "presets")

	// Then: names carry their source and query
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "Presets:")
	assert.Contains(t, res.stdout, "preset:todo  [config]")
	assert.Contains(t, res.stdout, "      HACK")
	assert.Contains(t, res.stdout, "preset:greek  [config]")
	assert.Contains(t, res.stdout, "preset:credentials  [default]")
	assert.NotContains(t, res.stdout, "preset:test ")
}
