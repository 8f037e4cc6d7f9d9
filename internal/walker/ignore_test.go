package walker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileIgnore_MatchesNameAtAnyDepth(t *testing.T) {
	matchers, err := CompileIgnore(".psindex", []string{"build", "node_modules"})
	require.NoError(t, err)
	require.Len(t, matchers, 3)

	matches := func(path string) bool {
		for _, m := range matchers {
			if m.Match(path) {
				return true
			}
		}
		return false
	}

	assert.True(t, matches("/home/me/project/.psindex"))
	assert.True(t, matches("/home/me/project/build"))
	assert.True(t, matches("/home/me/project/web/node_modules"))
	assert.False(t, matches("/home/me/project/rebuild"))
	assert.False(t, matches("/home/me/project/build.gradle.d"))
	assert.False(t, matches("/home/me/project/src"))
}

func TestSplitList(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"a", []string{"a"}},
		{" a , b,,c ", []string{"a", "b", "c"}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SplitList(tt.in))
	}
}

func TestProbeMimeType(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"notes.txt", "text/plain"},
		{"logo.png", "image/png"},
		{"photo.JPG", "image/jpeg"},
		{"Makefile", FallbackMimeType},
		{"archive.unknownext", FallbackMimeType},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, ProbeMimeType(tt.path))
		})
	}
}
