package walker

import (
	"mime"
	"path/filepath"
	"strings"
)

// FallbackMimeType is used when the type of a file cannot be determined.
const FallbackMimeType = "text/plain"

// ProbeMimeType guesses a file's mime type from its extension, without parameters.
func ProbeMimeType(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == "" {
		return FallbackMimeType
	}
	t := mime.TypeByExtension(ext)
	if t == "" {
		return FallbackMimeType
	}
	mediaType, _, err := mime.ParseMediaType(t)
	if err != nil {
		return FallbackMimeType
	}
	return mediaType
}
