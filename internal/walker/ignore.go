package walker

import (
	"strings"

	"github.com/gobwas/glob"

	pserrors "github.com/Aman-CERP/psearch/internal/errors"
)

// DefaultIgnoreFolders are pruned unless configured otherwise.
var DefaultIgnoreFolders = []string{
	".git", ".m2", ".metadata", ".settings", ".yarn",
	"build", "generated", "node_modules", "target",
}

// SplitList splits a comma-separated list, trimming blanks and dropping empty items.
func SplitList(csv string) []string {
	var items []string
	for _, item := range strings.Split(csv, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

// CompileIgnore compiles one "**/<name>" matcher per folder name. The index
// folder is always included so an index never indexes itself.
func CompileIgnore(indexFolder string, folders []string) ([]glob.Glob, error) {
	names := make([]string, 0, len(folders)+1)
	if indexFolder != "" {
		names = append(names, indexFolder)
	}
	names = append(names, folders...)

	matchers := make([]glob.Glob, 0, len(names))
	for _, name := range names {
		pattern := "**/" + strings.Trim(name, "/")
		m, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, pserrors.InvalidPatternError(pattern, err)
		}
		matchers = append(matchers, m)
	}
	return matchers, nil
}
