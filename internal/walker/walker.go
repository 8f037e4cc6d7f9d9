// Package walker discovers the files of a corpus.
//
// A Walker traverses the root directory depth-first, prunes ignored folders
// once per directory, probes each regular file's mime type and streams the
// accepted files as Candidates. Unreadable entries are logged and skipped;
// the walk itself never aborts on them.
package walker

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"

	"github.com/gobwas/glob"

	pserrors "github.com/Aman-CERP/psearch/internal/errors"
)

// DefaultIgnoreMimeTypes excludes audio, image and video files.
const DefaultIgnoreMimeTypes = "(audio/.+)|(image/.+)|(video/.+)"

// DefaultMaxFileSize is the default maximum file size (10MB).
const DefaultMaxFileSize = 10 * 1024 * 1024

// Candidate is a file accepted for indexing.
type Candidate struct {
	// Seq is the position of the file in walk order, starting at 0.
	Seq int
	// AbsPath is the absolute filesystem path.
	AbsPath string
	// Dir is the parent directory relative to the root, slash-separated; "" for the root itself.
	Dir string
	// Filename is the base name.
	Filename string
	// MimeType is the probed mime type without parameters.
	MimeType string
	// Size in bytes.
	Size int64
}

// Open opens the candidate's contents for reading.
func (c *Candidate) Open() (io.ReadCloser, error) {
	return os.Open(c.AbsPath)
}

// Options configures a Walker.
type Options struct {
	// Root is the corpus root directory (default: current directory).
	Root string

	// Ignore matchers; a directory whose absolute path matches any of them is pruned.
	Ignore []glob.Glob

	// IgnoreMimeTypes is a regular expression matched against the whole mime type.
	// Empty means DefaultIgnoreMimeTypes.
	IgnoreMimeTypes string

	// MaxFileSize skips larger files. 0 = DefaultMaxFileSize, < 0 = unlimited.
	MaxFileSize int64

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Walker streams the candidates of one corpus. A Walker may be reused; each
// call to Walk is an independent traversal.
type Walker struct {
	root        string
	ignore      []glob.Glob
	mimeExclude *regexp.Regexp
	maxFileSize int64
	logger      *slog.Logger
}

// New validates opts and creates a Walker.
func New(opts Options) (*Walker, error) {
	root := opts.Root
	if root == "" {
		root = "."
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, pserrors.IOError("failed to get absolute path", err)
	}

	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, pserrors.IOError(fmt.Sprintf("failed to stat root directory %s", absRoot), err)
	}
	if !info.IsDir() {
		return nil, pserrors.IOError(fmt.Sprintf("root path is not a directory: %s", absRoot), nil)
	}

	pattern := opts.IgnoreMimeTypes
	if pattern == "" {
		pattern = DefaultIgnoreMimeTypes
	}
	// anchored: the whole mime type must match
	mimeExclude, err := regexp.Compile("^(?:" + pattern + ")$")
	if err != nil {
		return nil, pserrors.InvalidPatternError(pattern, err)
	}

	maxFileSize := opts.MaxFileSize
	if maxFileSize == 0 {
		maxFileSize = DefaultMaxFileSize
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Walker{
		root:        absRoot,
		ignore:      opts.Ignore,
		mimeExclude: mimeExclude,
		maxFileSize: maxFileSize,
		logger:      logger,
	}, nil
}

// Root returns the absolute corpus root.
func (w *Walker) Root() string {
	return w.root
}

// Walk starts a traversal and returns the channel of accepted candidates.
// The channel is closed when the traversal completes. Cancelling ctx only
// stops the producer when the consumer abandons the channel.
func (w *Walker) Walk(ctx context.Context) <-chan *Candidate {
	out := make(chan *Candidate, 64)
	go func() {
		defer close(out)
		seq := 0
		w.walkDir(ctx, w.root, &seq, out)
	}()
	return out
}

// walkDir visits dir's entries in name order, recursing into subdirectories.
// It returns false once ctx is done.
func (w *Walker) walkDir(ctx context.Context, dir string, seq *int, out chan<- *Candidate) bool {
	entries, err := os.ReadDir(dir)
	if err != nil {
		w.logger.Warn("cannot read folder", slog.String("path", dir), slog.String("error", err.Error()))
		// ReadDir returns the entries read before the error
		if len(entries) == 0 {
			return true
		}
	}

	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())

		switch {
		case entry.IsDir():
			if w.ignored(path) {
				w.logger.Debug("ignoring folder", slog.String("path", path))
				continue
			}
			w.logger.Debug("visiting folder", slog.String("path", path))
			if !w.walkDir(ctx, path, seq, out) {
				return false
			}

		case entry.Type()&fs.ModeSymlink != 0:
			w.logger.Debug("skipping symlink", slog.String("path", path))

		case entry.Type().IsRegular():
			c, ok := w.accept(dir, path, entry)
			if !ok {
				continue
			}
			c.Seq = *seq
			*seq++
			select {
			case out <- c:
			case <-ctx.Done():
				return false
			}
		}
	}
	return true
}

// accept probes a regular file and decides whether it is indexed.
func (w *Walker) accept(dir, path string, entry fs.DirEntry) (*Candidate, bool) {
	info, err := entry.Info()
	if err != nil {
		// disappeared between ReadDir and Info
		w.logger.Warn("cannot stat file", slog.String("path", path), slog.String("error", err.Error()))
		return nil, false
	}
	if w.maxFileSize > 0 && info.Size() > w.maxFileSize {
		w.logger.Debug("skipping large file", slog.String("path", path), slog.Int64("size", info.Size()))
		return nil, false
	}

	mimeType := ProbeMimeType(path)
	if w.mimeExclude.MatchString(mimeType) {
		w.logger.Debug("skipping file because of mime type",
			slog.String("path", path), slog.String("mime_type", mimeType))
		return nil, false
	}

	rel, err := filepath.Rel(w.root, dir)
	if err != nil {
		return nil, false
	}
	if rel == "." {
		rel = ""
	}

	return &Candidate{
		AbsPath:  path,
		Dir:      filepath.ToSlash(rel),
		Filename: entry.Name(),
		MimeType: mimeType,
		Size:     info.Size(),
	}, true
}

func (w *Walker) ignored(path string) bool {
	slashed := filepath.ToSlash(path)
	for _, m := range w.ignore {
		if m.Match(slashed) {
			return true
		}
	}
	return false
}
