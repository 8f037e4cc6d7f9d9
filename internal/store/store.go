package store

import (
	"database/sql"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/RoaringBitmap/roaring/v2"

	pserrors "github.com/Aman-CERP/psearch/internal/errors"
)

const (
	// DatabaseFile is the SQLite file inside an index folder.
	DatabaseFile = "index.db"

	// LockFile is held by a Writer for the lifetime of its session.
	LockFile = "write.lock"

	// SchemaVersion is bumped whenever the table layout changes.
	SchemaVersion = 1
)

// Field names one of the fixed document fields.
type Field string

const (
	// FieldContents is tokenized and searchable; its text is not stored.
	FieldContents Field = "contents"
	// FieldPath is the parent directory relative to the root, stored and exact-match searchable.
	FieldPath Field = "path"
	// FieldFilename is the base name, stored and exact-match searchable.
	FieldFilename Field = "filename"
)

// DefaultField is used by query clauses without an explicit field.
const DefaultField = FieldContents

// Fields lists every field of a document.
var Fields = []Field{FieldContents, FieldPath, FieldFilename}

// ParseField validates a field name.
func ParseField(name string) (Field, error) {
	for _, f := range Fields {
		if string(f) == name {
			return f, nil
		}
	}
	return "", pserrors.InvalidFieldError(name)
}

// Tokenized reports whether the field's postings come from the analyzer
// (true) or from the literal value (false).
func (f Field) Tokenized() bool {
	return f == FieldContents
}

// Document is one file ready to be written.
type Document struct {
	// ID is assigned by the builder and unique within a generation.
	ID uint32
	// Path is the parent directory relative to the root, slash-separated.
	Path string
	// Filename is the base name.
	Filename string
	// Length is the number of analyzed contents tokens.
	Length int
	// Terms maps each contents term to its token positions.
	Terms map[string]*roaring.Bitmap
}

// StoredDocument holds the stored fields of a document.
type StoredDocument struct {
	ID       uint32
	Path     string
	Filename string
	Length   int
}

// Posting is one entry of a posting list.
type Posting struct {
	Doc  uint32
	Freq int
	// Positions is nil for exact-match fields.
	Positions *roaring.Bitmap
}

// Meta describes a generation.
type Meta struct {
	SchemaVersion   int
	Generation      string
	CreatedAt       time.Time
	Root            string
	MaxTokenLength  int
	CaseInsensitive bool
	DocCount        int
}

// DatabasePath returns the database path inside an index folder.
func DatabasePath(dir string) string {
	return filepath.Join(dir, DatabaseFile)
}

// Exists reports whether dir holds a committed generation. The schema left
// behind by an interrupted first build does not count.
func Exists(dir string) bool {
	path := DatabasePath(dir)
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return false
	}

	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=query_only(1)")
	if err != nil {
		return false
	}
	defer func() { _ = db.Close() }()

	var n int
	err = db.QueryRow(`SELECT COUNT(*) FROM meta WHERE key = ?`, metaGeneration).Scan(&n)
	return err == nil && n > 0
}

// Remove deletes an index folder and everything below it, deepest entries
// first. A missing folder is not an error.
func Remove(dir string) error {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, _ fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		paths = append(paths, path)
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return pserrors.IOError("cannot list index folder "+dir, err)
	}

	// reverse lexical order puts children before their parents
	sort.Sort(sort.Reverse(sort.StringSlice(paths)))
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return pserrors.IOError("cannot delete "+p, err)
		}
	}
	return nil
}
