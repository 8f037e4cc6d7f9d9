package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"

	pserrors "github.com/Aman-CERP/psearch/internal/errors"
)

// Reader is a read session over a committed generation. It is safe for
// concurrent use by any number of queries.
type Reader struct {
	dir      string
	db       *sql.DB
	meta     Meta
	universe *roaring.Bitmap

	mu     sync.RWMutex
	closed bool
}

// Open opens the generation stored in dir for reading.
func Open(ctx context.Context, dir string) (*Reader, error) {
	if !Exists(dir) {
		return nil, pserrors.IndexMissingError(dir)
	}

	dsn := DatabasePath(dir) + "?_pragma=busy_timeout(5000)&_pragma=query_only(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, pserrors.IndexReadError("failed to open index database", err)
	}
	db.SetMaxOpenConns(4)

	meta, err := readMeta(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, pserrors.IndexReadError(fmt.Sprintf("index at %s is unusable", dir), err).
			WithSuggestion("rebuild it with 'psearch index --clean'")
	}

	universe, err := loadUniverse(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, pserrors.IndexReadError("failed to load document ids", err)
	}

	return &Reader{dir: dir, db: db, meta: meta, universe: universe}, nil
}

func loadUniverse(ctx context.Context, db *sql.DB) (*roaring.Bitmap, error) {
	rows, err := db.QueryContext(ctx, `SELECT id FROM docs`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	bm := roaring.New()
	for rows.Next() {
		var id uint32
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		bm.Add(id)
	}
	return bm, rows.Err()
}

// Dir returns the index folder.
func (r *Reader) Dir() string {
	return r.dir
}

// Meta returns the generation metadata.
func (r *Reader) Meta() Meta {
	return r.meta
}

// DocCount returns the number of documents in the generation.
func (r *Reader) DocCount() int {
	return int(r.universe.GetCardinality())
}

// All returns a copy of the set of every document id.
func (r *Reader) All() *roaring.Bitmap {
	return r.universe.Clone()
}

func (r *Reader) checkOpen() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return pserrors.IndexReadError("index reader is closed", nil)
	}
	return nil
}

// Postings returns the posting list of (field, term) ordered by document id.
// An unknown term yields an empty list.
func (r *Reader) Postings(ctx context.Context, field Field, term string) ([]Posting, error) {
	if err := r.checkOpen(); err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT doc, freq, positions FROM postings WHERE field = ? AND term = ? ORDER BY doc`,
		string(field), term)
	if err != nil {
		return nil, pserrors.IndexReadError("failed to query postings", err)
	}
	defer rows.Close()

	var postings []Posting
	for rows.Next() {
		var (
			p    Posting
			blob []byte
		)
		if err := rows.Scan(&p.Doc, &p.Freq, &blob); err != nil {
			return nil, pserrors.IndexReadError("failed to scan posting", err)
		}
		if p.Positions, err = decodePositions(blob); err != nil {
			return nil, pserrors.IndexReadError(fmt.Sprintf("corrupt positions for %s:%s", field, term), err)
		}
		postings = append(postings, p)
	}
	if err := rows.Err(); err != nil {
		return nil, pserrors.IndexReadError("failed to read postings", err)
	}
	return postings, nil
}

// Terms returns the distinct terms of field starting with prefix, in byte order.
func (r *Reader) Terms(ctx context.Context, field Field, prefix string) ([]string, error) {
	if err := r.checkOpen(); err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT term FROM postings WHERE field = ? AND term GLOB ? ORDER BY term`,
		string(field), escapeGlob(prefix)+"*")
	if err != nil {
		return nil, pserrors.IndexReadError("failed to expand terms", err)
	}
	defer rows.Close()

	var terms []string
	for rows.Next() {
		var term string
		if err := rows.Scan(&term); err != nil {
			return nil, pserrors.IndexReadError("failed to scan term", err)
		}
		terms = append(terms, term)
	}
	if err := rows.Err(); err != nil {
		return nil, pserrors.IndexReadError("failed to read terms", err)
	}
	return terms, nil
}

// escapeGlob quotes the SQLite GLOB metacharacters of s.
func escapeGlob(s string) string {
	var sb strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[':
			sb.WriteByte('[')
			sb.WriteRune(r)
			sb.WriteByte(']')
		default:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// Document returns the stored fields of a document.
func (r *Reader) Document(ctx context.Context, id uint32) (StoredDocument, error) {
	if err := r.checkOpen(); err != nil {
		return StoredDocument{}, err
	}

	doc := StoredDocument{ID: id}
	err := r.db.QueryRowContext(ctx,
		`SELECT path, filename, length FROM docs WHERE id = ?`, id).
		Scan(&doc.Path, &doc.Filename, &doc.Length)
	if errors.Is(err, sql.ErrNoRows) {
		return StoredDocument{}, pserrors.IndexReadError(fmt.Sprintf("document %d not found", id), err)
	}
	if err != nil {
		return StoredDocument{}, pserrors.IndexReadError("failed to read document", err)
	}
	return doc, nil
}

// TermCount returns the number of distinct (field, term) pairs.
func (r *Reader) TermCount(ctx context.Context) (int, error) {
	if err := r.checkOpen(); err != nil {
		return 0, err
	}
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM (SELECT DISTINCT field, term FROM postings)`).Scan(&n)
	if err != nil {
		return 0, pserrors.IndexReadError("failed to count terms", err)
	}
	return n, nil
}

// Close ends the read session. Close is idempotent.
func (r *Reader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	if err := r.db.Close(); err != nil {
		return pserrors.IndexReadError("failed to close index", err)
	}
	return nil
}
