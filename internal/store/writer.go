package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	pserrors "github.com/Aman-CERP/psearch/internal/errors"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)
)

// WriterOptions describes the generation being written.
type WriterOptions struct {
	Root            string
	MaxTokenLength  int
	CaseInsensitive bool
	Logger          *slog.Logger
}

// Writer fills one generation. All documents are added inside a single
// transaction that becomes visible on Commit. A Writer is not safe for
// concurrent use; callers funnel documents through one goroutine.
type Writer struct {
	dir    string
	db     *sql.DB
	tx     *sql.Tx
	lock   *flock.Flock
	opts   WriterOptions
	logger *slog.Logger

	insertDoc     *sql.Stmt
	insertPosting *sql.Stmt

	docCount  int
	committed bool
	closed    bool
}

// NewWriter opens a writer session on dir, creating the folder when needed.
// The previous generation (if any) stays readable until Commit replaces it.
// Fails with ERR_207_INDEX_LOCKED when another writer holds the folder.
func NewWriter(ctx context.Context, dir string, opts WriterOptions) (*Writer, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, pserrors.IOError(fmt.Sprintf("failed to create index folder %s", dir), err)
	}

	lock := flock.New(filepath.Join(dir, LockFile))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, pserrors.IOError("failed to acquire index lock", err)
	}
	if !locked {
		return nil, pserrors.New(pserrors.ErrCodeIndexLocked,
			fmt.Sprintf("index %s is being written by another process", dir), nil)
	}

	w := &Writer{dir: dir, lock: lock, opts: opts, logger: logger}
	if err := w.open(ctx); err != nil {
		_ = w.Close()
		return nil, err
	}
	return w, nil
}

func (w *Writer) open(ctx context.Context) error {
	db, err := sql.Open("sqlite", DatabasePath(w.dir))
	if err != nil {
		return pserrors.IOError("failed to open index database", err)
	}
	w.db = db

	// Single writer to prevent lock contention
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return pserrors.IOError("failed to set pragma", err)
		}
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return pserrors.IOError("failed to initialize schema", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return pserrors.IOError("failed to begin transaction", err)
	}
	w.tx = tx

	// a session always writes a whole generation
	for _, table := range []string{"postings", "docs", "meta"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return pserrors.IOError("failed to reset "+table, err)
		}
	}

	w.insertDoc, err = tx.PrepareContext(ctx,
		`INSERT INTO docs(id, path, filename, length) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return pserrors.IOError("failed to prepare document statement", err)
	}
	w.insertPosting, err = tx.PrepareContext(ctx,
		`INSERT INTO postings(field, term, doc, freq, positions) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return pserrors.IOError("failed to prepare posting statement", err)
	}
	return nil
}

// Add writes a document with its stored fields and postings.
func (w *Writer) Add(ctx context.Context, doc *Document) error {
	if w.closed {
		return pserrors.IOError("index writer is closed", nil)
	}

	if _, err := w.insertDoc.ExecContext(ctx, doc.ID, doc.Path, doc.Filename, doc.Length); err != nil {
		return pserrors.IOError(fmt.Sprintf("failed to add document %s/%s", doc.Path, doc.Filename), err)
	}

	// exact fields: the literal value is the only term
	for _, exact := range []struct {
		field Field
		value string
	}{{FieldPath, doc.Path}, {FieldFilename, doc.Filename}} {
		if _, err := w.insertPosting.ExecContext(ctx, string(exact.field), exact.value, doc.ID, 1, nil); err != nil {
			return pserrors.IOError("failed to add posting", err)
		}
	}

	// sorted for stable insert order into the clustered table
	terms := make([]string, 0, len(doc.Terms))
	for term := range doc.Terms {
		terms = append(terms, term)
	}
	sort.Strings(terms)

	for _, term := range terms {
		positions := doc.Terms[term]
		if positions == nil || positions.IsEmpty() {
			continue
		}
		blob, err := encodePositions(positions)
		if err != nil {
			return pserrors.IOError("failed to encode positions", err)
		}
		freq := int64(positions.GetCardinality())
		if _, err := w.insertPosting.ExecContext(ctx,
			string(FieldContents), term, doc.ID, freq, blob); err != nil {
			return pserrors.IOError("failed to add posting", err)
		}
	}

	w.docCount++
	return nil
}

// DocCount returns the number of documents added so far.
func (w *Writer) DocCount() int {
	return w.docCount
}

// Commit records the generation metadata and makes the generation visible.
// The writer is closed afterwards.
func (w *Writer) Commit(ctx context.Context) (Meta, error) {
	if w.closed {
		return Meta{}, pserrors.IOError("index writer is closed", nil)
	}

	meta := Meta{
		SchemaVersion:   SchemaVersion,
		Generation:      uuid.NewString(),
		CreatedAt:       time.Now(),
		Root:            w.opts.Root,
		MaxTokenLength:  w.opts.MaxTokenLength,
		CaseInsensitive: w.opts.CaseInsensitive,
		DocCount:        w.docCount,
	}
	if err := writeMeta(ctx, w.tx, meta); err != nil {
		_ = w.Close()
		return Meta{}, pserrors.IOError("failed to write generation metadata", err)
	}
	if err := w.tx.Commit(); err != nil {
		_ = w.Close()
		return Meta{}, pserrors.IOError("failed to commit index", err)
	}
	w.committed = true

	// fold the WAL back into the database file
	if _, err := w.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		w.logger.Warn("index checkpoint failed", slog.String("error", err.Error()))
	}

	w.logger.Info("index committed",
		slog.String("path", w.dir),
		slog.String("generation", meta.Generation),
		slog.Int("documents", meta.DocCount))

	return meta, w.Close()
}

// Close ends the session. Uncommitted documents are rolled back. Close is
// idempotent and always releases the folder lock.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if w.insertDoc != nil {
		keep(w.insertDoc.Close())
	}
	if w.insertPosting != nil {
		keep(w.insertPosting.Close())
	}
	if w.tx != nil && !w.committed {
		_ = w.tx.Rollback()
	}
	if w.db != nil {
		keep(w.db.Close())
	}
	keep(w.lock.Unlock())

	if firstErr != nil {
		return pserrors.IOError("failed to close index writer", firstErr)
	}
	return nil
}
