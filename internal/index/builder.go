// Package index builds index generations from a corpus.
//
// The Builder streams the corpus walk through a bounded pool of analyzer
// workers and funnels the analyzed documents into a single store writer.
package index

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/gobwas/glob"
	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/psearch/internal/analysis"
	pserrors "github.com/Aman-CERP/psearch/internal/errors"
	"github.com/Aman-CERP/psearch/internal/store"
	"github.com/Aman-CERP/psearch/internal/ui"
	"github.com/Aman-CERP/psearch/internal/walker"
)

// Options configures one build.
type Options struct {
	// Root is the corpus root directory (default: current directory).
	Root string

	// IndexPath is the index folder. Required.
	IndexPath string

	// Ignore matchers prune folders; see walker.CompileIgnore.
	Ignore []glob.Glob

	// IgnoreMimeTypes excludes files by mime type (default: walker.DefaultIgnoreMimeTypes).
	IgnoreMimeTypes string

	// MaxFileSize skips larger files. 0 = walker default, < 0 = unlimited.
	MaxFileSize int64

	// Analysis configures the contents analyzer.
	Analysis analysis.Options

	// Workers is the number of analyzer goroutines (default: runtime.NumCPU()).
	Workers int

	// Clean deletes the previous generation before building.
	Clean bool

	// Renderer receives progress events. Optional.
	Renderer ui.Renderer

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Result describes a finished build.
type Result struct {
	Documents  int
	Skipped    int
	Generation string
	Duration   time.Duration
}

// Builder builds index generations. A Builder holds no state between builds.
type Builder struct {
	opts     Options
	analyzer *analysis.Analyzer
	renderer ui.Renderer
	logger   *slog.Logger

	skipped atomic.Int64
}

// NewBuilder validates opts.
func NewBuilder(opts Options) (*Builder, error) {
	if opts.IndexPath == "" {
		return nil, pserrors.IOError("index path is required", nil)
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	renderer := opts.Renderer
	if renderer == nil {
		renderer = ui.Discard()
	}
	return &Builder{
		opts:     opts,
		analyzer: analysis.New(opts.Analysis),
		renderer: renderer,
		logger:   logger,
	}, nil
}

// Build is NewBuilder followed by Run.
func Build(ctx context.Context, opts Options) (*Result, error) {
	b, err := NewBuilder(opts)
	if err != nil {
		return nil, err
	}
	return b.Run(ctx)
}

// Ensure builds the index when it does not exist yet or when opts.Clean is
// set. It reports whether a build ran.
func Ensure(ctx context.Context, opts Options) (bool, *Result, error) {
	if !opts.Clean && store.Exists(opts.IndexPath) {
		return false, nil, nil
	}
	res, err := Build(ctx, opts)
	if err != nil {
		return false, nil, err
	}
	return true, res, nil
}

// Run walks the corpus and writes a new generation. Per-file failures are
// logged and skipped; storage failures abort the build and leave the
// previous generation (if any) untouched.
func (b *Builder) Run(ctx context.Context) (*Result, error) {
	start := time.Now()
	b.skipped.Store(0)

	w, err := walker.New(walker.Options{
		Root:            b.opts.Root,
		Ignore:          b.opts.Ignore,
		IgnoreMimeTypes: b.opts.IgnoreMimeTypes,
		MaxFileSize:     b.opts.MaxFileSize,
		Logger:          b.logger,
	})
	if err != nil {
		return nil, err
	}

	if b.opts.Clean {
		b.logger.Info("index_clean", slog.String("path", b.opts.IndexPath))
		if err := store.Remove(b.opts.IndexPath); err != nil {
			return nil, err
		}
	}

	writer, err := store.NewWriter(ctx, b.opts.IndexPath, store.WriterOptions{
		Root:            w.Root(),
		MaxTokenLength:  b.analyzer.Options().MaxTokenLength,
		CaseInsensitive: b.analyzer.Options().CaseInsensitive,
		Logger:          b.logger,
	})
	if err != nil {
		return nil, err
	}
	defer func() { _ = writer.Close() }()

	b.logger.Info("index_started",
		slog.String("root", w.Root()),
		slog.String("path", b.opts.IndexPath),
		slog.Int("workers", b.opts.Workers))
	b.renderer.UpdateProgress(ui.ProgressEvent{
		Stage:   ui.StageIndexing,
		Message: fmt.Sprintf("Indexing %s...", w.Root()),
	})

	g, gctx := errgroup.WithContext(ctx)
	candidates := w.Walk(gctx)
	docs := make(chan *store.Document, b.opts.Workers)

	var analyzers errgroup.Group
	for i := 0; i < b.opts.Workers; i++ {
		analyzers.Go(func() error {
			return b.analyzeLoop(gctx, candidates, docs)
		})
	}
	g.Go(func() error {
		defer close(docs)
		return analyzers.Wait()
	})
	g.Go(func() error {
		return b.writeLoop(gctx, writer, docs)
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	b.renderer.UpdateProgress(ui.ProgressEvent{
		Stage:   ui.StageCommitting,
		Current: writer.DocCount(),
		Message: "Writing index...",
	})
	meta, err := writer.Commit(ctx)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Documents:  meta.DocCount,
		Skipped:    int(b.skipped.Load()),
		Generation: meta.Generation,
		Duration:   time.Since(start),
	}
	b.renderer.Complete(ui.CompletionStats{
		Files:      res.Documents,
		Skipped:    res.Skipped,
		Duration:   res.Duration,
		Generation: res.Generation,
	})
	b.logger.Info("index_complete",
		slog.Int("files", res.Documents),
		slog.Int("skipped", res.Skipped),
		slog.String("generation", res.Generation),
		slog.Int64("duration_ms", res.Duration.Milliseconds()),
		slog.String("path", b.opts.IndexPath))
	return res, nil
}

// analyzeLoop turns candidates into documents until the walk is exhausted.
func (b *Builder) analyzeLoop(ctx context.Context, candidates <-chan *walker.Candidate, docs chan<- *store.Document) error {
	for c := range candidates {
		doc, err := b.analyze(c)
		if err != nil {
			b.skip(c, err)
			continue
		}
		select {
		case docs <- doc:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return ctx.Err()
}

// writeLoop is the single writer: the store writer is not safe for
// concurrent use.
func (b *Builder) writeLoop(ctx context.Context, writer *store.Writer, docs <-chan *store.Document) error {
	for doc := range docs {
		if err := writer.Add(ctx, doc); err != nil {
			return err
		}
		b.renderer.UpdateProgress(ui.ProgressEvent{
			Stage:       ui.StageIndexing,
			Current:     writer.DocCount(),
			CurrentFile: doc.Filename,
		})
	}
	return nil
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// analyze reads and tokenizes one file.
func (b *Builder) analyze(c *walker.Candidate) (*store.Document, error) {
	rc, err := c.Open()
	if err != nil {
		return nil, pserrors.New(pserrors.ErrCodeFileRead, "cannot open file", err)
	}
	data, err := io.ReadAll(rc)
	_ = rc.Close()
	if err != nil {
		return nil, pserrors.New(pserrors.ErrCodeFileRead, "cannot read file", err)
	}
	data = bytes.TrimPrefix(data, utf8BOM)
	if !utf8.Valid(data) {
		return nil, pserrors.New(pserrors.ErrCodeFileRead, "file is not valid UTF-8", nil)
	}

	doc := &store.Document{
		ID:       uint32(c.Seq),
		Path:     c.Dir,
		Filename: c.Filename,
		Terms:    make(map[string]*roaring.Bitmap),
	}
	for _, tok := range b.analyzer.Tokenize(string(data)) {
		positions, ok := doc.Terms[tok.Term]
		if !ok {
			positions = roaring.New()
			doc.Terms[tok.Term] = positions
		}
		positions.Add(uint32(tok.Position))
		doc.Length++
	}
	return doc, nil
}

func (b *Builder) skip(c *walker.Candidate, err error) {
	b.skipped.Add(1)
	b.logger.Warn("file skipped",
		slog.String("path", c.AbsPath),
		slog.String("error", err.Error()))
	b.renderer.AddError(ui.ErrorEvent{File: c.AbsPath, Err: err, IsWarn: true})
}
