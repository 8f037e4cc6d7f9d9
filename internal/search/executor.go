// Package search executes parsed queries against an index generation.
//
// Evaluation is set algebra over roaring bitmaps of document ids: AND
// intersects, OR unions and NOT subtracts from the generation's universe.
// Every matched leaf term adds sqrt(tf) * idf to a document's score.
package search

import (
	"context"
	"log/slog"
	"path/filepath"
	"sort"
	"time"

	"github.com/Aman-CERP/psearch/internal/analysis"
	pserrors "github.com/Aman-CERP/psearch/internal/errors"
	"github.com/Aman-CERP/psearch/internal/query"
	"github.com/Aman-CERP/psearch/internal/store"
)

// Default result caps.
const (
	DefaultSearchLimit = 256
	DefaultShellLimit  = 16
)

// DefaultMaxExpansions is the number of terms up to which a wildcard is
// scored per term. Wider expansions still match, with a constant score.
const DefaultMaxExpansions = 1024

// Hit is one search result.
type Hit struct {
	ID    uint32
	Score float64
	// Path is the stored parent directory, relative to the root and slash-separated.
	Path     string
	Filename string
	// AbsPath is root + Path + Filename.
	AbsPath string
}

// Result is the outcome of one query.
type Result struct {
	// Hits are ordered by descending score, then ascending document id.
	Hits []Hit
	// Total is the number of matching documents before the limit was applied.
	Total int
}

// Truncated reports whether the limit cut matching documents.
func (r *Result) Truncated() bool {
	return r.Total > len(r.Hits)
}

// Options configures an Executor.
type Options struct {
	// Root is joined with stored paths to build Hit.AbsPath (default: the
	// root recorded in the generation).
	Root string

	// CacheSize is the number of posting lists kept in memory (default: DefaultCacheSize).
	CacheSize int

	// MaxExpansions is the per-term scoring limit for wildcards (default:
	// DefaultMaxExpansions).
	MaxExpansions int

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Executor evaluates queries against one open generation. It is safe for
// concurrent use.
type Executor struct {
	reader        *store.Reader
	analyzer      *analysis.Analyzer
	postings      *postingCache
	root          string
	maxExpansions int
	logger        *slog.Logger
}

// New creates an Executor over reader. Contents values are analyzed with the
// settings the generation was built with.
func New(reader *store.Reader, opts Options) (*Executor, error) {
	meta := reader.Meta()

	root := opts.Root
	if root == "" {
		root = meta.Root
	}
	maxExpansions := opts.MaxExpansions
	if maxExpansions <= 0 {
		maxExpansions = DefaultMaxExpansions
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	cache, err := newPostingCache(reader, opts.CacheSize)
	if err != nil {
		return nil, pserrors.InternalError("failed to create posting cache", err)
	}

	return &Executor{
		reader: reader,
		analyzer: analysis.New(analysis.Options{
			MaxTokenLength:  meta.MaxTokenLength,
			CaseInsensitive: meta.CaseInsensitive,
		}),
		postings:      cache,
		root:          root,
		maxExpansions: maxExpansions,
		logger:        logger,
	}, nil
}

// Reader returns the underlying read session.
func (e *Executor) Reader() *store.Reader {
	return e.reader
}

// Execute evaluates node and returns at most limit hits. limit <= 0 means
// no cap. A query whose every clause analyzes to nothing matches nothing.
func (e *Executor) Execute(ctx context.Context, node query.Node, limit int) (*Result, error) {
	start := time.Now()

	ev := &evaluator{exec: e, ctx: ctx, docCount: e.reader.DocCount()}
	m, err := ev.eval(node)
	if err != nil {
		return nil, err
	}
	if m.vacuous {
		e.logger.Debug("search_vacuous", slog.String("query", node.String()))
		return &Result{}, nil
	}

	ranked := rank(m, limit)
	hits := make([]Hit, 0, len(ranked))
	for _, sd := range ranked {
		doc, err := e.reader.Document(ctx, sd.id)
		if err != nil {
			return nil, err
		}
		hits = append(hits, Hit{
			ID:       sd.id,
			Score:    sd.score,
			Path:     doc.Path,
			Filename: doc.Filename,
			AbsPath:  filepath.Join(e.root, filepath.FromSlash(doc.Path), doc.Filename),
		})
	}

	res := &Result{Hits: hits, Total: int(m.docs.GetCardinality())}
	e.logger.Debug("search_complete",
		slog.String("query", node.String()),
		slog.Int("total", res.Total),
		slog.Int("returned", len(res.Hits)),
		slog.Int64("duration_us", time.Since(start).Microseconds()))
	return res, nil
}

// Search parses input and executes it.
func (e *Executor) Search(ctx context.Context, input string, limit int) (*Result, error) {
	node, err := query.Parse(input)
	if err != nil {
		return nil, err
	}
	return e.Execute(ctx, node, limit)
}

type scoredDoc struct {
	id    uint32
	score float64
}

// rank orders matches by score desc then id asc and cuts at limit.
func rank(m *match, limit int) []scoredDoc {
	docs := make([]scoredDoc, 0, m.docs.GetCardinality())
	it := m.docs.Iterator()
	for it.HasNext() {
		id := it.Next()
		docs = append(docs, scoredDoc{id: id, score: m.scores[id]})
	}
	sort.Slice(docs, func(i, j int) bool {
		if docs[i].score != docs[j].score {
			return docs[i].score > docs[j].score
		}
		return docs[i].id < docs[j].id
	})
	if limit > 0 && len(docs) > limit {
		docs = docs[:limit]
	}
	return docs
}
