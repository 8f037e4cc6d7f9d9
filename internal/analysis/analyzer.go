// Package analysis turns raw text into searchable terms.
//
// The pipeline is bleve's Unicode word segmentation followed by a length
// filter and a stop filter. Terms keep their original case: "Fox" and "fox"
// are different terms.
package analysis

import (
	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/token/length"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/token/stop"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"
)

// DefaultMaxTokenLength is the longest token (in characters) kept in the index.
const DefaultMaxTokenLength = 255

// EnglishStopWords is the built-in stop word set. Matching is case-sensitive,
// so "The" survives while "the" is dropped.
var EnglishStopWords = []string{
	"a", "an", "and", "are", "as", "at", "be", "but", "by",
	"for", "if", "in", "into", "is", "it",
	"no", "not", "of", "on", "or", "such",
	"that", "the", "their", "then", "there", "these",
	"they", "this", "to", "was", "will", "with",
}

// Token is one analyzed term and its position in the token stream.
// Positions are 1-based and keep the gaps left by removed stop words.
type Token struct {
	Term     string
	Position int
}

// Options configures an Analyzer.
type Options struct {
	// MaxTokenLength drops (not truncates) longer tokens. <= 0 means DefaultMaxTokenLength.
	MaxTokenLength int
	// StopWords replaces the built-in set when non-nil. An empty slice disables stop filtering.
	StopWords []string
	// CaseInsensitive lowercases every term before stop filtering. Off by default.
	CaseInsensitive bool
}

// DefaultOptions returns the options used for indexing unless configured otherwise.
func DefaultOptions() Options {
	return Options{MaxTokenLength: DefaultMaxTokenLength}
}

// Analyzer is safe for concurrent use: the bleve tokenizer and filters hold no
// per-call state.
type Analyzer struct {
	opts      Options
	tokenizer analysis.Tokenizer
	filters   []analysis.TokenFilter
}

// New creates an Analyzer from opts.
func New(opts Options) *Analyzer {
	if opts.MaxTokenLength <= 0 {
		opts.MaxTokenLength = DefaultMaxTokenLength
	}
	words := opts.StopWords
	if words == nil {
		words = EnglishStopWords
	}

	filters := []analysis.TokenFilter{
		length.NewLengthFilter(1, opts.MaxTokenLength),
	}
	if opts.CaseInsensitive {
		filters = append(filters, lowercase.NewLowerCaseFilter())
	}
	if len(words) > 0 {
		stopTokens := analysis.NewTokenMap()
		for _, w := range words {
			stopTokens.AddToken(w)
		}
		filters = append(filters, stop.NewStopTokensFilter(stopTokens))
	}

	return &Analyzer{
		opts:      opts,
		tokenizer: unicode.NewUnicodeTokenizer(),
		filters:   filters,
	}
}

// Options returns the effective options.
func (a *Analyzer) Options() Options {
	return a.opts
}

// Tokenize analyzes text into tokens.
func (a *Analyzer) Tokenize(text string) []Token {
	if text == "" {
		return nil
	}
	stream := a.tokenizer.Tokenize([]byte(text))
	for _, f := range a.filters {
		stream = f.Filter(stream)
	}

	tokens := make([]Token, 0, len(stream))
	for _, t := range stream {
		tokens = append(tokens, Token{Term: string(t.Term), Position: t.Position})
	}
	return tokens
}

// Terms is Tokenize without positions.
func (a *Analyzer) Terms(text string) []string {
	tokens := a.Tokenize(text)
	terms := make([]string, len(tokens))
	for i, t := range tokens {
		terms[i] = t.Term
	}
	return terms
}
