// Package shell implements the interactive query loop.
package shell

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync/atomic"

	pserrors "github.com/Aman-CERP/psearch/internal/errors"
	"github.com/Aman-CERP/psearch/internal/output"
	"github.com/Aman-CERP/psearch/internal/search"
)

// Reserved commands.
const (
	CommandHelp = "?help"
	CommandQuit = "?quit"
)

// State is the position of the loop in its lifecycle.
type State int32

const (
	StateWaiting State = iota
	StateExecuting
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateWaiting:
		return "waiting"
	case StateExecuting:
		return "executing"
	case StateStopped:
		return "stopped"
	}
	return "unknown"
}

// Searcher runs one query. *search.Executor implements it.
type Searcher interface {
	Search(ctx context.Context, input string, limit int) (*search.Result, error)
}

// Expander rewrites an input before it is searched, e.g. to resolve presets.
type Expander interface {
	Expand(input string) (string, error)
}

// Options configures a Shell.
type Options struct {
	// Limit caps the hits per query (default: search.DefaultShellLimit).
	Limit int
	// Prompt is printed before each read; empty for scripted input.
	Prompt string
	// Presets resolves "preset:<name>" inputs when set.
	Presets Expander
	// Color styles headings and errors.
	Color bool
	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Shell reads queries line by line and prints their hits. All queries share
// the searcher, which holds the one open read session.
type Shell struct {
	searcher Searcher
	in       io.Reader
	w        *output.Writer
	prompt   io.Writer
	opts     Options
	state    atomic.Int32
	logger   *slog.Logger
}

// New creates a Shell reading from in and printing to out.
func New(searcher Searcher, in io.Reader, out io.Writer, opts Options) *Shell {
	if opts.Limit <= 0 {
		opts.Limit = search.DefaultShellLimit
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Shell{
		searcher: searcher,
		in:       in,
		w:        output.NewStyled(out, !opts.Color),
		prompt:   out,
		opts:     opts,
		logger:   logger,
	}
}

// State returns the current state.
func (s *Shell) State() State {
	return State(s.state.Load())
}

// Run loops until the quit command, end of input or ctx is done. Errors in a
// query are printed and the loop continues; storage errors end it.
func (s *Shell) Run(ctx context.Context) error {
	defer s.state.Store(int32(StateStopped))
	s.state.Store(int32(StateWaiting))
	s.Help()

	scanner := bufio.NewScanner(s.in)
	for {
		if s.opts.Prompt != "" {
			_, _ = io.WriteString(s.prompt, s.opts.Prompt)
		}
		if !scanner.Scan() {
			break
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case CommandQuit:
			return nil
		case CommandHelp:
			s.Help()
			continue
		}

		s.state.Store(int32(StateExecuting))
		err := s.execute(ctx, line)
		s.state.Store(int32(StateWaiting))
		if err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return pserrors.IOError("cannot read input", err)
	}
	return nil
}

// Help prints usage.
func (s *Shell) Help() {
	s.w.Line(`Interactive search. Combine terms with AND, OR, NOT or -term, group with (), quote "phrases", use * and ? as wildcards.`)
	s.w.Line("Default search is for contents, further fields: path, filename")
	s.w.Line("Example for searching filenames: filename:test*")
	s.w.Newline()
	s.w.Linef("Enter query, or type '%s' or '%s'", CommandQuit, CommandHelp)
}

// execute runs one query. Invalid queries are reported and swallowed.
func (s *Shell) execute(ctx context.Context, line string) error {
	input := line
	if s.opts.Presets != nil {
		expanded, err := s.opts.Presets.Expand(line)
		if err != nil {
			return s.reject(line, err)
		}
		input = expanded
	}

	res, err := s.searcher.Search(ctx, input, s.opts.Limit)
	if err != nil {
		return s.reject(line, err)
	}
	s.logger.Debug("shell_query", slog.String("query", input), slog.Int("total", res.Total))

	if len(res.Hits) == 0 {
		s.w.Line("No results.")
	} else {
		paths := make([]string, len(res.Hits))
		for i, h := range res.Hits {
			paths[i] = h.AbsPath
		}
		sort.Strings(paths)

		s.w.Heading("Found:")
		for _, p := range paths {
			s.w.Item(p)
		}
		if res.Truncated() {
			s.w.Linef("There may be more results (limited to %d)", s.opts.Limit)
		}
	}
	s.w.Newline()
	return nil
}

func (s *Shell) reject(line string, err error) error {
	var pe *pserrors.PSError
	if !errors.As(err, &pe) || pe.Category != pserrors.CategoryValidation {
		return err
	}
	s.logger.Debug("shell_query_rejected", append([]any{slog.String("query", line)}, pserrors.LogAttrs(err)...)...)
	s.w.Error(pe.Message)
	s.w.Newline()
	return nil
}
