package cmd

import (
	"context"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/psearch/internal/config"
	"github.com/Aman-CERP/psearch/internal/output"
	"github.com/Aman-CERP/psearch/internal/preset"
	"github.com/Aman-CERP/psearch/internal/report"
	"github.com/Aman-CERP/psearch/internal/ui"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	index     indexFlags
	whitelist string
	failOn    string
	limit     int
}

func newSearchCmd(a *app) *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Run one query and report the matching files",
		Long: `Run one query against the index and print the matching files.

The index is built first when it does not exist. Hits whose absolute path
matches one of the --whitelist regular expressions are reported as
ignored. With --fail-on the command exits with status 2 when the accepted
hits are unwanted: 'hit' fails on any accepted hit, 'miss' fails when
there is none. Arguments are joined with spaces; put '--' before a query
that starts with '-'.

Examples:
  psearch search 'TODO OR FIXME'
  psearch search 'password -path:test*' --fail-on hit
  psearch search preset:todo --whitelist '.*/vendor/.*'
  psearch search 'filename:README*' --fail-on miss
  psearch search -- -path:vendor secret`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd.Context(), cmd, a, strings.Join(args, " "), &opts)
		},
	}

	addIndexFlags(cmd, &opts.index)
	cmd.Flags().StringVarP(&opts.whitelist, "whitelist", "w", "", "Comma separated regular expressions of paths to ignore")
	cmd.Flags().StringVar(&opts.failOn, "fail-on", string(report.FailNever), "Fail condition: never, hit, miss")
	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 0, "Maximum number of results (default: search_limit)")

	return cmd
}

func runSearch(ctx context.Context, cmd *cobra.Command, a *app, input string, opts *searchOptions) error {
	cfg, err := a.config()
	if err != nil {
		return err
	}
	if err := opts.index.apply(cmd, cfg); err != nil {
		return err
	}

	// reject bad flags before any index work
	condition, err := report.ParseFailCondition(opts.failOn)
	if err != nil {
		return err
	}
	whitelist, err := report.CompileWhitelist(opts.whitelist)
	if err != nil {
		return err
	}
	resolver, err := presetResolver(cfg)
	if err != nil {
		return err
	}
	q, err := resolver.Expand(input)
	if err != nil {
		return err
	}
	limit := opts.limit
	if limit <= 0 {
		limit = cfg.SearchLimit
	}

	exec, err := a.openExecutor(ctx, cfg, opts.index.clean, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer func() { _ = exec.Reader().Close() }()

	a.logger.Info("search_started", slog.String("query", q), slog.Int("limit", limit))
	res, err := exec.Search(ctx, q, limit)
	if err != nil {
		return err
	}

	hits := make([]string, len(res.Hits))
	for i, h := range res.Hits {
		hits[i] = h.AbsPath
	}
	rep := report.Partition(hits, whitelist)
	rep.Print(output.NewStyled(cmd.OutOrStdout(), !colorOutput(cmd.OutOrStdout())))

	a.logger.Info("search_complete",
		slog.Int("accepted", len(rep.Accepted)),
		slog.Int("ignored", len(rep.Ignored)),
		slog.Int("total", res.Total))
	return rep.Verdict(condition)
}

// presetResolver merges the built-in, test and configured presets.
func presetResolver(cfg *config.Config) (*preset.Resolver, error) {
	return preset.NewResolver(preset.DefaultProviders(cfg.Presets)...)
}

// colorOutput reports whether styled output should be written to w.
func colorOutput(w io.Writer) bool {
	return ui.IsTTY(w) && !ui.DetectNoColor()
}
