package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/psearch/internal/shell"
	"github.com/Aman-CERP/psearch/internal/ui"
)

const shellPrompt = "psearch> "

func newShellCmd(a *app) *cobra.Command {
	var flags indexFlags
	var limit int

	cmd := &cobra.Command{
		Use:   "shell",
		Short: "Run queries interactively against one open index",
		Long: `Read queries from standard input, one per line, and print the matching
files. Every query shares one read session, so a rebuild running in
another process does not change the results until the shell restarts.

Type '?help' for help and '?quit' to leave. Query errors are reported
and the shell keeps reading.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runShell(cmd.Context(), cmd, a, &flags, limit)
		},
	}

	addIndexFlags(cmd, &flags)
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum number of results per query (default: shell_limit)")

	return cmd
}

func runShell(ctx context.Context, cmd *cobra.Command, a *app, flags *indexFlags, limit int) error {
	cfg, err := a.config()
	if err != nil {
		return err
	}
	if err := flags.apply(cmd, cfg); err != nil {
		return err
	}
	resolver, err := presetResolver(cfg)
	if err != nil {
		return err
	}
	if limit <= 0 {
		limit = cfg.ShellLimit
	}

	exec, err := a.openExecutor(ctx, cfg, flags.clean, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer func() { _ = exec.Reader().Close() }()

	opts := shell.Options{
		Limit:   limit,
		Presets: resolver,
		Color:   colorOutput(cmd.OutOrStdout()),
		Logger:  a.logger,
	}
	if ui.IsInteractive(cmd.InOrStdin()) {
		opts.Prompt = shellPrompt
	}
	return shell.New(exec, cmd.InOrStdin(), cmd.OutOrStdout(), opts).Run(ctx)
}
