package cmd

import (
	"context"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/psearch/internal/analysis"
	"github.com/Aman-CERP/psearch/internal/config"
	"github.com/Aman-CERP/psearch/internal/index"
	"github.com/Aman-CERP/psearch/internal/output"
	"github.com/Aman-CERP/psearch/internal/search"
	"github.com/Aman-CERP/psearch/internal/store"
	"github.com/Aman-CERP/psearch/internal/ui"
	"github.com/Aman-CERP/psearch/internal/walker"
)

// indexFlags override the configured index settings.
type indexFlags struct {
	indexFolder     string
	ignoreFolders   string
	ignoreMimeTypes string
	maxFileSize     int64
	maxTokenLength  int
	caseInsensitive bool
	workers         int
	clean           bool
}

func addIndexFlags(cmd *cobra.Command, f *indexFlags) {
	cmd.Flags().StringVar(&f.indexFolder, "index-folder", config.DefaultIndexFolder, "Index folder, relative to the root")
	cmd.Flags().StringVar(&f.ignoreFolders, "ignore-folders", "", "Comma separated folder names to skip at any depth")
	cmd.Flags().StringVar(&f.ignoreMimeTypes, "ignore-mime-types", walker.DefaultIgnoreMimeTypes, "Regular expression of mime types to skip")
	cmd.Flags().Int64Var(&f.maxFileSize, "max-file-size", walker.DefaultMaxFileSize, "Skip files larger than this many bytes (0 = unlimited)")
	cmd.Flags().IntVar(&f.maxTokenLength, "max-token-length", analysis.DefaultMaxTokenLength, "Drop longer tokens")
	cmd.Flags().BoolVar(&f.caseInsensitive, "case-insensitive", false, "Lowercase indexed terms (applies to newly built indexes)")
	cmd.Flags().IntVar(&f.workers, "workers", 0, "Analyzer goroutines (default: number of CPUs)")
	cmd.Flags().BoolVar(&f.clean, "clean", false, "Delete the existing index and build a new one")
}

// apply copies the flags the user set onto cfg.
func (f *indexFlags) apply(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("index-folder") {
		cfg.IndexFolder = f.indexFolder
	}
	if flags.Changed("ignore-folders") {
		cfg.IgnoreFolders = walker.SplitList(f.ignoreFolders)
	}
	if flags.Changed("ignore-mime-types") {
		cfg.IgnoreMimeTypes = f.ignoreMimeTypes
	}
	if flags.Changed("max-file-size") {
		cfg.MaxFileSize = f.maxFileSize
	}
	if flags.Changed("max-token-length") {
		cfg.MaxTokenLength = f.maxTokenLength
	}
	if flags.Changed("case-insensitive") {
		cfg.CaseInsensitive = f.caseInsensitive
	}
	if flags.Changed("workers") {
		cfg.Workers = f.workers
	}
	return cfg.Validate()
}

// indexOptions translates cfg into builder options for the app root.
func (a *app) indexOptions(cfg *config.Config) (index.Options, error) {
	ignore, err := walker.CompileIgnore(cfg.IndexFolder, cfg.IgnoreFolders)
	if err != nil {
		return index.Options{}, err
	}
	maxFileSize := cfg.MaxFileSize
	if maxFileSize == 0 {
		maxFileSize = -1
	}
	return index.Options{
		Root:            a.root,
		IndexPath:       cfg.IndexPath(a.root),
		Ignore:          ignore,
		IgnoreMimeTypes: cfg.IgnoreMimeTypes,
		MaxFileSize:     maxFileSize,
		Analysis: analysis.Options{
			MaxTokenLength:  cfg.MaxTokenLength,
			CaseInsensitive: cfg.CaseInsensitive,
		},
		Workers: cfg.Workers,
		Logger:  a.logger,
	}, nil
}

// newRenderer picks a TUI for terminals and plain lines otherwise.
func newRenderer(ctx context.Context, out io.Writer, root string, plain bool) ui.Renderer {
	cfg := ui.NewConfig(out,
		ui.WithForcePlain(plain),
		ui.WithNoColor(ui.DetectNoColor()),
		ui.WithProjectDir(root))
	renderer := ui.NewRenderer(cfg)
	if err := renderer.Start(ctx); err != nil {
		slog.Warn("failed to start progress renderer", slog.String("error", err.Error()))
		return ui.NewPlainRenderer(cfg)
	}
	return renderer
}

// openExecutor builds the index when it is missing (or when clean is set)
// and opens a read session over it. The caller closes exec.Reader().
func (a *app) openExecutor(ctx context.Context, cfg *config.Config, clean bool, progress io.Writer) (*search.Executor, error) {
	opts, err := a.indexOptions(cfg)
	if err != nil {
		return nil, err
	}
	opts.Clean = clean

	if clean || !store.Exists(opts.IndexPath) {
		renderer := newRenderer(ctx, progress, a.root, false)
		opts.Renderer = renderer
		built, res, err := index.Ensure(ctx, opts)
		_ = renderer.Stop()
		if err != nil {
			return nil, err
		}
		if built {
			a.logger.Info("index_auto_built",
				slog.String("path", opts.IndexPath),
				slog.Int("files", res.Documents))
		}
	}

	reader, err := store.Open(ctx, opts.IndexPath)
	if err != nil {
		return nil, err
	}
	exec, err := search.New(reader, search.Options{Root: a.root, Logger: a.logger})
	if err != nil {
		_ = reader.Close()
		return nil, err
	}
	return exec, nil
}

func newIndexCmd(a *app) *cobra.Command {
	var flags indexFlags
	var noTUI bool

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Build the index for the project root",
		Long: `Walk the project root and write a new index generation.

Folders named in ignore_folders are skipped at any depth, as is the index
folder itself. Files whose mime type matches ignore_mime_types, files
larger than max_file_size and files that are not valid UTF-8 are skipped.

Readers of the previous generation are unaffected until the new one is
committed.

Examples:
  psearch index
  psearch index --root ~/src/project --clean
  psearch index --ignore-folders .git,vendor --ignore-mime-types 'image/.+'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runIndex(cmd.Context(), cmd, a, &flags, noTUI)
		},
	}

	addIndexFlags(cmd, &flags)
	cmd.Flags().BoolVar(&noTUI, "no-tui", false, "Disable the interactive progress display")

	return cmd
}

func runIndex(ctx context.Context, cmd *cobra.Command, a *app, flags *indexFlags, noTUI bool) error {
	cfg, err := a.config()
	if err != nil {
		return err
	}
	if err := flags.apply(cmd, cfg); err != nil {
		return err
	}
	opts, err := a.indexOptions(cfg)
	if err != nil {
		return err
	}
	opts.Clean = flags.clean

	renderer := newRenderer(ctx, cmd.OutOrStdout(), a.root, noTUI)
	opts.Renderer = renderer
	res, err := index.Build(ctx, opts)
	_ = renderer.Stop()
	if err != nil {
		return err
	}

	out := output.New(cmd.OutOrStdout())
	out.Successf("Indexed %d files into %s", res.Documents, opts.IndexPath)
	if res.Skipped > 0 {
		out.Warningf("%d files skipped, see 'psearch logs --level warn'", res.Skipped)
	}
	return nil
}
