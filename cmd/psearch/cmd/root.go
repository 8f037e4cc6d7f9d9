// Package cmd provides the CLI commands for psearch.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/psearch/internal/config"
	pserrors "github.com/Aman-CERP/psearch/internal/errors"
	"github.com/Aman-CERP/psearch/internal/logging"
	"github.com/Aman-CERP/psearch/internal/profiling"
	"github.com/Aman-CERP/psearch/internal/report"
	"github.com/Aman-CERP/psearch/pkg/version"
)

// Process exit statuses.
const (
	ExitOK      = 0
	ExitError   = 1
	ExitVerdict = 2
)

// app is the state shared by one command invocation.
type app struct {
	// flags
	rootFlag string
	debug    bool
	profile  profiling.Options

	root    string
	cfg     *config.Config
	cfgErr  error
	logger  *slog.Logger
	cleanup func()
	prof    *profiling.Session
}

// NewRootCmd creates the root command for the psearch CLI.
func NewRootCmd() *cobra.Command {
	cmd, _ := newRootCmd()
	return cmd
}

func newRootCmd() (*cobra.Command, *app) {
	a := &app{logger: logging.Discard()}

	cmd := &cobra.Command{
		Use:   "psearch",
		Short: "Full-text search over the files of a project",
		Long: `psearch indexes the text files below a project root and answers
Lucene-style queries against the index.

  psearch index                       build or refresh the index
  psearch search 'TODO -filename:*.md' search once and report the hits
  psearch shell                       run queries interactively

Queries may reference the fields contents (default), path and filename,
and may name a preset with 'preset:<name>'.`,
		Version:            version.Version,
		SilenceUsage:       true,
		SilenceErrors:      true,
		PersistentPreRunE:  a.start,
		PersistentPostRunE: a.stop,
	}

	cmd.SetVersionTemplate("psearch version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&a.rootFlag, "root", ".", "Project root directory")
	cmd.PersistentFlags().BoolVar(&a.debug, "debug", false, "Enable debug logging (also mirrored to stderr)")

	cmd.PersistentFlags().StringVar(&a.profile.CPU, "profile-cpu", "", "Write CPU profile to file")
	cmd.PersistentFlags().StringVar(&a.profile.Heap, "profile-mem", "", "Write memory profile to file")
	cmd.PersistentFlags().StringVar(&a.profile.Trace, "profile-trace", "", "Write execution trace to file")

	cmd.AddCommand(newIndexCmd(a))
	cmd.AddCommand(newSearchCmd(a))
	cmd.AddCommand(newShellCmd(a))
	cmd.AddCommand(newPresetsCmd(a))
	cmd.AddCommand(newInfoCmd(a))
	cmd.AddCommand(newInitCmd(a))
	cmd.AddCommand(newLogsCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd, a
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	cmd, a := newRootCmd()
	defer func() { _ = a.stop(cmd, nil) }()

	err := cmd.ExecuteContext(ctx)
	if err != nil && !report.IsVerdict(err) {
		a.logFailure(err)
	}
	return err
}

// ExitCode maps the error returned by Execute to a process exit status.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case report.IsVerdict(err):
		return ExitVerdict
	default:
		return ExitError
	}
}

// PrintError writes err for a terminal user.
func PrintError(w io.Writer, err error) {
	var pe *pserrors.PSError
	switch {
	case report.IsVerdict(err):
		_, _ = fmt.Fprintln(w, err.Error())
	case errors.As(err, &pe):
		_, _ = fmt.Fprint(w, pserrors.FormatForCLI(err))
	default:
		_, _ = fmt.Fprintf(w, "Error: %v\n", err)
	}
}

// start resolves the root, loads the configuration and sets up logging.
// A configuration error is kept for the commands that need the config.
func (a *app) start(cmd *cobra.Command, _ []string) error {
	root, err := filepath.Abs(a.rootFlag)
	if err != nil {
		return pserrors.IOError("cannot resolve root "+a.rootFlag, err)
	}
	a.root = root
	a.cfg, a.cfgErr = config.Load(root)

	logCfg := logging.DefaultConfig()
	if a.cfg != nil {
		logCfg.Level = a.cfg.LogLevel
	}
	if a.debug {
		logCfg = logging.DebugConfig()
	}
	logger, cleanup, err := logging.Setup(logCfg)
	if err != nil {
		// searching works without a log file
		logger, cleanup = logging.Discard(), func() {}
	}
	a.logger, a.cleanup = logger, cleanup
	slog.SetDefault(logger)

	a.logger.Debug("command_started",
		slog.String("command", cmd.CommandPath()),
		slog.String("root", root),
		slog.String("version", version.Version))

	if a.profile.Enabled() {
		prof, err := profiling.Start(a.profile)
		if err != nil {
			return err
		}
		a.prof = prof
	}
	return nil
}

// stop finishes profiling and closes the log file. It is safe to call more
// than once.
func (a *app) stop(_ *cobra.Command, _ []string) error {
	err := a.prof.Stop()
	a.prof = nil
	if err != nil {
		a.logger.Warn("profile_write_failed", pserrors.LogAttrs(err)...)
	}
	if a.cleanup != nil {
		a.cleanup()
		a.cleanup = nil
	}
	return err
}

// logFailure records a failed command. Fatal errors log at ERROR, the rest
// at WARN.
func (a *app) logFailure(err error) {
	level := slog.LevelWarn
	if pserrors.IsFatal(err) {
		level = slog.LevelError
	}
	a.logger.Log(context.Background(), level, "command_failed", pserrors.LogAttrs(err)...)
}

// config returns a copy of the loaded configuration.
func (a *app) config() (*config.Config, error) {
	if a.cfgErr != nil {
		return nil, a.cfgErr
	}
	if a.cfg == nil {
		return config.NewConfig(), nil
	}
	cfg := *a.cfg
	return &cfg, nil
}
