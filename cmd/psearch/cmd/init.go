package cmd

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/psearch/configs"
	"github.com/Aman-CERP/psearch/internal/config"
	pserrors "github.com/Aman-CERP/psearch/internal/errors"
	"github.com/Aman-CERP/psearch/internal/output"
)

func newInitCmd(a *app) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a commented project config file",
		Long: `Write ` + config.ProjectConfigFile + ` into the project root. Every setting is
shown with its default value.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := filepath.Join(a.root, config.ProjectConfigFile)
			out := output.New(cmd.OutOrStdout())

			if _, err := os.Stat(path); err == nil && !force {
				return pserrors.ConfigError(config.ProjectConfigFile+" already exists", nil).
					WithDetail("path", path).
					WithSuggestion("use --force to overwrite it")
			}
			if err := os.WriteFile(path, []byte(configs.ProjectConfigTemplate), 0o644); err != nil {
				return pserrors.IOError("failed to write "+path, err)
			}
			out.Successf("Created %s", path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config file")

	return cmd
}
