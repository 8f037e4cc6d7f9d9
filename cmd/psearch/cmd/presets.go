package cmd

import (
	"github.com/spf13/cobra"

	"github.com/Aman-CERP/psearch/internal/output"
	"github.com/Aman-CERP/psearch/internal/preset"
)

func newPresetsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "presets",
		Short: "List the named queries usable as 'preset:<name>'",
		Long: `List every preset with the provider that defined it.

Presets come from the built-in table, from the test table when the
` + preset.TestPresetsEnv + ` environment variable is set, and from the presets
key of the configuration files. A later source overrides an earlier one.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.config()
			if err != nil {
				return err
			}
			resolver, err := presetResolver(cfg)
			if err != nil {
				return err
			}

			out := output.NewStyled(cmd.OutOrStdout(), !colorOutput(cmd.OutOrStdout()))
			out.Heading("Presets:")
			for _, name := range resolver.Names() {
				q, _ := resolver.Resolve(name)
				out.Item(preset.Prefix + name + "  [" + resolver.Source(name) + "]")
				out.Dim("      " + q)
			}
			return nil
		},
	}
}
