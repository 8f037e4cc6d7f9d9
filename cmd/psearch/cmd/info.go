package cmd

import (
	"os"

	"github.com/spf13/cobra"

	pserrors "github.com/Aman-CERP/psearch/internal/errors"
	"github.com/Aman-CERP/psearch/internal/store"
	"github.com/Aman-CERP/psearch/internal/ui"
)

func newInfoCmd(a *app) *cobra.Command {
	var jsonOutput bool
	var indexFolder string

	cmd := &cobra.Command{
		Use:   "info",
		Short: "Show the current index generation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.config()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("index-folder") {
				cfg.IndexFolder = indexFolder
			}
			path := cfg.IndexPath(a.root)
			if !store.Exists(path) {
				return pserrors.IndexMissingError(path)
			}

			reader, err := store.Open(cmd.Context(), path)
			if err != nil {
				return err
			}
			defer func() { _ = reader.Close() }()

			terms, err := reader.TermCount(cmd.Context())
			if err != nil {
				return err
			}
			meta := reader.Meta()
			info := ui.StatusInfo{
				Root:        meta.Root,
				IndexPath:   reader.Dir(),
				Generation:  meta.Generation,
				CreatedAt:   meta.CreatedAt,
				Documents:   reader.DocCount(),
				Terms:       terms,
				MaxTokenLen: meta.MaxTokenLength,
			}
			if st, err := os.Stat(store.DatabasePath(path)); err == nil {
				info.Size = st.Size()
			}

			r := ui.NewStatusRenderer(cmd.OutOrStdout(), !colorOutput(cmd.OutOrStdout()))
			if jsonOutput {
				return r.RenderJSON(info)
			}
			return r.Render(info)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().StringVar(&indexFolder, "index-folder", "", "Index folder, relative to the root")

	return cmd
}
