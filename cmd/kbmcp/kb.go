package main

import (
	"fmt"

	"kbmcp/internal/knowledge"

	"github.com/spf13/cobra"
)

func newKBCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "kb",
		Short: "Inspect and synchronize the knowledge base",
	}

	sync := &cobra.Command{
		Use:   "sync",
		Short: "Clone or refresh the configured knowledge repository",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.config()
			if err != nil {
				return err
			}
			if cfg.Knowledge.GitURL == "" {
				return fmt.Errorf("no knowledge.git_url configured; set it with `kbmcp config init --git-url`")
			}

			gs := a.gitSource(cfg)
			path, err := gs.Prepare(cmd.Context())
			if err != nil {
				return err
			}
			kb, err := knowledge.LoadWithOptions(path, knowledge.Options{
				MaxFileSize: cfg.Knowledge.MaxFileSize,
				BaseDir:     gs.Dir,
				Logger:      a.logger,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Synchronized %s into %s (%d records)\n", gs.URL, gs.Dir, len(kb))
			return nil
		},
	}

	var kbPath string
	show := &cobra.Command{
		Use:   "show",
		Short: "Print the knowledge base as the server returns it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			kb, err := a.loadKnowledge(cmd.Context(), kbPath)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), knowledge.Format(kb))
			return nil
		},
	}
	show.Flags().StringVar(&kbPath, "kb", "", "knowledge base file or directory (default from config)")

	cmd.AddCommand(sync, show)
	return cmd
}
