package main

import (
	"fmt"
	"os"

	"kbmcp/internal/config"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Create and inspect the configuration file",
	}

	var (
		force     bool
		kbPath    string
		provider  string
		transport string
		gitURL    string
		gitBranch string
	)
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a configuration file with defaults",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.ConfigPath()
			if err != nil {
				return err
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("config file %s already exists; use --force to overwrite", path)
			}

			cfg := config.DefaultConfig()
			if kbPath != "" {
				cfg.Knowledge.Path = kbPath
			}
			if provider != "" {
				cfg.Models.Provider = provider
			}
			if transport != "" {
				cfg.Server.Transport = transport
			}
			cfg.Knowledge.GitURL = gitURL
			cfg.Knowledge.GitBranch = gitBranch

			if err := cfg.SaveTo(path); err != nil {
				return err
			}
			a.cfg = &cfg
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	}
	initCmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing file")
	initCmd.Flags().StringVar(&kbPath, "kb", "", "knowledge base path")
	initCmd.Flags().StringVar(&provider, "provider", "", "default model vendor: openai or gemini")
	initCmd.Flags().StringVar(&transport, "transport", "", "default server transport: stdio, sse or http")
	initCmd.Flags().StringVar(&gitURL, "git-url", "", "repository holding the knowledge base")
	initCmd.Flags().StringVar(&gitBranch, "git-branch", "", "branch of --git-url")

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.config()
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(cfg); err != nil {
				return fmt.Errorf("encode config: %w", err)
			}
			return enc.Close()
		},
	}

	pathCmd := &cobra.Command{
		Use:   "path",
		Short: "Print the configuration file location",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, exists := config.FindConfigFile()
			if !exists {
				path += " (not created yet)"
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}

	cmd.AddCommand(initCmd, show, pathCmd)
	return cmd
}
