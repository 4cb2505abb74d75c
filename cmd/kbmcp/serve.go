package main

import (
	"os"

	"kbmcp/internal/logging"
	kbserver "kbmcp/internal/mcp"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

func newServeCmd(a *app) *cobra.Command {
	var (
		transport string
		addr      string
		kbPath    string
		verbose   bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server exposing get_knowledge_base",
		Long: `Run the MCP server. The stdio transport (default) talks MCP on stdin and
stdout; sse serves /sse and /message, http serves streamable HTTP on /mcp.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.config()
			if err != nil {
				return err
			}
			if transport == "" {
				transport = cfg.Server.Transport
			}
			if addr == "" {
				addr = cfg.Server.Addr
			}

			logger := a.logger
			if verbose && !logger.IsDebug() {
				logger = logging.NewWriterLogger(os.Stderr, log.InfoLevel)
				a.logger = logger
			}

			kb, err := a.loadKnowledge(cmd.Context(), kbPath)
			if err != nil {
				return err
			}
			logger.Info("Knowledge base loaded", "records", len(kb))

			srv := kbserver.NewServer(kb, kbserver.Options{
				Name:      cfg.Server.Name,
				Version:   cfg.Server.Version,
				Transport: transport,
				Addr:      addr,
			}, logger)
			return srv.Serve(cmd.Context())
		},
	}

	cmd.Flags().StringVarP(&transport, "transport", "t", "", "stdio, sse or http (default from config)")
	cmd.Flags().StringVar(&addr, "addr", "", "listen address for sse and http (default from config)")
	cmd.Flags().StringVar(&kbPath, "kb", "", "knowledge base file or directory (default from config)")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "log info messages to stderr")
	return cmd
}
