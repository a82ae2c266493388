package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/theimaginaryfoundation/reflect-o-bot/internal/httpapi"
	"github.com/theimaginaryfoundation/reflect-o-bot/internal/mcptools"
)

func newServeCmd(opts *globalOptions) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the journal HTTP API",
		Long:  `Starts the JSON HTTP API with /healthz and /metrics. Stops gracefully on SIGINT or SIGTERM.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(opts)
			if err != nil {
				return err
			}
			defer a.Close()
			if addr == "" {
				addr = a.cfg.Addr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a.logger.Sugar().Infow("journal API starting", "addr", addr, "log_path", a.store.Path(), "backend", a.cfg.LLM.Backend, "model", a.cfg.LLM.Model)
			if err := httpapi.NewServer(a.svc, a.logger, a.metrics).Run(ctx, addr); err != nil {
				a.logger.Sugar().Errorw("server stopped with error", "error", err)
				return err
			}
			a.logger.Sugar().Infow("server exited gracefully")
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides JOURNAL_ADDR)")
	return cmd
}

func newMCPCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Start the journal MCP server (stdio transport)",
		Long:  `Launches the MCP stdio server so that external AI agents can record and read journal entries.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(opts)
			if err != nil {
				return err
			}
			defer a.Close()

			return mcptools.NewJournalMCPServer(a.svc, version, a.logger).Start()
		},
	}
}
