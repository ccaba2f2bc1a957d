package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pario-ai/sift/pkg/logger"
	"github.com/pario-ai/sift/pkg/mcp"
	"github.com/pario-ai/sift/pkg/stats"
)

func newMCPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve history and cache statistics to MCP clients over stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			store, err := openCache(cfg)
			if err != nil {
				return err
			}
			defer closeQuietly(store)
			ledger, err := openLedger(cfg)
			if err != nil {
				return err
			}
			defer closeQuietly(ledger)

			// A nil interface, not a typed nil, tells the server the cache is off.
			var sweeper mcp.Sweeper
			if store != nil {
				sweeper = store
			}
			srv := mcp.New(ledger, stats.New(store, ledger), sweeper, version)

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			logger.Info("sift mcp server ready", "cache", cacheBackend(cfg.Cache.Enabled, cfg.Cache.Backend))
			return srv.Run(ctx, os.Stdin, os.Stdout)
		},
	}
}
