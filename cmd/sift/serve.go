package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/pario-ai/sift/pkg/api"
	"github.com/pario-ai/sift/pkg/cache"
	"github.com/pario-ai/sift/pkg/errorreporting"
	"github.com/pario-ai/sift/pkg/logger"
	"github.com/pario-ai/sift/pkg/metrics"
	"github.com/pario-ai/sift/pkg/provider"
	"github.com/pario-ai/sift/pkg/search"
	"github.com/pario-ai/sift/pkg/stats"
	"github.com/pario-ai/sift/pkg/tracing"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the search API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			auth, err := api.NewAuthenticator(cfg.Auth)
			if err != nil {
				return err
			}

			if err := errorreporting.Init(cfg.Sentry, version); err != nil {
				logger.Warn("sentry disabled", "error", err)
			}
			defer errorreporting.Flush(2 * time.Second)

			shutdownTracing, err := tracing.Init(cfg.Tracing, version)
			if err != nil {
				logger.Warn("tracing disabled", "error", err)
			} else {
				defer func() {
					ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					_ = shutdownTracing(ctx)
				}()
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

			codec, err := cache.NewCodec()
			if err != nil {
				return err
			}
			defer codec.Close()

			engine := search.New(store, ledger, provider.NewHTTPClient(cfg), codec, search.OptionsFromConfig(cfg))
			defer engine.Wait()
			agg := stats.New(store, ledger)

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if store != nil && cfg.Cache.SweepInterval > 0 {
				sweeper := cache.NewSweeper(store, cfg.Cache.SweepInterval)
				sweeper.Start()
				defer sweeper.Stop()
			}
			if cfg.Metrics.Enabled && cfg.Metrics.CollectInterval > 0 {
				collector := metrics.NewCollector(agg, cfg.Metrics.CollectInterval)
				go collector.Start(ctx)
				defer collector.Stop()
			}

			logger.Info("starting sift",
				"config", configPath,
				"cache", cacheBackend(cfg.Cache.Enabled, cfg.Cache.Backend),
				"history", cfg.History.Backend,
				"providers", len(cfg.Providers),
			)
			return api.New(cfg, engine, ledger, agg, auth).ListenAndServe(ctx)
		},
	}
}

func cacheBackend(enabled bool, backend string) string {
	if !enabled {
		return "disabled"
	}
	return backend
}
