package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pario-ai/sift/pkg/cache"
)

func newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and maintain the result cache",
	}

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show live cache entries and hits",
		RunE: withCache(func(ctx context.Context, store cache.Store) error {
			st, err := store.Stats(ctx)
			if err != nil {
				return err
			}
			printTitle("Result cache")
			w := newTable()
			fmt.Fprintf(w, "Live entries:\t%d\n", st.Entries)
			fmt.Fprintf(w, "Hits:\t%d\n", st.Hits)
			return w.Flush()
		}),
	}

	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "Remove expired cache entries",
		RunE: withCache(func(ctx context.Context, store cache.Store) error {
			n, err := store.SweepExpired(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("Removed %d expired entries.\n", n)
			return nil
		}),
	}

	purgeCmd := &cobra.Command{
		Use:   "purge",
		Short: "Remove every cache entry",
		RunE: withCache(func(ctx context.Context, store cache.Store) error {
			n, err := store.Purge(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("Removed %d entries.\n", n)
			return nil
		}),
	}

	cmd.AddCommand(statsCmd, sweepCmd, purgeCmd)
	return cmd
}

// withCache opens the configured cache for the duration of one command.
func withCache(fn func(ctx context.Context, store cache.Store) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		store, err := openCache(cfg)
		if err != nil {
			return err
		}
		if store == nil {
			return fmt.Errorf("cache is disabled in %s", configPath)
		}
		defer closeQuietly(store)
		return fn(cmd.Context(), store)
	}
}
