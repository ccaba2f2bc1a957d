package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pario-ai/sift/pkg/stats"
)

func newStatsCmd() *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show system statistics, or one user's with --user",
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

			agg := stats.New(store, ledger)
			ctx := cmd.Context()

			if userID != "" {
				us, err := agg.UserStats(ctx, userID)
				if err != nil {
					return err
				}
				printTitle(fmt.Sprintf("Search statistics for %s", us.UserID))
				w := newTable()
				fmt.Fprintf(w, "Total searches:\t%d\n", us.TotalSearches)
				fmt.Fprintf(w, "Unique queries:\t%d\n", us.UniqueQueries)
				fmt.Fprintf(w, "Avg results:\t%.1f\n", us.AvgResultCount)
				fmt.Fprintf(w, "Cache hit ratio:\t%.1f%%\n", us.CacheHitRatio*100)
				return w.Flush()
			}

			ss, err := agg.SystemStats(ctx)
			if err != nil {
				return err
			}
			printTitle("System statistics")
			w := newTable()
			fmt.Fprintf(w, "Cache backend:\t%s\n", cacheBackend(cfg.Cache.Enabled, cfg.Cache.Backend))
			fmt.Fprintf(w, "Live cache entries:\t%d\n", ss.TotalCacheEntries)
			fmt.Fprintf(w, "Cache hits:\t%d\n", ss.TotalHits)
			fmt.Fprintf(w, "Aggregate hit ratio:\t%.1f%%\n", ss.AggregateHitRatio*100)
			fmt.Fprintf(w, "History items:\t%d\n", ss.TotalHistoryItems)
			return w.Flush()
		},
	}

	cmd.Flags().StringVarP(&userID, "user", "u", "", "show statistics for one user")
	return cmd
}
