package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/pario-ai/sift/pkg/history"
	"github.com/pario-ai/sift/pkg/models"
)

func newHistoryCmd() *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect and clear a user's search history",
	}
	cmd.PersistentFlags().StringVarP(&userID, "user", "u", "", "user id (required)")

	var (
		term     string
		since    string
		until    string
		page     int
		pageSize int
	)
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List a user's searches, newest first",
		RunE: withLedger(func(ctx context.Context, ledger history.Ledger) error {
			if userID == "" {
				return errors.New("--user is required")
			}
			filter := models.HistoryFilter{SearchTerm: term}
			if since != "" {
				t, err := time.Parse(models.DateLayout, since)
				if err != nil {
					return fmt.Errorf("invalid --since (use YYYY-MM-DD): %w", err)
				}
				filter.From = t
			}
			if until != "" {
				t, err := time.Parse(models.DateLayout, until)
				if err != nil {
					return fmt.Errorf("invalid --until (use YYYY-MM-DD): %w", err)
				}
				filter.To = t.Add(24*time.Hour - time.Millisecond)
			}

			out, err := ledger.List(ctx, userID, filter, page, pageSize)
			if err != nil {
				return err
			}
			printTitle(fmt.Sprintf("History for %s", userID))
			if len(out.Items) == 0 {
				printNoData("No history found.")
				return nil
			}
			w := newTable()
			fmt.Fprintln(w, "ID\tTIME\tQUERY\tRESULTS\tCACHE")
			for _, it := range out.Items {
				status := string(it.CacheStatus)
				if status == "" {
					status = "-"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
					it.ID, it.CreatedAt.Local().Format("2006-01-02T15:04:05"), it.Query, it.ResultCount, status)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Printf("\nPage %d of %d, %d items total\n", out.CurrentPage, out.TotalPages, out.TotalCount)
			return nil
		}),
	}
	listCmd.Flags().StringVarP(&term, "query", "q", "", "only show queries containing this text")
	listCmd.Flags().StringVar(&since, "since", "", "earliest day (YYYY-MM-DD)")
	listCmd.Flags().StringVar(&until, "until", "", "latest day, inclusive (YYYY-MM-DD)")
	listCmd.Flags().IntVar(&page, "page", 1, "page number")
	listCmd.Flags().IntVar(&pageSize, "limit", 20, "items per page")

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete all of a user's history",
		RunE: withLedger(func(ctx context.Context, ledger history.Ledger) error {
			if userID == "" {
				return errors.New("--user is required")
			}
			n, err := ledger.ClearAll(ctx, userID)
			if err != nil {
				return err
			}
			fmt.Printf("Deleted %d history items for %s.\n", n, userID)
			return nil
		}),
	}

	cmd.AddCommand(listCmd, clearCmd)
	return cmd
}

// withLedger opens the configured history ledger for one command.
func withLedger(fn func(ctx context.Context, ledger history.Ledger) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		ledger, err := openLedger(cfg)
		if err != nil {
			return err
		}
		defer closeQuietly(ledger)
		return fn(cmd.Context(), ledger)
	}
}
