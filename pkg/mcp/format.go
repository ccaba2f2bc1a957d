package mcp

import (
	"fmt"
	"strings"

	"github.com/pario-ai/sift/pkg/models"
)

const timeLayout = "2006-01-02 15:04:05"

// formatHistory renders a history page as a text table.
func formatHistory(page models.HistoryPage) string {
	if len(page.Items) == 0 {
		return "No history found."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-36s  %-19s  %-40s %8s  %-5s\n", "ID", "Time", "Query", "Results", "Cache")
	b.WriteString(strings.Repeat("-", 116) + "\n")
	for _, it := range page.Items {
		status := string(it.CacheStatus)
		if status == "" {
			status = "-"
		}
		fmt.Fprintf(&b, "%-36s  %-19s  %-40s %8d  %-5s\n",
			it.ID, it.CreatedAt.Format(timeLayout), clip(it.Query, 40), it.ResultCount, status)
	}
	fmt.Fprintf(&b, "\nPage %d of %d (%d items)", page.CurrentPage, page.TotalPages, page.TotalCount)
	if page.HasNextPage {
		b.WriteString(", more available")
	}
	b.WriteString("\n")
	return b.String()
}

// formatUserStats renders one user's statistics.
func formatUserStats(s models.UserStats) string {
	var b strings.Builder
	fmt.Fprintf(&b, "User:             %s\n", s.UserID)
	fmt.Fprintf(&b, "Total searches:   %d\n", s.TotalSearches)
	fmt.Fprintf(&b, "Unique queries:   %d\n", s.UniqueQueries)
	fmt.Fprintf(&b, "Avg results:      %.1f\n", s.AvgResultCount)
	fmt.Fprintf(&b, "Cache hit ratio:  %.1f%%\n", s.CacheHitRatio*100)
	return b.String()
}

// formatSystemStats renders cache and ledger totals.
func formatSystemStats(s models.SystemStats) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Cache entries:       %d\n", s.TotalCacheEntries)
	fmt.Fprintf(&b, "Cache hits:          %d\n", s.TotalHits)
	fmt.Fprintf(&b, "Aggregate hit ratio: %.1f%%\n", s.AggregateHitRatio*100)
	fmt.Fprintf(&b, "History items:       %d\n", s.TotalHistoryItems)
	return b.String()
}

func formatSweep(n int64) string {
	if n == 1 {
		return "Removed 1 expired cache entry."
	}
	return fmt.Sprintf("Removed %d expired cache entries.", n)
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
