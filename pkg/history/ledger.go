// Package history defines the per-user search history ledger.
package history

import (
	"context"
	"strings"

	"github.com/pario-ai/sift/pkg/apperr"
	"github.com/pario-ai/sift/pkg/models"
)

// Ledger is an append-only, per-user record of searches.
type Ledger interface {
	// Append records a search and assigns its ID and timestamp.
	Append(ctx context.Context, rec models.HistoryRecord) (models.HistoryItem, error)

	// List returns one page of a user's items, newest first. An inverted
	// date range yields an empty page, not an error.
	List(ctx context.Context, userID string, filter models.HistoryFilter, page, limit int) (models.HistoryPage, error)

	// DeleteOne removes an item owned by userID. Items that do not exist and
	// items owned by someone else both yield NOT_FOUND.
	DeleteOne(ctx context.Context, userID, id string) error

	// ClearAll removes every item owned by userID. It is idempotent.
	ClearAll(ctx context.Context, userID string) (int64, error)

	// Summarize aggregates one user's items.
	Summarize(ctx context.Context, userID string) (models.LedgerSummary, error)

	// Count returns the number of items across all users.
	Count(ctx context.Context) (int64, error)

	// Close releases resources.
	Close() error
}

// ValidateRecord checks the fields every backend requires before appending.
func ValidateRecord(rec models.HistoryRecord) error {
	const op = "history.Append"
	if strings.TrimSpace(rec.UserID) == "" {
		return apperr.InvalidArgument(op, "user id is required")
	}
	if strings.TrimSpace(rec.Query) == "" {
		return apperr.InvalidArgument(op, "query is required")
	}
	if rec.ResultCount < 0 {
		return apperr.InvalidArgument(op, "result count must not be negative")
	}
	return nil
}

// ValidatePage checks list paging arguments.
func ValidatePage(userID string, page, limit int) error {
	const op = "history.List"
	if userID == "" {
		return apperr.InvalidArgument(op, "user id is required")
	}
	if page < 1 {
		return apperr.InvalidArgument(op, "page must be >= 1")
	}
	if limit < 1 {
		return apperr.InvalidArgument(op, "limit must be >= 1")
	}
	return nil
}

// EmptyPage is the page returned for a filter that can match nothing.
func EmptyPage(page, limit int) models.HistoryPage {
	return models.HistoryPage{
		Items:      []models.HistoryItem{},
		Pagination: models.NewPagination(0, page, limit),
	}
}

// NotFound is the error returned by DeleteOne for missing or foreign items.
func NotFound(id string) error {
	return apperr.NotFound("history.DeleteOne", "history item %q not found", id)
}
