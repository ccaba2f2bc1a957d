// Package provider talks to upstream search providers.
package provider

import (
	"context"

	"github.com/pario-ai/sift/pkg/models"
)

// Provider fetches one page of results for a query.
type Provider interface {
	Fetch(ctx context.Context, req models.SearchRequest) (models.ResultSet, error)
}

// Func adapts a function to the Provider interface.
type Func func(ctx context.Context, req models.SearchRequest) (models.ResultSet, error)

// Fetch calls f.
func (f Func) Fetch(ctx context.Context, req models.SearchRequest) (models.ResultSet, error) {
	return f(ctx, req)
}
