// Package cachekey derives deterministic cache keys for search requests.
package cachekey

import (
	"strconv"
	"strings"

	"github.com/pario-ai/sift/pkg/apperr"
	"github.com/pario-ai/sift/pkg/models"
)

// Namespace prefixes every key so the key format can be versioned.
const Namespace = "sift:v1"

// NormalizeQuery trims, collapses inner whitespace and case-folds a query.
func NormalizeQuery(query string) string {
	return strings.ToLower(strings.Join(strings.Fields(query), " "))
}

// Normalize returns the cache key for a query, its filters and a page window.
// Each component is length-prefixed so no delimiter inside free text can make
// two different requests collide. The only failure is an empty query.
func Normalize(query string, filters *models.FilterSet, page, limit int) (string, error) {
	q := NormalizeQuery(query)
	if q == "" {
		return "", apperr.InvalidArgument("cachekey.Normalize", "query is empty")
	}

	var b strings.Builder
	b.Grow(len(Namespace) + len(q) + 64)
	b.WriteString(Namespace)
	writeComponent(&b, q)
	writeComponent(&b, canonicalFilters(filters))
	writeComponent(&b, strconv.Itoa(page))
	writeComponent(&b, strconv.Itoa(limit))
	return b.String(), nil
}

// canonicalFilters serializes filters in a fixed field order. A nil set and
// an empty set produce the same string.
func canonicalFilters(f *models.FilterSet) string {
	n := f.Normalize()
	if n == nil {
		n = &models.FilterSet{Version: models.FilterVersion}
	}
	var b strings.Builder
	writeComponent(&b, strconv.Itoa(n.Version))
	writeComponent(&b, n.ContentType)
	writeComponent(&b, n.SortOrder)
	writeComponent(&b, n.Domain)
	writeComponent(&b, n.DateFrom)
	writeComponent(&b, n.DateTo)
	return b.String()
}

func writeComponent(b *strings.Builder, s string) {
	b.WriteByte('|')
	b.WriteString(strconv.Itoa(len(s)))
	b.WriteByte(':')
	b.WriteString(s)
}
