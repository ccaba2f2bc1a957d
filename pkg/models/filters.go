package models

import (
	"sort"
	"strings"
	"time"

	"github.com/pario-ai/sift/pkg/apperr"
)

// FilterVersion is the schema version of FilterSet understood by this build.
const FilterVersion = 1

// DateLayout is the wire format of FilterSet dates.
const DateLayout = "2006-01-02"

var (
	contentTypes = map[string]bool{"web": true, "news": true, "images": true, "videos": true}
	sortOrders   = map[string]bool{"relevance": true, "date": true}
)

// FilterSet is the closed set of search filters a query may carry.
type FilterSet struct {
	Version     int    `json:"version,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	SortOrder   string `json:"sort,omitempty"`
	Domain      string `json:"domain,omitempty"`
	DateFrom    string `json:"date_from,omitempty"`
	DateTo      string `json:"date_to,omitempty"`
}

// filterKeys lists the property names ParseFilterSet accepts.
var filterKeys = map[string]func(*FilterSet, string){
	"content_type": func(f *FilterSet, v string) { f.ContentType = v },
	"contentType":  func(f *FilterSet, v string) { f.ContentType = v },
	"sort":         func(f *FilterSet, v string) { f.SortOrder = v },
	"domain":       func(f *FilterSet, v string) { f.Domain = v },
	"date_from":    func(f *FilterSet, v string) { f.DateFrom = v },
	"dateFrom":     func(f *FilterSet, v string) { f.DateFrom = v },
	"date_to":      func(f *FilterSet, v string) { f.DateTo = v },
	"dateTo":       func(f *FilterSet, v string) { f.DateTo = v },
}

// ParseFilterSet builds a FilterSet from an untyped property bag such as query
// parameters. Unknown properties are rejected.
func ParseFilterSet(props map[string]string) (*FilterSet, error) {
	if len(props) == 0 {
		return nil, nil
	}
	names := make([]string, 0, len(props))
	for k := range props {
		names = append(names, k)
	}
	sort.Strings(names)

	f := &FilterSet{Version: FilterVersion}
	for _, k := range names {
		set, ok := filterKeys[k]
		if !ok {
			return nil, apperr.InvalidArgument("models.ParseFilterSet", "unknown filter %q", k)
		}
		set(f, props[k])
	}
	n := f.Normalize()
	if err := n.Validate(); err != nil {
		return nil, err
	}
	return n, nil
}

// Normalize returns a copy with trimmed, case-folded values. A nil receiver
// normalizes to nil.
func (f *FilterSet) Normalize() *FilterSet {
	if f == nil {
		return nil
	}
	n := &FilterSet{
		Version:     f.Version,
		ContentType: strings.ToLower(strings.TrimSpace(f.ContentType)),
		SortOrder:   strings.ToLower(strings.TrimSpace(f.SortOrder)),
		Domain:      strings.TrimSuffix(strings.ToLower(strings.TrimSpace(f.Domain)), "."),
		DateFrom:    normalizeDate(f.DateFrom),
		DateTo:      normalizeDate(f.DateTo),
	}
	if n.Version == 0 {
		n.Version = FilterVersion
	}
	return n
}

// normalizeDate accepts a plain date or an RFC 3339 timestamp and returns the
// UTC day. Unparseable input is returned trimmed so Validate can reject it.
func normalizeDate(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC().Format(DateLayout)
	}
	return s
}

// IsEmpty reports whether no filter is set.
func (f *FilterSet) IsEmpty() bool {
	return f == nil || (f.ContentType == "" && f.SortOrder == "" && f.Domain == "" &&
		f.DateFrom == "" && f.DateTo == "")
}

// Validate rejects unknown enum values, malformed dates and inverted ranges.
func (f *FilterSet) Validate() error {
	const op = "models.FilterSet.Validate"
	if f == nil {
		return nil
	}
	if f.Version != 0 && f.Version != FilterVersion {
		return apperr.InvalidArgument(op, "unsupported filter version %d", f.Version)
	}
	if f.ContentType != "" && !contentTypes[f.ContentType] {
		return apperr.InvalidArgument(op, "unknown content type %q", f.ContentType)
	}
	if f.SortOrder != "" && !sortOrders[f.SortOrder] {
		return apperr.InvalidArgument(op, "unknown sort order %q", f.SortOrder)
	}
	if strings.ContainsAny(f.Domain, " \t\n/") {
		return apperr.InvalidArgument(op, "invalid domain %q", f.Domain)
	}
	from, err := parseDate(f.DateFrom)
	if err != nil {
		return apperr.InvalidArgument(op, "invalid date_from %q", f.DateFrom)
	}
	to, err := parseDate(f.DateTo)
	if err != nil {
		return apperr.InvalidArgument(op, "invalid date_to %q", f.DateTo)
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return apperr.InvalidArgument(op, "date_to is before date_from")
	}
	return nil
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(DateLayout, s)
}
