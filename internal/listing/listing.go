// Copyright 2026 The Workery Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package listing turns list requests into bounded SQL through small
// capability interfaces. A resource opts into filtering, sorting, paging and
// archive visibility by implementing the matching interface.
package listing

import (
	"net/url"
	"strconv"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/over55/workery/internal/apperr"
)

const (
	defaultPageSize uint64 = 25
	maxPageSize     uint64 = 250
)

// Query is a parsed list request.
type Query struct {
	Page            uint64
	PageSize        uint64
	Sort            string
	Desc            bool
	IncludeArchived bool
	Filters         map[string]string
}

// Page is one page of results.
type Page[T any] struct {
	Results  []T    `json:"results"`
	Count    int    `json:"count"`
	Page     uint64 `json:"page"`
	PageSize uint64 `json:"page_size"`
}

// Paginated resources bound their page size.
type Paginated interface {
	MaxPageSize() uint64
}

// Filterable resources expose equality filters, keyed by query parameter.
type Filterable interface {
	FilterColumns() map[string]string
}

// Sortable resources name their sort keys. DefaultSort may carry a "-" prefix.
type Sortable interface {
	SortColumns() map[string]string
	DefaultSort() string
}

// Archivable resources hide archived rows unless asked.
type Archivable interface {
	ArchivedColumn() string
}

// reserved query parameters never treated as filters.
var reserved = map[string]bool{
	"page": true, "page_size": true, "ordering": true, "include_archived": true, "q": true, "schema": true,
}

// FromValues parses page, page_size, ordering (prefix "-" for descending),
// include_archived and any remaining parameters as filters.
func FromValues(v url.Values) (Query, error) {
	q := Query{Page: 1, Filters: map[string]string{}}
	fields := map[string]string{}

	if s := v.Get("page"); s != "" {
		n, err := strconv.ParseUint(s, 10, 64)
		if err != nil || n == 0 {
			fields["page"] = "must be a positive integer"
		}
		q.Page = max(n, 1)
	}
	if s := v.Get("page_size"); s != "" {
		n, err := strconv.ParseUint(s, 10, 64)
		if err != nil || n == 0 {
			fields["page_size"] = "must be a positive integer"
		}
		q.PageSize = n
	}
	if s := v.Get("ordering"); s != "" {
		q.Sort, q.Desc = strings.TrimPrefix(s, "-"), strings.HasPrefix(s, "-")
	}
	if s := v.Get("include_archived"); s != "" {
		b, err := strconv.ParseBool(s)
		if err != nil {
			fields["include_archived"] = "must be a boolean"
		}
		q.IncludeArchived = b
	}
	for key := range v {
		if !reserved[key] {
			q.Filters[key] = v.Get(key)
		}
	}

	if len(fields) > 0 {
		return Query{}, apperr.Validation("listing.FromValues", fields)
	}
	return q, nil
}

// Limit returns the effective page size for resource.
func (q Query) Limit(resource any) uint64 {
	limit := maxPageSize
	if p, ok := resource.(Paginated); ok {
		limit = p.MaxPageSize()
	}
	size := q.PageSize
	if size == 0 {
		size = defaultPageSize
	}
	return min(size, limit)
}

// Offset returns the row offset of the requested page.
func (q Query) Offset(resource any) uint64 {
	return (max(q.Page, 1) - 1) * q.Limit(resource)
}

// Filter adds filters and archive visibility for resource. Unknown filter keys
// are a validation error rather than being ignored.
func Filter(b sq.SelectBuilder, q Query, resource any) (sq.SelectBuilder, error) {
	if a, ok := resource.(Archivable); ok && !q.IncludeArchived {
		b = b.Where(sq.Eq{a.ArchivedColumn(): false})
	}

	if len(q.Filters) == 0 {
		return b, nil
	}
	f, ok := resource.(Filterable)
	if !ok {
		return b, apperr.Validation("listing.Filter", map[string]string{"filters": "not supported"})
	}
	cols := f.FilterColumns()
	fields := map[string]string{}
	for key, value := range q.Filters {
		col, ok := cols[key]
		if !ok {
			fields[key] = "unknown filter"
			continue
		}
		b = b.Where(sq.Eq{col: value})
	}
	if len(fields) > 0 {
		return b, apperr.Validation("listing.Filter", fields)
	}
	return b, nil
}

// Order adds ordering and paging for resource.
func Order(b sq.SelectBuilder, q Query, resource any) (sq.SelectBuilder, error) {
	if s, ok := resource.(Sortable); ok {
		key, desc := q.Sort, q.Desc
		if key == "" {
			def := s.DefaultSort()
			key, desc = strings.TrimPrefix(def, "-"), strings.HasPrefix(def, "-")
		}
		col, ok := s.SortColumns()[key]
		if !ok {
			return b, apperr.Validation("listing.Order", map[string]string{"ordering": "unknown sort key"})
		}
		dir := " ASC"
		if desc {
			dir = " DESC"
		}
		b = b.OrderBy(col + dir)
	} else if q.Sort != "" {
		return b, apperr.Validation("listing.Order", map[string]string{"ordering": "not supported"})
	}
	return b.Limit(q.Limit(resource)).Offset(q.Offset(resource)), nil
}
