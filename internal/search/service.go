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

package search

import (
	"context"
	"maps"
	"strings"

	"github.com/over55/workery/internal/apperr"
	"github.com/over55/workery/internal/authz"
	"github.com/over55/workery/internal/listing"
	"github.com/over55/workery/internal/tenant"
)

// Resource describes the search listing.
type Resource struct{}

func (Resource) MaxPageSize() uint64              { return 100 }
func (Resource) ArchivedColumn() string           { return "s.is_archived" }
func (Resource) RequiredPermissions() []string    { return []string{authz.PermSearch} }
func (Resource) FilterColumns() map[string]string { return map[string]string{"kind": "s.kind"} }
func (Resource) DefaultSort() string              { return "text" }

func (Resource) SortColumns() map[string]string {
	return map[string]string{"text": "s.text", "kind": "s.kind", "updated_at": "s.updated_at"}
}

// Service answers search queries.
type Service struct {
	reader Reader
}

// NewService creates a search service.
func NewService(reader Reader) *Service {
	return &Service{reader: reader}
}

// Search returns rows whose text contains text, case-insensitively.
func (s *Service) Search(ctx context.Context, scope tenant.Scope, text string, q listing.Query) (listing.Page[Item], error) {
	const op = "search.Search"
	text = normalize(text)
	if text == "" {
		return listing.Page[Item]{}, apperr.Validation(op, map[string]string{"q": "required"})
	}
	if len(text) > MaxTextLength {
		return listing.Page[Item]{}, apperr.Validation(op, map[string]string{"q": "too long"})
	}
	if k, ok := q.Filters["kind"]; ok {
		k = strings.ToLower(k)
		if !Kind(k).Valid() {
			return listing.Page[Item]{}, apperr.Validation(op, map[string]string{"kind": "unknown kind"})
		}
		q.Filters = maps.Clone(q.Filters)
		q.Filters["kind"] = k
	}
	page, err := s.reader.Search(ctx, scope, text, q)
	if err != nil {
		return listing.Page[Item]{}, apperr.Wrap(op, err)
	}
	return page, nil
}
