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

// Package search maintains the unified search index of a franchise.
//
// Every indexed entity owns at most one row whose text is unique within the
// franchise. Collisions are resolved by suffixing the entity key, so saving an
// entity never fails because another entity displays the same way.
package search

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/over55/workery/internal/apperr"
	"github.com/over55/workery/internal/listing"
	"github.com/over55/workery/internal/tenant"
)

// MaxTextLength bounds the stored text in characters.
const MaxTextLength = 511

// maxCandidates bounds the disambiguation loop.
const maxCandidates = 16

// ErrTextTaken is returned by Store.Upsert when another row holds the text.
var ErrTextTaken = apperr.New(apperr.EConflict, "search text already indexed")

// Kind names an indexable entity type.
type Kind string

const (
	KindCustomer  Kind = "customer"
	KindAssociate Kind = "associate"
	KindStaff     Kind = "staff"
	KindPartner   Kind = "partner"
	KindWorkOrder Kind = "work_order"
)

// Valid reports whether k is indexable.
func (k Kind) Valid() bool {
	switch k {
	case KindCustomer, KindAssociate, KindStaff, KindPartner, KindWorkOrder:
		return true
	}
	return false
}

// Key identifies the entity behind a search row.
type Key struct {
	Kind Kind
	ID   int64
}

func (k Key) String() string {
	return string(k.Kind) + "#" + strconv.FormatInt(k.ID, 10)
}

// Indexable is implemented by entities that appear in search.
type Indexable interface {
	SearchKey() Key
	SearchText() string
	Archived() bool
}

// Item is a search hit.
type Item struct {
	Kind       Kind   `json:"kind"`
	EntityID   int64  `json:"entity_id"`
	Text       string `json:"text"`
	IsArchived bool   `json:"is_archived"`
}

// Store writes search rows inside the caller's transaction.
type Store interface {
	// UpsertSearchItem writes the row for key. It returns ErrTextTaken, leaving
	// the transaction usable, when text belongs to another key.
	UpsertSearchItem(ctx context.Context, key Key, text string, archived bool) error
	SetSearchArchived(ctx context.Context, key Key, archived bool) error
}

// Reader queries the index.
type Reader interface {
	Search(ctx context.Context, scope tenant.Scope, text string, q listing.Query) (listing.Page[Item], error)
}

// Candidates returns the texts tried for key, in order.
func Candidates(key Key, base string) []string {
	base = normalize(base)
	if base == "" {
		base = key.String()
	}
	out := make([]string, 0, maxCandidates)
	out = append(out, truncate(base, MaxTextLength))
	suffix := " [" + key.String() + "]"
	out = append(out, truncate(base, MaxTextLength-utf8.RuneCountInString(suffix))+suffix)
	for n := 2; len(out) < maxCandidates; n++ {
		s := suffix + "~" + strconv.Itoa(n)
		out = append(out, truncate(base, MaxTextLength-utf8.RuneCountInString(s))+s)
	}
	return out
}

// Reindex recomputes the search row of e inside tx.
func Reindex(ctx context.Context, tx Store, e Indexable) (string, error) {
	key := e.SearchKey()
	for _, text := range Candidates(key, e.SearchText()) {
		err := tx.UpsertSearchItem(ctx, key, text, e.Archived())
		if err == nil {
			return text, nil
		}
		if !errors.Is(err, ErrTextTaken) {
			return "", apperr.Wrap("search.Reindex", err)
		}
	}
	return "", apperr.Internal("search.Reindex", fmt.Errorf("no free search text for %s", key))
}

// Join builds a base text from display parts, skipping blanks.
func Join(parts ...string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, " ")
}

func normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:n]))
}
