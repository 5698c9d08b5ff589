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
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/over55/workery/internal/apperr"
	"github.com/over55/workery/internal/listing"
	"github.com/over55/workery/internal/tenant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memoryIndex enforces text uniqueness like the database constraint.
type memoryIndex struct {
	byKey  map[Key]string
	byText map[string]Key
	fail   error
}

func newMemoryIndex() *memoryIndex {
	return &memoryIndex{byKey: map[Key]string{}, byText: map[string]Key{}}
}

func (m *memoryIndex) UpsertSearchItem(_ context.Context, key Key, text string, _ bool) error {
	if m.fail != nil {
		return m.fail
	}
	if owner, ok := m.byText[text]; ok && owner != key {
		return ErrTextTaken
	}
	if old, ok := m.byKey[key]; ok {
		delete(m.byText, old)
	}
	m.byKey[key] = text
	m.byText[text] = key
	return nil
}

func (m *memoryIndex) SetSearchArchived(context.Context, Key, bool) error { return nil }

type entity struct {
	key  Key
	text string
}

func (e entity) SearchKey() Key     { return e.key }
func (e entity) SearchText() string { return e.text }
func (e entity) Archived() bool     { return false }

func TestCandidates(t *testing.T) {
	got := Candidates(Key{Kind: KindCustomer, ID: 7}, "  Bart   Simpson ")
	assert.Equal(t, "Bart Simpson", got[0])
	assert.Equal(t, "Bart Simpson [customer#7]", got[1])
	assert.Equal(t, "Bart Simpson [customer#7]~2", got[2])
	assert.Len(t, got, maxCandidates)

	empty := Candidates(Key{Kind: KindStaff, ID: 1}, "   ")
	assert.Equal(t, "staff#1", empty[0])
}

func TestCandidates_RespectMaxLength(t *testing.T) {
	long := strings.Repeat("é", 600)
	for _, c := range Candidates(Key{Kind: KindAssociate, ID: 123456}, long) {
		assert.LessOrEqual(t, utf8.RuneCountInString(c), MaxTextLength)
	}
}

// TestPurpose: Validates tenant-wide uniqueness of search text.
// Scope: Unit Test
// Expected: Entities sharing a display name all index, each under a distinct text, and reindexing is stable.
// Test Case ID: SRC-01
func TestReindex_DisambiguatesCollisions(t *testing.T) {
	ctx := context.Background()
	idx := newMemoryIndex()

	// A partner whose name already looks like a disambiguated customer.
	_, err := Reindex(ctx, idx, entity{Key{KindPartner, 1}, "Bart Simpson [customer#2]"})
	require.NoError(t, err)

	seen := map[string]bool{}
	for id := int64(1); id <= 3; id++ {
		text, err := Reindex(ctx, idx, entity{Key{KindCustomer, id}, "Bart Simpson"})
		require.NoError(t, err)
		assert.False(t, seen[text], text)
		seen[text] = true
	}
	assert.True(t, seen["Bart Simpson"])
	assert.True(t, seen["Bart Simpson [customer#2]~2"])
	assert.Len(t, idx.byText, len(idx.byKey))

	again, err := Reindex(ctx, idx, entity{Key{KindCustomer, 1}, "Bart Simpson"})
	require.NoError(t, err)
	assert.Equal(t, "Bart Simpson", again)
}

func TestReindex_PropagatesStoreErrors(t *testing.T) {
	idx := newMemoryIndex()
	idx.fail = errors.New("connection refused")
	_, err := Reindex(context.Background(), idx, entity{Key{KindCustomer, 1}, "x"})
	assert.Equal(t, apperr.EInternal, apperr.ErrorCode(err))
}

type stubReader struct {
	gotText string
}

func (s *stubReader) Search(_ context.Context, _ tenant.Scope, text string, _ listing.Query) (listing.Page[Item], error) {
	s.gotText = text
	return listing.Page[Item]{Results: []Item{{Kind: KindCustomer, EntityID: 1, Text: "Bart Simpson"}}, Count: 1}, nil
}

func TestService_Search(t *testing.T) {
	reader := &stubReader{}
	svc := NewService(reader)
	scope := tenant.Scope{FranchiseID: "f-1", Schema: "london"}

	_, err := svc.Search(context.Background(), scope, "   ", listing.Query{})
	assert.Equal(t, apperr.EValidation, apperr.ErrorCode(err))

	_, err = svc.Search(context.Background(), scope, "bart", listing.Query{Filters: map[string]string{"kind": "file"}})
	assert.Equal(t, apperr.EValidation, apperr.ErrorCode(err))

	page, err := svc.Search(context.Background(), scope, "  bart  simpson ", listing.Query{})
	require.NoError(t, err)
	assert.Equal(t, "bart simpson", reader.gotText)
	assert.Equal(t, 1, page.Count)
}
