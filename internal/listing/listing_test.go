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

package listing

import (
	"net/url"
	"testing"

	sq "github.com/Masterminds/squirrel"
	"github.com/over55/workery/internal/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type orders struct{}

func (orders) MaxPageSize() uint64 { return 50 }
func (orders) FilterColumns() map[string]string {
	return map[string]string{"state": "o.state", "customer": "o.customer_id"}
}
func (orders) SortColumns() map[string]string {
	return map[string]string{"id": "o.id", "completion_date": "o.completion_date"}
}
func (orders) DefaultSort() string    { return "id" }
func (orders) ArchivedColumn() string { return "o.is_archived" }

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

func TestFromValues(t *testing.T) {
	q, err := FromValues(url.Values{
		"page":      {"3"},
		"page_size": {"10"},
		"ordering":  {"-completion_date"},
		"state":     {"PENDING"},
		"q":         {"ignored"},
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(3), q.Page)
	assert.Equal(t, "completion_date", q.Sort)
	assert.True(t, q.Desc)
	assert.Equal(t, map[string]string{"state": "PENDING"}, q.Filters)
	assert.Equal(t, uint64(20), q.Offset(orders{}))

	_, err = FromValues(url.Values{"page": {"zero"}, "include_archived": {"maybe"}})
	assert.Equal(t, apperr.EValidation, apperr.ErrorCode(err))
	assert.Len(t, apperr.ErrorFields(err), 2)
}

// TestPurpose: Validates that default listings exclude archived rows.
// Scope: Unit Test
// Expected: The archived predicate is present unless include_archived is set.
// Test Case ID: LST-01
func TestFilter_ArchivedHiddenByDefault(t *testing.T) {
	b, err := Filter(psql.Select("o.id").From("orders o"), Query{}, orders{})
	require.NoError(t, err)
	sql, args, err := b.ToSql()
	require.NoError(t, err)
	assert.Equal(t, "SELECT o.id FROM orders o WHERE o.is_archived = $1", sql)
	assert.Equal(t, []any{false}, args)

	b, err = Filter(psql.Select("o.id").From("orders o"), Query{IncludeArchived: true}, orders{})
	require.NoError(t, err)
	sql, _, _ = b.ToSql()
	assert.Equal(t, "SELECT o.id FROM orders o", sql)
}

func TestFilter_UnknownKeyRejected(t *testing.T) {
	_, err := Filter(psql.Select("o.id").From("orders o"), Query{Filters: map[string]string{"password": "x"}}, orders{})
	assert.Equal(t, apperr.EValidation, apperr.ErrorCode(err))
	assert.Contains(t, apperr.ErrorFields(err), "password")
}

func TestOrder_WhitelistAndPageBound(t *testing.T) {
	b, err := Order(psql.Select("o.id").From("orders o"), Query{Page: 2, PageSize: 500, Sort: "completion_date", Desc: true}, orders{})
	require.NoError(t, err)
	sql, _, err := b.ToSql()
	require.NoError(t, err)
	assert.Equal(t, "SELECT o.id FROM orders o ORDER BY o.completion_date DESC LIMIT 50 OFFSET 50", sql)

	_, err = Order(psql.Select("o.id").From("orders o"), Query{Sort: "o.id; DROP TABLE orders"}, orders{})
	assert.Equal(t, apperr.EValidation, apperr.ErrorCode(err))
}
