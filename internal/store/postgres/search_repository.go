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

package postgres

import (
	"context"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/over55/workery/internal/apperr"
	"github.com/over55/workery/internal/archive"
	"github.com/over55/workery/internal/listing"
	"github.com/over55/workery/internal/search"
	"github.com/over55/workery/internal/tenant"
)

// searchOwner returns the search_items column and unique constraint owning key.
func searchOwner(kind search.Kind) (column, constraint string) {
	if kind == search.KindWorkOrder {
		return "work_order_id", "search_items_work_order_key"
	}
	return "party_id", "search_items_party_key"
}

// searchStore writes search rows of one franchise inside tx.
type searchStore struct {
	tx     pgx.Tx
	schema schema
}

// UpsertSearchItem runs under a savepoint so a text collision leaves the
// enclosing transaction usable for the next candidate.
func (s searchStore) UpsertSearchItem(ctx context.Context, key search.Key, text string, archived bool) error {
	column, constraint := searchOwner(key.Kind)
	stmt := fmt.Sprintf(`
		INSERT INTO %s (text, kind, is_archived, %s, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT ON CONSTRAINT %s DO UPDATE
		SET text = EXCLUDED.text, kind = EXCLUDED.kind, is_archived = EXCLUDED.is_archived, updated_at = EXCLUDED.updated_at
	`, s.schema.table("search_items"), column, constraint)

	err := pgx.BeginFunc(ctx, s.tx, func(sp pgx.Tx) error {
		_, err := sp.Exec(ctx, stmt, text, string(key.Kind), archived, key.ID)
		return err
	})
	if err != nil {
		if isUnique(err, "search_items_text_key") {
			return search.ErrTextTaken
		}
		return fmt.Errorf("failed to index %s: %w", key, err)
	}
	return nil
}

func (s searchStore) SetSearchArchived(ctx context.Context, key search.Key, archived bool) error {
	column, _ := searchOwner(key.Kind)
	_, err := exec(ctx, s.tx, psql.Update(s.schema.table("search_items")).
		Set("is_archived", archived).
		Where(sq.Eq{column: key.ID}))
	if err != nil {
		return fmt.Errorf("failed to update search item: %w", err)
	}
	return nil
}

// SearchRepository implements search.Reader.
type SearchRepository struct {
	db *DB
}

func NewSearchRepository(db *DB) *SearchRepository {
	return &SearchRepository{db: db}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// Search matches text anywhere in the indexed text, ignoring case.
func (r *SearchRepository) Search(ctx context.Context, scope tenant.Scope, text string, q listing.Query) (listing.Page[search.Item], error) {
	s, err := schemaOf(scope)
	if err != nil {
		return listing.Page[search.Item]{}, err
	}
	pattern := "%" + likeEscaper.Replace(text) + "%"
	from := func(columns ...string) sq.SelectBuilder {
		return psql.Select(columns...).
			From(s.aliased("search_items", "s")).
			Where(sq.ILike{"s.text": pattern})
	}
	columns := []string{"s.kind", "COALESCE(s.party_id, s.work_order_id)", "s.text", "s.is_archived"}
	return page(ctx, r.db.pool, from, columns, q, search.Resource{}, func(row scanner) (search.Item, error) {
		var it search.Item
		var kind string
		err := row.Scan(&kind, &it.EntityID, &it.Text, &it.IsArchived)
		it.Kind = search.Kind(kind)
		return it, err
	})
}

// ArchiveRepository implements archive.Repository.
type ArchiveRepository struct {
	db *DB
}

func NewArchiveRepository(db *DB) *ArchiveRepository {
	return &ArchiveRepository{db: db}
}

func (r *ArchiveRepository) WithTx(ctx context.Context, scope tenant.Scope, fn func(ctx context.Context, tx archive.Tx) error) error {
	s, err := schemaOf(scope)
	if err != nil {
		return err
	}
	return r.db.inTx(ctx, func(tx pgx.Tx) error {
		return fn(ctx, archiveTx{searchStore{tx: tx, schema: s}})
	})
}

type archiveTx struct {
	searchStore
}

// SetArchived touches only is_archived so unarchiving restores the record
// exactly.
func (t archiveTx) SetArchived(ctx context.Context, kind search.Kind, id int64, archived bool) error {
	b := psql.Update(t.schema.table("work_orders")).Where(sq.Eq{"id": id})
	if kind != search.KindWorkOrder {
		b = psql.Update(t.schema.table("parties")).Where(sq.Eq{"id": id, "kind": string(kind)})
	}
	result, err := exec(ctx, t.tx, b.Set("is_archived", archived))
	if err != nil {
		return fmt.Errorf("failed to archive %s: %w", kind, err)
	}
	if result.RowsAffected() == 0 {
		return apperr.NotFound("archive.SetArchived", string(kind)+" not found")
	}
	return nil
}
