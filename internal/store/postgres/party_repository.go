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
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/over55/workery/internal/listing"
	"github.com/over55/workery/internal/party"
	"github.com/over55/workery/internal/search"
	"github.com/over55/workery/internal/tenant"
)

func partyColumns(s schema) []string {
	return []string{
		"p.id", "p.kind", "p.given_name", "p.middle_name", "p.last_name", "p.organization_name",
		"p.email", "p.telephone", "p.locality", "p.region", "p.postal_code", "p.street_address",
		"p.how_hear_id", "p.account_id", "p.is_archived",
		"p.created_by", "p.created_from", "p.created_from_is_public", "p.last_modified_by", "p.last_modified_from",
		"p.created_at", "p.updated_at",
		"COALESCE((SELECT array_agg(t.tag_id ORDER BY t.tag_id) FROM " + s.table("party_tags") + " t WHERE t.party_id = p.id), '{}')",
		"COALESCE((SELECT array_agg(k.skill_set_id ORDER BY k.skill_set_id) FROM " + s.table("party_skill_sets") + " k WHERE k.party_id = p.id), '{}')",
	}
}

func scanParty(row scanner) (*party.Party, error) {
	var p party.Party
	var kind string
	err := row.Scan(
		&p.ID, &kind, &p.GivenName, &p.MiddleName, &p.LastName, &p.OrganizationName,
		&p.Email, &p.Telephone, &p.Locality, &p.Region, &p.PostalCode, &p.StreetAddress,
		&p.HowHearID, &p.AccountID, &p.IsArchived,
		&p.CreatedBy, &p.CreatedFrom, &p.CreatedFromPub, &p.LastModifiedBy, &p.LastModifiedFrom,
		&p.CreatedAt, &p.UpdatedAt,
		&p.TagIDs, &p.SkillSetIDs,
	)
	if err != nil {
		return nil, err
	}
	p.Kind = party.Kind(kind)
	return &p, nil
}

func getParty(ctx context.Context, q querier, s schema, kind party.Kind, id int64, suffix string) (*party.Party, error) {
	b := psql.Select(partyColumns(s)...).
		From(s.aliased("parties", "p")).
		Where(sq.Eq{"p.id": id, "p.kind": string(kind)})
	if suffix != "" {
		b = b.Suffix(suffix)
	}
	p, err := scanParty(queryRow(ctx, q, b))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, party.ErrPartyNotFound
		}
		return nil, fmt.Errorf("failed to get party: %w", err)
	}
	return p, nil
}

// PartyRepository implements party.Repository.
type PartyRepository struct {
	db *DB
}

func NewPartyRepository(db *DB) *PartyRepository {
	return &PartyRepository{db: db}
}

func (r *PartyRepository) WithTx(ctx context.Context, scope tenant.Scope, fn func(ctx context.Context, tx party.Tx) error) error {
	s, err := schemaOf(scope)
	if err != nil {
		return err
	}
	return r.db.inTx(ctx, func(tx pgx.Tx) error {
		return fn(ctx, partyTx{searchStore{tx: tx, schema: s}})
	})
}

func (r *PartyRepository) Get(ctx context.Context, scope tenant.Scope, kind party.Kind, id int64) (*party.Party, error) {
	s, err := schemaOf(scope)
	if err != nil {
		return nil, err
	}
	return getParty(ctx, r.db.pool, s, kind, id, "")
}

func (r *PartyRepository) List(ctx context.Context, scope tenant.Scope, kind party.Kind, q listing.Query) (listing.Page[*party.Party], error) {
	s, err := schemaOf(scope)
	if err != nil {
		return listing.Page[*party.Party]{}, err
	}
	from := func(columns ...string) sq.SelectBuilder {
		return psql.Select(columns...).
			From(s.aliased("parties", "p")).
			Where(sq.Eq{"p.kind": string(kind)})
	}
	return page(ctx, r.db.pool, from, partyColumns(s), q, party.Resource{Kind: kind}, scanParty)
}

func (r *PartyRepository) ListComments(ctx context.Context, scope tenant.Scope, kind party.Kind, id int64) ([]*party.Comment, error) {
	s, err := schemaOf(scope)
	if err != nil {
		return nil, err
	}
	if _, err := getParty(ctx, r.db.pool, s, kind, id, ""); err != nil {
		return nil, err
	}
	return listComments(ctx, r.db.pool, s, "party_comments", "party_id", id)
}

func listComments(ctx context.Context, q querier, s schema, through, column string, id int64) ([]*party.Comment, error) {
	rows, err := q.Query(ctx, fmt.Sprintf(`
		SELECT c.id, c.text, c.created_by, c.created_at
		FROM %s c
		JOIN %s x ON x.comment_id = c.id
		WHERE x.%s = $1
		ORDER BY c.created_at, c.id
	`, s.table("comments"), s.table(through), column), id)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	defer rows.Close()

	out := []*party.Comment{}
	for rows.Next() {
		var c party.Comment
		if err := rows.Scan(&c.ID, &c.Text, &c.CreatedBy, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan comment: %w", err)
		}
		out = append(out, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return out, nil
}

func addComment(ctx context.Context, tx pgx.Tx, s schema, through, column string, id int64, c *party.Comment) error {
	err := tx.QueryRow(ctx, `
		INSERT INTO `+s.table("comments")+` (text, created_by, created_at) VALUES ($1, $2, $3) RETURNING id
	`, c.Text, c.CreatedBy, c.CreatedAt).Scan(&c.ID)
	if err != nil {
		return fmt.Errorf("failed to insert comment: %w", err)
	}
	_, err = tx.Exec(ctx, fmt.Sprintf(`INSERT INTO %s (%s, comment_id) VALUES ($1, $2)`, s.table(through), column), id, c.ID)
	if err != nil {
		return fmt.Errorf("failed to link comment: %w", err)
	}
	return nil
}

type partyTx struct {
	searchStore
}

func (t partyTx) Insert(ctx context.Context, p *party.Party) error {
	err := queryRow(ctx, t.tx, psql.Insert(t.schema.table("parties")).
		Columns(
			"kind", "given_name", "middle_name", "last_name", "organization_name", "email", "telephone",
			"locality", "region", "postal_code", "street_address", "how_hear_id", "account_id", "is_archived",
			"created_by", "created_from", "created_from_is_public", "last_modified_by", "last_modified_from",
			"created_at", "updated_at",
		).
		Values(
			string(p.Kind), p.GivenName, p.MiddleName, p.LastName, p.OrganizationName, p.Email, p.Telephone,
			p.Locality, p.Region, p.PostalCode, p.StreetAddress, p.HowHearID, p.AccountID, p.IsArchived,
			p.CreatedBy, p.CreatedFrom, p.CreatedFromPub, p.LastModifiedBy, p.LastModifiedFrom,
			p.CreatedAt, p.UpdatedAt,
		).
		Suffix("RETURNING id")).Scan(&p.ID)
	if err != nil {
		return mapError("party.Insert", err, party.ErrPartyNotFound)
	}
	return t.replaceLabels(ctx, p)
}

func (t partyTx) Update(ctx context.Context, p *party.Party) error {
	result, err := exec(ctx, t.tx, psql.Update(t.schema.table("parties")).
		SetMap(map[string]any{
			"given_name":         p.GivenName,
			"middle_name":        p.MiddleName,
			"last_name":          p.LastName,
			"organization_name":  p.OrganizationName,
			"email":              p.Email,
			"telephone":          p.Telephone,
			"locality":           p.Locality,
			"region":             p.Region,
			"postal_code":        p.PostalCode,
			"street_address":     p.StreetAddress,
			"how_hear_id":        p.HowHearID,
			"account_id":         p.AccountID,
			"last_modified_by":   p.LastModifiedBy,
			"last_modified_from": p.LastModifiedFrom,
			"updated_at":         p.UpdatedAt,
		}).
		Where(sq.Eq{"id": p.ID, "kind": string(p.Kind)}))
	if err != nil {
		return mapError("party.Update", err, party.ErrPartyNotFound)
	}
	if result.RowsAffected() == 0 {
		return party.ErrPartyNotFound
	}
	return t.replaceLabels(ctx, p)
}

// replaceLabels rewrites the tag and skill set links of p.
func (t partyTx) replaceLabels(ctx context.Context, p *party.Party) error {
	b := &pgx.Batch{}
	b.Queue(`DELETE FROM `+t.schema.table("party_tags")+` WHERE party_id = $1`, p.ID)
	b.Queue(`DELETE FROM `+t.schema.table("party_skill_sets")+` WHERE party_id = $1`, p.ID)
	if len(p.TagIDs) > 0 {
		b.Queue(`INSERT INTO `+t.schema.table("party_tags")+` (party_id, tag_id)
			SELECT $1, unnest($2::bigint[]) ON CONFLICT DO NOTHING`, p.ID, p.TagIDs)
	}
	if len(p.SkillSetIDs) > 0 {
		b.Queue(`INSERT INTO `+t.schema.table("party_skill_sets")+` (party_id, skill_set_id)
			SELECT $1, unnest($2::bigint[]) ON CONFLICT DO NOTHING`, p.ID, p.SkillSetIDs)
	}
	if err := t.tx.SendBatch(ctx, b).Close(); err != nil {
		return mapError("party.labels", err, party.ErrPartyNotFound)
	}
	return nil
}

func (t partyTx) GetForUpdate(ctx context.Context, kind party.Kind, id int64) (*party.Party, error) {
	return getParty(ctx, t.tx, t.schema, kind, id, "FOR UPDATE OF p")
}

// IsReferenced reports whether any order, ongoing order or comment names the
// party.
func (t partyTx) IsReferenced(ctx context.Context, _ party.Kind, id int64) (bool, error) {
	var referenced bool
	err := t.tx.QueryRow(ctx, fmt.Sprintf(`
		SELECT EXISTS (SELECT 1 FROM %s WHERE customer_id = $1 OR associate_id = $1)
			OR EXISTS (SELECT 1 FROM %s WHERE customer_id = $1 OR associate_id = $1)
			OR EXISTS (SELECT 1 FROM %s WHERE party_id = $1)
	`, t.schema.table("work_orders"), t.schema.table("ongoing_work_orders"), t.schema.table("party_comments")), id).Scan(&referenced)
	if err != nil {
		return false, fmt.Errorf("failed to check party references: %w", err)
	}
	return referenced, nil
}

// Delete removes the party. Its labels and search row cascade.
func (t partyTx) Delete(ctx context.Context, kind party.Kind, id int64) error {
	result, err := exec(ctx, t.tx, psql.Delete(t.schema.table("parties")).Where(sq.Eq{"id": id, "kind": string(kind)}))
	if err != nil {
		return mapError("party.Delete", err, party.ErrPartyNotFound)
	}
	if result.RowsAffected() == 0 {
		return party.ErrPartyNotFound
	}
	return nil
}

func (t partyTx) AddComment(ctx context.Context, _ party.Kind, id int64, c *party.Comment) error {
	return addComment(ctx, t.tx, t.schema, "party_comments", "party_id", id, c)
}

func (t partyTx) TagNames(ctx context.Context, ids []int64) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := t.tx.Query(ctx, `SELECT name FROM `+t.schema.table("tags")+` WHERE id = ANY($1) ORDER BY name`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load tag names: %w", err)
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to load tag names: %w", err)
	}
	return names, nil
}

// ReferencingOrders loads the orders whose customer or associate is the party.
// The join reads the party row as updated in this transaction.
func (t partyTx) ReferencingOrders(ctx context.Context, _ party.Kind, id int64) ([]search.Indexable, error) {
	b := ordersFrom(t.schema)(orderColumns...).
		Where(sq.Or{sq.Eq{"o.customer_id": id}, sq.Eq{"o.associate_id": id}}).
		OrderBy("o.id")
	sql, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build order query: %w", err)
	}
	rows, err := t.tx.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to load referencing orders: %w", err)
	}
	defer rows.Close()

	var out []search.Indexable
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan work order: %w", err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return out, nil
}
