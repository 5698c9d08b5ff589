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
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/over55/workery/internal/tenant"
)

var franchiseColumns = []string{
	"id", "schema_name", "name", "alternate_name", "description", "url", "timezone",
	"country", "region", "locality", "postal_code", "street_address", "street_address_extra", "post_office_box_number",
	"status", "provision_attempts", "last_error", "provisioned_at", "is_archived", "created_at", "updated_at",
}

// FranchiseRepository implements tenant.Repository on the shared franchises
// table.
type FranchiseRepository struct {
	db *DB
}

func NewFranchiseRepository(db *DB) *FranchiseRepository {
	return &FranchiseRepository{db: db}
}

func scanFranchise(row scanner) (*tenant.Franchise, error) {
	var f tenant.Franchise
	var status string
	err := row.Scan(
		&f.ID, &f.SchemaName, &f.Name, &f.AlternateName, &f.Description, &f.URL, &f.Timezone,
		&f.Address.Country, &f.Address.Region, &f.Address.Locality, &f.Address.PostalCode,
		&f.Address.StreetAddress, &f.Address.StreetAddressExtra, &f.Address.PostOfficeBoxNumber,
		&status, &f.ProvisionAttempts, &f.LastError, &f.ProvisionedAt, &f.IsArchived, &f.CreatedAt, &f.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	f.Status = tenant.Status(status)
	return &f, nil
}

// Create stores a PENDING franchise.
func (r *FranchiseRepository) Create(ctx context.Context, f *tenant.Franchise) error {
	now := time.Now()
	a := f.Address
	_, err := exec(ctx, r.db.pool, psql.Insert("franchises").
		Columns(
			"id", "schema_name", "name", "alternate_name", "description", "url", "timezone",
			"country", "region", "locality", "postal_code", "street_address", "street_address_extra", "post_office_box_number",
			"status", "created_at", "updated_at",
		).
		Values(
			f.ID, f.SchemaName, f.Name, f.AlternateName, f.Description, f.URL, f.Timezone,
			a.Country, a.Region, a.Locality, a.PostalCode, a.StreetAddress, a.StreetAddressExtra, a.PostOfficeBoxNumber,
			string(tenant.StatusPending), now, now,
		))
	if err != nil {
		if isUnique(err, "franchises_schema_name_key") {
			return tenant.ErrSchemaTaken
		}
		return fmt.Errorf("failed to insert franchise: %w", err)
	}
	f.Status = tenant.StatusPending
	f.CreatedAt = now
	f.UpdatedAt = now
	return nil
}

func (r *FranchiseRepository) get(ctx context.Context, where sq.Eq) (*tenant.Franchise, error) {
	f, err := scanFranchise(queryRow(ctx, r.db.pool, psql.Select(franchiseColumns...).From("franchises").Where(where)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, tenant.ErrFranchiseNotFound
		}
		return nil, fmt.Errorf("failed to get franchise: %w", err)
	}
	return f, nil
}

func (r *FranchiseRepository) GetByID(ctx context.Context, id string) (*tenant.Franchise, error) {
	return r.get(ctx, sq.Eq{"id": id})
}

func (r *FranchiseRepository) GetBySchema(ctx context.Context, schemaName string) (*tenant.Franchise, error) {
	return r.get(ctx, sq.Eq{"schema_name": schemaName})
}

// List returns one page of franchises and the total matching count.
func (r *FranchiseRepository) List(ctx context.Context, filter tenant.ListFilter) ([]*tenant.Franchise, int, error) {
	where := sq.And{}
	if !filter.IncludeArchived {
		where = append(where, sq.Eq{"is_archived": false})
	}
	if filter.Status != "" {
		where = append(where, sq.Eq{"status": string(filter.Status)})
	}

	var total int
	if err := queryRow(ctx, r.db.pool, psql.Select("count(*)").From("franchises").Where(where)).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count franchises: %w", err)
	}

	b := psql.Select(franchiseColumns...).From("franchises").Where(where).OrderBy("schema_name")
	if filter.Limit > 0 {
		b = b.Limit(uint64(filter.Limit)).Offset(uint64(max(filter.Offset, 0)))
	}
	sql, args, err := b.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build franchise query: %w", err)
	}
	rows, err := r.db.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list franchises: %w", err)
	}
	defer rows.Close()

	var out []*tenant.Franchise
	for rows.Next() {
		f, err := scanFranchise(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan franchise: %w", err)
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("rows iteration error: %w", err)
	}
	return out, total, nil
}

// RecordFailure stores a failed attempt. An ACTIVE franchise is never moved
// back, so a late failure report after success is ignored.
func (r *FranchiseRepository) RecordFailure(ctx context.Context, id string, attempts int, lastError string, terminal bool) error {
	set := psql.Update("franchises").
		Set("provision_attempts", attempts).
		Set("last_error", lastError).
		Set("updated_at", time.Now()).
		Where(sq.Eq{"id": id}).
		Where(sq.NotEq{"status": string(tenant.StatusActive)})
	if terminal {
		set = set.Set("status", string(tenant.StatusFailed))
	}
	if _, err := exec(ctx, r.db.pool, set); err != nil {
		return fmt.Errorf("failed to record provisioning failure: %w", err)
	}
	return nil
}

func (r *FranchiseRepository) SetArchived(ctx context.Context, id string, archived bool) error {
	result, err := r.db.pool.Exec(ctx, `
		UPDATE franchises SET is_archived = $2, updated_at = NOW() WHERE id = $1
	`, id, archived)
	if err != nil {
		return fmt.Errorf("failed to archive franchise: %w", err)
	}
	if result.RowsAffected() == 0 {
		return tenant.ErrFranchiseNotFound
	}
	return nil
}

// ResetForRetry moves a FAILED franchise, or a PENDING one untouched since
// staleBefore, back to PENDING.
func (r *FranchiseRepository) ResetForRetry(ctx context.Context, id string, staleBefore time.Time) error {
	result, err := r.db.pool.Exec(ctx, `
		UPDATE franchises
		SET status = 'PENDING', provision_attempts = 0, last_error = '', updated_at = NOW()
		WHERE id = $1
		  AND (status = 'FAILED' OR (status = 'PENDING' AND updated_at < $2))
	`, id, staleBefore)
	if err != nil {
		return fmt.Errorf("failed to reset franchise: %w", err)
	}
	if result.RowsAffected() == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return tenant.ErrNotRetryable
	}
	return nil
}

// ClaimStalePending touches and returns orphaned PENDING franchises. SKIP
// LOCKED keeps concurrent sweepers from claiming the same rows.
func (r *FranchiseRepository) ClaimStalePending(ctx context.Context, staleBefore time.Time, limit int) ([]*tenant.Franchise, error) {
	rows, err := r.db.pool.Query(ctx, `
		UPDATE franchises SET updated_at = NOW()
		WHERE id IN (
			SELECT id FROM franchises
			WHERE status = 'PENDING' AND NOT is_archived AND updated_at < $1
			ORDER BY created_at
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+strings.Join(franchiseColumns, ", "), staleBefore, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to claim stale franchises: %w", err)
	}
	defer rows.Close()

	var out []*tenant.Franchise
	for rows.Next() {
		f, err := scanFranchise(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan franchise: %w", err)
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return out, nil
}
