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
	_ "embed"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/over55/workery/internal/provision"
	"github.com/over55/workery/internal/tenant"
)

//go:embed tenant_schema.sql
var tenantSchema string

// Provisioner implements provision.SchemaProvisioner.
type Provisioner struct {
	db *DB
}

func NewProvisioner(db *DB) *Provisioner {
	return &Provisioner{db: db}
}

// Provision creates the franchise schema, its tables and seed rows, then
// marks the franchise ACTIVE. Everything commits together or not at all, and
// every statement tolerates a previous partial run.
func (p *Provisioner) Provision(ctx context.Context, target provision.Target, seed *provision.Seed) error {
	ident := pgx.Identifier{target.Schema}.Sanitize()

	return p.db.inTx(ctx, func(tx pgx.Tx) error {
		// Serializes redeliveries of the same job.
		var status string
		err := tx.QueryRow(ctx, `
			SELECT status FROM public.franchises WHERE id = $1 AND schema_name = $2 FOR UPDATE
		`, target.FranchiseID, target.Schema).Scan(&status)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return tenant.ErrFranchiseNotFound
			}
			return fmt.Errorf("failed to lock franchise: %w", err)
		}
		if tenant.Status(status) == tenant.StatusActive {
			return nil
		}

		if _, err := tx.Exec(ctx, `CREATE SCHEMA IF NOT EXISTS `+ident); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
		if _, err := tx.Exec(ctx, `SET LOCAL search_path TO `+ident); err != nil {
			return fmt.Errorf("failed to select schema: %w", err)
		}
		if _, err := tx.Exec(ctx, tenantSchema); err != nil {
			return fmt.Errorf("failed to create tenant tables: %w", err)
		}
		if err := insertSeed(ctx, tx, seed); err != nil {
			return err
		}

		_, err = tx.Exec(ctx, `
			UPDATE public.franchises
			SET status = 'ACTIVE', provision_attempts = $2, last_error = '', provisioned_at = $3, updated_at = $3
			WHERE id = $1
		`, target.FranchiseID, target.Attempt, target.At)
		if err != nil {
			return fmt.Errorf("failed to activate franchise: %w", err)
		}
		return nil
	})
}

func insertSeed(ctx context.Context, tx pgx.Tx, seed *provision.Seed) error {
	if seed == nil {
		return nil
	}
	b := &pgx.Batch{}
	for _, t := range seed.Tags {
		b.Queue(`INSERT INTO tags (name, description) VALUES ($1, $2) ON CONFLICT (name) DO NOTHING`, t.Name, t.Description)
	}
	for _, s := range seed.SkillSets {
		b.Queue(`
			INSERT INTO skill_sets (category, sub_category, description) VALUES ($1, $2, $3)
			ON CONFLICT (category, sub_category) DO NOTHING
		`, s.Category, s.SubCategory, s.Description)
	}
	for _, h := range seed.HowHearOptions {
		b.Queue(`INSERT INTO how_hear_options (text, sort_number) VALUES ($1, $2) ON CONFLICT (text) DO NOTHING`, h.Text, h.SortNumber)
	}
	if b.Len() == 0 {
		return nil
	}
	if err := tx.SendBatch(ctx, b).Close(); err != nil {
		return fmt.Errorf("failed to insert seed data: %w", err)
	}
	return nil
}
