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
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/over55/workery/internal/accesscode"
	"github.com/over55/workery/internal/identity"
)

// AccessCodeRepository implements accesscode.Repository. Codes live on the
// account row, so an account holds at most one.
type AccessCodeRepository struct {
	db *DB
}

// NewAccessCodeRepository creates a new access code repository
func NewAccessCodeRepository(db *DB) *AccessCodeRepository {
	return &AccessCodeRepository{db: db}
}

const holderQuery = `
	SELECT id, email, access_code_purpose, access_code_issued_at, was_activated
	FROM accounts
	WHERE access_code = $1`

func scanHolder(row pgx.Row) (*accesscode.Holder, error) {
	var h accesscode.Holder
	var purpose string
	if err := row.Scan(&h.AccountID, &h.Email, &purpose, &h.IssuedAt, &h.WasActivated); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, accesscode.ErrCodeNotFound
		}
		return nil, fmt.Errorf("failed to get access code: %w", err)
	}
	h.Purpose = accesscode.Purpose(purpose)
	return &h, nil
}

// StoreCode overwrites the account's outstanding code.
func (r *AccessCodeRepository) StoreCode(ctx context.Context, accountID, code string, purpose accesscode.Purpose, issuedAt time.Time) error {
	result, err := r.db.pool.Exec(ctx, `
		UPDATE accounts
		SET access_code = $2, access_code_purpose = $3, access_code_issued_at = $4, updated_at = NOW()
		WHERE id = $1
	`, accountID, code, string(purpose), issuedAt)
	if err != nil {
		return fmt.Errorf("failed to store access code: %w", err)
	}
	if result.RowsAffected() == 0 {
		return identity.ErrAccountNotFound
	}
	return nil
}

// FindByCode looks a code up without locking.
func (r *AccessCodeRepository) FindByCode(ctx context.Context, code string) (*accesscode.Holder, error) {
	return scanHolder(r.db.pool.QueryRow(ctx, holderQuery, code))
}

// WithTx runs fn inside one transaction.
func (r *AccessCodeRepository) WithTx(ctx context.Context, fn func(ctx context.Context, tx accesscode.Tx) error) error {
	return r.db.inTx(ctx, func(tx pgx.Tx) error {
		return fn(ctx, codeTx{tx: tx})
	})
}

// ClearExpired removes codes issued before cutoff.
func (r *AccessCodeRepository) ClearExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.pool.Exec(ctx, `
		UPDATE accounts
		SET access_code = NULL, access_code_purpose = NULL, access_code_issued_at = NULL
		WHERE access_code IS NOT NULL AND access_code_issued_at < $1
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to clear expired access codes: %w", err)
	}
	return result.RowsAffected(), nil
}

type codeTx struct {
	tx pgx.Tx
}

func (t codeTx) LockByCode(ctx context.Context, code string) (*accesscode.Holder, error) {
	return scanHolder(t.tx.QueryRow(ctx, holderQuery+` FOR UPDATE`, code))
}

func (t codeTx) MarkActivated(ctx context.Context, accountID string) error {
	_, err := t.tx.Exec(ctx, `UPDATE accounts SET was_activated = TRUE, updated_at = NOW() WHERE id = $1`, accountID)
	if err != nil {
		return fmt.Errorf("failed to activate account: %w", err)
	}
	return nil
}

func (t codeTx) SetPassword(ctx context.Context, accountID, passwordHash string) error {
	return setPassword(ctx, t.tx, accountID, passwordHash)
}

func (t codeTx) ClearCode(ctx context.Context, accountID string) error {
	_, err := t.tx.Exec(ctx, `
		UPDATE accounts
		SET access_code = NULL, access_code_purpose = NULL, access_code_issued_at = NULL, updated_at = NOW()
		WHERE id = $1
	`, accountID)
	if err != nil {
		return fmt.Errorf("failed to clear access code: %w", err)
	}
	return nil
}
