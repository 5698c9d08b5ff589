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

	"github.com/over55/workery/internal/authz"
	"github.com/over55/workery/internal/identity"
)

const accountColumns = `id, email, username, franchise_id, role, first_name, last_name,
	was_activated, failed_login_attempts, locked_until, created_at, updated_at`

// AccountRepository implements identity.AccountRepository
type AccountRepository struct {
	db *DB
}

// NewAccountRepository creates a new account repository
func NewAccountRepository(db *DB) *AccountRepository {
	return &AccountRepository{db: db}
}

func scanAccount(row scanner) (*identity.Account, error) {
	var a identity.Account
	var role string
	err := row.Scan(
		&a.ID, &a.Email, &a.Username, &a.FranchiseID, &role, &a.FirstName, &a.LastName,
		&a.WasActivated, &a.FailedLoginAttempts, &a.LockedUntil, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	a.Role = authz.Role(role)
	return &a, nil
}

// Create stores the account and its credentials together.
func (r *AccountRepository) Create(ctx context.Context, account *identity.Account, credentials *identity.Credentials) error {
	now := time.Now()
	err := r.db.inTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO accounts (
				id, email, username, franchise_id, role, first_name, last_name,
				was_activated, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
		`,
			account.ID, account.Email, account.Username, account.FranchiseID, string(account.Role),
			account.FirstName, account.LastName, account.WasActivated, now,
		)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO credentials (account_id, password_hash, updated_at)
			VALUES ($1, $2, $3)
		`, account.ID, credentials.PasswordHash, now)
		return err
	})
	if err != nil {
		if isUnique(err, "") {
			return identity.ErrAccountExists
		}
		return fmt.Errorf("failed to insert account: %w", err)
	}

	account.CreatedAt = now
	account.UpdatedAt = now
	credentials.UpdatedAt = now
	return nil
}

// GetByID retrieves an account by ID
func (r *AccountRepository) GetByID(ctx context.Context, id string) (*identity.Account, error) {
	a, err := scanAccount(r.db.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, identity.ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return a, nil
}

// FindByLogin returns the accounts whose email or username is login. The
// caller decides what more than one match means.
func (r *AccountRepository) FindByLogin(ctx context.Context, login string) ([]*identity.Account, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE email = $1 OR username = $1
		LIMIT 2
	`, login)
	if err != nil {
		return nil, fmt.Errorf("failed to find account: %w", err)
	}
	defer rows.Close()

	var out []*identity.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return out, nil
}

// GetCredentials retrieves account credentials
func (r *AccountRepository) GetCredentials(ctx context.Context, accountID string) (*identity.Credentials, error) {
	var c identity.Credentials
	err := r.db.pool.QueryRow(ctx, `
		SELECT account_id, password_hash, updated_at
		FROM credentials
		WHERE account_id = $1
	`, accountID).Scan(&c.AccountID, &c.PasswordHash, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, identity.ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get credentials: %w", err)
	}
	return &c, nil
}

// UpdatePassword replaces the password hash
func (r *AccountRepository) UpdatePassword(ctx context.Context, accountID, passwordHash string) error {
	return setPassword(ctx, r.db.pool, accountID, passwordHash)
}

func setPassword(ctx context.Context, q querier, accountID, passwordHash string) error {
	result, err := q.Exec(ctx, `
		UPDATE credentials SET password_hash = $2, updated_at = NOW()
		WHERE account_id = $1
	`, accountID, passwordHash)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	if result.RowsAffected() == 0 {
		return identity.ErrAccountNotFound
	}
	return nil
}

// UpdateLockout updates the failed-attempt counter and lock window
func (r *AccountRepository) UpdateLockout(ctx context.Context, accountID string, failedAttempts int, lockedUntil *time.Time) error {
	_, err := r.db.pool.Exec(ctx, `
		UPDATE accounts
		SET failed_login_attempts = $1, locked_until = $2, updated_at = NOW()
		WHERE id = $3
	`, failedAttempts, lockedUntil, accountID)
	if err != nil {
		return fmt.Errorf("failed to update account lockout status: %w", err)
	}
	return nil
}

// RecordFailedLogin increments the counter in one statement so concurrent
// failures cannot lose updates.
func (r *AccountRepository) RecordFailedLogin(ctx context.Context, accountID string, maxAttempts int, lockUntil time.Time) (int, bool, error) {
	var (
		attempts int
		locked   bool
	)
	err := r.db.pool.QueryRow(ctx, `
		UPDATE accounts
		SET failed_login_attempts = failed_login_attempts + 1,
		    locked_until = CASE WHEN failed_login_attempts + 1 >= $2 THEN $3 ELSE locked_until END,
		    updated_at = NOW()
		WHERE id = $1
		RETURNING failed_login_attempts, failed_login_attempts >= $2
	`, accountID, maxAttempts, lockUntil).Scan(&attempts, &locked)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, identity.ErrAccountNotFound
		}
		return 0, false, fmt.Errorf("failed to record failed login: %w", err)
	}
	return attempts, locked, nil
}

// CountRoots returns the number of root accounts.
func (r *AccountRepository) CountRoots(ctx context.Context) (int, error) {
	var n int
	err := r.db.pool.QueryRow(ctx, `SELECT count(*) FROM accounts WHERE franchise_id IS NULL`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count root accounts: %w", err)
	}
	return n, nil
}
