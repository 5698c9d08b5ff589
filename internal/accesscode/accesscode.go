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

// Package accesscode issues and consumes single-use codes bound to an account.
//
// An account holds at most one outstanding code. Issuing a code overwrites the
// previous one, and consuming a code clears it in the same transaction that
// mutates the account.
package accesscode

import (
	"context"
	"time"

	"github.com/over55/workery/internal/apperr"
)

// Purpose names what a code may be used for.
type Purpose string

const (
	PurposeActivation    Purpose = "activation"
	PurposePasswordReset Purpose = "password_reset"
)

// Valid reports whether p is a known purpose.
func (p Purpose) Valid() bool {
	return p == PurposeActivation || p == PurposePasswordReset
}

// Errors
var (
	ErrCodeNotFound   = apperr.New(apperr.ENotFound, "access code not found")
	ErrCodeExpired    = apperr.New(apperr.EConflict, "access code expired")
	ErrUnknownPurpose = apperr.New(apperr.EValidation, "unknown access code purpose")
)

// Holder is the account currently holding a code.
type Holder struct {
	AccountID    string
	Email        string
	Purpose      Purpose
	IssuedAt     time.Time
	WasActivated bool
}

// Expired reports whether the code is older than ttl at now.
func (h *Holder) Expired(now time.Time, ttl time.Duration) bool {
	return now.Sub(h.IssuedAt) > ttl
}

// Repository persists codes on the account row.
type Repository interface {
	// StoreCode overwrites the account's outstanding code.
	StoreCode(ctx context.Context, accountID, code string, purpose Purpose, issuedAt time.Time) error

	// FindByCode looks a code up without locking. Returns ErrCodeNotFound.
	FindByCode(ctx context.Context, code string) (*Holder, error)

	// WithTx runs fn inside one transaction.
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	// ClearExpired removes codes issued before cutoff.
	ClearExpired(ctx context.Context, cutoff time.Time) (int64, error)
}

// Tx is the transactional view used to consume a code.
type Tx interface {
	// LockByCode selects the holder row FOR UPDATE. Returns ErrCodeNotFound.
	LockByCode(ctx context.Context, code string) (*Holder, error)
	MarkActivated(ctx context.Context, accountID string) error
	SetPassword(ctx context.Context, accountID, passwordHash string) error
	ClearCode(ctx context.Context, accountID string) error
}
