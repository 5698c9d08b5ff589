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

package identity

import (
	"context"
	"strings"
	"time"

	"github.com/over55/workery/internal/apperr"
	"github.com/over55/workery/internal/authz"
)

// Domain errors
var (
	ErrAccountNotFound     = apperr.New(apperr.ENotFound, "account not found")
	ErrAccountExists       = apperr.New(apperr.EConflict, "account already exists")
	ErrInvalidCredentials  = apperr.New(apperr.EUnauthorized, "invalid credentials")
	ErrInvalidEmail        = apperr.New(apperr.EValidation, "invalid email address")
	ErrInvalidUsername     = apperr.New(apperr.EValidation, "invalid username")
	ErrWeakPassword        = apperr.New(apperr.EValidation, "password does not meet security requirements")
	ErrAccountLocked       = apperr.New(apperr.EForbidden, "account is locked")
	ErrAccountNotActivated = apperr.New(apperr.EForbidden, "account has not been activated")
	ErrRoleScope           = apperr.New(apperr.EValidation, "root accounts cannot belong to a franchise and tenant accounts must")
)

// Account is a shared-schema login. An account with no franchise is a root
// account and manages franchises themselves.
type Account struct {
	ID                  string
	Email               string
	Username            string
	FranchiseID         *string
	Role                authz.Role
	FirstName           string
	LastName            string
	WasActivated        bool
	FailedLoginAttempts int
	LockedUntil         *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// IsRoot reports whether the account is not bound to any franchise.
func (a *Account) IsRoot() bool {
	return a.FranchiseID == nil
}

// HomeFranchise returns the franchise id or "" for root accounts.
func (a *Account) HomeFranchise() string {
	if a.FranchiseID == nil {
		return ""
	}
	return *a.FranchiseID
}

// IsLocked reports whether a lockout is in force at now.
func (a *Account) IsLocked(now time.Time) bool {
	return a.LockedUntil != nil && a.LockedUntil.After(now)
}

// Credentials represents account authentication credentials
type Credentials struct {
	AccountID    string
	PasswordHash string
	UpdatedAt    time.Time
}

// NormalizeLogin folds an email or username to its stored form.
func NormalizeLogin(login string) string {
	return strings.ToLower(strings.TrimSpace(login))
}

// AccountRepository defines the interface for account persistence
type AccountRepository interface {
	// Create stores a new account with its credentials. Returns ErrAccountExists
	// when the email or username is taken.
	Create(ctx context.Context, account *Account, credentials *Credentials) error

	// GetByID retrieves an account by ID
	GetByID(ctx context.Context, id string) (*Account, error)

	// FindByLogin returns every account whose email OR username equals login.
	FindByLogin(ctx context.Context, login string) ([]*Account, error)

	// GetCredentials retrieves account credentials
	GetCredentials(ctx context.Context, accountID string) (*Credentials, error)

	// UpdatePassword replaces the password hash
	UpdatePassword(ctx context.Context, accountID, passwordHash string) error

	// UpdateLockout updates the failed-attempt counter and lock window
	UpdateLockout(ctx context.Context, accountID string, failedAttempts int, lockedUntil *time.Time) error

	// RecordFailedLogin atomically increments the failed-attempt counter and,
	// once it reaches maxAttempts, sets the lock window to lockUntil. It
	// returns the new count and whether the account is now locked.
	RecordFailedLogin(ctx context.Context, accountID string, maxAttempts int, lockUntil time.Time) (int, bool, error)

	// CountRoots returns the number of root accounts.
	CountRoots(ctx context.Context) (int, error)
}
