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
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/over55/workery/internal/apperr"
	"github.com/over55/workery/internal/audit"
	"github.com/over55/workery/internal/authz"
	"github.com/over55/workery/internal/id"
	"github.com/over55/workery/internal/validate"
	"golang.org/x/crypto/argon2"
)

// PasswordHasher handles password hashing using Argon2id
type PasswordHasher struct {
	memory      uint32
	iterations  uint32
	parallelism uint8
	saltLength  uint32
	keyLength   uint32
}

// NewPasswordHasher creates a new password hasher with Argon2id
func NewPasswordHasher(memory, iterations uint32, parallelism uint8, saltLength, keyLength uint32) *PasswordHasher {
	return &PasswordHasher{
		memory:      memory,
		iterations:  iterations,
		parallelism: parallelism,
		saltLength:  saltLength,
		keyLength:   keyLength,
	}
}

// Hash hashes a password using Argon2id
func (h *PasswordHasher) Hash(password string) (string, error) {
	salt := make([]byte, h.saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}

	hash := argon2.IDKey([]byte(password), salt, h.iterations, h.memory, h.parallelism, h.keyLength)

	// $argon2id$v=19$m=memory,t=iterations,p=parallelism$salt$hash
	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.memory,
		h.iterations,
		h.parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	), nil
}

// Verify verifies a password against an encoded hash
func (h *PasswordHasher) Verify(password, encodedHash string) (bool, error) {
	sections := strings.Split(strings.TrimPrefix(encodedHash, "$"), "$")
	if len(sections) != 5 || sections[0] != "argon2id" {
		return false, fmt.Errorf("invalid hash format: got %d sections", len(sections))
	}

	var version int
	if _, err := fmt.Sscanf(sections[1], "v=%d", &version); err != nil {
		return false, fmt.Errorf("invalid version: %w", err)
	}
	if version != argon2.Version {
		return false, fmt.Errorf("unsupported argon2 version %d", version)
	}

	var memory, iterations uint32
	var parallelism uint8
	if _, err := fmt.Sscanf(sections[2], "m=%d,t=%d,p=%d", &memory, &iterations, &parallelism); err != nil {
		return false, fmt.Errorf("invalid parameters: %w", err)
	}

	salt, err := base64.RawStdEncoding.DecodeString(sections[3])
	if err != nil {
		return false, fmt.Errorf("failed to decode salt: %w", err)
	}
	expected, err := base64.RawStdEncoding.DecodeString(sections[4])
	if err != nil {
		return false, fmt.Errorf("failed to decode hash: %w", err)
	}

	actual := argon2.IDKey([]byte(password), salt, iterations, memory, parallelism, uint32(len(expected)))
	return subtle.ConstantTimeCompare(actual, expected) == 1, nil
}

// NewAccount is the input for CreateAccount.
type NewAccount struct {
	Email        string     `json:"email" validate:"required,email,max=254"`
	Username     string     `json:"username" validate:"required,min=3,max=150"`
	Password     string     `json:"password" validate:"required"`
	FranchiseID  *string    `json:"franchise_id"`
	Role         authz.Role `json:"role" validate:"required"`
	FirstName    string     `json:"first_name" validate:"max=100"`
	LastName     string     `json:"last_name" validate:"max=100"`
	WasActivated bool       `json:"-"`
}

// Service provides identity-related business logic
type Service struct {
	repo               AccountRepository
	hasher             *PasswordHasher
	auditLogger        audit.Logger
	lockoutMaxAttempts int
	lockoutDuration    time.Duration
	now                func() time.Time
	decoyHash          func() string
}

// NewService creates a new identity service
func NewService(
	repo AccountRepository,
	hasher *PasswordHasher,
	auditLogger audit.Logger,
	lockoutMaxAttempts int,
	lockoutDuration time.Duration,
) *Service {
	return &Service{
		repo:               repo,
		hasher:             hasher,
		auditLogger:        auditLogger,
		lockoutMaxAttempts: lockoutMaxAttempts,
		lockoutDuration:    lockoutDuration,
		now:                time.Now,
		decoyHash: sync.OnceValue(func() string {
			h, err := hasher.Hash(rand.Text())
			if err != nil {
				return ""
			}
			return h
		}),
	}
}

// CreateAccount registers an account with a password credential.
func (s *Service) CreateAccount(ctx context.Context, in NewAccount) (*Account, error) {
	const op = "identity.CreateAccount"

	in.Email = NormalizeLogin(in.Email)
	in.Username = NormalizeLogin(in.Username)
	if err := validate.Struct(op, in); err != nil {
		return nil, err
	}
	if strings.Contains(in.Username, "@") {
		return nil, apperr.Wrap(op, ErrInvalidUsername)
	}
	if _, err := authz.ParseRole(string(in.Role)); err != nil {
		return nil, apperr.Wrap(op, err)
	}
	if (in.Role == authz.RoleRoot) != (in.FranchiseID == nil) {
		return nil, apperr.Wrap(op, ErrRoleScope)
	}

	hash, err := s.HashPassword(in.Password)
	if err != nil {
		return nil, apperr.Wrap(op, err)
	}

	now := s.now()
	account := &Account{
		ID:           id.NewUUIDv7(),
		Email:        in.Email,
		Username:     in.Username,
		FranchiseID:  in.FranchiseID,
		Role:         in.Role,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		WasActivated: in.WasActivated,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	creds := &Credentials{AccountID: account.ID, PasswordHash: hash, UpdatedAt: now}

	if err := s.repo.Create(ctx, account, creds); err != nil {
		return nil, apperr.Wrap(op, err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeAccountCreated,
		TenantID: account.HomeFranchise(),
		ActorID:  account.ID,
		Resource: "account",
		Metadata: map[string]any{"role": string(account.Role)},
	})

	return account, nil
}

// Authenticate resolves login (email OR username) and password to exactly one
// account. Unknown and ambiguous logins fail with ErrAccountNotFound.
func (s *Service) Authenticate(ctx context.Context, login, password string) (*Account, error) {
	const op = "identity.Authenticate"
	login = NormalizeLogin(login)

	matches, err := s.repo.FindByLogin(ctx, login)
	if err != nil {
		return nil, apperr.Wrap(op, err)
	}
	if len(matches) != 1 {
		// Spend the same hashing work as a real check.
		_, _ = s.hasher.Verify(password, s.decoyHash())
		reason := "account_not_found"
		if len(matches) > 1 {
			reason = "ambiguous_login"
		}
		s.auditLogger.Log(ctx, audit.Event{
			Type:     audit.TypeLoginFailed,
			Resource: login,
			Metadata: map[string]any{audit.AttrReason: reason},
		})
		return nil, ErrAccountNotFound
	}
	account := matches[0]

	now := s.now()
	if account.IsLocked(now) {
		s.auditLogger.Log(ctx, audit.Event{
			Type:     audit.TypeLoginFailed,
			TenantID: account.HomeFranchise(),
			ActorID:  account.ID,
			Resource: "login",
			Metadata: map[string]any{audit.AttrReason: "locked_out"},
		})
		return nil, ErrAccountLocked
	}

	credentials, err := s.repo.GetCredentials(ctx, account.ID)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, apperr.Wrap(op, err)
	}

	valid, err := s.hasher.Verify(password, credentials.PasswordHash)
	if err != nil || !valid {
		attempts, locked, uerr := s.repo.RecordFailedLogin(ctx, account.ID, s.lockoutMaxAttempts, now.Add(s.lockoutDuration))
		if uerr != nil {
			return nil, apperr.Wrap(op, uerr)
		}
		if locked && attempts == s.lockoutMaxAttempts {
			s.auditLogger.Log(ctx, audit.Event{
				Type:     audit.TypeAccountLocked,
				TenantID: account.HomeFranchise(),
				ActorID:  account.ID,
				Resource: "login",
				Metadata: map[string]any{audit.AttrAttempts: attempts},
			})
		}

		s.auditLogger.Log(ctx, audit.Event{
			Type:     audit.TypeLoginFailed,
			TenantID: account.HomeFranchise(),
			ActorID:  account.ID,
			Resource: "login",
			Metadata: map[string]any{
				audit.AttrReason:   "invalid_password",
				audit.AttrAttempts: attempts,
			},
		})

		return nil, ErrInvalidCredentials
	}

	if !account.WasActivated {
		return nil, ErrAccountNotActivated
	}

	if account.FailedLoginAttempts > 0 || account.LockedUntil != nil {
		if err := s.repo.UpdateLockout(ctx, account.ID, 0, nil); err != nil {
			return nil, apperr.Wrap(op, err)
		}
		account.FailedLoginAttempts = 0
		account.LockedUntil = nil
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeLoginSuccess,
		TenantID: account.HomeFranchise(),
		ActorID:  account.ID,
		Resource: "login",
	})

	return account, nil
}

// GetAccount retrieves an account by ID
func (s *Service) GetAccount(ctx context.Context, accountID string) (*Account, error) {
	account, err := s.repo.GetByID(ctx, accountID)
	if err != nil {
		return nil, apperr.Wrap("identity.GetAccount", err)
	}
	return account, nil
}

// FindByLogin returns the single account matching login.
func (s *Service) FindByLogin(ctx context.Context, login string) (*Account, error) {
	matches, err := s.repo.FindByLogin(ctx, NormalizeLogin(login))
	if err != nil {
		return nil, apperr.Wrap("identity.FindByLogin", err)
	}
	if len(matches) != 1 {
		return nil, ErrAccountNotFound
	}
	return matches[0], nil
}

// ChangePassword changes an account password after checking the old one.
func (s *Service) ChangePassword(ctx context.Context, accountID, oldPassword, newPassword string) error {
	const op = "identity.ChangePassword"

	credentials, err := s.repo.GetCredentials(ctx, accountID)
	if err != nil {
		return apperr.Wrap(op, err)
	}

	valid, err := s.hasher.Verify(oldPassword, credentials.PasswordHash)
	if err != nil || !valid {
		return ErrInvalidCredentials
	}

	newHash, err := s.HashPassword(newPassword)
	if err != nil {
		return err
	}

	if err := s.repo.UpdatePassword(ctx, accountID, newHash); err != nil {
		return apperr.Wrap(op, err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypePasswordChanged,
		ActorID:  accountID,
		Resource: "credentials",
	})
	return nil
}

// HashPassword checks strength and returns the encoded hash.
func (s *Service) HashPassword(password string) (string, error) {
	if !isStrongPassword(password) {
		return "", ErrWeakPassword
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return "", apperr.Internal("identity.HashPassword", err)
	}
	return hash, nil
}

func isStrongPassword(password string) bool {
	return len(password) >= 8 && len(password) <= 256
}
