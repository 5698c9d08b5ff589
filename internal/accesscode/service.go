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

package accesscode

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log/slog"
	"time"

	"github.com/over55/workery/internal/apperr"
	"github.com/over55/workery/internal/audit"
	"github.com/over55/workery/internal/identity"
	"github.com/over55/workery/internal/observability/logger"
	"github.com/over55/workery/internal/observability/metrics"
)

// codeBytes is the entropy of a code before hex encoding.
const codeBytes = 32

// Accounts is the subset of the identity service used here.
type Accounts interface {
	FindByLogin(ctx context.Context, login string) (*identity.Account, error)
	GetAccount(ctx context.Context, accountID string) (*identity.Account, error)
	HashPassword(password string) (string, error)
}

// Service implements the access-code lifecycle.
type Service struct {
	repo     Repository
	accounts Accounts
	mailer   Mailer
	audit    audit.Logger
	metrics  *metrics.Domain
	ttl      time.Duration
	now      func() time.Time
}

// NewService creates an access-code service. ttl is the validity window.
func NewService(repo Repository, accounts Accounts, mailer Mailer, auditLogger audit.Logger, m *metrics.Domain, ttl time.Duration) *Service {
	return &Service{
		repo:     repo,
		accounts: accounts,
		mailer:   mailer,
		audit:    auditLogger,
		metrics:  m,
		ttl:      ttl,
		now:      time.Now,
	}
}

func newCode() (string, error) {
	b := make([]byte, codeBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// Issue generates a fresh code for account, replacing any outstanding one.
func (s *Service) Issue(ctx context.Context, account *identity.Account, purpose Purpose) (string, error) {
	const op = "accesscode.Issue"
	if !purpose.Valid() {
		return "", apperr.Wrap(op, ErrUnknownPurpose)
	}

	code, err := newCode()
	if err != nil {
		return "", apperr.Internal(op, err)
	}
	if err := s.repo.StoreCode(ctx, account.ID, code, purpose, s.now()); err != nil {
		return "", apperr.Wrap(op, err)
	}

	s.metrics.AccessCodes.WithLabelValues("issued").Inc()
	s.audit.Log(ctx, audit.Event{
		Type:     audit.TypeAccessCodeIssued,
		TenantID: account.HomeFranchise(),
		ActorID:  account.ID,
		Resource: "account",
		Metadata: map[string]any{audit.AttrPurpose: string(purpose)},
	})
	return code, nil
}

// IssueActivation issues an activation code and hands it to the mailer.
func (s *Service) IssueActivation(ctx context.Context, accountID string) error {
	account, err := s.accounts.GetAccount(ctx, accountID)
	if err != nil {
		return err
	}
	if account.WasActivated {
		return apperr.Conflict("accesscode.IssueActivation", "account is already activated")
	}
	code, err := s.Issue(ctx, account, PurposeActivation)
	if err != nil {
		return err
	}
	return s.mailer.Send(ctx, Message{To: account.Email, Purpose: PurposeActivation, Code: code})
}

// RequestPasswordReset issues a reset code for login when it names exactly one
// account. Unknown logins succeed silently so callers cannot enumerate accounts.
func (s *Service) RequestPasswordReset(ctx context.Context, login string) error {
	account, err := s.accounts.FindByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, identity.ErrAccountNotFound) {
			slog.InfoContext(ctx, "password reset requested for unknown login")
			return nil
		}
		return err
	}

	code, err := s.Issue(ctx, account, PurposePasswordReset)
	if err != nil {
		return err
	}
	if err := s.mailer.Send(ctx, Message{To: account.Email, Purpose: PurposePasswordReset, Code: code}); err != nil {
		slog.ErrorContext(ctx, "failed to deliver access code", logger.AccountID(account.ID), logger.Error(err))
		return apperr.Internal("accesscode.RequestPasswordReset", err)
	}
	return nil
}

// Validate checks a code without consuming it.
func (s *Service) Validate(ctx context.Context, code string, purpose Purpose) (*Holder, error) {
	const op = "accesscode.Validate"
	holder, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		return nil, s.reject(ctx, op, "not_found", err)
	}
	if err := s.check(holder, purpose); err != nil {
		return nil, s.reject(ctx, op, rejectReason(err), err)
	}
	return holder, nil
}

// Activate consumes an activation code and marks the account activated.
func (s *Service) Activate(ctx context.Context, code string) (string, error) {
	return s.consume(ctx, "accesscode.Activate", code, PurposeActivation, func(ctx context.Context, tx Tx, h *Holder) error {
		return tx.MarkActivated(ctx, h.AccountID)
	}, audit.TypeAccountActivated)
}

// ResetPassword consumes a reset code and sets a new password. The activation
// flag is left untouched.
func (s *Service) ResetPassword(ctx context.Context, code, newPassword string) (string, error) {
	const op = "accesscode.ResetPassword"
	hash, err := s.accounts.HashPassword(newPassword)
	if err != nil {
		return "", apperr.Wrap(op, err)
	}
	return s.consume(ctx, op, code, PurposePasswordReset, func(ctx context.Context, tx Tx, h *Holder) error {
		return tx.SetPassword(ctx, h.AccountID, hash)
	}, audit.TypePasswordChanged)
}

// Cleanup clears codes that have outlived the validity window.
func (s *Service) Cleanup(ctx context.Context) (int64, error) {
	n, err := s.repo.ClearExpired(ctx, s.now().Add(-s.ttl))
	if err != nil {
		return 0, apperr.Wrap("accesscode.Cleanup", err)
	}
	return n, nil
}

func (s *Service) consume(
	ctx context.Context,
	op, code string,
	purpose Purpose,
	mutate func(ctx context.Context, tx Tx, h *Holder) error,
	eventType string,
) (string, error) {
	var holder *Holder
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		h, err := tx.LockByCode(ctx, code)
		if err != nil {
			return err
		}
		if err := s.check(h, purpose); err != nil {
			return err
		}
		if err := mutate(ctx, tx, h); err != nil {
			return err
		}
		if err := tx.ClearCode(ctx, h.AccountID); err != nil {
			return err
		}
		holder = h
		return nil
	})
	if err != nil {
		return "", s.reject(ctx, op, rejectReason(err), err)
	}

	s.metrics.AccessCodes.WithLabelValues("consumed").Inc()
	s.audit.Log(ctx, audit.Event{
		Type:     eventType,
		ActorID:  holder.AccountID,
		Resource: "account",
		Metadata: map[string]any{audit.AttrPurpose: string(purpose)},
	})
	return holder.AccountID, nil
}

func (s *Service) check(h *Holder, purpose Purpose) error {
	if h.Purpose != purpose {
		return ErrCodeNotFound
	}
	if h.Expired(s.now(), s.ttl) {
		return ErrCodeExpired
	}
	return nil
}

func (s *Service) reject(ctx context.Context, op, reason string, err error) error {
	code := apperr.ErrorCode(err)
	if code == apperr.ENotFound || code == apperr.EConflict {
		s.metrics.AccessCodes.WithLabelValues("rejected_" + reason).Inc()
		s.audit.Log(ctx, audit.Event{
			Type:     audit.TypeAccessCodeRejected,
			Resource: "access_code",
			Metadata: map[string]any{audit.AttrReason: reason},
		})
	}
	return apperr.Wrap(op, err)
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, ErrCodeExpired):
		return "expired"
	case errors.Is(err, ErrCodeNotFound):
		return "not_found"
	default:
		return "error"
	}
}
