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

package session

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/over55/workery/internal/apperr"
	"github.com/over55/workery/internal/id"
	"github.com/over55/workery/internal/observability/logger"
)

// Service creates and resolves sessions.
type Service struct {
	repo        Repository
	signer      *Signer
	lifetime    time.Duration
	idleTimeout time.Duration
	now         func() time.Time
}

// NewService creates a session service.
func NewService(repo Repository, signer *Signer, lifetime, idleTimeout time.Duration) *Service {
	return &Service{
		repo:        repo,
		signer:      signer,
		lifetime:    lifetime,
		idleTimeout: idleTimeout,
		now:         time.Now,
	}
}

// Create opens a session for accountID and returns it with its token.
func (s *Service) Create(ctx context.Context, accountID string, franchiseID *string, ip, userAgent string) (*Session, string, error) {
	now := s.now()
	sess := &Session{
		ID:          id.NewUUIDv7(),
		AccountID:   accountID,
		FranchiseID: franchiseID,
		IPAddress:   ip,
		UserAgent:   userAgent,
		ExpiresAt:   now.Add(s.lifetime),
		CreatedAt:   now,
		LastSeenAt:  now,
	}
	if err := s.repo.Create(ctx, sess); err != nil {
		return nil, "", apperr.Wrap("session.Create", err)
	}
	token, err := s.signer.Sign(sess)
	if err != nil {
		return nil, "", apperr.Internal("session.Create", err)
	}
	return sess, token, nil
}

// Resolve verifies token and returns the live session it names. Expired or
// idle sessions are removed.
func (s *Service) Resolve(ctx context.Context, token string) (*Session, error) {
	now := s.now()
	claims, err := s.signer.Parse(token, now)
	if err != nil {
		return nil, ErrSessionNotFound
	}

	sess, err := s.repo.Get(ctx, claims.SessionID)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, apperr.Wrap("session.Resolve", err)
	}
	if sess.AccountID != claims.Subject {
		return nil, ErrSessionNotFound
	}

	if sess.IsExpired(now) || sess.IsIdle(now, s.idleTimeout) {
		if err := s.repo.Delete(ctx, sess.ID); err != nil {
			slog.WarnContext(ctx, "failed to delete stale session", logger.SessionID(sess.ID), logger.Error(err))
		}
		return nil, ErrSessionNotFound
	}

	if err := s.repo.Touch(ctx, sess.ID, now); err != nil {
		slog.WarnContext(ctx, "failed to refresh session", logger.SessionID(sess.ID), logger.Error(err))
	}
	sess.LastSeenAt = now
	return sess, nil
}

// Destroy ends a session.
func (s *Service) Destroy(ctx context.Context, sessionID string) error {
	return apperr.Wrap("session.Destroy", s.repo.Delete(ctx, sessionID))
}

// DestroyAll ends every session of an account.
func (s *Service) DestroyAll(ctx context.Context, accountID string) error {
	return apperr.Wrap("session.DestroyAll", s.repo.DeleteByAccountID(ctx, accountID))
}

// CleanupExpired removes expired sessions.
func (s *Service) CleanupExpired(ctx context.Context) (int64, error) {
	n, err := s.repo.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, apperr.Wrap("session.CleanupExpired", err)
	}
	return n, nil
}
