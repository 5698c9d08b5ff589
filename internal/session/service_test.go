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
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type memoryRepo struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{sessions: make(map[string]*Session)}
}

func (m *memoryRepo) Create(_ context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.sessions[s.ID] = &cp
	return nil
}

func (m *memoryRepo) Get(_ context.Context, id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memoryRepo) Touch(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		s.LastSeenAt = at
	}
	return nil
}

func (m *memoryRepo) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

func (m *memoryRepo) DeleteByAccountID(_ context.Context, accountID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, s := range m.sessions {
		if s.AccountID == accountID {
			delete(m.sessions, id)
		}
	}
	return nil
}

func (m *memoryRepo) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, s := range m.sessions {
		if s.IsExpired(now) {
			delete(m.sessions, id)
			n++
		}
	}
	return n, nil
}

// TestPurpose: Validates that a signed token resolves to its live session and nothing else.
// Scope: Unit Test
// Security: Tampered, foreign-key or revoked tokens must not authenticate
// Expected: Resolve succeeds for a fresh token and fails after Destroy or with another secret.
// Test Case ID: SES-01
func TestService_CreateResolveDestroy(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepo()
	svc := NewService(repo, NewSigner(testSecret, "workery"), time.Hour, 30*time.Minute)
	franchise := "f-1"

	sess, token, err := svc.Create(ctx, "acct-1", &franchise, "203.0.113.7", "test")
	require.NoError(t, err)

	got, err := svc.Resolve(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, got.ID)
	assert.Equal(t, "f-1", *got.FranchiseID)

	other := NewService(repo, NewSigner("ffffffffffffffffffffffffffffffff", "workery"), time.Hour, 0)
	_, err = other.Resolve(ctx, token)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	_, err = svc.Resolve(ctx, token+"x")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	require.NoError(t, svc.Destroy(ctx, sess.ID))
	_, err = svc.Resolve(ctx, token)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestService_IdleSessionIsDropped(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepo()
	svc := NewService(repo, NewSigner(testSecret, "workery"), 24*time.Hour, 10*time.Minute)

	start := time.Now()
	svc.now = func() time.Time { return start }
	sess, token, err := svc.Create(ctx, "acct-1", nil, "", "")
	require.NoError(t, err)

	svc.now = func() time.Time { return start.Add(11 * time.Minute) }
	_, err = svc.Resolve(ctx, token)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.NotContains(t, repo.sessions, sess.ID)
}

func TestService_CleanupExpired(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepo()
	svc := NewService(repo, NewSigner(testSecret, "workery"), time.Minute, 0)

	start := time.Now()
	svc.now = func() time.Time { return start }
	_, _, err := svc.Create(ctx, "acct-1", nil, "", "")
	require.NoError(t, err)

	svc.now = func() time.Time { return start.Add(2 * time.Minute) }
	n, err := svc.CleanupExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
