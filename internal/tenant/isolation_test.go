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

package tenant

import (
	"context"
	"testing"

	"github.com/over55/workery/internal/apperr"
	"github.com/over55/workery/internal/audit"
	"github.com/over55/workery/internal/identity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func active(id, schema string) *Franchise {
	return &Franchise{ID: id, SchemaName: schema, Status: StatusActive}
}

func TestRouter_SchemaFromHost(t *testing.T) {
	r := newTestRouter(t, new(mockRepo))

	cases := map[string]struct {
		schema string
		ok     bool
	}{
		"london.workery.ca":      {"london", true},
		"LONDON.workery.ca:8443": {"london", true},
		"london.workery.ca.":     {"london", true},
		"workery.ca":             {"", false},
		"a.b.workery.ca":         {"", false},
		"london.evil-workery.ca": {"", false},
		"london.workery.ca.evil": {"", false},
		"":                       {"", false},
	}
	for host, want := range cases {
		schema, ok := r.SchemaFromHost(host)
		assert.Equal(t, want.ok, ok, host)
		assert.Equal(t, want.schema, schema, host)
	}
}

// TestPurpose: Validates that an archived franchise is never routed to.
// Scope: Unit Test
// Security: Multi-tenant boundary enforcement, no default tenant fallback
// Expected: IsolationViolation with no scope returned for london.workery.ca.
// Test Case ID: TEN-10
func TestRouter_Resolve_ArchivedFranchiseIsIsolationViolation(t *testing.T) {
	ctx := context.Background()
	repo := new(mockRepo)
	r := newTestRouter(t, repo)

	london := active("f-london", "london")
	london.IsArchived = true
	repo.On("GetBySchema", ctx, "london").Return(london, nil)

	f, scope, err := r.Resolve(ctx, "london.workery.ca", "")
	require.Error(t, err)
	assert.Equal(t, apperr.EIsolation, apperr.ErrorCode(err))
	assert.ErrorIs(t, err, ErrFranchiseArchived)
	assert.Nil(t, f)
	assert.True(t, scope.IsZero())
}

// TestPurpose: Validates tenant resolution failure modes.
// Scope: Unit Test
// Security: Requests must never silently fall through to another tenant
// Expected: Unknown schema is NotFound; pending franchise, missing tenant and host/param mismatch are isolation violations.
// Test Case ID: TEN-11
func TestRouter_Resolve_FailureModes(t *testing.T) {
	ctx := context.Background()
	repo := new(mockRepo)
	r := newTestRouter(t, repo)

	repo.On("GetBySchema", ctx, "atlantis").Return(nil, ErrFranchiseNotFound)
	repo.On("GetBySchema", ctx, "paris").Return(&Franchise{ID: "f-paris", SchemaName: "paris", Status: StatusPending}, nil)

	_, _, err := r.Resolve(ctx, "atlantis.workery.ca", "")
	assert.Equal(t, apperr.ENotFound, apperr.ErrorCode(err))

	_, _, err = r.Resolve(ctx, "paris.workery.ca", "")
	assert.ErrorIs(t, err, ErrFranchiseNotReady)

	_, _, err = r.Resolve(ctx, "workery.ca", "")
	assert.ErrorIs(t, err, ErrNoTenant)

	_, _, err = r.Resolve(ctx, "london.workery.ca", "paris")
	assert.ErrorIs(t, err, ErrSchemaMismatch)
	repo.AssertNotCalled(t, "GetBySchema", ctx, "london")
}

func TestRouter_Resolve_ExplicitSchemaAndCache(t *testing.T) {
	ctx := context.Background()
	repo := new(mockRepo)
	r := newTestRouter(t, repo)

	repo.On("GetBySchema", ctx, "london").Return(active("f-london", "london"), nil)

	f, scope, err := r.Resolve(ctx, "api.example.com", "London")
	require.NoError(t, err)
	assert.Equal(t, "f-london", f.ID)
	assert.Equal(t, Scope{FranchiseID: "f-london", Schema: "london"}, scope)

	r.cache.Wait()
	_, _, err = r.Resolve(ctx, "london.workery.ca", "london")
	require.NoError(t, err)
	repo.AssertNumberOfCalls(t, "GetBySchema", 1)

	r.Evict("london")
	_, _, err = r.Resolve(ctx, "london.workery.ca", "")
	require.NoError(t, err)
	repo.AssertNumberOfCalls(t, "GetBySchema", 2)
}

// TestPurpose: Validates that an archive committed during a lookup is not undone by the cache.
// Scope: Unit Test
// Security: Archived franchises must stop routing as soon as the archive commits
// Expected: The stale ACTIVE row read before the eviction is not cached; the next request sees the archive.
// Test Case ID: TEN-13
func TestRouter_Resolve_EvictionDuringLookupIsNotCached(t *testing.T) {
	ctx := context.Background()
	repo := new(mockRepo)
	r := newTestRouter(t, repo)

	archived := active("f-london", "london")
	archived.IsArchived = true
	repo.On("GetBySchema", ctx, "london").
		Run(func(mock.Arguments) { r.Evict("london") }).
		Return(active("f-london", "london"), nil).Once()
	repo.On("GetBySchema", ctx, "london").Return(archived, nil).Once()

	_, _, err := r.Resolve(ctx, "london.workery.ca", "")
	require.NoError(t, err)

	r.cache.Wait()
	f, scope, err := r.Resolve(ctx, "london.workery.ca", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFranchiseArchived)
	assert.Nil(t, f)
	assert.True(t, scope.IsZero())
	repo.AssertNumberOfCalls(t, "GetBySchema", 2)
}

func TestRouter_ResolveFresh_BypassesCache(t *testing.T) {
	ctx := context.Background()
	repo := new(mockRepo)
	r := newTestRouter(t, repo)

	archived := active("f-london", "london")
	archived.IsArchived = true
	repo.On("GetBySchema", ctx, "london").Return(active("f-london", "london"), nil).Once()
	repo.On("GetBySchema", ctx, "london").Return(archived, nil).Once()

	_, _, err := r.Resolve(ctx, "london.workery.ca", "")
	require.NoError(t, err)
	r.cache.Wait()

	_, _, err = r.ResolveFresh(ctx, "london.workery.ca", "")
	assert.ErrorIs(t, err, ErrFranchiseArchived)
	repo.AssertNumberOfCalls(t, "GetBySchema", 2)

	r.cache.Wait()
	_, ok := r.cache.Get("london")
	assert.False(t, ok, "a refused franchise is dropped from the cache")
}

// TestPurpose: Validates that franchise accounts are confined to their home franchise.
// Scope: Unit Test
// Security: Cross-tenant access prevention
// Expected: Own franchise and root accounts pass; another franchise is an isolation violation and is audited.
// Test Case ID: TEN-12
func TestRouter_Confine(t *testing.T) {
	ctx := context.Background()
	auditLogger := new(mockAudit)
	r := newTestRouter(t, new(mockRepo))
	r.audit = auditLogger

	home := "f-london"
	staff := &identity.Account{ID: "a-1", FranchiseID: &home}
	root := &identity.Account{ID: "a-root"}

	assert.NoError(t, r.Confine(ctx, active("f-london", "london"), staff))
	assert.NoError(t, r.Confine(ctx, active("f-paris", "paris"), root))

	auditLogger.On("Log", ctx, mock.MatchedBy(func(e audit.Event) bool {
		return e.Type == audit.TypeTenantDenied && e.ActorID == "a-1" && e.TenantID == "f-paris"
	})).Return().Once()

	err := r.Confine(ctx, active("f-paris", "paris"), staff)
	assert.ErrorIs(t, err, ErrCrossTenant)
	auditLogger.AssertExpectations(t)
}

func TestRouter_Landing(t *testing.T) {
	ctx := context.Background()
	repo := new(mockRepo)
	r := newTestRouter(t, repo)

	london := "f-london"
	archived := "f-old"
	repo.On("GetByID", ctx, "f-london").Return(active("f-london", "london"), nil)
	repo.On("GetByID", ctx, "f-old").Return(&Franchise{ID: "f-old", SchemaName: "old", Status: StatusActive, IsArchived: true}, nil)

	got, err := r.Landing(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, "/login", got)

	got, err = r.Landing(ctx, &identity.Account{ID: "root"})
	require.NoError(t, err)
	assert.Equal(t, "/franchises", got)

	got, err = r.Landing(ctx, &identity.Account{ID: "a-1", FranchiseID: &london})
	require.NoError(t, err)
	assert.Equal(t, "https://london.workery.ca/dashboard", got)

	_, err = r.Landing(ctx, &identity.Account{ID: "a-2", FranchiseID: &archived})
	assert.Equal(t, apperr.EIsolation, apperr.ErrorCode(err))
}
