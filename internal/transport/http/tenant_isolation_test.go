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

package http

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/over55/workery/internal/tenant"
	"github.com/over55/workery/internal/workorder"
)

// TestPurpose: Validates that tenant-scoped routes refuse anonymous callers.
// Scope: Unit Test
// Security: Authentication boundary
// Expected: 401 before any tenant resolution happens.
// Test Case ID: ISO-HTTP-01
func TestTenantRoutes_RequireAuthentication(t *testing.T) {
	f := newFixture(t)

	for _, target := range []string{
		"/api/v1/work-orders",
		"/api/v1/search?q=bart",
		"/api/v1/parties/customers",
	} {
		rec := f.do(http.MethodGet, target, "springfield.workery.test", "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, target)
	}
	assert.Empty(t, f.search.scopes)
}

// TestPurpose: Validates that an account cannot act inside another franchise.
// Scope: Unit Test
// Security: Tenant isolation
// Expected: 403 isolation_violation for the foreign host and for the foreign schema parameter.
// Test Case ID: ISO-HTTP-02
func TestTenantRoutes_CrossTenantDenied(t *testing.T) {
	f := newFixture(t)
	token := f.login("marge").Token

	rec := f.do(http.MethodGet, "/api/v1/search?q=bart", "shelbyville.workery.test", token, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "isolation_violation", decodeError(t, rec).Code)

	rec = f.do(http.MethodGet, "/api/v1/search?q=bart&schema=shelbyville", "", token, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "isolation_violation", decodeError(t, rec).Code)

	assert.Empty(t, f.search.scopes)
}

func TestTenantRoutes_OwnTenantScoped(t *testing.T) {
	f := newFixture(t)
	token := f.login("marge").Token

	rec := f.do(http.MethodGet, "/api/v1/search?q=bart", "springfield.workery.test", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	require.Len(t, f.search.scopes, 1)
	assert.Equal(t, tenant.Scope{FranchiseID: "f-spr", Schema: "springfield"}, f.search.scopes[0])
}

func TestTenantRoutes_RootEntersAnyTenant(t *testing.T) {
	f := newFixture(t)
	token := f.login("root").Token

	rec := f.do(http.MethodGet, "/api/v1/work-orders?schema=shelbyville", "", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	require.Len(t, f.orders.scopes, 1)
	assert.Equal(t, "shelbyville", f.orders.scopes[0].Schema)
}

func TestTenantRoutes_ResolutionFailures(t *testing.T) {
	f := newFixture(t)
	token := f.login("root").Token

	tests := []struct {
		name   string
		host   string
		target string
		status int
		code   string
	}{
		{"no tenant named", "api.example.net", "/api/v1/work-orders", http.StatusForbidden, "isolation_violation"},
		{"host and parameter disagree", "springfield.workery.test", "/api/v1/work-orders?schema=shelbyville", http.StatusForbidden, "isolation_violation"},
		{"unknown schema", "", "/api/v1/work-orders?schema=capitalcity", http.StatusNotFound, "not_found"},
		{"franchise still provisioning", "ogdenville.workery.test", "/api/v1/work-orders", http.StatusForbidden, "isolation_violation"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(http.MethodGet, tt.target, tt.host, token, nil)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Equal(t, tt.code, decodeError(t, rec).Code)
		})
	}
	assert.Empty(t, f.orders.scopes)
}

func TestTenantRoutes_ArchivedFranchiseDenied(t *testing.T) {
	f := newFixture(t)
	root := f.login("root").Token
	marge := f.login("marge").Token

	rec := f.do(http.MethodPost, "/api/v1/franchises/f-spr/archive", "", root, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.do(http.MethodGet, "/api/v1/work-orders", "springfield.workery.test", marge, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "isolation_violation", decodeError(t, rec).Code)
}

// TestPurpose: Validates role permissions on tenant routes.
// Scope: Unit Test
// Security: RBAC enforcement
// Expected: Frontline staff cannot archive; associates cannot search; management cannot manage franchises.
// Test Case ID: RBAC-HTTP-01
func TestPermissions_Enforced(t *testing.T) {
	f := newFixture(t)
	lenny := f.login("lenny").Token
	homer := f.login("homer").Token
	marge := f.login("marge").Token
	const host = "springfield.workery.test"

	rec := f.do(http.MethodPost, "/api/v1/archive/customer/7", host, lenny, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "forbidden", decodeError(t, rec).Code)

	rec = f.do(http.MethodGet, "/api/v1/search?q=bart", host, homer, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(http.MethodGet, "/api/v1/franchises", "", marge, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	assert.Empty(t, f.search.scopes)
}

func TestParties_UnknownKind(t *testing.T) {
	f := newFixture(t)
	token := f.login("marge").Token

	rec := f.do(http.MethodGet, "/api/v1/parties/robots", "springfield.workery.test", token, nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// TestPurpose: Validates that an invalid completion is rejected before any storage work.
// Scope: Unit Test
// Expected: 400 naming every bad field; no transaction is opened.
// Test Case ID: WO-HTTP-01
func TestCompleteWorkOrder_ValidationBeforeWrites(t *testing.T) {
	f := newFixture(t)
	token := f.login("marge").Token

	rec := f.do(http.MethodPost, "/api/v1/work-orders/complete", "springfield.workery.test", token, map[string]any{
		"task_item":       12,
		"was_completed":   false,
		"reason":          int(workorder.ReasonOther),
		"reason_other":    " ",
		"completion_date": time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		"comment":         "",
	})

	require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	resp := decodeError(t, rec)
	assert.Equal(t, "validation", resp.Code)
	assert.Contains(t, resp.Fields, "reason_other")
	assert.Contains(t, resp.Fields, "comment")
	assert.Zero(t, f.orders.txCount())
}

func TestCompleteWorkOrder_MalformedDate(t *testing.T) {
	f := newFixture(t)
	token := f.login("marge").Token

	rec := f.do(http.MethodPost, "/api/v1/work-orders/complete", "springfield.workery.test", token, map[string]any{
		"task_item":       12,
		"reason":          1,
		"completion_date": "March 1st",
		"comment":         "done",
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, f.orders.txCount())
}

func TestGetWorkOrder_BadID(t *testing.T) {
	f := newFixture(t)
	token := f.login("marge").Token

	rec := f.do(http.MethodGet, "/api/v1/work-orders/abc", "springfield.workery.test", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(http.MethodGet, "/api/v1/work-orders/5", "springfield.workery.test", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSearch_ResultShape(t *testing.T) {
	f := newFixture(t)
	token := f.login("lenny").Token

	rec := f.do(http.MethodGet, "/api/v1/search?q=bart", "springfield.workery.test", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var page SearchPage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	require.Len(t, page.Results, 1)
	assert.Equal(t, int64(7), page.Results[0].EntityID)

	rec = f.do(http.MethodGet, "/api/v1/search?q=", "springfield.workery.test", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
