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
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/over55/workery/internal/accesscode"
	"github.com/over55/workery/internal/archive"
	"github.com/over55/workery/internal/audit"
	"github.com/over55/workery/internal/authz"
	"github.com/over55/workery/internal/config"
	"github.com/over55/workery/internal/identity"
	"github.com/over55/workery/internal/listing"
	"github.com/over55/workery/internal/observability/metrics"
	"github.com/over55/workery/internal/party"
	"github.com/over55/workery/internal/search"
	"github.com/over55/workery/internal/session"
	"github.com/over55/workery/internal/tenant"
	"github.com/over55/workery/internal/workorder"
)

const testPassword = "Correct-Horse-9"

type memAccounts struct {
	mu       sync.Mutex
	accounts map[string]*identity.Account
	creds    map[string]*identity.Credentials
}

func newMemAccounts() *memAccounts {
	return &memAccounts{
		accounts: make(map[string]*identity.Account),
		creds:    make(map[string]*identity.Credentials),
	}
}

func (m *memAccounts) Create(ctx context.Context, a *identity.Account, c *identity.Credentials) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, other := range m.accounts {
		if other.Email == a.Email || other.Username == a.Username {
			return identity.ErrAccountExists
		}
	}
	cp := *a
	m.accounts[a.ID] = &cp
	cc := *c
	m.creds[a.ID] = &cc
	return nil
}

func (m *memAccounts) GetByID(ctx context.Context, id string) (*identity.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return nil, identity.ErrAccountNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *memAccounts) FindByLogin(ctx context.Context, login string) ([]*identity.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*identity.Account
	for _, a := range m.accounts {
		if a.Email == login || a.Username == login {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memAccounts) GetCredentials(ctx context.Context, accountID string) (*identity.Credentials, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.creds[accountID]
	if !ok {
		return nil, identity.ErrAccountNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memAccounts) UpdatePassword(ctx context.Context, accountID, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.creds[accountID]
	if !ok {
		return identity.ErrAccountNotFound
	}
	c.PasswordHash = hash
	return nil
}

func (m *memAccounts) UpdateLockout(ctx context.Context, accountID string, failed int, until *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[accountID]
	if !ok {
		return identity.ErrAccountNotFound
	}
	a.FailedLoginAttempts = failed
	a.LockedUntil = until
	return nil
}

func (m *memAccounts) RecordFailedLogin(ctx context.Context, accountID string, maxAttempts int, lockUntil time.Time) (int, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[accountID]
	if !ok {
		return 0, false, identity.ErrAccountNotFound
	}
	a.FailedLoginAttempts++
	locked := a.FailedLoginAttempts >= maxAttempts
	if locked {
		a.LockedUntil = &lockUntil
	}
	return a.FailedLoginAttempts, locked, nil
}

func (m *memAccounts) CountRoots(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, a := range m.accounts {
		if a.IsRoot() {
			n++
		}
	}
	return n, nil
}

type memSessions struct {
	mu       sync.Mutex
	sessions map[string]*session.Session
}

func newMemSessions() *memSessions {
	return &memSessions{sessions: make(map[string]*session.Session)}
}

func (m *memSessions) Create(ctx context.Context, s *session.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.sessions[s.ID] = &cp
	return nil
}

func (m *memSessions) Get(ctx context.Context, id string) (*session.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, session.ErrSessionNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memSessions) Touch(ctx context.Context, id string, lastSeen time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		s.LastSeenAt = lastSeen
	}
	return nil
}

func (m *memSessions) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

func (m *memSessions) DeleteByAccountID(ctx context.Context, accountID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, s := range m.sessions {
		if s.AccountID == accountID {
			delete(m.sessions, id)
		}
	}
	return nil
}

func (m *memSessions) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
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

type memFranchises struct {
	mu   sync.Mutex
	byID map[string]*tenant.Franchise
}

func newMemFranchises(fs ...*tenant.Franchise) *memFranchises {
	m := &memFranchises{byID: make(map[string]*tenant.Franchise)}
	for _, f := range fs {
		m.byID[f.ID] = f
	}
	return m
}

func (m *memFranchises) Create(ctx context.Context, f *tenant.Franchise) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, other := range m.byID {
		if other.SchemaName == f.SchemaName {
			return tenant.ErrSchemaTaken
		}
	}
	cp := *f
	m.byID[f.ID] = &cp
	return nil
}

func (m *memFranchises) GetByID(ctx context.Context, id string) (*tenant.Franchise, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.byID[id]
	if !ok {
		return nil, tenant.ErrFranchiseNotFound
	}
	cp := *f
	return &cp, nil
}

func (m *memFranchises) GetBySchema(ctx context.Context, schema string) (*tenant.Franchise, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, f := range m.byID {
		if f.SchemaName == schema {
			cp := *f
			return &cp, nil
		}
	}
	return nil, tenant.ErrFranchiseNotFound
}

func (m *memFranchises) List(ctx context.Context, filter tenant.ListFilter) ([]*tenant.Franchise, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*tenant.Franchise
	for _, f := range m.byID {
		if f.IsArchived && !filter.IncludeArchived {
			continue
		}
		if filter.Status != "" && f.Status != filter.Status {
			continue
		}
		cp := *f
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SchemaName < out[j].SchemaName })
	return out, len(out), nil
}

func (m *memFranchises) RecordFailure(ctx context.Context, id string, attempts int, lastError string, terminal bool) error {
	return nil
}

func (m *memFranchises) SetArchived(ctx context.Context, id string, archived bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.byID[id]
	if !ok {
		return tenant.ErrFranchiseNotFound
	}
	f.IsArchived = archived
	return nil
}

func (m *memFranchises) ResetForRetry(ctx context.Context, id string, staleBefore time.Time) error {
	return tenant.ErrNotRetryable
}

func (m *memFranchises) ClaimStalePending(ctx context.Context, staleBefore time.Time, limit int) ([]*tenant.Franchise, error) {
	return nil, nil
}

// memCodes stores outstanding access codes and applies writes to accounts.
type memCodes struct {
	mu       sync.Mutex
	holders  map[string]*accesscode.Holder
	accounts *memAccounts
}

func newMemCodes(accounts *memAccounts) *memCodes {
	return &memCodes{holders: make(map[string]*accesscode.Holder), accounts: accounts}
}

func (m *memCodes) StoreCode(ctx context.Context, accountID, code string, purpose accesscode.Purpose, issuedAt time.Time) error {
	a, err := m.accounts.GetByID(ctx, accountID)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for c, h := range m.holders {
		if h.AccountID == accountID {
			delete(m.holders, c)
		}
	}
	m.holders[code] = &accesscode.Holder{
		AccountID:    accountID,
		Email:        a.Email,
		Purpose:      purpose,
		IssuedAt:     issuedAt,
		WasActivated: a.WasActivated,
	}
	return nil
}

func (m *memCodes) FindByCode(ctx context.Context, code string) (*accesscode.Holder, error) {
	return m.LockByCode(ctx, code)
}

func (m *memCodes) WithTx(ctx context.Context, fn func(ctx context.Context, tx accesscode.Tx) error) error {
	return fn(ctx, m)
}

func (m *memCodes) ClearExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

func (m *memCodes) LockByCode(ctx context.Context, code string) (*accesscode.Holder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.holders[code]
	if !ok {
		return nil, accesscode.ErrCodeNotFound
	}
	cp := *h
	return &cp, nil
}

func (m *memCodes) MarkActivated(ctx context.Context, accountID string) error {
	m.accounts.mu.Lock()
	defer m.accounts.mu.Unlock()
	if a, ok := m.accounts.accounts[accountID]; ok {
		a.WasActivated = true
	}
	return nil
}

func (m *memCodes) SetPassword(ctx context.Context, accountID, hash string) error {
	return m.accounts.UpdatePassword(ctx, accountID, hash)
}

func (m *memCodes) ClearCode(ctx context.Context, accountID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for c, h := range m.holders {
		if h.AccountID == accountID {
			delete(m.holders, c)
		}
	}
	return nil
}

func (m *memCodes) codeFor(accountID string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	for c, h := range m.holders {
		if h.AccountID == accountID {
			return c
		}
	}
	return ""
}

// stubOrders answers reads with canned data and counts transactions.
type stubOrders struct {
	mu     sync.Mutex
	txs    int
	scopes []tenant.Scope
}

func (s *stubOrders) WithTx(ctx context.Context, scope tenant.Scope, fn func(ctx context.Context, tx workorder.Tx) error) error {
	s.mu.Lock()
	s.txs++
	s.mu.Unlock()
	return errors.New("stubOrders: transactions are not supported")
}

func (s *stubOrders) Get(ctx context.Context, scope tenant.Scope, id int64) (*workorder.Order, error) {
	return nil, workorder.ErrOrderNotFound
}

func (s *stubOrders) List(ctx context.Context, scope tenant.Scope, q listing.Query) (listing.Page[*workorder.Order], error) {
	s.mu.Lock()
	s.scopes = append(s.scopes, scope)
	s.mu.Unlock()
	return listing.Page[*workorder.Order]{Results: []*workorder.Order{}, Page: 1, PageSize: q.PageSize}, nil
}

func (s *stubOrders) ListTasks(ctx context.Context, scope tenant.Scope, orderID int64) ([]*workorder.Task, error) {
	return nil, nil
}

func (s *stubOrders) ListComments(ctx context.Context, scope tenant.Scope, orderID int64) ([]*workorder.Comment, error) {
	return nil, nil
}

func (s *stubOrders) GetOngoing(ctx context.Context, scope tenant.Scope, id int64) (*workorder.OngoingOrder, error) {
	return nil, workorder.ErrOngoingNotFound
}

func (s *stubOrders) txCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.txs
}

type stubSearch struct {
	mu     sync.Mutex
	scopes []tenant.Scope
}

func (s *stubSearch) Search(ctx context.Context, scope tenant.Scope, text string, q listing.Query) (listing.Page[search.Item], error) {
	s.mu.Lock()
	s.scopes = append(s.scopes, scope)
	s.mu.Unlock()
	return listing.Page[search.Item]{
		Results: []search.Item{{Kind: search.KindCustomer, EntityID: 7, Text: "Bart Simpson"}},
		Count:   1,
		Page:    1,
	}, nil
}

type fixture struct {
	t          *testing.T
	handler    http.Handler
	accounts   *memAccounts
	codes      *memCodes
	franchises *memFranchises
	orders     *stubOrders
	search     *stubSearch
	ids        map[string]string
}

func newFixture(t *testing.T) *fixture {
	return newFixtureWithLimiter(t, NewRateLimiter(1000, 1000))
}

func newFixtureWithLimiter(t *testing.T, rl *RateLimiter) *fixture {
	t.Helper()
	t.Cleanup(rl.Stop)
	ctx := context.Background()

	franchises := newMemFranchises(
		&tenant.Franchise{ID: "f-spr", SchemaName: "springfield", Name: "Springfield", Status: tenant.StatusActive},
		&tenant.Franchise{ID: "f-shb", SchemaName: "shelbyville", Name: "Shelbyville", Status: tenant.StatusActive},
		&tenant.Franchise{ID: "f-ogd", SchemaName: "ogdenville", Name: "Ogdenville", Status: tenant.StatusPending},
	)
	router, err := tenant.NewRouter(franchises, config.TenantConfig{
		BaseDomain: "workery.test",
		Scheme:     "https",
		CacheTTL:   time.Second,
		CacheBytes: 1 << 20,
	}, metrics.Discard(), audit.Discard{})
	require.NoError(t, err)
	t.Cleanup(router.Close)

	accounts := newMemAccounts()
	ids := identity.NewService(accounts, identity.NewPasswordHasher(1024, 1, 1, 16, 32), audit.Discard{}, 5, time.Minute)
	codes := newMemCodes(accounts)
	orders := &stubOrders{}
	searchReader := &stubSearch{}

	f := &fixture{
		t:          t,
		accounts:   accounts,
		codes:      codes,
		franchises: franchises,
		orders:     orders,
		search:     searchReader,
		ids:        make(map[string]string),
	}

	springfield := "f-spr"
	for _, in := range []identity.NewAccount{
		{Email: "root@workery.test", Username: "root", Role: authz.RoleRoot},
		{Email: "marge@workery.test", Username: "marge", Role: authz.RoleManagement, FranchiseID: &springfield},
		{Email: "lenny@workery.test", Username: "lenny", Role: authz.RoleFrontline, FranchiseID: &springfield},
		{Email: "homer@workery.test", Username: "homer", Role: authz.RoleAssociate, FranchiseID: &springfield},
	} {
		in.Password = testPassword
		in.WasActivated = true
		a, err := ids.CreateAccount(ctx, in)
		require.NoError(t, err)
		f.ids[in.Username] = a.ID
	}

	h := NewHandler(Deps{
		Identity:    ids,
		Sessions:    session.NewService(newMemSessions(), session.NewSigner("test-signing-secret-0123456789abcdef", "workery-test"), time.Hour, 0),
		AccessCodes: accesscode.NewService(codes, ids, accesscode.LogMailer{BaseURL: "https://workery.test"}, audit.Discard{}, metrics.Discard(), 24*time.Hour),
		Router:      router,
		Franchises:  tenant.NewService(franchises, nil, router, audit.Discard{}, 10*time.Minute),
		Parties:     party.NewService(nil, audit.Discard{}),
		Orders:      workorder.NewService(orders, audit.Discard{}, metrics.Discard()),
		Search:      search.NewService(searchReader),
		Archive:     archive.NewService(nil, audit.Discard{}),
	}, CookieConfig{Name: "workery_session", Path: "/", HTTPOnly: true, SameSite: http.SameSiteLaxMode, MaxAge: time.Hour})
	f.handler = NewRouter(h, rl)
	return f
}

// do sends a request. host may be empty; token may be empty.
func (f *fixture) do(method, target, host, token string, body any) *httptest.ResponseRecorder {
	f.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(f.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	if host != "" {
		req.Host = host
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) login(login string) LoginResponse {
	f.t.Helper()
	rec := f.do(http.MethodPost, "/api/v1/auth/login", "", "", LoginRequest{Login: login, Password: testPassword})
	require.Equal(f.t, http.StatusOK, rec.Code, rec.Body.String())
	var resp LoginResponse
	require.NoError(f.t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(f.t, resp.Token)
	return resp
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return resp
}

func TestHealthCheck(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/health", "", "", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}

func TestReadinessCheck_ReportsStorageFailure(t *testing.T) {
	h := NewHandler(Deps{Ready: func(ctx context.Context) error { return errors.New("connection refused") }}, CookieConfig{})
	rl := NewRateLimiter(100, 100)
	defer rl.Stop()

	rec := httptest.NewRecorder()
	NewRouter(h, rl).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

// TestPurpose: Validates that login accepts either email or username and returns the landing address.
// Scope: Unit Test
// Security: Session issuance
// Expected: Franchise accounts land on their subdomain dashboard; root lands on the franchise list.
// Test Case ID: AUTH-01
func TestLogin_ReturnsTokenCookieAndLanding(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/api/v1/auth/login", "", "", LoginRequest{Login: "MARGE@workery.test", Password: testPassword})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp LoginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, "https://springfield.workery.test/dashboard", resp.Landing)
	assert.Equal(t, f.ids["marge"], resp.Account.ID)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "workery_session", cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)

	root := f.login("root")
	assert.Equal(t, "/franchises", root.Landing)
}

func TestLogin_FailuresAreIndistinguishable(t *testing.T) {
	f := newFixture(t)

	wrong := f.do(http.MethodPost, "/api/v1/auth/login", "", "", LoginRequest{Login: "marge", Password: "nope-nope-nope"})
	unknown := f.do(http.MethodPost, "/api/v1/auth/login", "", "", LoginRequest{Login: "nobody", Password: testPassword})
	empty := f.do(http.MethodPost, "/api/v1/auth/login", "", "", LoginRequest{})

	for _, rec := range []*httptest.ResponseRecorder{wrong, unknown, empty} {
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, decodeError(t, wrong).Error, decodeError(t, rec).Error)
	}
}

func TestLogin_RejectsUnknownFields(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/api/v1/auth/login", "", "", map[string]string{"login": "marge", "password": testPassword, "admin": "true"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation", decodeError(t, rec).Code)
}

func TestSession_MeAndLogout(t *testing.T) {
	f := newFixture(t)
	token := f.login("homer").Token

	rec := f.do(http.MethodGet, "/api/v1/auth/me", "", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var me AccountResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &me))
	assert.Equal(t, "homer", me.Username)

	rec = f.do(http.MethodPost, "/api/v1/auth/logout", "", token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(http.MethodGet, "/api/v1/auth/me", "", token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSession_CookieAuthenticates(t *testing.T) {
	f := newFixture(t)
	token := f.login("marge").Token

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
	req.AddCookie(&http.Cookie{Name: "workery_session", Value: token})
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSession_StaleTokenDoesNotBlockLogin(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login",
		strings.NewReader(`{"login":"marge","password":"`+testPassword+`"}`))
	req.AddCookie(&http.Cookie{Name: "workery_session", Value: "garbage"})
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestLanding_Anonymous(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/api/v1/auth/landing", "", "", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"redirect":"/login"}`, rec.Body.String())
}

func TestChangePassword_RevokesSessions(t *testing.T) {
	f := newFixture(t)
	token := f.login("lenny").Token

	rec := f.do(http.MethodPost, "/api/v1/auth/change-password", "", token, ChangePasswordRequest{
		OldPassword: testPassword,
		NewPassword: "Another-Secret-7",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.do(http.MethodGet, "/api/v1/auth/me", "", token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(http.MethodPost, "/api/v1/auth/login", "", "", LoginRequest{Login: "lenny", Password: "Another-Secret-7"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRespondError_Mapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
		msg    string
	}{
		{"not found", identity.ErrAccountNotFound, http.StatusNotFound, "not_found", "account not found"},
		{"isolation", tenant.ErrCrossTenant, http.StatusForbidden, "isolation_violation", "account does not belong to this tenant"},
		{"conflict", workorder.ErrTaskClosed, http.StatusConflict, "conflict", ""},
		{"unauthorized", session.ErrSessionNotFound, http.StatusUnauthorized, "unauthorized", "invalid or expired session"},
		{"internal", errors.New("pq: password authentication failed for user workery"), http.StatusInternalServerError, "internal", "internal error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			respondError(rec, httptest.NewRequest(http.MethodGet, "/", nil), tt.err)

			assert.Equal(t, tt.status, rec.Code)
			resp := decodeError(t, rec)
			assert.Equal(t, tt.code, resp.Code)
			if tt.msg != "" {
				assert.Equal(t, tt.msg, resp.Error)
			}
			assert.NotContains(t, rec.Body.String(), "password authentication")
		})
	}
}
