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
	"context"
	"net/http"

	"github.com/over55/workery/internal/identity"
	"github.com/over55/workery/internal/reqctx"
	"github.com/over55/workery/internal/session"
	"github.com/over55/workery/internal/tenant"
)

type contextKey string

const (
	accountKey   contextKey = "account"
	sessionKey   contextKey = "session"
	franchiseKey contextKey = "franchise"
)

// GetAccount retrieves the authenticated account from context.
func GetAccount(ctx context.Context) *identity.Account {
	if val, ok := ctx.Value(accountKey).(*identity.Account); ok {
		return val
	}
	return nil
}

// GetSession retrieves the current session from context.
func GetSession(ctx context.Context) *session.Session {
	if val, ok := ctx.Value(sessionKey).(*session.Session); ok {
		return val
	}
	return nil
}

// GetFranchise retrieves the franchise bound to the request.
func GetFranchise(ctx context.Context) *tenant.Franchise {
	if val, ok := ctx.Value(franchiseKey).(*tenant.Franchise); ok {
		return val
	}
	return nil
}

// GetScope returns the tenant scope of the request, zero when no franchise
// was resolved.
func GetScope(ctx context.Context) tenant.Scope {
	if f := GetFranchise(ctx); f != nil {
		return tenant.ScopeOf(f)
	}
	return tenant.Scope{}
}

// requestContext describes who is calling and from where.
func requestContext(r *http.Request) reqctx.RequestContext {
	ip := clientIP(r)
	if a := GetAccount(r.Context()); a != nil {
		return reqctx.New(a.ID, a.Role, ip, r.UserAgent())
	}
	return reqctx.New("", "", ip, r.UserAgent())
}
