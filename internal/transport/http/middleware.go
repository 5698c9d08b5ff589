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
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/over55/workery/internal/apperr"
	"github.com/over55/workery/internal/authz"
	"github.com/over55/workery/internal/observability/logger"
	"github.com/over55/workery/internal/tenant"
)

// Tenant context is derived from the request host or the schema query
// parameter and checked against the authenticated account. A franchise account
// never reaches another franchise's schema, whatever the request names.

var errNotAuthenticated = apperr.New(apperr.EUnauthorized, "not authenticated")

// LoggingMiddleware logs HTTP requests
func LoggingMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				slog.InfoContext(r.Context(), "http_request",
					logger.RequestID(middleware.GetReqID(r.Context())),
					logger.Method(r.Method),
					logger.Path(r.URL.Path),
					logger.RemoteAddr(r.RemoteAddr),
					logger.UserAgent(r.UserAgent()),
					logger.StatusCode(ww.Status()),
					logger.Duration(time.Since(start).Milliseconds()),
				)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}

// token returns the session token from the bearer header or the cookie.
func (h *Handler) token(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		if t, ok := strings.CutPrefix(auth, "Bearer "); ok {
			return strings.TrimSpace(t)
		}
	}
	if c, err := r.Cookie(h.cookies.Name); err == nil {
		return c.Value
	}
	return ""
}

// Authenticate loads the session and account named by the request token.
// Requests without a usable token pass through anonymously and stale cookies
// are cleared.
func (h *Handler) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := h.token(r)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}

		sess, err := h.sessions.Resolve(r.Context(), token)
		if err != nil {
			if apperr.ErrorCode(err) != apperr.EUnauthorized {
				respondError(w, r, err)
				return
			}
			h.clearSessionCookie(w)
			next.ServeHTTP(w, r)
			return
		}
		account, err := h.identity.GetAccount(r.Context(), sess.AccountID)
		if err != nil {
			slog.WarnContext(r.Context(), "session names a missing account",
				logger.SessionID(sess.ID),
				logger.AccountID(sess.AccountID),
				logger.Error(err),
			)
			if destroyErr := h.sessions.Destroy(r.Context(), sess.ID); destroyErr != nil {
				slog.WarnContext(r.Context(), "failed to destroy orphaned session", logger.Error(destroyErr))
			}
			h.clearSessionCookie(w)
			next.ServeHTTP(w, r)
			return
		}

		ctx := context.WithValue(r.Context(), sessionKey, sess)
		ctx = context.WithValue(ctx, accountKey, account)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAccount rejects anonymous requests.
func RequireAccount(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetAccount(r.Context()) == nil {
			respondError(w, r, errNotAuthenticated)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ResolveTenant binds the request to the franchise named by its host or
// schema parameter and confines the account to it. Mutating requests bypass
// the franchise cache.
func (h *Handler) ResolveTenant(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resolve := h.router.Resolve
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			resolve = h.router.ResolveFresh
		}
		f, _, err := resolve(r.Context(), r.Host, r.URL.Query().Get("schema"))
		if err != nil {
			respondError(w, r, err)
			return
		}
		if account := GetAccount(r.Context()); account != nil {
			if err := h.router.Confine(r.Context(), f, account); err != nil {
				respondError(w, r, err)
				return
			}
		}
		ctx := context.WithValue(r.Context(), franchiseKey, f)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequirePermission rejects accounts whose role lacks any of permissions.
func RequirePermission(permissions ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			account := GetAccount(r.Context())
			if account == nil {
				respondError(w, r, errNotAuthenticated)
				return
			}
			if err := authz.Check(account.Role, permissions...); err != nil {
				respondError(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// authorizeListing checks the caller against a listing resource.
func authorizeListing(r *http.Request, resource authz.AccessControlled) error {
	account := GetAccount(r.Context())
	if account == nil {
		return errNotAuthenticated
	}
	return authz.Authorize(account.Role, resource)
}

// scopeOf returns the request's tenant scope or an isolation error when the
// route was reached without one.
func scopeOf(r *http.Request) (tenant.Scope, error) {
	scope := GetScope(r.Context())
	if scope.IsZero() {
		return scope, tenant.ErrNoTenant
	}
	return scope, nil
}
