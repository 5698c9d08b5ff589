// @title Workery API
// @version 1.0.0
// @description Multi-tenant workforce and work order management
// @termsOfService http://swagger.io/terms/

// @contact.name API Support
// @contact.url https://github.com/over55/workery

// @license.name Apache 2.0
// @license.url https://www.apache.org/licenses/LICENSE-2.0

// @host localhost:8080
// @BasePath /api/v1

// @securityDefinitions.apikey CookieAuth
// @in cookie
// @name workery_session

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

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

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/swaggo/swag"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/over55/workery/internal/accesscode"
	"github.com/over55/workery/internal/archive"
	"github.com/over55/workery/internal/audit"
	"github.com/over55/workery/internal/authz"
	"github.com/over55/workery/internal/config"
	"github.com/over55/workery/internal/identity"
	"github.com/over55/workery/internal/observability/logger"
	"github.com/over55/workery/internal/party"
	"github.com/over55/workery/internal/search"
	"github.com/over55/workery/internal/session"
	"github.com/over55/workery/internal/tenant"
	"github.com/over55/workery/internal/workorder"
)

// Deps are the services the HTTP layer calls into.
type Deps struct {
	Identity    *identity.Service
	Sessions    *session.Service
	AccessCodes *accesscode.Service
	Router      *tenant.Router
	Franchises  *tenant.Service
	Parties     *party.Service
	Orders      *workorder.Service
	Search      *search.Service
	Archive     *archive.Service
	Audit       audit.Logger

	// Ready reports whether storage is reachable. Nil means always ready.
	Ready func(ctx context.Context) error
	// Metrics serves the prometheus registry. Nil disables /metrics.
	Metrics http.Handler
}

// CookieConfig holds session cookie configuration
type CookieConfig struct {
	Name     string
	Domain   string
	Path     string
	Secure   bool
	HTTPOnly bool
	SameSite http.SameSite
	MaxAge   time.Duration
}

// CookieConfigFrom converts session settings to cookie attributes.
func CookieConfigFrom(cfg config.SessionConfig) CookieConfig {
	sameSite := http.SameSiteLaxMode
	switch strings.ToLower(cfg.CookieSameSite) {
	case "strict":
		sameSite = http.SameSiteStrictMode
	case "none":
		sameSite = http.SameSiteNoneMode
	}
	return CookieConfig{
		Name:     cfg.CookieName,
		Domain:   cfg.CookieDomain,
		Path:     cfg.CookiePath,
		Secure:   cfg.CookieSecure,
		HTTPOnly: cfg.CookieHTTPOnly,
		SameSite: sameSite,
		MaxAge:   cfg.Lifetime,
	}
}

// Handler holds HTTP handlers and dependencies
type Handler struct {
	identity    *identity.Service
	sessions    *session.Service
	accessCodes *accesscode.Service
	router      *tenant.Router
	franchises  *tenant.Service
	parties     *party.Service
	orders      *workorder.Service
	search      *search.Service
	archive     *archive.Service
	audit       audit.Logger
	ready       func(ctx context.Context) error
	metrics     http.Handler
	cookies     CookieConfig
}

// NewHandler creates a new HTTP handler
func NewHandler(d Deps, cookies CookieConfig) *Handler {
	if d.Audit == nil {
		d.Audit = audit.Discard{}
	}
	return &Handler{
		identity:    d.Identity,
		sessions:    d.Sessions,
		accessCodes: d.AccessCodes,
		router:      d.Router,
		franchises:  d.Franchises,
		parties:     d.Parties,
		orders:      d.Orders,
		search:      d.Search,
		archive:     d.Archive,
		audit:       d.Audit,
		ready:       d.Ready,
		metrics:     d.Metrics,
		cookies:     cookies,
	}
}

// NewRouter creates a new HTTP router
func NewRouter(h *Handler, rateLimiter *RateLimiter) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(RateLimitMiddleware(rateLimiter))
	r.Use(func(handler http.Handler) http.Handler {
		return otelhttp.NewHandler(handler, "http_request",
			otelhttp.WithSpanNameFormatter(func(operation string, r *http.Request) string {
				return r.Method + " " + r.URL.Path
			}),
		)
	})
	r.Use(LoggingMiddleware())
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", h.HealthCheck)
	r.Get("/ready", h.ReadinessCheck)
	r.Get("/swagger/doc.json", h.SwaggerDoc)
	if h.metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.metrics)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(h.Authenticate)

		r.Post("/auth/login", h.Login)
		r.Get("/auth/landing", h.Landing)

		r.Route("/access-codes", func(r chi.Router) {
			r.Post("/reset-requests", h.RequestPasswordReset)
			r.Get("/{code}", h.ValidateAccessCode)
			r.Post("/{code}/activate", h.ActivateAccount)
			r.Post("/{code}/reset", h.ResetPassword)
		})

		r.Group(func(r chi.Router) {
			r.Use(RequireAccount)

			r.Post("/auth/logout", h.Logout)
			r.Get("/auth/me", h.GetCurrentAccount)
			r.Post("/auth/change-password", h.ChangePassword)

			r.Route("/franchises", func(r chi.Router) {
				r.Use(RequirePermission(authz.PermFranchiseManage))
				r.Post("/", h.CreateFranchise)
				r.Get("/", h.ListFranchises)
				r.Get("/{franchiseID}", h.GetFranchise)
				r.Post("/{franchiseID}/retry", h.RetryFranchise)
				r.Post("/{franchiseID}/archive", h.ArchiveFranchise)
				r.Delete("/{franchiseID}/archive", h.UnarchiveFranchise)
				r.Post("/{franchiseID}/accounts", h.CreateFranchiseAccount)
			})

			// Tenant scoped
			r.Group(func(r chi.Router) {
				r.Use(h.ResolveTenant)

				r.Route("/parties/{kind}", func(r chi.Router) {
					r.Get("/", h.ListParties)
					r.With(RequirePermission(authz.PermPartyWrite)).Post("/", h.CreateParty)
					r.With(RequirePermission(authz.PermPartyRead)).Get("/{id}", h.GetParty)
					r.With(RequirePermission(authz.PermPartyWrite)).Put("/{id}", h.UpdateParty)
					r.With(RequirePermission(authz.PermPartyDelete)).Delete("/{id}", h.DeleteParty)
					r.With(RequirePermission(authz.PermPartyRead)).Get("/{id}/comments", h.ListPartyComments)
					r.With(RequirePermission(authz.PermPartyWrite)).Post("/{id}/comments", h.AddPartyComment)
				})

				r.Route("/work-orders", func(r chi.Router) {
					r.Get("/", h.ListWorkOrders)
					r.With(RequirePermission(authz.PermOrderWrite)).Post("/", h.CreateWorkOrder)
					r.With(RequirePermission(authz.PermOrderClose)).Post("/complete", h.CompleteWorkOrder)
					r.With(RequirePermission(authz.PermOrderRead)).Get("/ongoing/{id}", h.GetOngoingWorkOrder)
					r.With(RequirePermission(authz.PermOrderRead)).Get("/{id}", h.GetWorkOrder)
					r.With(RequirePermission(authz.PermOrderWrite)).Post("/{id}/assign", h.AssignWorkOrder)
					r.With(RequirePermission(authz.PermOrderPay)).Post("/{id}/pay", h.MarkWorkOrderPaid)
					r.With(RequirePermission(authz.PermOrderRead)).Get("/{id}/tasks", h.ListWorkOrderTasks)
					r.With(RequirePermission(authz.PermOrderRead)).Get("/{id}/comments", h.ListWorkOrderComments)
					r.With(RequirePermission(authz.PermOrderWrite)).Post("/{id}/comments", h.AddWorkOrderComment)
				})

				r.Get("/search", h.Search)

				r.Route("/archive/{kind}/{id}", func(r chi.Router) {
					r.Use(RequirePermission(authz.PermArchive))
					r.Post("/", h.ArchiveEntity)
					r.Delete("/", h.UnarchiveEntity)
				})
			})
		})
	})

	return r
}

// HealthCheck returns the health status
// @Summary Health Check
// @Description Checks if the service is up and running
// @Tags System
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "workery",
	})
}

// ReadinessCheck reports whether storage is reachable
// @Summary Readiness Check
// @Tags System
// @Produce json
// @Success 200 {object} map[string]string
// @Failure 503 {object} map[string]string
// @Router /ready [get]
func (h *Handler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	if h.ready != nil {
		if err := h.ready(r.Context()); err != nil {
			slog.WarnContext(r.Context(), "readiness check failed", logger.Error(err))
			respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// SwaggerDoc serves the registered OpenAPI document.
func (h *Handler) SwaggerDoc(w http.ResponseWriter, r *http.Request) {
	doc, err := swag.ReadDoc()
	if err != nil {
		respondJSON(w, http.StatusNotFound, ErrorResponse{Error: "api documentation not registered", Code: "not_found"})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(doc))
}

func (h *Handler) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookies.Name,
		Value:    token,
		Path:     h.cookies.Path,
		Domain:   h.cookies.Domain,
		Secure:   h.cookies.Secure,
		HttpOnly: h.cookies.HTTPOnly,
		SameSite: h.cookies.SameSite,
		MaxAge:   int(h.cookies.MaxAge.Seconds()),
	})
}

func (h *Handler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:   h.cookies.Name,
		Value:  "",
		Path:   h.cookies.Path,
		Domain: h.cookies.Domain,
		MaxAge: -1,
	})
}
