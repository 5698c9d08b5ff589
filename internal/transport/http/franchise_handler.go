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
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/over55/workery/internal/apperr"
	"github.com/over55/workery/internal/authz"
	"github.com/over55/workery/internal/identity"
	"github.com/over55/workery/internal/listing"
	"github.com/over55/workery/internal/observability/logger"
	"github.com/over55/workery/internal/tenant"
)

// FranchisePage is one page of franchises.
type FranchisePage = listing.Page[*tenant.Franchise]

type franchiseListing struct{}

func (franchiseListing) MaxPageSize() uint64 { return 100 }

// CreateFranchise records a franchise and schedules its schema
// @Summary Create Franchise
// @Description Stores a PENDING franchise and enqueues provisioning. Returns before the schema exists.
// @Tags Franchise
// @Accept json
// @Produce json
// @Security CookieAuth
// @Param request body tenant.NewFranchise true "Franchise Data"
// @Success 202 {object} tenant.Franchise
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /franchises [post]
func (h *Handler) CreateFranchise(w http.ResponseWriter, r *http.Request) {
	const op = "http.CreateFranchise"
	var req tenant.NewFranchise
	if err := decodeJSON(r, op, &req); err != nil {
		respondError(w, r, err)
		return
	}

	f, err := h.franchises.RequestProvision(r.Context(), requestContext(r), req)
	if err != nil {
		// The row exists but the job could not be queued; report the
		// franchise so the caller can retry it.
		if f != nil && errors.Is(err, tenant.ErrEnqueueFailed) {
			slog.ErrorContext(r.Context(), "franchise stored without a provisioning job",
				logger.FranchiseID(f.ID),
				logger.Error(err),
			)
		}
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusAccepted, f)
}

// ListFranchises lists franchises
// @Summary List Franchises
// @Tags Franchise
// @Produce json
// @Security CookieAuth
// @Param status query string false "PENDING, ACTIVE or FAILED"
// @Param include_archived query bool false "Include archived franchises"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} FranchisePage
// @Failure 403 {object} ErrorResponse
// @Router /franchises [get]
func (h *Handler) ListFranchises(w http.ResponseWriter, r *http.Request) {
	q, err := listing.FromValues(r.URL.Query())
	if err != nil {
		respondError(w, r, err)
		return
	}
	filter := tenant.ListFilter{
		IncludeArchived: q.IncludeArchived,
		Status:          tenant.Status(q.Filters["status"]),
		Limit:           int(q.Limit(franchiseListing{})),
		Offset:          int(q.Offset(franchiseListing{})),
	}
	franchises, total, err := h.franchises.List(r.Context(), filter)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, FranchisePage{
		Results:  franchises,
		Count:    total,
		Page:     max(q.Page, 1),
		PageSize: q.Limit(franchiseListing{}),
	})
}

// GetFranchise returns one franchise
// @Summary Get Franchise
// @Tags Franchise
// @Produce json
// @Security CookieAuth
// @Param franchiseID path string true "Franchise ID"
// @Success 200 {object} tenant.Franchise
// @Failure 404 {object} ErrorResponse
// @Router /franchises/{franchiseID} [get]
func (h *Handler) GetFranchise(w http.ResponseWriter, r *http.Request) {
	f, err := h.franchises.Get(r.Context(), chi.URLParam(r, "franchiseID"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, f)
}

// RetryFranchise re-enqueues a FAILED franchise
// @Summary Retry Provisioning
// @Tags Franchise
// @Produce json
// @Security CookieAuth
// @Param franchiseID path string true "Franchise ID"
// @Success 202 {object} tenant.Franchise
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /franchises/{franchiseID}/retry [post]
func (h *Handler) RetryFranchise(w http.ResponseWriter, r *http.Request) {
	f, err := h.franchises.Retry(r.Context(), requestContext(r), chi.URLParam(r, "franchiseID"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusAccepted, f)
}

// ArchiveFranchise hides a franchise and stops routing to it
// @Summary Archive Franchise
// @Tags Franchise
// @Produce json
// @Security CookieAuth
// @Param franchiseID path string true "Franchise ID"
// @Success 200 {object} tenant.Franchise
// @Failure 404 {object} ErrorResponse
// @Router /franchises/{franchiseID}/archive [post]
func (h *Handler) ArchiveFranchise(w http.ResponseWriter, r *http.Request) {
	f, err := h.franchises.Archive(r.Context(), requestContext(r), chi.URLParam(r, "franchiseID"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, f)
}

// UnarchiveFranchise restores an archived franchise
// @Summary Unarchive Franchise
// @Tags Franchise
// @Produce json
// @Security CookieAuth
// @Param franchiseID path string true "Franchise ID"
// @Success 200 {object} tenant.Franchise
// @Failure 404 {object} ErrorResponse
// @Router /franchises/{franchiseID}/archive [delete]
func (h *Handler) UnarchiveFranchise(w http.ResponseWriter, r *http.Request) {
	f, err := h.franchises.Unarchive(r.Context(), requestContext(r), chi.URLParam(r, "franchiseID"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, f)
}

// CreateAccountRequest describes a franchise staff account.
type CreateAccountRequest struct {
	Email     string `json:"email" example:"marge@springfield.example"`
	Username  string `json:"username" example:"marge"`
	Password  string `json:"password"`
	Role      string `json:"role" example:"management"`
	FirstName string `json:"first_name" example:"Marge"`
	LastName  string `json:"last_name" example:"Simpson"`
}

// CreateFranchiseAccount creates an account bound to a franchise and sends
// its activation code
// @Summary Create Franchise Account
// @Tags Franchise
// @Accept json
// @Produce json
// @Security CookieAuth
// @Param franchiseID path string true "Franchise ID"
// @Param request body CreateAccountRequest true "Account Data"
// @Success 201 {object} AccountResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /franchises/{franchiseID}/accounts [post]
func (h *Handler) CreateFranchiseAccount(w http.ResponseWriter, r *http.Request) {
	const op = "http.CreateFranchiseAccount"
	var req CreateAccountRequest
	if err := decodeJSON(r, op, &req); err != nil {
		respondError(w, r, err)
		return
	}

	f, err := h.franchises.Get(r.Context(), chi.URLParam(r, "franchiseID"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	if f.IsArchived {
		respondError(w, r, apperr.Wrap(op, tenant.ErrFranchiseArchived))
		return
	}

	account, err := h.identity.CreateAccount(r.Context(), identity.NewAccount{
		Email:       req.Email,
		Username:    req.Username,
		Password:    req.Password,
		FranchiseID: &f.ID,
		Role:        authz.Role(req.Role),
		FirstName:   req.FirstName,
		LastName:    req.LastName,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	if err := h.accessCodes.IssueActivation(r.Context(), account.ID); err != nil {
		slog.ErrorContext(r.Context(), "failed to send activation code",
			logger.AccountID(account.ID),
			logger.Error(err),
		)
	}
	respondJSON(w, http.StatusCreated, accountResponse(account))
}
