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
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/over55/workery/internal/accesscode"
	"github.com/over55/workery/internal/apperr"
	"github.com/over55/workery/internal/observability/logger"
)

// ResetRequest names the account asking for a password reset.
type ResetRequest struct {
	Login string `json:"login" example:"bart@springfield.example"`
}

// RequestPasswordReset issues a reset code
// @Summary Request Password Reset
// @Description Always answers 202 so callers cannot tell which logins exist
// @Tags Access Codes
// @Accept json
// @Produce json
// @Param request body ResetRequest true "Login"
// @Success 202 {object} map[string]string
// @Failure 400 {object} ErrorResponse
// @Router /access-codes/reset-requests [post]
func (h *Handler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	const op = "http.RequestPasswordReset"
	var req ResetRequest
	if err := decodeJSON(r, op, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if req.Login == "" {
		respondError(w, r, apperr.Validation(op, map[string]string{"login": "required"}))
		return
	}
	if err := h.accessCodes.RequestPasswordReset(r.Context(), req.Login); err != nil {
		slog.ErrorContext(r.Context(), "password reset request failed", logger.Error(err))
	}
	respondJSON(w, http.StatusAccepted, map[string]string{
		"message": "if the account exists, a reset code has been sent",
	})
}

// ValidateAccessCode checks a code without consuming it
// @Summary Validate Access Code
// @Tags Access Codes
// @Produce json
// @Param code path string true "Access code"
// @Param purpose query string true "activation or password_reset"
// @Success 200 {object} map[string]any
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /access-codes/{code} [get]
func (h *Handler) ValidateAccessCode(w http.ResponseWriter, r *http.Request) {
	purpose := accesscode.Purpose(r.URL.Query().Get("purpose"))
	if _, err := h.accessCodes.Validate(r.Context(), chi.URLParam(r, "code"), purpose); err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"valid": true, "purpose": purpose})
}

// ActivateAccount consumes an activation code
// @Summary Activate Account
// @Tags Access Codes
// @Produce json
// @Param code path string true "Access code"
// @Success 200 {object} map[string]string
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /access-codes/{code}/activate [post]
func (h *Handler) ActivateAccount(w http.ResponseWriter, r *http.Request) {
	if _, err := h.accessCodes.Activate(r.Context(), chi.URLParam(r, "code")); err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "account activated"})
}

// NewPasswordRequest carries the password set through a reset code.
type NewPasswordRequest struct {
	Password string `json:"password"`
}

// ResetPassword consumes a reset code and sets a new password
// @Summary Reset Password
// @Tags Access Codes
// @Accept json
// @Produce json
// @Param code path string true "Access code"
// @Param request body NewPasswordRequest true "New password"
// @Success 200 {object} map[string]string
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /access-codes/{code}/reset [post]
func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	const op = "http.ResetPassword"
	var req NewPasswordRequest
	if err := decodeJSON(r, op, &req); err != nil {
		respondError(w, r, err)
		return
	}
	accountID, err := h.accessCodes.ResetPassword(r.Context(), chi.URLParam(r, "code"), req.Password)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if err := h.sessions.DestroyAll(r.Context(), accountID); err != nil {
		slog.WarnContext(r.Context(), "failed to end sessions after reset",
			logger.AccountID(accountID),
			logger.Error(err),
		)
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "password updated"})
}
