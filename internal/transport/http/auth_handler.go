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
	"time"

	"github.com/over55/workery/internal/apperr"
	"github.com/over55/workery/internal/audit"
	"github.com/over55/workery/internal/authz"
	"github.com/over55/workery/internal/identity"
	"github.com/over55/workery/internal/observability/logger"
)

// LoginRequest represents login credentials. Login is an email or a username.
type LoginRequest struct {
	Login    string `json:"login" example:"bart@springfield.example"`
	Password string `json:"password" example:"Secret#123"`
}

// AccountResponse is the public view of an account.
type AccountResponse struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	Username    string     `json:"username"`
	FranchiseID *string    `json:"franchise_id,omitempty"`
	Role        authz.Role `json:"role"`
	FirstName   string     `json:"first_name,omitempty"`
	LastName    string     `json:"last_name,omitempty"`
}

func accountResponse(a *identity.Account) AccountResponse {
	return AccountResponse{
		ID:          a.ID,
		Email:       a.Email,
		Username:    a.Username,
		FranchiseID: a.FranchiseID,
		Role:        a.Role,
		FirstName:   a.FirstName,
		LastName:    a.LastName,
	}
}

// LoginResponse carries the session token and where to go next.
type LoginResponse struct {
	Account   AccountResponse `json:"account"`
	Token     string          `json:"token"`
	ExpiresAt time.Time       `json:"expires_at"`
	Landing   string          `json:"landing"`
}

// Login handles account login
// @Summary Login
// @Description Authenticate by email or username and open a session
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Credentials"
// @Success 200 {object} LoginResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Router /auth/login [post]
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	const op = "http.Login"
	var req LoginRequest
	if err := decodeJSON(r, op, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if req.Login == "" || req.Password == "" {
		respondError(w, r, identity.ErrInvalidCredentials)
		return
	}

	account, err := h.identity.Authenticate(r.Context(), req.Login, req.Password)
	if err != nil {
		// Unknown and ambiguous logins look like a bad password.
		if apperr.ErrorCode(err) == apperr.ENotFound {
			err = identity.ErrInvalidCredentials
		}
		respondError(w, r, err)
		return
	}

	sess, token, err := h.sessions.Create(r.Context(), account.ID, account.FranchiseID, clientIP(r), r.UserAgent())
	if err != nil {
		respondError(w, r, err)
		return
	}
	h.setSessionCookie(w, token)

	landing, err := h.router.Landing(r.Context(), account)
	if err != nil {
		// The session stays valid; the account just has nowhere to land yet.
		slog.WarnContext(r.Context(), "no landing for account",
			logger.AccountID(account.ID),
			logger.Error(err),
		)
		landing = ""
	}

	respondJSON(w, http.StatusOK, LoginResponse{
		Account:   accountResponse(account),
		Token:     token,
		ExpiresAt: sess.ExpiresAt,
		Landing:   landing,
	})
}

// Logout handles account logout
// @Summary Logout
// @Description Destroy the current session
// @Tags Auth
// @Produce json
// @Security CookieAuth
// @Success 200 {object} map[string]string
// @Failure 401 {object} ErrorResponse
// @Router /auth/logout [post]
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	account := GetAccount(r.Context())
	if sess := GetSession(r.Context()); sess != nil {
		if err := h.sessions.Destroy(r.Context(), sess.ID); err != nil {
			respondError(w, r, err)
			return
		}
		h.audit.Log(r.Context(), audit.Event{
			Type:      audit.TypeLogout,
			TenantID:  account.HomeFranchise(),
			ActorID:   account.ID,
			Resource:  "session",
			IPAddress: clientIP(r),
			UserAgent: r.UserAgent(),
		})
	}
	h.clearSessionCookie(w)
	respondJSON(w, http.StatusOK, map[string]string{"message": "logged out successfully"})
}

// GetCurrentAccount returns the authenticated account
// @Summary Get Current Account
// @Tags Auth
// @Produce json
// @Security CookieAuth
// @Success 200 {object} AccountResponse
// @Failure 401 {object} ErrorResponse
// @Router /auth/me [get]
func (h *Handler) GetCurrentAccount(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, accountResponse(GetAccount(r.Context())))
}

// Landing reports where the caller should go: its franchise dashboard, the
// franchise list for root accounts, or the login page when anonymous.
// @Summary Landing Redirect
// @Tags Auth
// @Produce json
// @Success 200 {object} map[string]string
// @Failure 403 {object} ErrorResponse
// @Router /auth/landing [get]
func (h *Handler) Landing(w http.ResponseWriter, r *http.Request) {
	to, err := h.router.Landing(r.Context(), GetAccount(r.Context()))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"redirect": to})
}

// ChangePasswordRequest represents password change data
type ChangePasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

// ChangePassword changes the password of the current account and ends every
// other session.
// @Summary Change Password
// @Tags Auth
// @Accept json
// @Produce json
// @Security CookieAuth
// @Param request body ChangePasswordRequest true "Password Change Data"
// @Success 200 {object} map[string]string
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Router /auth/change-password [post]
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	const op = "http.ChangePassword"
	var req ChangePasswordRequest
	if err := decodeJSON(r, op, &req); err != nil {
		respondError(w, r, err)
		return
	}
	account := GetAccount(r.Context())
	if err := h.identity.ChangePassword(r.Context(), account.ID, req.OldPassword, req.NewPassword); err != nil {
		respondError(w, r, err)
		return
	}
	if err := h.sessions.DestroyAll(r.Context(), account.ID); err != nil {
		slog.WarnContext(r.Context(), "failed to end sessions after password change",
			logger.AccountID(account.ID),
			logger.Error(err),
		)
	}
	h.clearSessionCookie(w)
	respondJSON(w, http.StatusOK, map[string]string{"message": "password changed successfully"})
}
