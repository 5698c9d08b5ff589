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
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/over55/workery/internal/listing"
	"github.com/over55/workery/internal/party"
	"github.com/over55/workery/internal/tenant"
)

// PartyPage is one page of parties.
type PartyPage = listing.Page[*party.Party]

// CommentRequest carries the text of a new comment.
type CommentRequest struct {
	Text string `json:"text" example:"Called, left a voicemail"`
}

func partyKind(r *http.Request) (party.Kind, error) {
	return party.ParseKind(chi.URLParam(r, "kind"))
}

// partyTarget reads the scope, kind and id a party route addresses.
func partyTarget(r *http.Request) (tenant.Scope, party.Kind, int64, error) {
	scope, err := scopeOf(r)
	if err != nil {
		return scope, "", 0, err
	}
	kind, err := partyKind(r)
	if err != nil {
		return scope, "", 0, err
	}
	id, err := int64Param(r, "id")
	return scope, kind, id, err
}

// ListParties lists parties of one kind
// @Summary List Parties
// @Tags Parties
// @Produce json
// @Security CookieAuth
// @Param kind path string true "customer, associate, staff or partner"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Param ordering query string false "Sort key, prefix - for descending"
// @Param include_archived query bool false "Include archived parties"
// @Success 200 {object} PartyPage
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Router /parties/{kind} [get]
func (h *Handler) ListParties(w http.ResponseWriter, r *http.Request) {
	kind, err := partyKind(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	resource := party.Resource{Kind: kind}
	if err := authorizeListing(r, resource); err != nil {
		respondError(w, r, err)
		return
	}
	scope, err := scopeOf(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	q, err := listing.FromValues(r.URL.Query())
	if err != nil {
		respondError(w, r, err)
		return
	}
	page, err := h.parties.List(r.Context(), scope, kind, q)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, page)
}

// CreateParty creates a party
// @Summary Create Party
// @Tags Parties
// @Accept json
// @Produce json
// @Security CookieAuth
// @Param kind path string true "customer, associate, staff or partner"
// @Param request body party.Input true "Party Data"
// @Success 201 {object} party.Party
// @Failure 400 {object} ErrorResponse
// @Router /parties/{kind} [post]
func (h *Handler) CreateParty(w http.ResponseWriter, r *http.Request) {
	const op = "http.CreateParty"
	kind, err := partyKind(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	scope, err := scopeOf(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	var in party.Input
	if err := decodeJSON(r, op, &in); err != nil {
		respondError(w, r, err)
		return
	}
	p, err := h.parties.Create(r.Context(), scope, requestContext(r), kind, in)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, p)
}

// GetParty returns one party
// @Summary Get Party
// @Tags Parties
// @Produce json
// @Security CookieAuth
// @Param kind path string true "customer, associate, staff or partner"
// @Param id path int true "Party ID"
// @Success 200 {object} party.Party
// @Failure 404 {object} ErrorResponse
// @Router /parties/{kind}/{id} [get]
func (h *Handler) GetParty(w http.ResponseWriter, r *http.Request) {
	scope, kind, id, err := partyTarget(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	p, err := h.parties.Get(r.Context(), scope, kind, id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

// UpdateParty replaces the writable fields of a party
// @Summary Update Party
// @Tags Parties
// @Accept json
// @Produce json
// @Security CookieAuth
// @Param kind path string true "customer, associate, staff or partner"
// @Param id path int true "Party ID"
// @Param request body party.Input true "Party Data"
// @Success 200 {object} party.Party
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /parties/{kind}/{id} [put]
func (h *Handler) UpdateParty(w http.ResponseWriter, r *http.Request) {
	const op = "http.UpdateParty"
	scope, kind, id, err := partyTarget(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	var in party.Input
	if err := decodeJSON(r, op, &in); err != nil {
		respondError(w, r, err)
		return
	}
	p, err := h.parties.Update(r.Context(), scope, requestContext(r), kind, id, in)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

// DeleteParty removes an unreferenced party
// @Summary Delete Party
// @Description Refused with 409 once a work order or comment names the party; archive it instead.
// @Tags Parties
// @Security CookieAuth
// @Param kind path string true "customer, associate, staff or partner"
// @Param id path int true "Party ID"
// @Success 204 "No Content"
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /parties/{kind}/{id} [delete]
func (h *Handler) DeleteParty(w http.ResponseWriter, r *http.Request) {
	scope, kind, id, err := partyTarget(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if err := h.parties.Delete(r.Context(), scope, requestContext(r), kind, id); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListPartyComments lists comments on a party
// @Summary List Party Comments
// @Tags Parties
// @Produce json
// @Security CookieAuth
// @Param kind path string true "customer, associate, staff or partner"
// @Param id path int true "Party ID"
// @Success 200 {array} party.Comment
// @Failure 404 {object} ErrorResponse
// @Router /parties/{kind}/{id}/comments [get]
func (h *Handler) ListPartyComments(w http.ResponseWriter, r *http.Request) {
	scope, kind, id, err := partyTarget(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	comments, err := h.parties.ListComments(r.Context(), scope, kind, id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, comments)
}

// AddPartyComment attaches a comment to a party
// @Summary Add Party Comment
// @Tags Parties
// @Accept json
// @Produce json
// @Security CookieAuth
// @Param kind path string true "customer, associate, staff or partner"
// @Param id path int true "Party ID"
// @Param request body CommentRequest true "Comment"
// @Success 201 {object} party.Comment
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /parties/{kind}/{id}/comments [post]
func (h *Handler) AddPartyComment(w http.ResponseWriter, r *http.Request) {
	const op = "http.AddPartyComment"
	scope, kind, id, err := partyTarget(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	var req CommentRequest
	if err := decodeJSON(r, op, &req); err != nil {
		respondError(w, r, err)
		return
	}
	c, err := h.parties.AddComment(r.Context(), scope, requestContext(r), kind, id, req.Text)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, c)
}
