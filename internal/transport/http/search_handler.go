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
	"github.com/over55/workery/internal/search"
)

// SearchPage is one page of search results.
type SearchPage = listing.Page[search.Item]

// Search finds records of the current franchise by text
// @Summary Search
// @Description Case-insensitive substring search over every indexed record. Archived records are excluded unless requested.
// @Tags Search
// @Produce json
// @Security CookieAuth
// @Param q query string true "Search text"
// @Param kind query string false "Limit to one record kind"
// @Param include_archived query bool false "Include archived records"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} SearchPage
// @Failure 400 {object} ErrorResponse
// @Router /search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	if err := authorizeListing(r, search.Resource{}); err != nil {
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
	page, err := h.search.Search(r.Context(), scope, r.URL.Query().Get("q"), q)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, page)
}

func archiveTarget(r *http.Request) (search.Kind, int64, error) {
	kind := search.Kind(chi.URLParam(r, "kind"))
	id, err := int64Param(r, "id")
	return kind, id, err
}

// ArchiveEntity hides a record from lists and search
// @Summary Archive Record
// @Tags Archive
// @Security CookieAuth
// @Param kind path string true "customer, associate, staff, partner or work_order"
// @Param id path int true "Record ID"
// @Success 204 "No Content"
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /archive/{kind}/{id} [post]
func (h *Handler) ArchiveEntity(w http.ResponseWriter, r *http.Request) {
	h.setArchived(w, r, true)
}

// UnarchiveEntity restores an archived record
// @Summary Unarchive Record
// @Tags Archive
// @Security CookieAuth
// @Param kind path string true "customer, associate, staff, partner or work_order"
// @Param id path int true "Record ID"
// @Success 204 "No Content"
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /archive/{kind}/{id} [delete]
func (h *Handler) UnarchiveEntity(w http.ResponseWriter, r *http.Request) {
	h.setArchived(w, r, false)
}

func (h *Handler) setArchived(w http.ResponseWriter, r *http.Request, archived bool) {
	scope, err := scopeOf(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	kind, id, err := archiveTarget(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if archived {
		err = h.archive.Archive(r.Context(), scope, requestContext(r), kind, id)
	} else {
		err = h.archive.Unarchive(r.Context(), scope, requestContext(r), kind, id)
	}
	if err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
