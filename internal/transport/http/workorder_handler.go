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

	"github.com/over55/workery/internal/listing"
	"github.com/over55/workery/internal/tenant"
	"github.com/over55/workery/internal/workorder"
)

// WorkOrderPage is one page of work orders.
type WorkOrderPage = listing.Page[*workorder.Order]

// ListWorkOrders lists work orders
// @Summary List Work Orders
// @Tags Work Orders
// @Produce json
// @Security CookieAuth
// @Param state query string false "Filter by state"
// @Param customer query int false "Filter by customer id"
// @Param associate query int false "Filter by associate id"
// @Param ordering query string false "id, customer, associate, assignment_date, start_date, completion_date or state; prefix - for descending"
// @Param include_archived query bool false "Include archived orders"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} WorkOrderPage
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Router /work-orders [get]
func (h *Handler) ListWorkOrders(w http.ResponseWriter, r *http.Request) {
	if err := authorizeListing(r, workorder.Resource{}); err != nil {
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
	page, err := h.orders.List(r.Context(), scope, q)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, page)
}

// CreateWorkOrder opens a PENDING order
// @Summary Create Work Order
// @Tags Work Orders
// @Accept json
// @Produce json
// @Security CookieAuth
// @Param request body workorder.NewOrder true "Order Data"
// @Success 201 {object} workorder.Order
// @Failure 400 {object} ErrorResponse
// @Router /work-orders [post]
func (h *Handler) CreateWorkOrder(w http.ResponseWriter, r *http.Request) {
	const op = "http.CreateWorkOrder"
	scope, err := scopeOf(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	var in workorder.NewOrder
	if err := decodeJSON(r, op, &in); err != nil {
		respondError(w, r, err)
		return
	}
	o, err := h.orders.Create(r.Context(), scope, requestContext(r), in)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, o)
}

// GetWorkOrder returns one work order
// @Summary Get Work Order
// @Tags Work Orders
// @Produce json
// @Security CookieAuth
// @Param id path int true "Order ID"
// @Success 200 {object} workorder.Order
// @Failure 404 {object} ErrorResponse
// @Router /work-orders/{id} [get]
func (h *Handler) GetWorkOrder(w http.ResponseWriter, r *http.Request) {
	scope, id, err := orderTarget(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	o, err := h.orders.Get(r.Context(), scope, id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, o)
}

// AssignWorkOrder hands a PENDING order to an associate
// @Summary Assign Work Order
// @Tags Work Orders
// @Accept json
// @Produce json
// @Security CookieAuth
// @Param id path int true "Order ID"
// @Param request body workorder.Assignment true "Associate"
// @Success 200 {object} workorder.Order
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /work-orders/{id}/assign [post]
func (h *Handler) AssignWorkOrder(w http.ResponseWriter, r *http.Request) {
	const op = "http.AssignWorkOrder"
	scope, id, err := orderTarget(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	var in workorder.Assignment
	if err := decodeJSON(r, op, &in); err != nil {
		respondError(w, r, err)
		return
	}
	o, err := h.orders.Assign(r.Context(), scope, requestContext(r), id, in)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, o)
}

// CompleteWorkOrder closes the order named by a pending task
// @Summary Complete Work Order
// @Description Closes the task and its order in one transaction. Nothing is written when any field is invalid.
// @Tags Work Orders
// @Accept json
// @Produce json
// @Security CookieAuth
// @Param request body workorder.Completion true "Completion"
// @Success 200 {object} workorder.Order
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /work-orders/complete [post]
func (h *Handler) CompleteWorkOrder(w http.ResponseWriter, r *http.Request) {
	const op = "http.CompleteWorkOrder"
	scope, err := scopeOf(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	var in workorder.Completion
	if err := decodeJSON(r, op, &in); err != nil {
		respondError(w, r, err)
		return
	}
	o, err := h.orders.Complete(r.Context(), scope, requestContext(r), in)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, o)
}

// MarkWorkOrderPaid records payment of a completed order
// @Summary Mark Work Order Paid
// @Tags Work Orders
// @Produce json
// @Security CookieAuth
// @Param id path int true "Order ID"
// @Success 200 {object} workorder.Order
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /work-orders/{id}/pay [post]
func (h *Handler) MarkWorkOrderPaid(w http.ResponseWriter, r *http.Request) {
	scope, id, err := orderTarget(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	o, err := h.orders.MarkPaid(r.Context(), scope, requestContext(r), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, o)
}

// ListWorkOrderTasks lists the tasks of an order
// @Summary List Work Order Tasks
// @Tags Work Orders
// @Produce json
// @Security CookieAuth
// @Param id path int true "Order ID"
// @Success 200 {array} workorder.Task
// @Failure 404 {object} ErrorResponse
// @Router /work-orders/{id}/tasks [get]
func (h *Handler) ListWorkOrderTasks(w http.ResponseWriter, r *http.Request) {
	scope, id, err := orderTarget(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	tasks, err := h.orders.ListTasks(r.Context(), scope, id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, tasks)
}

// ListWorkOrderComments lists the comments of an order
// @Summary List Work Order Comments
// @Tags Work Orders
// @Produce json
// @Security CookieAuth
// @Param id path int true "Order ID"
// @Success 200 {array} party.Comment
// @Failure 404 {object} ErrorResponse
// @Router /work-orders/{id}/comments [get]
func (h *Handler) ListWorkOrderComments(w http.ResponseWriter, r *http.Request) {
	scope, id, err := orderTarget(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	comments, err := h.orders.ListComments(r.Context(), scope, id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, comments)
}

// AddWorkOrderComment attaches a comment to an order
// @Summary Add Work Order Comment
// @Tags Work Orders
// @Accept json
// @Produce json
// @Security CookieAuth
// @Param id path int true "Order ID"
// @Param request body CommentRequest true "Comment"
// @Success 201 {object} party.Comment
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /work-orders/{id}/comments [post]
func (h *Handler) AddWorkOrderComment(w http.ResponseWriter, r *http.Request) {
	const op = "http.AddWorkOrderComment"
	scope, id, err := orderTarget(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	var req CommentRequest
	if err := decodeJSON(r, op, &req); err != nil {
		respondError(w, r, err)
		return
	}
	c, err := h.orders.AddComment(r.Context(), scope, requestContext(r), id, req.Text)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, c)
}

// GetOngoingWorkOrder returns the recurring aggregate of a customer and associate
// @Summary Get Ongoing Work Order
// @Tags Work Orders
// @Produce json
// @Security CookieAuth
// @Param id path int true "Ongoing order ID"
// @Success 200 {object} workorder.OngoingOrder
// @Failure 404 {object} ErrorResponse
// @Router /work-orders/ongoing/{id} [get]
func (h *Handler) GetOngoingWorkOrder(w http.ResponseWriter, r *http.Request) {
	scope, id, err := orderTarget(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	g, err := h.orders.GetOngoing(r.Context(), scope, id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, g)
}

func orderTarget(r *http.Request) (tenant.Scope, int64, error) {
	scope, err := scopeOf(r)
	if err != nil {
		return scope, 0, err
	}
	id, err := int64Param(r, "id")
	return scope, id, err
}
