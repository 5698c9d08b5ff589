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

// Package workorder implements the work order lifecycle of a franchise.
//
// An order moves PENDING -> ASSIGNED -> COMPLETED_BUT_UNPAID -> PAID, and can
// be CANCELLED before completion. Every transition runs in one transaction
// that locks the order row; tasks and ongoing-order bookkeeping move with it.
package workorder

import (
	"context"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/over55/workery/internal/apperr"
	"github.com/over55/workery/internal/authz"
	"github.com/over55/workery/internal/listing"
	"github.com/over55/workery/internal/party"
	"github.com/over55/workery/internal/search"
	"github.com/over55/workery/internal/tenant"
)

// State is the lifecycle position of an order.
type State string

const (
	StatePending            State = "PENDING"
	StateAssigned           State = "ASSIGNED"
	StateCompletedButUnpaid State = "COMPLETED_BUT_UNPAID"
	StatePaid               State = "PAID"
	StateCancelled          State = "CANCELLED"
)

var transitions = map[State][]State{
	StatePending:            {StateAssigned, StateCompletedButUnpaid, StateCancelled},
	StateAssigned:           {StateCompletedButUnpaid, StateCancelled},
	StateCompletedButUnpaid: {StatePaid},
}

// CanTransition reports whether an order in s may move to next.
func (s State) CanTransition(next State) bool {
	for _, to := range transitions[s] {
		if to == next {
			return true
		}
	}
	return false
}

// Closed reports whether no further work is expected on the order.
func (s State) Closed() bool {
	return s == StateCompletedButUnpaid || s == StatePaid || s == StateCancelled
}

// Reason is a closing reason code.
type Reason int

const (
	ReasonOther                Reason = 1
	ReasonClientCancelled      Reason = 2
	ReasonAssociateUnavailable Reason = 3
	ReasonWorkCompleted        Reason = 4
	ReasonQuoteDeclined        Reason = 5
)

// Valid reports whether r is a known reason code.
func (r Reason) Valid() bool {
	return r >= ReasonOther && r <= ReasonQuoteDeclined
}

func (r Reason) String() string {
	switch r {
	case ReasonOther:
		return "other"
	case ReasonClientCancelled:
		return "client cancelled"
	case ReasonAssociateUnavailable:
		return "associate unavailable"
	case ReasonWorkCompleted:
		return "work completed"
	case ReasonQuoteDeclined:
		return "quote declined"
	}
	return "unknown"
}

// TaskType distinguishes the follow-ups an order generates.
type TaskType string

const (
	TaskAssignAssociate TaskType = "assign_associate"
	TaskFollowUp        TaskType = "follow_up"
)

// Errors
var (
	ErrOrderNotFound     = apperr.New(apperr.ENotFound, "work order not found")
	ErrTaskNotFound      = apperr.New(apperr.ENotFound, "task not found")
	ErrOngoingNotFound   = apperr.New(apperr.ENotFound, "ongoing work order not found")
	ErrTaskClosed        = apperr.New(apperr.EConflict, "task is already closed")
	ErrInvalidTransition = apperr.New(apperr.EConflict, "work order cannot make this transition")
	ErrOpenOrderExists   = apperr.New(apperr.EConflict, "customer and associate already share an open order")
	ErrNotAssigned       = apperr.New(apperr.EForbidden, "work order is not assigned to you")
)

// Invoice holds the monetary outcome of a completed order.
type Invoice struct {
	Date             *Date           `json:"invoice_date,omitempty"`
	IDs              string          `json:"invoice_ids,omitempty"`
	QuoteAmount      decimal.Decimal `json:"invoice_quote_amount"`
	LabourAmount     decimal.Decimal `json:"invoice_labour_amount"`
	MaterialAmount   decimal.Decimal `json:"invoice_material_amount"`
	TaxAmount        decimal.Decimal `json:"invoice_tax_amount"`
	TotalAmount      decimal.Decimal `json:"invoice_total_amount"`
	ServiceFeeAmount decimal.Decimal `json:"invoice_service_fee_amount"`
}

// amounts names each monetary field for validation.
func (i Invoice) amounts() map[string]decimal.Decimal {
	return map[string]decimal.Decimal{
		"invoice_quote_amount":       i.QuoteAmount,
		"invoice_labour_amount":      i.LabourAmount,
		"invoice_material_amount":    i.MaterialAmount,
		"invoice_tax_amount":         i.TaxAmount,
		"invoice_total_amount":       i.TotalAmount,
		"invoice_service_fee_amount": i.ServiceFeeAmount,
	}
}

// Order is a job between a customer and, once assigned, an associate.
type Order struct {
	ID                 int64      `json:"id"`
	CustomerID         int64      `json:"customer_id"`
	CustomerName       string     `json:"customer_name,omitempty"`
	AssociateID        *int64     `json:"associate_id,omitempty"`
	AssociateName      string     `json:"associate_name,omitempty"`
	AssociateAccountID *string    `json:"-"`
	Description        string     `json:"description"`
	State              State      `json:"state"`
	IsOngoing          bool       `json:"is_ongoing"`
	OngoingOrderID     *int64     `json:"ongoing_work_order_id,omitempty"`
	AssignmentDate     *time.Time `json:"assignment_date,omitempty"`
	StartDate          *time.Time `json:"start_date,omitempty"`
	CompletionDate     *Date      `json:"completion_date,omitempty"`
	ClosingReason      Reason     `json:"closing_reason,omitempty"`
	ClosingReasonOther string     `json:"closing_reason_other,omitempty"`
	Invoice
	LatestPendingTaskID *int64    `json:"latest_pending_task_id,omitempty"`
	IsArchived          bool      `json:"is_archived"`
	CreatedBy           *string   `json:"created_by,omitempty"`
	CreatedFrom         string    `json:"created_from,omitempty"`
	CreatedFromPub      bool      `json:"created_from_is_public"`
	LastModifiedBy      *string   `json:"last_modified_by,omitempty"`
	LastModifiedFrom    string    `json:"last_modified_from,omitempty"`
	LastModifiedFromPub bool      `json:"last_modified_from_is_public"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// SearchKey implements search.Indexable.
func (o *Order) SearchKey() search.Key {
	return search.Key{Kind: search.KindWorkOrder, ID: o.ID}
}

// SearchText implements search.Indexable.
func (o *Order) SearchText() string {
	return search.Join("Order #"+strconv.FormatInt(o.ID, 10), o.CustomerName, o.AssociateName, o.Description)
}

// Archived implements search.Indexable.
func (o *Order) Archived() bool {
	return o.IsArchived
}

// Task is a pending action on an order or an ongoing order, never both.
type Task struct {
	ID             int64      `json:"id"`
	OrderID        *int64     `json:"work_order_id,omitempty"`
	OngoingOrderID *int64     `json:"ongoing_work_order_id,omitempty"`
	Type           TaskType   `json:"type"`
	Title          string     `json:"title"`
	DueDate        time.Time  `json:"due_date"`
	IsClosed       bool       `json:"is_closed"`
	Reason         Reason     `json:"reason,omitempty"`
	ReasonOther    string     `json:"reason_other,omitempty"`
	LastModifiedBy *string    `json:"last_modified_by,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	ClosedAt       *time.Time `json:"closed_at,omitempty"`
}

// OngoingOrder aggregates the recurring history of one customer and associate.
type OngoingOrder struct {
	ID             int64     `json:"id"`
	CustomerID     int64     `json:"customer_id"`
	AssociateID    int64     `json:"associate_id"`
	OpenOrderID    *int64    `json:"open_order_id,omitempty"`
	ClosedOrderIDs []int64   `json:"closed_order_ids"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Comment is a note attached to an order.
type Comment = party.Comment

// TaskClosure is what closing a set of tasks records on each of them.
type TaskClosure struct {
	Reason      Reason
	ReasonOther string
	By          *string
	At          time.Time
}

// Resource describes an order listing for authorization and list queries.
type Resource struct{}

func (Resource) MaxPageSize() uint64           { return 100 }
func (Resource) ArchivedColumn() string        { return "o.is_archived" }
func (Resource) DefaultSort() string           { return "-id" }
func (Resource) RequiredPermissions() []string { return []string{authz.PermOrderRead} }

func (Resource) FilterColumns() map[string]string {
	return map[string]string{
		"state":     "o.state",
		"customer":  "o.customer_id",
		"associate": "o.associate_id",
	}
}

func (Resource) SortColumns() map[string]string {
	return map[string]string{
		"id":              "o.id",
		"customer":        "o.customer_id",
		"associate":       "o.associate_id",
		"assignment_date": "o.assignment_date",
		"start_date":      "o.start_date",
		"completion_date": "o.completion_date",
		"state":           "o.state",
	}
}

// Tx is the transactional view of the order store. Lock methods take a row
// lock held until the transaction ends.
type Tx interface {
	search.Store
	LookupParty(ctx context.Context, kind party.Kind, id int64) (*party.Party, error)

	Insert(ctx context.Context, o *Order) error
	LockOrder(ctx context.Context, id int64) (*Order, error)
	UpdateOrder(ctx context.Context, o *Order) error

	InsertTask(ctx context.Context, t *Task) error
	GetTask(ctx context.Context, id int64) (*Task, error)
	LockTask(ctx context.Context, id int64) (*Task, error)
	// CloseOpenTasks closes every open task of the order and returns how many
	// were closed.
	CloseOpenTasks(ctx context.Context, orderID int64, c TaskClosure) (int, error)

	AddComment(ctx context.Context, orderID int64, c *Comment) error

	// LockOngoingFor returns the aggregate of the pair or ErrOngoingNotFound.
	LockOngoingFor(ctx context.Context, customerID, associateID int64) (*OngoingOrder, error)
	LockOngoing(ctx context.Context, id int64) (*OngoingOrder, error)
	InsertOngoing(ctx context.Context, g *OngoingOrder) error
	UpdateOngoing(ctx context.Context, g *OngoingOrder) error
	AddClosedOrder(ctx context.Context, ongoingID, orderID int64) error
}

// Repository persists orders inside one franchise schema.
type Repository interface {
	WithTx(ctx context.Context, scope tenant.Scope, fn func(ctx context.Context, tx Tx) error) error
	Get(ctx context.Context, scope tenant.Scope, id int64) (*Order, error)
	List(ctx context.Context, scope tenant.Scope, q listing.Query) (listing.Page[*Order], error)
	ListTasks(ctx context.Context, scope tenant.Scope, orderID int64) ([]*Task, error)
	ListComments(ctx context.Context, scope tenant.Scope, orderID int64) ([]*Comment, error)
	GetOngoing(ctx context.Context, scope tenant.Scope, id int64) (*OngoingOrder, error)
}
