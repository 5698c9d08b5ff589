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

package workorder

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/over55/workery/internal/apperr"
	"github.com/over55/workery/internal/audit"
	"github.com/over55/workery/internal/authz"
	"github.com/over55/workery/internal/listing"
	"github.com/over55/workery/internal/observability/logger"
	"github.com/over55/workery/internal/observability/metrics"
	"github.com/over55/workery/internal/party"
	"github.com/over55/workery/internal/reqctx"
	"github.com/over55/workery/internal/search"
	"github.com/over55/workery/internal/tenant"
	"github.com/over55/workery/internal/validate"
)

// followUpAfter is when the follow-up task of an assigned order falls due if
// the order has no start date.
const followUpAfter = 48 * time.Hour

// maxAmount is the first value an invoice column cannot hold.
var maxAmount = decimal.New(1, 10)

// NewOrder is the input for Create.
type NewOrder struct {
	CustomerID  int64      `json:"customer_id" validate:"required,gt=0"`
	Description string     `json:"description" validate:"required,max=2000"`
	IsOngoing   bool       `json:"is_ongoing"`
	StartDate   *time.Time `json:"start_date"`
}

// Assignment is the input for Assign.
type Assignment struct {
	AssociateID int64 `json:"associate_id" validate:"required,gt=0"`
}

// Completion is the input for Complete.
type Completion struct {
	TaskID         int64  `json:"task_item"`
	WasCompleted   bool   `json:"was_completed"`
	Reason         Reason `json:"reason"`
	ReasonOther    string `json:"reason_other"`
	CompletionDate Date   `json:"completion_date"`
	Invoice
	Comment string `json:"comment"`
}

// Validate checks the whole completion payload so nothing is written when any
// field is wrong.
func (c Completion) Validate() error {
	fields := map[string]string{}
	if c.TaskID <= 0 {
		fields["task_item"] = "required"
	}
	switch {
	case c.Reason <= 0:
		fields["reason"] = "pick a reason"
	case !c.Reason.Valid():
		fields["reason"] = "unknown reason"
	case c.Reason == ReasonOther && strings.TrimSpace(c.ReasonOther) == "":
		fields["reason_other"] = "required when the reason is other"
	}
	if c.CompletionDate.IsZero() {
		fields["completion_date"] = "required"
	}
	for name, amount := range c.amounts() {
		switch {
		case amount.IsNegative():
			fields[name] = "must not be negative"
		case amount.GreaterThanOrEqual(maxAmount):
			fields[name] = "must be less than 10000000000"
		case !amount.Equal(amount.Truncate(2)):
			fields[name] = "must have at most 2 decimal places"
		}
	}
	if strings.TrimSpace(c.Comment) == "" {
		fields["comment"] = "required"
	}
	if len(fields) > 0 {
		return apperr.Validation("workorder.Complete", fields)
	}
	return nil
}

// Service runs order transitions.
type Service struct {
	repo    Repository
	audit   audit.Logger
	metrics *metrics.Domain
	now     func() time.Time
}

// NewService creates a work order service.
func NewService(repo Repository, auditLogger audit.Logger, m *metrics.Domain) *Service {
	return &Service{repo: repo, audit: auditLogger, metrics: m, now: time.Now}
}

func touch(o *Order, rc reqctx.RequestContext, now time.Time) {
	if rc.Actor != "" {
		o.LastModifiedBy = &rc.Actor
	}
	o.LastModifiedFrom = rc.SourceIP
	o.LastModifiedFromPub = rc.IsPublicSource
	o.UpdatedAt = now
}

func actor(rc reqctx.RequestContext) *string {
	if rc.Actor == "" {
		return nil
	}
	a := rc.Actor
	return &a
}

func usableParty(ctx context.Context, tx Tx, kind party.Kind, id int64, field string) (*party.Party, error) {
	p, err := tx.LookupParty(ctx, kind, id)
	if errors.Is(err, party.ErrPartyNotFound) {
		return nil, apperr.Validation("workorder", map[string]string{field: "not found"})
	}
	if err != nil {
		return nil, err
	}
	if p.IsArchived {
		return nil, apperr.Validation("workorder", map[string]string{field: "is archived"})
	}
	return p, nil
}

// Create opens a PENDING order with a task to assign an associate.
func (s *Service) Create(ctx context.Context, scope tenant.Scope, rc reqctx.RequestContext, in NewOrder) (*Order, error) {
	const op = "workorder.Create"
	in.Description = strings.TrimSpace(in.Description)
	if err := validate.Struct(op, in); err != nil {
		return nil, err
	}

	now := s.now()
	o := &Order{
		CustomerID:     in.CustomerID,
		Description:    in.Description,
		State:          StatePending,
		IsOngoing:      in.IsOngoing,
		StartDate:      in.StartDate,
		CreatedBy:      actor(rc),
		CreatedFrom:    rc.SourceIP,
		CreatedFromPub: rc.IsPublicSource,
		CreatedAt:      now,
	}
	touch(o, rc, now)

	err := s.repo.WithTx(ctx, scope, func(ctx context.Context, tx Tx) error {
		customer, err := usableParty(ctx, tx, party.KindCustomer, in.CustomerID, "customer_id")
		if err != nil {
			return err
		}
		o.CustomerName = customer.DisplayName()
		if err := tx.Insert(ctx, o); err != nil {
			return err
		}

		task := &Task{
			OrderID:   &o.ID,
			Type:      TaskAssignAssociate,
			Title:     "Assign an associate",
			DueDate:   now,
			CreatedAt: now,
		}
		if err := tx.InsertTask(ctx, task); err != nil {
			return err
		}
		o.LatestPendingTaskID = &task.ID
		if err := tx.UpdateOrder(ctx, o); err != nil {
			return err
		}
		_, err = search.Reindex(ctx, tx, o)
		return err
	})
	if err != nil {
		return nil, apperr.Wrap(op, err)
	}

	s.record(ctx, scope, rc, o, "", audit.TypeOrderCreated)
	return o, nil
}

// Assign gives a PENDING order to an associate. The assignment task is closed
// and a follow-up task opened. Ongoing orders are attached to the aggregate of
// their customer and associate, which may hold one open order at a time.
func (s *Service) Assign(ctx context.Context, scope tenant.Scope, rc reqctx.RequestContext, orderID int64, in Assignment) (*Order, error) {
	const op = "workorder.Assign"
	if err := validate.Struct(op, in); err != nil {
		return nil, err
	}

	now := s.now()
	var o *Order
	err := s.repo.WithTx(ctx, scope, func(ctx context.Context, tx Tx) error {
		var err error
		if o, err = tx.LockOrder(ctx, orderID); err != nil {
			return err
		}
		if !o.State.CanTransition(StateAssigned) {
			return ErrInvalidTransition
		}
		associate, err := usableParty(ctx, tx, party.KindAssociate, in.AssociateID, "associate_id")
		if err != nil {
			return err
		}

		if _, err := tx.CloseOpenTasks(ctx, o.ID, TaskClosure{By: actor(rc), At: now}); err != nil {
			return err
		}

		if o.IsOngoing {
			if err := attachOngoing(ctx, tx, o, associate.ID, now); err != nil {
				return err
			}
		}

		due := now.Add(followUpAfter)
		if o.StartDate != nil && o.StartDate.After(now) {
			due = *o.StartDate
		}
		task := &Task{
			OrderID:   &o.ID,
			Type:      TaskFollowUp,
			Title:     "Confirm the job was completed",
			DueDate:   due,
			CreatedAt: now,
		}
		if err := tx.InsertTask(ctx, task); err != nil {
			return err
		}

		o.AssociateID = &associate.ID
		o.AssociateName = associate.DisplayName()
		o.AssociateAccountID = associate.AccountID
		o.AssignmentDate = &now
		o.LatestPendingTaskID = &task.ID
		o.State = StateAssigned
		touch(o, rc, now)
		if err := tx.UpdateOrder(ctx, o); err != nil {
			return err
		}
		_, err = search.Reindex(ctx, tx, o)
		return err
	})
	if err != nil {
		return nil, apperr.Wrap(op, err)
	}

	s.record(ctx, scope, rc, o, StatePending, audit.TypeOrderTransitioned)
	return o, nil
}

func attachOngoing(ctx context.Context, tx Tx, o *Order, associateID int64, now time.Time) error {
	g, err := tx.LockOngoingFor(ctx, o.CustomerID, associateID)
	switch {
	case errors.Is(err, ErrOngoingNotFound):
		g = &OngoingOrder{CustomerID: o.CustomerID, AssociateID: associateID, CreatedAt: now}
		if err := tx.InsertOngoing(ctx, g); err != nil {
			return err
		}
	case err != nil:
		return err
	case g.OpenOrderID != nil && *g.OpenOrderID != o.ID:
		return ErrOpenOrderExists
	}
	g.OpenOrderID = &o.ID
	g.UpdatedAt = now
	o.OngoingOrderID = &g.ID
	return tx.UpdateOngoing(ctx, g)
}

// Complete closes an order through one of its tasks. A completed job becomes
// COMPLETED_BUT_UNPAID and records the invoice; otherwise the order is
// CANCELLED with the closing reason. Every open task of the order is closed,
// one comment is appended and the ongoing aggregate releases the order, all in
// one transaction. Of two concurrent completions only one succeeds; the other
// gets ErrTaskClosed.
func (s *Service) Complete(ctx context.Context, scope tenant.Scope, rc reqctx.RequestContext, in Completion) (*Order, error) {
	const op = "workorder.Complete"
	if err := in.Validate(); err != nil {
		return nil, err
	}

	now := s.now()
	var (
		o    *Order
		from State
	)
	err := s.repo.WithTx(ctx, scope, func(ctx context.Context, tx Tx) error {
		task, err := tx.GetTask(ctx, in.TaskID)
		if err != nil {
			return err
		}
		if task.OrderID == nil {
			return apperr.Validation(op, map[string]string{"task_item": "task does not belong to a work order"})
		}

		// Order first, then task: the same order as Assign.
		if o, err = tx.LockOrder(ctx, *task.OrderID); err != nil {
			return err
		}
		if task, err = tx.LockTask(ctx, in.TaskID); err != nil {
			return err
		}
		if task.IsClosed {
			return ErrTaskClosed
		}
		if rc.Role == authz.RoleAssociate && (o.AssociateAccountID == nil || *o.AssociateAccountID != rc.Actor) {
			return ErrNotAssigned
		}

		to := StateCancelled
		if in.WasCompleted {
			to = StateCompletedButUnpaid
		}
		if !o.State.CanTransition(to) {
			return ErrInvalidTransition
		}
		from = o.State

		completion := in.CompletionDate
		o.State = to
		o.CompletionDate = &completion
		o.ClosingReason = in.Reason
		o.ClosingReasonOther = strings.TrimSpace(in.ReasonOther)
		if in.WasCompleted {
			o.Invoice = in.Invoice
		}
		o.LatestPendingTaskID = nil
		touch(o, rc, now)

		closure := TaskClosure{Reason: in.Reason, ReasonOther: o.ClosingReasonOther, By: actor(rc), At: now}
		if _, err := tx.CloseOpenTasks(ctx, o.ID, closure); err != nil {
			return err
		}
		if err := tx.AddComment(ctx, o.ID, &Comment{Text: strings.TrimSpace(in.Comment), CreatedBy: actor(rc), CreatedAt: now}); err != nil {
			return err
		}

		if o.OngoingOrderID != nil {
			if err := releaseOngoing(ctx, tx, *o.OngoingOrderID, o.ID, now); err != nil {
				return err
			}
		}
		return tx.UpdateOrder(ctx, o)
	})
	if err != nil {
		return nil, apperr.Wrap(op, err)
	}

	s.record(ctx, scope, rc, o, from, audit.TypeOrderTransitioned)
	return o, nil
}

func releaseOngoing(ctx context.Context, tx Tx, ongoingID, orderID int64, now time.Time) error {
	g, err := tx.LockOngoing(ctx, ongoingID)
	if err != nil {
		return err
	}
	if g.OpenOrderID != nil && *g.OpenOrderID == orderID {
		g.OpenOrderID = nil
	}
	g.ClosedOrderIDs = append(g.ClosedOrderIDs, orderID)
	g.UpdatedAt = now
	if err := tx.UpdateOngoing(ctx, g); err != nil {
		return err
	}
	return tx.AddClosedOrder(ctx, ongoingID, orderID)
}

// MarkPaid settles a completed order.
func (s *Service) MarkPaid(ctx context.Context, scope tenant.Scope, rc reqctx.RequestContext, orderID int64) (*Order, error) {
	const op = "workorder.MarkPaid"
	var o *Order
	err := s.repo.WithTx(ctx, scope, func(ctx context.Context, tx Tx) error {
		var err error
		if o, err = tx.LockOrder(ctx, orderID); err != nil {
			return err
		}
		if !o.State.CanTransition(StatePaid) {
			return ErrInvalidTransition
		}
		o.State = StatePaid
		touch(o, rc, s.now())
		return tx.UpdateOrder(ctx, o)
	})
	if err != nil {
		return nil, apperr.Wrap(op, err)
	}

	s.record(ctx, scope, rc, o, StateCompletedButUnpaid, audit.TypeOrderTransitioned)
	return o, nil
}

// AddComment appends a note to an order.
func (s *Service) AddComment(ctx context.Context, scope tenant.Scope, rc reqctx.RequestContext, orderID int64, text string) (*Comment, error) {
	const op = "workorder.AddComment"
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperr.Validation(op, map[string]string{"text": "required"})
	}
	c := &Comment{Text: text, CreatedBy: actor(rc), CreatedAt: s.now()}
	err := s.repo.WithTx(ctx, scope, func(ctx context.Context, tx Tx) error {
		if _, err := tx.LockOrder(ctx, orderID); err != nil {
			return err
		}
		return tx.AddComment(ctx, orderID, c)
	})
	if err != nil {
		return nil, apperr.Wrap(op, err)
	}
	return c, nil
}

func (s *Service) Get(ctx context.Context, scope tenant.Scope, id int64) (*Order, error) {
	o, err := s.repo.Get(ctx, scope, id)
	if err != nil {
		return nil, apperr.Wrap("workorder.Get", err)
	}
	return o, nil
}

func (s *Service) List(ctx context.Context, scope tenant.Scope, q listing.Query) (listing.Page[*Order], error) {
	page, err := s.repo.List(ctx, scope, q)
	if err != nil {
		return page, apperr.Wrap("workorder.List", err)
	}
	return page, nil
}

func (s *Service) ListTasks(ctx context.Context, scope tenant.Scope, orderID int64) ([]*Task, error) {
	out, err := s.repo.ListTasks(ctx, scope, orderID)
	if err != nil {
		return nil, apperr.Wrap("workorder.ListTasks", err)
	}
	return out, nil
}

func (s *Service) ListComments(ctx context.Context, scope tenant.Scope, orderID int64) ([]*Comment, error) {
	out, err := s.repo.ListComments(ctx, scope, orderID)
	if err != nil {
		return nil, apperr.Wrap("workorder.ListComments", err)
	}
	return out, nil
}

func (s *Service) GetOngoing(ctx context.Context, scope tenant.Scope, id int64) (*OngoingOrder, error) {
	g, err := s.repo.GetOngoing(ctx, scope, id)
	if err != nil {
		return nil, apperr.Wrap("workorder.GetOngoing", err)
	}
	return g, nil
}

func (s *Service) record(ctx context.Context, scope tenant.Scope, rc reqctx.RequestContext, o *Order, from State, eventType string) {
	s.metrics.OrderTransitions.WithLabelValues(string(o.State)).Inc()
	slog.InfoContext(ctx, "work order transitioned",
		logger.FranchiseID(scope.FranchiseID),
		logger.OrderID(o.ID),
		logger.State(string(o.State)),
	)
	meta := map[string]any{audit.AttrTo: string(o.State)}
	if from != "" {
		meta[audit.AttrFrom] = string(from)
	}
	if o.ClosingReason != 0 {
		meta[audit.AttrReason] = int(o.ClosingReason)
	}
	s.audit.Log(ctx, audit.Event{
		Type:      eventType,
		TenantID:  scope.FranchiseID,
		ActorID:   rc.Actor,
		Resource:  "work_order",
		IPAddress: rc.SourceIP,
		UserAgent: rc.UserAgent,
		Metadata:  meta,
	})
}
