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

package postgres

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/over55/workery/internal/listing"
	"github.com/over55/workery/internal/party"
	"github.com/over55/workery/internal/tenant"
	"github.com/over55/workery/internal/workorder"
)

var orderColumns = []string{
	"o.id", "o.customer_id", "o.associate_id", "o.description", "o.state", "o.is_ongoing",
	"o.ongoing_work_order_id", "o.assignment_date", "o.start_date", "o.completion_date",
	"o.closing_reason", "o.closing_reason_other",
	"o.invoice_date", "o.invoice_ids", "o.invoice_quote_amount", "o.invoice_labour_amount",
	"o.invoice_material_amount", "o.invoice_tax_amount", "o.invoice_total_amount", "o.invoice_service_fee_amount",
	"o.latest_pending_task_id", "o.is_archived",
	"o.created_by", "o.created_from", "o.created_from_is_public",
	"o.last_modified_by", "o.last_modified_from", "o.last_modified_from_is_public",
	"o.created_at", "o.updated_at",
	"c.given_name", "c.middle_name", "c.last_name", "c.organization_name",
	"COALESCE(a.given_name, '')", "COALESCE(a.middle_name, '')", "COALESCE(a.last_name, '')", "COALESCE(a.organization_name, '')",
	"a.account_id",
}

// ordersFrom joins each order to its customer and optional associate.
func ordersFrom(s schema) func(columns ...string) sq.SelectBuilder {
	return func(columns ...string) sq.SelectBuilder {
		return psql.Select(columns...).
			From(s.aliased("work_orders", "o")).
			Join(s.aliased("parties", "c") + " ON c.id = o.customer_id").
			LeftJoin(s.aliased("parties", "a") + " ON a.id = o.associate_id")
	}
}

func scanOrder(row scanner) (*workorder.Order, error) {
	var (
		o         workorder.Order
		state     string
		reason    int16
		customer  party.Party
		associate party.Party
	)
	err := row.Scan(
		&o.ID, &o.CustomerID, &o.AssociateID, &o.Description, &state, &o.IsOngoing,
		&o.OngoingOrderID, &o.AssignmentDate, &o.StartDate, &o.CompletionDate,
		&reason, &o.ClosingReasonOther,
		&o.Invoice.Date, &o.Invoice.IDs, &o.QuoteAmount, &o.LabourAmount,
		&o.MaterialAmount, &o.TaxAmount, &o.TotalAmount, &o.ServiceFeeAmount,
		&o.LatestPendingTaskID, &o.IsArchived,
		&o.CreatedBy, &o.CreatedFrom, &o.CreatedFromPub,
		&o.LastModifiedBy, &o.LastModifiedFrom, &o.LastModifiedFromPub,
		&o.CreatedAt, &o.UpdatedAt,
		&customer.GivenName, &customer.MiddleName, &customer.LastName, &customer.OrganizationName,
		&associate.GivenName, &associate.MiddleName, &associate.LastName, &associate.OrganizationName,
		&o.AssociateAccountID,
	)
	if err != nil {
		return nil, err
	}
	o.State = workorder.State(state)
	o.ClosingReason = workorder.Reason(reason)
	o.CustomerName = customer.DisplayName()
	if o.AssociateID != nil {
		o.AssociateName = associate.DisplayName()
	}
	return &o, nil
}

func getOrder(ctx context.Context, q querier, s schema, id int64, suffix string) (*workorder.Order, error) {
	b := ordersFrom(s)(orderColumns...).Where(sq.Eq{"o.id": id})
	if suffix != "" {
		b = b.Suffix(suffix)
	}
	o, err := scanOrder(queryRow(ctx, q, b))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, workorder.ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to get work order: %w", err)
	}
	return o, nil
}

var taskColumns = []string{
	"id", "work_order_id", "ongoing_work_order_id", "type", "title", "due_date",
	"is_closed", "reason", "reason_other", "last_modified_by", "created_at", "closed_at",
}

func scanTask(row scanner) (*workorder.Task, error) {
	var (
		t      workorder.Task
		typ    string
		reason int16
	)
	err := row.Scan(
		&t.ID, &t.OrderID, &t.OngoingOrderID, &typ, &t.Title, &t.DueDate,
		&t.IsClosed, &reason, &t.ReasonOther, &t.LastModifiedBy, &t.CreatedAt, &t.ClosedAt,
	)
	if err != nil {
		return nil, err
	}
	t.Type = workorder.TaskType(typ)
	t.Reason = workorder.Reason(reason)
	return &t, nil
}

func getTask(ctx context.Context, q querier, s schema, id int64, suffix string) (*workorder.Task, error) {
	b := psql.Select(taskColumns...).From(s.table("task_items")).Where(sq.Eq{"id": id})
	if suffix != "" {
		b = b.Suffix(suffix)
	}
	t, err := scanTask(queryRow(ctx, q, b))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, workorder.ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return t, nil
}

func ongoingColumns(s schema) []string {
	return []string{
		"g.id", "g.customer_id", "g.associate_id", "g.open_order_id", "g.created_at", "g.updated_at",
		"COALESCE((SELECT array_agg(x.work_order_id ORDER BY x.work_order_id) FROM " +
			s.table("ongoing_closed_orders") + " x WHERE x.ongoing_work_order_id = g.id), '{}')",
	}
}

func getOngoing(ctx context.Context, q querier, s schema, where sq.Sqlizer, suffix string) (*workorder.OngoingOrder, error) {
	b := psql.Select(ongoingColumns(s)...).From(s.aliased("ongoing_work_orders", "g")).Where(where)
	if suffix != "" {
		b = b.Suffix(suffix)
	}
	var g workorder.OngoingOrder
	err := queryRow(ctx, q, b).Scan(
		&g.ID, &g.CustomerID, &g.AssociateID, &g.OpenOrderID, &g.CreatedAt, &g.UpdatedAt, &g.ClosedOrderIDs,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, workorder.ErrOngoingNotFound
		}
		return nil, fmt.Errorf("failed to get ongoing work order: %w", err)
	}
	return &g, nil
}

// WorkOrderRepository implements workorder.Repository.
type WorkOrderRepository struct {
	db *DB
}

func NewWorkOrderRepository(db *DB) *WorkOrderRepository {
	return &WorkOrderRepository{db: db}
}

func (r *WorkOrderRepository) WithTx(ctx context.Context, scope tenant.Scope, fn func(ctx context.Context, tx workorder.Tx) error) error {
	s, err := schemaOf(scope)
	if err != nil {
		return err
	}
	return r.db.inTx(ctx, func(tx pgx.Tx) error {
		return fn(ctx, orderTx{searchStore{tx: tx, schema: s}})
	})
}

func (r *WorkOrderRepository) Get(ctx context.Context, scope tenant.Scope, id int64) (*workorder.Order, error) {
	s, err := schemaOf(scope)
	if err != nil {
		return nil, err
	}
	return getOrder(ctx, r.db.pool, s, id, "")
}

func (r *WorkOrderRepository) List(ctx context.Context, scope tenant.Scope, q listing.Query) (listing.Page[*workorder.Order], error) {
	s, err := schemaOf(scope)
	if err != nil {
		return listing.Page[*workorder.Order]{}, err
	}
	return page(ctx, r.db.pool, ordersFrom(s), orderColumns, q, workorder.Resource{}, scanOrder)
}

func (r *WorkOrderRepository) ListTasks(ctx context.Context, scope tenant.Scope, orderID int64) ([]*workorder.Task, error) {
	s, err := schemaOf(scope)
	if err != nil {
		return nil, err
	}
	if _, err := getOrder(ctx, r.db.pool, s, orderID, ""); err != nil {
		return nil, err
	}
	sql, args, err := psql.Select(taskColumns...).
		From(s.table("task_items")).
		Where(sq.Eq{"work_order_id": orderID}).
		OrderBy("created_at", "id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}
	rows, err := r.db.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	tasks := []*workorder.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return tasks, nil
}

func (r *WorkOrderRepository) ListComments(ctx context.Context, scope tenant.Scope, orderID int64) ([]*workorder.Comment, error) {
	s, err := schemaOf(scope)
	if err != nil {
		return nil, err
	}
	if _, err := getOrder(ctx, r.db.pool, s, orderID, ""); err != nil {
		return nil, err
	}
	return listComments(ctx, r.db.pool, s, "work_order_comments", "work_order_id", orderID)
}

func (r *WorkOrderRepository) GetOngoing(ctx context.Context, scope tenant.Scope, id int64) (*workorder.OngoingOrder, error) {
	s, err := schemaOf(scope)
	if err != nil {
		return nil, err
	}
	return getOngoing(ctx, r.db.pool, s, sq.Eq{"g.id": id}, "")
}

type orderTx struct {
	searchStore
}

func (t orderTx) LookupParty(ctx context.Context, kind party.Kind, id int64) (*party.Party, error) {
	return getParty(ctx, t.tx, t.schema, kind, id, "")
}

func (t orderTx) orderValues(o *workorder.Order) map[string]any {
	return map[string]any{
		"customer_id":                  o.CustomerID,
		"associate_id":                 o.AssociateID,
		"description":                  o.Description,
		"state":                        string(o.State),
		"is_ongoing":                   o.IsOngoing,
		"ongoing_work_order_id":        o.OngoingOrderID,
		"assignment_date":              o.AssignmentDate,
		"start_date":                   o.StartDate,
		"completion_date":              o.CompletionDate,
		"closing_reason":               int16(o.ClosingReason),
		"closing_reason_other":         o.ClosingReasonOther,
		"invoice_date":                 o.Invoice.Date,
		"invoice_ids":                  o.Invoice.IDs,
		"invoice_quote_amount":         o.QuoteAmount,
		"invoice_labour_amount":        o.LabourAmount,
		"invoice_material_amount":      o.MaterialAmount,
		"invoice_tax_amount":           o.TaxAmount,
		"invoice_total_amount":         o.TotalAmount,
		"invoice_service_fee_amount":   o.ServiceFeeAmount,
		"latest_pending_task_id":       o.LatestPendingTaskID,
		"last_modified_by":             o.LastModifiedBy,
		"last_modified_from":           o.LastModifiedFrom,
		"last_modified_from_is_public": o.LastModifiedFromPub,
		"updated_at":                   o.UpdatedAt,
	}
}

func (t orderTx) Insert(ctx context.Context, o *workorder.Order) error {
	values := t.orderValues(o)
	values["is_archived"] = o.IsArchived
	values["created_by"] = o.CreatedBy
	values["created_from"] = o.CreatedFrom
	values["created_from_is_public"] = o.CreatedFromPub
	values["created_at"] = o.CreatedAt

	err := queryRow(ctx, t.tx, psql.Insert(t.schema.table("work_orders")).
		SetMap(values).
		Suffix("RETURNING id")).Scan(&o.ID)
	if err != nil {
		return mapError("workorder.Insert", err, workorder.ErrOrderNotFound)
	}
	return nil
}

// LockOrder locks the order row only; the joined parties stay unlocked.
func (t orderTx) LockOrder(ctx context.Context, id int64) (*workorder.Order, error) {
	return getOrder(ctx, t.tx, t.schema, id, "FOR UPDATE OF o")
}

func (t orderTx) UpdateOrder(ctx context.Context, o *workorder.Order) error {
	result, err := exec(ctx, t.tx, psql.Update(t.schema.table("work_orders")).
		SetMap(t.orderValues(o)).
		Where(sq.Eq{"id": o.ID}))
	if err != nil {
		return mapError("workorder.Update", err, workorder.ErrOrderNotFound)
	}
	if result.RowsAffected() == 0 {
		return workorder.ErrOrderNotFound
	}
	return nil
}

func (t orderTx) InsertTask(ctx context.Context, task *workorder.Task) error {
	err := queryRow(ctx, t.tx, psql.Insert(t.schema.table("task_items")).
		Columns(
			"work_order_id", "ongoing_work_order_id", "type", "title", "due_date",
			"is_closed", "reason", "reason_other", "last_modified_by", "created_at", "closed_at",
		).
		Values(
			task.OrderID, task.OngoingOrderID, string(task.Type), task.Title, task.DueDate,
			task.IsClosed, int16(task.Reason), task.ReasonOther, task.LastModifiedBy, task.CreatedAt, task.ClosedAt,
		).
		Suffix("RETURNING id")).Scan(&task.ID)
	if err != nil {
		return mapError("workorder.InsertTask", err, workorder.ErrTaskNotFound)
	}
	return nil
}

func (t orderTx) GetTask(ctx context.Context, id int64) (*workorder.Task, error) {
	return getTask(ctx, t.tx, t.schema, id, "")
}

func (t orderTx) LockTask(ctx context.Context, id int64) (*workorder.Task, error) {
	return getTask(ctx, t.tx, t.schema, id, "FOR UPDATE")
}

func (t orderTx) CloseOpenTasks(ctx context.Context, orderID int64, c workorder.TaskClosure) (int, error) {
	result, err := exec(ctx, t.tx, psql.Update(t.schema.table("task_items")).
		SetMap(map[string]any{
			"is_closed":        true,
			"reason":           int16(c.Reason),
			"reason_other":     c.ReasonOther,
			"last_modified_by": c.By,
			"closed_at":        c.At,
		}).
		Where(sq.Eq{"work_order_id": orderID, "is_closed": false}))
	if err != nil {
		return 0, fmt.Errorf("failed to close tasks: %w", err)
	}
	return int(result.RowsAffected()), nil
}

func (t orderTx) AddComment(ctx context.Context, orderID int64, c *workorder.Comment) error {
	return addComment(ctx, t.tx, t.schema, "work_order_comments", "work_order_id", orderID, c)
}

func (t orderTx) LockOngoingFor(ctx context.Context, customerID, associateID int64) (*workorder.OngoingOrder, error) {
	return getOngoing(ctx, t.tx, t.schema, sq.Eq{"g.customer_id": customerID, "g.associate_id": associateID}, "FOR UPDATE OF g")
}

func (t orderTx) LockOngoing(ctx context.Context, id int64) (*workorder.OngoingOrder, error) {
	return getOngoing(ctx, t.tx, t.schema, sq.Eq{"g.id": id}, "FOR UPDATE OF g")
}

func (t orderTx) InsertOngoing(ctx context.Context, g *workorder.OngoingOrder) error {
	err := queryRow(ctx, t.tx, psql.Insert(t.schema.table("ongoing_work_orders")).
		Columns("customer_id", "associate_id", "open_order_id", "created_at", "updated_at").
		Values(g.CustomerID, g.AssociateID, g.OpenOrderID, g.CreatedAt, g.UpdatedAt).
		Suffix("RETURNING id")).Scan(&g.ID)
	if err != nil {
		if isUnique(err, "ongoing_work_orders_customer_id_associate_id_key") {
			return workorder.ErrOpenOrderExists
		}
		return mapError("workorder.InsertOngoing", err, workorder.ErrOngoingNotFound)
	}
	return nil
}

func (t orderTx) UpdateOngoing(ctx context.Context, g *workorder.OngoingOrder) error {
	result, err := exec(ctx, t.tx, psql.Update(t.schema.table("ongoing_work_orders")).
		Set("open_order_id", g.OpenOrderID).
		Set("updated_at", g.UpdatedAt).
		Where(sq.Eq{"id": g.ID}))
	if err != nil {
		return mapError("workorder.UpdateOngoing", err, workorder.ErrOngoingNotFound)
	}
	if result.RowsAffected() == 0 {
		return workorder.ErrOngoingNotFound
	}
	return nil
}

func (t orderTx) AddClosedOrder(ctx context.Context, ongoingID, orderID int64) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO `+t.schema.table("ongoing_closed_orders")+` (ongoing_work_order_id, work_order_id)
		VALUES ($1, $2) ON CONFLICT DO NOTHING
	`, ongoingID, orderID)
	if err != nil {
		return mapError("workorder.AddClosedOrder", err, workorder.ErrOngoingNotFound)
	}
	return nil
}
