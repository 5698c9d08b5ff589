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

package tenant

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/over55/workery/internal/apperr"
	"github.com/over55/workery/internal/audit"
	"github.com/over55/workery/internal/id"
	"github.com/over55/workery/internal/jobs"
	"github.com/over55/workery/internal/observability/logger"
	"github.com/over55/workery/internal/reqctx"
	"github.com/over55/workery/internal/validate"
)

// ProvisionJob is the job name handled by the provisioning worker.
const ProvisionJob = "franchise.provision"

// ProvisionPayload is the typed payload of ProvisionJob.
type ProvisionPayload struct {
	FranchiseID string `json:"franchise_id"`
	SchemaName  string `json:"schema_name"`
}

// NewFranchise is the input of RequestProvision.
type NewFranchise struct {
	SchemaName    string  `json:"schema_name" validate:"required,schema_name"`
	Name          string  `json:"name" validate:"required,max=255"`
	AlternateName string  `json:"alternate_name" validate:"max=255"`
	Description   string  `json:"description" validate:"max=1000"`
	URL           string  `json:"url" validate:"omitempty,url"`
	Timezone      string  `json:"timezone" validate:"omitempty,timezone"`
	Address       Address `json:"address"`
}

// Service provides franchise management business logic
type Service struct {
	repo        Repository
	queue       jobs.Queue
	router      *Router
	auditLogger audit.Logger
	staleAfter  time.Duration
	now         func() time.Time
}

// NewService creates a new franchise service. A PENDING franchise untouched
// for staleAfter is considered orphaned by its queue.
func NewService(repo Repository, queue jobs.Queue, router *Router, auditLogger audit.Logger, staleAfter time.Duration) *Service {
	return &Service{
		repo:        repo,
		queue:       queue,
		router:      router,
		auditLogger: auditLogger,
		staleAfter:  staleAfter,
		now:         time.Now,
	}
}

// RequestProvision validates the request, records a PENDING franchise and
// enqueues schema creation. It never waits for the schema.
func (s *Service) RequestProvision(ctx context.Context, rc reqctx.RequestContext, in NewFranchise) (*Franchise, error) {
	const op = "tenant.RequestProvision"

	if err := validate.Struct(op, in); err != nil {
		return nil, err
	}
	if IsReservedSchema(in.SchemaName) {
		return nil, apperr.Wrap(op, ErrReservedSchema)
	}

	if _, err := s.repo.GetBySchema(ctx, in.SchemaName); err == nil {
		return nil, apperr.Wrap(op, ErrSchemaTaken)
	} else if !errors.Is(err, ErrFranchiseNotFound) {
		return nil, apperr.Wrap(op, err)
	}

	if in.Timezone == "" {
		in.Timezone = "UTC"
	}
	now := s.now()
	f := &Franchise{
		ID:            id.NewUUIDv7(),
		SchemaName:    in.SchemaName,
		Name:          in.Name,
		AlternateName: in.AlternateName,
		Description:   in.Description,
		URL:           in.URL,
		Timezone:      in.Timezone,
		Address:       in.Address,
		Status:        StatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.repo.Create(ctx, f); err != nil {
		return nil, apperr.Wrap(op, err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:      audit.TypeFranchiseRequested,
		TenantID:  f.ID,
		ActorID:   rc.Actor,
		Resource:  "franchise",
		IPAddress: rc.SourceIP,
		UserAgent: rc.UserAgent,
		Metadata:  map[string]any{audit.AttrSchema: f.SchemaName},
	})

	if err := s.enqueue(ctx, f); err != nil {
		return f, apperr.Wrap(op, err)
	}
	return f, nil
}

// Retry re-enqueues a FAILED or stale PENDING franchise with a fresh attempt
// budget.
func (s *Service) Retry(ctx context.Context, rc reqctx.RequestContext, franchiseID string) (*Franchise, error) {
	const op = "tenant.Retry"
	if err := s.repo.ResetForRetry(ctx, franchiseID, s.now().Add(-s.staleAfter)); err != nil {
		return nil, apperr.Wrap(op, err)
	}
	f, err := s.repo.GetByID(ctx, franchiseID)
	if err != nil {
		return nil, apperr.Wrap(op, err)
	}
	slog.InfoContext(ctx, "franchise provisioning retried", logger.FranchiseID(f.ID), logger.AccountID(rc.Actor))
	if err := s.enqueue(ctx, f); err != nil {
		return f, apperr.Wrap(op, err)
	}
	return f, nil
}

// RecoverPending re-enqueues PENDING franchises untouched for olderThan. Jobs
// held by a queue that did not survive a restart are lost; the worker is
// idempotent, so a duplicate of a job still in flight is harmless.
func (s *Service) RecoverPending(ctx context.Context, olderThan time.Duration) (int, error) {
	const op = "tenant.RecoverPending"
	const batch = 100

	recovered := 0
	for {
		stale, err := s.repo.ClaimStalePending(ctx, s.now().Add(-olderThan), batch)
		if err != nil {
			return recovered, apperr.Wrap(op, err)
		}
		for _, f := range stale {
			if err := s.enqueue(ctx, f); err != nil {
				continue
			}
			recovered++
			slog.InfoContext(ctx, "franchise provisioning re-enqueued", logger.FranchiseID(f.ID), logger.Schema(f.SchemaName))
		}
		if len(stale) < batch {
			return recovered, nil
		}
	}
}

func (s *Service) enqueue(ctx context.Context, f *Franchise) error {
	job, err := jobs.NewJob(ProvisionJob, ProvisionPayload{FranchiseID: f.ID, SchemaName: f.SchemaName})
	if err == nil {
		err = s.queue.Enqueue(ctx, job)
	}
	if err == nil {
		return nil
	}

	slog.ErrorContext(ctx, "failed to enqueue provisioning", logger.FranchiseID(f.ID), logger.Error(err))
	if rerr := s.repo.RecordFailure(ctx, f.ID, f.ProvisionAttempts, err.Error(), true); rerr != nil {
		slog.ErrorContext(ctx, "failed to record provisioning failure", logger.FranchiseID(f.ID), logger.Error(rerr))
	}
	f.Status = StatusFailed
	f.LastError = err.Error()
	return &apperr.Error{Code: apperr.EProvisioning, Msg: ErrEnqueueFailed.Msg, Err: err}
}

// Get returns a franchise by id.
func (s *Service) Get(ctx context.Context, franchiseID string) (*Franchise, error) {
	f, err := s.repo.GetByID(ctx, franchiseID)
	if err != nil {
		return nil, apperr.Wrap("tenant.Get", err)
	}
	return f, nil
}

// List lists franchises.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]*Franchise, int, error) {
	if filter.Limit <= 0 || filter.Limit > 100 {
		filter.Limit = 20
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	out, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, apperr.Wrap("tenant.List", err)
	}
	return out, total, nil
}

// Archive hides a franchise from routing. Franchises are never deleted.
func (s *Service) Archive(ctx context.Context, rc reqctx.RequestContext, franchiseID string) (*Franchise, error) {
	return s.setArchived(ctx, rc, franchiseID, true)
}

// Unarchive makes an archived franchise routable again.
func (s *Service) Unarchive(ctx context.Context, rc reqctx.RequestContext, franchiseID string) (*Franchise, error) {
	return s.setArchived(ctx, rc, franchiseID, false)
}

func (s *Service) setArchived(ctx context.Context, rc reqctx.RequestContext, franchiseID string, archived bool) (*Franchise, error) {
	const op = "tenant.Archive"
	f, err := s.repo.GetByID(ctx, franchiseID)
	if err != nil {
		return nil, apperr.Wrap(op, err)
	}
	if err := s.repo.SetArchived(ctx, franchiseID, archived); err != nil {
		return nil, apperr.Wrap(op, err)
	}
	s.router.Evict(f.SchemaName)
	f.IsArchived = archived

	eventType := audit.TypeEntityArchived
	if !archived {
		eventType = audit.TypeEntityUnarchived
	}
	s.auditLogger.Log(ctx, audit.Event{
		Type:      eventType,
		TenantID:  f.ID,
		ActorID:   rc.Actor,
		Resource:  "franchise",
		IPAddress: rc.SourceIP,
		Metadata:  map[string]any{audit.AttrKind: "franchise"},
	})
	return f, nil
}
