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

// Package provision creates franchise schemas in the background.
package provision

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/over55/workery/internal/audit"
	"github.com/over55/workery/internal/jobs"
	"github.com/over55/workery/internal/observability/logger"
	"github.com/over55/workery/internal/observability/metrics"
	"github.com/over55/workery/internal/observability/tracing"
	"github.com/over55/workery/internal/tenant"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Target names the franchise being provisioned.
type Target struct {
	FranchiseID string
	Schema      string
	Attempt     int
	At          time.Time
}

// SchemaProvisioner creates a franchise schema with its seed data and flips
// the franchise to ACTIVE, all in one transaction. It must be safe to call
// again after a partial failure.
type SchemaProvisioner interface {
	Provision(ctx context.Context, target Target, seed *Seed) error
}

// Worker handles tenant.ProvisionJob deliveries.
type Worker struct {
	repo        tenant.Repository
	provisioner SchemaProvisioner
	seed        *Seed
	audit       audit.Logger
	metrics     *metrics.Domain
	inFlight    metric.Int64UpDownCounter
	latency     metric.Float64Histogram
	now         func() time.Time
}

// NewWorker creates a provisioning worker.
func NewWorker(
	repo tenant.Repository,
	provisioner SchemaProvisioner,
	seed *Seed,
	auditLogger audit.Logger,
	domain *metrics.Domain,
	meter *metrics.Meter,
) (*Worker, error) {
	inFlight, err := meter.Gauge("workery.provision.in_flight", "Franchise provisioning jobs running")
	if err != nil {
		return nil, err
	}
	latency, err := meter.Latency("workery.provision.duration", "Franchise provisioning attempt duration")
	if err != nil {
		return nil, err
	}
	return &Worker{
		repo:        repo,
		provisioner: provisioner,
		seed:        seed,
		audit:       auditLogger,
		metrics:     domain,
		inFlight:    inFlight,
		latency:     latency,
		now:         time.Now,
	}, nil
}

// Start subscribes the worker to q.
func (w *Worker) Start(ctx context.Context, q jobs.Queue) (func(), error) {
	return q.Subscribe(ctx, tenant.ProvisionJob, w.Handle)
}

// Handle runs one delivery. Already active, archived or terminally failed
// franchises are acknowledged without work. A failure on the final attempt
// marks the franchise FAILED and acknowledges the job.
func (w *Worker) Handle(ctx context.Context, d jobs.Delivery) error {
	ctx, span := tracing.Start(ctx, "provision.franchise",
		attribute.String("job.name", d.Job.Name),
		attribute.Int("job.attempt", d.Attempt),
	)
	start := w.now()
	w.inFlight.Add(ctx, 1)
	defer w.inFlight.Add(ctx, -1)

	outcome, err := w.handle(ctx, d)
	elapsed := w.now().Sub(start).Seconds()
	w.metrics.ProvisionAttempts.WithLabelValues(outcome).Inc()
	w.metrics.JobDuration.WithLabelValues(d.Job.Name, outcome).Observe(elapsed)
	w.latency.Record(ctx, elapsed, metric.WithAttributes(attribute.String("outcome", outcome)))
	span.SetAttributes(attribute.String("provision.outcome", outcome))
	tracing.End(span, err)
	return err
}

func (w *Worker) handle(ctx context.Context, d jobs.Delivery) (string, error) {
	var payload tenant.ProvisionPayload
	if err := d.Job.Decode(&payload); err != nil {
		return "malformed", jobs.Permanent(err)
	}

	log := slog.With(logger.Job(d.Job.Name), logger.FranchiseID(payload.FranchiseID), logger.Attempt(d.Attempt))

	f, err := w.repo.GetByID(ctx, payload.FranchiseID)
	if err != nil {
		if errors.Is(err, tenant.ErrFranchiseNotFound) {
			log.WarnContext(ctx, "franchise vanished before provisioning")
			return "skipped", nil
		}
		return "retry", err
	}

	switch {
	case f.Status == tenant.StatusActive:
		log.InfoContext(ctx, "franchise already active")
		return "skipped", nil
	case f.Status == tenant.StatusFailed:
		log.InfoContext(ctx, "franchise already failed, waiting for an explicit retry")
		return "skipped", nil
	case f.IsArchived:
		log.InfoContext(ctx, "franchise archived before provisioning")
		return "skipped", nil
	}

	err = w.provisioner.Provision(ctx, Target{
		FranchiseID: f.ID,
		Schema:      f.SchemaName,
		Attempt:     d.Attempt,
		At:          w.now(),
	}, w.seed)
	if err == nil {
		log.InfoContext(ctx, "franchise provisioned", logger.Schema(f.SchemaName))
		w.audit.Log(ctx, audit.Event{
			Type:     audit.TypeFranchiseProvisioned,
			TenantID: f.ID,
			Resource: "franchise",
			Metadata: map[string]any{audit.AttrSchema: f.SchemaName, audit.AttrAttempts: d.Attempt},
		})
		return "success", nil
	}

	terminal := d.Final() || jobs.IsPermanent(err)
	if rerr := w.repo.RecordFailure(ctx, f.ID, d.Attempt, err.Error(), terminal); rerr != nil {
		log.ErrorContext(ctx, "failed to record provisioning failure", logger.Error(rerr))
		return "retry", err
	}

	if !terminal {
		log.WarnContext(ctx, "franchise provisioning failed, will retry", logger.Error(err))
		return "retry", err
	}

	log.ErrorContext(ctx, "franchise provisioning failed permanently", logger.Error(err))
	w.audit.Log(ctx, audit.Event{
		Type:     audit.TypeFranchiseFailed,
		TenantID: f.ID,
		Resource: "franchise",
		Metadata: map[string]any{audit.AttrSchema: f.SchemaName, audit.AttrAttempts: d.Attempt},
	})
	return "failed", nil
}
