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

package provision

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/over55/workery/internal/audit"
	"github.com/over55/workery/internal/config"
	"github.com/over55/workery/internal/jobs"
	"github.com/over55/workery/internal/observability/metrics"
	"github.com/over55/workery/internal/tenant"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryFranchises struct {
	mu         sync.Mutex
	franchises map[string]*tenant.Franchise
}

func newMemoryFranchises(fs ...*tenant.Franchise) *memoryFranchises {
	m := &memoryFranchises{franchises: make(map[string]*tenant.Franchise)}
	for _, f := range fs {
		m.franchises[f.ID] = f
	}
	return m
}

func (m *memoryFranchises) get(id string) tenant.Franchise {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.franchises[id]
}

func (m *memoryFranchises) Create(_ context.Context, f *tenant.Franchise) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.franchises[f.ID] = f
	return nil
}

func (m *memoryFranchises) GetByID(_ context.Context, id string) (*tenant.Franchise, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.franchises[id]
	if !ok {
		return nil, tenant.ErrFranchiseNotFound
	}
	cp := *f
	return &cp, nil
}

func (m *memoryFranchises) GetBySchema(_ context.Context, schema string) (*tenant.Franchise, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, f := range m.franchises {
		if f.SchemaName == schema {
			cp := *f
			return &cp, nil
		}
	}
	return nil, tenant.ErrFranchiseNotFound
}

func (m *memoryFranchises) List(context.Context, tenant.ListFilter) ([]*tenant.Franchise, int, error) {
	return nil, 0, nil
}

func (m *memoryFranchises) RecordFailure(_ context.Context, id string, attempts int, lastError string, terminal bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	f := m.franchises[id]
	f.ProvisionAttempts = attempts
	f.LastError = lastError
	if terminal {
		f.Status = tenant.StatusFailed
	}
	return nil
}

func (m *memoryFranchises) SetArchived(_ context.Context, id string, archived bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.franchises[id].IsArchived = archived
	return nil
}

func (m *memoryFranchises) ResetForRetry(_ context.Context, id string, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	f := m.franchises[id]
	if f.Status != tenant.StatusFailed {
		return tenant.ErrNotRetryable
	}
	f.Status, f.ProvisionAttempts, f.LastError = tenant.StatusPending, 0, ""
	return nil
}

func (m *memoryFranchises) ClaimStalePending(_ context.Context, _ time.Time, limit int) ([]*tenant.Franchise, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*tenant.Franchise
	for _, f := range m.franchises {
		if f.Status == tenant.StatusPending && !f.IsArchived && len(out) < limit {
			cp := *f
			out = append(out, &cp)
		}
	}
	return out, nil
}

// flakyProvisioner fails the first failures calls, then activates.
type flakyProvisioner struct {
	repo     *memoryFranchises
	failures int
	calls    int
	schemas  map[string]bool
}

func (p *flakyProvisioner) Provision(_ context.Context, target Target, seed *Seed) error {
	p.calls++
	if p.calls <= p.failures {
		return errors.New("connection reset by peer")
	}
	if p.schemas == nil {
		p.schemas = make(map[string]bool)
	}
	p.schemas[target.Schema] = true

	p.repo.mu.Lock()
	defer p.repo.mu.Unlock()
	f := p.repo.franchises[target.FranchiseID]
	f.Status = tenant.StatusActive
	f.ProvisionAttempts = target.Attempt
	at := target.At
	f.ProvisionedAt = &at
	return nil
}

func newTestWorker(t *testing.T, repo *memoryFranchises, p SchemaProvisioner) (*Worker, *metrics.Domain) {
	t.Helper()
	seed, err := LoadSeed()
	require.NoError(t, err)
	meter, err := metrics.New(context.Background(), metrics.Config{}, "test")
	require.NoError(t, err)
	domain := metrics.Discard()
	w, err := NewWorker(repo, p, seed, audit.Discard{}, domain, meter)
	require.NoError(t, err)
	return w, domain
}

func delivery(t *testing.T, f *tenant.Franchise, attempt, maxAttempts int) jobs.Delivery {
	t.Helper()
	job, err := jobs.NewJob(tenant.ProvisionJob, tenant.ProvisionPayload{FranchiseID: f.ID, SchemaName: f.SchemaName})
	require.NoError(t, err)
	return jobs.Delivery{Job: job, Attempt: attempt, MaxAttempts: maxAttempts}
}

func pending(id, schema string) *tenant.Franchise {
	return &tenant.Franchise{ID: id, SchemaName: schema, Status: tenant.StatusPending}
}

func TestLoadSeed(t *testing.T) {
	seed, err := LoadSeed()
	require.NoError(t, err)
	assert.NotEmpty(t, seed.Tags)
	assert.NotEmpty(t, seed.SkillSets)
	assert.NotEmpty(t, seed.HowHearOptions)

	_, err = ParseSeed([]byte("skill_sets:\n  - category: Painting\n"))
	assert.Error(t, err)
}

// TestPurpose: Validates that the worker is safe to run twice.
// Scope: Unit Test
// Expected: The second delivery for an ACTIVE franchise is acknowledged without provisioning again.
// Test Case ID: PRV-01
func TestWorker_Idempotent(t *testing.T) {
	ctx := context.Background()
	f := pending("f-1", "london")
	repo := newMemoryFranchises(f)
	p := &flakyProvisioner{repo: repo}
	w, domain := newTestWorker(t, repo, p)

	require.NoError(t, w.Handle(ctx, delivery(t, f, 1, 5)))
	require.NoError(t, w.Handle(ctx, delivery(t, f, 1, 5)))

	assert.Equal(t, 1, p.calls)
	assert.Equal(t, tenant.StatusActive, repo.get("f-1").Status)
	assert.Equal(t, 1.0, testutil.ToFloat64(domain.ProvisionAttempts.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(domain.ProvisionAttempts.WithLabelValues("skipped")))
}

// TestPurpose: Validates the bounded retry budget.
// Scope: Unit Test
// Security: Failures are recorded, never silently dropped
// Expected: Non-final failures return an error for redelivery; the final one marks FAILED and acks.
// Test Case ID: PRV-02
func TestWorker_TerminalFailure(t *testing.T) {
	ctx := context.Background()
	f := pending("f-1", "paris")
	repo := newMemoryFranchises(f)
	p := &flakyProvisioner{repo: repo, failures: 100}
	w, _ := newTestWorker(t, repo, p)

	err := w.Handle(ctx, delivery(t, f, 1, 3))
	require.Error(t, err)
	got := repo.get("f-1")
	assert.Equal(t, tenant.StatusPending, got.Status)
	assert.Equal(t, 1, got.ProvisionAttempts)
	assert.Equal(t, "connection reset by peer", got.LastError)

	require.NoError(t, w.Handle(ctx, delivery(t, f, 3, 3)))
	got = repo.get("f-1")
	assert.Equal(t, tenant.StatusFailed, got.Status)
	assert.Equal(t, 3, got.ProvisionAttempts)

	// A stale redelivery after the terminal state does nothing.
	require.NoError(t, w.Handle(ctx, delivery(t, f, 2, 3)))
	assert.Equal(t, 2, p.calls)
}

func TestWorker_MalformedPayloadIsPermanent(t *testing.T) {
	w, _ := newTestWorker(t, newMemoryFranchises(), &flakyProvisioner{})
	err := w.Handle(context.Background(), jobs.Delivery{
		Job:         jobs.Job{Name: tenant.ProvisionJob, Payload: []byte("{")},
		Attempt:     1,
		MaxAttempts: 5,
	})
	assert.True(t, jobs.IsPermanent(err))
}

// TestPurpose: Validates provisioning end to end through the in-memory queue.
// Scope: Unit Test
// Expected: Two transient failures are retried and the franchise becomes ACTIVE on attempt 3.
// Test Case ID: PRV-03
func TestWorker_ThroughMemoryQueue(t *testing.T) {
	ctx := context.Background()
	f := pending("f-1", "rome")
	repo := newMemoryFranchises(f)
	p := &flakyProvisioner{repo: repo, failures: 2}
	w, _ := newTestWorker(t, repo, p)

	q := jobs.NewMemoryQueue(jobs.RetryPolicy{MaxAttempts: 5, InitialBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond}, 1, 4)
	defer q.Close()
	stop, err := w.Start(ctx, q)
	require.NoError(t, err)
	defer stop()

	job, err := jobs.NewJob(tenant.ProvisionJob, tenant.ProvisionPayload{FranchiseID: "f-1", SchemaName: "rome"})
	require.NoError(t, err)
	require.NoError(t, q.Enqueue(ctx, job))

	assert.Eventually(t, func() bool {
		return repo.get("f-1").Status == tenant.StatusActive
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 3, repo.get("f-1").ProvisionAttempts)
}

// TestPurpose: Validates that a provisioning job lost with its in-memory queue is recovered.
// Scope: Unit Test
// Security: Failures are recorded, never silently dropped
// Expected: After a restart the PENDING franchise is re-enqueued by the sweep and becomes ACTIVE.
// Test Case ID: PRV-04
func TestWorker_RecoversJobsLostOnRestart(t *testing.T) {
	ctx := context.Background()
	f := pending("f-1", "oslo")
	repo := newMemoryFranchises(f)
	policy := jobs.RetryPolicy{MaxAttempts: 5, InitialBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond}

	before := jobs.NewMemoryQueue(policy, 1, 4)
	job, err := jobs.NewJob(tenant.ProvisionJob, tenant.ProvisionPayload{FranchiseID: "f-1", SchemaName: "oslo"})
	require.NoError(t, err)
	require.NoError(t, before.Enqueue(ctx, job))
	require.NoError(t, before.Close())

	after := jobs.NewMemoryQueue(policy, 1, 4)
	defer after.Close()
	p := &flakyProvisioner{repo: repo}
	w, _ := newTestWorker(t, repo, p)
	stop, err := w.Start(ctx, after)
	require.NoError(t, err)
	defer stop()

	router, err := tenant.NewRouter(repo, config.TenantConfig{BaseDomain: "workery.ca", Scheme: "https", CacheTTL: time.Second}, metrics.Discard(), audit.Discard{})
	require.NoError(t, err)
	defer router.Close()
	svc := tenant.NewService(repo, after, router, audit.Discard{}, 10*time.Minute)

	n, err := svc.RecoverPending(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.Eventually(t, func() bool {
		return repo.get("f-1").Status == tenant.StatusActive
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, p.calls)
}
