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

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/over55/workery/internal/accesscode"
	"github.com/over55/workery/internal/archive"
	"github.com/over55/workery/internal/audit"
	"github.com/over55/workery/internal/config"
	"github.com/over55/workery/internal/identity"
	"github.com/over55/workery/internal/jobs"
	"github.com/over55/workery/internal/jobs/natsqueue"
	"github.com/over55/workery/internal/observability/logger"
	"github.com/over55/workery/internal/observability/metrics"
	"github.com/over55/workery/internal/observability/tracing"
	"github.com/over55/workery/internal/party"
	"github.com/over55/workery/internal/provision"
	"github.com/over55/workery/internal/search"
	"github.com/over55/workery/internal/session"
	"github.com/over55/workery/internal/store/postgres"
	"github.com/over55/workery/internal/tenant"
	transportHTTP "github.com/over55/workery/internal/transport/http"
	"github.com/over55/workery/internal/workorder"
)

// queueCloser is a jobs.Queue that owns resources.
type queueCloser interface {
	jobs.Queue
	Close() error
}

// app holds every wired component. Close releases them in reverse order.
type app struct {
	cfg      *config.Config
	db       *postgres.DB
	tracer   *tracing.Provider
	meter    *metrics.Meter
	registry *prometheus.Registry
	domain   *metrics.Domain
	audit    audit.Logger
	queue    queueCloser

	accounts    *postgres.AccountRepository
	franchises  *postgres.FranchiseRepository
	identity    *identity.Service
	sessions    *session.Service
	accessCodes *accesscode.Service
	router      *tenant.Router
	tenants     *tenant.Service
	parties     *party.Service
	orders      *workorder.Service
	search      *search.Service
	archive     *archive.Service

	closers []func()
}

func newApp(ctx context.Context, cfg *config.Config) (a *app, err error) {
	a = &app{cfg: cfg, audit: audit.NewSlogLogger()}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	a.tracer, err = tracing.New(ctx, tracing.Config{
		Enabled:        cfg.Observability.OTELEnabled,
		ServiceName:    cfg.Observability.ServiceName,
		ServiceVersion: cfg.Observability.ServiceVersion,
		Endpoint:       cfg.Observability.OTLPEndpoint,
		SamplingRate:   cfg.Observability.TraceSamplingRate,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracer: %w", err)
	}
	a.closers = append(a.closers, func() {
		if err := a.tracer.Shutdown(context.WithoutCancel(ctx)); err != nil {
			slog.Error("tracer shutdown failed", logger.Error(err))
		}
	})

	a.meter, err = metrics.New(ctx, metrics.Config{Enabled: cfg.Observability.OTELEnabled}, cfg.Observability.ServiceName)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize meter: %w", err)
	}
	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.domain = metrics.NewDomain(a.registry, "workery")

	a.db, err = postgres.New(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	a.closers = append(a.closers, a.db.Close)
	slog.Info("connected to database", logger.Component("server"))

	a.queue, err = openQueue(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() {
		if err := a.queue.Close(); err != nil {
			slog.Error("queue close failed", logger.Error(err))
		}
	})

	a.accounts = postgres.NewAccountRepository(a.db)
	a.franchises = postgres.NewFranchiseRepository(a.db)
	a.router, err = tenant.NewRouter(a.franchises, cfg.Tenant, a.domain, a.audit)
	if err != nil {
		return nil, fmt.Errorf("failed to create tenant router: %w", err)
	}
	a.closers = append(a.closers, a.router.Close)

	hasher := identity.NewPasswordHasher(
		cfg.Security.Argon2Memory,
		cfg.Security.Argon2Iterations,
		cfg.Security.Argon2Parallelism,
		cfg.Security.Argon2SaltLength,
		cfg.Security.Argon2KeyLength,
	)
	a.identity = identity.NewService(a.accounts, hasher, a.audit, cfg.Security.LockoutMaxAttempts, cfg.Security.LockoutDuration)
	a.sessions = session.NewService(
		postgres.NewSessionRepository(a.db),
		session.NewSigner(cfg.Session.SigningSecret, cfg.Session.Issuer),
		cfg.Session.Lifetime,
		cfg.Session.IdleTimeout,
	)
	mailer := accesscode.LogMailer{BaseURL: fmt.Sprintf("%s://%s", cfg.Tenant.Scheme, cfg.Tenant.BaseDomain)}
	a.accessCodes = accesscode.NewService(postgres.NewAccessCodeRepository(a.db), a.identity, mailer, a.audit, a.domain, cfg.AccessCode.TTL)
	a.tenants = tenant.NewService(a.franchises, a.queue, a.router, a.audit, cfg.Provision.StaleAfter)
	a.parties = party.NewService(postgres.NewPartyRepository(a.db), a.audit)
	a.orders = workorder.NewService(postgres.NewWorkOrderRepository(a.db), a.audit, a.domain)
	a.search = search.NewService(postgres.NewSearchRepository(a.db))
	a.archive = archive.NewService(postgres.NewArchiveRepository(a.db), a.audit)
	return a, nil
}

func openQueue(ctx context.Context, cfg *config.Config) (queueCloser, error) {
	policy := jobs.RetryPolicy{
		MaxAttempts:    cfg.Provision.MaxAttempts,
		InitialBackoff: cfg.Provision.InitialBackoff,
		MaxBackoff:     cfg.Provision.MaxBackoff,
	}
	switch cfg.Queue.Driver {
	case "nats":
		q, err := natsqueue.Connect(ctx, cfg.Queue.NATSURL, policy)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to queue: %w", err)
		}
		return q, nil
	case "memory":
		return jobs.NewMemoryQueue(policy, cfg.Queue.Workers, 64), nil
	}
	return nil, fmt.Errorf("unsupported queue driver %q", cfg.Queue.Driver)
}

// startWorker subscribes the provisioning worker to the queue.
func (a *app) startWorker(ctx context.Context) (func(), error) {
	seed, err := provision.LoadSeed()
	if err != nil {
		return nil, fmt.Errorf("failed to load provisioning seed: %w", err)
	}
	w, err := provision.NewWorker(a.franchises, postgres.NewProvisioner(a.db), seed, a.audit, a.domain, a.meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create provisioning worker: %w", err)
	}
	stop, err := w.Start(ctx, a.queue)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe provisioning worker: %w", err)
	}
	slog.Info("provisioning worker started", logger.Component("worker"), slog.String("queue", a.cfg.Queue.Driver))

	sweepCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		a.sweepPending(sweepCtx)
	}()
	return func() {
		cancel()
		<-done
		stop()
	}, nil
}

// sweepPending re-enqueues franchises whose provisioning job was lost. The
// in-memory queue starts empty, so on startup every PENDING row is orphaned.
func (a *app) sweepPending(ctx context.Context) {
	staleAfter := a.cfg.Provision.StaleAfter
	first := staleAfter
	if a.cfg.Queue.Driver == "memory" {
		first = 0
	}
	sweep := func(olderThan time.Duration) {
		n, err := a.tenants.RecoverPending(ctx, olderThan)
		if err != nil {
			slog.ErrorContext(ctx, "pending franchise sweep failed", logger.Component("worker"), logger.Error(err))
			return
		}
		if n > 0 {
			slog.InfoContext(ctx, "pending franchises re-enqueued", logger.Component("worker"), slog.Int("count", n))
		}
	}

	sweep(first)
	ticker := time.NewTicker(staleAfter)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweep(staleAfter)
		}
	}
}

// handler builds the HTTP stack.
func (a *app) handler() (http.Handler, func()) {
	rl := transportHTTP.NewRateLimiter(a.cfg.RateLimit.RequestsPerSecond, a.cfg.RateLimit.Burst)
	h := transportHTTP.NewHandler(transportHTTP.Deps{
		Identity:    a.identity,
		Sessions:    a.sessions,
		AccessCodes: a.accessCodes,
		Router:      a.router,
		Franchises:  a.tenants,
		Parties:     a.parties,
		Orders:      a.orders,
		Search:      a.search,
		Archive:     a.archive,
		Audit:       a.audit,
		Ready:       a.db.Ping,
		Metrics:     promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{Registry: a.registry}),
	}, transportHTTP.CookieConfigFrom(a.cfg.Session))
	return transportHTTP.NewRouter(h, rl), rl.Stop
}

// cleanup removes expired sessions and access codes.
func (a *app) cleanup(ctx context.Context) error {
	sessions, err := a.sessions.CleanupExpired(ctx)
	if err != nil {
		return fmt.Errorf("failed to clean up sessions: %w", err)
	}
	codes, err := a.accessCodes.Cleanup(ctx)
	if err != nil {
		return fmt.Errorf("failed to clean up access codes: %w", err)
	}
	slog.InfoContext(ctx, "cleanup finished",
		logger.Component("cleanup"),
		slog.Int64("sessions", sessions),
		slog.Int64("access_codes", codes),
	)
	return nil
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
