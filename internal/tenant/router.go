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
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/over55/workery/internal/apperr"
	"github.com/over55/workery/internal/audit"
	"github.com/over55/workery/internal/config"
	"github.com/over55/workery/internal/identity"
	"github.com/over55/workery/internal/observability/metrics"
)

// Router binds requests to a franchise.
type Router struct {
	repo       Repository
	baseDomain string
	scheme     string
	ttl        time.Duration
	cache      *ristretto.Cache[string, *Franchise]
	metrics    *metrics.Domain
	audit      audit.Logger

	// mu orders cache fills against evictions. A lookup that started before
	// the latest eviction must not write its row back.
	mu  sync.Mutex
	gen uint64
}

// NewRouter creates a tenant router with a bounded cache of resolved franchises.
func NewRouter(repo Repository, cfg config.TenantConfig, m *metrics.Domain, auditLogger audit.Logger) (*Router, error) {
	maxCost := cfg.CacheBytes
	if maxCost <= 0 {
		maxCost = 1 << 20
	}
	cache, err := ristretto.NewCache(&ristretto.Config[string, *Franchise]{
		NumCounters: max(maxCost/100, 1000),
		MaxCost:     maxCost,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create tenant cache: %w", err)
	}
	return &Router{
		repo:       repo,
		baseDomain: strings.ToLower(strings.TrimPrefix(cfg.BaseDomain, ".")),
		scheme:     cfg.Scheme,
		ttl:        cfg.CacheTTL,
		cache:      cache,
		metrics:    m,
		audit:      auditLogger,
	}, nil
}

// SchemaFromHost extracts the schema label from {schema}.{base}. The bare base
// domain and hosts outside it name no tenant.
func (r *Router) SchemaFromHost(host string) (string, bool) {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	label, ok := strings.CutSuffix(host, "."+r.baseDomain)
	if !ok || label == "" || strings.Contains(label, ".") {
		return "", false
	}
	return label, true
}

// Resolve selects the franchise named by host or by an explicit schema
// parameter. When both are present they must agree. Unknown schemas fail with
// ErrFranchiseNotFound; archived or unprovisioned franchises with an isolation
// violation. There is no default tenant.
func (r *Router) Resolve(ctx context.Context, host, explicitSchema string) (*Franchise, Scope, error) {
	return r.resolve(ctx, "tenant.Resolve", host, explicitSchema, false)
}

// ResolveFresh is Resolve reading storage instead of the cache. Mutating
// requests use it so an archive committed on another process takes effect
// immediately.
func (r *Router) ResolveFresh(ctx context.Context, host, explicitSchema string) (*Franchise, Scope, error) {
	return r.resolve(ctx, "tenant.ResolveFresh", host, explicitSchema, true)
}

func (r *Router) resolve(ctx context.Context, op, host, explicitSchema string, fresh bool) (*Franchise, Scope, error) {

	fromHost, hasHost := r.SchemaFromHost(host)
	explicitSchema = strings.ToLower(strings.TrimSpace(explicitSchema))

	var schema string
	switch {
	case hasHost && explicitSchema != "" && fromHost != explicitSchema:
		return nil, Scope{}, r.deny(ctx, op, "mismatch", fromHost, ErrSchemaMismatch)
	case hasHost:
		schema = fromHost
	case explicitSchema != "":
		schema = explicitSchema
	default:
		return nil, Scope{}, r.deny(ctx, op, "missing", "", ErrNoTenant)
	}

	f, err := r.lookup(ctx, schema, fresh)
	if err != nil {
		if errors.Is(err, ErrFranchiseNotFound) {
			r.metrics.TenantResolutions.WithLabelValues("not_found").Inc()
			return nil, Scope{}, apperr.Wrap(op, ErrFranchiseNotFound)
		}
		r.metrics.TenantResolutions.WithLabelValues("error").Inc()
		return nil, Scope{}, apperr.Wrap(op, err)
	}

	if err := f.Routable(); err != nil {
		r.Evict(schema)
		return nil, Scope{}, r.deny(ctx, op, "not_routable", schema, err)
	}

	r.metrics.TenantResolutions.WithLabelValues("ok").Inc()
	return f, ScopeOf(f), nil
}

// Confine checks that account may act inside f. Root accounts may enter any
// franchise; franchise accounts only their own.
func (r *Router) Confine(ctx context.Context, f *Franchise, account *identity.Account) error {
	if account.IsRoot() || account.HomeFranchise() == f.ID {
		return nil
	}
	r.audit.Log(ctx, audit.Event{
		Type:     audit.TypeTenantDenied,
		TenantID: f.ID,
		ActorID:  account.ID,
		Resource: "tenant",
		Metadata: map[string]any{audit.AttrReason: "cross_tenant", audit.AttrSchema: f.SchemaName},
	})
	r.metrics.TenantResolutions.WithLabelValues("cross_tenant").Inc()
	return apperr.Wrap("tenant.Confine", ErrCrossTenant)
}

// Landing returns where an account goes after login: its franchise dashboard,
// the franchise list for root accounts, or the login page when anonymous.
func (r *Router) Landing(ctx context.Context, account *identity.Account) (string, error) {
	if account == nil {
		return "/login", nil
	}
	if account.IsRoot() {
		return "/franchises", nil
	}
	f, err := r.repo.GetByID(ctx, account.HomeFranchise())
	if err != nil {
		return "", apperr.Wrap("tenant.Landing", err)
	}
	if err := f.Routable(); err != nil {
		return "", r.deny(ctx, "tenant.Landing", "not_routable", f.SchemaName, err)
	}
	return r.DashboardURL(f), nil
}

// DashboardURL is the absolute dashboard address of f.
func (r *Router) DashboardURL(f *Franchise) string {
	return fmt.Sprintf("%s://%s.%s/dashboard", r.scheme, f.SchemaName, r.baseDomain)
}

// Evict drops a cached franchise so the next request reads storage.
func (r *Router) Evict(schema string) {
	r.mu.Lock()
	r.gen++
	r.cache.Del(schema)
	r.mu.Unlock()
}

// Close releases the cache.
func (r *Router) Close() {
	r.cache.Close()
}

func (r *Router) lookup(ctx context.Context, schema string, fresh bool) (*Franchise, error) {
	if !fresh {
		if f, ok := r.cache.Get(schema); ok {
			return f, nil
		}
	}

	r.mu.Lock()
	gen := r.gen
	r.mu.Unlock()

	f, err := r.repo.GetBySchema(ctx, schema)
	if err != nil {
		return nil, err
	}
	if f.Routable() != nil {
		return f, nil
	}

	r.mu.Lock()
	if r.gen == gen {
		r.cache.SetWithTTL(schema, f, 512, r.ttl)
	}
	r.mu.Unlock()
	return f, nil
}

func (r *Router) deny(ctx context.Context, op, reason, schema string, err error) error {
	r.metrics.TenantResolutions.WithLabelValues(reason).Inc()
	r.audit.Log(ctx, audit.Event{
		Type:     audit.TypeTenantDenied,
		Resource: "tenant",
		Metadata: map[string]any{audit.AttrReason: reason, audit.AttrSchema: schema},
	})
	return apperr.Wrap(op, err)
}
