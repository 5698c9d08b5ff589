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

//go:build integration
// +build integration

package postgres

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/over55/workery/internal/apperr"
	"github.com/over55/workery/internal/archive"
	"github.com/over55/workery/internal/audit"
	"github.com/over55/workery/internal/authz"
	"github.com/over55/workery/internal/config"
	"github.com/over55/workery/internal/id"
	"github.com/over55/workery/internal/listing"
	"github.com/over55/workery/internal/observability/metrics"
	"github.com/over55/workery/internal/party"
	"github.com/over55/workery/internal/provision"
	"github.com/over55/workery/internal/reqctx"
	"github.com/over55/workery/internal/search"
	"github.com/over55/workery/internal/tenant"
	"github.com/over55/workery/internal/workorder"
)

// openTestDB connects with the DB_* environment and applies the shared
// migrations. The test is skipped when no database is reachable.
func openTestDB(t *testing.T) *DB {
	t.Helper()
	var cfg config.DatabaseConfig
	require.NoError(t, envconfig.Process("DB", &cfg))
	cfg.MaxOpenConns = 10

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	db, err := New(ctx, cfg)
	if err != nil {
		t.Skipf("Skipping integration test: failed to connect to database: %v", err)
	}
	t.Cleanup(db.Close)

	m, err := NewMigrator(db)
	require.NoError(t, err)
	defer m.Close()
	_, err = m.Up(context.Background())
	require.NoError(t, err)
	return db
}

// provisionFranchise creates and provisions a throwaway franchise schema.
func provisionFranchise(t *testing.T, db *DB) tenant.Scope {
	t.Helper()
	ctx := context.Background()
	franchiseID := id.NewUUIDv7()
	f := &tenant.Franchise{
		ID:         franchiseID,
		SchemaName: "it_" + strings.ReplaceAll(franchiseID[len(franchiseID)-12:], "-", ""),
		Name:       "Integration " + franchiseID,
		Timezone:   "America/Toronto",
	}
	franchises := NewFranchiseRepository(db)
	require.NoError(t, franchises.Create(ctx, f))

	seed, err := provision.LoadSeed()
	require.NoError(t, err)
	target := provision.Target{FranchiseID: f.ID, Schema: f.SchemaName, Attempt: 1, At: time.Now()}
	require.NoError(t, NewProvisioner(db).Provision(ctx, target, seed))

	t.Cleanup(func() {
		_, _ = db.pool.Exec(context.Background(), `DROP SCHEMA IF EXISTS `+pgx.Identifier{f.SchemaName}.Sanitize()+` CASCADE`)
		_, _ = db.pool.Exec(context.Background(), `DELETE FROM franchises WHERE id = $1`, f.ID)
	})
	return tenant.Scope{FranchiseID: f.ID, Schema: f.SchemaName}
}

// TestPurpose: Validates that provisioning creates an ACTIVE franchise and can run twice without failing.
// Scope: Database Integration Test
// Security: N/A
// Expected: The franchise is ACTIVE, seed rows exist once, and a second run succeeds.
// Test Case ID: INT-PRV-01
func TestProvisioner_Idempotent(t *testing.T) {
	db := openTestDB(t)
	scope := provisionFranchise(t, db)
	ctx := context.Background()

	f, err := NewFranchiseRepository(db).GetByID(ctx, scope.FranchiseID)
	require.NoError(t, err)
	assert.Equal(t, tenant.StatusActive, f.Status)
	assert.NotNil(t, f.ProvisionedAt)

	seed, err := provision.LoadSeed()
	require.NoError(t, err)
	target := provision.Target{FranchiseID: scope.FranchiseID, Schema: scope.Schema, Attempt: 2, At: time.Now()}
	require.NoError(t, NewProvisioner(db).Provision(ctx, target, seed))

	var tags int
	require.NoError(t, db.pool.QueryRow(ctx, `SELECT count(*) FROM `+schema(scope.Schema).table("tags")).Scan(&tags))
	assert.Equal(t, len(seed.Tags), tags)
}

// TestPurpose: Validates that the same party id in two franchises stays separate.
// Scope: Database Integration Test
// Security: Multi-tenant Data Separation (CWE-284)
// Expected: Reading a party through franchise B never returns franchise A's row.
// Test Case ID: INT-ISO-01
func TestPartyRepository_TenantIsolation(t *testing.T) {
	db := openTestDB(t)
	scopeA := provisionFranchise(t, db)
	scopeB := provisionFranchise(t, db)
	ctx := context.Background()

	parties := party.NewService(NewPartyRepository(db), audit.Discard{})
	rc := reqctx.New(id.NewUUIDv7(), authz.RoleManagement, "10.0.0.1", "it")

	a, err := parties.Create(ctx, scopeA, rc, party.KindCustomer, party.Input{GivenName: "Marge", LastName: "Simpson"})
	require.NoError(t, err)

	_, err = parties.Get(ctx, scopeB, party.KindCustomer, a.ID)
	assert.ErrorIs(t, err, party.ErrPartyNotFound)

	_, err = parties.Get(ctx, tenant.Scope{}, party.KindCustomer, a.ID)
	assert.ErrorIs(t, err, tenant.ErrNoTenant)
}

func TestSearch_DisambiguatesAndArchives(t *testing.T) {
	db := openTestDB(t)
	scope := provisionFranchise(t, db)
	ctx := context.Background()
	rc := reqctx.New(id.NewUUIDv7(), authz.RoleManagement, "10.0.0.1", "it")

	parties := party.NewService(NewPartyRepository(db), audit.Discard{})
	first, err := parties.Create(ctx, scope, rc, party.KindCustomer, party.Input{GivenName: "Bart", LastName: "Simpson"})
	require.NoError(t, err)
	second, err := parties.Create(ctx, scope, rc, party.KindCustomer, party.Input{GivenName: "Bart", LastName: "Simpson"})
	require.NoError(t, err)

	searcher := search.NewService(NewSearchRepository(db))
	res, err := searcher.Search(ctx, scope, "bart", listing.Query{})
	require.NoError(t, err)
	require.Equal(t, 2, res.Count)
	assert.NotEqual(t, res.Results[0].Text, res.Results[1].Text)

	archiver := archive.NewService(NewArchiveRepository(db), audit.Discard{})
	require.NoError(t, archiver.Archive(ctx, scope, rc, search.KindCustomer, first.ID))

	res, err = searcher.Search(ctx, scope, "bart", listing.Query{})
	require.NoError(t, err)
	require.Equal(t, 1, res.Count)
	assert.Equal(t, second.ID, res.Results[0].EntityID)

	res, err = searcher.Search(ctx, scope, "bart", listing.Query{IncludeArchived: true})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Count)
}

// TestPurpose: Validates that concurrent completions of one task commit exactly once against a real database.
// Scope: Database Integration Test
// Security: Data integrity under concurrency
// Expected: One racer succeeds; the rest fail with a conflict and the order carries one completion.
// Test Case ID: INT-WO-01
func TestWorkOrder_ConcurrentCompletion(t *testing.T) {
	db := openTestDB(t)
	scope := provisionFranchise(t, db)
	ctx := context.Background()
	rc := reqctx.New(id.NewUUIDv7(), authz.RoleManagement, "10.0.0.1", "it")

	parties := party.NewService(NewPartyRepository(db), audit.Discard{})
	customer, err := parties.Create(ctx, scope, rc, party.KindCustomer, party.Input{GivenName: "Ned", LastName: "Flanders"})
	require.NoError(t, err)
	associate, err := parties.Create(ctx, scope, rc, party.KindAssociate, party.Input{GivenName: "Homer", LastName: "Simpson"})
	require.NoError(t, err)

	orders := workorder.NewService(NewWorkOrderRepository(db), audit.Discard{}, metrics.Discard())
	o, err := orders.Create(ctx, scope, rc, workorder.NewOrder{CustomerID: customer.ID, Description: "Fix the fence", IsOngoing: true})
	require.NoError(t, err)
	o, err = orders.Assign(ctx, scope, rc, o.ID, workorder.Assignment{AssociateID: associate.ID})
	require.NoError(t, err)
	require.NotNil(t, o.LatestPendingTaskID)

	in := workorder.Completion{
		TaskID:         *o.LatestPendingTaskID,
		WasCompleted:   true,
		Reason:         workorder.ReasonWorkCompleted,
		CompletionDate: workorder.NewDate(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)),
		Invoice:        workorder.Invoice{TotalAmount: decimal.RequireFromString("125.50")},
		Comment:        "Fence repaired",
	}

	const racers = 6
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := orders.Complete(ctx, scope, rc, in)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case apperr.ErrorCode(err) == apperr.EConflict:
				conflicts++
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, successes)
	assert.Equal(t, racers-1, conflicts)

	got, err := orders.Get(ctx, scope, o.ID)
	require.NoError(t, err)
	assert.Equal(t, workorder.StateCompletedButUnpaid, got.State)
	assert.True(t, got.TotalAmount.Equal(decimal.RequireFromString("125.50")))
	assert.Nil(t, got.LatestPendingTaskID)

	comments, err := orders.ListComments(ctx, scope, o.ID)
	require.NoError(t, err)
	assert.Len(t, comments, 1)

	g, err := orders.GetOngoing(ctx, scope, *got.OngoingOrderID)
	require.NoError(t, err)
	assert.Nil(t, g.OpenOrderID)
	assert.Equal(t, []int64{o.ID}, g.ClosedOrderIDs)
}
