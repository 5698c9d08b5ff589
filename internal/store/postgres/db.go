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

// Package postgres implements the repositories on PostgreSQL. Shared tables
// live in the public schema; each franchise owns one schema holding its
// tenant tables, always addressed through an explicit tenant.Scope.
package postgres

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/exaring/otelpgx"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/over55/workery/internal/config"
	"github.com/over55/workery/internal/listing"
	"github.com/over55/workery/internal/tenant"
)

// psql builds statements with pgx placeholders.
var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// querier is satisfied by the pool and by pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type scanner interface {
	Scan(dest ...any) error
}

// DB wraps the PostgreSQL connection pool
type DB struct {
	pool *pgxpool.Pool
}

// New creates a pool from cfg and verifies the connection.
func New(ctx context.Context, cfg config.DatabaseConfig) (*DB, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		poolConfig.MinConns = int32(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.ConnMaxLifetime
		poolConfig.MaxConnLifetimeJitter = cfg.ConnMaxLifetime / 10
	}
	if cfg.Tracing {
		poolConfig.ConnConfig.Tracer = otelpgx.NewTracer()
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if cfg.Tracing {
		if err := otelpgx.RecordStats(pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to record pool stats: %w", err)
		}
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{pool: pool}, nil
}

// Close closes the database connection
func (db *DB) Close() {
	db.pool.Close()
}

// Pool returns the underlying connection pool
func (db *DB) Pool() *pgxpool.Pool {
	return db.pool
}

// Ping checks the database is reachable.
func (db *DB) Ping(ctx context.Context) error {
	return db.pool.Ping(ctx)
}

// inTx runs fn in a transaction, committing when it returns nil.
func (db *DB) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	return pgx.BeginFunc(ctx, db.pool, fn)
}

// schema qualifies tenant table names.
type schema string

func schemaOf(scope tenant.Scope) (schema, error) {
	if scope.IsZero() {
		return "", tenant.ErrNoTenant
	}
	return schema(scope.Schema), nil
}

func (s schema) table(name string) string {
	return pgx.Identifier{string(s), name}.Sanitize()
}

// aliased returns "schema"."name" alias for FROM clauses.
func (s schema) aliased(name, alias string) string {
	return s.table(name) + " " + alias
}

// page runs a listing query and its count with the same filters.
func page[T any](
	ctx context.Context,
	q querier,
	from func(columns ...string) sq.SelectBuilder,
	columns []string,
	lq listing.Query,
	resource any,
	scan func(scanner) (T, error),
) (listing.Page[T], error) {
	out := listing.Page[T]{Results: []T{}, Page: max(lq.Page, 1), PageSize: lq.Limit(resource)}

	countB, err := listing.Filter(from("count(*)"), lq, resource)
	if err != nil {
		return out, err
	}
	rowsB, err := listing.Filter(from(columns...), lq, resource)
	if err != nil {
		return out, err
	}
	if rowsB, err = listing.Order(rowsB, lq, resource); err != nil {
		return out, err
	}

	sql, args, err := countB.ToSql()
	if err != nil {
		return out, fmt.Errorf("failed to build count query: %w", err)
	}
	if err := q.QueryRow(ctx, sql, args...).Scan(&out.Count); err != nil {
		return out, fmt.Errorf("failed to count rows: %w", err)
	}

	sql, args, err = rowsB.ToSql()
	if err != nil {
		return out, fmt.Errorf("failed to build list query: %w", err)
	}
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return out, fmt.Errorf("failed to list rows: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return out, fmt.Errorf("failed to scan row: %w", err)
		}
		out.Results = append(out.Results, item)
	}
	if err := rows.Err(); err != nil {
		return out, fmt.Errorf("rows iteration error: %w", err)
	}
	return out, nil
}

// errRow carries a statement build error to the caller's Scan.
type errRow struct{ err error }

func (r errRow) Scan(...any) error { return r.err }

func queryRow(ctx context.Context, q querier, b sq.Sqlizer) pgx.Row {
	sql, args, err := b.ToSql()
	if err != nil {
		return errRow{fmt.Errorf("failed to build query: %w", err)}
	}
	return q.QueryRow(ctx, sql, args...)
}

func exec(ctx context.Context, q querier, b sq.Sqlizer) (pgconn.CommandTag, error) {
	sql, args, err := b.ToSql()
	if err != nil {
		return pgconn.CommandTag{}, fmt.Errorf("failed to build statement: %w", err)
	}
	return q.Exec(ctx, sql, args...)
}
