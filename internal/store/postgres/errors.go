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
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/over55/workery/internal/apperr"
)

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

// pgError returns the server error behind err, if any.
func pgError(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr, true
	}
	return nil, false
}

// isUnique reports a unique violation, optionally on one named constraint.
func isUnique(err error, constraint string) bool {
	pgErr, ok := pgError(err)
	return ok && pgErr.Code == uniqueViolation && (constraint == "" || pgErr.ConstraintName == constraint)
}

// mapError translates storage errors into the error taxonomy. notFound is
// returned for pgx.ErrNoRows.
func mapError(op string, err error, notFound error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pgx.ErrNoRows):
		return notFound
	}
	if pgErr, ok := pgError(err); ok {
		switch pgErr.Code {
		case uniqueViolation:
			return apperr.Conflict(op, "record already exists")
		case foreignKeyViolation:
			return apperr.Validation(op, map[string]string{pgErr.ConstraintName: "references a missing record"})
		}
	}
	return apperr.Internal(op, err)
}
