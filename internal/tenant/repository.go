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
	"time"
)

// ListFilter narrows List.
type ListFilter struct {
	IncludeArchived bool
	Status          Status
	Limit           int
	Offset          int
}

// Repository defines the interface for franchise storage in the shared schema
type Repository interface {
	// Create stores a PENDING franchise. Returns ErrSchemaTaken on collision.
	Create(ctx context.Context, f *Franchise) error
	GetByID(ctx context.Context, id string) (*Franchise, error)
	GetBySchema(ctx context.Context, schema string) (*Franchise, error)
	List(ctx context.Context, filter ListFilter) ([]*Franchise, int, error)

	// RecordFailure stores a failed attempt. terminal moves it to FAILED.
	RecordFailure(ctx context.Context, id string, attempts int, lastError string, terminal bool) error

	SetArchived(ctx context.Context, id string, archived bool) error

	// ResetForRetry moves a FAILED franchise, or a PENDING one untouched
	// since staleBefore, back to PENDING with zero attempts. Returns
	// ErrNotRetryable for anything else.
	ResetForRetry(ctx context.Context, id string, staleBefore time.Time) error

	// ClaimStalePending returns up to limit unarchived PENDING franchises
	// untouched since staleBefore and marks them touched, so concurrent
	// sweepers do not claim the same rows.
	ClaimStalePending(ctx context.Context, staleBefore time.Time, limit int) ([]*Franchise, error)
}
