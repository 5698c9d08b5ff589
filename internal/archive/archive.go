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

// Package archive hides and restores tenant records without deleting them.
package archive

import (
	"context"

	"github.com/over55/workery/internal/apperr"
	"github.com/over55/workery/internal/audit"
	"github.com/over55/workery/internal/reqctx"
	"github.com/over55/workery/internal/search"
	"github.com/over55/workery/internal/tenant"
)

var ErrUnknownKind = apperr.New(apperr.EValidation, "kind cannot be archived")

// Tx flips the archived flag of one record and its search row.
type Tx interface {
	search.Store
	// SetArchived changes only the archived flag and returns NotFound when
	// the record does not exist.
	SetArchived(ctx context.Context, kind search.Kind, id int64, archived bool) error
}

type Repository interface {
	WithTx(ctx context.Context, scope tenant.Scope, fn func(ctx context.Context, tx Tx) error) error
}

type Service struct {
	repo  Repository
	audit audit.Logger
}

func NewService(repo Repository, auditLogger audit.Logger) *Service {
	return &Service{repo: repo, audit: auditLogger}
}

// Archive hides a record from default listings and search. It stays readable
// by id.
func (s *Service) Archive(ctx context.Context, scope tenant.Scope, rc reqctx.RequestContext, kind search.Kind, id int64) error {
	return s.set(ctx, scope, rc, kind, id, true)
}

// Unarchive restores default visibility.
func (s *Service) Unarchive(ctx context.Context, scope tenant.Scope, rc reqctx.RequestContext, kind search.Kind, id int64) error {
	return s.set(ctx, scope, rc, kind, id, false)
}

func (s *Service) set(ctx context.Context, scope tenant.Scope, rc reqctx.RequestContext, kind search.Kind, id int64, archived bool) error {
	const op = "archive.Set"
	if !kind.Valid() {
		return apperr.Wrap(op, ErrUnknownKind)
	}
	key := search.Key{Kind: kind, ID: id}
	err := s.repo.WithTx(ctx, scope, func(ctx context.Context, tx Tx) error {
		if err := tx.SetArchived(ctx, kind, id, archived); err != nil {
			return err
		}
		return tx.SetSearchArchived(ctx, key, archived)
	})
	if err != nil {
		return apperr.Wrap(op, err)
	}

	eventType := audit.TypeEntityArchived
	if !archived {
		eventType = audit.TypeEntityUnarchived
	}
	s.audit.Log(ctx, audit.Event{
		Type:      eventType,
		TenantID:  scope.FranchiseID,
		ActorID:   rc.Actor,
		Resource:  key.String(),
		IPAddress: rc.SourceIP,
		UserAgent: rc.UserAgent,
		Metadata:  map[string]any{audit.AttrKind: string(kind)},
	})
	return nil
}
