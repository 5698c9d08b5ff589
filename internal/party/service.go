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

package party

import (
	"context"
	"strings"
	"time"

	"github.com/over55/workery/internal/apperr"
	"github.com/over55/workery/internal/audit"
	"github.com/over55/workery/internal/listing"
	"github.com/over55/workery/internal/reqctx"
	"github.com/over55/workery/internal/search"
	"github.com/over55/workery/internal/tenant"
	"github.com/over55/workery/internal/validate"
)

// Input is the writable part of a party.
type Input struct {
	GivenName        string  `json:"given_name" validate:"required_without=OrganizationName,max=63"`
	MiddleName       string  `json:"middle_name" validate:"max=63"`
	LastName         string  `json:"last_name" validate:"required_without=OrganizationName,max=63"`
	OrganizationName string  `json:"organization_name" validate:"max=255"`
	Email            string  `json:"email" validate:"omitempty,email,max=254"`
	Telephone        string  `json:"telephone" validate:"max=31"`
	Locality         string  `json:"locality" validate:"max=127"`
	Region           string  `json:"region" validate:"max=127"`
	PostalCode       string  `json:"postal_code" validate:"max=31"`
	StreetAddress    string  `json:"street_address" validate:"max=255"`
	HowHearID        *int64  `json:"how_hear_id" validate:"omitempty,gt=0"`
	TagIDs           []int64 `json:"tags" validate:"dive,gt=0"`
	SkillSetIDs      []int64 `json:"skill_sets" validate:"dive,gt=0"`
	// AccountID links an associate or customer to the login that acts for them.
	AccountID *string `json:"account_id" validate:"omitempty,uuid"`
}

func (in Input) apply(p *Party) {
	p.GivenName = strings.TrimSpace(in.GivenName)
	p.MiddleName = strings.TrimSpace(in.MiddleName)
	p.LastName = strings.TrimSpace(in.LastName)
	p.OrganizationName = strings.TrimSpace(in.OrganizationName)
	p.Email = strings.ToLower(strings.TrimSpace(in.Email))
	p.Telephone = strings.TrimSpace(in.Telephone)
	p.Locality = in.Locality
	p.Region = in.Region
	p.PostalCode = in.PostalCode
	p.StreetAddress = in.StreetAddress
	p.HowHearID = in.HowHearID
	p.TagIDs = in.TagIDs
	p.SkillSetIDs = in.SkillSetIDs
	p.AccountID = in.AccountID
	if p.Kind != KindAssociate {
		p.SkillSetIDs = nil
	}
}

// Service provides party business logic.
type Service struct {
	repo  Repository
	audit audit.Logger
	now   func() time.Time
}

// NewService creates a party service.
func NewService(repo Repository, auditLogger audit.Logger) *Service {
	return &Service{repo: repo, audit: auditLogger, now: time.Now}
}

// Create stores a new party and indexes it in the same transaction.
func (s *Service) Create(ctx context.Context, scope tenant.Scope, rc reqctx.RequestContext, kind Kind, in Input) (*Party, error) {
	const op = "party.Create"
	if _, err := ParseKind(string(kind)); err != nil {
		return nil, apperr.Wrap(op, err)
	}
	if err := validate.Struct(op, in); err != nil {
		return nil, err
	}

	now := s.now()
	p := &Party{
		Kind:             kind,
		CreatedFrom:      rc.SourceIP,
		CreatedFromPub:   rc.IsPublicSource,
		LastModifiedFrom: rc.SourceIP,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if rc.Actor != "" {
		p.CreatedBy = &rc.Actor
		p.LastModifiedBy = &rc.Actor
	}
	in.apply(p)

	err := s.repo.WithTx(ctx, scope, func(ctx context.Context, tx Tx) error {
		if err := tx.Insert(ctx, p); err != nil {
			return err
		}
		return reindex(ctx, tx, p, false)
	})
	if err != nil {
		return nil, apperr.Wrap(op, err)
	}
	return p, nil
}

// Update replaces the writable fields of a party and reindexes it.
func (s *Service) Update(ctx context.Context, scope tenant.Scope, rc reqctx.RequestContext, kind Kind, id int64, in Input) (*Party, error) {
	const op = "party.Update"
	if err := validate.Struct(op, in); err != nil {
		return nil, err
	}

	var p *Party
	err := s.repo.WithTx(ctx, scope, func(ctx context.Context, tx Tx) error {
		var err error
		if p, err = tx.GetForUpdate(ctx, kind, id); err != nil {
			return err
		}
		in.apply(p)
		if rc.Actor != "" {
			p.LastModifiedBy = &rc.Actor
		}
		p.LastModifiedFrom = rc.SourceIP
		p.UpdatedAt = s.now()
		if err := tx.Update(ctx, p); err != nil {
			return err
		}
		return reindex(ctx, tx, p, true)
	})
	if err != nil {
		return nil, apperr.Wrap(op, err)
	}
	return p, nil
}

// reindex writes the search row of p. With orders set, the rows of the work
// orders that display the party's name are rewritten too.
func reindex(ctx context.Context, tx Tx, p *Party, orders bool) error {
	names, err := tx.TagNames(ctx, p.TagIDs)
	if err != nil {
		return err
	}
	p.TagNames = names
	if _, err := search.Reindex(ctx, tx, p); err != nil {
		return err
	}
	if !orders || (p.Kind != KindCustomer && p.Kind != KindAssociate) {
		return nil
	}
	referencing, err := tx.ReferencingOrders(ctx, p.Kind, p.ID)
	if err != nil {
		return err
	}
	for _, o := range referencing {
		if _, err := search.Reindex(ctx, tx, o); err != nil {
			return err
		}
	}
	return nil
}

// Get returns a party by id. Archived parties stay readable.
func (s *Service) Get(ctx context.Context, scope tenant.Scope, kind Kind, id int64) (*Party, error) {
	p, err := s.repo.Get(ctx, scope, kind, id)
	if err != nil {
		return nil, apperr.Wrap("party.Get", err)
	}
	return p, nil
}

// List lists parties of one kind.
func (s *Service) List(ctx context.Context, scope tenant.Scope, kind Kind, q listing.Query) (listing.Page[*Party], error) {
	page, err := s.repo.List(ctx, scope, kind, q)
	if err != nil {
		return page, apperr.Wrap("party.List", err)
	}
	return page, nil
}

// Delete removes a party that has never been referenced. Its search row goes
// with it. Referenced parties must be archived instead.
func (s *Service) Delete(ctx context.Context, scope tenant.Scope, rc reqctx.RequestContext, kind Kind, id int64) error {
	const op = "party.Delete"
	err := s.repo.WithTx(ctx, scope, func(ctx context.Context, tx Tx) error {
		if _, err := tx.GetForUpdate(ctx, kind, id); err != nil {
			return err
		}
		referenced, err := tx.IsReferenced(ctx, kind, id)
		if err != nil {
			return err
		}
		if referenced {
			return ErrReferenced
		}
		return tx.Delete(ctx, kind, id)
	})
	if err != nil {
		return apperr.Wrap(op, err)
	}

	s.audit.Log(ctx, audit.Event{
		Type:      audit.TypeEntityDeleted,
		TenantID:  scope.FranchiseID,
		ActorID:   rc.Actor,
		Resource:  string(kind),
		IPAddress: rc.SourceIP,
		Metadata:  map[string]any{audit.AttrKind: string(kind), "id": id},
	})
	return nil
}

// AddComment attaches a note to a party.
func (s *Service) AddComment(ctx context.Context, scope tenant.Scope, rc reqctx.RequestContext, kind Kind, id int64, text string) (*Comment, error) {
	const op = "party.AddComment"
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperr.Validation(op, map[string]string{"text": "required"})
	}
	c := &Comment{Text: text, CreatedAt: s.now()}
	if rc.Actor != "" {
		c.CreatedBy = &rc.Actor
	}
	err := s.repo.WithTx(ctx, scope, func(ctx context.Context, tx Tx) error {
		if _, err := tx.GetForUpdate(ctx, kind, id); err != nil {
			return err
		}
		return tx.AddComment(ctx, kind, id, c)
	})
	if err != nil {
		return nil, apperr.Wrap(op, err)
	}
	return c, nil
}

// ListComments returns a party's notes, oldest first.
func (s *Service) ListComments(ctx context.Context, scope tenant.Scope, kind Kind, id int64) ([]*Comment, error) {
	out, err := s.repo.ListComments(ctx, scope, kind, id)
	if err != nil {
		return nil, apperr.Wrap("party.ListComments", err)
	}
	return out, nil
}
