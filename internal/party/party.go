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

// Package party manages the people and organizations a franchise works with:
// customers, associates, staff and partners.
package party

import (
	"context"
	"time"

	"github.com/over55/workery/internal/apperr"
	"github.com/over55/workery/internal/authz"
	"github.com/over55/workery/internal/listing"
	"github.com/over55/workery/internal/search"
	"github.com/over55/workery/internal/tenant"
)

// Kind is the role a party plays in a franchise.
type Kind string

const (
	KindCustomer  Kind = "customer"
	KindAssociate Kind = "associate"
	KindStaff     Kind = "staff"
	KindPartner   Kind = "partner"
)

// ParseKind validates a kind name.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindCustomer, KindAssociate, KindStaff, KindPartner:
		return k, nil
	}
	return "", ErrUnknownKind
}

// Errors
var (
	ErrPartyNotFound = apperr.New(apperr.ENotFound, "party not found")
	ErrUnknownKind   = apperr.New(apperr.EValidation, "unknown party kind")
	ErrReferenced    = apperr.New(apperr.EConflict, "party is referenced by work orders or comments; archive it instead")
)

// Party is a customer, associate, staff member or partner.
type Party struct {
	ID               int64     `json:"id"`
	Kind             Kind      `json:"kind"`
	GivenName        string    `json:"given_name"`
	MiddleName       string    `json:"middle_name,omitempty"`
	LastName         string    `json:"last_name"`
	OrganizationName string    `json:"organization_name,omitempty"`
	Email            string    `json:"email,omitempty"`
	Telephone        string    `json:"telephone,omitempty"`
	Locality         string    `json:"locality,omitempty"`
	Region           string    `json:"region,omitempty"`
	PostalCode       string    `json:"postal_code,omitempty"`
	StreetAddress    string    `json:"street_address,omitempty"`
	HowHearID        *int64    `json:"how_hear_id,omitempty"`
	TagIDs           []int64   `json:"tags"`
	TagNames         []string  `json:"tag_names,omitempty"`
	SkillSetIDs      []int64   `json:"skill_sets"`
	AccountID        *string   `json:"account_id,omitempty"`
	IsArchived       bool      `json:"is_archived"`
	CreatedBy        *string   `json:"created_by,omitempty"`
	CreatedFrom      string    `json:"created_from,omitempty"`
	CreatedFromPub   bool      `json:"created_from_is_public"`
	LastModifiedBy   *string   `json:"last_modified_by,omitempty"`
	LastModifiedFrom string    `json:"last_modified_from,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// DisplayName is the name shown in lists and search.
func (p *Party) DisplayName() string {
	if p.OrganizationName != "" && p.GivenName == "" && p.LastName == "" {
		return p.OrganizationName
	}
	return search.Join(p.GivenName, p.MiddleName, p.LastName)
}

// SearchKey implements search.Indexable.
func (p *Party) SearchKey() search.Key {
	return search.Key{Kind: search.Kind(p.Kind), ID: p.ID}
}

// SearchText implements search.Indexable.
func (p *Party) SearchText() string {
	name := p.DisplayName()
	if p.OrganizationName != "" && name != p.OrganizationName {
		name = search.Join(name, "("+p.OrganizationName+")")
	}
	return search.Join(append([]string{name, p.Email, p.Telephone}, p.TagNames...)...)
}

// Archived implements search.Indexable.
func (p *Party) Archived() bool {
	return p.IsArchived
}

// Comment is a note attached to a party.
type Comment struct {
	ID        int64     `json:"id"`
	Text      string    `json:"text"`
	CreatedBy *string   `json:"created_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Resource describes a party listing for authorization and list queries.
type Resource struct {
	Kind Kind
}

func (Resource) MaxPageSize() uint64    { return 100 }
func (Resource) ArchivedColumn() string { return "p.is_archived" }
func (Resource) DefaultSort() string    { return "last_name" }

func (Resource) FilterColumns() map[string]string {
	return map[string]string{"locality": "p.locality", "region": "p.region", "email": "p.email"}
}

func (Resource) SortColumns() map[string]string {
	return map[string]string{
		"id":         "p.id",
		"last_name":  "p.last_name",
		"given_name": "p.given_name",
		"created_at": "p.created_at",
	}
}

func (Resource) RequiredPermissions() []string { return []string{authz.PermPartyRead} }

// Tx is the transactional view of the party store.
type Tx interface {
	search.Store
	Insert(ctx context.Context, p *Party) error
	Update(ctx context.Context, p *Party) error
	GetForUpdate(ctx context.Context, kind Kind, id int64) (*Party, error)
	IsReferenced(ctx context.Context, kind Kind, id int64) (bool, error)
	Delete(ctx context.Context, kind Kind, id int64) error
	AddComment(ctx context.Context, kind Kind, id int64, c *Comment) error

	// TagNames resolves tag ids to names, sorted.
	TagNames(ctx context.Context, ids []int64) ([]string, error)
	// ReferencingOrders returns the work orders naming the party, read after
	// any write made earlier in the transaction.
	ReferencingOrders(ctx context.Context, kind Kind, id int64) ([]search.Indexable, error)
}

// Repository persists parties inside one franchise schema.
type Repository interface {
	WithTx(ctx context.Context, scope tenant.Scope, fn func(ctx context.Context, tx Tx) error) error
	Get(ctx context.Context, scope tenant.Scope, kind Kind, id int64) (*Party, error)
	List(ctx context.Context, scope tenant.Scope, kind Kind, q listing.Query) (listing.Page[*Party], error)
	ListComments(ctx context.Context, scope tenant.Scope, kind Kind, id int64) ([]*Comment, error)
}
