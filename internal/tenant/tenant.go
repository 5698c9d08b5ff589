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

// Package tenant models franchises and routes requests to exactly one of them.
//
// Every tenant-scoped data call takes a Scope naming the franchise schema. A
// Scope is only ever built from a franchise that is ACTIVE and not archived.
package tenant

import (
	"slices"
	"strings"
	"time"

	"github.com/over55/workery/internal/apperr"
)

// Status is the provisioning state of a franchise.
type Status string

const (
	StatusPending Status = "PENDING"
	StatusActive  Status = "ACTIVE"
	StatusFailed  Status = "FAILED"
)

// Errors
var (
	ErrFranchiseNotFound = apperr.New(apperr.ENotFound, "tenant not found")
	ErrSchemaTaken       = apperr.New(apperr.EConflict, "schema name already in use")
	ErrReservedSchema    = apperr.New(apperr.EValidation, "schema name is reserved")
	ErrNotRetryable      = apperr.New(apperr.EConflict, "only failed franchises can be retried")
	ErrFranchiseArchived = apperr.New(apperr.EIsolation, "tenant is archived")
	ErrFranchiseNotReady = apperr.New(apperr.EIsolation, "tenant is not active")
	ErrSchemaMismatch    = apperr.New(apperr.EIsolation, "host and schema parameter name different tenants")
	ErrNoTenant          = apperr.New(apperr.EIsolation, "request does not name a tenant")
	ErrCrossTenant       = apperr.New(apperr.EIsolation, "account does not belong to this tenant")
	ErrEnqueueFailed     = apperr.New(apperr.EProvisioning, "failed to schedule provisioning")
)

// reservedSchemas may never be used by a franchise.
var reservedSchemas = []string{"public", "shared", "www", "api", "admin", "information_schema"}

// IsReservedSchema reports whether name collides with a system schema.
func IsReservedSchema(name string) bool {
	return slices.Contains(reservedSchemas, name) || strings.HasPrefix(name, "pg_")
}

// Address is the postal address of a franchise.
type Address struct {
	Country             string `json:"country" validate:"max=127"`
	Region              string `json:"region" validate:"max=127"`
	Locality            string `json:"locality" validate:"max=127"`
	PostalCode          string `json:"postal_code" validate:"max=31"`
	StreetAddress       string `json:"street_address" validate:"max=255"`
	StreetAddressExtra  string `json:"street_address_extra" validate:"max=255"`
	PostOfficeBoxNumber string `json:"post_office_box_number" validate:"max=255"`
}

// Franchise is a tenant organization with its own schema.
type Franchise struct {
	ID                string     `json:"id"`
	SchemaName        string     `json:"schema_name"`
	Name              string     `json:"name"`
	AlternateName     string     `json:"alternate_name,omitempty"`
	Description       string     `json:"description,omitempty"`
	URL               string     `json:"url,omitempty"`
	Timezone          string     `json:"timezone"`
	Address           Address    `json:"address"`
	Status            Status     `json:"status"`
	ProvisionAttempts int        `json:"provision_attempts"`
	LastError         string     `json:"last_error,omitempty"`
	ProvisionedAt     *time.Time `json:"provisioned_at,omitempty"`
	IsArchived        bool       `json:"is_archived"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// Routable reports whether requests may be bound to the franchise.
func (f *Franchise) Routable() error {
	if f.IsArchived {
		return ErrFranchiseArchived
	}
	if f.Status != StatusActive {
		return ErrFranchiseNotReady
	}
	return nil
}

// Scope is the tenant context of a request. The zero value names no tenant.
type Scope struct {
	FranchiseID string
	Schema      string
}

// IsZero reports whether the scope names no tenant.
func (s Scope) IsZero() bool {
	return s.Schema == ""
}

// ScopeOf returns the scope of f.
func ScopeOf(f *Franchise) Scope {
	return Scope{FranchiseID: f.ID, Schema: f.SchemaName}
}
