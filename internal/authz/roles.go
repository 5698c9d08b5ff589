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

package authz

// Role is the group an account belongs to. Root is the only role that is not
// bound to a franchise.
type Role string

// -----------------------------------------------------------------------------
// Role Name Constants
// These are the canonical names stored on shared accounts.
// -----------------------------------------------------------------------------

const (
	// RoleRoot manages franchises themselves. Never bound to a franchise.
	RoleRoot Role = "root"

	// RoleExecutive owns a franchise.
	RoleExecutive Role = "executive"

	// RoleManagement runs day to day operations of a franchise.
	RoleManagement Role = "management"

	// RoleFrontline books and follows up work orders.
	RoleFrontline Role = "frontline"

	// RoleAssociate is a worker who performs jobs.
	RoleAssociate Role = "associate"

	// RoleCustomer is a client with read access to their own history.
	RoleCustomer Role = "customer"
)

// ScopeOf reports where a role is valid.
func ScopeOf(r Role) Scope {
	if r == RoleRoot {
		return ScopePlatform
	}
	return ScopeTenant
}

// Scope defines the level at which a role applies
type Scope string

const (
	ScopePlatform Scope = "platform"
	ScopeTenant   Scope = "tenant"
)

// -----------------------------------------------------------------------------
// Role Permission Mappings
// -----------------------------------------------------------------------------

// RootPermissions defines permissions for the root role.
var RootPermissions = []string{
	"*",
}

// ExecutivePermissions defines permissions for franchise owners.
var ExecutivePermissions = []string{
	PermOrderRead,
	PermOrderWrite,
	PermOrderClose,
	PermOrderPay,
	PermPartyRead,
	PermPartyWrite,
	PermPartyDelete,
	PermArchive,
	PermSearch,
}

// ManagementPermissions defines permissions for managers.
var ManagementPermissions = []string{
	PermOrderRead,
	PermOrderWrite,
	PermOrderClose,
	PermOrderPay,
	PermPartyRead,
	PermPartyWrite,
	PermArchive,
	PermSearch,
}

// FrontlinePermissions defines permissions for frontline staff.
var FrontlinePermissions = []string{
	PermOrderRead,
	PermOrderWrite,
	PermOrderClose,
	PermPartyRead,
	PermPartyWrite,
	PermSearch,
}

// AssociatePermissions defines permissions for associates.
var AssociatePermissions = []string{
	PermOrderRead,
	PermOrderClose,
}

// CustomerPermissions defines permissions for customers.
var CustomerPermissions = []string{
	PermOrderRead,
}

var rolePermissions = map[Role][]string{
	RoleRoot:       RootPermissions,
	RoleExecutive:  ExecutivePermissions,
	RoleManagement: ManagementPermissions,
	RoleFrontline:  FrontlinePermissions,
	RoleAssociate:  AssociatePermissions,
	RoleCustomer:   CustomerPermissions,
}
