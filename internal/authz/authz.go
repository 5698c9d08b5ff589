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

// Package authz maps account roles to permissions.
package authz

import (
	"slices"

	"github.com/over55/workery/internal/apperr"
)

// ErrAccessDenied is returned when a role lacks a permission.
var ErrAccessDenied = apperr.New(apperr.EForbidden, "access denied")

// ErrUnknownRole is returned for role names that are not defined.
var ErrUnknownRole = apperr.New(apperr.EValidation, "unknown role")

// ParseRole validates a stored role name.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if _, ok := rolePermissions[r]; !ok {
		return "", ErrUnknownRole
	}
	return r, nil
}

// Permissions returns the permissions granted to r.
func (r Role) Permissions() []string {
	return rolePermissions[r]
}

// HasPermission checks if the role grants a specific permission
func (r Role) HasPermission(permission string) bool {
	for _, p := range rolePermissions[r] {
		if p == "*" || p == permission {
			return true
		}
	}
	return false
}

// Check returns ErrAccessDenied unless r grants every permission listed.
func Check(r Role, permissions ...string) error {
	for _, p := range permissions {
		if !r.HasPermission(p) {
			return ErrAccessDenied
		}
	}
	return nil
}

// AccessControlled is implemented by operations that declare the permissions
// they need.
type AccessControlled interface {
	RequiredPermissions() []string
}

// Authorize checks r against op's declared permissions.
func Authorize(r Role, op AccessControlled) error {
	return Check(r, op.RequiredPermissions()...)
}

// Roles returns every defined role, root first.
func Roles() []Role {
	out := make([]Role, 0, len(rolePermissions))
	for r := range rolePermissions {
		out = append(out, r)
	}
	slices.SortFunc(out, func(a, b Role) int {
		switch {
		case a == RoleRoot:
			return -1
		case b == RoleRoot:
			return 1
		case a < b:
			return -1
		case a > b:
			return 1
		}
		return 0
	})
	return out
}
