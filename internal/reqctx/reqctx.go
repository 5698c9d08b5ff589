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

// Package reqctx carries who is acting and from where, passed explicitly to
// every mutating domain operation.
package reqctx

import (
	"net"
	"net/netip"
	"strings"

	"github.com/over55/workery/internal/authz"
)

// RequestContext describes the origin of a mutation.
type RequestContext struct {
	Actor          string // account id, empty for system jobs
	Role           authz.Role
	SourceIP       string
	IsPublicSource bool
	UserAgent      string
}

// System is the context used by background jobs.
var System = RequestContext{Role: authz.RoleRoot, SourceIP: "127.0.0.1"}

// New builds a RequestContext, classifying the source address.
func New(actor string, role authz.Role, sourceIP, userAgent string) RequestContext {
	ip := NormalizeIP(sourceIP)
	return RequestContext{
		Actor:          actor,
		Role:           role,
		SourceIP:       ip,
		IsPublicSource: IsPublic(ip),
		UserAgent:      userAgent,
	}
}

// NormalizeIP strips ports and forwarding chains, keeping the first address.
func NormalizeIP(raw string) string {
	raw = strings.TrimSpace(raw)
	if i := strings.IndexByte(raw, ','); i >= 0 {
		raw = strings.TrimSpace(raw[:i])
	}
	if host, _, err := net.SplitHostPort(raw); err == nil {
		raw = host
	}
	return raw
}

// IsPublic reports whether ip is a globally routable unicast address.
func IsPublic(ip string) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	return addr.IsGlobalUnicast() && !addr.IsPrivate()
}
