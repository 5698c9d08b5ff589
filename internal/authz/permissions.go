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

// Permission names checked by the transport layer.
const (
	PermFranchiseManage = "franchise:manage"
	PermOrderRead       = "order:read"
	PermOrderWrite      = "order:write"
	PermOrderClose      = "order:close"
	PermOrderPay        = "order:pay"
	PermPartyRead       = "party:read"
	PermPartyWrite      = "party:write"
	PermPartyDelete     = "party:delete"
	PermArchive         = "entity:archive"
	PermSearch          = "search:read"
)
