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

package reqctx

import (
	"testing"

	"github.com/over55/workery/internal/authz"
	"github.com/stretchr/testify/assert"
)

func TestNew_ClassifiesSource(t *testing.T) {
	tests := []struct {
		raw    string
		ip     string
		public bool
	}{
		{"203.0.113.9:4431", "203.0.113.9", true},
		{"8.8.8.8, 10.0.0.1", "8.8.8.8", true},
		{"10.0.0.4:80", "10.0.0.4", false},
		{"192.168.1.20", "192.168.1.20", false},
		{"127.0.0.1:9000", "127.0.0.1", false},
		{"[2001:4860::8888]:443", "2001:4860::8888", true},
		{"not-an-ip", "not-an-ip", false},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			rc := New("acc-1", authz.RoleFrontline, tt.raw, "ua")
			assert.Equal(t, tt.ip, rc.SourceIP)
			assert.Equal(t, tt.public, rc.IsPublicSource)
			assert.Equal(t, "acc-1", rc.Actor)
		})
	}
}
