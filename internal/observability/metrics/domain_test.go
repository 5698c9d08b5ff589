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

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDomain_RegistersCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	d := NewDomain(reg, "workery")

	d.ProvisionAttempts.WithLabelValues("success").Inc()
	d.OrderTransitions.WithLabelValues("PAID").Add(2)

	assert.Equal(t, 1.0, testutil.ToFloat64(d.ProvisionAttempts.WithLabelValues("success")))
	assert.Equal(t, 2.0, testutil.ToFloat64(d.OrderTransitions.WithLabelValues("PAID")))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "workery_provision_attempts_total")
	assert.Contains(t, names, "workery_order_transitions_total")
}
