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
	"github.com/prometheus/client_golang/prometheus"
)

// Domain holds the business counters scraped from /metrics.
type Domain struct {
	ProvisionAttempts *prometheus.CounterVec
	OrderTransitions  *prometheus.CounterVec
	TenantResolutions *prometheus.CounterVec
	AccessCodes       *prometheus.CounterVec
	JobDuration       *prometheus.HistogramVec
}

// NewDomain registers the domain collectors on reg. A nil registerer keeps the
// collectors unregistered, which is what tests want.
func NewDomain(reg prometheus.Registerer, prefix string) *Domain {
	if prefix == "" {
		prefix = "workery"
	}
	d := &Domain{
		ProvisionAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "_provision_attempts_total",
			Help: "Franchise provisioning attempts by outcome.",
		}, []string{"outcome"}),
		OrderTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "_order_transitions_total",
			Help: "Work order state transitions by target state.",
		}, []string{"to"}),
		TenantResolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "_tenant_resolutions_total",
			Help: "Tenant routing decisions by outcome.",
		}, []string{"outcome"}),
		AccessCodes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "_access_codes_total",
			Help: "Access code lifecycle events.",
		}, []string{"event"}),
		JobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    prefix + "_job_duration_seconds",
			Help:    "Background job handler duration.",
			Buckets: prometheus.DefBuckets,
		}, []string{"job", "outcome"}),
	}
	if reg != nil {
		reg.MustRegister(d.ProvisionAttempts, d.OrderTransitions, d.TenantResolutions, d.AccessCodes, d.JobDuration)
	}
	return d
}

// Discard returns unregistered collectors.
func Discard() *Domain {
	return NewDomain(nil, "")
}
