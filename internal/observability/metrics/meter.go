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
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

type Config struct {
	Enabled bool
}

// Meter hands out OTel instruments for background components. Request and
// domain counters live in the Prometheus registry instead (see Domain).
type Meter struct {
	meter metric.Meter
}

func New(_ context.Context, cfg Config, serviceName string) (*Meter, error) {
	name := serviceName
	if !cfg.Enabled || name == "" {
		name = "noop"
	}
	return &Meter{meter: otel.Meter(name)}, nil
}

// Gauge returns an up/down counter tracking how many units of work are in flight.
func (m *Meter) Gauge(name, description string) (metric.Int64UpDownCounter, error) {
	g, err := m.meter.Int64UpDownCounter(name, metric.WithDescription(description), metric.WithUnit("{job}"))
	if err != nil {
		return nil, fmt.Errorf("gauge %s: %w", name, err)
	}
	return g, nil
}

// Latency returns a seconds histogram.
func (m *Meter) Latency(name, description string) (metric.Float64Histogram, error) {
	h, err := m.meter.Float64Histogram(name, metric.WithDescription(description), metric.WithUnit("s"))
	if err != nil {
		return nil, fmt.Errorf("histogram %s: %w", name, err)
	}
	return h, nil
}
