// Copyright 2026 The OpenTrusty Authors
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
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// Gate decision results
const (
	ResultAllowed         = "allowed"
	ResultUnauthenticated = "unauthenticated"
	ResultForbidden       = "forbidden"
)

// Config holds metrics configuration
type Config struct {
	Enabled bool
}

// Meter wraps OpenTelemetry meter
type Meter struct {
	meter metric.Meter
}

// New creates a meter from the global provider, or a no-op meter when disabled
func New(_ context.Context, cfg Config, serviceName string) (*Meter, error) {
	if !cfg.Enabled {
		return &Meter{meter: noop.NewMeterProvider().Meter(serviceName)}, nil
	}
	return &Meter{meter: otel.Meter(serviceName)}, nil
}

// GetMeter returns the underlying meter
func (m *Meter) GetMeter() metric.Meter {
	return m.meter
}

// Instruments are the service's counters and histograms
type Instruments struct {
	// GateDecisions counts role gate outcomes by result.
	GateDecisions metric.Int64Counter
	// Logins counts issued tokens by method and outcome.
	Logins metric.Int64Counter
	// RequestDuration records HTTP handler latency in milliseconds.
	RequestDuration metric.Float64Histogram
}

// Instruments registers the service instruments on m
func (m *Meter) Instruments() (*Instruments, error) {
	gate, err := m.CreateCounter("authz_gate_decisions_total", "Role gate decisions by result")
	if err != nil {
		return nil, err
	}
	logins, err := m.CreateCounter("auth_logins_total", "Token issuance attempts by method and outcome")
	if err != nil {
		return nil, err
	}
	duration, err := m.CreateHistogram("http_request_duration_ms", "HTTP request latency", "ms")
	if err != nil {
		return nil, err
	}
	return &Instruments{GateDecisions: gate, Logins: logins, RequestDuration: duration}, nil
}

// RecordGate counts one gate decision
func (i *Instruments) RecordGate(ctx context.Context, result string) {
	if i == nil || i.GateDecisions == nil {
		return
	}
	i.GateDecisions.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

// CreateCounter creates a new counter metric
func (m *Meter) CreateCounter(name, description string) (metric.Int64Counter, error) {
	counter, err := m.meter.Int64Counter(
		name,
		metric.WithDescription(description),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create counter %s: %w", name, err)
	}
	return counter, nil
}

// CreateHistogram creates a new histogram metric
func (m *Meter) CreateHistogram(name, description, unit string) (metric.Float64Histogram, error) {
	histogram, err := m.meter.Float64Histogram(
		name,
		metric.WithDescription(description),
		metric.WithUnit(unit),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create histogram %s: %w", name, err)
	}
	return histogram, nil
}
