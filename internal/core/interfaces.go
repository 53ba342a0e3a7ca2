package core

import (
	"context"
	"time"
)

// MetricsCollector records API telemetry. Endpoint is the matched route
// pattern, not the raw path, so that metric cardinality stays bounded.
type MetricsCollector interface {
	RecordLatency(ctx context.Context, endpoint string, d time.Duration)
}

// HealthProbe defines the interface for a subsystem health check.
// Each probe represents a dependency (catalog, database) that must be
// operational for the service to function correctly.
type HealthProbe interface {
	// Name returns a human-readable identifier for the probe (e.g., "catalog", "database").
	Name() string

	// Check performs the health check against the subsystem.
	// It should respect the context deadline.
	Check(ctx context.Context) error
}

// ProbeFunc adapts a function to HealthProbe.
type ProbeFunc struct {
	ProbeName string
	Fn        func(ctx context.Context) error
}

// Name implements HealthProbe.
func (p ProbeFunc) Name() string { return p.ProbeName }

// Check implements HealthProbe.
func (p ProbeFunc) Check(ctx context.Context) error { return p.Fn(ctx) }
