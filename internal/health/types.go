// Package health checks connectivity to the systems the console depends on
// and drives reconnection when they fail.
package health

import (
	"context"
	"time"
)

// State is the connection state of one backing system.
type State string

const (
	StateDisconnected State = "Disconnected"
	StateConnecting   State = "Connecting"
	StateConnected    State = "Connected"
)

// Status is the aggregate health across all backing systems.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// Result is the outcome of one probe check.
type Result struct {
	System    string            `json:"system"`
	Healthy   bool              `json:"healthy"`
	Message   string            `json:"message,omitempty"`
	Details   map[string]string `json:"details,omitempty"`
	LatencyMS int64             `json:"latencyMs"`
	CheckedAt time.Time         `json:"checkedAt"`
}

// SystemReport is a probe result together with the system's connection state.
type SystemReport struct {
	Result
	State State `json:"state"`
}

// Report is the health snapshot returned by Monitor.CheckHealth.
type Report struct {
	Status    Status         `json:"status"`
	Systems   []SystemReport `json:"systems"`
	CheckedAt time.Time      `json:"checkedAt"`
}

func (r Report) Healthy() bool {
	return r.Status == StatusHealthy
}

// System returns the report for the named system.
func (r Report) System(name string) (SystemReport, bool) {
	for _, s := range r.Systems {
		if s.System == name {
			return s, true
		}
	}
	return SystemReport{}, false
}

// Probe checks and reconnects one backing system.
type Probe interface {
	Name() string
	// Check issues a lightweight read against the system. It never fails;
	// problems are reported as an unhealthy Result.
	Check(ctx context.Context) Result
	// Reconnect discards the current client and builds a new one from
	// freshly loaded configuration.
	Reconnect(ctx context.Context) error
}

// Observer is notified when the aggregate status or the health of any system
// changes.
type Observer interface {
	HealthChanged(ctx context.Context, previous, current Report)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, previous, current Report)

func (f ObserverFunc) HealthChanged(ctx context.Context, previous, current Report) {
	f(ctx, previous, current)
}

// Aggregate folds per-system results into an overall status: every system
// unhealthy is unhealthy, some unhealthy is degraded, otherwise healthy.
// Zero systems is healthy.
func Aggregate(results []Result) Status {
	unhealthy := 0
	for _, r := range results {
		if !r.Healthy {
			unhealthy++
		}
	}
	switch {
	case unhealthy == 0:
		return StatusHealthy
	case unhealthy == len(results):
		return StatusUnhealthy
	default:
		return StatusDegraded
	}
}

func unhealthy(system string, start time.Time, format string, err error) Result {
	msg := format
	if err != nil {
		msg = format + ": " + err.Error()
	}
	return Result{
		System:    system,
		Healthy:   false,
		Message:   msg,
		LatencyMS: time.Since(start).Milliseconds(),
		CheckedAt: start,
	}
}
