package health

import (
	"context"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"golang.org/x/sync/errgroup"
	"k8s.io/utils/clock"

	"github.com/anvil-platform/gateway-console/internal/apperr"
	"github.com/anvil-platform/gateway-console/internal/retry"
)

// Options tune a Monitor. Zero values fall back to the defaults below.
type Options struct {
	// Interval between checks in Run.
	Interval time.Duration
	// ProbeTimeout bounds a single probe check.
	ProbeTimeout time.Duration
	// ReconnectPolicy is applied to reconnects started by Run.
	ReconnectPolicy retry.Policy
	Clock           clock.WithTicker
}

const (
	DefaultInterval     = 30 * time.Second
	DefaultProbeTimeout = 5 * time.Second
)

// Monitor tracks the health and connection state of a fixed set of probes.
type Monitor struct {
	probes   []Probe
	byName   map[string]Probe
	executor *retry.Executor
	opts     Options
	log      logr.Logger

	mu        sync.Mutex
	states    map[string]State
	last      *Report
	observers []Observer
}

// NewMonitor returns a monitor over probes. Every system starts Disconnected
// until its first successful check or reconnect.
func NewMonitor(log logr.Logger, executor *retry.Executor, opts Options, probes ...Probe) *Monitor {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = DefaultProbeTimeout
	}
	if opts.ReconnectPolicy == (retry.Policy{}) {
		opts.ReconnectPolicy = retry.DefaultPolicy()
	}
	if opts.Clock == nil {
		opts.Clock = clock.RealClock{}
	}
	m := &Monitor{
		probes:   probes,
		byName:   make(map[string]Probe, len(probes)),
		executor: executor,
		opts:     opts,
		log:      log,
		states:   make(map[string]State, len(probes)),
	}
	for _, p := range probes {
		m.byName[p.Name()] = p
		m.states[p.Name()] = StateDisconnected
		backendState.WithLabelValues(p.Name()).Set(stateValue(StateDisconnected))
	}
	return m
}

// AddObserver registers o for health transitions observed by Run.
func (m *Monitor) AddObserver(o Observer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observers = append(m.observers, o)
}

// Systems lists the monitored system names in registration order.
func (m *Monitor) Systems() []string {
	out := make([]string, 0, len(m.probes))
	for _, p := range m.probes {
		out = append(out, p.Name())
	}
	return out
}

// State returns the connection state of system.
func (m *Monitor) State(system string) State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.states[system]
}

// CheckHealth probes every system concurrently and returns a fresh report.
// Results are never cached.
func (m *Monitor) CheckHealth(ctx context.Context) Report {
	results := make([]Result, len(m.probes))
	var g errgroup.Group
	for i, p := range m.probes {
		g.Go(func() error {
			pctx, cancel := context.WithTimeout(ctx, m.opts.ProbeTimeout)
			defer cancel()
			r := p.Check(pctx)
			r.System = p.Name()
			results[i] = r
			return nil
		})
	}
	_ = g.Wait()

	report := Report{Status: Aggregate(results), CheckedAt: m.opts.Clock.Now()}
	m.mu.Lock()
	for _, r := range results {
		state := m.states[r.System]
		switch {
		case state == StateConnecting:
		case r.Healthy:
			state = StateConnected
		default:
			state = StateDisconnected
		}
		m.states[r.System] = state
		report.Systems = append(report.Systems, SystemReport{Result: r, State: state})
	}
	m.mu.Unlock()

	for _, s := range report.Systems {
		backendUp.WithLabelValues(s.System).Set(boolValue(s.Healthy))
		backendState.WithLabelValues(s.System).Set(stateValue(s.State))
		backendCheckDuration.WithLabelValues(s.System).Observe(float64(s.LatencyMS) / 1000)
	}
	return report
}

// Reconnect rebuilds the client of system. A failed attempt leaves the system
// Disconnected; it is not retried here.
func (m *Monitor) Reconnect(ctx context.Context, system string) error {
	p, ok := m.byName[system]
	if !ok {
		return apperr.NotFound("unknown system %q", system)
	}
	logger := m.log.WithValues("system", system)

	m.setState(system, StateConnecting)
	logger.Info("reconnecting")
	if err := p.Reconnect(ctx); err != nil {
		m.setState(system, StateDisconnected)
		reconnectTotal.WithLabelValues(system, "failure").Inc()
		logger.Error(err, "reconnect failed")
		return err
	}
	m.setState(system, StateConnected)
	reconnectTotal.WithLabelValues(system, "success").Inc()
	logger.Info("reconnected")
	return nil
}

func (m *Monitor) setState(system string, s State) {
	m.mu.Lock()
	m.states[system] = s
	m.mu.Unlock()
	backendState.WithLabelValues(system).Set(stateValue(s))
}

// Run checks health every Interval until ctx is done. Transitions are passed
// to observers, and unhealthy systems are reconnected under the reconnect
// policy.
func (m *Monitor) Run(ctx context.Context) error {
	logger := m.log.WithValues("interval", m.opts.Interval)
	logger.Info("starting health monitor")

	m.tick(ctx)
	ticker := m.opts.Clock.NewTicker(m.opts.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Info("stopping health monitor")
			return nil
		case <-ticker.C():
			m.tick(ctx)
		}
	}
}

func (m *Monitor) tick(ctx context.Context) {
	report := m.CheckHealth(ctx)

	m.mu.Lock()
	previous := m.last
	m.last = &report
	observers := append([]Observer(nil), m.observers...)
	m.mu.Unlock()

	if previous == nil || changed(*previous, report) {
		var prev Report
		if previous != nil {
			prev = *previous
		}
		m.log.Info("health changed", "status", report.Status)
		for _, o := range observers {
			o.HealthChanged(ctx, prev, report)
		}
	}

	for _, s := range report.Systems {
		if s.Healthy {
			continue
		}
		name := s.System
		err := retry.Run(ctx, m.executor, "reconnect-"+name, m.opts.ReconnectPolicy, nil, func(ctx context.Context) error {
			return m.Reconnect(ctx, name)
		})
		if err != nil {
			m.log.V(1).Info("system still unavailable", "system", name, "error", err.Error())
		}
	}
}

// Last returns the report of the most recent Run iteration.
func (m *Monitor) Last() (Report, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.last == nil {
		return Report{}, false
	}
	return *m.last, true
}

func changed(a, b Report) bool {
	if a.Status != b.Status || len(a.Systems) != len(b.Systems) {
		return true
	}
	for i := range a.Systems {
		if a.Systems[i].System != b.Systems[i].System || a.Systems[i].Healthy != b.Systems[i].Healthy {
			return true
		}
	}
	return false
}
