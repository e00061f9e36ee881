package health

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/docker/docker/api/types"
	dockerclient "github.com/docker/docker/client"
)

const SystemRuntime = "container-runtime"

// DockerAPI is the subset of the Docker engine client the probe uses.
type DockerAPI interface {
	Ping(ctx context.Context) (types.Ping, error)
	Close() error
}

// DockerFactory builds a new engine client.
type DockerFactory func() (DockerAPI, error)

// DockerEnvFactory builds clients from DOCKER_HOST and related environment
// variables, re-read on every call. A non-empty host overrides DOCKER_HOST.
func DockerEnvFactory(host string) DockerFactory {
	return func() (DockerAPI, error) {
		opts := []dockerclient.Opt{dockerclient.FromEnv, dockerclient.WithAPIVersionNegotiation()}
		if host != "" {
			opts = append(opts, dockerclient.WithHost(host))
		}
		cli, err := dockerclient.NewClientWithOpts(opts...)
		if err != nil {
			return nil, fmt.Errorf("create docker client: %w", err)
		}
		return cli, nil
	}
}

// RuntimeProbe checks the container runtime by pinging the engine API.
type RuntimeProbe struct {
	factory DockerFactory

	mu  sync.Mutex
	cli DockerAPI
}

var _ Probe = &RuntimeProbe{}

// NewRuntimeProbe returns a probe that creates its client lazily on the first
// check.
func NewRuntimeProbe(factory DockerFactory) *RuntimeProbe {
	return &RuntimeProbe{factory: factory}
}

func (p *RuntimeProbe) Name() string { return SystemRuntime }

func (p *RuntimeProbe) client() (DockerAPI, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cli != nil {
		return p.cli, nil
	}
	cli, err := p.factory()
	if err != nil {
		return nil, err
	}
	p.cli = cli
	return cli, nil
}

func (p *RuntimeProbe) Check(ctx context.Context) Result {
	start := time.Now()
	cli, err := p.client()
	if err != nil {
		return unhealthy(SystemRuntime, start, "no runtime client", err)
	}
	ping, err := cli.Ping(ctx)
	if err != nil {
		return unhealthy(SystemRuntime, start, "ping failed", err)
	}
	details := map[string]string{}
	if ping.APIVersion != "" {
		details["apiVersion"] = ping.APIVersion
	}
	if ping.OSType != "" {
		details["osType"] = ping.OSType
	}
	return Result{
		System:    SystemRuntime,
		Healthy:   true,
		Message:   "connected",
		Details:   details,
		LatencyMS: time.Since(start).Milliseconds(),
		CheckedAt: start,
	}
}

// Reconnect builds a new client and installs it once it answers a ping. The
// previous client is closed on success and kept on failure.
func (p *RuntimeProbe) Reconnect(ctx context.Context) error {
	cli, err := p.factory()
	if err != nil {
		return err
	}
	if _, err := cli.Ping(ctx); err != nil {
		_ = cli.Close()
		return fmt.Errorf("ping runtime: %w", err)
	}

	p.mu.Lock()
	old := p.cli
	p.cli = cli
	p.mu.Unlock()
	if old != nil {
		_ = old.Close()
	}
	return nil
}

// Close releases the current client.
func (p *RuntimeProbe) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cli == nil {
		return nil
	}
	err := p.cli.Close()
	p.cli = nil
	return err
}
