package config

import (
	"fmt"

	"github.com/spf13/pflag"
)

// BindFlags registers the command-line overrides on fs, writing into c.
func (c *Config) BindFlags(fs *pflag.FlagSet) {
	fs.StringVar(&c.ListenAddress, "listen-address", c.ListenAddress, "Address the HTTP API, WebSocket endpoint and metrics bind to.")
	fs.StringVar(&c.GRPCAddress, "grpc-address", c.GRPCAddress, "Address of the gRPC health service. Empty disables it.")
	fs.StringVar(&c.Kubeconfig, "kubeconfig", c.Kubeconfig, "Path to a kubeconfig. Defaults to in-cluster or KUBECONFIG.")
	fs.StringVar(&c.Namespace, "namespace", c.Namespace, "Namespace the initial-state snapshot is scoped to. Empty means all.")
	fs.StringVar(&c.MinKubernetesVersion, "min-kubernetes-version", c.MinKubernetesVersion, "Version constraint the API server is expected to satisfy.")
	fs.StringVar(&c.DockerHost, "docker-host", c.DockerHost, "Container runtime endpoint. Defaults to DOCKER_HOST.")
	fs.BoolVar(&c.DisableRuntimeProbe, "disable-runtime-probe", c.DisableRuntimeProbe, "Skip the container runtime health check.")
	fs.StringVar(&c.NATS.URL, "nats-url", c.NATS.URL, "Mirror domain events to this NATS server when set.")
	fs.StringVar(&c.NATS.SubjectPrefix, "nats-subject-prefix", c.NATS.SubjectPrefix, "Subject prefix for mirrored events.")
	fs.BoolVar(&c.Production, "production", c.Production, "Hide diagnostic details from error responses.")
	fs.DurationVar(&c.RequestTimeout, "request-timeout", c.RequestTimeout, "Timeout for a single API request against the cluster.")
	fs.DurationVar(&c.HeartbeatInterval, "heartbeat-interval", c.HeartbeatInterval, "Interval between heartbeat events.")
	fs.DurationVar(&c.ShutdownGrace, "shutdown-grace", c.ShutdownGrace, "Time subscribers get to drain the shutdown notice.")
	fs.DurationVar(&c.HealthInterval, "health-interval", c.HealthInterval, "Interval between backend health checks.")
	fs.DurationVar(&c.ProbeTimeout, "probe-timeout", c.ProbeTimeout, "Timeout of a single backend probe.")
	fs.IntVar(&c.WebSocket.SubscriberBuffer, "subscriber-buffer", c.WebSocket.SubscriberBuffer, "Events buffered per subscriber before drops.")
}

// ApplyFlags copies the flags explicitly set on fs onto c, so they win over
// file and environment values. fs must have been bound with BindFlags.
func (c *Config) ApplyFlags(fs *pflag.FlagSet) error {
	target := pflag.NewFlagSet("config", pflag.ContinueOnError)
	c.BindFlags(target)
	var err error
	fs.Visit(func(f *pflag.Flag) {
		if err != nil || target.Lookup(f.Name) == nil {
			return
		}
		if setErr := target.Set(f.Name, f.Value.String()); setErr != nil {
			err = fmt.Errorf("flag --%s: %w", f.Name, setErr)
		}
	})
	return err
}
