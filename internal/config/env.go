package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// EnvPrefix prefixes every environment variable the console reads.
const EnvPrefix = "GWCONSOLE_"

// LookupFunc matches os.LookupEnv.
type LookupFunc func(key string) (string, bool)

type envVar struct {
	name  string
	apply func(c *Config, raw string) error
}

func stringVar(name string, field func(c *Config) *string) envVar {
	return envVar{name: name, apply: func(c *Config, raw string) error {
		*field(c) = raw
		return nil
	}}
}

func durationVar(name string, field func(c *Config) *time.Duration) envVar {
	return envVar{name: name, apply: func(c *Config, raw string) error {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return err
		}
		*field(c) = d
		return nil
	}}
}

func intVar(name string, field func(c *Config) *int) envVar {
	return envVar{name: name, apply: func(c *Config, raw string) error {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return err
		}
		*field(c) = n
		return nil
	}}
}

func boolVar(name string, field func(c *Config) *bool) envVar {
	return envVar{name: name, apply: func(c *Config, raw string) error {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return err
		}
		*field(c) = b
		return nil
	}}
}

var envVars = []envVar{
	stringVar("LISTEN_ADDRESS", func(c *Config) *string { return &c.ListenAddress }),
	stringVar("GRPC_ADDRESS", func(c *Config) *string { return &c.GRPCAddress }),
	stringVar("KUBECONFIG", func(c *Config) *string { return &c.Kubeconfig }),
	stringVar("NAMESPACE", func(c *Config) *string { return &c.Namespace }),
	stringVar("MIN_KUBERNETES_VERSION", func(c *Config) *string { return &c.MinKubernetesVersion }),
	stringVar("DOCKER_HOST", func(c *Config) *string { return &c.DockerHost }),
	boolVar("DISABLE_RUNTIME_PROBE", func(c *Config) *bool { return &c.DisableRuntimeProbe }),
	stringVar("NATS_URL", func(c *Config) *string { return &c.NATS.URL }),
	stringVar("NATS_SUBJECT_PREFIX", func(c *Config) *string { return &c.NATS.SubjectPrefix }),
	intVar("NATS_MAX_RECONNECTS", func(c *Config) *int { return &c.NATS.MaxReconnects }),
	boolVar("PRODUCTION", func(c *Config) *bool { return &c.Production }),
	durationVar("REQUEST_TIMEOUT", func(c *Config) *time.Duration { return &c.RequestTimeout }),
	durationVar("HEARTBEAT_INTERVAL", func(c *Config) *time.Duration { return &c.HeartbeatInterval }),
	durationVar("SHUTDOWN_GRACE", func(c *Config) *time.Duration { return &c.ShutdownGrace }),
	durationVar("HEALTH_INTERVAL", func(c *Config) *time.Duration { return &c.HealthInterval }),
	durationVar("PROBE_TIMEOUT", func(c *Config) *time.Duration { return &c.ProbeTimeout }),
	intVar("SUBSCRIBER_BUFFER", func(c *Config) *int { return &c.WebSocket.SubscriberBuffer }),
	{name: "ALLOWED_ORIGINS", apply: func(c *Config, raw string) error {
		c.WebSocket.AllowedOrigins = splitList(raw)
		return nil
	}},
}

// ApplyEnv overlays every GWCONSOLE_* variable that lookup reports as set.
func (c *Config) ApplyEnv(lookup LookupFunc) error {
	for _, v := range envVars {
		raw, ok := lookup(EnvPrefix + v.name)
		if !ok {
			continue
		}
		if err := v.apply(c, strings.TrimSpace(raw)); err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, v.name, err)
		}
	}
	return nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
