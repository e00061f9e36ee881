// Package config loads the console configuration from defaults, an optional
// YAML file, GWCONSOLE_* environment variables and command-line flags, in
// that order of precedence (flags win).
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/anvil-platform/gateway-console/internal/retry"
	"github.com/anvil-platform/gateway-console/internal/semver"
)

type Config struct {
	// ListenAddress serves the HTTP API, the WebSocket endpoint and /metrics.
	ListenAddress string `yaml:"listenAddress"`
	// GRPCAddress serves the gRPC health service. Empty disables it.
	GRPCAddress string `yaml:"grpcAddress"`

	Kubeconfig string `yaml:"kubeconfig"`
	// Namespace scopes the initial-state snapshot. Empty means all namespaces.
	Namespace            string `yaml:"namespace"`
	MinKubernetesVersion string `yaml:"minKubernetesVersion"`
	// DockerHost overrides DOCKER_HOST for the container runtime probe.
	DockerHost string `yaml:"dockerHost"`
	// DisableRuntimeProbe skips the container runtime health check.
	DisableRuntimeProbe bool `yaml:"disableRuntimeProbe"`

	NATS NATSConfig `yaml:"nats"`

	// Production hides diagnostic details from API error responses.
	Production bool `yaml:"production"`

	RequestTimeout    time.Duration `yaml:"requestTimeout"`
	HeartbeatInterval time.Duration `yaml:"heartbeatInterval"`
	ShutdownGrace     time.Duration `yaml:"shutdownGrace"`
	HealthInterval    time.Duration `yaml:"healthInterval"`
	ProbeTimeout      time.Duration `yaml:"probeTimeout"`

	WebSocket WebSocketConfig `yaml:"websocket"`
	Retry     RetryConfig     `yaml:"retry"`
}

type NATSConfig struct {
	// URL enables mirroring of domain events when set.
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subjectPrefix"`
	MaxReconnects int    `yaml:"maxReconnects"`
}

type WebSocketConfig struct {
	// SubscriberBuffer is the outbox size of every subscriber.
	SubscriberBuffer int   `yaml:"subscriberBuffer"`
	MaxMessageBytes  int64 `yaml:"maxMessageBytes"`
	// ControlRate limits subscribe/unsubscribe/ping messages per second per
	// connection; ControlBurst is the bucket size.
	ControlRate    float64  `yaml:"controlRate"`
	ControlBurst   int      `yaml:"controlBurst"`
	AllowedOrigins []string `yaml:"allowedOrigins"`
}

type RetryConfig struct {
	Read      retry.Policy `yaml:"read"`
	Mutation  retry.Policy `yaml:"mutation"`
	Reconnect retry.Policy `yaml:"reconnect"`
}

func Default() Config {
	return Config{
		ListenAddress:        ":8080",
		GRPCAddress:          ":9090",
		MinKubernetesVersion: ">=1.26.0",
		NATS:                 NATSConfig{SubjectPrefix: "gwconsole", MaxReconnects: 60},
		RequestTimeout:       30 * time.Second,
		HeartbeatInterval:    30 * time.Second,
		ShutdownGrace:        2 * time.Second,
		HealthInterval:       30 * time.Second,
		ProbeTimeout:         5 * time.Second,
		WebSocket: WebSocketConfig{
			SubscriberBuffer: 64,
			MaxMessageBytes:  4096,
			ControlRate:      5,
			ControlBurst:     10,
		},
		Retry: RetryConfig{
			Read:      retry.DefaultPolicy(),
			Mutation:  retry.MutationPolicy(),
			Reconnect: retry.DefaultPolicy(),
		},
	}
}

// Load returns the defaults overlaid by the YAML file at path (skipped when
// path is empty) and then by the environment.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %q: %w", path, err)
		}
		if err := cfg.decode(data); err != nil {
			return Config{}, fmt.Errorf("parse config %q: %w", path, err)
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) decode(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error
	if c.ListenAddress == "" {
		errs = append(errs, errors.New("listenAddress must not be empty"))
	}
	durations := []struct {
		name string
		d    time.Duration
	}{
		{"requestTimeout", c.RequestTimeout},
		{"heartbeatInterval", c.HeartbeatInterval},
		{"healthInterval", c.HealthInterval},
		{"probeTimeout", c.ProbeTimeout},
	}
	for _, d := range durations {
		if d.d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be > 0, got %s", d.name, d.d))
		}
	}
	if c.ShutdownGrace < 0 {
		errs = append(errs, fmt.Errorf("shutdownGrace must be >= 0, got %s", c.ShutdownGrace))
	}
	if c.ProbeTimeout > c.HealthInterval {
		errs = append(errs, fmt.Errorf("probeTimeout %s exceeds healthInterval %s", c.ProbeTimeout, c.HealthInterval))
	}
	if c.MinKubernetesVersion != "" {
		if _, err := semver.ParseConstraint(c.MinKubernetesVersion); err != nil {
			errs = append(errs, fmt.Errorf("minKubernetesVersion: %w", err))
		}
	}
	if c.NATS.URL != "" && c.NATS.SubjectPrefix == "" {
		errs = append(errs, errors.New("nats.subjectPrefix must not be empty when nats.url is set"))
	}
	if c.WebSocket.SubscriberBuffer < 1 {
		errs = append(errs, fmt.Errorf("websocket.subscriberBuffer must be >= 1, got %d", c.WebSocket.SubscriberBuffer))
	}
	if c.WebSocket.MaxMessageBytes < 1 {
		errs = append(errs, fmt.Errorf("websocket.maxMessageBytes must be >= 1, got %d", c.WebSocket.MaxMessageBytes))
	}
	if c.WebSocket.ControlRate <= 0 || c.WebSocket.ControlBurst < 1 {
		errs = append(errs, errors.New("websocket.controlRate must be > 0 and websocket.controlBurst >= 1"))
	}
	for name, p := range map[string]retry.Policy{"read": c.Retry.Read, "mutation": c.Retry.Mutation, "reconnect": c.Retry.Reconnect} {
		if err := p.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("retry.%s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}
