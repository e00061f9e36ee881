package health

import (
	"context"
	"strconv"
	"time"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"

	"github.com/anvil-platform/gateway-console/internal/semver"
)

const SystemKubernetes = "kubernetes"

// ClusterConnection is the cluster client the probe shares with the rest of
// the console. gateway.KubeGateway implements it.
type ClusterConnection interface {
	Clientset() kubernetes.Interface
	Reconnect(ctx context.Context) error
}

// ClusterProbe checks the Kubernetes API server.
type ClusterProbe struct {
	conn       ClusterConnection
	minVersion semver.Constraint
}

var _ Probe = &ClusterProbe{}

// NewClusterProbe returns a probe for conn. minVersion is a constraint such as
// ">=1.26.0"; when empty no version requirement is reported.
func NewClusterProbe(conn ClusterConnection, minVersion string) (*ClusterProbe, error) {
	p := &ClusterProbe{conn: conn}
	if minVersion != "" {
		c, err := semver.ParseConstraint(minVersion)
		if err != nil {
			return nil, err
		}
		p.minVersion = c
	}
	return p, nil
}

func (p *ClusterProbe) Name() string { return SystemKubernetes }

// Check asks for the server version and lists at most one namespace. An API
// server older than the minimum version is still reported healthy, with
// versionSupported=false in the details.
func (p *ClusterProbe) Check(ctx context.Context) Result {
	start := time.Now()
	cs := p.conn.Clientset()
	if cs == nil {
		return unhealthy(SystemKubernetes, start, "no cluster client", nil)
	}

	info, err := cs.Discovery().ServerVersion()
	if err != nil {
		return unhealthy(SystemKubernetes, start, "server version request failed", err)
	}
	if _, err := cs.CoreV1().Namespaces().List(ctx, metav1.ListOptions{Limit: 1}); err != nil {
		return unhealthy(SystemKubernetes, start, "namespace list failed", err)
	}

	details := map[string]string{"serverVersion": info.GitVersion}
	msg := "connected"
	if !p.minVersion.IsZero() {
		supported := false
		if v, err := semver.ParseKubeVersion(info.GitVersion); err == nil {
			supported = semver.Satisfies(v, p.minVersion)
		}
		details["minVersion"] = p.minVersion.String()
		details["versionSupported"] = strconv.FormatBool(supported)
		if !supported {
			msg = "connected; server version " + info.GitVersion + " does not satisfy " + p.minVersion.String()
		}
	}
	return Result{
		System:    SystemKubernetes,
		Healthy:   true,
		Message:   msg,
		Details:   details,
		LatencyMS: time.Since(start).Milliseconds(),
		CheckedAt: start,
	}
}

func (p *ClusterProbe) Reconnect(ctx context.Context) error {
	return p.conn.Reconnect(ctx)
}
