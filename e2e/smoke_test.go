package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

// gatewayAPIManifest installs the standard-channel Gateway API CRDs.
const gatewayAPIManifest = "https://github.com/kubernetes-sigs/gateway-api/releases/download/v1.2.0/standard-install.yaml"

func TestE2ESmoke_Console(t *testing.T) {
	if os.Getenv("GWCONSOLE_E2E") == "" {
		t.Skip("set GWCONSOLE_E2E=1 to run Kind-based smoke test")
	}

	if _, err := exec.LookPath("docker"); err != nil {
		t.Skip("docker not found in PATH")
	}
	if _, err := exec.LookPath("kubectl"); err != nil {
		t.Skip("kubectl not found in PATH")
	}

	repoRoot := findRepoRoot(t)
	kindBin := "kind"
	if _, err := exec.LookPath("kind"); err != nil {
		fallback := filepath.Join(repoRoot, ".tools", "kind")
		if info, statErr := os.Stat(fallback); statErr == nil && info.Mode()&0o111 != 0 {
			kindBin = fallback
		} else {
			t.Skip("kind not found in PATH (and .tools/kind not usable)")
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	clusterName := fmt.Sprintf("gwconsole-e2e-%d", time.Now().UnixNano())
	t.Logf("cluster=%s", clusterName)

	// Always attempt cleanup.
	t.Cleanup(func() {
		_ = runAllow(ctx, repoRoot, nil, kindBin, "delete", "cluster", "--name", clusterName)
	})

	runOrFail(t, ctx, repoRoot, nil, kindBin, "create", "cluster", "--name", clusterName, "--wait", "60s")

	kubeconfigPath := filepath.Join(t.TempDir(), "kubeconfig")
	kubeconfig := runOrFail(t, ctx, repoRoot, nil, kindBin, "get", "kubeconfig", "--name", clusterName)
	if err := os.WriteFile(kubeconfigPath, []byte(kubeconfig), 0o600); err != nil {
		t.Fatalf("write kubeconfig: %v", err)
	}
	kubeEnv := append(os.Environ(), "KUBECONFIG="+kubeconfigPath)

	runOrFail(t, ctx, repoRoot, kubeEnv, "kubectl", "apply", "-f", gatewayAPIManifest)
	runOrFail(t, ctx, repoRoot, kubeEnv, "kubectl", "wait", "--for=condition=Established", "crd/gateways.gateway.networking.k8s.io", "crd/httproutes.gateway.networking.k8s.io", "--timeout=60s")

	// Start the console out-of-cluster against the kind cluster.
	consoleCtx, consoleCancel := context.WithCancel(ctx)
	defer consoleCancel()

	port := pickFreePort(t)
	consoleCmd := exec.CommandContext(consoleCtx, "go", "run", ".", "serve",
		fmt.Sprintf("--listen-address=127.0.0.1:%d", port),
		"--grpc-address=",
		"--disable-runtime-probe",
		"--health-interval=5s",
		"--probe-timeout=2s",
	)
	consoleCmd.Dir = repoRoot
	consoleCmd.Env = append(kubeEnv, "GWCONSOLE_KUBECONFIG="+kubeconfigPath)
	var consoleOut bytes.Buffer
	consoleCmd.Stdout = &consoleOut
	consoleCmd.Stderr = &consoleOut
	if err := consoleCmd.Start(); err != nil {
		t.Fatalf("start console: %v", err)
	}
	t.Cleanup(func() {
		consoleCancel()
		_ = consoleCmd.Wait()
	})

	base := fmt.Sprintf("http://127.0.0.1:%d", port)
	httpClient := &http.Client{Timeout: 10 * time.Second}

	// Wait until the console reports the cluster healthy.
	deadline := time.Now().Add(3 * time.Minute)
	for {
		if time.Now().After(deadline) {
			t.Logf("console output:\n%s", consoleOut.String())
			t.Fatalf("timeout waiting for %s/api/v1/health", base)
		}
		resp, err := httpClient.Get(base + "/api/v1/health")
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				break
			}
		}
		time.Sleep(3 * time.Second)
	}

	gateway := map[string]any{
		"metadata": map[string]any{"name": "smoke", "namespace": "gwconsole-smoke"},
		"spec": map[string]any{
			"gatewayClassName": "smoke",
			"listeners":        []any{map[string]any{"name": "http", "port": 80, "protocol": "HTTP"}},
		},
	}
	route := map[string]any{
		"metadata": map[string]any{"name": "web", "namespace": "gwconsole-smoke"},
		"spec": map[string]any{
			"parentRefs": []any{map[string]any{"name": "smoke"}},
			"hostnames":  []any{"smoke.example.com"},
		},
	}
	postOrFail(t, httpClient, base+"/api/v1/gateways", gateway, http.StatusCreated)
	postOrFail(t, httpClient, base+"/api/v1/httproutes", route, http.StatusCreated)
	postOrFail(t, httpClient, base+"/api/v1/gateways", gateway, http.StatusConflict)

	resp, err := httpClient.Get(base + "/api/v1/topology?namespace=gwconsole-smoke")
	if err != nil {
		t.Fatalf("get topology: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()

	var graph topology
	if err := json.Unmarshal(body, &graph); err != nil {
		t.Fatalf("decode topology: %v\n%s", err, body)
	}
	if len(graph.Gateways) != 1 || len(graph.Gateways[0].Routes) != 1 {
		t.Fatalf("expected one gateway with one attached route, got %s", body)
	}

	runOrFail(t, ctx, repoRoot, kubeEnv, "kubectl", "-n", "gwconsole-smoke", "get", "gateway/smoke", "httproute/web")
}

type topology struct {
	Gateways []struct {
		Routes []json.RawMessage `json:"routes"`
	} `json:"gateways"`
}

func postOrFail(t *testing.T, c *http.Client, url string, body any, want int) {
	t.Helper()

	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("encode body: %v", err)
	}
	resp, err := c.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("post %s: %v", url, err)
	}
	out, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if resp.StatusCode != want {
		t.Fatalf("post %s: status %d, want %d: %s", url, resp.StatusCode, want, out)
	}
}

func pickFreePort(t *testing.T) int {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen free port: %v", err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func findRepoRoot(t *testing.T) string {
	t.Helper()

	_, file, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("runtime.Caller failed")
	}
	// e2e/smoke_test.go -> repo root
	return filepath.Clean(filepath.Join(filepath.Dir(file), ".."))
}

func runOrFail(t *testing.T, ctx context.Context, dir string, env []string, name string, args ...string) string {
	t.Helper()

	out, err := runOut(ctx, dir, env, name, args...)
	if err != nil {
		t.Fatalf("%s %s failed: %v\n%s", name, strings.Join(args, " "), err, out)
	}
	return out
}

func runAllow(ctx context.Context, dir string, env []string, name string, args ...string) error {
	_, err := runOut(ctx, dir, env, name, args...)
	return err
}

func runOut(ctx context.Context, dir string, env []string, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	if env != nil {
		cmd.Env = env
	}
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf
	err := cmd.Run()
	return buf.String(), err
}
