package gateway

import (
	"context"
	"fmt"
	"time"

	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"
)

// Clients is one connection to the API server: a typed controller-runtime
// client for resources and a clientset for discovery.
type Clients struct {
	Client    client.Client
	Clientset kubernetes.Interface
}

// ClientFactory builds a fresh connection. It is called on startup and on
// every reconnect, so credentials are re-read each time.
type ClientFactory func(ctx context.Context) (Clients, error)

// KubeconfigFactory loads credentials from kubeconfig when set, and otherwise
// from the usual controller-runtime sources ($KUBECONFIG, in-cluster config,
// ~/.kube/config).
func KubeconfigFactory(kubeconfig string, scheme *runtime.Scheme, timeout time.Duration) ClientFactory {
	return func(ctx context.Context) (Clients, error) {
		cfg, err := loadRESTConfig(kubeconfig)
		if err != nil {
			return Clients{}, err
		}
		if timeout > 0 {
			cfg.Timeout = timeout
		}
		c, err := client.New(cfg, client.Options{Scheme: scheme})
		if err != nil {
			return Clients{}, fmt.Errorf("create client: %w", err)
		}
		cs, err := kubernetes.NewForConfig(cfg)
		if err != nil {
			return Clients{}, fmt.Errorf("create clientset: %w", err)
		}
		return Clients{Client: c, Clientset: cs}, nil
	}
}

func loadRESTConfig(kubeconfig string) (*rest.Config, error) {
	if kubeconfig != "" {
		cfg, err := clientcmd.BuildConfigFromFlags("", kubeconfig)
		if err != nil {
			return nil, fmt.Errorf("load kubeconfig %q: %w", kubeconfig, err)
		}
		return cfg, nil
	}
	cfg, err := ctrl.GetConfig()
	if err != nil {
		return nil, fmt.Errorf("load cluster config: %w", err)
	}
	return cfg, nil
}
