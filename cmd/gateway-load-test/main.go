package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/tools/clientcmd"
	"k8s.io/client-go/util/homedir"
	"sigs.k8s.io/controller-runtime/pkg/client"
	gatewayv1 "sigs.k8s.io/gateway-api/apis/v1"

	"github.com/anvil-platform/gateway-console/internal/gateway"
	"github.com/anvil-platform/gateway-console/internal/status"
)

func main() {
	var kubeconfig string
	if home := homedir.HomeDir(); home != "" {
		kubeconfig = filepath.Join(home, ".kube", "config")
	} else {
		kubeconfig = os.Getenv("KUBECONFIG")
	}
	flag.StringVar(&kubeconfig, "kubeconfig", kubeconfig, "absolute path to the kubeconfig file")

	var numRoutes int
	var namespace string
	var parent string
	var hostname string
	var timeout time.Duration
	var cleanup bool

	flag.IntVar(&numRoutes, "routes", 10, "Number of HTTPRoutes to create")
	flag.StringVar(&namespace, "namespace", "default", "Namespace to create routes in")
	flag.StringVar(&parent, "gateway", "load-test", "Gateway the routes attach to")
	flag.StringVar(&hostname, "hostname", "load-test.example.com", "Hostname set on every route")
	flag.DurationVar(&timeout, "timeout", 5*time.Minute, "How long to wait for each route to be accepted")
	flag.BoolVar(&cleanup, "cleanup", true, "Delete the created routes when done")
	flag.Parse()

	config, err := clientcmd.BuildConfigFromFlags("", kubeconfig)
	if err != nil {
		log.Fatalf("Error building kubeconfig: %v", err)
	}

	k8sClient, err := client.New(config, client.Options{Scheme: gateway.NewScheme()})
	if err != nil {
		log.Fatalf("Error creating client: %v", err)
	}

	fmt.Printf("Starting load test: %d HTTPRoutes on gateway %s/%s\n", numRoutes, namespace, parent)

	var wg sync.WaitGroup
	start := time.Now()
	latencies := make(chan time.Duration, numRoutes)
	created := make(chan *gatewayv1.HTTPRoute, numRoutes)

	for i := 0; i < numRoutes; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			routeName := fmt.Sprintf("load-test-route-%d-%d", start.Unix(), id)

			route := &gatewayv1.HTTPRoute{
				ObjectMeta: metav1.ObjectMeta{
					Name:      routeName,
					Namespace: namespace,
					Labels:    map[string]string{"app.kubernetes.io/managed-by": "gateway-load-test"},
				},
				Spec: gatewayv1.HTTPRouteSpec{
					CommonRouteSpec: gatewayv1.CommonRouteSpec{
						ParentRefs: []gatewayv1.ParentReference{{Name: gatewayv1.ObjectName(parent)}},
					},
					Hostnames: []gatewayv1.Hostname{gatewayv1.Hostname(hostname)},
				},
			}

			createStart := time.Now()
			if err := k8sClient.Create(context.Background(), route); err != nil {
				fmt.Printf("Error creating route %s: %v\n", routeName, err)
				return
			}
			created <- route

			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()

			for {
				select {
				case <-ctx.Done():
					fmt.Printf("Timeout waiting for route %s\n", routeName)
					return
				case <-time.After(1 * time.Second):
					var current gatewayv1.HTTPRoute
					if err := k8sClient.Get(ctx, client.ObjectKeyFromObject(route), &current); err != nil {
						continue
					}
					switch status.DeriveHTTPRoute(status.RouteConditions(&current)) {
					case status.StatusAccepted:
						latency := time.Since(createStart)
						latencies <- latency
						fmt.Printf("Route %s accepted in %v\n", routeName, latency)
						return
					case status.StatusFailed:
						fmt.Printf("Route %s was rejected\n", routeName)
						return
					}
				}
			}
		}(i)
	}

	wg.Wait()
	close(latencies)
	close(created)
	totalDuration := time.Since(start)

	var samples []time.Duration
	for l := range latencies {
		samples = append(samples, l)
	}
	if len(samples) > 0 {
		sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
		var total time.Duration
		for _, s := range samples {
			total += s
		}
		fmt.Printf("Load test completed in %v. %d/%d routes accepted. Avg: %v p50: %v p95: %v max: %v\n",
			totalDuration, len(samples), numRoutes,
			total/time.Duration(len(samples)), percentile(samples, 50), percentile(samples, 95), samples[len(samples)-1])
	} else {
		fmt.Printf("Load test completed in %v. No routes were accepted.\n", totalDuration)
	}

	if !cleanup {
		return
	}
	for route := range created {
		if err := k8sClient.Delete(context.Background(), route); client.IgnoreNotFound(err) != nil {
			fmt.Printf("Error deleting route %s: %v\n", route.Name, err)
		}
	}
}

// percentile expects sorted samples.
func percentile(sorted []time.Duration, p int) time.Duration {
	idx := (len(sorted)*p+99)/100 - 1
	if idx < 0 {
		idx = 0
	}
	return sorted[idx]
}
