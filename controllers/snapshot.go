package controllers

import (
	"context"

	"golang.org/x/sync/errgroup"
	"sigs.k8s.io/controller-runtime/pkg/log"

	consolev1 "github.com/anvil-platform/gateway-console/api/v1"
	"github.com/anvil-platform/gateway-console/internal/topology"
)

// Console groups the per-kind controllers for operations that span kinds.
type Console struct {
	Gateways   *ResourceController
	HTTPRoutes *ResourceController
}

func NewConsole(gateways, routes *ResourceController) *Console {
	return &Console{Gateways: gateways, HTTPRoutes: routes}
}

// For returns the controller for kind.
func (c *Console) For(kind consolev1.Kind) (*ResourceController, bool) {
	switch kind {
	case consolev1.KindGateway:
		return c.Gateways, true
	case consolev1.KindHTTPRoute:
		return c.HTTPRoutes, true
	default:
		return nil, false
	}
}

// InitialState fetches a fresh snapshot of both kinds for a new subscriber.
// A kind that cannot be loaded is reported in Snapshot.Errors; only when
// neither can be loaded is an error returned.
func (c *Console) InitialState(ctx context.Context) (any, error) {
	snap := consolev1.Snapshot{Gateways: []consolev1.ResourceSummary{}, HTTPRoutes: []consolev1.ResourceSummary{}}
	var gwErr, rErr error
	var g errgroup.Group
	g.Go(func() error {
		items, err := c.Gateways.Snapshot(ctx)
		if err == nil {
			snap.Gateways = items
		}
		gwErr = err
		return nil
	})
	g.Go(func() error {
		items, err := c.HTTPRoutes.Snapshot(ctx)
		if err == nil {
			snap.HTTPRoutes = items
		}
		rErr = err
		return nil
	})
	_ = g.Wait()

	if gwErr != nil && rErr != nil {
		return nil, gwErr
	}
	if gwErr != nil || rErr != nil {
		snap.Errors = map[consolev1.Kind]string{}
		if gwErr != nil {
			snap.Errors[consolev1.KindGateway] = gwErr.Error()
		}
		if rErr != nil {
			snap.Errors[consolev1.KindHTTPRoute] = rErr.Error()
		}
		snapshotPartialTotal.Inc()
		log.FromContext(ctx).Info("serving partial initial state", "errors", snap.Errors)
	}
	return snap, nil
}

// Topology builds the attachment graph for namespace (all when empty).
func (c *Console) Topology(ctx context.Context, namespace string) (topology.Graph, error) {
	var gateways, routes []consolev1.ResourceSummary
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		gateways, err = c.Gateways.List(gctx, "")
		return err
	})
	g.Go(func() error {
		var err error
		routes, err = c.HTTPRoutes.List(gctx, namespace)
		return err
	})
	if err := g.Wait(); err != nil {
		return topology.Graph{}, err
	}
	// Routes may attach to Gateways in other namespaces, so gateways are
	// listed cluster-wide and filtered to those relevant to namespace.
	if namespace != "" {
		referenced := map[[2]string]bool{}
		for _, r := range routes {
			if r.Route == nil {
				continue
			}
			for _, p := range r.Route.ParentRefs {
				referenced[[2]string{p.Namespace, p.Name}] = true
			}
		}
		filtered := gateways[:0]
		for _, gw := range gateways {
			if gw.Namespace == namespace || referenced[[2]string{gw.Namespace, gw.Name}] {
				filtered = append(filtered, gw)
			}
		}
		gateways = filtered
	}
	return topology.Build(gateways, routes), nil
}
