// Package topology builds the attachment graph between Gateways and the
// HTTPRoutes that reference them.
package topology

import (
	"sort"

	consolev1 "github.com/anvil-platform/gateway-console/api/v1"
)

type gatewayKey struct {
	Namespace string
	Name      string
}

// RouteAttachment is one HTTPRoute bound to a Gateway through a parentRef.
type RouteAttachment struct {
	Ref         consolev1.ResourceRef     `json:"ref"`
	SectionName string                    `json:"sectionName,omitempty"`
	Status      consolev1.LifecycleStatus `json:"status"`
}

type GatewayNode struct {
	Ref       consolev1.ResourceRef     `json:"ref"`
	Status    consolev1.LifecycleStatus `json:"status"`
	Listeners []string                  `json:"listeners,omitempty"`
	Routes    []RouteAttachment         `json:"routes"`
}

// DanglingRef is a parentRef naming a Gateway that does not exist.
type DanglingRef struct {
	Route  consolev1.ResourceRef `json:"route"`
	Parent consolev1.ParentRef   `json:"parent"`
}

// Graph is the topology view returned by the API.
type Graph struct {
	Gateways []GatewayNode `json:"gateways"`
	// Orphans are routes none of whose parentRefs resolve to a known Gateway.
	Orphans  []consolev1.ResourceRef `json:"orphans"`
	Dangling []DanglingRef           `json:"dangling,omitempty"`
}

// Build links routes to gateways. Parent namespaces must already be defaulted
// to the route's namespace. The result is sorted by namespace and name.
func Build(gateways, routes []consolev1.ResourceSummary) Graph {
	nodes := make(map[gatewayKey]*GatewayNode, len(gateways))
	for _, gw := range gateways {
		node := &GatewayNode{Ref: gw.Ref(), Status: gw.Status, Routes: []RouteAttachment{}}
		if gw.Gateway != nil {
			for _, l := range gw.Gateway.Listeners {
				node.Listeners = append(node.Listeners, l.Name)
			}
		}
		nodes[gatewayKey{Namespace: gw.Namespace, Name: gw.Name}] = node
	}

	g := Graph{Orphans: []consolev1.ResourceRef{}}
	for _, r := range routes {
		attached := false
		if r.Route != nil {
			for _, p := range r.Route.ParentRefs {
				node, ok := nodes[gatewayKey{Namespace: p.Namespace, Name: p.Name}]
				if !ok {
					g.Dangling = append(g.Dangling, DanglingRef{Route: r.Ref(), Parent: p})
					continue
				}
				node.Routes = append(node.Routes, RouteAttachment{Ref: r.Ref(), SectionName: p.SectionName, Status: r.Status})
				attached = true
			}
		}
		if !attached {
			g.Orphans = append(g.Orphans, r.Ref())
		}
	}

	g.Gateways = make([]GatewayNode, 0, len(nodes))
	for _, node := range nodes {
		sort.Slice(node.Routes, func(i, j int) bool { return less(node.Routes[i].Ref, node.Routes[j].Ref) })
		g.Gateways = append(g.Gateways, *node)
	}
	sort.Slice(g.Gateways, func(i, j int) bool { return less(g.Gateways[i].Ref, g.Gateways[j].Ref) })
	sort.Slice(g.Orphans, func(i, j int) bool { return less(g.Orphans[i], g.Orphans[j]) })
	return g
}

func less(a, b consolev1.ResourceRef) bool {
	if a.Namespace != b.Namespace {
		return a.Namespace < b.Namespace
	}
	return a.Name < b.Name
}
