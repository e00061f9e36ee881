package v1

import (
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// ResourceSummary is the console view of a Gateway or HTTPRoute.
type ResourceSummary struct {
	Kind              Kind               `json:"kind"`
	Namespace         string             `json:"namespace"`
	Name              string             `json:"name"`
	Status            LifecycleStatus    `json:"status"`
	Reason            string             `json:"reason,omitempty"`
	Message           string             `json:"message,omitempty"`
	Conditions        []metav1.Condition `json:"conditions,omitempty"`
	Generation        int64              `json:"generation,omitempty"`
	ResourceVersion   string             `json:"resourceVersion,omitempty"`
	CreationTimestamp metav1.Time        `json:"creationTimestamp,omitempty"`
	Labels            map[string]string  `json:"labels,omitempty"`

	Gateway *GatewayDetail `json:"gateway,omitempty"`
	Route   *RouteDetail   `json:"route,omitempty"`
}

func (s ResourceSummary) Ref() ResourceRef {
	return ResourceRef{Kind: s.Kind, Namespace: s.Namespace, Name: s.Name}
}

type GatewayDetail struct {
	GatewayClassName string           `json:"gatewayClassName"`
	Listeners        []ListenerDetail `json:"listeners,omitempty"`
	Addresses        []string         `json:"addresses,omitempty"`
}

type ListenerDetail struct {
	Name           string `json:"name"`
	Port           int32  `json:"port"`
	Protocol       string `json:"protocol"`
	Hostname       string `json:"hostname,omitempty"`
	AttachedRoutes int32  `json:"attachedRoutes"`
}

type RouteDetail struct {
	Hostnames  []string    `json:"hostnames,omitempty"`
	ParentRefs []ParentRef `json:"parentRefs,omitempty"`
	Rules      int         `json:"rules"`
}

type ParentRef struct {
	Namespace   string `json:"namespace"`
	Name        string `json:"name"`
	SectionName string `json:"sectionName,omitempty"`
}

// ResourceList is returned by list endpoints.
type ResourceList struct {
	Kind  Kind              `json:"kind"`
	Items []ResourceSummary `json:"items"`
}

// ErrorResponse is the body of every failed API call. Details are omitted in
// hardened mode.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// ResourceEvent is the payload of resource.created, resource.updated and
// resource.deleted events. Resource is nil for deletions.
type ResourceEvent struct {
	Kind      Kind             `json:"kind"`
	Namespace string           `json:"namespace"`
	Name      string           `json:"name"`
	Resource  *ResourceSummary `json:"resource,omitempty"`
}

// Snapshot is the payload of the initial_state event sent to new subscribers.
type Snapshot struct {
	Gateways   []ResourceSummary `json:"gateways"`
	HTTPRoutes []ResourceSummary `json:"httproutes"`
	// Errors holds per-kind fetch failures when only part of the snapshot
	// could be loaded.
	Errors map[Kind]string `json:"errors,omitempty"`
}
