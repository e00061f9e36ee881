package v1

// NOTE: These types form the wire contract of the console API. Cluster
// objects themselves use the upstream gateway-api types.

// Kind is a Gateway API resource kind tracked by the console.
type Kind string

const (
	KindGateway   Kind = "Gateway"
	KindHTTPRoute Kind = "HTTPRoute"
)

// Kinds lists every tracked kind in display order.
func Kinds() []Kind {
	return []Kind{KindGateway, KindHTTPRoute}
}

// LifecycleStatus is the status shown for a resource. Gateways use Pending,
// Ready, Failed and Unknown; HTTPRoutes use Pending, Accepted, Failed and
// Unknown.
type LifecycleStatus string

const (
	StatusPending  LifecycleStatus = "Pending"
	StatusReady    LifecycleStatus = "Ready"
	StatusAccepted LifecycleStatus = "Accepted"
	StatusFailed   LifecycleStatus = "Failed"
	StatusUnknown  LifecycleStatus = "Unknown"
)

// ResourceRef identifies a resource. It is comparable and used as a map key.
type ResourceRef struct {
	Kind      Kind   `json:"kind"`
	Namespace string `json:"namespace"`
	Name      string `json:"name"`
}

func (r ResourceRef) String() string {
	return string(r.Kind) + "/" + r.Namespace + "/" + r.Name
}
