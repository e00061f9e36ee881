// Package gateway is the cluster-facing storage layer of the console. It reads
// and mutates Gateway API resources and namespaces and translates every
// Kubernetes failure into the apperr taxonomy.
package gateway

import (
	"context"
	"fmt"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/controller-runtime/pkg/client"
	gatewayv1 "sigs.k8s.io/gateway-api/apis/v1"

	consolev1 "github.com/anvil-platform/gateway-console/api/v1"
	"github.com/anvil-platform/gateway-console/internal/apperr"
)

// ResourceGateway is the narrow set of cluster operations the console needs.
// Implementations return apperr-classified errors.
type ResourceGateway interface {
	// List returns every object of kind in namespace, or in all namespaces
	// when namespace is empty.
	List(ctx context.Context, kind consolev1.Kind, namespace string) ([]client.Object, error)
	Get(ctx context.Context, ref consolev1.ResourceRef) (client.Object, error)
	Create(ctx context.Context, obj client.Object) (client.Object, error)
	Replace(ctx context.Context, obj client.Object) (client.Object, error)
	Delete(ctx context.Context, ref consolev1.ResourceRef) error
	// EnsureNamespace creates the namespace if it does not exist yet.
	EnsureNamespace(ctx context.Context, name string) error
}

// NewObject returns an empty typed object for kind.
func NewObject(kind consolev1.Kind) (client.Object, error) {
	switch kind {
	case consolev1.KindGateway:
		return &gatewayv1.Gateway{}, nil
	case consolev1.KindHTTPRoute:
		return &gatewayv1.HTTPRoute{}, nil
	default:
		return nil, apperr.Validation("unsupported kind %q", kind)
	}
}

// NewList returns an empty typed list for kind.
func NewList(kind consolev1.Kind) (client.ObjectList, error) {
	switch kind {
	case consolev1.KindGateway:
		return &gatewayv1.GatewayList{}, nil
	case consolev1.KindHTTPRoute:
		return &gatewayv1.HTTPRouteList{}, nil
	default:
		return nil, apperr.Validation("unsupported kind %q", kind)
	}
}

// KindOf reports the console kind of a typed object.
func KindOf(obj client.Object) (consolev1.Kind, error) {
	switch obj.(type) {
	case *gatewayv1.Gateway:
		return consolev1.KindGateway, nil
	case *gatewayv1.HTTPRoute:
		return consolev1.KindHTTPRoute, nil
	default:
		return "", apperr.Validation("unsupported object type %T", obj)
	}
}

// RefOf builds the ResourceRef of a typed object.
func RefOf(obj client.Object) (consolev1.ResourceRef, error) {
	kind, err := KindOf(obj)
	if err != nil {
		return consolev1.ResourceRef{}, err
	}
	return consolev1.ResourceRef{Kind: kind, Namespace: obj.GetNamespace(), Name: obj.GetName()}, nil
}

// Items flattens a typed list into pointers to its elements.
func Items(list client.ObjectList) ([]client.Object, error) {
	switch l := list.(type) {
	case *gatewayv1.GatewayList:
		out := make([]client.Object, 0, len(l.Items))
		for i := range l.Items {
			out = append(out, &l.Items[i])
		}
		return out, nil
	case *gatewayv1.HTTPRouteList:
		out := make([]client.Object, 0, len(l.Items))
		for i := range l.Items {
			out = append(out, &l.Items[i])
		}
		return out, nil
	default:
		return nil, fmt.Errorf("gateway: unsupported list type %T", list)
	}
}

// stripServerFields clears the fields a client must not set when creating an
// object.
func stripServerFields(obj client.Object) {
	obj.SetResourceVersion("")
	obj.SetUID("")
	obj.SetCreationTimestamp(metav1.Time{})
	obj.SetGeneration(0)
	obj.SetManagedFields(nil)
}
