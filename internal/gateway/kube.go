package gateway

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-logr/logr"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"sigs.k8s.io/controller-runtime/pkg/client"

	consolev1 "github.com/anvil-platform/gateway-console/api/v1"
	"github.com/anvil-platform/gateway-console/internal/apperr"
)

// KubeGateway implements ResourceGateway on a controller-runtime client. The
// underlying connection can be swapped at runtime by Reconnect.
type KubeGateway struct {
	factory ClientFactory
	log     logr.Logger

	mu      sync.RWMutex
	clients Clients
}

var _ ResourceGateway = &KubeGateway{}

// NewKubeGateway builds the initial connection with factory.
func NewKubeGateway(ctx context.Context, factory ClientFactory, log logr.Logger) (*KubeGateway, error) {
	clients, err := factory(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUnavailable, err, "connect to cluster")
	}
	return &KubeGateway{factory: factory, log: log, clients: clients}, nil
}

// NewKubeGatewayWithClients wraps an existing connection. factory may be nil,
// in which case Reconnect always fails.
func NewKubeGatewayWithClients(clients Clients, factory ClientFactory, log logr.Logger) *KubeGateway {
	return &KubeGateway{factory: factory, log: log, clients: clients}
}

func (g *KubeGateway) client() client.Client {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.clients.Client
}

// Clientset returns the clientset of the current connection.
func (g *KubeGateway) Clientset() kubernetes.Interface {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.clients.Clientset
}

// Reconnect discards the current connection and builds a new one from
// scratch. The new connection is only installed once the API server answers a
// version request; on failure the previous connection stays in place.
func (g *KubeGateway) Reconnect(ctx context.Context) error {
	if g.factory == nil {
		return apperr.New(apperr.KindInternal, "cluster connection has no client factory")
	}
	clients, err := g.factory(ctx)
	if err != nil {
		return apperr.Wrap(apperr.KindUnavailable, err, "rebuild cluster client")
	}
	if clients.Clientset != nil {
		if _, err := clients.Clientset.Discovery().ServerVersion(); err != nil {
			return apperr.FromKube(err, "verify cluster connection")
		}
	}

	g.mu.Lock()
	g.clients = clients
	g.mu.Unlock()
	g.log.Info("cluster client rebuilt")
	return nil
}

func (g *KubeGateway) List(ctx context.Context, kind consolev1.Kind, namespace string) ([]client.Object, error) {
	list, err := NewList(kind)
	if err != nil {
		return nil, err
	}
	var opts []client.ListOption
	if namespace != "" {
		opts = append(opts, client.InNamespace(namespace))
	}
	if err := g.client().List(ctx, list, opts...); err != nil {
		return nil, apperr.FromKube(err, "list %s in namespace %q", kind, namespace)
	}
	return Items(list)
}

func (g *KubeGateway) Get(ctx context.Context, ref consolev1.ResourceRef) (client.Object, error) {
	obj, err := NewObject(ref.Kind)
	if err != nil {
		return nil, err
	}
	if err := g.client().Get(ctx, client.ObjectKey{Namespace: ref.Namespace, Name: ref.Name}, obj); err != nil {
		return nil, apperr.FromKube(err, "get %s", ref)
	}
	return obj, nil
}

func (g *KubeGateway) Create(ctx context.Context, obj client.Object) (client.Object, error) {
	ref, err := RefOf(obj)
	if err != nil {
		return nil, err
	}
	out, ok := obj.DeepCopyObject().(client.Object)
	if !ok {
		return nil, fmt.Errorf("gateway: copy of %T is not a client.Object", obj)
	}
	stripServerFields(out)
	if err := g.client().Create(ctx, out); err != nil {
		return nil, apperr.FromKube(err, "create %s", ref)
	}
	return out, nil
}

// Replace overwrites the stored object. When obj carries no resourceVersion
// the current one is used, so the last writer wins.
func (g *KubeGateway) Replace(ctx context.Context, obj client.Object) (client.Object, error) {
	ref, err := RefOf(obj)
	if err != nil {
		return nil, err
	}
	out, ok := obj.DeepCopyObject().(client.Object)
	if !ok {
		return nil, fmt.Errorf("gateway: copy of %T is not a client.Object", obj)
	}
	c := g.client()
	if out.GetResourceVersion() == "" {
		current, err := NewObject(ref.Kind)
		if err != nil {
			return nil, err
		}
		if err := c.Get(ctx, client.ObjectKeyFromObject(out), current); err != nil {
			return nil, apperr.FromKube(err, "replace %s", ref)
		}
		out.SetResourceVersion(current.GetResourceVersion())
	}
	if err := c.Update(ctx, out); err != nil {
		return nil, apperr.FromKube(err, "replace %s", ref)
	}
	return out, nil
}

func (g *KubeGateway) Delete(ctx context.Context, ref consolev1.ResourceRef) error {
	obj, err := NewObject(ref.Kind)
	if err != nil {
		return err
	}
	obj.SetNamespace(ref.Namespace)
	obj.SetName(ref.Name)
	if err := g.client().Delete(ctx, obj); err != nil {
		return apperr.FromKube(err, "delete %s", ref)
	}
	return nil
}

func (g *KubeGateway) EnsureNamespace(ctx context.Context, name string) error {
	c := g.client()
	var ns corev1.Namespace
	err := c.Get(ctx, client.ObjectKey{Name: name}, &ns)
	if err == nil {
		return nil
	}
	if !apierrors.IsNotFound(err) {
		return apperr.FromKube(err, "get namespace %q", name)
	}

	ns = corev1.Namespace{ObjectMeta: metav1.ObjectMeta{Name: name}}
	if err := c.Create(ctx, &ns); err != nil {
		if apierrors.IsAlreadyExists(err) {
			// Created concurrently by someone else.
			return nil
		}
		return apperr.FromKube(err, "create namespace %q", name)
	}
	g.log.Info("created namespace", "namespace", name)
	return nil
}
