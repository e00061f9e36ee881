package controllers

import (
	"context"
	"sort"
	"time"

	"github.com/go-logr/logr"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/log"

	consolev1 "github.com/anvil-platform/gateway-console/api/v1"
	"github.com/anvil-platform/gateway-console/internal/apperr"
	"github.com/anvil-platform/gateway-console/internal/events"
	"github.com/anvil-platform/gateway-console/internal/gateway"
	"github.com/anvil-platform/gateway-console/internal/retry"
)

// Publisher receives the domain event of every successful mutation.
// *events.Broadcaster implements it.
type Publisher interface {
	Publish(channel string, ev events.Event) int
}

// Options configure a ResourceController. Zero policies use the retry
// package defaults.
type Options struct {
	ReadPolicy     retry.Policy
	MutationPolicy retry.Policy
	// Namespace restricts Snapshot to one namespace; empty means all.
	Namespace string
}

// kindHandler holds what differs between Gateways and HTTPRoutes.
type kindHandler interface {
	kind() consolev1.Kind
	validate(obj client.Object) error
	summarize(obj client.Object) (consolev1.ResourceSummary, error)
}

// ResourceController answers API calls for one kind: reads go through the
// ResourceGateway under the read policy, mutations are validated and checked
// for existence first, run under the mutation policy, and published as
// events.
type ResourceController struct {
	gateway   gateway.ResourceGateway
	executor  *retry.Executor
	publisher Publisher
	handler   kindHandler
	opts      Options
}

func newResourceController(h kindHandler, gw gateway.ResourceGateway, executor *retry.Executor, publisher Publisher, opts Options) *ResourceController {
	if opts.ReadPolicy == (retry.Policy{}) {
		opts.ReadPolicy = retry.DefaultPolicy()
	}
	if opts.MutationPolicy == (retry.Policy{}) {
		opts.MutationPolicy = retry.MutationPolicy()
	}
	return &ResourceController{
		gateway:   gw,
		executor:  executor,
		publisher: publisher,
		handler:   h,
		opts:      opts,
	}
}

func (r *ResourceController) Kind() consolev1.Kind {
	return r.handler.kind()
}

func (r *ResourceController) logger(ctx context.Context, op string) logr.Logger {
	return log.FromContext(ctx).WithValues("controller", string(r.Kind()), "operation", op)
}

func (r *ResourceController) opName(op string) string {
	return op + "-" + string(r.Kind())
}

// List returns summaries of every resource in namespace (all namespaces when
// empty), sorted by namespace and name.
func (r *ResourceController) List(ctx context.Context, namespace string) (out []consolev1.ResourceSummary, err error) {
	defer observe(r.Kind(), "list", time.Now(), &err)
	if namespace != "" {
		if err := validateNamespace(namespace); err != nil {
			return nil, err
		}
	}
	objs, err := retry.Do(ctx, r.executor, r.opName("list"), r.opts.ReadPolicy, nil, func(ctx context.Context) ([]client.Object, error) {
		return r.gateway.List(ctx, r.Kind(), namespace)
	})
	if err != nil {
		r.logger(ctx, "list").Error(err, "failed to list resources", "namespace", namespace)
		return nil, err
	}
	out = make([]consolev1.ResourceSummary, 0, len(objs))
	for _, obj := range objs {
		s, err := r.handler.summarize(obj)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Namespace != out[j].Namespace {
			return out[i].Namespace < out[j].Namespace
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

// Get returns the summary of one resource.
func (r *ResourceController) Get(ctx context.Context, namespace, name string) (s consolev1.ResourceSummary, err error) {
	defer observe(r.Kind(), "get", time.Now(), &err)
	ref := consolev1.ResourceRef{Kind: r.Kind(), Namespace: namespace, Name: name}
	if err := validateRef(ref); err != nil {
		return consolev1.ResourceSummary{}, err
	}
	obj, err := r.get(ctx, ref)
	if err != nil {
		return consolev1.ResourceSummary{}, err
	}
	return r.handler.summarize(obj)
}

func (r *ResourceController) get(ctx context.Context, ref consolev1.ResourceRef) (client.Object, error) {
	return retry.Do(ctx, r.executor, r.opName("get"), r.opts.ReadPolicy, nil, func(ctx context.Context) (client.Object, error) {
		return r.gateway.Get(ctx, ref)
	})
}

// exists reports whether ref is present. Errors other than NotFound are
// returned as is.
func (r *ResourceController) exists(ctx context.Context, ref consolev1.ResourceRef) (client.Object, bool, error) {
	obj, err := r.get(ctx, ref)
	switch {
	case err == nil:
		return obj, true, nil
	case apperr.IsNotFound(err):
		return nil, false, nil
	default:
		return nil, false, err
	}
}

func (r *ResourceController) prepare(ctx context.Context, obj client.Object) (consolev1.ResourceRef, error) {
	if obj == nil {
		return consolev1.ResourceRef{}, apperr.Validation("request body is empty")
	}
	ref, err := gateway.RefOf(obj)
	if err != nil {
		return consolev1.ResourceRef{}, err
	}
	if ref.Kind != r.Kind() {
		return consolev1.ResourceRef{}, apperr.Validation("expected a %s, got a %s", r.Kind(), ref.Kind)
	}
	if err := validateRef(ref); err != nil {
		return consolev1.ResourceRef{}, err
	}
	if err := r.handler.validate(obj); err != nil {
		return consolev1.ResourceRef{}, err
	}
	err = retry.Run(ctx, r.executor, "ensure-namespace", r.opts.ReadPolicy, nil, func(ctx context.Context) error {
		return r.gateway.EnsureNamespace(ctx, ref.Namespace)
	})
	return ref, err
}

// Create validates obj, makes sure its namespace exists, rejects it with a
// Conflict if it already exists, and creates it.
func (r *ResourceController) Create(ctx context.Context, obj client.Object) (s consolev1.ResourceSummary, err error) {
	defer observe(r.Kind(), "create", time.Now(), &err)
	ref, err := r.prepare(ctx, obj)
	if err != nil {
		return consolev1.ResourceSummary{}, err
	}
	logger := r.logger(ctx, "create").WithValues("namespace", ref.Namespace, "name", ref.Name)

	if _, found, err := r.exists(ctx, ref); err != nil {
		return consolev1.ResourceSummary{}, err
	} else if found {
		return consolev1.ResourceSummary{}, apperr.Conflict("%s %s/%s already exists", ref.Kind, ref.Namespace, ref.Name)
	}

	created, err := retry.Do(ctx, r.executor, r.opName("create"), r.opts.MutationPolicy, nil, func(ctx context.Context) (client.Object, error) {
		return r.gateway.Create(ctx, obj)
	})
	if err != nil {
		logger.Error(err, "failed to create resource")
		return consolev1.ResourceSummary{}, err
	}
	s, err = r.handler.summarize(created)
	if err != nil {
		return consolev1.ResourceSummary{}, err
	}
	logger.Info("created resource", "status", s.Status)
	r.publish(ctx, events.TypeResourceCreated, ref, &s)
	return s, nil
}

// Update replaces an existing resource. It fails with NotFound when the
// resource does not exist.
func (r *ResourceController) Update(ctx context.Context, obj client.Object) (s consolev1.ResourceSummary, err error) {
	defer observe(r.Kind(), "update", time.Now(), &err)
	ref, err := r.prepare(ctx, obj)
	if err != nil {
		return consolev1.ResourceSummary{}, err
	}
	logger := r.logger(ctx, "update").WithValues("namespace", ref.Namespace, "name", ref.Name)

	if _, found, err := r.exists(ctx, ref); err != nil {
		return consolev1.ResourceSummary{}, err
	} else if !found {
		return consolev1.ResourceSummary{}, apperr.NotFound("%s %s/%s not found", ref.Kind, ref.Namespace, ref.Name)
	}

	updated, err := retry.Do(ctx, r.executor, r.opName("update"), r.opts.MutationPolicy, nil, func(ctx context.Context) (client.Object, error) {
		return r.gateway.Replace(ctx, obj)
	})
	if err != nil {
		logger.Error(err, "failed to update resource")
		return consolev1.ResourceSummary{}, err
	}
	s, err = r.handler.summarize(updated)
	if err != nil {
		return consolev1.ResourceSummary{}, err
	}
	logger.Info("updated resource", "status", s.Status)
	r.publish(ctx, events.TypeResourceUpdated, ref, &s)
	return s, nil
}

// Delete removes a resource. It fails with NotFound when the resource does
// not exist. The namespace is not created for a delete.
func (r *ResourceController) Delete(ctx context.Context, namespace, name string) (err error) {
	defer observe(r.Kind(), "delete", time.Now(), &err)
	ref := consolev1.ResourceRef{Kind: r.Kind(), Namespace: namespace, Name: name}
	if err := validateRef(ref); err != nil {
		return err
	}
	logger := r.logger(ctx, "delete").WithValues("namespace", namespace, "name", name)

	if _, found, err := r.exists(ctx, ref); err != nil {
		return err
	} else if !found {
		return apperr.NotFound("%s %s/%s not found", ref.Kind, ref.Namespace, ref.Name)
	}

	err = retry.Run(ctx, r.executor, r.opName("delete"), r.opts.MutationPolicy, nil, func(ctx context.Context) error {
		return r.gateway.Delete(ctx, ref)
	})
	if err != nil {
		logger.Error(err, "failed to delete resource")
		return err
	}
	logger.Info("deleted resource")
	r.publish(ctx, events.TypeResourceDeleted, ref, nil)
	return nil
}

// Snapshot lists every resource in the configured namespace scope.
func (r *ResourceController) Snapshot(ctx context.Context) ([]consolev1.ResourceSummary, error) {
	return r.List(ctx, r.opts.Namespace)
}

func (r *ResourceController) publish(ctx context.Context, t events.Type, ref consolev1.ResourceRef, s *consolev1.ResourceSummary) {
	if r.publisher == nil {
		return
	}
	channel := events.ChannelFor(ref.Kind)
	n := r.publisher.Publish(channel, events.NewEvent(t, channel, consolev1.ResourceEvent{
		Kind:      ref.Kind,
		Namespace: ref.Namespace,
		Name:      ref.Name,
		Resource:  s,
	}))
	log.FromContext(ctx).V(1).Info("published event", "type", t, "channel", channel, "subscribers", n)
}
