package controllers

import (
	"fmt"

	"k8s.io/apimachinery/pkg/util/sets"
	"k8s.io/apimachinery/pkg/util/validation/field"
	"sigs.k8s.io/controller-runtime/pkg/client"
	gatewayv1 "sigs.k8s.io/gateway-api/apis/v1"

	consolev1 "github.com/anvil-platform/gateway-console/api/v1"
	"github.com/anvil-platform/gateway-console/internal/gateway"
	"github.com/anvil-platform/gateway-console/internal/retry"
	"github.com/anvil-platform/gateway-console/internal/status"
)

// NewGatewayController returns the controller for Gateways.
func NewGatewayController(gw gateway.ResourceGateway, executor *retry.Executor, publisher Publisher, opts Options) *ResourceController {
	return newResourceController(gatewayHandler{}, gw, executor, publisher, opts)
}

type gatewayHandler struct{}

func (gatewayHandler) kind() consolev1.Kind { return consolev1.KindGateway }

func (gatewayHandler) validate(obj client.Object) error {
	gw, ok := obj.(*gatewayv1.Gateway)
	if !ok {
		return fmt.Errorf("expected *Gateway, got %T", obj)
	}
	spec := field.NewPath("spec")
	var errs field.ErrorList
	if gw.Spec.GatewayClassName == "" {
		errs = append(errs, field.Required(spec.Child("gatewayClassName"), ""))
	}
	if len(gw.Spec.Listeners) == 0 {
		errs = append(errs, field.Required(spec.Child("listeners"), "at least one listener is required"))
	}
	names := sets.New[string]()
	for i, l := range gw.Spec.Listeners {
		p := spec.Child("listeners").Index(i)
		name := string(l.Name)
		switch {
		case name == "":
			errs = append(errs, field.Required(p.Child("name"), ""))
		case names.Has(name):
			errs = append(errs, field.Duplicate(p.Child("name"), name))
		}
		names.Insert(name)
		if l.Port < 1 || l.Port > 65535 {
			errs = append(errs, field.Invalid(p.Child("port"), l.Port, "must be between 1 and 65535"))
		}
		if l.Protocol == "" {
			errs = append(errs, field.Required(p.Child("protocol"), ""))
		}
		if l.Hostname != nil && *l.Hostname != "" {
			errs = append(errs, validateHostname(p.Child("hostname"), string(*l.Hostname))...)
		}
	}
	return toValidationError(consolev1.KindGateway, errs)
}

func (gatewayHandler) summarize(obj client.Object) (consolev1.ResourceSummary, error) {
	gw, ok := obj.(*gatewayv1.Gateway)
	if !ok {
		return consolev1.ResourceSummary{}, fmt.Errorf("expected *Gateway, got %T", obj)
	}
	conds := status.GatewayConditions(gw)
	sum := status.Summarize(consolev1.KindGateway, conds)

	attached := make(map[string]int32, len(gw.Status.Listeners))
	for _, ls := range gw.Status.Listeners {
		attached[string(ls.Name)] = ls.AttachedRoutes
	}
	detail := &consolev1.GatewayDetail{GatewayClassName: string(gw.Spec.GatewayClassName)}
	for _, l := range gw.Spec.Listeners {
		ld := consolev1.ListenerDetail{
			Name:           string(l.Name),
			Port:           int32(l.Port),
			Protocol:       string(l.Protocol),
			AttachedRoutes: attached[string(l.Name)],
		}
		if l.Hostname != nil {
			ld.Hostname = string(*l.Hostname)
		}
		detail.Listeners = append(detail.Listeners, ld)
	}
	for _, a := range gw.Status.Addresses {
		detail.Addresses = append(detail.Addresses, a.Value)
	}

	return consolev1.ResourceSummary{
		Kind:              consolev1.KindGateway,
		Namespace:         gw.Namespace,
		Name:              gw.Name,
		Status:            sum.Status,
		Reason:            sum.Reason,
		Message:           sum.Message,
		Conditions:        conds,
		Generation:        gw.Generation,
		ResourceVersion:   gw.ResourceVersion,
		CreationTimestamp: gw.CreationTimestamp,
		Labels:            gw.Labels,
		Gateway:           detail,
	}, nil
}
