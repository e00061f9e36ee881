package controllers

import (
	"fmt"

	"k8s.io/apimachinery/pkg/util/validation/field"
	"sigs.k8s.io/controller-runtime/pkg/client"
	gatewayv1 "sigs.k8s.io/gateway-api/apis/v1"

	consolev1 "github.com/anvil-platform/gateway-console/api/v1"
	"github.com/anvil-platform/gateway-console/internal/gateway"
	"github.com/anvil-platform/gateway-console/internal/retry"
	"github.com/anvil-platform/gateway-console/internal/status"
)

// NewHTTPRouteController returns the controller for HTTPRoutes.
func NewHTTPRouteController(gw gateway.ResourceGateway, executor *retry.Executor, publisher Publisher, opts Options) *ResourceController {
	return newResourceController(httpRouteHandler{}, gw, executor, publisher, opts)
}

type httpRouteHandler struct{}

func (httpRouteHandler) kind() consolev1.Kind { return consolev1.KindHTTPRoute }

func (httpRouteHandler) validate(obj client.Object) error {
	route, ok := obj.(*gatewayv1.HTTPRoute)
	if !ok {
		return fmt.Errorf("expected *HTTPRoute, got %T", obj)
	}
	spec := field.NewPath("spec")
	var errs field.ErrorList
	if len(route.Spec.ParentRefs) == 0 {
		errs = append(errs, field.Required(spec.Child("parentRefs"), "at least one parent Gateway is required"))
	}
	for i, p := range route.Spec.ParentRefs {
		if p.Name == "" {
			errs = append(errs, field.Required(spec.Child("parentRefs").Index(i).Child("name"), ""))
		}
	}
	for i, h := range route.Spec.Hostnames {
		errs = append(errs, validateHostname(spec.Child("hostnames").Index(i), string(h))...)
	}
	if len(route.Spec.Rules) > maxRouteRules {
		errs = append(errs, field.TooMany(spec.Child("rules"), len(route.Spec.Rules), maxRouteRules))
	}
	for i, rule := range route.Spec.Rules {
		for j, b := range rule.BackendRefs {
			if b.Name == "" {
				errs = append(errs, field.Required(spec.Child("rules").Index(i).Child("backendRefs").Index(j).Child("name"), ""))
			}
		}
	}
	return toValidationError(consolev1.KindHTTPRoute, errs)
}

func (httpRouteHandler) summarize(obj client.Object) (consolev1.ResourceSummary, error) {
	route, ok := obj.(*gatewayv1.HTTPRoute)
	if !ok {
		return consolev1.ResourceSummary{}, fmt.Errorf("expected *HTTPRoute, got %T", obj)
	}
	conds := status.RouteConditions(route)
	sum := status.Summarize(consolev1.KindHTTPRoute, conds)

	detail := &consolev1.RouteDetail{Rules: len(route.Spec.Rules)}
	for _, h := range route.Spec.Hostnames {
		detail.Hostnames = append(detail.Hostnames, string(h))
	}
	for _, p := range route.Spec.ParentRefs {
		ref := consolev1.ParentRef{Namespace: route.Namespace, Name: string(p.Name)}
		if p.Namespace != nil && *p.Namespace != "" {
			ref.Namespace = string(*p.Namespace)
		}
		if p.SectionName != nil {
			ref.SectionName = string(*p.SectionName)
		}
		detail.ParentRefs = append(detail.ParentRefs, ref)
	}

	return consolev1.ResourceSummary{
		Kind:              consolev1.KindHTTPRoute,
		Namespace:         route.Namespace,
		Name:              route.Name,
		Status:            sum.Status,
		Reason:            sum.Reason,
		Message:           sum.Message,
		Conditions:        conds,
		Generation:        route.Generation,
		ResourceVersion:   route.ResourceVersion,
		CreationTimestamp: route.CreationTimestamp,
		Labels:            route.Labels,
		Route:             detail,
	}, nil
}
