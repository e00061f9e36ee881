// Package status derives the dashboard lifecycle status of Gateway API
// resources from the conditions their controllers report.
package status

import (
	"k8s.io/apimachinery/pkg/api/meta"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	gatewayv1 "sigs.k8s.io/gateway-api/apis/v1"

	consolev1 "github.com/anvil-platform/gateway-console/api/v1"
)

// LifecycleStatus is never stored; it is recomputed from the current
// conditions on every read.
type LifecycleStatus = consolev1.LifecycleStatus

const (
	StatusPending  = consolev1.StatusPending
	StatusReady    = consolev1.StatusReady
	StatusAccepted = consolev1.StatusAccepted
	StatusFailed   = consolev1.StatusFailed
	StatusUnknown  = consolev1.StatusUnknown
)

const (
	ConditionAccepted     = string(gatewayv1.GatewayConditionAccepted)
	ConditionProgrammed   = string(gatewayv1.GatewayConditionProgrammed)
	ConditionResolvedRefs = string(gatewayv1.RouteConditionResolvedRefs)
)

// ConditionState is the observed state of a single condition type.
type ConditionState int

const (
	ConditionAbsent ConditionState = iota
	ConditionTrue
	ConditionFalse
	ConditionUnknown
)

func (s ConditionState) String() string {
	switch s {
	case ConditionTrue:
		return "True"
	case ConditionFalse:
		return "False"
	case ConditionUnknown:
		return "Unknown"
	default:
		return "Absent"
	}
}

// Lookup returns the state of the first condition of the given type.
// Statuses other than True and False (including malformed ones) are Unknown.
func Lookup(conditions []metav1.Condition, conditionType string) ConditionState {
	c := meta.FindStatusCondition(conditions, conditionType)
	if c == nil {
		return ConditionAbsent
	}
	switch c.Status {
	case metav1.ConditionTrue:
		return ConditionTrue
	case metav1.ConditionFalse:
		return ConditionFalse
	default:
		return ConditionUnknown
	}
}

// Derive maps a condition list to a lifecycle status for kind. It is total:
// unknown kinds and empty lists yield StatusUnknown.
func Derive(kind consolev1.Kind, conditions []metav1.Condition) LifecycleStatus {
	switch kind {
	case consolev1.KindGateway:
		return DeriveGateway(conditions)
	case consolev1.KindHTTPRoute:
		return DeriveHTTPRoute(conditions)
	default:
		return StatusUnknown
	}
}

// DeriveGateway: Accepted and Programmed both True is Ready.
func DeriveGateway(conditions []metav1.Condition) LifecycleStatus {
	return derive(conditions, ConditionProgrammed, StatusReady)
}

// DeriveHTTPRoute: Accepted and ResolvedRefs both True is Accepted.
func DeriveHTTPRoute(conditions []metav1.Condition) LifecycleStatus {
	return derive(conditions, ConditionResolvedRefs, StatusAccepted)
}

func derive(conditions []metav1.Condition, secondary string, healthy LifecycleStatus) LifecycleStatus {
	if len(conditions) == 0 {
		return StatusUnknown
	}
	accepted := Lookup(conditions, ConditionAccepted)
	switch accepted {
	case ConditionAbsent:
		return StatusUnknown
	case ConditionFalse:
		return StatusFailed
	}
	if accepted == ConditionTrue && Lookup(conditions, secondary) == ConditionTrue {
		return healthy
	}
	return StatusPending
}

// RouteConditions flattens the per-parent conditions of an HTTPRoute in parent
// order, so first-match lookups pick the first parent reporting a type.
func RouteConditions(route *gatewayv1.HTTPRoute) []metav1.Condition {
	if route == nil {
		return nil
	}
	var out []metav1.Condition
	for _, parent := range route.Status.Parents {
		out = append(out, parent.Conditions...)
	}
	return out
}

// GatewayConditions returns the top-level conditions of a Gateway.
func GatewayConditions(gw *gatewayv1.Gateway) []metav1.Condition {
	if gw == nil {
		return nil
	}
	return gw.Status.Conditions
}

// Summary is the diagnostic view of the conditions a decision was based on.
type Summary struct {
	Status     LifecycleStatus   `json:"status"`
	Conditions map[string]string `json:"conditions,omitempty"`
	Reason     string            `json:"reason,omitempty"`
	Message    string            `json:"message,omitempty"`
}

// Summarize derives the status for kind and reports the states of the
// conditions involved, plus the reason/message of the Accepted condition.
func Summarize(kind consolev1.Kind, conditions []metav1.Condition) Summary {
	s := Summary{Status: Derive(kind, conditions)}
	secondary := ConditionProgrammed
	if kind == consolev1.KindHTTPRoute {
		secondary = ConditionResolvedRefs
	}
	for _, t := range []string{ConditionAccepted, secondary} {
		state := Lookup(conditions, t)
		if state == ConditionAbsent {
			continue
		}
		if s.Conditions == nil {
			s.Conditions = map[string]string{}
		}
		s.Conditions[t] = state.String()
	}
	if c := meta.FindStatusCondition(conditions, ConditionAccepted); c != nil {
		s.Reason = c.Reason
		s.Message = c.Message
	}
	return s
}
