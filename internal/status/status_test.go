package status

import (
	"testing"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	gatewayv1 "sigs.k8s.io/gateway-api/apis/v1"

	consolev1 "github.com/anvil-platform/gateway-console/api/v1"
)

func cond(t string, s metav1.ConditionStatus) metav1.Condition {
	return metav1.Condition{Type: t, Status: s, Reason: "Test"}
}

func TestDeriveGateway(t *testing.T) {
	cases := []struct {
		name  string
		conds []metav1.Condition
		want  LifecycleStatus
	}{
		{"nil", nil, StatusUnknown},
		{"empty", []metav1.Condition{}, StatusUnknown},
		{"accepted and programmed", []metav1.Condition{cond("Accepted", metav1.ConditionTrue), cond("Programmed", metav1.ConditionTrue)}, StatusReady},
		{"programmed false", []metav1.Condition{cond("Accepted", metav1.ConditionTrue), cond("Programmed", metav1.ConditionFalse)}, StatusPending},
		{"programmed missing", []metav1.Condition{cond("Accepted", metav1.ConditionTrue)}, StatusPending},
		{"programmed unknown", []metav1.Condition{cond("Accepted", metav1.ConditionTrue), cond("Programmed", metav1.ConditionUnknown)}, StatusPending},
		{"accepted false", []metav1.Condition{cond("Accepted", metav1.ConditionFalse), cond("Programmed", metav1.ConditionTrue)}, StatusFailed},
		{"accepted unknown", []metav1.Condition{cond("Accepted", metav1.ConditionUnknown), cond("Programmed", metav1.ConditionTrue)}, StatusPending},
		{"accepted absent", []metav1.Condition{cond("Programmed", metav1.ConditionTrue)}, StatusUnknown},
		{"malformed status", []metav1.Condition{cond("Accepted", "Maybe"), cond("Programmed", metav1.ConditionTrue)}, StatusPending},
		{"first match wins", []metav1.Condition{
			cond("Accepted", metav1.ConditionFalse),
			cond("Accepted", metav1.ConditionTrue),
			cond("Programmed", metav1.ConditionTrue),
		}, StatusFailed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := DeriveGateway(tc.conds); got != tc.want {
				t.Fatalf("DeriveGateway = %s, want %s", got, tc.want)
			}
			if got := Derive(consolev1.KindGateway, tc.conds); got != tc.want {
				t.Fatalf("Derive(Gateway) = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestDeriveHTTPRoute(t *testing.T) {
	cases := []struct {
		name  string
		conds []metav1.Condition
		want  LifecycleStatus
	}{
		{"empty", nil, StatusUnknown},
		{"accepted and resolved", []metav1.Condition{cond("Accepted", metav1.ConditionTrue), cond("ResolvedRefs", metav1.ConditionTrue)}, StatusAccepted},
		{"accepted false resolved true", []metav1.Condition{cond("Accepted", metav1.ConditionFalse), cond("ResolvedRefs", metav1.ConditionTrue)}, StatusFailed},
		{"refs unresolved", []metav1.Condition{cond("Accepted", metav1.ConditionTrue), cond("ResolvedRefs", metav1.ConditionFalse)}, StatusPending},
		{"programmed is not the route condition", []metav1.Condition{cond("Accepted", metav1.ConditionTrue), cond("Programmed", metav1.ConditionTrue)}, StatusPending},
		{"only resolved", []metav1.Condition{cond("ResolvedRefs", metav1.ConditionTrue)}, StatusUnknown},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Derive(consolev1.KindHTTPRoute, tc.conds); got != tc.want {
				t.Fatalf("Derive(HTTPRoute) = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestDerive_AcceptedFalseAlwaysFails(t *testing.T) {
	others := []metav1.ConditionStatus{metav1.ConditionTrue, metav1.ConditionFalse, metav1.ConditionUnknown}
	for _, kind := range consolev1.Kinds() {
		for _, s := range others {
			conds := []metav1.Condition{
				cond("Programmed", s),
				cond("ResolvedRefs", s),
				cond("Accepted", metav1.ConditionFalse),
			}
			if got := Derive(kind, conds); got != StatusFailed {
				t.Fatalf("%s with secondary %s: got %s, want Failed", kind, s, got)
			}
		}
	}
}

func TestDerive_UnknownKind(t *testing.T) {
	conds := []metav1.Condition{cond("Accepted", metav1.ConditionTrue)}
	if got := Derive(consolev1.Kind("TCPRoute"), conds); got != StatusUnknown {
		t.Fatalf("got %s, want Unknown", got)
	}
}

func TestRouteConditions_FirstParentWins(t *testing.T) {
	route := &gatewayv1.HTTPRoute{
		Status: gatewayv1.HTTPRouteStatus{RouteStatus: gatewayv1.RouteStatus{
			Parents: []gatewayv1.RouteParentStatus{
				{Conditions: []metav1.Condition{cond("Accepted", metav1.ConditionTrue), cond("ResolvedRefs", metav1.ConditionTrue)}},
				{Conditions: []metav1.Condition{cond("Accepted", metav1.ConditionFalse)}},
			},
		}},
	}
	if got := DeriveHTTPRoute(RouteConditions(route)); got != StatusAccepted {
		t.Fatalf("got %s, want Accepted", got)
	}
	if RouteConditions(nil) != nil {
		t.Fatalf("expected nil conditions for nil route")
	}
}

func TestSummarize(t *testing.T) {
	conds := []metav1.Condition{
		{Type: "Accepted", Status: metav1.ConditionTrue, Reason: "Accepted", Message: "ok"},
		cond("Programmed", metav1.ConditionFalse),
	}
	s := Summarize(consolev1.KindGateway, conds)
	if s.Status != StatusPending {
		t.Fatalf("status = %s", s.Status)
	}
	if s.Conditions["Accepted"] != "True" || s.Conditions["Programmed"] != "False" {
		t.Fatalf("unexpected conditions: %+v", s.Conditions)
	}
	if s.Reason != "Accepted" || s.Message != "ok" {
		t.Fatalf("unexpected reason/message: %q %q", s.Reason, s.Message)
	}
	if empty := Summarize(consolev1.KindHTTPRoute, nil); empty.Status != StatusUnknown || empty.Conditions != nil {
		t.Fatalf("unexpected empty summary: %+v", empty)
	}
}
