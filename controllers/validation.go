package controllers

import (
	"strings"

	"k8s.io/apimachinery/pkg/util/validation"
	"k8s.io/apimachinery/pkg/util/validation/field"

	consolev1 "github.com/anvil-platform/gateway-console/api/v1"
	"github.com/anvil-platform/gateway-console/internal/apperr"
)

// Gateway API caps the number of rules per route.
const maxRouteRules = 16

func validateNamespace(namespace string) error {
	if errs := validation.IsDNS1123Label(namespace); len(errs) > 0 {
		return apperr.Validation("invalid namespace %q: %s", namespace, strings.Join(errs, "; "))
	}
	return nil
}

func validateRef(ref consolev1.ResourceRef) error {
	var errs field.ErrorList
	if ref.Namespace == "" {
		errs = append(errs, field.Required(field.NewPath("metadata", "namespace"), ""))
	} else {
		for _, msg := range validation.IsDNS1123Label(ref.Namespace) {
			errs = append(errs, field.Invalid(field.NewPath("metadata", "namespace"), ref.Namespace, msg))
		}
	}
	if ref.Name == "" {
		errs = append(errs, field.Required(field.NewPath("metadata", "name"), ""))
	} else {
		for _, msg := range validation.IsDNS1123Subdomain(ref.Name) {
			errs = append(errs, field.Invalid(field.NewPath("metadata", "name"), ref.Name, msg))
		}
	}
	return toValidationError(ref.Kind, errs)
}

// validateHostname accepts plain and wildcard DNS names.
func validateHostname(path *field.Path, hostname string) field.ErrorList {
	var msgs []string
	if strings.HasPrefix(hostname, "*.") {
		msgs = validation.IsWildcardDNS1123Subdomain(hostname)
	} else {
		msgs = validation.IsDNS1123Subdomain(hostname)
	}
	var errs field.ErrorList
	for _, msg := range msgs {
		errs = append(errs, field.Invalid(path, hostname, msg))
	}
	return errs
}

func toValidationError(kind consolev1.Kind, errs field.ErrorList) error {
	if len(errs) == 0 {
		return nil
	}
	return apperr.Wrap(apperr.KindValidation, errs.ToAggregate(), "invalid %s", kind)
}
