package apperr

import (
	"context"
	"errors"
	"net"
	"syscall"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	utilnet "k8s.io/apimachinery/pkg/util/net"
)

// FromKube classifies an error returned by a Kubernetes client call. Errors
// that are already classified are returned unchanged.
func FromKube(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	var classified *Error
	if errors.As(err, &classified) {
		return err
	}
	return Wrap(kubeKind(err), err, format, args...)
}

func kubeKind(err error) Kind {
	switch {
	case apierrors.IsNotFound(err):
		return KindNotFound
	case apierrors.IsAlreadyExists(err), apierrors.IsConflict(err):
		return KindConflict
	case apierrors.IsForbidden(err), apierrors.IsUnauthorized(err):
		return KindPermissionDenied
	case apierrors.IsInvalid(err), apierrors.IsBadRequest(err):
		return KindValidation
	case apierrors.IsTimeout(err), apierrors.IsServerTimeout(err):
		return KindTimeout
	case apierrors.IsServiceUnavailable(err), apierrors.IsTooManyRequests(err):
		return KindUnavailable
	case IsNetworkUnavailable(err):
		return KindUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	return KindInternal
}

// IsNetworkUnavailable reports transport-level failures: refused or reset
// connections, unreachable hosts and unresolvable names.
func IsNetworkUnavailable(err error) bool {
	if err == nil {
		return false
	}
	if utilnet.IsConnectionRefused(err) || utilnet.IsConnectionReset(err) || utilnet.IsProbableEOF(err) {
		return true
	}
	if errors.Is(err, syscall.EHOSTUNREACH) || errors.Is(err, syscall.ENETUNREACH) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}
