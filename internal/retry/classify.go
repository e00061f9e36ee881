package retry

import (
	"github.com/anvil-platform/gateway-console/internal/apperr"
)

// IsRetryable treats outages and timeouts as transient. Validation failures,
// missing resources, conflicts, permission errors and anything unclassified
// fail immediately.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	switch apperr.KindOf(apperr.FromKube(err, "")) {
	case apperr.KindUnavailable, apperr.KindTimeout:
		return true
	default:
		return false
	}
}

// Never disables retries for an operation.
func Never(error) bool { return false }
