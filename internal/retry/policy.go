package retry

import (
	"fmt"
	"math"
	"time"

	"k8s.io/apimachinery/pkg/util/wait"
)

// Policy bounds how an operation is retried.
//
// MaxAttempts counts retries, not tries: an operation runs at most
// MaxAttempts+1 times.
type Policy struct {
	MaxAttempts       int           `json:"maxAttempts" yaml:"maxAttempts"`
	InitialDelay      time.Duration `json:"initialDelay" yaml:"initialDelay"`
	MaxDelay          time.Duration `json:"maxDelay" yaml:"maxDelay"`
	BackoffMultiplier float64       `json:"backoffMultiplier" yaml:"backoffMultiplier"`
}

// DefaultPolicy is used for reads against the cluster.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:       3,
		InitialDelay:      time.Second,
		MaxDelay:          5 * time.Second,
		BackoffMultiplier: 2,
	}
}

// MutationPolicy allows a single retry. Blindly retrying a create can itself
// produce a duplicate, so mutations stay close to one try.
func MutationPolicy() Policy {
	return Policy{
		MaxAttempts:       1,
		InitialDelay:      500 * time.Millisecond,
		MaxDelay:          time.Second,
		BackoffMultiplier: 2,
	}
}

func (p Policy) Validate() error {
	if p.MaxAttempts < 1 {
		return fmt.Errorf("retry policy: maxAttempts must be >= 1, got %d", p.MaxAttempts)
	}
	if p.InitialDelay <= 0 {
		return fmt.Errorf("retry policy: initialDelay must be > 0, got %s", p.InitialDelay)
	}
	if p.MaxDelay < p.InitialDelay {
		return fmt.Errorf("retry policy: maxDelay %s is below initialDelay %s", p.MaxDelay, p.InitialDelay)
	}
	if p.BackoffMultiplier < 1 {
		return fmt.Errorf("retry policy: backoffMultiplier must be >= 1, got %v", p.BackoffMultiplier)
	}
	return nil
}

// backoff returns the delay generator for p. Jitter is always zero so the
// sequence is deterministic.
func (p Policy) backoff() *wait.Backoff {
	return &wait.Backoff{
		Duration: p.InitialDelay,
		Factor:   p.BackoffMultiplier,
		Jitter:   0,
		Steps:    math.MaxInt32,
		Cap:      p.MaxDelay,
	}
}

// Delays returns the first n delays the policy sleeps between attempts.
func (p Policy) Delays(n int) []time.Duration {
	b := p.backoff()
	out := make([]time.Duration, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, b.Step())
	}
	return out
}
