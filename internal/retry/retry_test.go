package retry

import (
	"context"
	"errors"
	"net"
	"reflect"
	"sync"
	"syscall"
	"testing"
	"time"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/utils/clock"

	"github.com/anvil-platform/gateway-console/internal/apperr"
)

// recordingClock fires timers immediately and remembers the requested delays.
type recordingClock struct {
	clock.RealClock
	mu     sync.Mutex
	delays []time.Duration
}

func (c *recordingClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	c.delays = append(c.delays, d)
	c.mu.Unlock()
	ch := make(chan time.Time, 1)
	ch <- time.Now()
	return ch
}

func newTestExecutor() (*Executor, *recordingClock) {
	clk := &recordingClock{}
	return &Executor{Clock: clk}, clk
}

var errRefused = &net.OpError{Op: "dial", Net: "tcp", Err: syscall.ECONNREFUSED}

func TestDo_RetryableErrorUsesMaxAttemptsPlusOne(t *testing.T) {
	e, clk := newTestExecutor()
	policy := Policy{MaxAttempts: 3, InitialDelay: time.Second, MaxDelay: 5 * time.Second, BackoffMultiplier: 2}

	calls := 0
	_, err := Do(context.Background(), e, "list", policy, nil, func(ctx context.Context) (int, error) {
		calls++
		return 0, errRefused
	})
	if calls != 4 {
		t.Fatalf("expected 4 attempts, got %d", calls)
	}

	var exhausted *ExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("expected ExhaustedError, got %T: %v", err, err)
	}
	if exhausted.Attempts != 4 {
		t.Fatalf("expected attempt count 4, got %d", exhausted.Attempts)
	}
	if !errors.Is(err, apperr.ErrRetriesExhausted) {
		t.Fatalf("expected error to match ErrRetriesExhausted")
	}
	if !errors.Is(err, syscall.ECONNREFUSED) {
		t.Fatalf("expected last error to be preserved: %v", err)
	}
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}
	if !reflect.DeepEqual(clk.delays, want) {
		t.Fatalf("delays = %v, want %v", clk.delays, want)
	}
}

func TestDo_NonRetryableStopsImmediately(t *testing.T) {
	e, clk := newTestExecutor()
	policy := Policy{MaxAttempts: 10, InitialDelay: time.Millisecond, MaxDelay: time.Second, BackoffMultiplier: 2}
	conflict := apierrors.NewConflict(schema.GroupResource{Resource: "gateways"}, "gw", errors.New("stale"))

	calls := 0
	_, err := Do(context.Background(), e, "replace", policy, nil, func(ctx context.Context) (string, error) {
		calls++
		return "", conflict
	})
	if calls != 1 {
		t.Fatalf("expected 1 attempt, got %d", calls)
	}
	if err != error(conflict) {
		t.Fatalf("expected the original error, got %v", err)
	}
	if len(clk.delays) != 0 {
		t.Fatalf("expected no sleeps, got %v", clk.delays)
	}
}

func TestDo_SucceedsAfterTransientFailures(t *testing.T) {
	e, _ := newTestExecutor()
	policy := Policy{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: time.Second, BackoffMultiplier: 2}

	calls := 0
	v, err := Do(context.Background(), e, "create", policy, nil, func(ctx context.Context) (string, error) {
		calls++
		if calls <= 2 {
			return "", apperr.New(apperr.KindUnavailable, "connection failed")
		}
		return "created", nil
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if v != "created" || calls != 3 {
		t.Fatalf("got %q after %d calls", v, calls)
	}
}

func TestDo_InvalidPolicy(t *testing.T) {
	e, _ := newTestExecutor()
	calls := 0
	_, err := Do(context.Background(), e, "get", Policy{}, nil, func(ctx context.Context) (int, error) {
		calls++
		return 1, nil
	})
	if err == nil || calls != 0 {
		t.Fatalf("expected validation error without calling op, err=%v calls=%d", err, calls)
	}
}

func TestDo_ContextCancelledDuringBackoff(t *testing.T) {
	e := &Executor{Clock: clock.RealClock{}}
	policy := Policy{MaxAttempts: 5, InitialDelay: time.Hour, MaxDelay: time.Hour, BackoffMultiplier: 1}
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	_, err := Do(ctx, e, "get", policy, nil, func(ctx context.Context) (int, error) {
		calls++
		cancel()
		return 0, errRefused
	})
	if err == nil || !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 attempt, got %d", calls)
	}
}

func TestRun_ZeroRetries(t *testing.T) {
	e, _ := newTestExecutor()
	calls := 0
	err := Run(context.Background(), e, "delete", MutationPolicy(), Never, func(ctx context.Context) error {
		calls++
		return errRefused
	})
	if err == nil || calls != 1 {
		t.Fatalf("expected immediate failure, err=%v calls=%d", err, calls)
	}
}

func TestPolicy_DelaysAreCapped(t *testing.T) {
	p := Policy{MaxAttempts: 6, InitialDelay: 1000 * time.Millisecond, MaxDelay: 5000 * time.Millisecond, BackoffMultiplier: 2}
	got := p.Delays(6)
	want := []time.Duration{1000 * time.Millisecond, 2000 * time.Millisecond, 4000 * time.Millisecond, 5000 * time.Millisecond, 5000 * time.Millisecond, 5000 * time.Millisecond}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Delays = %v, want %v", got, want)
	}
}

func TestPolicy_Validate(t *testing.T) {
	cases := []struct {
		name string
		p    Policy
		ok   bool
	}{
		{"default", DefaultPolicy(), true},
		{"mutation", MutationPolicy(), true},
		{"zero attempts", Policy{MaxAttempts: 0, InitialDelay: time.Second, MaxDelay: time.Second, BackoffMultiplier: 1}, false},
		{"zero delay", Policy{MaxAttempts: 1, MaxDelay: time.Second, BackoffMultiplier: 1}, false},
		{"max below initial", Policy{MaxAttempts: 1, InitialDelay: 2 * time.Second, MaxDelay: time.Second, BackoffMultiplier: 1}, false},
		{"shrinking", Policy{MaxAttempts: 1, InitialDelay: time.Second, MaxDelay: time.Second, BackoffMultiplier: 0.5}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.p.Validate(); (err == nil) != tc.ok {
				t.Fatalf("Validate() = %v, want ok=%v", err, tc.ok)
			}
		})
	}
}

func TestIsRetryable(t *testing.T) {
	gr := schema.GroupResource{Group: "gateway.networking.k8s.io", Resource: "httproutes"}
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"refused", errRefused, true},
		{"unreachable", &net.OpError{Op: "dial", Err: syscall.EHOSTUNREACH}, true},
		{"dns not found", &net.DNSError{Name: "api.cluster", IsNotFound: true}, true},
		{"deadline", context.DeadlineExceeded, true},
		{"server timeout", apierrors.NewServerTimeout(gr, "list", 2), true},
		{"too many requests", apierrors.NewTooManyRequests("slow down", 1), true},
		{"api not found", apierrors.NewNotFound(gr, "r"), false},
		{"conflict", apierrors.NewConflict(gr, "r", errors.New("x")), false},
		{"forbidden", apierrors.NewForbidden(gr, "r", errors.New("x")), false},
		{"validation", apperr.Validation("bad name"), false},
		{"internal", errors.New("boom"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsRetryable(tc.err); got != tc.want {
				t.Fatalf("IsRetryable(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}
