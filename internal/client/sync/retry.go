package sync

import (
	"math"
	"math/rand"
	"time"

	"github.com/vmartynov/offsync/internal/client/remote"
)

// RetryPolicy decides whether a failed remote operation is worth another
// attempt and how long to wait before it. Failed records are never retried
// within the cycle that failed them; the delay gates eligibility for the
// next cycle instead.
type RetryPolicy struct {
	// Base is the unit of the exponential backoff, and the width of the
	// jitter window.
	Base time.Duration

	// MaxDelay caps the computed backoff.
	MaxDelay time.Duration

	// MaxAttempts is the hard cap; once reached the record stays in the
	// failed state for user-visible surfacing instead of silent retry.
	MaxAttempts int

	// jitter returns a uniform float in [0, 1). Overridable in tests.
	jitter func() float64
}

// DefaultRetryPolicy returns the standard policy: 1s base, 30s cap,
// four attempts.
func DefaultRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		Base:        time.Second,
		MaxDelay:    30 * time.Second,
		MaxAttempts: 4,
		jitter:      rand.Float64,
	}
}

// retryableKinds classifies the error taxonomy. Authentication failures are
// escalated to the session collaborator, never retried here.
var retryableKinds = map[remote.ErrorKind]bool{
	remote.KindNetworkUnavailable:   true,
	remote.KindTransientServerError: true,
	remote.KindRateLimited:          true,

	remote.KindAuthenticationFailed: false,
	remote.KindPermissionDenied:     false,
	remote.KindValidationRejected:   false,
	remote.KindPreconditionFailed:   false,
	remote.KindNotFound:             false,
}

// ShouldRetry reports whether an operation that failed with the given error
// classification on attempt attemptNumber (0-based) should be attempted again.
func (p *RetryPolicy) ShouldRetry(kind remote.ErrorKind, attemptNumber int) bool {
	if attemptNumber+1 >= p.MaxAttempts {
		return false
	}
	return retryableKinds[kind]
}

// Delay computes min(base * 2^attemptNumber + jitter, maxDelay) with jitter
// drawn uniformly from [0, base).
func (p *RetryPolicy) Delay(attemptNumber int) time.Duration {
	jitterFn := p.jitter
	if jitterFn == nil {
		jitterFn = rand.Float64
	}

	backoff := float64(p.Base) * math.Pow(2, float64(attemptNumber))
	backoff += jitterFn() * float64(p.Base)

	if d := time.Duration(backoff); d < p.MaxDelay {
		return d
	}
	return p.MaxDelay
}
