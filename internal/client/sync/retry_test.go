package sync

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/vmartynov/offsync/internal/client/remote"
)

func TestShouldRetry_Classification(t *testing.T) {
	p := DefaultRetryPolicy()

	tests := []struct {
		kind remote.ErrorKind
		want bool
	}{
		{remote.KindNetworkUnavailable, true},
		{remote.KindTransientServerError, true},
		{remote.KindRateLimited, true},
		{remote.KindAuthenticationFailed, false},
		{remote.KindPermissionDenied, false},
		{remote.KindValidationRejected, false},
		{remote.KindPreconditionFailed, false},
		{remote.KindNotFound, false},
	}

	for _, tc := range tests {
		t.Run(string(tc.kind), func(t *testing.T) {
			assert.Equal(t, tc.want, p.ShouldRetry(tc.kind, 0))
		})
	}
}

func TestShouldRetry_AttemptCap(t *testing.T) {
	p := DefaultRetryPolicy()

	assert.True(t, p.ShouldRetry(remote.KindRateLimited, 0))
	assert.True(t, p.ShouldRetry(remote.KindRateLimited, p.MaxAttempts-2))
	assert.False(t, p.ShouldRetry(remote.KindRateLimited, p.MaxAttempts-1))
	assert.False(t, p.ShouldRetry(remote.KindRateLimited, p.MaxAttempts))
}

func TestDelay_ExponentialWithJitter(t *testing.T) {
	p := &RetryPolicy{
		Base:        time.Second,
		MaxDelay:    30 * time.Second,
		MaxAttempts: 4,
		jitter:      func() float64 { return 0.5 },
	}

	assert.Equal(t, 1500*time.Millisecond, p.Delay(0))
	assert.Equal(t, 2500*time.Millisecond, p.Delay(1))
	assert.Equal(t, 4500*time.Millisecond, p.Delay(2))
}

func TestDelay_CappedAtMax(t *testing.T) {
	p := &RetryPolicy{
		Base:        time.Second,
		MaxDelay:    30 * time.Second,
		MaxAttempts: 4,
		jitter:      func() float64 { return 0 },
	}

	assert.Equal(t, 30*time.Second, p.Delay(10))
}

func TestDelay_JitterBounded(t *testing.T) {
	p := DefaultRetryPolicy()

	for i := 0; i < 100; i++ {
		d := p.Delay(0)
		assert.GreaterOrEqual(t, d, p.Base)
		assert.Less(t, d, 2*p.Base)
	}
}
