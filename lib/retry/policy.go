package retry

import (
	"context"
	"time"
)

// Error code ranges. Codes below FatalError are transient and may succeed when retried.
const (
	TransientError uint32 = 100000
	FatalError     uint32 = 200000
)

// IRetryPolicy decides whether and when a failed operation is retried
type IRetryPolicy interface {
	// CanRetry reports whether an operation that failed with the given error code may be retried
	CanRetry(code uint32) bool
	// RetryDelay returns how long to wait before the given retry (starting at 1)
	RetryDelay(attempt uint32) time.Duration
}

// TransientErrorsPolicy retries every error below FatalError with a linearly growing delay.
type TransientErrorsPolicy struct {
	Enabled   bool
	BaseDelay time.Duration
}

// NewTransientErrorsPolicy returns an enabled policy with a base delay of one second
func NewTransientErrorsPolicy() *TransientErrorsPolicy {
	return &TransientErrorsPolicy{
		Enabled:   true,
		BaseDelay: time.Second,
	}
}

func (p *TransientErrorsPolicy) CanRetry(code uint32) bool {
	return p.Enabled && code < FatalError
}

func (p *TransientErrorsPolicy) RetryDelay(attempt uint32) time.Duration {
	return p.BaseDelay * time.Duration(attempt)
}

// Do runs fn until it succeeds, the policy refuses a retry, maxAttempts is reached or ctx is done.
// codeOf maps the returned error to the code passed to CanRetry. The last error is returned.
func Do(ctx context.Context, policy IRetryPolicy, maxAttempts uint32, codeOf func(error) uint32, fn func() error) error {
	var err error
	for attempt := uint32(1); ; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if policy == nil || attempt >= maxAttempts || !policy.CanRetry(codeOf(err)) {
			return err
		}

		timer := time.NewTimer(policy.RetryDelay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
	}
}
