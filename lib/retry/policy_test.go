package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTransientErrorsPolicyDefaults(t *testing.T) {
	p := NewTransientErrorsPolicy()

	assert.True(t, p.Enabled)
	assert.Equal(t, time.Second, p.BaseDelay)
	assert.True(t, p.CanRetry(0))
	assert.True(t, p.CanRetry(TransientError+5))
	assert.True(t, p.CanRetry(FatalError-1))
	assert.False(t, p.CanRetry(FatalError))
	assert.False(t, p.CanRetry(FatalError+1))
}

func TestTransientErrorsPolicyDelay(t *testing.T) {
	p := &TransientErrorsPolicy{Enabled: true, BaseDelay: 250 * time.Millisecond}

	assert.Equal(t, time.Duration(0), p.RetryDelay(0))
	assert.Equal(t, 250*time.Millisecond, p.RetryDelay(1))
	assert.Equal(t, time.Second, p.RetryDelay(4))
}

func TestDisabledPolicyNeverRetries(t *testing.T) {
	p := &TransientErrorsPolicy{Enabled: false, BaseDelay: time.Second}
	assert.False(t, p.CanRetry(0))
	assert.False(t, p.CanRetry(TransientError))
}

func TestDo(t *testing.T) {
	errTransient := errors.New("transient")
	errFatal := errors.New("fatal")
	codeOf := func(err error) uint32 {
		if errors.Is(err, errFatal) {
			return FatalError
		}
		return TransientError
	}
	p := &TransientErrorsPolicy{Enabled: true, BaseDelay: time.Millisecond}

	t.Run("SucceedsAfterRetries", func(t *testing.T) {
		calls := 0
		err := Do(context.Background(), p, 5, codeOf, func() error {
			calls++
			if calls < 3 {
				return errTransient
			}
			return nil
		})
		assert.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("StopsOnFatal", func(t *testing.T) {
		calls := 0
		err := Do(context.Background(), p, 5, codeOf, func() error {
			calls++
			return errFatal
		})
		assert.ErrorIs(t, err, errFatal)
		assert.Equal(t, 1, calls)
	})

	t.Run("StopsAtMaxAttempts", func(t *testing.T) {
		calls := 0
		err := Do(context.Background(), p, 3, codeOf, func() error {
			calls++
			return errTransient
		})
		assert.ErrorIs(t, err, errTransient)
		assert.Equal(t, 3, calls)
	})

	t.Run("StopsOnCancel", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		slow := &TransientErrorsPolicy{Enabled: true, BaseDelay: time.Hour}
		calls := 0
		err := Do(ctx, slow, 10, codeOf, func() error {
			calls++
			return errTransient
		})
		assert.ErrorIs(t, err, errTransient)
		assert.Equal(t, 1, calls)
	})

	t.Run("NilPolicy", func(t *testing.T) {
		calls := 0
		_ = Do(context.Background(), nil, 10, codeOf, func() error {
			calls++
			return errTransient
		})
		assert.Equal(t, 1, calls)
	})
}
