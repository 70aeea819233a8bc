package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastPolicy() Policy {
	return Policy{MaxAttempts: 3, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond}
}

func TestDo_SucceedsAfterTransientFailures(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), fastPolicy(), func() error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestDo_StopsAtMaxAttempts(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), fastPolicy(), func() error {
		attempts++
		return errors.New("still broken")
	})
	require.Error(t, err)
	assert.Equal(t, 3, attempts)
}

func TestDo_PermanentErrorStopsImmediately(t *testing.T) {
	attempts := 0
	wrapped := errors.New("bad request")
	err := Do(context.Background(), fastPolicy(), func() error {
		attempts++
		return Permanent(wrapped)
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, wrapped)
	assert.Equal(t, 1, attempts)
}

func TestDo_HonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Do(ctx, Policy{MaxAttempts: 10, InitialInterval: time.Second, MaxInterval: time.Second}, func() error {
		return errors.New("transient")
	})
	require.Error(t, err)
}
