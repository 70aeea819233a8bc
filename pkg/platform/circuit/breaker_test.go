package circuit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"esupervision/pkg/platform/sentinel"
)

func TestBreaker_InitialState(t *testing.T) {
	b := New("case-directory")
	assert.False(t, b.IsOpen())
	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, "case-directory", b.Name())
}

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	b := New("test", WithFailureThreshold(3))

	useFallback, change := b.RecordFailure()
	assert.False(t, useFallback)
	assert.False(t, change.Opened)

	useFallback, change = b.RecordFailure()
	assert.False(t, useFallback)
	assert.False(t, change.Opened)

	// Third failure opens the circuit
	useFallback, change = b.RecordFailure()
	assert.True(t, useFallback)
	assert.True(t, change.Opened)
	assert.True(t, b.IsOpen())
}

func TestBreaker_ClosesAfterSuccessThreshold(t *testing.T) {
	b := New("test", WithFailureThreshold(1), WithSuccessThreshold(2))

	b.RecordFailure()
	assert.True(t, b.IsOpen())

	usePrimary, change := b.RecordSuccess()
	assert.False(t, usePrimary)
	assert.False(t, change.Closed)
	assert.True(t, b.IsOpen())

	usePrimary, change = b.RecordSuccess()
	assert.True(t, usePrimary)
	assert.True(t, change.Closed)
	assert.False(t, b.IsOpen())
}

func TestBreaker_SuccessResetsFailureCount(t *testing.T) {
	b := New("test", WithFailureThreshold(3))

	b.RecordFailure()
	b.RecordFailure()
	assert.False(t, b.IsOpen())

	b.RecordSuccess()

	b.RecordFailure()
	b.RecordFailure()
	assert.False(t, b.IsOpen())

	b.RecordFailure()
	assert.True(t, b.IsOpen())
}

func TestBreaker_FailureResetsSuccessCount(t *testing.T) {
	b := New("test", WithFailureThreshold(1), WithSuccessThreshold(3))

	b.RecordFailure()
	assert.True(t, b.IsOpen())

	b.RecordSuccess()
	b.RecordSuccess()

	// Failure resets success count (stays open)
	b.RecordFailure()
	assert.True(t, b.IsOpen())

	b.RecordSuccess()
	b.RecordSuccess()
	assert.True(t, b.IsOpen())
	b.RecordSuccess()
	assert.False(t, b.IsOpen())
}

func TestBreaker_Reset(t *testing.T) {
	b := New("test", WithFailureThreshold(1))

	b.RecordFailure()
	assert.True(t, b.IsOpen())

	b.Reset()
	assert.False(t, b.IsOpen())
	assert.Equal(t, StateClosed, b.State())
}

func TestBreaker_Execute(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("boom")

	t.Run("closed circuit passes calls through", func(t *testing.T) {
		b := New("test", WithFailureThreshold(2))
		calls := 0
		err := b.Execute(ctx, func(context.Context) error {
			calls++
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("open circuit fails fast without calling fn", func(t *testing.T) {
		b := New("test", WithFailureThreshold(1), WithProbeInterval(time.Hour))
		require.Error(t, b.Execute(ctx, func(context.Context) error { return boom }))
		require.True(t, b.IsOpen())

		calls := 0
		err := b.Execute(ctx, func(context.Context) error {
			calls++
			return nil
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, sentinel.ErrUnavailable)
		assert.Equal(t, 0, calls)
	})

	t.Run("probe is allowed after the interval and can close the circuit", func(t *testing.T) {
		b := New("test",
			WithFailureThreshold(1),
			WithSuccessThreshold(1),
			WithProbeInterval(time.Millisecond),
		)
		require.Error(t, b.Execute(ctx, func(context.Context) error { return boom }))
		require.True(t, b.IsOpen())

		time.Sleep(5 * time.Millisecond)
		err := b.Execute(ctx, func(context.Context) error { return nil })
		require.NoError(t, err)
		assert.False(t, b.IsOpen())
	})
}
