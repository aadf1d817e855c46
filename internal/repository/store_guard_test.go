package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreGuardPassesThrough(t *testing.T) {
	guard := NewStoreGuard(GuardConfig{MaxConcurrent: 2, BreakerFailures: 3, BreakerTimeout: time.Second}, nil)

	calls := 0
	err := guard.Do(context.Background(), func(context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestStoreGuardDoesNotRetry(t *testing.T) {
	guard := NewStoreGuard(GuardConfig{MaxConcurrent: 1, BreakerFailures: 10}, nil)
	boom := errors.New("boom")

	calls := 0
	err := guard.Do(context.Background(), func(context.Context) error {
		calls++
		return boom
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestStoreGuardOpensAfterConsecutiveFailures(t *testing.T) {
	guard := NewStoreGuard(GuardConfig{BreakerFailures: 2, BreakerTimeout: time.Minute}, nil)
	boom := errors.New("boom")

	calls := 0
	failing := func(context.Context) error {
		calls++
		return boom
	}
	for i := 0; i < 2; i++ {
		require.Error(t, guard.Do(context.Background(), failing))
	}

	err := guard.Do(context.Background(), failing)
	require.Error(t, err)
	assert.Equal(t, 2, calls)
}

func TestNilStoreGuardRunsDirectly(t *testing.T) {
	var guard *StoreGuard
	called := false
	require.NoError(t, guard.Do(context.Background(), func(context.Context) error {
		called = true
		return nil
	}))
	assert.True(t, called)
}
