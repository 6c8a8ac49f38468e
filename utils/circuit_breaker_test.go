package utils

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCircuitBreaker_StaysClosedOnSuccess(t *testing.T) {
	cb := NewCircuitBreaker("test")
	ctx := context.Background()

	for i := 0; i < 50; i++ {
		require.NoError(t, cb.Execute(ctx, func() error { return nil }))
	}

	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_OpensAfterFailureRatio(t *testing.T) {
	cb := NewCircuitBreaker("test")
	ctx := context.Background()
	transportDown := errors.New("transport down")

	for i := 0; i < 20; i++ {
		err := cb.Execute(ctx, func() error { return transportDown })
		assert.ErrorIs(t, err, transportDown)
	}

	assert.Equal(t, StateOpen, cb.State())

	// Once open, requests are rejected without calling through.
	called := false
	err := cb.Execute(ctx, func() error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
}

func TestCircuitBreaker_PropagatesRequestError(t *testing.T) {
	cb := NewCircuitBreaker("test")
	boom := errors.New("boom")

	err := cb.Execute(context.Background(), func() error { return boom })

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, StateClosed, cb.State())
}
