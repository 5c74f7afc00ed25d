package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromError(t *testing.T) {
	assert.Nil(t, FromError(nil))

	wrapped := fmt.Errorf("loading: %w", Clone(ErrNotFound, "schedule not found"))
	e := FromError(wrapped)
	assert.Equal(t, ErrNotFound.Code, e.Code)
	assert.Equal(t, "schedule not found", e.Message)

	plain := FromError(errors.New("boom"))
	assert.Equal(t, ErrInternal.Code, plain.Code)
	assert.Equal(t, http.StatusInternalServerError, plain.Status)
	assert.EqualError(t, plain, "internal server error: boom")
}

func TestCloneKeepsOriginal(t *testing.T) {
	clone := Clone(ErrValidation, "rooms is required")
	assert.Equal(t, "rooms is required", clone.Message)
	assert.Equal(t, "validation failed", ErrValidation.Message)
	assert.Equal(t, ErrValidation.Message, Clone(ErrValidation, "").Message)
	assert.Nil(t, Clone(nil, "x"))
}

func TestIs(t *testing.T) {
	assert.True(t, Is(Clone(ErrCacheMiss, "gone"), ErrCacheMiss))
	assert.True(t, Is(fmt.Errorf("get: %w", ErrCacheMiss), ErrCacheMiss))
	assert.False(t, Is(ErrNotFound, ErrCacheMiss))
	assert.False(t, Is(errors.New("x"), ErrCacheMiss))
	assert.False(t, Is(nil, ErrCacheMiss))
}

func TestRetryable(t *testing.T) {
	assert.True(t, Retryable(Clone(ErrInternal, "db down")))
	assert.True(t, Retryable(ErrServiceUnavailable))
	assert.True(t, Retryable(context.Canceled))
	assert.False(t, Retryable(ErrTimeout))
	assert.False(t, Retryable(ErrValidation))
	assert.False(t, Retryable(ErrNoValidSlots))
	assert.False(t, Retryable(nil))
}
