package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeOf_WrappedChain(t *testing.T) {
	base := errors.New("connection refused")
	err := fmt.Errorf("place order: %w", Wrap(CodeStoreUnavailable, "catalog unavailable", base))

	assert.Equal(t, CodeStoreUnavailable, CodeOf(err))
	assert.True(t, IsCode(err, CodeStoreUnavailable))
	assert.ErrorIs(t, err, base)
	assert.Contains(t, err.Error(), "catalog unavailable")
}

func TestCodeOf_PlainError(t *testing.T) {
	assert.Equal(t, Code(""), CodeOf(errors.New("boom")))
	assert.False(t, IsCode(nil, CodeNotFound))
}

func TestRetryable(t *testing.T) {
	assert.True(t, Retryable(New(CodeStoreUnavailable, "down")))
	assert.True(t, Retryable(New(CodeConflict, "busy")))
	assert.False(t, Retryable(New(CodeInsufficientStock, "short")))
	assert.False(t, Retryable(errors.New("unknown")))
}

func TestNewf_Message(t *testing.T) {
	err := Newf(CodeNotFound, "product not found: %s", "Robe")
	assert.Equal(t, "product not found: Robe", err.Error())
}
