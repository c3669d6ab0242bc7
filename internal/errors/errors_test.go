package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapErrorKeepsType(t *testing.T) {
	base := NewNotFoundError("feeling lunar_dust", nil)
	wrapped := WrapError(base, "purchase", ErrorTypeError)

	require.Error(t, wrapped)
	assert.True(t, IsNotFoundError(wrapped))
	assert.Equal(t, "NOT_FOUND", wrapped.(*AppError).Code)
	assert.Equal(t, "purchase: feeling lunar_dust", wrapped.Error())
}

func TestWrapErrorForeign(t *testing.T) {
	wrapped := WrapError(fmt.Errorf("disk"), "load catalog", ErrorTypeValidation)
	assert.True(t, IsValidationError(wrapped))
	assert.Nil(t, WrapError(nil, "noop", ErrorTypeError))
}

func TestTypeOf(t *testing.T) {
	assert.Equal(t, ErrorTypeClosed, TypeOf(NewClosedError("abc")))
	assert.Equal(t, ErrorTypeError, TypeOf(errors.New("plain")))
	assert.True(t, IsClosedError(fmt.Errorf("ctx: %w", NewClosedError("abc"))))
}
