package errors_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	apperrors "github.com/ayarotskyi/neochess/internal/errors"
)

func TestAppError_RetryableOnlyForPlatformNetwork(t *testing.T) {
	assert.True(t, apperrors.NewPlatformNetworkError(errors.New("boom")).Retryable())
	assert.False(t, apperrors.NewPlatformAPIError(403, "forbidden").Retryable())
	assert.False(t, apperrors.NewPlatformParseError(errors.New("bad json")).Retryable())
	assert.False(t, apperrors.NewRepositoryDatabaseError(errors.New("conn refused")).Retryable())
	assert.False(t, apperrors.NewInvalidFenError("garbage").Retryable())
	assert.False(t, apperrors.NewInvalidPgnError("illegal move").Retryable())
}

func TestAppError_UnwrapExposesCause(t *testing.T) {
	cause := errors.New("root cause")
	err := apperrors.NewPlatformNetworkError(cause)

	assert.ErrorIs(t, err, cause)
}

func TestAppError_ErrorMessageIncludesCodeAndMessage(t *testing.T) {
	err := apperrors.NewInvalidFenError("zz")
	assert.Contains(t, err.Error(), apperrors.ErrCodeInvalidFen)
	assert.Contains(t, err.Error(), "zz")
}
