package domain

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainError(t *testing.T) {
	t.Run("NewDomainError", func(t *testing.T) {
		err := NewDomainError(ErrCodeNotFound, "target not found")

		assert.NotNil(t, err)
		assert.Equal(t, ErrCodeNotFound, err.Code)
		assert.Equal(t, "target not found", err.Message)
		assert.Equal(t, "[NOT_FOUND] target not found", err.Error())
		assert.NotNil(t, err.Details)
		assert.Nil(t, err.Err)
	})

	t.Run("NewDomainErrorWithCause", func(t *testing.T) {
		cause := errors.New("database connection failed")
		err := NewDomainErrorWithCause(ErrCodeRepository, "failed to save target", cause)

		assert.NotNil(t, err)
		assert.Equal(t, ErrCodeRepository, err.Code)
		assert.Equal(t, "failed to save target", err.Message)
		assert.Equal(t, "[REPOSITORY_ERROR] failed to save target: database connection failed", err.Error())
		assert.Equal(t, cause, err.Unwrap())
	})

	t.Run("WithDetails", func(t *testing.T) {
		err := NewDomainError(ErrCodeInvalidInput, "invalid rate limit").
			WithDetails("field", "dailyRateLimit").
			WithDetails("value", -1)

		assert.Equal(t, "dailyRateLimit", err.Details["field"])
		assert.Equal(t, -1, err.Details["value"])
	})
}

func TestCommonErrors(t *testing.T) {
	t.Run("ErrNotFound", func(t *testing.T) {
		err := ErrNotFound("target", "123")

		assert.Equal(t, ErrCodeNotFound, err.Code)
		assert.Contains(t, err.Message, "target not found")
		assert.Equal(t, "target", err.Details["resource"])
		assert.Equal(t, "123", err.Details["id"])
	})

	t.Run("ErrInvalidInput", func(t *testing.T) {
		err := ErrInvalidInput("projectId", "must not be empty")

		assert.Equal(t, ErrCodeInvalidInput, err.Code)
		assert.Contains(t, err.Message, "invalid projectId")
		assert.Contains(t, err.Message, "must not be empty")
	})

	t.Run("ErrBusinessRule", func(t *testing.T) {
		err := ErrBusinessRule("daily_quota", "dailyRequestsUsed exceeds dailyRateLimit")

		assert.Equal(t, ErrCodeBusinessRule, err.Code)
		assert.Contains(t, err.Message, "business rule violation")
	})

	t.Run("ErrRepository", func(t *testing.T) {
		cause := errors.New("connection timeout")
		err := ErrRepository("save_target", cause)

		assert.Equal(t, ErrCodeRepository, err.Code)
		assert.Contains(t, err.Message, "repository error in save_target")
		assert.Equal(t, cause, err.Unwrap())
	})

	t.Run("ErrInvalidState", func(t *testing.T) {
		err := ErrInvalidState("target", "disabled", "acquire")

		assert.Equal(t, ErrCodeInvalidState, err.Code)
		assert.Contains(t, err.Message, "cannot acquire in state disabled")
	})
}

func TestErrorHelpers(t *testing.T) {
	t.Run("IsErrorCode", func(t *testing.T) {
		err := ErrNotFound("target", "123")

		assert.True(t, IsErrorCode(err, ErrCodeNotFound))
		assert.False(t, IsErrorCode(err, ErrCodeInvalidInput))

		standardErr := errors.New("some error")
		assert.False(t, IsErrorCode(standardErr, ErrCodeNotFound))
	})

	t.Run("GetErrorCode", func(t *testing.T) {
		err := ErrInvalidInput("model", "invalid format")

		assert.Equal(t, ErrCodeInvalidInput, GetErrorCode(err))

		standardErr := errors.New("some error")
		assert.Equal(t, ErrorCode(""), GetErrorCode(standardErr))
	})
}

func TestDispatchError(t *testing.T) {
	t.Run("status and retry mapping", func(t *testing.T) {
		cases := []struct {
			kind      DispatchErrorKind
			status    int
			retryable bool
		}{
			{KindInvalidRequest, http.StatusBadRequest, false},
			{KindAuthentication, http.StatusUnauthorized, false},
			{KindNotFound, http.StatusNotFound, false},
			{KindConflict, http.StatusConflict, true},
			{KindRateLimit, http.StatusTooManyRequests, true},
			{KindUpstreamServer, http.StatusInternalServerError, true},
			{KindUpstreamUnavailable, http.StatusServiceUnavailable, true},
			{KindUpstreamResponse, http.StatusInternalServerError, true},
			{KindConfiguration, http.StatusInternalServerError, false},
			{KindNoTargetsAvailable, http.StatusServiceUnavailable, false},
			{KindUnknownUpstream, http.StatusInternalServerError, true},
			{KindMaxRetriesExceeded, http.StatusInternalServerError, false},
		}

		for _, c := range cases {
			err := NewDispatchError(c.kind, "boom")
			assert.Equal(t, c.status, err.HTTPStatus(), c.kind)
			assert.Equal(t, c.retryable, err.Retryable(), c.kind)
		}
	})

	t.Run("NewDispatchErrorWithCause wraps and formats", func(t *testing.T) {
		cause := errors.New("dial tcp: timeout")
		err := NewDispatchErrorWithCause(KindUpstreamServer, "upstream call failed", cause)

		assert.Equal(t, cause, err.Unwrap())
		assert.Contains(t, err.Error(), "upstream call failed")
		assert.Contains(t, err.Error(), "dial tcp: timeout")
	})

	t.Run("AsDispatchError passes through existing classification", func(t *testing.T) {
		original := NewDispatchError(KindRateLimit, "quota exceeded")
		assert.Same(t, original, AsDispatchError(original))
	})

	t.Run("AsDispatchError falls back to unknown upstream", func(t *testing.T) {
		plain := errors.New("some unclassified failure")
		de := AsDispatchError(plain)

		assert.Equal(t, KindUnknownUpstream, de.Kind)
		assert.Equal(t, plain, de.Unwrap())
	})
}
