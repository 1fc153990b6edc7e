package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClientError(t *testing.T) {
	t.Run("New creates error correctly", func(t *testing.T) {
		err := New(ErrorTypeMalformed, "bad time expression")

		assert.Equal(t, ErrorTypeMalformed, err.Type)
		assert.Equal(t, "bad time expression", err.Message)
		assert.Equal(t, "MALFORMED: bad time expression", err.Error())
	})

	t.Run("Wrap wraps error correctly", func(t *testing.T) {
		originalErr := errors.New("connection refused")
		err := Wrap(originalErr, ErrorTypeTransient, "state fetch failed")

		assert.Equal(t, ErrorTypeTransient, err.Type)
		assert.Equal(t, "state fetch failed", err.Message)
		assert.Equal(t, originalErr, err.Unwrap())
		assert.Contains(t, err.Error(), "connection refused")
	})

	t.Run("WithEntity attaches entity", func(t *testing.T) {
		err := NewTransientError("history fetch failed").WithEntity("sensor.temp")
		assert.Equal(t, "sensor.temp", err.EntityID)
	})

	t.Run("WithDetails adds details", func(t *testing.T) {
		details := map[string]interface{}{"url": "/api/states"}
		err := NewTransientError("fetch failed").WithDetails(details)
		assert.Equal(t, details, err.Details)
	})

	t.Run("WithStatus records upstream status", func(t *testing.T) {
		err := NewAuthError("token rejected").WithStatus(401)
		assert.Equal(t, 401, err.HTTPStatus)
	})
}

func TestFatalClassification(t *testing.T) {
	tests := []struct {
		name  string
		err   *ClientError
		fatal bool
	}{
		{"transient is recoverable", NewTransientError("fetch failed"), false},
		{"malformed is recoverable", NewMalformedError("bad template"), false},
		{"auth is fatal", NewAuthError("token rejected"), true},
		{"protocol is fatal", NewProtocolError("stream closed"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.fatal, tt.err.Fatal())
			assert.Equal(t, tt.fatal, IsFatal(tt.err))
		})
	}
}

func TestIsFatalThroughWrapChain(t *testing.T) {
	inner := NewAuthError("token rejected")
	outer := fmt.Errorf("stream setup: %w", inner)

	assert.True(t, IsFatal(outer))
	assert.False(t, IsFatal(errors.New("plain error")))
}

func TestIsClientError(t *testing.T) {
	t.Run("returns true for ClientError", func(t *testing.T) {
		assert.True(t, IsClientError(NewMalformedError("test")))
	})

	t.Run("returns true through wrap chain", func(t *testing.T) {
		wrapped := fmt.Errorf("context: %w", NewTransientError("test"))
		assert.True(t, IsClientError(wrapped))
	})

	t.Run("returns false for standard error", func(t *testing.T) {
		assert.False(t, IsClientError(errors.New("standard error")))
	})
}

func TestGetClientError(t *testing.T) {
	t.Run("extracts ClientError successfully", func(t *testing.T) {
		originalErr := NewMalformedError("test")
		clientErr, ok := GetClientError(originalErr)

		assert.True(t, ok)
		assert.Equal(t, originalErr, clientErr)
	})

	t.Run("returns false for non-ClientError", func(t *testing.T) {
		clientErr, ok := GetClientError(errors.New("standard error"))

		assert.False(t, ok)
		assert.Nil(t, clientErr)
	})
}

func TestErrorConstructors(t *testing.T) {
	tests := []struct {
		name     string
		fn       func() *ClientError
		wantType ErrorType
	}{
		{
			name:     "NewTransientError",
			fn:       func() *ClientError { return NewTransientError("fetch failed") },
			wantType: ErrorTypeTransient,
		},
		{
			name:     "NewMalformedError",
			fn:       func() *ClientError { return NewMalformedError("bad layout") },
			wantType: ErrorTypeMalformed,
		},
		{
			name:     "NewAuthError",
			fn:       func() *ClientError { return NewAuthError("invalid token") },
			wantType: ErrorTypeAuth,
		},
		{
			name:     "NewProtocolError",
			fn:       func() *ClientError { return NewProtocolError("unexpected frame") },
			wantType: ErrorTypeProtocol,
		},
		{
			name:     "WrapTransient",
			fn:       func() *ClientError { return WrapTransient(errors.New("eof"), "read failed") },
			wantType: ErrorTypeTransient,
		},
		{
			name:     "WrapMalformed",
			fn:       func() *ClientError { return WrapMalformed(errors.New("yaml"), "bad layout") },
			wantType: ErrorTypeMalformed,
		},
		{
			name:     "WrapProtocol",
			fn:       func() *ClientError { return WrapProtocol(errors.New("eof"), "stream closed") },
			wantType: ErrorTypeProtocol,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.fn()
			assert.Equal(t, tt.wantType, err.Type)
			assert.NotEmpty(t, err.Message)
		})
	}
}
