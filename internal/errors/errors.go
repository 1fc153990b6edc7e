// Package errors classifies failures from the hub client, the event stream
// and the rendering pipeline so callers know whether to degrade locally or
// shut the loop down.
package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorType tells the caller how to react to a failure.
type ErrorType string

const (
	// ErrorTypeTransient covers I/O failures recovered locally, such as a
	// failed history fetch or a dropped stream read. Widgets fall back to
	// last-known data.
	ErrorTypeTransient ErrorType = "TRANSIENT"

	// ErrorTypeMalformed covers bad operator input: templates, time
	// expressions, layout files, service call arguments. These degrade to
	// a defined default instead of propagating.
	ErrorTypeMalformed ErrorType = "MALFORMED"

	// ErrorTypeAuth means the hub rejected our credentials. Fatal.
	ErrorTypeAuth ErrorType = "AUTH"

	// ErrorTypeProtocol means the hub broke the conversation in a way we
	// cannot recover from, such as a permanently closed stream. Fatal.
	ErrorTypeProtocol ErrorType = "PROTOCOL"
)

// ClientError carries a failure's classification plus optional context.
type ClientError struct {
	Type       ErrorType              `json:"type"`
	Message    string                 `json:"message"`
	EntityID   string                 `json:"entity_id,omitempty"`
	Details    map[string]interface{} `json:"details,omitempty"`
	HTTPStatus int                    `json:"-"`
	Err        error                  `json:"-"`
}

// Error implements the error interface.
func (e *ClientError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the wrapped error.
func (e *ClientError) Unwrap() error {
	return e.Err
}

// Fatal reports whether the failure should end the process.
func (e *ClientError) Fatal() bool {
	return e.Type == ErrorTypeAuth || e.Type == ErrorTypeProtocol
}

// WithEntity attaches the entity the failure relates to.
func (e *ClientError) WithEntity(id string) *ClientError {
	e.EntityID = id
	return e
}

// WithDetails adds details to the error.
func (e *ClientError) WithDetails(details map[string]interface{}) *ClientError {
	e.Details = details
	return e
}

// WithStatus records the upstream HTTP status that produced the failure.
func (e *ClientError) WithStatus(status int) *ClientError {
	e.HTTPStatus = status
	return e
}

// New creates a new ClientError.
func New(errType ErrorType, message string) *ClientError {
	return &ClientError{
		Type:    errType,
		Message: message,
	}
}

// Wrap wraps an existing error.
func Wrap(err error, errType ErrorType, message string) *ClientError {
	return &ClientError{
		Type:    errType,
		Message: message,
		Err:     err,
	}
}

// Common error constructors.

// NewTransientError creates a transient I/O error.
func NewTransientError(message string) *ClientError {
	return New(ErrorTypeTransient, message)
}

// WrapTransient wraps an error as a transient I/O failure.
func WrapTransient(err error, message string) *ClientError {
	return Wrap(err, ErrorTypeTransient, message)
}

// NewMalformedError creates a malformed input error.
func NewMalformedError(message string) *ClientError {
	return New(ErrorTypeMalformed, message)
}

// WrapMalformed wraps an error as malformed input.
func WrapMalformed(err error, message string) *ClientError {
	return Wrap(err, ErrorTypeMalformed, message)
}

// NewAuthError creates an authentication error.
func NewAuthError(message string) *ClientError {
	return New(ErrorTypeAuth, message)
}

// NewProtocolError creates a protocol error.
func NewProtocolError(message string) *ClientError {
	return New(ErrorTypeProtocol, message)
}

// WrapProtocol wraps an error as a protocol failure.
func WrapProtocol(err error, message string) *ClientError {
	return Wrap(err, ErrorTypeProtocol, message)
}

// IsFatal reports whether err (or anything it wraps) is fatal.
func IsFatal(err error) bool {
	var ce *ClientError
	if stderrors.As(err, &ce) {
		return ce.Fatal()
	}
	return false
}

// IsClientError checks if an error is a ClientError.
func IsClientError(err error) bool {
	var ce *ClientError
	return stderrors.As(err, &ce)
}

// GetClientError extracts a ClientError from err's chain.
func GetClientError(err error) (*ClientError, bool) {
	var ce *ClientError
	ok := stderrors.As(err, &ce)
	return ce, ok
}
