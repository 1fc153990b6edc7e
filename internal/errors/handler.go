package errors

import (
	"encoding/json"
	"net/http"

	"github.com/sirupsen/logrus"
)

// ErrorResponse represents the error response structure.
type ErrorResponse struct {
	Error   ErrorDetails `json:"error"`
	TraceID string       `json:"trace_id,omitempty"`
}

// ErrorDetails contains the error details.
type ErrorDetails struct {
	Type    ErrorType              `json:"type"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// ErrorHandler writes JSON error responses for the debug server.
type ErrorHandler struct {
	logger *logrus.Logger
}

// NewErrorHandler creates a new error handler.
func NewErrorHandler(logger *logrus.Logger) *ErrorHandler {
	return &ErrorHandler{
		logger: logger,
	}
}

// statusFor maps an error classification to an HTTP status for the debug
// server. Transient and protocol failures surface as bad gateway because
// they describe the upstream hub, not this process.
func statusFor(errType ErrorType) int {
	switch errType {
	case ErrorTypeMalformed:
		return http.StatusBadRequest
	case ErrorTypeAuth:
		return http.StatusUnauthorized
	case ErrorTypeTransient, ErrorTypeProtocol:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// HandleError handles an error and writes the appropriate response.
func (h *ErrorHandler) HandleError(w http.ResponseWriter, r *http.Request, err error) {
	traceID := r.Header.Get("X-Request-ID")

	clientErr, ok := GetClientError(err)
	if !ok {
		clientErr = WrapTransient(err, "An unexpected error occurred")
	}

	status := clientErr.HTTPStatus
	if status == 0 {
		status = statusFor(clientErr.Type)
	}

	logEntry := h.logger.WithFields(logrus.Fields{
		"error_type": clientErr.Type,
		"entity_id":  clientErr.EntityID,
		"trace_id":   traceID,
		"method":     r.Method,
		"path":       r.URL.Path,
		"remote_ip":  r.RemoteAddr,
	})

	switch {
	case clientErr.Fatal():
		logEntry.Error(clientErr.Error())
	case clientErr.Type == ErrorTypeTransient:
		logEntry.Warn(clientErr.Error())
	default:
		logEntry.Info(clientErr.Error())
	}

	response := ErrorResponse{
		Error: ErrorDetails{
			Type:    clientErr.Type,
			Message: clientErr.Message,
			Details: clientErr.Details,
		},
		TraceID: traceID,
	}

	h.writeJSON(w, status, response)
}

// HandleNotFound handles 404 errors.
func (h *ErrorHandler) HandleNotFound(w http.ResponseWriter, r *http.Request) {
	err := NewMalformedError("endpoint not found").WithStatus(http.StatusNotFound)
	h.HandleError(w, r, err)
}

// HandleMethodNotAllowed handles 405 errors.
func (h *ErrorHandler) HandleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	err := NewMalformedError("Method not allowed").WithStatus(http.StatusMethodNotAllowed)
	h.HandleError(w, r, err)
}

// HandlePanic handles panics in HTTP handlers.
func (h *ErrorHandler) HandlePanic(w http.ResponseWriter, r *http.Request, recovered interface{}) {
	h.logger.WithFields(logrus.Fields{
		"panic":     recovered,
		"method":    r.Method,
		"path":      r.URL.Path,
		"remote_ip": r.RemoteAddr,
		"trace_id":  r.Header.Get("X-Request-ID"),
	}).Error("Panic recovered in HTTP handler")

	err := NewTransientError("An unexpected error occurred").WithStatus(http.StatusInternalServerError)
	h.HandleError(w, r, err)
}

// writeJSON writes a JSON response.
func (h *ErrorHandler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.WithError(err).Error("Failed to encode error response")
	}
}

// Middleware returns an error handling middleware.
func (h *ErrorHandler) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if recovered := recover(); recovered != nil {
				h.HandlePanic(w, r, recovered)
			}
		}()

		next.ServeHTTP(w, r)
	})
}
