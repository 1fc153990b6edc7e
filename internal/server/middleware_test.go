package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hubdeck/hubdeck/internal/errors"
)

func TestRequestIDMiddleware(t *testing.T) {
	srv := newTestServer(t, nil)

	t.Run("generates an ID", func(t *testing.T) {
		rr := doRequest(srv, "GET", "/version")

		requestID := rr.Header().Get("X-Request-ID")
		require.NotEmpty(t, requestID)
		_, err := uuid.Parse(requestID)
		assert.NoError(t, err)
	})

	t.Run("echoes a provided ID", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/version", nil)
		req.Header.Set("X-Request-ID", "test-id-123")
		rr := httptest.NewRecorder()
		srv.GetRouter().ServeHTTP(rr, req)

		assert.Equal(t, "test-id-123", rr.Header().Get("X-Request-ID"))
	})
}

func TestCORSHeaders(t *testing.T) {
	srv := newTestServer(t, nil)

	rr := doRequest(srv, "GET", "/version")

	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "GET, OPTIONS", rr.Header().Get("Access-Control-Allow-Methods"))
}

func TestMetricsMiddleware(t *testing.T) {
	srv := newTestServer(t, nil)

	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/version", "200"))
	doRequest(srv, "GET", "/version")
	after := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/version", "200"))
	assert.Equal(t, before+1, after)
}

func TestMetricsMiddlewareSkipsHealthProbes(t *testing.T) {
	srv := newTestServer(t, nil)

	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/livez", "200"))
	doRequest(srv, "GET", "/livez")
	after := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/livez", "200"))
	assert.Equal(t, before, after)
}

func TestPanicRecovery(t *testing.T) {
	srv := newTestServer(t, nil)
	srv.GetRouter().HandleFunc("/boom", func(w http.ResponseWriter, r *http.Request) {
		panic("kaput")
	}).Methods("GET")

	rr := doRequest(srv, "GET", "/boom")

	assert.Equal(t, http.StatusInternalServerError, rr.Code)

	var response errors.ErrorResponse
	err := json.Unmarshal(rr.Body.Bytes(), &response)
	require.NoError(t, err)
	assert.Equal(t, errors.ErrorTypeTransient, response.Error.Type)
}

func TestNotFound(t *testing.T) {
	srv := newTestServer(t, nil)

	rr := doRequest(srv, "GET", "/nope")

	assert.Equal(t, http.StatusNotFound, rr.Code)

	var response errors.ErrorResponse
	err := json.Unmarshal(rr.Body.Bytes(), &response)
	require.NoError(t, err)
	assert.Equal(t, errors.ErrorTypeMalformed, response.Error.Type)
	assert.Contains(t, response.Error.Message, "not found")
}

func TestMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t, nil)

	rr := doRequest(srv, "POST", "/version")

	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)

	var response errors.ErrorResponse
	err := json.Unmarshal(rr.Body.Bytes(), &response)
	require.NoError(t, err)
	assert.Equal(t, errors.ErrorTypeMalformed, response.Error.Type)
}
