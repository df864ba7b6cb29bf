package middleware

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
)

func TestAddRequestID(t *testing.T) {
	called := false
	next := http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			called = true
			assert.NotEmpty(t, CtxGetRequestID(r.Context()), "request ID should be set as context key")
		},
	)
	handler := AddRequestID(next)
	req, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, "/stats", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.True(t, called, "middleware handler must call next handler")
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestAddRequestID_KeepsCallerProvidedID(t *testing.T) {
	next := http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "abc-123", CtxGetRequestID(r.Context()))
		},
	)
	handler := AddRequestID(next)
	req, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, "/stats", nil)
	req.Header.Set("X-Request-Id", "abc-123")
	handler.ServeHTTP(httptest.NewRecorder(), req)
}

func TestCtxGetRequestID(t *testing.T) {
	assert.Equal(t, "", CtxGetRequestID(context.Background()), "request ID key not found")
	ctx := context.WithValue(context.Background(), contextRequestID, "b")
	assert.Equal(t, "b", CtxGetRequestID(ctx), "valid")
	ctx = context.WithValue(context.Background(), contextRequestID, []string{"a"})
	assert.Equal(t, "", CtxGetRequestID(ctx), "invalid type in correct key")
}

func TestAddAll(t *testing.T) {
	logBuffer := bytes.NewBuffer([]byte{})
	log.Logger = zerolog.New(logBuffer).Level(zerolog.DebugLevel)
	next := http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			log.Ctx(r.Context()).Info().Msg("AAA")
		},
	)
	handler := AddAll(next)
	req, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, "/metrics", nil)
	req.Header.Set("X-Request-Id", "rid-1")
	handler.ServeHTTP(httptest.NewRecorder(), req)
	assert.Contains(t, logBuffer.String(), `AAA`)
	assert.Contains(t, logBuffer.String(), `"requestID":"rid-1"`)
	assert.Contains(t, logBuffer.String(), `path=/metrics`)
}
