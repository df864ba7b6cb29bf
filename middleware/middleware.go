package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type contextKey string

const contextRequestID = contextKey("RequestID")

const httpHeaderRequestID = "X-Request-Id"

// AddRequestID attaches a unique request ID to the context and the zerolog
// logger of each request, taking the caller-provided header if present.
func AddRequestID(next http.Handler) http.Handler {
	fn := func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(httpHeaderRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		logger := log.With().Str("requestID", id).Logger()
		ctx := logger.WithContext(r.Context())
		ctx = context.WithValue(ctx, contextRequestID, id)
		w.Header().Set(httpHeaderRequestID, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	}
	return http.HandlerFunc(fn)
}

// AddLogging logs each request with its remote address and path.
func AddLogging(next http.Handler) http.Handler {
	fn := func(w http.ResponseWriter, r *http.Request) {
		log.Ctx(r.Context()).Info().Msgf("r=%v, method=%s, path=%s", r.RemoteAddr, r.Method, r.URL.Path)
		next.ServeHTTP(w, r)
	}
	return http.HandlerFunc(fn)
}

func AddAll(next http.Handler) http.Handler {
	return AddRequestID(AddLogging(next))
}

func CtxGetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(contextRequestID).(string); ok {
		return id
	}
	return ""
}
