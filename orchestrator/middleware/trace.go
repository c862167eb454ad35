package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type contextKey string

const TraceIDKey contextKey = "trace_id"

// TraceID attaches a request-scoped trace id, honoring one supplied by the
// caller, and echoes it back in the response headers.
func TraceID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID := r.Header.Get("X-Trace-ID")
		if traceID == "" {
			traceID = uuid.New().String()
		}

		ctx := context.WithValue(r.Context(), TraceIDKey, traceID)
		w.Header().Set("X-Trace-ID", traceID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func GetTraceID(ctx context.Context) string {
	if traceID, ok := ctx.Value(TraceIDKey).(string); ok {
		return traceID
	}
	return ""
}

// Logger annotates base with the request's trace id so handler logs line
// up with the middleware's request log.
func Logger(ctx context.Context, base *zap.Logger) *zap.Logger {
	if traceID := GetTraceID(ctx); traceID != "" {
		return base.With(zap.String("trace_id", traceID))
	}
	return base
}
