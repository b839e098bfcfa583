package middleware

import (
	"net/http"

	"go.uber.org/zap"
)

// RecoverMiddleware turns a handler panic into a 500 problem response. A
// panic inside a money movement leaves its transaction rolled back, so the
// client may retry with the same idempotency key.
func RecoverMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				logger.Error("panic recovered",
					zap.Any("panic", rec),
					zap.String("method", r.Method),
					zap.String("route", routePattern(r)),
					zap.String("trace_id", TraceIDFromContext(r.Context())),
					zap.Stack("stack"),
				)
				writeProblem(w, r, http.StatusInternalServerError, "internal-server-error", "unexpected server error")
			}()
			next.ServeHTTP(w, r)
		})
	}
}
