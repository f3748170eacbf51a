package errors

import (
	"net/http"
	"runtime/debug"

	"go.uber.org/zap"
)

// RecoveryMiddleware returns a middleware that recovers from panics in
// HTTP handlers, logs them and returns a 500.
func RecoveryMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					fields := []zap.Field{
						zap.Any("error", rec),
						zap.String("stack", string(debug.Stack())),
					}
					if r != nil {
						fields = append(fields,
							zap.String("method", r.Method),
							zap.String("path", r.URL.Path),
							zap.String("query", r.URL.RawQuery),
						)
					}
					logger.Error("recovered from panic", fields...)
					http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// RecoverRun recovers a panic in a background run goroutine, logs it and
// invokes onPanic with the recovered value. Use with defer.
func RecoverRun(logger *zap.Logger, onPanic func(rec any)) {
	if rec := recover(); rec != nil {
		logger.Error("recovered from run panic",
			zap.Any("error", rec),
			zap.String("stack", string(debug.Stack())),
		)
		if onPanic != nil {
			onPanic(rec)
		}
	}
}
