package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/straye-as/pipeline-gateway/internal/domain"
	"go.uber.org/zap"
)

// Recoverer turns a handler panic into a 500 problem response
func Recoverer(logger *zap.Logger) func(http.Handler) http.Handler {
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
				logger.Error("panic while serving request",
					zap.Any("panic", rec),
					zap.String("request_id", RequestID(r.Context())),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.ByteString("stack", debug.Stack()),
				)
				domain.WriteProblem(w, domain.NewAPIError(http.StatusInternalServerError, "An unexpected error occurred"))
			}()
			next.ServeHTTP(w, r)
		})
	}
}
