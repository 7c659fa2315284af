package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"smarthub-backend/internal/transport"
)

// Recoverer turns panics into a JSON 500 body.
func Recoverer(log *slog.Logger) func(http.Handler) http.Handler {
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
				log.Error("panic recovered",
					slog.Any("panic", rec),
					slog.String("request_id", RequestIDFromContext(r.Context())),
					slog.String("path", r.URL.Path),
					slog.String("stack", string(debug.Stack())),
				)
				transport.WriteInternal(w)
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func NotFound(w http.ResponseWriter, r *http.Request) {
	transport.WriteError(w, http.StatusNotFound, "route not found", nil)
}

func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	transport.WriteError(w, http.StatusMethodNotAllowed, "method not allowed", nil)
}
