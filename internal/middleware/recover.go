package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"student-management-api/internal/httputil"
)

// Recover turns a handler panic into a 500 error response. Stack traces are
// included only outside production-like environments.
func Recover(logger *slog.Logger, env string) func(http.Handler) http.Handler {
	production := env == "production" || env == "prod"

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					stack := string(debug.Stack())
					logger.ErrorContext(r.Context(), "panic recovered",
						"panic", rec,
						"stack", stack,
					)
					if production {
						httputil.RespondWithError(w, http.StatusInternalServerError, "Something went wrong!")
					} else {
						httputil.RespondWithErrorStack(w, http.StatusInternalServerError, "Something went wrong!", stack)
					}
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
