package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/kiranshivaraju/speedwatch/internal/api/response"
)

// Recovery turns a handler panic into a 500 carrying the request id, so the
// client can quote it when reporting. http.ErrAbortHandler is re-raised for
// net/http to handle.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			v := recover()
			if v == nil {
				return
			}
			if v == http.ErrAbortHandler {
				panic(v)
			}

			id := RequestID(r)
			slog.Error("handler panicked",
				"request_id", id,
				"path", r.URL.Path,
				"panic", v,
				"stack", string(debug.Stack()),
			)
			var details map[string]string
			if id != "" {
				details = map[string]string{"request_id": id}
			}
			response.Error(w, http.StatusInternalServerError,
				"INTERNAL_ERROR", "An unexpected error occurred", details)
		}()
		next.ServeHTTP(w, r)
	})
}
