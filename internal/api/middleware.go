package api

import (
	"log/slog"
	"net/http"
	"runtime/debug"
)

// MessageUnexpected is shown when a handler panics. The client is asked to reload.
const MessageUnexpected = "Something went wrong"

// Recoverer turns a panic into a 500 envelope with reload set, instead of chi's bare
// 500, so the client can offer to restart the screen.
func Recoverer(logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
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
					"method", r.Method,
					"path", r.URL.Path,
					"panic", rec,
					"stack", string(debug.Stack()),
				)
				writeJSON(w, http.StatusInternalServerError, envelope{
					Success: false,
					Message: MessageUnexpected,
					Reload:  true,
				})
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// serialize runs mutating requests one at a time.
func (h *Handler) serialize(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.mu.Lock()
		defer h.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}
