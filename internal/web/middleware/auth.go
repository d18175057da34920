package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/JonMunkholm/offerloader/internal/core"
)

// UserIDHeader carries the id of the acting user. There is no
// authentication: the header is trusted as given.
const UserIDHeader = "X-User-ID"

// Viewer returns middleware that tags the request context with the user id
// from the X-User-ID header. Requests without the header are anonymous.
func Viewer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := strings.TrimSpace(r.Header.Get(UserIDHeader)); id != "" {
			r = r.WithContext(core.ContextWithViewer(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}

// RequireViewer rejects anonymous requests with 401. It must run after Viewer.
func RequireViewer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if core.ViewerFromContext(r.Context()) == "" {
			slog.Warn("auth: missing user id",
				"path", r.URL.Path,
				"method", r.Method,
				"remote_addr", r.RemoteAddr,
			)
			msg := core.MapError(core.ErrUnauthorized)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(msg.Status)
			_ = json.NewEncoder(w).Encode(map[string]string{
				"error":   msg.Message,
				"message": msg.Message,
				"action":  msg.Action,
				"code":    msg.Code,
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}
