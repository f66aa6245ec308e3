package http

import (
	"net/http"
	"strings"

	"github.com/tonyboom3d/exact-view-framework/pkg/response"
)

// RequireSession checks the bearer token and that it was issued for the
// session named in the URL.
func (h *HTTPHandler) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || raw == "" {
			response.Error(w, errUnauthorized)
			return
		}

		claims, err := h.tokens.Parse(raw)
		if err != nil {
			h.l.Debugf(r.Context(), "http.HTTPHandler.RequireSession: %v", err)
			response.Error(w, errUnauthorized)
			return
		}
		if claims.SessionID != sessionID(r) {
			response.Error(w, errSessionMismatch)
			return
		}

		ctx := h.l.With(r.Context(), "session_id", claims.SessionID, "device_id", claims.DeviceID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
