package http

import "net/http"

// GetSession handles GET /session: 200 with the verified principal, 401 otherwise.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.authn.Authenticate(r.Context(), r.Header)
	if !ok {
		w.Header().Set("WWW-Authenticate", "Bearer")
		writeError(w, r, http.StatusUnauthorized, "UNAUTHENTICATED", "Unauthorized")
		return
	}
	writeJSON(w, http.StatusOK, principal)
}
