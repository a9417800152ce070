package http

import (
	"net/http"

	"github.com/tabsession/sessiond/internal/auth/service"
	"github.com/tabsession/sessiond/pkg/httpx"
	"github.com/tabsession/sessiond/pkg/slogx"
)

// LogoutHandler serves POST /v1/auth/logout. "Logged out" and "already
// logged out" are the same terminal state, so a missing or dead token
// still gets a 204.
type LogoutHandler struct {
	Sessions *service.SessionService
	Secure   bool
}

func (h *LogoutHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	if err := h.Sessions.Logout(ctx, refreshTokenFromRequest(r)); err != nil {
		log.Error("logout failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error")
		return
	}

	clearSessionCookies(w, h.Secure)
	w.WriteHeader(http.StatusNoContent)
}

// LogoutAllHandler serves POST /v1/auth/logout-all for the authenticated
// user, revoking the whole token family.
type LogoutAllHandler struct {
	Sessions *service.SessionService
	Secure   bool
}

func (h *LogoutAllHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	userID, ok := httpx.UserIDFromContext(ctx)
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	count, err := h.Sessions.LogoutAll(ctx, userID)
	if err != nil {
		log.Error("logout-all failed", "revoked", count, "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error")
		return
	}

	clearSessionCookies(w, h.Secure)
	httpx.WriteJSON(w, http.StatusOK, map[string]int{"revoked": count})
}
