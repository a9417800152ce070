package http

import (
	"errors"
	"net/http"

	"github.com/tabsession/sessiond/internal/auth/service"
	"github.com/tabsession/sessiond/internal/auth/store"
	"github.com/tabsession/sessiond/pkg/httpx"
	"github.com/tabsession/sessiond/pkg/slogx"
)

// MeHandler serves GET /v1/auth/me for the authenticated user.
type MeHandler struct {
	Users *service.UserService
}

func (h *MeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := httpx.UserIDFromContext(ctx)
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	user, err := h.Users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Token subject no longer exists, treat as stale credentials.
			httpx.WriteError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		slogx.FromContext(ctx).Error("load user failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error")
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, user)
}
