package http

import (
	"net/http"

	"github.com/tabsession/sessiond/internal/auth/store"
	"github.com/tabsession/sessiond/pkg/httpx"
	"github.com/tabsession/sessiond/pkg/slogx"
)

// LivezHandler reports process liveness. It never touches backing stores.
type LivezHandler struct{}

func (LivezHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ReadyzHandler reports readiness by pinging both backing stores.
type ReadyzHandler struct {
	Users  store.Users
	Tokens store.RefreshTokens
}

func (h *ReadyzHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	status := map[string]string{"users": "ok", "tokens": "ok"}
	healthy := true

	if err := h.Users.Ping(ctx); err != nil {
		slogx.FromContext(ctx).Warn("user store ping failed", "err", err)
		status["users"] = "unavailable"
		healthy = false
	}
	if err := h.Tokens.Ping(ctx); err != nil {
		slogx.FromContext(ctx).Warn("token store ping failed", "err", err)
		status["tokens"] = "unavailable"
		healthy = false
	}

	code := http.StatusOK
	if !healthy {
		code = http.StatusServiceUnavailable
	}
	httpx.WriteJSON(w, code, status)
}
