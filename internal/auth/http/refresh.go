package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/tabsession/sessiond/internal/auth/service"
	"github.com/tabsession/sessiond/pkg/httpx"
	"github.com/tabsession/sessiond/pkg/slogx"
)

// RefreshHandler serves POST /v1/auth/refresh. The refresh token may
// arrive in the refreshToken cookie, the JSON body, or a bearer header.
type RefreshHandler struct {
	Sessions *service.SessionService
	Secure   bool
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (h *RefreshHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	raw := refreshTokenFromRequest(r)
	if raw == "" {
		httpx.WriteValidationError(w, map[string]string{
			"refreshToken": "missing refresh token",
		})
		return
	}

	pair, err := h.Sessions.Refresh(ctx, raw)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidRefresh):
			httpx.WriteError(w, http.StatusForbidden, "invalid_refresh_token")
		case errors.Is(err, service.ErrRefreshExpired):
			httpx.WriteError(w, http.StatusForbidden, "refresh_token_expired")
		case errors.Is(err, service.ErrRefreshRevoked):
			httpx.WriteError(w, http.StatusForbidden, "refresh_token_revoked_or_unknown")
		default:
			log.Error("refresh failed", "err", err)
			httpx.WriteError(w, http.StatusInternalServerError, "server_error")
		}
		return
	}

	setSessionCookies(w, pair, h.Secure)
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"accessToken":  pair.AccessToken,
		"refreshToken": pair.RefreshToken,
		"expiresIn":    int(pair.ExpiresIn.Seconds()),
	})
}

// refreshTokenFromRequest checks cookie, then body, then bearer header.
func refreshTokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie(RefreshCookieName); err == nil && c.Value != "" {
		return c.Value
	}

	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err == nil && req.RefreshToken != "" {
		return req.RefreshToken
	}

	if authz := r.Header.Get("Authorization"); strings.HasPrefix(authz, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(authz, "Bearer"))
	}
	return ""
}
