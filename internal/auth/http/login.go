package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/tabsession/sessiond/internal/auth/domain"
	"github.com/tabsession/sessiond/internal/auth/service"
	"github.com/tabsession/sessiond/pkg/httpx"
	"github.com/tabsession/sessiond/pkg/slogx"
)

// LoginHandler serves POST /v1/auth/login.
type LoginHandler struct {
	Sessions *service.SessionService
	Secure   bool
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	AccessToken  string            `json:"accessToken"`
	RefreshToken string            `json:"refreshToken"`
	ExpiresIn    int               `json:"expiresIn"`
	User         domain.PublicUser `json:"user"`
}

func (h *LoginHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_json_body")
		return
	}

	if detail := validateLogin(req); len(detail) > 0 {
		httpx.WriteValidationError(w, detail)
		return
	}

	pair, user, err := h.Sessions.Login(ctx, strings.ToLower(strings.TrimSpace(req.Email)), req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			// One outcome for unknown email and wrong password.
			httpx.WriteError(w, http.StatusUnauthorized, "invalid_credentials")
			return
		}
		log.Error("login failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error")
		return
	}

	setSessionCookies(w, pair, h.Secure)
	httpx.WriteJSON(w, http.StatusOK, sessionResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresIn:    int(pair.ExpiresIn.Seconds()),
		User:         user,
	})
}

func validateLogin(req loginRequest) map[string]string {
	detail := map[string]string{}
	if !validEmail(req.Email) {
		detail["email"] = "must be a valid email address"
	}
	if req.Password == "" {
		detail["password"] = "must not be empty"
	}
	return detail
}

func validEmail(email string) bool {
	email = strings.TrimSpace(email)
	at := strings.Index(email, "@")
	return at > 0 && at < len(email)-1 && !strings.ContainsAny(email, " \t")
}
