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

// RegisterHandler serves POST /v1/auth/register.
type RegisterHandler struct {
	Users *service.UserService
}

type registerRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName"`
}

func (h *RegisterHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_json_body")
		return
	}

	if detail := validateRegister(req); len(detail) > 0 {
		httpx.WriteValidationError(w, detail)
		return
	}

	user, err := h.Users.Register(
		ctx,
		strings.ToLower(strings.TrimSpace(req.Email)),
		req.Password,
		strings.TrimSpace(req.DisplayName),
	)
	if err != nil {
		if errors.Is(err, service.ErrEmailTaken) {
			httpx.WriteError(w, http.StatusConflict, "email_taken")
			return
		}
		log.Error("registration failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error")
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, user)
}

func validateRegister(req registerRequest) map[string]string {
	detail := map[string]string{}
	if !validEmail(req.Email) {
		detail["email"] = "must be a valid email address"
	}
	if len(req.Password) < 8 {
		detail["password"] = "must be at least 8 characters"
	}
	return detail
}
