package http

import (
	"log/slog"
	"net/http"

	"github.com/tabsession/sessiond/internal/auth/service"
	"github.com/tabsession/sessiond/internal/auth/store"
	"github.com/tabsession/sessiond/pkg/httpx"
	"github.com/tabsession/sessiond/pkg/jwtx"
	"github.com/tabsession/sessiond/pkg/slogx"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	accessCodec   *jwtx.Codec
	secureCookies bool
	logger        *slog.Logger

	users  store.Users
	tokens store.RefreshTokens

	SessionService *service.SessionService
	UserService    *service.UserService
}

func NewRouter(
	accessCodec *jwtx.Codec,
	secureCookies bool,
	users store.Users,
	tokens store.RefreshTokens,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:           http.NewServeMux(),
		accessCodec:   accessCodec,
		secureCookies: secureCookies,
		users:         users,
		tokens:        tokens,
		logger:        logger,
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerSessions()
	r.registerUsers()
	r.registerSystem()
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerSessions() {
	login := &LoginHandler{Sessions: r.SessionService, Secure: r.secureCookies}
	refresh := &RefreshHandler{Sessions: r.SessionService, Secure: r.secureCookies}
	logout := &LogoutHandler{Sessions: r.SessionService, Secure: r.secureCookies}
	logoutAll := &LogoutAllHandler{Sessions: r.SessionService, Secure: r.secureCookies}

	// Credential submission gets the strictest limit.
	r.Mux.Handle("POST /v1/auth/login",
		httpx.Chain(login,
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	// Refresh happens on a schedule per client, moderate is plenty.
	r.Mux.Handle("POST /v1/auth/refresh",
		httpx.Chain(refresh,
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)

	r.Mux.Handle("POST /v1/auth/logout",
		httpx.Chain(logout,
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)

	r.Mux.Handle("POST /v1/auth/logout-all",
		httpx.Chain(logoutAll,
			httpx.AuthnMiddleware(r.accessCodec),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerUsers() {
	register := &RegisterHandler{Users: r.UserService}
	me := &MeHandler{Users: r.UserService}

	r.Mux.Handle("POST /v1/auth/register",
		httpx.Chain(register,
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	r.Mux.Handle("GET /v1/auth/me",
		httpx.Chain(me,
			httpx.AuthnMiddleware(r.accessCodec),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez", LivezHandler{})
	r.Mux.Handle("GET /readyz", &ReadyzHandler{Users: r.users, Tokens: r.tokens})
}
