package http

import (
	"net/http"

	"github.com/tabsession/sessiond/internal/auth/domain"
	"github.com/tabsession/sessiond/pkg/httpx"
)

// RefreshCookieName is the cookie the refresh token travels in. The access
// token cookie name lives in httpx since the authn middleware reads it.
const RefreshCookieName = "refreshToken"

// refreshCookieMaxAge matches the refresh token TTL (7 days in seconds).
const refreshCookieMaxAge = 604800

// setSessionCookies attaches both tokens as cookies. They are HttpOnly and
// SameSite=Strict always; Secure is tied to the environment so local dev
// over plain HTTP still works.
func setSessionCookies(w http.ResponseWriter, pair domain.TokenPair, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     httpx.AccessCookieName,
		Value:    pair.AccessToken,
		Path:     "/",
		MaxAge:   refreshCookieMaxAge,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookieName,
		Value:    pair.RefreshToken,
		Path:     "/",
		MaxAge:   refreshCookieMaxAge,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
	})
}

// clearSessionCookies expires both token cookies.
func clearSessionCookies(w http.ResponseWriter, secure bool) {
	for _, name := range []string{httpx.AccessCookieName, RefreshCookieName} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   secure,
			SameSite: http.SameSiteStrictMode,
		})
	}
}
