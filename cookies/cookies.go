// Package cookies centralises the auth cookie attributes so handlers
// and middleware cannot drift apart on them.
package cookies

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

const (
	AccessToken  = "access_token"
	RefreshToken = "refresh_token"
	KeySession   = "key_session"
)

func set(c echo.Context, name, value string, maxAge time.Duration, secure bool) {
	c.SetCookie(&http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
	})
}

func SetAccessToken(c echo.Context, token string, maxAge time.Duration, secure bool) {
	set(c, AccessToken, token, maxAge, secure)
}

func SetRefreshToken(c echo.Context, token string, maxAge time.Duration, secure bool) {
	set(c, RefreshToken, token, maxAge, secure)
}

func SetKeySession(c echo.Context, sessionID string, maxAge time.Duration, secure bool) {
	set(c, KeySession, sessionID, maxAge, secure)
}

// Read returns the named cookie's value, or "" when absent.
func Read(c echo.Context, name string) string {
	cookie, err := c.Cookie(name)
	if err != nil || cookie == nil {
		return ""
	}
	return cookie.Value
}

// ClearAuth expires both token cookies.
func ClearAuth(c echo.Context, secure bool) {
	set(c, AccessToken, "", -time.Second, secure)
	set(c, RefreshToken, "", -time.Second, secure)
}

func ClearKeySession(c echo.Context, secure bool) {
	set(c, KeySession, "", -time.Second, secure)
}
