package helpers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// TokenCookieName is the cookie carrying the session token.
const TokenCookieName = "token"

// Manager writes the session cookie. Secure is only set in production.
type Manager struct {
	Domain string
	Secure bool
	TTL    time.Duration
}

func NewCookie(domain string, secure bool, ttl time.Duration) *Manager {
	return &Manager{Domain: domain, Secure: secure, TTL: ttl}
}

// SetToken stores token in an httpOnly cookie that expires after the cookie TTL.
// Both Expires and Max-Age are sent so older clients honour the lifetime too.
func (m *Manager) SetToken(c *gin.Context, token string) {
	http.SetCookie(c.Writer, m.cookie(token, time.Now().Add(m.TTL), int(m.TTL/time.Second)))
}

// Clear expires the session cookie. It is safe to call without a cookie present.
func (m *Manager) Clear(c *gin.Context) {
	http.SetCookie(c.Writer, m.cookie("", time.Unix(0, 0), -1))
}

func (m *Manager) cookie(value string, expires time.Time, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     TokenCookieName,
		Value:    value,
		Path:     "/",
		Domain:   m.Domain,
		Expires:  expires,
		MaxAge:   maxAge,
		Secure:   m.Secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}
