package middleware

import (
	"net/http"
	"strings"
	"time"
)

// sessionCookieName carries the session id for browser clients. API
// clients use the X-Session-ID header instead.
const sessionCookieName = "warden_session"

// CookieConfig controls the attributes of the session cookie.
type CookieConfig struct {
	Domain   string // empty scopes the cookie to the current host
	Secure   bool   // HTTPS only
	SameSite string // "strict", "lax" or "none"
}

// sessionCookie builds the session cookie. HttpOnly is always set; the
// session id must never be readable from page scripts.
func sessionCookie(value string, maxAge int, config CookieConfig) *http.Cookie {
	c := &http.Cookie{
		Name:     sessionCookieName,
		Value:    value,
		Path:     "/",
		Domain:   config.Domain,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   config.Secure,
		SameSite: parseSameSite(config.SameSite),
	}
	if maxAge > 0 {
		// Expires covers clients that ignore Max-Age
		c.Expires = time.Now().Add(time.Duration(maxAge) * time.Second)
	}
	return c
}

// SetSessionCookie hands the session id to a browser client. maxAge
// is in seconds.
func SetSessionCookie(w http.ResponseWriter, sessionID string, maxAge int, config CookieConfig) {
	http.SetCookie(w, sessionCookie(sessionID, maxAge, config))
}

// ClearSessionCookie expires the session cookie immediately.
func ClearSessionCookie(w http.ResponseWriter, config CookieConfig) {
	http.SetCookie(w, sessionCookie("", -1, config))
}

// GetSessionCookie reads the session id from the request cookie, if
// one was sent.
func GetSessionCookie(r *http.Request) (string, error) {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil {
		return "", err
	}
	return cookie.Value, nil
}

func parseSameSite(mode string) http.SameSite {
	switch strings.ToLower(mode) {
	case "strict":
		return http.SameSiteStrictMode
	case "lax":
		return http.SameSiteLaxMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteDefaultMode
	}
}
