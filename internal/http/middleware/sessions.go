package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/wolfman30/docbook-web/internal/session"
	"github.com/wolfman30/docbook-web/pkg/logging"
)

// CookieConfig describes the session cookie.
type CookieConfig struct {
	Name   string
	TTL    time.Duration
	Secure bool
}

// Sessions opens the browser's session from its cookie and stores the handle
// in the request context. A store failure degrades to an empty session so
// public pages keep working.
func Sessions(manager *session.Manager, cfg CookieConfig, logger *logging.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.Name == "" {
		cfg.Name = "docbook_session"
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var id string
			if c, err := r.Cookie(cfg.Name); err == nil {
				id = c.Value
			}
			sess, err := manager.Open(r.Context(), id)
			if err != nil {
				logger.Error("failed to open session", "error", err, "path", r.URL.Path)
				sess, _ = manager.Open(r.Context(), "")
			}
			if sess.Fresh() || sess.ID() != id {
				http.SetCookie(w, sessionCookie(cfg, sess.ID()))
			}
			sess.OnRotate(func(newID string) {
				replaceCookie(w, sessionCookie(cfg, newID))
			})
			next.ServeHTTP(w, r.WithContext(session.WithSession(r.Context(), sess)))
		})
	}
}

func sessionCookie(cfg CookieConfig, id string) *http.Cookie {
	c := &http.Cookie{
		Name:     cfg.Name,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	}
	if cfg.TTL > 0 {
		c.MaxAge = int(cfg.TTL.Seconds())
		c.Expires = time.Now().Add(cfg.TTL)
	}
	return c
}

// replaceCookie drops any Set-Cookie already queued for c.Name and queues c.
func replaceCookie(w http.ResponseWriter, c *http.Cookie) {
	h := w.Header()
	prefix := c.Name + "="
	var kept []string
	for _, v := range h.Values("Set-Cookie") {
		if !strings.HasPrefix(v, prefix) {
			kept = append(kept, v)
		}
	}
	h.Del("Set-Cookie")
	for _, v := range kept {
		h.Add("Set-Cookie", v)
	}
	http.SetCookie(w, c)
}
