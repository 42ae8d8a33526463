package middleware

import (
	"context"
	"net/http"

	"github.com/wolfman30/docbook-web/internal/session"
)

type contextKey string

const adminTokenInfoKey contextKey = "adminTokenInfo"

// RequireAdmin redirects to loginPath unless the request's session holds an
// access token. Token validity is left to the backend.
func RequireAdmin(loginPath string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, ok := session.FromContext(r.Context())
			if !ok || !sess.IsAuthenticated() {
				http.Redirect(w, r, loginPath, http.StatusSeeOther)
				return
			}
			ctx := r.Context()
			if info, err := session.Describe(sess.AccessToken()); err == nil {
				ctx = context.WithValue(ctx, adminTokenInfoKey, info)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AdminTokenInfoFromContext returns the unverified claims of the admin's
// access token when they could be read.
func AdminTokenInfoFromContext(ctx context.Context) (session.TokenInfo, bool) {
	info, ok := ctx.Value(adminTokenInfoKey).(session.TokenInfo)
	return info, ok
}
