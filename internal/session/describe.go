package session

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenInfo is what the frontend can read from an access token without the
// signing key. It is for display and logging only.
type TokenInfo struct {
	Subject   string
	ExpiresAt time.Time
}

// Describe parses the access token's claims without verifying the signature.
// Tokens that are not JWTs yield an error.
func Describe(access string) (TokenInfo, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(access, claims); err != nil {
		return TokenInfo{}, fmt.Errorf("session: describe token: %w", err)
	}

	var info TokenInfo
	switch v := claims["user_id"].(type) {
	case string:
		info.Subject = v
	case float64:
		info.Subject = fmt.Sprintf("%.0f", v)
	}
	if info.Subject == "" {
		info.Subject, _ = claims.GetSubject()
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		info.ExpiresAt = exp.Time
	}
	return info, nil
}
