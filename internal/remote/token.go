package remote

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenSource supplies the bearer token, if any. An empty token means the
// request relies on the session cookie alone.
type TokenSource interface {
	Token() (string, error)
}

// StaticToken is a fixed token.
type StaticToken string

// Token returns the token.
func (t StaticToken) Token() (string, error) { return string(t), nil }

// TokenClaims is what the client reads from a JWT without verifying it.
type TokenClaims struct {
	Subject   string
	ExpiresAt time.Time
}

// InspectToken reads the subject and expiry of a JWT. The signature is not
// checked; the backend does that. ok is false for opaque (non-JWT) tokens.
func InspectToken(token string) (TokenClaims, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return TokenClaims{}, false
	}
	var tc TokenClaims
	if sub, err := claims.GetSubject(); err == nil {
		tc.Subject = sub
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		tc.ExpiresAt = exp.Time
	}
	return tc, true
}

// usableToken reports whether token should be attached at now. Opaque
// tokens are always sent; JWTs only until they expire.
func usableToken(token string, now time.Time) bool {
	if token == "" {
		return false
	}
	tc, ok := InspectToken(token)
	if !ok || tc.ExpiresAt.IsZero() {
		return true
	}
	return now.Before(tc.ExpiresAt)
}
