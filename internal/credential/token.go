package credential

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenExpiry inspects the exp claim of a bearer token without
// verifying its signature. The token stays opaque to the client
// otherwise; this is only a hint for proactive re-authentication.
// Returns false when the token is not a JWT or carries no exp claim.
func TokenExpiry(token string) (time.Time, bool) {
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// TokenExpired reports whether the token's exp claim is in the past.
// Tokens without a readable exp claim are treated as unexpired.
func TokenExpired(token string) bool {
	exp, ok := TokenExpiry(token)
	if !ok {
		return false
	}
	return time.Now().After(exp)
}
