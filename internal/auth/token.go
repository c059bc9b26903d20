package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenInfo is what can be read from a bearer token without the signing key
type TokenInfo struct {
	// Opaque is set when the token is not a JWT
	Opaque    bool
	Subject   string
	Role      string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// InspectToken decodes the claims of a JWT without verifying its signature.
// Only the backend can verify tokens; this is for display and scheduling.
func InspectToken(token string) TokenInfo {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return TokenInfo{Opaque: true}
	}

	info := TokenInfo{}
	if sub, err := claims.GetSubject(); err == nil {
		info.Subject = sub
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		info.ExpiresAt = exp.Time
	}
	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
		info.IssuedAt = iat.Time
	}
	for _, key := range []string{"role", "type", "user_type"} {
		if role, ok := claims[key].(string); ok && role != "" {
			info.Role = role
			break
		}
	}
	return info
}

// HasExpiry reports whether the token carries an exp claim
func (i TokenInfo) HasExpiry() bool {
	return !i.ExpiresAt.IsZero()
}

// Expired reports whether the token's exp claim is in the past
func (i TokenInfo) Expired(now time.Time) bool {
	return i.HasExpiry() && !now.Before(i.ExpiresAt)
}

// ExpiresIn returns the time left before expiry, or 0 when unknown
func (i TokenInfo) ExpiresIn(now time.Time) time.Duration {
	if !i.HasExpiry() {
		return 0
	}
	if d := i.ExpiresAt.Sub(now); d > 0 {
		return d
	}
	return 0
}
