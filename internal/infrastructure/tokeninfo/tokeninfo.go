// Package tokeninfo reads the claims of a session token without verifying
// its signature. The server stays the only authority on validity; the
// client uses the claims for display and to skip requests with a token
// that has plainly expired.
package tokeninfo

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/kirillkom/notepeel/internal/core/domain"
)

type Info struct {
	Subject   string
	Email     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Expired reports whether the token carried an expiry that lies before now.
func (i Info) Expired(now time.Time) bool {
	return !i.ExpiresAt.IsZero() && !now.Before(i.ExpiresAt)
}

func Inspect(token string) (Info, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Info{}, domain.WrapError(domain.ErrInvalidInput, "inspect token", errors.New("empty token"))
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return Info{}, domain.WrapError(domain.ErrInvalidInput, "inspect token", err)
	}

	var info Info
	if subject, err := claims.GetSubject(); err == nil {
		info.Subject = subject
	}
	if email, ok := claims["email"].(string); ok {
		info.Email = email
	}
	if issued, err := claims.GetIssuedAt(); err == nil && issued != nil {
		info.IssuedAt = issued.Time.UTC()
	}
	if expires, err := claims.GetExpirationTime(); err == nil && expires != nil {
		info.ExpiresAt = expires.Time.UTC()
	}
	return info, nil
}
