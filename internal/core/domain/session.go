package domain

import (
	"errors"
	"strings"
	"time"
)

// Session is the authenticated identity carried with outbound requests.
// The zero value is the absent session.
type Session struct {
	Token    string
	Identity string
}

// NewSession rejects partial sessions: token and identity come together or not at all.
func NewSession(token, identity string) (Session, error) {
	token = strings.TrimSpace(token)
	identity = strings.TrimSpace(identity)
	if token == "" || identity == "" {
		return Session{}, WrapError(ErrInvalidInput, "new session", errors.New("token and identity are both required"))
	}
	return Session{Token: token, Identity: identity}, nil
}

func (s Session) Present() bool {
	return s.Token != "" && s.Identity != ""
}

// User is the identity service's account shape.
type User struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	Username  string    `json:"username"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}
