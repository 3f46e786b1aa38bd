package tokeninfo

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/kirillkom/notepeel/internal/core/domain"
)

func signed(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("server-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return token
}

func TestInspectReadsClaims(t *testing.T) {
	exp := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	token := signed(t, jwt.MapClaims{
		"sub":   "42",
		"email": "ann@example.com",
		"exp":   exp.Unix(),
	})

	info, err := Inspect(token)
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	if info.Subject != "42" || info.Email != "ann@example.com" || !info.ExpiresAt.Equal(exp) {
		t.Fatalf("unexpected info: %+v", info)
	}
	if info.Expired(exp.Add(-time.Minute)) {
		t.Fatalf("token should still be valid a minute before expiry")
	}
	if !info.Expired(exp) {
		t.Fatalf("token should be expired at its expiry")
	}
}

func TestInspectWithoutExpiryNeverExpires(t *testing.T) {
	info, err := Inspect(signed(t, jwt.MapClaims{"sub": "1"}))
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	if info.Expired(time.Now().Add(100 * 365 * 24 * time.Hour)) {
		t.Fatalf("token without exp must not expire")
	}
}

func TestInspectRejectsMalformedToken(t *testing.T) {
	for _, token := range []string{"", "opaque-token", "a.b.c"} {
		if _, err := Inspect(token); !domain.IsKind(err, domain.ErrInvalidInput) {
			t.Fatalf("Inspect(%q): expected invalid input, got %v", token, err)
		}
	}
}
