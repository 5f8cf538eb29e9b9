package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt"

	"github.com/imrishuroy/go-foodorder/internal/users"
)

func TestTokens_IssueAndParse(t *testing.T) {
	tk := NewTokens("secret", time.Hour)
	raw, exp, err := tk.Issue(&users.User{ID: 3, Username: "alice", Role: users.RoleAdmin})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if time.Until(exp) <= 0 {
		t.Fatalf("expiry in the past: %v", exp)
	}
	claims, err := tk.Parse(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.UserID != 3 || claims.Username != "alice" || claims.Role != users.RoleAdmin {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestTokens_RejectsWrongSecretAndExpired(t *testing.T) {
	raw, _, _ := NewTokens("secret", time.Hour).Issue(&users.User{ID: 1, Role: users.RoleUser})
	if _, err := NewTokens("other", time.Hour).Parse(raw); err == nil {
		t.Fatal("expected signature failure")
	}

	old := NewTokens("secret", time.Minute)
	old.nowFunc = func() time.Time { return time.Now().Add(-time.Hour) }
	expired, _, _ := old.Issue(&users.User{ID: 1, Role: users.RoleUser})
	if _, err := NewTokens("secret", time.Minute).Parse(expired); err == nil {
		t.Fatal("expected expired token to be rejected")
	}
}

func TestTokens_RejectsNoneAlgorithm(t *testing.T) {
	claims := Claims{UserID: 1, Role: users.RoleAdmin, StandardClaims: jwt.StandardClaims{ExpiresAt: time.Now().Add(time.Hour).Unix()}}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none: %v", err)
	}
	if _, err := NewTokens("secret", time.Hour).Parse(raw); err == nil {
		t.Fatal("expected unsigned token to be rejected")
	}
}

func TestPassword_HashAndCheck(t *testing.T) {
	h, err := HashPassword("s3cret-pass")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if h == "s3cret-pass" || !CheckPassword(h, "s3cret-pass") || CheckPassword(h, "wrong") {
		t.Fatal("bcrypt round trip failed")
	}
}
