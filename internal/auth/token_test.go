package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

func TestTokenManager_RoundTrip(t *testing.T) {
	m, err := NewTokenManager("s3cret", "shareledger", time.Hour)
	if err != nil {
		t.Fatalf("NewTokenManager: %v", err)
	}

	token, err := m.Issue("42")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	subject, err := m.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if subject != "42" {
		t.Errorf("subject = %q, want 42", subject)
	}
}

func TestTokenManager_Rejects(t *testing.T) {
	m, _ := NewTokenManager("s3cret", "shareledger", time.Hour)

	other, _ := NewTokenManager("different", "shareledger", time.Hour)
	wrongKey, _ := other.Issue("42")

	foreign, _ := NewTokenManager("s3cret", "someone-else", time.Hour)
	wrongIssuer, _ := foreign.Issue("42")

	expiredManager, _ := NewTokenManager("s3cret", "shareledger", time.Minute)
	expiredManager.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired, _ := expiredManager.Issue("42")

	noSubject, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Issuer: "shareledger"}).SignedString([]byte("s3cret"))
	none, _ := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{Subject: "42", Issuer: "shareledger"}).SignedString(jwt.UnsafeAllowNoneSignatureType)

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "not.a.token"},
		{"wrong key", wrongKey},
		{"wrong issuer", wrongIssuer},
		{"expired", expired},
		{"missing subject", noSubject},
		{"alg none", none},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := m.Verify(tt.token); !errors.Is(err, ErrInvalidToken) {
				t.Errorf("Verify error = %v, want ErrInvalidToken", err)
			}
		})
	}
}

func TestNewTokenManager_RequiresSecret(t *testing.T) {
	if _, err := NewTokenManager("", "", 0); err == nil {
		t.Error("expected error for empty secret")
	}
}
