package security_test

import (
	"testing"
	"time"

	"github.com/Rrens/bloombuddy/internal/security"
	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret-key-with-32-chars!!"

func sign(t *testing.T, method jwt.SigningMethod, key any, claims security.Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString(key)
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return token
}

func validClaims(subject string) security.Claims {
	now := time.Now()
	return security.Claims{
		Email: "grace@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    "bloombuddy",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(15 * time.Minute)),
		},
	}
}

func TestJWTVerifier_Verify(t *testing.T) {
	verifier := security.NewJWTVerifier(testSecret, "bloombuddy")

	token := sign(t, jwt.SigningMethodHS256, []byte(testSecret), validClaims("user-123"))

	claims, err := verifier.Verify(token)
	if err != nil {
		t.Fatalf("failed to verify token: %v", err)
	}
	if claims.UserID() != "user-123" {
		t.Errorf("user ID mismatch: got %v, want user-123", claims.UserID())
	}
	if claims.Email != "grace@example.com" {
		t.Errorf("email mismatch: got %v", claims.Email)
	}
}

func TestJWTVerifier_Rejects(t *testing.T) {
	verifier := security.NewJWTVerifier(testSecret, "bloombuddy")

	expired := validClaims("user-123")
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))

	noExpiry := validClaims("user-123")
	noExpiry.ExpiresAt = nil

	otherIssuer := validClaims("user-123")
	otherIssuer.Issuer = "someone-else"

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "invalid.token.here"},
		{"wrong secret", sign(t, jwt.SigningMethodHS256, []byte("another-secret-another-secret!!"), validClaims("user-123"))},
		{"expired", sign(t, jwt.SigningMethodHS256, []byte(testSecret), expired)},
		{"no expiry", sign(t, jwt.SigningMethodHS256, []byte(testSecret), noExpiry)},
		{"other issuer", sign(t, jwt.SigningMethodHS256, []byte(testSecret), otherIssuer)},
		{"no subject", sign(t, jwt.SigningMethodHS256, []byte(testSecret), validClaims(""))},
		{"none algorithm", sign(t, jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, validClaims("user-123"))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := verifier.Verify(tt.token); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestJWTVerifier_AnyIssuer(t *testing.T) {
	verifier := security.NewJWTVerifier(testSecret, "")

	claims := validClaims("user-1")
	claims.Issuer = "firebase"
	if _, err := verifier.Verify(sign(t, jwt.SigningMethodHS256, []byte(testSecret), claims)); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
