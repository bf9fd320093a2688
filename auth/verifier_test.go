package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"lexdraft-backend/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestHMACVerifier(t *testing.T) {
	secret := []byte("test-secret")
	v, err := NewHMACVerifier(secret, testLogger())
	if err != nil {
		t.Fatalf("NewHMACVerifier: %v", err)
	}

	userID := uuid.New()
	valid, err := IssueHMAC(secret, userID, "ana@example.com", time.Hour)
	if err != nil {
		t.Fatalf("IssueHMAC: %v", err)
	}
	expired, _ := IssueHMAC(secret, userID, "", -time.Minute)
	forged, _ := IssueHMAC([]byte("other-secret"), userID, "", time.Hour)
	noSubject, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString(secret)
	badSubject, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject: "ana",
	}).SignedString(secret)

	t.Run("valid token", func(t *testing.T) {
		got, err := v.Verify(valid)
		if err != nil {
			t.Fatalf("Verify: %v", err)
		}
		if got != userID {
			t.Errorf("user = %s, want %s", got, userID)
		}
	})

	rejected := []struct {
		name  string
		token string
	}{
		{"expired", expired},
		{"wrong secret", forged},
		{"missing subject", noSubject},
		{"subject not a uuid", badSubject},
		{"garbage", "not.a.token"},
		{"empty", ""},
	}
	for _, tt := range rejected {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := v.Verify(tt.token); !errors.Is(err, models.ErrUnauthorized) {
				t.Errorf("Verify = %v, want ErrUnauthorized", err)
			}
		})
	}
}

func TestNewHMACVerifierRequiresSecret(t *testing.T) {
	if _, err := NewHMACVerifier(nil, testLogger()); err == nil {
		t.Error("expected error for empty secret")
	}
}

func TestAsymmetricVerifierRejectsHMAC(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	v := newVerifier(func(*jwt.Token) (interface{}, error) { return &key.PublicKey, nil },
		[]string{"RS256", "ES256"}, testLogger())

	userID := uuid.New()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: userID.String()},
	}).SignedString(key)
	if err != nil {
		t.Fatal(err)
	}
	if got, err := v.Verify(signed); err != nil || got != userID {
		t.Fatalf("Verify RS256 = %s, %v", got, err)
	}

	hmacToken, _ := IssueHMAC([]byte("secret"), userID, "", time.Hour)
	if _, err := v.Verify(hmacToken); !errors.Is(err, models.ErrUnauthorized) {
		t.Errorf("HS256 token accepted by RS256 verifier: %v", err)
	}
}
