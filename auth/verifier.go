// Package auth verifies bearer tokens and resolves the calling user.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"lexdraft-backend/models"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Verifier validates a bearer token and returns the user it was issued for.
type Verifier interface {
	Verify(tokenString string) (uuid.UUID, error)
}

// Claims are the token claims the backend relies on. The subject is the
// user id.
type Claims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// JWTVerifier implements Verifier with golang-jwt
type JWTVerifier struct {
	keyfunc jwt.Keyfunc
	methods []string
	logger  *slog.Logger
}

// NewHMACVerifier verifies HS256 tokens signed with a shared secret.
func NewHMACVerifier(secret []byte, logger *slog.Logger) (*JWTVerifier, error) {
	if len(secret) == 0 {
		return nil, errors.New("JWT secret cannot be empty")
	}
	return newVerifier(func(*jwt.Token) (interface{}, error) { return secret, nil }, []string{"HS256"}, logger), nil
}

// NewJWKSVerifier verifies RS256/ES256 tokens against a JWKS endpoint. Keys
// are cached and refreshed in the background until ctx is cancelled.
func NewJWKSVerifier(ctx context.Context, jwksURL string, logger *slog.Logger) (*JWTVerifier, error) {
	if jwksURL == "" {
		return nil, errors.New("JWKS URL cannot be empty")
	}
	jwks, err := keyfunc.NewDefaultCtx(ctx, []string{jwksURL})
	if err != nil {
		return nil, fmt.Errorf("failed to create JWKS client: %w", err)
	}
	logger.Info("JWT verifier initialized", "jwks_url", jwksURL)

	return newVerifier(jwks.Keyfunc, []string{"RS256", "ES256"}, logger), nil
}

func newVerifier(kf jwt.Keyfunc, methods []string, logger *slog.Logger) *JWTVerifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &JWTVerifier{keyfunc: kf, methods: methods, logger: logger}
}

// Verify parses and validates the token. Any failure is ErrUnauthorized.
func (v *JWTVerifier) Verify(tokenString string) (uuid.UUID, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, v.keyfunc, jwt.WithValidMethods(v.methods))
	if err != nil || !token.Valid {
		v.logger.Debug("token rejected", "error", err)
		return uuid.Nil, models.ErrUnauthorized
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || claims.Subject == "" {
		return uuid.Nil, models.ErrUnauthorized
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		v.logger.Debug("token subject is not a user id", "sub", claims.Subject)
		return uuid.Nil, models.ErrUnauthorized
	}
	return userID, nil
}

// IssueHMAC signs an HS256 token for userID, used by the operator CLI and
// in tests.
func IssueHMAC(secret []byte, userID uuid.UUID, email string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}
