package security

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/GeruIndu/Intelligent-Building-Management-System/internal/core/domain"
)

// ErrInvalidToken indicates the bearer token failed verification.
var ErrInvalidToken = errors.New("token: invalid or expired")

// AccessClaims carries the identity and role asserted by the identity service.
type AccessClaims struct {
	UserID string `json:"uid"`
	Role   string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// TokenVerifier validates bearer tokens issued by the building identity service.
// Tokens are HMAC-signed with a shared key; issuance happens elsewhere.
type TokenVerifier struct {
	signingKey []byte
	issuer     string
}

// NewTokenVerifier constructs a verifier for the shared signing key.
func NewTokenVerifier(signingKey, issuer string) (*TokenVerifier, error) {
	if strings.TrimSpace(signingKey) == "" {
		return nil, fmt.Errorf("token: signing key is required")
	}
	return &TokenVerifier{signingKey: []byte(signingKey), issuer: issuer}, nil
}

// Verify parses and validates a bearer token and returns the acting identity.
func (v *TokenVerifier) Verify(tokenString string) (domain.Actor, error) {
	claims := &AccessClaims{}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return v.signingKey, nil
	}, opts...)
	if err != nil {
		return domain.Actor{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return domain.Actor{}, ErrInvalidToken
	}

	userID := strings.TrimSpace(claims.UserID)
	if userID == "" {
		userID = strings.TrimSpace(claims.Subject)
	}
	if userID == "" {
		return domain.Actor{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	return domain.Actor{ID: userID, Role: domain.ParseRole(claims.Role)}, nil
}

// Sign issues a token for the supplied identity. Intended for local development
// and tests; production tokens come from the identity service.
func (v *TokenVerifier) Sign(userID string, role domain.Role, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	claims := &AccessClaims{
		UserID: userID,
		Role:   string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(v.signingKey)
	if err != nil {
		return "", fmt.Errorf("token: sign: %w", err)
	}

	return signed, nil
}
