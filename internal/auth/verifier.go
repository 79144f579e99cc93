// Package auth verifies bearer tokens and extracts the caller's identity.
package auth

import (
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/openscholar/submission-service/internal/domain"
)

// Claims is the identity carried by a verified token.
type Claims struct {
	UID   string
	Admin bool
}

// Verifier checks a bearer token and returns the caller's claims.
// Implementations must fail closed: any doubt about the token means
// domain.ErrUnauthenticated.
type Verifier interface {
	Verify(token string) (Claims, error)
}

type tokenClaims struct {
	Admin bool `json:"admin"`
	jwt.RegisteredClaims
}

// JWTVerifier validates HS256-signed tokens. The subject claim carries the
// user's UID and the custom "admin" claim marks administrators.
type JWTVerifier struct {
	secret   []byte
	issuer   string
	audience string
}

// NewJWTVerifier creates a verifier for the given signing secret. Issuer and
// audience checks are applied only when non-empty.
func NewJWTVerifier(secret, issuer, audience string) (*JWTVerifier, error) {
	if secret == "" {
		return nil, fmt.Errorf("auth: signing secret is required")
	}
	return &JWTVerifier{secret: []byte(secret), issuer: issuer, audience: audience}, nil
}

// Verify parses and validates the token. Expired, malformed, unsigned, or
// wrongly-signed tokens all map to domain.ErrUnauthenticated.
func (v *JWTVerifier) Verify(token string) (Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Claims{}, domain.ErrUnauthenticated
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	var claims tokenClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...)
	if err != nil || !parsed.Valid {
		return Claims{}, fmt.Errorf("%w: %v", domain.ErrUnauthenticated, err)
	}
	if claims.Subject == "" {
		return Claims{}, fmt.Errorf("%w: token has no subject", domain.ErrUnauthenticated)
	}

	return Claims{UID: claims.Subject, Admin: claims.Admin}, nil
}

// BearerToken extracts the token from an Authorization header value. It
// accepts both "Bearer <token>" and a bare token.
func BearerToken(header string) string {
	header = strings.TrimSpace(header)
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return header
}
