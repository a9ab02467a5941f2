// Package auth verifies the HS256 access tokens issued by the identity
// service. Issuing lives here too so tests and local tooling can sign tokens
// the API will accept.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/playfunia-backend/pkg/config"
	"github.com/angelmondragon/playfunia-backend/pkg/enums"
)

var signingMethod = jwt.SigningMethodHS256

// Identity is the caller a token vouches for.
type Identity struct {
	UserID uuid.UUID
	Email  string
	Role   enums.Role
}

// Claims is the token body. Subject repeats the user id for generic JWT tooling.
type Claims struct {
	UserID uuid.UUID  `json:"user_id"`
	Email  string     `json:"email,omitempty"`
	Role   enums.Role `json:"role"`
	jwt.RegisteredClaims
}

func (c *Claims) Identity() Identity {
	return Identity{UserID: c.UserID, Email: c.Email, Role: c.Role}
}

func checkConfig(cfg config.JWTConfig) error {
	switch {
	case cfg.Secret == "":
		return errors.New("jwt secret is required")
	case cfg.Issuer == "":
		return errors.New("jwt issuer is required")
	}
	return nil
}

// IssueToken signs a token for id that expires cfg.Expiration() after now.
func IssueToken(cfg config.JWTConfig, now time.Time, id Identity) (string, error) {
	if err := checkConfig(cfg); err != nil {
		return "", err
	}
	if id.UserID == uuid.Nil {
		return "", errors.New("user id is required")
	}
	if !id.Role.IsValid() {
		return "", fmt.Errorf("invalid role %q", id.Role)
	}

	claims := Claims{
		UserID: id.UserID,
		Email:  strings.TrimSpace(id.Email),
		Role:   id.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer,
			Subject:   id.UserID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(cfg.Expiration())),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(signingMethod, claims).SignedString([]byte(cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("signing jwt: %w", err)
	}
	return signed, nil
}

// VerifyToken checks signature, issuer and expiry (with cfg.Leeway() of clock
// skew) and that the token names a known user and role.
func VerifyToken(cfg config.JWTConfig, raw string) (*Claims, error) {
	if err := checkConfig(cfg); err != nil {
		return nil, err
	}
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims,
		func(*jwt.Token) (any, error) { return []byte(cfg.Secret), nil },
		jwt.WithValidMethods([]string{signingMethod.Alg()}),
		jwt.WithIssuer(cfg.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(cfg.Leeway()),
	)
	if err != nil {
		return nil, err
	}
	if claims.UserID == uuid.Nil {
		return nil, errors.New("token has no user id")
	}
	if !claims.Role.IsValid() {
		return nil, fmt.Errorf("invalid role %q", claims.Role)
	}
	return claims, nil
}
