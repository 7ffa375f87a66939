// Package token issues and parses HS256 access tokens carrying {id, role}.
package token

import (
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/golang-jwt/jwt/v5"
	"github.com/smallbiznis/qatech/internal/auth/domain"
	"github.com/smallbiznis/qatech/internal/clock"
	"github.com/smallbiznis/qatech/internal/config"
)

const issuer = "qatech"

type Claims struct {
	ID   string `json:"id"`
	Role string `json:"role"`
	jwt.RegisteredClaims
}

type Issuer struct {
	secret []byte
	clock  clock.Clock
}

func NewIssuer(cfg config.Config, clk clock.Clock) *Issuer {
	return &Issuer{secret: []byte(cfg.JWTSecret), clock: clk}
}

func (i *Issuer) Issue(userID snowflake.ID, role string, ttl time.Duration) (string, time.Time, error) {
	if len(i.secret) == 0 {
		return "", time.Time{}, errors.New("jwt secret is not configured")
	}
	now := i.clock.Now()
	expiresAt := now.Add(ttl)
	claims := Claims{
		ID:   userID.String(),
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Parse validates signature and expiry against the injected clock.
func (i *Issuer) Parse(raw string) (*Claims, error) {
	if len(i.secret) == 0 || raw == "" {
		return nil, domain.ErrInvalidToken
	}
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(i.clock.Now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, domain.ErrTokenExpired
		}
		return nil, domain.ErrInvalidToken
	}
	return claims, nil
}

func (c *Claims) UserID() (snowflake.ID, error) {
	id, err := snowflake.ParseString(c.ID)
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidToken
	}
	return id, nil
}
