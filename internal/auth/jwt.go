package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
)

// Claims carries the caller's email in sub and the role.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Email is the token subject.
func (c *Claims) Email() string {
	return c.Subject
}

// Validator verifies HS256 bearer tokens.
type Validator struct {
	secretKey []byte
}

func NewValidator(secretKey string) *Validator {
	return &Validator{secretKey: []byte(secretKey)}
}

func (v *Validator) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return v.secretKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// Issuer signs tokens for local tooling and tests; production tokens come from the account service.
type Issuer struct {
	secretKey []byte
	expiry    time.Duration
	now       func() time.Time
}

func NewIssuer(secretKey string, expiry time.Duration) *Issuer {
	return &Issuer{secretKey: []byte(secretKey), expiry: expiry, now: time.Now}
}

func (i *Issuer) Issue(email, role string) (string, time.Time, error) {
	now := i.now()
	expiresAt := now.Add(i.expiry)

	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secretKey)
	if err != nil {
		return "", time.Time{}, err
	}

	return token, expiresAt, nil
}
