package niebocross

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/zatyrani/zatyrani-backend/middleware"
)

// Claims identify a registration for the lifetime of the session cookie.
type Claims struct {
	RegistrationID string `json:"registration_id"`
	Email          string `json:"email"`
	jwt.RegisteredClaims
}

// Tokens issues and verifies HS256 session tokens.
type Tokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokens(secret string, ttl time.Duration) *Tokens {
	return &Tokens{secret: []byte(secret), ttl: ttl, now: time.Now}
}

func (t *Tokens) Issue(registrationID, email string) (string, time.Time, error) {
	if len(t.secret) == 0 {
		return "", time.Time{}, errors.New("session secret not configured")
	}
	now := t.now()
	expires := now.Add(t.ttl)
	claims := Claims{
		RegistrationID: registrationID,
		Email:          email,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign session token: %w", err)
	}
	return signed, expires, nil
}

// Parse implements middleware.RegistrationTokens. An expired token yields
// middleware.ErrSessionExpired.
func (t *Tokens) Parse(token string) (string, string, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(tok *jwt.Token) (interface{}, error) {
		return t.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(t.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", "", middleware.ErrSessionExpired
		}
		return "", "", err
	}
	if !parsed.Valid || claims.RegistrationID == "" {
		return "", "", errors.New("invalid token claims")
	}
	return claims.RegistrationID, claims.Email, nil
}
