package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// CookieCodec signs and verifies the session-id cookie.
//
// The cookie value is an HMAC-SHA256 JWT whose subject is the session id.
// The signature is what matters: a client cannot mint or alter a session id
// without the secret. No user data rides in the token — the session store
// holds all of that.
type CookieCodec struct {
	secret []byte
}

const issuer = "mlp"

// NewCookieCodec creates a codec keyed with secret (SESSION_SECRET).
func NewCookieCodec(secret string) (*CookieCodec, error) {
	if len(secret) < 16 {
		return nil, errors.New("session: secret must be at least 16 characters")
	}
	return &CookieCodec{secret: []byte(secret)}, nil
}

// Sign returns a signed token for sessionID, valid for ttl.
func (c *CookieCodec) Sign(sessionID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   sessionID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		Issuer:    issuer,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("session: signing token: %w", err)
	}
	return signed, nil
}

// Verify checks the token's signature, expiry, and issuer, and returns the
// session id it carries.
//
// jwt.WithValidMethods pins the algorithm to HS256 — without it a forged
// token could claim a different algorithm and sidestep the HMAC check.
func (c *CookieCodec) Verify(tokenStr string) (string, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&jwt.RegisteredClaims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("session: unexpected signing method: %v", token.Header["alg"])
			}
			return c.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", fmt.Errorf("session: token expired")
		}
		return "", fmt.Errorf("session: invalid token: %w", err)
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || !token.Valid || claims.Subject == "" {
		return "", fmt.Errorf("session: invalid token claims")
	}
	return claims.Subject, nil
}
