// Package auth mints and verifies the HS256 bearer tokens shared by the
// demo API and the HTTP transport.
package auth

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const DefaultTTL = time.Hour

var (
	ErrNoSecret  = errors.New("jwt secret not configured")
	ErrNoSubject = errors.New("subject claim required")
	ErrInvalid   = errors.New("invalid token")
)

type Claims struct {
	jwt.RegisteredClaims
	Roles []string `json:"roles,omitempty"`
}

// Principal is the authenticated caller.
type Principal struct {
	Subject string
	Roles   []string
}

// Mint signs a token for subject valid for ttl from now.
func Mint(secret, subject string, roles []string, ttl time.Duration, now time.Time) (string, error) {
	if strings.TrimSpace(secret) == "" {
		return "", ErrNoSecret
	}
	if subject == "" {
		return "", ErrNoSubject
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Roles: roles,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// Parse verifies token against secret.
func Parse(token, secret string) (Principal, error) {
	if strings.TrimSpace(secret) == "" {
		return Principal{}, ErrNoSecret
	}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	claims := &Claims{}
	parsed, err := parser.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	})
	if err != nil {
		return Principal{}, err
	}
	if !parsed.Valid {
		return Principal{}, ErrInvalid
	}
	if claims.Subject == "" {
		return Principal{}, ErrNoSubject
	}
	return Principal{Subject: claims.Subject, Roles: claims.Roles}, nil
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(authz string) (string, bool) {
	parts := strings.Fields(authz)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	return parts[1], true
}

// Minter hands out tokens, minting a new one shortly before the last expires.
type Minter struct {
	Secret  string
	Subject string
	Roles   []string
	TTL     time.Duration
	Now     func() time.Time

	mu      sync.Mutex
	token   string
	expires time.Time
}

func (m *Minter) Token() (string, error) {
	now := time.Now
	if m.Now != nil {
		now = m.Now
	}
	ttl := m.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	t := now()
	if m.token != "" && t.Add(ttl/10).Before(m.expires) {
		return m.token, nil
	}
	token, err := Mint(m.Secret, m.Subject, m.Roles, ttl, t)
	if err != nil {
		return "", err
	}
	m.token = token
	m.expires = t.Add(ttl)
	return token, nil
}
