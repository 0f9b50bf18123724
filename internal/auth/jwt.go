package auth

import (
	"crypto/subtle"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// RoleAdmin is the only role a PIN unlocks.
const RoleAdmin = "admin"

var (
	ErrInvalidToken   = errors.New("invalid token")
	ErrIssuerMismatch = errors.New("issuer mismatch")
)

// Token is a signed admin session.
type Token struct {
	AccessToken string
	ExpiresAt   time.Time
}

// Claims represents JWT payload.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Issuer signs and verifies admin tokens with one HS256 key.
type Issuer struct {
	name string
	key  []byte
	ttl  time.Duration
	now  func() time.Time
}

// NewIssuer returns an issuer whose tokens live for ttl.
func NewIssuer(name, key string, ttl time.Duration) *Issuer {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &Issuer{name: name, key: []byte(key), ttl: ttl, now: time.Now}
}

// Issue signs a fresh admin token.
func (i *Issuer) Issue() (Token, error) {
	now := i.now()
	exp := now.Add(i.ttl)
	claims := Claims{
		Role: RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    i.name,
			Subject:   RoleAdmin,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.key)
	if err != nil {
		return Token{}, err
	}
	return Token{AccessToken: signed, ExpiresAt: exp}, nil
}

// Parse validates a token and returns claims.
func (i *Issuer) Parse(tokenStr string) (Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return i.key, nil
	}, jwt.WithTimeFunc(i.now))
	if err != nil {
		return Claims{}, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.Role != RoleAdmin {
		return Claims{}, ErrInvalidToken
	}
	if i.name != "" && claims.Issuer != i.name {
		return Claims{}, ErrIssuerMismatch
	}
	return *claims, nil
}

// PIN guards the admin surface. An empty PIN disables the gate.
type PIN struct {
	value string
}

// NewPIN wraps the configured admin PIN.
func NewPIN(value string) PIN { return PIN{value: value} }

// Enabled reports whether a PIN is configured.
func (p PIN) Enabled() bool { return p.value != "" }

// Check compares candidate in constant time.
func (p PIN) Check(candidate string) bool {
	if !p.Enabled() {
		return true
	}
	return subtle.ConstantTimeCompare([]byte(p.value), []byte(candidate)) == 1
}
