package auth

import (
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/golang-jwt/jwt/v5"
)

// TokenConfig sets token lifetimes.
type TokenConfig struct {
	AdminTTL time.Duration
	TempTTL  time.Duration
	StaffTTL time.Duration
}

// DefaultTokenConfig returns the stock lifetimes.
func DefaultTokenConfig() TokenConfig {
	return TokenConfig{
		AdminTTL: 24 * time.Hour,
		TempTTL:  time.Hour,
		StaffTTL: 24 * time.Hour,
	}
}

// TokenIssuer signs and verifies HS256 tokens with a shared secret.
type TokenIssuer struct {
	secret []byte
	cfg    TokenConfig
	now    func() time.Time
}

// NewTokenIssuer creates a TokenIssuer. Zero lifetimes take defaults.
func NewTokenIssuer(secret []byte, cfg TokenConfig) (*TokenIssuer, error) {
	if len(secret) == 0 {
		return nil, errors.New("jwt secret is empty")
	}
	def := DefaultTokenConfig()
	if cfg.AdminTTL <= 0 {
		cfg.AdminTTL = def.AdminTTL
	}
	if cfg.TempTTL <= 0 {
		cfg.TempTTL = def.TempTTL
	}
	if cfg.StaffTTL <= 0 {
		cfg.StaffTTL = def.StaffTTL
	}
	return &TokenIssuer{secret: secret, cfg: cfg, now: time.Now}, nil
}

// Issue signs a token for role. temp only applies to admin tokens.
func (i *TokenIssuer) Issue(role Role, temp bool) (string, error) {
	ttl := i.cfg.StaffTTL
	switch {
	case role == RoleAdmin && temp:
		ttl = i.cfg.TempTTL
	case role == RoleAdmin:
		ttl = i.cfg.AdminTTL
	default:
		temp = false
	}
	now := i.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Role: role,
		Temp: temp,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", errors.Wrap(err, "sign token")
	}
	return token, nil
}

// Verify parses a token and returns its claims.
func (i *TokenIssuer) Verify(token string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return i.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.now),
		jwt.WithExpirationRequired(),
	)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrTokenExpired
	case err != nil:
		return nil, ErrTokenInvalid
	}
	if claims.Role == "" {
		claims.Role = RoleStaff
	}
	return claims, nil
}

// VerifyHeader verifies an Authorization header value of the form
// "Bearer <token>".
func (i *TokenIssuer) VerifyHeader(header string) (*Claims, error) {
	if header == "" {
		return nil, ErrTokenMissing
	}
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return nil, ErrTokenMalformed
	}
	return i.Verify(token)
}
