// Package auth issues and verifies access tokens for the admin and staff
// roles and manages the admin password and the staff passphrase.
package auth

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/golang-jwt/jwt/v5"
)

// Errors returned by the Service and TokenIssuer.
var (
	ErrNotFound               = errors.New("credential not found")
	ErrInvalidCredentials     = errors.New("invalid password")
	ErrInvalidCurrentPassword = errors.New("invalid current password")
	ErrPasswordRequired       = errors.New("password is required")
	ErrPassphraseRequired     = errors.New("passphrase is required")
	ErrIncorrectPassphrase    = errors.New("incorrect passphrase")
	ErrTokenMissing           = errors.New("missing authorization header")
	ErrTokenMalformed         = errors.New("invalid authorization header format")
	ErrTokenExpired           = errors.New("token expired")
	ErrTokenInvalid           = errors.New("invalid token")
	ErrForbidden              = errors.New("insufficient permissions")
)

// Role is the access level carried by a token.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleStaff Role = "staff"
)

// Claims are the JWT claims of an access token.
type Claims struct {
	jwt.RegisteredClaims
	Role Role `json:"role"`
	// Temp marks a token obtained with a temporary password. It may only
	// be used to change the password.
	Temp bool `json:"temp,omitempty"`
}

// Allows reports whether the claims satisfy required. Admin satisfies
// every role; a token without a role counts as staff.
func (c *Claims) Allows(required Role) bool {
	if required == RoleAdmin {
		return c.Role == RoleAdmin
	}
	return true
}

// CredentialStore holds the bcrypt hash of the admin password.
type CredentialStore interface {
	PasswordHash(ctx context.Context) ([]byte, error)
	SetPasswordHash(ctx context.Context, hash []byte) error
}

// TempPasswordStore holds at most one temporary admin password hash.
type TempPasswordStore interface {
	PutTempPassword(ctx context.Context, hash []byte, expiresAt time.Time) error
	// TempPassword returns ErrNotFound when none is stored.
	TempPassword(ctx context.Context) (hash []byte, expiresAt time.Time, err error)
	DeleteTempPassword(ctx context.Context) error
}

// PassphraseStore holds the staff access passphrase.
type PassphraseStore interface {
	Passphrase(ctx context.Context) (string, error)
	SetPassphrase(ctx context.Context, passphrase string) error
}

type claimsKey struct{}

// WithClaims stores verified claims in ctx.
func WithClaims(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, c)
}

// ClaimsFrom returns claims stored by WithClaims.
func ClaimsFrom(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(claimsKey{}).(*Claims)
	return c, ok
}
