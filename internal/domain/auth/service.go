package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"io"
	"math/big"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/xenking/plantpass/internal/mail"
)

const (
	// DefaultTempPasswordTTL is how long a forgot-password code stays valid.
	DefaultTempPasswordTTL = 15 * time.Minute
	tempPasswordLength     = 12
	tempPasswordAlphabet   = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// Mailer dispatches the password reset email.
type Mailer interface {
	Dispatch(ctx context.Context, kind mail.Kind, payload any) error
}

// LoginResult is returned by a successful Login.
type LoginResult struct {
	Token                  string
	RequiresPasswordChange bool
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithRandom overrides the temporary password entropy source.
func WithRandom(r io.Reader) Option {
	return func(s *Service) { s.rand = r }
}

// WithBcryptCost sets the hashing cost for stored passwords.
func WithBcryptCost(cost int) Option {
	return func(s *Service) { s.cost = cost }
}

// WithTempPasswordTTL sets the temporary password lifetime.
func WithTempPasswordTTL(ttl time.Duration) Option {
	return func(s *Service) { s.tempTTL = ttl }
}

// Service implements admin login, password management and staff access.
type Service struct {
	tokens      *TokenIssuer
	creds       CredentialStore
	temps       TempPasswordStore
	passphrases PassphraseStore
	mailer      Mailer

	now     func() time.Time
	rand    io.Reader
	cost    int
	tempTTL time.Duration
}

// NewService creates an auth Service.
func NewService(
	tokens *TokenIssuer,
	creds CredentialStore,
	temps TempPasswordStore,
	passphrases PassphraseStore,
	mailer Mailer,
	opts ...Option,
) *Service {
	s := &Service{
		tokens:      tokens,
		creds:       creds,
		temps:       temps,
		passphrases: passphrases,
		mailer:      mailer,
		now:         time.Now,
		rand:        rand.Reader,
		cost:        bcrypt.DefaultCost,
		tempTTL:     DefaultTempPasswordTTL,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Tokens returns the issuer used to verify requests.
func (s *Service) Tokens() *TokenIssuer {
	return s.tokens
}

// Login checks password against the admin password, then against an
// unexpired temporary password. A matching temporary password is consumed
// and yields a short-lived token that requires a password change.
func (s *Service) Login(ctx context.Context, password string) (LoginResult, error) {
	lg := zctx.From(ctx)

	hash, err := s.creds.PasswordHash(ctx)
	switch {
	case errors.Is(err, ErrNotFound):
		lg.Warn("Admin password is not set")
	case err != nil:
		return LoginResult{}, errors.Wrap(err, "get password hash")
	case bcrypt.CompareHashAndPassword(hash, []byte(password)) == nil:
		token, err := s.tokens.Issue(RoleAdmin, false)
		if err != nil {
			return LoginResult{}, err
		}
		lg.Info("Admin logged in")
		return LoginResult{Token: token}, nil
	}

	tempHash, err := s.tempPassword(ctx)
	if err != nil {
		return LoginResult{}, err
	}
	if tempHash == nil || bcrypt.CompareHashAndPassword(tempHash, []byte(password)) != nil {
		lg.Warn("Admin login failed")
		return LoginResult{}, ErrInvalidCredentials
	}
	token, err := s.tokens.Issue(RoleAdmin, true)
	if err != nil {
		return LoginResult{}, err
	}
	if err := s.temps.DeleteTempPassword(ctx); err != nil {
		lg.Error("Delete temporary password", zap.Error(err))
	}
	lg.Info("Admin logged in with temporary password")
	return LoginResult{Token: token, RequiresPasswordChange: true}, nil
}

// tempPassword returns the stored temporary hash, or nil when none is
// stored or it has expired.
func (s *Service) tempPassword(ctx context.Context) ([]byte, error) {
	hash, expiresAt, err := s.temps.TempPassword(ctx)
	switch {
	case errors.Is(err, ErrNotFound):
		return nil, nil
	case err != nil:
		return nil, errors.Wrap(err, "get temporary password")
	}
	if s.now().After(expiresAt) {
		if err := s.temps.DeleteTempPassword(ctx); err != nil {
			zctx.From(ctx).Error("Delete expired temporary password", zap.Error(err))
		}
		return nil, nil
	}
	return hash, nil
}

// ChangePassword replaces the admin password. Tokens issued for a
// temporary password skip the current password check.
func (s *Service) ChangePassword(ctx context.Context, claims *Claims, current, next string) error {
	if next == "" {
		return ErrPasswordRequired
	}
	if !claims.Temp {
		hash, err := s.creds.PasswordHash(ctx)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return errors.Wrap(err, "get password hash")
		}
		if err != nil || bcrypt.CompareHashAndPassword(hash, []byte(current)) != nil {
			return ErrInvalidCurrentPassword
		}
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(next), s.cost)
	if err != nil {
		return errors.Wrap(err, "hash password")
	}
	if err := s.creds.SetPasswordHash(ctx, hash); err != nil {
		return errors.Wrap(err, "set password hash")
	}
	zctx.From(ctx).Info("Admin password changed", zap.Bool("temp", claims.Temp))
	return nil
}

// ForgotPassword stores a fresh temporary password and emails it to the
// club address. A failed dispatch is returned to the caller.
func (s *Service) ForgotPassword(ctx context.Context) error {
	temp, err := s.generateTempPassword()
	if err != nil {
		return errors.Wrap(err, "generate temporary password")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(temp), s.cost)
	if err != nil {
		return errors.Wrap(err, "hash temporary password")
	}
	if err := s.temps.PutTempPassword(ctx, hash, s.now().Add(s.tempTTL)); err != nil {
		return errors.Wrap(err, "store temporary password")
	}
	if err := s.mailer.Dispatch(ctx, mail.KindPasswordReset, mail.PasswordReset{
		TempPassword: temp,
		ExpiresIn:    s.tempTTL,
	}); err != nil {
		return errors.Wrap(err, "send password reset")
	}
	zctx.From(ctx).Info("Temporary password issued", zap.Duration("ttl", s.tempTTL))
	return nil
}

func (s *Service) generateTempPassword() (string, error) {
	limit := big.NewInt(int64(len(tempPasswordAlphabet)))
	b := make([]byte, tempPasswordLength)
	for i := range b {
		n, err := rand.Int(s.rand, limit)
		if err != nil {
			return "", err
		}
		b[i] = tempPasswordAlphabet[n.Int64()]
	}
	return string(b), nil
}

// VerifyPassphrase exchanges the staff passphrase for a staff token.
func (s *Service) VerifyPassphrase(ctx context.Context, passphrase string) (string, error) {
	if passphrase == "" {
		return "", ErrPassphraseRequired
	}
	stored, err := s.Passphrase(ctx)
	if err != nil {
		return "", err
	}
	if subtle.ConstantTimeCompare([]byte(stored), []byte(passphrase)) != 1 {
		zctx.From(ctx).Warn("Incorrect passphrase")
		return "", ErrIncorrectPassphrase
	}
	return s.tokens.Issue(RoleStaff, false)
}

// Passphrase returns the stored passphrase, or "" when unset.
func (s *Service) Passphrase(ctx context.Context) (string, error) {
	p, err := s.passphrases.Passphrase(ctx)
	switch {
	case errors.Is(err, ErrNotFound):
		return "", nil
	case err != nil:
		return "", errors.Wrap(err, "get passphrase")
	}
	return p, nil
}

// SetPassphrase replaces the staff passphrase.
func (s *Service) SetPassphrase(ctx context.Context, passphrase string) error {
	if err := s.passphrases.SetPassphrase(ctx, passphrase); err != nil {
		return errors.Wrap(err, "set passphrase")
	}
	zctx.From(ctx).Info("Passphrase updated")
	return nil
}
