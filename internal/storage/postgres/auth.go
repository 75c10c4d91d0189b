package postgres

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/plantpass/internal/domain/auth"
)

const (
	getCredentialSQL = `SELECT password_hash, expires_at FROM admin_credentials WHERE id = $1`
	putCredentialSQL = `INSERT INTO admin_credentials (id, password_hash, expires_at) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE
		SET password_hash = EXCLUDED.password_hash, expires_at = EXCLUDED.expires_at`
	deleteCredentialSQL = `DELETE FROM admin_credentials WHERE id = $1`

	adminCredentialID = "admin"
	tempCredentialID  = "temp_password"
)

var (
	_ auth.CredentialStore   = (*CredentialStore)(nil)
	_ auth.TempPasswordStore = (*CredentialStore)(nil)
)

// CredentialStore keeps the admin password hash and the temporary
// password hash.
type CredentialStore struct {
	pool *pgxpool.Pool
}

// NewCredentialStore returns a CredentialStore that uses the given pool.
func NewCredentialStore(pool *pgxpool.Pool) *CredentialStore {
	return &CredentialStore{pool: pool}
}

// PasswordHash returns auth.ErrNotFound until a password is set.
func (s *CredentialStore) PasswordHash(ctx context.Context) ([]byte, error) {
	hash, _, err := s.get(ctx, adminCredentialID)
	return hash, err
}

// SetPasswordHash replaces the admin password hash.
func (s *CredentialStore) SetPasswordHash(ctx context.Context, hash []byte) error {
	return s.put(ctx, adminCredentialID, hash, nil)
}

// PutTempPassword replaces the temporary password hash.
func (s *CredentialStore) PutTempPassword(ctx context.Context, hash []byte, expiresAt time.Time) error {
	return s.put(ctx, tempCredentialID, hash, &expiresAt)
}

// TempPassword returns the temporary password hash and its expiry.
func (s *CredentialStore) TempPassword(ctx context.Context) ([]byte, time.Time, error) {
	return s.get(ctx, tempCredentialID)
}

// DeleteTempPassword removes the temporary password.
func (s *CredentialStore) DeleteTempPassword(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, deleteCredentialSQL, tempCredentialID); err != nil {
		return errors.Wrap(err, "delete temporary password")
	}
	return nil
}

func (s *CredentialStore) get(ctx context.Context, id string) ([]byte, time.Time, error) {
	var (
		hash      string
		expiresAt *time.Time
	)
	err := s.pool.QueryRow(ctx, getCredentialSQL, id).Scan(&hash, &expiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, time.Time{}, auth.ErrNotFound
	}
	if err != nil {
		return nil, time.Time{}, errors.Wrapf(err, "get credential %q", id)
	}
	var exp time.Time
	if expiresAt != nil {
		exp = *expiresAt
	}
	return []byte(hash), exp, nil
}

func (s *CredentialStore) put(ctx context.Context, id string, hash []byte, expiresAt *time.Time) error {
	if _, err := s.pool.Exec(ctx, putCredentialSQL, id, string(hash), expiresAt); err != nil {
		return errors.Wrapf(err, "put credential %q", id)
	}
	return nil
}
