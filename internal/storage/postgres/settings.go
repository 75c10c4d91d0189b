package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/plantpass/internal/domain/auth"
	"github.com/xenking/plantpass/internal/domain/settings"
)

const (
	getSettingSQL = `SELECT value FROM settings WHERE key = $1`
	putSettingSQL = `INSERT INTO settings (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`

	togglesKey    = "feature_toggles"
	lockKeyPrefix = "lock:"
	passphraseKey = "plantpass_access"
)

var (
	_ settings.Store       = (*SettingsStore)(nil)
	_ auth.PassphraseStore = (*SettingsStore)(nil)
)

type lockValue struct {
	Locked bool `json:"isLocked"`
}

type passphraseValue struct {
	Passphrase string `json:"passphrase"`
}

// SettingsStore keeps feature toggles, catalog locks and the staff
// passphrase as JSONB values in a key/value table.
type SettingsStore struct {
	pool *pgxpool.Pool
}

// NewSettingsStore returns a SettingsStore that uses the given pool.
func NewSettingsStore(pool *pgxpool.Pool) *SettingsStore {
	return &SettingsStore{pool: pool}
}

// Toggles returns settings.ErrNotFound until toggles are saved.
func (s *SettingsStore) Toggles(ctx context.Context) (settings.Toggles, error) {
	var t settings.Toggles
	err := s.get(ctx, togglesKey, &t)
	return t, err
}

// PutToggles saves toggles.
func (s *SettingsStore) PutToggles(ctx context.Context, t settings.Toggles) error {
	return s.put(ctx, togglesKey, t)
}

// Lock returns settings.ErrNotFound for a lock never set.
func (s *SettingsStore) Lock(ctx context.Context, r settings.Resource) (bool, error) {
	var v lockValue
	err := s.get(ctx, lockKeyPrefix+string(r), &v)
	return v.Locked, err
}

// PutLock saves a lock state.
func (s *SettingsStore) PutLock(ctx context.Context, r settings.Resource, locked bool) error {
	return s.put(ctx, lockKeyPrefix+string(r), lockValue{Locked: locked})
}

// Passphrase returns auth.ErrNotFound until a passphrase is saved.
func (s *SettingsStore) Passphrase(ctx context.Context) (string, error) {
	var v passphraseValue
	err := s.get(ctx, passphraseKey, &v)
	if errors.Is(err, settings.ErrNotFound) {
		return "", auth.ErrNotFound
	}
	return v.Passphrase, err
}

// SetPassphrase saves the staff passphrase.
func (s *SettingsStore) SetPassphrase(ctx context.Context, passphrase string) error {
	return s.put(ctx, passphraseKey, passphraseValue{Passphrase: passphrase})
}

func (s *SettingsStore) get(ctx context.Context, key string, dst any) error {
	err := s.pool.QueryRow(ctx, getSettingSQL, key).Scan(dst)
	if errors.Is(err, pgx.ErrNoRows) {
		return settings.ErrNotFound
	}
	if err != nil {
		return errors.Wrapf(err, "get setting %q", key)
	}
	return nil
}

func (s *SettingsStore) put(ctx context.Context, key string, value any) error {
	if _, err := s.pool.Exec(ctx, putSettingSQL, key, value); err != nil {
		return errors.Wrapf(err, "put setting %q", key)
	}
	return nil
}
