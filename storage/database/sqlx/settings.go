package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core/settings"
)

type settingsRow struct {
	LoginLocked bool      `db:"login_locked"`
	UpdatedAt   time.Time `db:"updated_at"`
}

type settingsRepository struct {
	db *sqlx.DB
}

var _ settings.Repository = (*settingsRepository)(nil) // interface compliance check

func NewSettingsRepository(db *sqlx.DB) *settingsRepository {
	return &settingsRepository{db: db}
}

func (repo settingsRepository) unpack(row settingsRow) settings.Settings {
	return settings.Settings{
		LoginLocked: row.LoginLocked,
		UpdatedAt:   row.UpdatedAt,
	}
}

// GetSettings returns the singleton record, inserting the unlocked default
// on first read.
func (repo settingsRepository) GetSettings(ctx context.Context) (settings.Settings, error) {
	var row settingsRow
	err := repo.db.GetContext(ctx, &row, "SELECT login_locked, updated_at FROM system_settings")
	if err == nil {
		return repo.unpack(row), nil
	}
	if err != sql.ErrNoRows {
		return settings.Settings{}, errors.Wrap(err, "finding settings")
	}

	_, err = repo.db.ExecContext(ctx, `
		INSERT INTO system_settings (id, login_locked, updated_at) VALUES (TRUE, FALSE, now())
		ON CONFLICT (id) DO NOTHING`)
	if err != nil {
		return settings.Settings{}, errors.Wrap(err, "initializing settings")
	}

	if err := repo.db.GetContext(ctx, &row, "SELECT login_locked, updated_at FROM system_settings"); err != nil {
		return settings.Settings{}, errors.Wrap(err, "finding settings")
	}
	return repo.unpack(row), nil
}

// SaveSettings replaces the singleton record wholesale.
func (repo settingsRepository) SaveSettings(ctx context.Context, s settings.Settings) error {
	_, err := repo.db.ExecContext(ctx, `
		INSERT INTO system_settings (id, login_locked, updated_at) VALUES (TRUE, $1, $2)
		ON CONFLICT (id) DO UPDATE SET login_locked = EXCLUDED.login_locked, updated_at = EXCLUDED.updated_at`,
		s.LoginLocked, s.UpdatedAt.UTC())
	return errors.Wrap(err, "saving settings")
}
