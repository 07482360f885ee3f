package dummydb

import (
	"context"
	"time"

	"github.com/trezcool/mahudhurio/core/settings"
)

type settingsRepository struct {
	db *settingsTable
}

var _ settings.Repository = (*settingsRepository)(nil) // interface compliance check

func NewSettingsRepository(db *DB) settings.Repository {
	return &settingsRepository{db: db.settings}
}

func (repo *settingsRepository) GetSettings(_ context.Context) (settings.Settings, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if repo.db.record == nil {
		repo.db.record = &settings.Settings{UpdatedAt: time.Now()}
	}
	return *repo.db.record, nil
}

func (repo *settingsRepository) SaveSettings(_ context.Context, s settings.Settings) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.db.record = &s
	return nil
}
