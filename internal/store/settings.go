package store

import (
	"context"
	"fmt"

	"admissions-portal/internal/models"
	"admissions-portal/internal/settings"
)

type settingsStore struct {
	*MySQLStore
}

func (ms *MySQLStore) Settings() settings.Store {
	return &settingsStore{MySQLStore: ms}
}

const settingColumns = `setting_key, setting_value, value_type, version, updated_at`

func (s *settingsStore) ListSettings(ctx context.Context) ([]models.SystemSetting, error) {
	return QueryListNamed[models.SystemSetting](ctx, s.db,
		`SELECT `+settingColumns+` FROM system_settings ORDER BY setting_key`, nil)
}

func (s *settingsStore) GetSetting(ctx context.Context, key string) (models.SystemSetting, error) {
	row, err := QueryNamedOne[models.SystemSetting](ctx, s.db,
		`SELECT `+settingColumns+` FROM system_settings WHERE setting_key = :key`,
		map[string]any{"key": key})
	if isNoRows(err) {
		return row, settings.ErrNotSet
	}
	return row, err
}

func (s *settingsStore) UpsertSetting(ctx context.Context, key, value string, kind string) error {
	_, err := ExecNamed(ctx, s.db, `
		INSERT INTO system_settings (setting_key, setting_value, value_type, version)
		VALUES (:key, :value, :kind, 1)
		ON DUPLICATE KEY UPDATE
			setting_value = VALUES(setting_value),
			value_type = VALUES(value_type),
			version = version + 1`,
		map[string]any{"key": key, "value": value, "kind": kind})
	if err != nil {
		return fmt.Errorf("upsert setting %s: %w", key, err)
	}
	return nil
}
