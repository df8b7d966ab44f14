package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/storefront/internal/model"
)

// GetSettings возвращает сохранённые настройки магазина.
func (r *PostgresRepository) GetSettings(ctx context.Context) (*model.StoreSettings, error) {
	var data []byte
	err := r.pool.QueryRow(ctx, `SELECT data FROM store_settings WHERE id = 1`).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get settings: %w", err)
	}

	var s model.StoreSettings
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode settings: %w", err)
	}
	return &s, nil
}

// SaveSettings сохраняет настройки магазина.
func (r *PostgresRepository) SaveSettings(ctx context.Context, s model.StoreSettings) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO store_settings (id, data) VALUES (1, $1)
		 ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data, updated_at = now()`,
		data,
	)
	if err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}
