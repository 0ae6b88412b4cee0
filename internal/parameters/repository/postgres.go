package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	parameterserrors "staybid/internal/parameters/errors"
	"staybid/pkg/config"
	"staybid/pkg/db/postgres"
	"staybid/pkg/model"

	"github.com/uptrace/bun"
)

type postgresParameterRepository struct {
	cfg *config.Config
	db  *bun.DB
}

func NewPostgresParameterRepository(cfg *config.Config, db *bun.DB) ParameterRepository {
	return &postgresParameterRepository{cfg: cfg, db: db}
}

func (r *postgresParameterRepository) FindAll(ctx context.Context) ([]model.ParameterEntry, error) {
	var entries []model.ParameterEntry
	err := postgres.Conn(ctx, r.db).NewSelect().
		Model(&entries).
		Order("name ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list parameters: %w", err)
	}
	return entries, nil
}

func (r *postgresParameterRepository) FindByName(ctx context.Context, name string) (*model.ParameterEntry, error) {
	entry := new(model.ParameterEntry)
	err := postgres.Conn(ctx, r.db).NewSelect().
		Model(entry).
		Where("name = ?", name).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", parameterserrors.ErrNotFound, name)
		}
		return nil, fmt.Errorf("failed to find parameter: %w", err)
	}
	return entry, nil
}

func (r *postgresParameterRepository) Upsert(ctx context.Context, entry *model.ParameterEntry) error {
	entry.UpdatedAt = time.Now().UTC()
	_, err := postgres.Conn(ctx, r.db).NewInsert().
		Model(entry).
		On("CONFLICT (name) DO UPDATE").
		Set("value = EXCLUDED.value").
		Set("updated_at = EXCLUDED.updated_at").
		Returning("description").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to upsert parameter %s: %w", entry.Name, err)
	}
	r.cfg.Log.Info("Parameter stored", "type", "db", "name", entry.Name, "value", entry.Value)
	return nil
}
