package units

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	unitserrors "staybid/internal/units/errors"
	"staybid/pkg/model"

	"github.com/uptrace/bun"
)

type postgresSource struct {
	db *bun.DB
}

// NewPostgresSource reads the catalog-owned units table.
func NewPostgresSource(db *bun.DB) Source {
	return &postgresSource{db: db}
}

func (s *postgresSource) UnitByUID(ctx context.Context, uid string) (*model.Unit, error) {
	return s.findOne(ctx, "uid = ?", uid)
}

func (s *postgresSource) UnitByID(ctx context.Context, id int64) (*model.Unit, error) {
	return s.findOne(ctx, "id = ?", id)
}

func (s *postgresSource) findOne(ctx context.Context, where string, arg any) (*model.Unit, error) {
	unit := new(model.Unit)
	if err := s.db.NewSelect().Model(unit).Where(where, arg).Limit(1).Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %v", unitserrors.ErrNotFound, arg)
		}
		return nil, fmt.Errorf("failed to find unit: %w", err)
	}
	return unit, nil
}
