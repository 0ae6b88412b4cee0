package repository

import (
	"context"
	"staybid/pkg/model"
)

// ParameterRepository stores the tunables as name/value text pairs.
type ParameterRepository interface {
	FindAll(ctx context.Context) ([]model.ParameterEntry, error)
	FindByName(ctx context.Context, name string) (*model.ParameterEntry, error)
	Upsert(ctx context.Context, entry *model.ParameterEntry) error
}
