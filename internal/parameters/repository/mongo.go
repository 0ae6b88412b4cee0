package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	parameterserrors "staybid/internal/parameters/errors"
	"staybid/pkg/config"
	"staybid/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const CollectionName = "system_parameters"

type mongoParameterRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoParameterRepository(cfg *config.Config, client *mongo.Client) ParameterRepository {
	return &mongoParameterRepository{
		cfg:        cfg,
		collection: client.Database(cfg.MongoDatabaseName).Collection(CollectionName),
	}
}

func (r *mongoParameterRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < timeout {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

func (r *mongoParameterRepository) FindAll(ctx context.Context) ([]model.ParameterEntry, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	cursor, err := r.collection.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list parameters: %w", err)
	}
	defer cursor.Close(ctx)

	var entries []model.ParameterEntry
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode parameters: %w", err)
	}
	return entries, nil
}

func (r *mongoParameterRepository) FindByName(ctx context.Context, name string) (*model.ParameterEntry, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var entry model.ParameterEntry
	if err := r.collection.FindOne(ctx, bson.M{"name": name}).Decode(&entry); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: %s", parameterserrors.ErrNotFound, name)
		}
		return nil, fmt.Errorf("failed to find parameter: %w", err)
	}
	return &entry, nil
}

func (r *mongoParameterRepository) Upsert(ctx context.Context, entry *model.ParameterEntry) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	entry.UpdatedAt = time.Now().UTC().Truncate(time.Millisecond)
	update := bson.M{
		"$set":         bson.M{"value": entry.Value, "updated_at": entry.UpdatedAt},
		"$setOnInsert": bson.M{"description": entry.Description},
	}
	_, err := r.collection.UpdateOne(ctx, bson.M{"name": entry.Name}, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to upsert parameter %s: %w", entry.Name, err)
	}
	r.cfg.Log.Info("Parameter stored", "type", "db", "name", entry.Name, "value", entry.Value)
	return nil
}
