package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"staybid/internal/migrations/mongo/validators"
	"staybid/pkg/logger"
	"staybid/pkg/model"
)

const ParametersCollection = "system_parameters"

var ParametersIndexes = []mongo.IndexModel{
	{
		Keys:    bson.D{{Key: "name", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("uniq_name"),
	},
}

// RunMigration ensures the parameter collection, its indexes and the default
// entries. Existing values are never overwritten.
func RunMigration(ctx context.Context, client *mongo.Client, dbName string, log *logger.Logger) error {
	db := client.Database(dbName)
	log.Info("Running Mongo migrations", "database", dbName)

	collections := map[string]struct {
		Indexes   []mongo.IndexModel
		Validator bson.M
	}{
		ParametersCollection: {
			Indexes:   ParametersIndexes,
			Validator: validators.ParameterValidator,
		},
	}

	for name, def := range collections {
		if err := ensureCollection(ctx, db, name, def.Validator, log); err != nil {
			return fmt.Errorf("failed to ensure collection %s: %w", name, err)
		}
		if err := ensureIndexes(ctx, db, name, def.Indexes, log); err != nil {
			return fmt.Errorf("failed to ensure indexes for %s: %w", name, err)
		}
	}

	if err := seedParameters(ctx, db.Collection(ParametersCollection), log); err != nil {
		return fmt.Errorf("failed to seed parameters: %w", err)
	}

	log.Info("All Mongo migrations applied successfully")
	return nil
}

func ensureCollection(ctx context.Context, db *mongo.Database, name string, validator bson.M, log *logger.Logger) error {
	existing, err := db.ListCollectionNames(ctx, bson.D{{Key: "name", Value: name}})
	if err != nil {
		return err
	}

	if len(existing) == 0 {
		log.Info("Creating collection", "collection", name)
		opts := options.CreateCollection().SetValidator(validator)
		if err := db.CreateCollection(ctx, name, opts); err != nil {
			return fmt.Errorf("failed creating %s: %w", name, err)
		}
		return nil
	}

	command := bson.D{
		{Key: "collMod", Value: name},
		{Key: "validator", Value: validator},
	}
	if err := db.RunCommand(ctx, command).Err(); err != nil {
		log.Warn("Failed updating validator", "collection", name, "error", err)
	}
	return nil
}

func ensureIndexes(ctx context.Context, db *mongo.Database, name string, models []mongo.IndexModel, log *logger.Logger) error {
	if _, err := db.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
		return err
	}
	log.Info("Ensured indexes", "collection", name)
	return nil
}

func seedParameters(ctx context.Context, coll *mongo.Collection, log *logger.Logger) error {
	now := time.Now().UTC()
	for _, entry := range model.DefaultParameterEntries() {
		update := bson.M{"$setOnInsert": bson.M{
			"name":        entry.Name,
			"value":       entry.Value,
			"description": entry.Description,
			"updated_at":  now,
		}}
		res, err := coll.UpdateOne(ctx, bson.M{"name": entry.Name}, update, options.Update().SetUpsert(true))
		if err != nil {
			return fmt.Errorf("failed to seed %s: %w", entry.Name, err)
		}
		if res.UpsertedCount > 0 {
			log.Info("Seeded parameter", "name", entry.Name, "value", entry.Value)
		}
	}
	return nil
}
