package store

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.uber.org/zap"
)

// MongoStore keeps one document per subject in a single collection:
// {subject_id, embedding}.
type MongoStore struct {
	client     *mongo.Client
	collection *mongo.Collection
	logger     *zap.Logger
}

// ConnectMongo dials the database and verifies connectivity before returning
// a store bound to the named database and collection.
func ConnectMongo(ctx context.Context, uri, database, collection string, logger *zap.Logger) (*MongoStore, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return &MongoStore{
		client:     client,
		collection: client.Database(database).Collection(collection),
		logger:     logger.Named("store.mongo"),
	}, nil
}

// Upsert replaces the subject's template in a single keyed write, so two
// concurrent enrollments for the same subject cannot interleave.
func (s *MongoStore) Upsert(ctx context.Context, subjectID string, embedding []float32) error {
	doc := Template{SubjectID: subjectID, Embedding: embedding}
	opts := options.Replace().SetUpsert(true)
	result, err := s.collection.ReplaceOne(ctx, bson.M{"subject_id": subjectID}, doc, opts)
	if err != nil {
		return fmt.Errorf("upsert template: %w", err)
	}

	if result.ModifiedCount > 0 {
		s.logger.Info("updated embedding", zap.String("subject_id", subjectID))
	} else {
		s.logger.Info("inserted embedding", zap.String("subject_id", subjectID))
	}
	return nil
}

// All loads the full template set sorted by subject ID.
func (s *MongoStore) All(ctx context.Context) ([]Template, error) {
	opts := options.Find().SetSort(bson.D{{Key: "subject_id", Value: 1}})
	cur, err := s.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("load templates: %w", err)
	}
	defer cur.Close(ctx)

	templates := make([]Template, 0)
	for cur.Next(ctx) {
		var t Template
		if err := cur.Decode(&t); err != nil {
			return nil, fmt.Errorf("decode template: %w", err)
		}
		templates = append(templates, t)
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("iterate templates: %w", err)
	}

	s.logger.Debug("retrieved templates", zap.Int("count", len(templates)))
	return templates, nil
}

// Delete removes the subject's template, reporting whether one existed.
func (s *MongoStore) Delete(ctx context.Context, subjectID string) (bool, error) {
	result, err := s.collection.DeleteOne(ctx, bson.M{"subject_id": subjectID})
	if err != nil {
		return false, fmt.Errorf("delete template: %w", err)
	}
	if result.DeletedCount == 0 {
		s.logger.Warn("no embedding found", zap.String("subject_id", subjectID))
		return false, nil
	}
	s.logger.Info("deleted embedding", zap.String("subject_id", subjectID))
	return true, nil
}

// Health pings the server.
func (s *MongoStore) Health(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// Close disconnects the underlying client.
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

var _ TemplateStore = (*MongoStore)(nil)
