package store

import (
	"context"
	"fmt"

	"github.com/raushankrgupta/gait-speed-service/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoGaitSpeedStore implements GaitSpeedStore on the gaitspeeds collection
type MongoGaitSpeedStore struct {
	collection *mongo.Collection
}

func NewMongoGaitSpeedStore(db *mongo.Database) *MongoGaitSpeedStore {
	return &MongoGaitSpeedStore{collection: db.Collection(GaitSpeedsCollection)}
}

func (s *MongoGaitSpeedStore) Add(ctx context.Context, record *models.GaitSpeedRecord) error {
	res, err := s.collection.InsertOne(ctx, record)
	if err != nil {
		return fmt.Errorf("failed to insert gait speed: %w", err)
	}
	if id, ok := insertedObjectID(res); ok {
		record.ID = id
	}
	return nil
}

func (s *MongoGaitSpeedStore) ListByUsername(ctx context.Context, username string, skip, limit int64) ([]models.GaitSpeedRecord, error) {
	findOptions := options.Find()
	findOptions.SetSort(bson.D{{Key: "date", Value: 1}})
	if skip > 0 {
		findOptions.SetSkip(skip)
	}
	if limit > 0 {
		findOptions.SetLimit(limit)
	}

	cursor, err := s.collection.Find(ctx, bson.M{"username": username}, findOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch gait speeds: %w", err)
	}
	defer cursor.Close(ctx)

	records := []models.GaitSpeedRecord{}
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("failed to decode gait speeds: %w", err)
	}
	return records, nil
}

func (s *MongoGaitSpeedStore) CountByUsername(ctx context.Context, username string) (int64, error) {
	total, err := s.collection.CountDocuments(ctx, bson.M{"username": username})
	if err != nil {
		return 0, fmt.Errorf("failed to count gait speeds: %w", err)
	}
	return total, nil
}

func (s *MongoGaitSpeedStore) Speeds(ctx context.Context, username string) ([]float64, error) {
	filter := bson.M{}
	if username != "" {
		filter["username"] = username
	}

	cursor, err := s.collection.Find(ctx, filter, options.Find().SetProjection(bson.M{"speed": 1, "_id": 0}))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch speeds: %w", err)
	}
	defer cursor.Close(ctx)

	var rows []struct {
		Speed float64 `bson:"speed"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode speeds: %w", err)
	}

	speeds := make([]float64, 0, len(rows))
	for _, row := range rows {
		speeds = append(speeds, row.Speed)
	}
	return speeds, nil
}
