package handlers

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"smarthub-backend/internal/models"
)

type ContactStore interface {
	Insert(ctx context.Context, msg models.ContactMessage) error
	List(ctx context.Context, limit, offset int64) ([]models.ContactMessage, error)
	Count(ctx context.Context) (int64, error)
}

type MongoContactStore struct {
	col *mongo.Collection
}

func NewContactStore(col *mongo.Collection) *MongoContactStore {
	return &MongoContactStore{col: col}
}

func (s *MongoContactStore) Insert(ctx context.Context, msg models.ContactMessage) error {
	_, err := s.col.InsertOne(ctx, msg)
	return err
}

func (s *MongoContactStore) List(ctx context.Context, limit, offset int64) ([]models.ContactMessage, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetLimit(limit).
		SetSkip(offset)

	cursor, err := s.col.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	items := make([]models.ContactMessage, 0)
	if err := cursor.All(ctx, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *MongoContactStore) Count(ctx context.Context) (int64, error) {
	return s.col.CountDocuments(ctx, bson.M{})
}
