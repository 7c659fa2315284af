package services

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Repository interface {
	Create(ctx context.Context, item Service) error
	Update(ctx context.Context, id string, set bson.M) (Service, error)
	Delete(ctx context.Context, id string) (bool, error)
	GetByID(ctx context.Context, id string, activeOnly bool) (Service, error)
	List(ctx context.Context, activeOnly bool) ([]Service, error)
}

type MongoRepository struct {
	col *mongo.Collection
}

func NewRepository(col *mongo.Collection) *MongoRepository {
	return &MongoRepository{col: col}
}

func (r *MongoRepository) Create(ctx context.Context, item Service) error {
	_, err := r.col.InsertOne(ctx, item)
	return err
}

func (r *MongoRepository) Update(ctx context.Context, id string, set bson.M) (Service, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var updated Service
	if err := r.col.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&updated); err != nil {
		return Service{}, err
	}
	return updated, nil
}

func (r *MongoRepository) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return false, err
	}
	return res.DeletedCount > 0, nil
}

func (r *MongoRepository) GetByID(ctx context.Context, id string, activeOnly bool) (Service, error) {
	query := bson.M{"_id": id}
	if activeOnly {
		query["status"] = StatusActive
	}
	var item Service
	if err := r.col.FindOne(ctx, query).Decode(&item); err != nil {
		return Service{}, err
	}
	return item, nil
}

func (r *MongoRepository) List(ctx context.Context, activeOnly bool) ([]Service, error) {
	query := bson.M{}
	if activeOnly {
		query["status"] = StatusActive
	}
	opts := options.Find().SetSort(bson.D{
		{Key: "order", Value: 1},
		{Key: "createdAt", Value: 1},
	})

	cursor, err := r.col.Find(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	items := make([]Service, 0)
	for cursor.Next(ctx) {
		var item Service
		if err := cursor.Decode(&item); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
