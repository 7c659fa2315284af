package profile

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Repository interface {
	// GetOrCreate returns the profile, inserting defaults when none exists.
	GetOrCreate(ctx context.Context, defaults Profile) (Profile, error)
	Update(ctx context.Context, set bson.M) (Profile, error)
}

type MongoRepository struct {
	col *mongo.Collection
}

func NewRepository(col *mongo.Collection) *MongoRepository {
	return &MongoRepository{col: col}
}

func (r *MongoRepository) GetOrCreate(ctx context.Context, defaults Profile) (Profile, error) {
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)
	raw, err := bson.Marshal(defaults)
	if err != nil {
		return Profile{}, err
	}
	insert := bson.M{}
	if err := bson.Unmarshal(raw, &insert); err != nil {
		return Profile{}, err
	}
	// _id comes from the filter on upsert
	delete(insert, "_id")
	update := bson.M{"$setOnInsert": insert}

	var item Profile
	if err := r.col.FindOneAndUpdate(ctx, bson.M{"_id": ID}, update, opts).Decode(&item); err != nil {
		return Profile{}, err
	}
	return item, nil
}

func (r *MongoRepository) Update(ctx context.Context, set bson.M) (Profile, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	update := bson.M{"$set": set}

	var item Profile
	if err := r.col.FindOneAndUpdate(ctx, bson.M{"_id": ID}, update, opts).Decode(&item); err != nil {
		return Profile{}, err
	}
	return item, nil
}
