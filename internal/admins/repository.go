package admins

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Repository interface {
	Count(ctx context.Context) (int64, error)
	Create(ctx context.Context, admin Admin) error
	GetByEmail(ctx context.Context, email string) (Admin, error)
	GetByID(ctx context.Context, id string) (Admin, error)
	// RecordFailedLogin bumps the attempt counter, or restarts it at 1 when
	// restart is set, and returns the new count.
	RecordFailedLogin(ctx context.Context, id string, restart bool, now time.Time) (int, error)
	Lock(ctx context.Context, id string, until time.Time) error
	RecordLogin(ctx context.Context, id string, now time.Time) error
}

type MongoRepository struct {
	col *mongo.Collection
}

func NewRepository(col *mongo.Collection) *MongoRepository {
	return &MongoRepository{col: col}
}

func (r *MongoRepository) Count(ctx context.Context) (int64, error) {
	return r.col.CountDocuments(ctx, bson.M{})
}

func (r *MongoRepository) Create(ctx context.Context, admin Admin) error {
	_, err := r.col.InsertOne(ctx, admin)
	return err
}

func (r *MongoRepository) GetByEmail(ctx context.Context, email string) (Admin, error) {
	var admin Admin
	if err := r.col.FindOne(ctx, bson.M{"email": email}).Decode(&admin); err != nil {
		return Admin{}, err
	}
	return admin, nil
}

func (r *MongoRepository) GetByID(ctx context.Context, id string) (Admin, error) {
	var admin Admin
	if err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&admin); err != nil {
		return Admin{}, err
	}
	return admin, nil
}

func (r *MongoRepository) RecordFailedLogin(ctx context.Context, id string, restart bool, now time.Time) (int, error) {
	update := bson.M{
		"$inc": bson.M{"loginAttempts": 1},
		"$set": bson.M{"updatedAt": now},
	}
	if restart {
		update = bson.M{
			"$set":   bson.M{"loginAttempts": 1, "updatedAt": now},
			"$unset": bson.M{"lockUntil": ""},
		}
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var updated Admin
	if err := r.col.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&updated); err != nil {
		return 0, err
	}
	return updated.LoginAttempts, nil
}

func (r *MongoRepository) Lock(ctx context.Context, id string, until time.Time) error {
	_, err := r.col.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{"lockUntil": until},
	})
	return err
}

func (r *MongoRepository) RecordLogin(ctx context.Context, id string, now time.Time) error {
	_, err := r.col.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set":   bson.M{"loginAttempts": 0, "lastLogin": now, "updatedAt": now},
		"$unset": bson.M{"lockUntil": ""},
	})
	return err
}
