package projects

import (
	"context"
	"regexp"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Repository interface {
	Create(ctx context.Context, item Project) error
	Update(ctx context.Context, id string, set bson.M) (Project, error)
	Delete(ctx context.Context, id string) (bool, error)
	GetByID(ctx context.Context, id string) (Project, error)
	// GetPublishedAndCountView increments viewCount and returns the updated document.
	GetPublishedAndCountView(ctx context.Context, id string) (Project, error)
	List(ctx context.Context, filter ListFilter, limit, offset int64) ([]Project, error)
	Count(ctx context.Context, filter ListFilter) (int64, error)
}

type MongoRepository struct {
	col *mongo.Collection
}

func NewRepository(col *mongo.Collection) *MongoRepository {
	return &MongoRepository{col: col}
}

func (r *MongoRepository) Create(ctx context.Context, item Project) error {
	_, err := r.col.InsertOne(ctx, item)
	return err
}

func (r *MongoRepository) Update(ctx context.Context, id string, set bson.M) (Project, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	update := bson.M{"$set": set}

	var updated Project
	if err := r.col.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&updated); err != nil {
		return Project{}, err
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

func (r *MongoRepository) GetByID(ctx context.Context, id string) (Project, error) {
	var item Project
	if err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&item); err != nil {
		return Project{}, err
	}
	return item, nil
}

func (r *MongoRepository) GetPublishedAndCountView(ctx context.Context, id string) (Project, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	filter := bson.M{"_id": id, "status": StatusPublished}
	update := bson.M{"$inc": bson.M{"viewCount": 1}}

	var item Project
	if err := r.col.FindOneAndUpdate(ctx, filter, update, opts).Decode(&item); err != nil {
		return Project{}, err
	}
	return item, nil
}

func (r *MongoRepository) List(ctx context.Context, filter ListFilter, limit, offset int64) ([]Project, error) {
	opts := options.Find().
		SetSort(bson.D{
			{Key: "featured", Value: -1},
			{Key: "createdAt", Value: -1},
		}).
		SetLimit(limit).
		SetSkip(offset)

	cursor, err := r.col.Find(ctx, filterToBSON(filter), opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	items := make([]Project, 0)
	for cursor.Next(ctx) {
		var item Project
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

func (r *MongoRepository) Count(ctx context.Context, filter ListFilter) (int64, error) {
	return r.col.CountDocuments(ctx, filterToBSON(filter))
}

func filterToBSON(filter ListFilter) bson.M {
	query := bson.M{}
	switch {
	case !filter.AllStatuses:
		query["status"] = StatusPublished
	case filter.Status != "":
		query["status"] = filter.Status
	}
	if filter.Tag != "" {
		query["tags"] = filter.Tag
	}
	if filter.Featured != nil {
		query["featured"] = *filter.Featured
	}
	if filter.Search != "" {
		rx := primitive.Regex{Pattern: regexp.QuoteMeta(filter.Search), Options: "i"}
		query["$or"] = bson.A{
			bson.M{"title": rx},
			bson.M{"shortDescription": rx},
			bson.M{"fullDescription": rx},
			bson.M{"tags": rx},
		}
	}
	return query
}
