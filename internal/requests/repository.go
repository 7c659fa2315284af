package requests

import (
	"context"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Repository interface {
	Create(ctx context.Context, item ServiceRequest) error
	List(ctx context.Context, filter ListFilter, limit, offset int64) ([]ServiceRequest, error)
	Count(ctx context.Context, filter ListFilter) (int64, error)
	GetByID(ctx context.Context, id string) (ServiceRequest, error)
	GetByReference(ctx context.Context, reference string) (ServiceRequest, error)
	// UpdateStatus applies set only while statusUpdatedAt still equals prev.
	UpdateStatus(ctx context.Context, id string, prev time.Time, set bson.M, entry HistoryEntry) (ServiceRequest, error)
	CountByStatus(ctx context.Context) (map[string]int64, error)
}

type MongoRepository struct {
	col *mongo.Collection
}

func NewRepository(col *mongo.Collection) *MongoRepository {
	return &MongoRepository{col: col}
}

func (r *MongoRepository) Create(ctx context.Context, item ServiceRequest) error {
	_, err := r.col.InsertOne(ctx, item)
	return err
}

func (r *MongoRepository) List(ctx context.Context, filter ListFilter, limit, offset int64) ([]ServiceRequest, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetProjection(bson.M{"attachments.data": 0, "statusHistory": 0}).
		SetLimit(limit).
		SetSkip(offset)

	cursor, err := r.col.Find(ctx, filterToBSON(filter), opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	items := make([]ServiceRequest, 0)
	for cursor.Next(ctx) {
		var item ServiceRequest
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

func (r *MongoRepository) GetByID(ctx context.Context, id string) (ServiceRequest, error) {
	var item ServiceRequest
	if err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&item); err != nil {
		return ServiceRequest{}, err
	}
	return item, nil
}

func (r *MongoRepository) GetByReference(ctx context.Context, reference string) (ServiceRequest, error) {
	var item ServiceRequest
	if err := r.col.FindOne(ctx, bson.M{"reference": reference}).Decode(&item); err != nil {
		return ServiceRequest{}, err
	}
	return item, nil
}

func (r *MongoRepository) UpdateStatus(ctx context.Context, id string, prev time.Time, set bson.M, entry HistoryEntry) (ServiceRequest, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	filter := bson.M{"_id": id, "statusUpdatedAt": prev}
	update := bson.M{
		"$set":  set,
		"$push": bson.M{"statusHistory": entry},
	}

	var updated ServiceRequest
	if err := r.col.FindOneAndUpdate(ctx, filter, update, opts).Decode(&updated); err != nil {
		return ServiceRequest{}, err
	}
	return updated, nil
}

func (r *MongoRepository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.M{"_id": "$status", "count": bson.M{"$sum": 1}}}},
	}
	cursor, err := r.col.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	counts := map[string]int64{}
	for cursor.Next(ctx) {
		var row struct {
			Status string `bson:"_id"`
			Count  int64  `bson:"count"`
		}
		if err := cursor.Decode(&row); err != nil {
			return nil, err
		}
		counts[row.Status] = row.Count
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}
	return counts, nil
}

func filterToBSON(filter ListFilter) bson.M {
	query := bson.M{}
	if filter.Status != "" {
		query["status"] = filter.Status
	}
	if filter.ServiceType != "" {
		query["serviceType"] = filter.ServiceType
	}
	if filter.Search != "" {
		rx := primitive.Regex{Pattern: regexp.QuoteMeta(filter.Search), Options: "i"}
		query["$or"] = bson.A{
			bson.M{"reference": rx},
			bson.M{"clientName": rx},
			bson.M{"clientEmail": rx},
			bson.M{"company": rx},
		}
	}
	return query
}
