package db

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var ErrUnavailable = errors.New("database unavailable")

type Collections struct {
	Admins          *mongo.Collection
	Profiles        *mongo.Collection
	Projects        *mongo.Collection
	Services        *mongo.Collection
	ServiceRequests *mongo.Collection
	ContactMessages *mongo.Collection
}

func Connect(ctx context.Context, uri, dbName string) (*mongo.Client, *Collections, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, nil, err
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, nil, err
	}

	db := client.Database(dbName)

	cols := &Collections{
		Admins:          db.Collection("admins"),
		Profiles:        db.Collection("profiles"),
		Projects:        db.Collection("projects"),
		Services:        db.Collection("services"),
		ServiceRequests: db.Collection("service_requests"),
		ContactMessages: db.Collection("contact_messages"),
	}

	return client, cols, nil
}

// Pinger is the part of *mongo.Client used for readiness checks.
type Pinger interface {
	Ping(ctx context.Context) error
}

type clientPinger struct {
	client *mongo.Client
}

func (p clientPinger) Ping(ctx context.Context) error {
	return p.client.Ping(ctx, nil)
}

func NewPinger(client *mongo.Client) Pinger {
	return clientPinger{client: client}
}

// WaitReady pings every interval until the database answers or timeout elapses.
func WaitReady(ctx context.Context, p Pinger, timeout, interval time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		pingCtx, cancel := context.WithTimeout(ctx, interval)
		err := p.Ping(pingCtx)
		cancel()
		if err == nil {
			return nil
		}
		if time.Now().Add(interval).After(deadline) {
			return ErrUnavailable
		}
		select {
		case <-ctx.Done():
			return ErrUnavailable
		case <-time.After(interval):
		}
	}
}

func EnsureIndexes(ctx context.Context, cols *Collections) error {
	indexTimeout, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := cols.Admins.Indexes().CreateMany(indexTimeout, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	})
	if err != nil {
		return err
	}

	_, err = cols.Projects.Indexes().CreateMany(indexTimeout, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "status", Value: 1}, {Key: "featured", Value: -1}, {Key: "createdAt", Value: -1}},
		},
		{
			Keys: bson.D{{Key: "tags", Value: 1}},
		},
	})
	if err != nil {
		return err
	}

	_, err = cols.Services.Indexes().CreateMany(indexTimeout, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "status", Value: 1}, {Key: "order", Value: 1}},
		},
	})
	if err != nil {
		return err
	}

	_, err = cols.ServiceRequests.Indexes().CreateMany(indexTimeout, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "status", Value: 1}, {Key: "createdAt", Value: -1}},
		},
		{
			Keys:    bson.D{{Key: "reference", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	})
	if err != nil {
		return err
	}

	_, err = cols.ContactMessages.Indexes().CreateMany(indexTimeout, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "createdAt", Value: -1}},
		},
	})
	return err
}
