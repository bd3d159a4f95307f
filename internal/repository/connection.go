package repository

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func ConnectMongoDB(ctx context.Context, uri, database string) (*mongo.Database, error) {
	clientOpts := options.Client().
		ApplyURI(uri).
		SetConnectTimeout(10 * time.Second).
		SetServerSelectionTimeout(5 * time.Second).
		SetMaxPoolSize(100).
		SetMinPoolSize(10)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return client.Database(database), nil
}

// NewMongoStore connects and prepares the document store used when
// STORE_DRIVER=mongo.
func NewMongoStore(ctx context.Context, uri, database string) (CartRepository, error) {
	db, err := ConnectMongoDB(ctx, uri, database)
	if err != nil {
		return nil, err
	}

	repo := NewMongoRepository(db)
	if err := repo.(*mongoRepository).CreateIndexes(ctx); err != nil {
		_ = db.Client().Disconnect(ctx)
		return nil, err
	}
	return repo, nil
}
