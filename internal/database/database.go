// internal/database/database.go
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoDB struct {
	Client *mongo.Client
	Rooms  *mongo.Collection
	log    *logrus.Logger
}

func NewMongoDB(uri, dbName string, log *logrus.Logger) (*MongoDB, error) {
	serverAPI := options.ServerAPI(options.ServerAPIVersion1)
	opts := options.Client().
		ApplyURI(uri).
		SetServerAPIOptions(serverAPI).
		SetServerSelectionTimeout(5 * time.Second).
		SetSocketTimeout(45 * time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	// Ping the database to verify connection
	if err := client.Database("admin").RunCommand(ctx, bson.D{{Key: "ping", Value: 1}}).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	log.Info("Successfully connected to MongoDB")

	db := client.Database(dbName)
	m := &MongoDB{
		Client: client,
		Rooms:  db.Collection("chatrooms"),
		log:    log,
	}
	if err := m.EnsureIndexes(ctx); err != nil {
		return nil, err
	}
	return m, nil
}

// EnsureIndexes creates the pair uniqueness and listing indexes.
// Only active rooms take part in the pair uniqueness.
func (m *MongoDB) EnsureIndexes(ctx context.Context) error {
	_, err := m.Rooms.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "pairKey", Value: 1}},
			Options: options.Index().
				SetName("active_pair_unique").
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"isActive": true}),
		},
		{
			Keys: bson.D{{Key: "participants", Value: 1}, {Key: "lastMessageAt", Value: -1}},
			Options: options.Index().
				SetName("participant_recent"),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create room indexes: %w", err)
	}
	return nil
}

func (m *MongoDB) Close(ctx context.Context) error {
	m.log.Info("Closing MongoDB connection...")
	return m.Client.Disconnect(ctx)
}
