package db

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	Client *mongo.Client

	UserCollection          *mongo.Collection
	PostsCollection         *mongo.Collection
	TutorialsCollection     *mongo.Collection
	ProgressCollection      *mongo.Collection
	ProductsCollection      *mongo.Collection
	MessagesCollection      *mongo.Collection
	NotificationsCollection *mongo.Collection
)

// Init connects to MongoDB and wires the package-level collections. Called
// once from main before any routes are registered.
func Init(uri, dbName string) (*mongo.Database, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, err
	}

	Client = client
	database := client.Database(dbName)

	UserCollection = database.Collection("users")
	PostsCollection = database.Collection("posts")
	TutorialsCollection = database.Collection("tutorials")
	ProgressCollection = database.Collection("progress")
	ProductsCollection = database.Collection("products")
	MessagesCollection = database.Collection("messages")
	NotificationsCollection = database.Collection("notifications")

	return database, nil
}

// Close tears down the client connection during graceful shutdown.
func Close(ctx context.Context) error {
	if Client == nil {
		return nil
	}
	return Client.Disconnect(ctx)
}
