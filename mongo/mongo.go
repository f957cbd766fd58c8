package mongo

import (
	"context"

	"github.com/suryanshishere/real-time-interaction-module/configure"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var Database *mongo.Database
var Ctx = context.TODO()

var ErrNoDocuments = mongo.ErrNoDocuments

// IsDuplicateKeyError reports whether err is a unique-index violation.
func IsDuplicateKeyError(err error) bool {
	return mongo.IsDuplicateKeyError(err)
}

// Setup connects to mongodb and ensures the indexes the poll store relies
// on. Called from main when a mongo_uri is configured.
func Setup() error {
	clientOptions := options.Client().ApplyURI(configure.Config.GetString("mongo_uri"))
	client, err := mongo.Connect(Ctx, clientOptions)
	if err != nil {
		return err
	}

	err = client.Ping(Ctx, nil)
	if err != nil {
		return err
	}

	Database = client.Database(configure.Config.GetString("mongo_db"))

	// Session codes are the public key for a poll, collisions must fail
	// the insert.
	_, err = Database.Collection("polls").Indexes().CreateMany(Ctx, []mongo.IndexModel{
		{Keys: bson.M{"session_code": 1}, Options: options.Index().SetUnique(true)},
		{Keys: bson.M{"created_by": 1}},
	})
	return err
}
