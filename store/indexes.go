package store

import (
	"context"
	"errors"
	"fmt"
	"log"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// legacyAdminEmailIndex enforced unique admin emails in earlier deployments;
// one person may now hold several admin accounts.
const legacyAdminEmailIndex = "email_1"

// EnsureIndexes creates the indexes the stores rely on
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	unique := options.Index().SetUnique(true)

	if _, err := db.Collection(UsersCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "username", Value: 1}}, Options: unique},
		{Keys: bson.D{{Key: "email", Value: 1}}},
		{Keys: bson.D{{Key: "phone", Value: 1}}},
		{Keys: bson.D{{Key: "resetPasswordToken", Value: 1}}},
		{Keys: bson.D{{Key: "createdAt", Value: 1}}},
	}); err != nil {
		return fmt.Errorf("failed to create user indexes: %w", err)
	}

	admins := db.Collection(AdminsCollection)
	if _, err := admins.Indexes().DropOne(ctx, legacyAdminEmailIndex); err != nil {
		var cmdErr mongo.CommandError
		// 27 IndexNotFound, 26 NamespaceNotFound
		if !(errors.As(err, &cmdErr) && (cmdErr.Code == 27 || cmdErr.Code == 26)) {
			log.Printf("Could not drop legacy admin email index: %v", err)
		}
	} else {
		log.Println("Legacy admin email unique index removed")
	}

	if _, err := admins.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "username", Value: 1}}, Options: unique,
	}); err != nil {
		return fmt.Errorf("failed to create admin indexes: %w", err)
	}

	if _, err := db.Collection(GaitSpeedsCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "username", Value: 1}, {Key: "date", Value: 1}},
	}); err != nil {
		return fmt.Errorf("failed to create gait speed indexes: %w", err)
	}
	return nil
}
