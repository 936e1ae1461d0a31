package store

import (
	"context"
	"fmt"
	"time"

	"github.com/raushankrgupta/gait-speed-service/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoAdminStore implements AdminStore on the admins collection
type MongoAdminStore struct {
	collection *mongo.Collection
}

func NewMongoAdminStore(db *mongo.Database) *MongoAdminStore {
	return &MongoAdminStore{collection: db.Collection(AdminsCollection)}
}

// objectID converts a hex id; malformed ids cannot match any document.
func objectID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, ErrNotFound
	}
	return oid, nil
}

func (s *MongoAdminStore) Create(ctx context.Context, admin *models.Admin) error {
	stampCreated(&admin.CreatedAt, &admin.UpdatedAt)

	res, err := s.collection.InsertOne(ctx, admin)
	if err != nil {
		return translateError(err)
	}
	if id, ok := insertedObjectID(res); ok {
		admin.ID = id
	}
	return nil
}

func (s *MongoAdminStore) findOne(ctx context.Context, filter bson.M) (*models.Admin, error) {
	var admin models.Admin
	if err := s.collection.FindOne(ctx, filter).Decode(&admin); err != nil {
		return nil, translateError(err)
	}
	return &admin, nil
}

func (s *MongoAdminStore) FindByUsername(ctx context.Context, username string) (*models.Admin, error) {
	return s.findOne(ctx, bson.M{"username": username})
}

func (s *MongoAdminStore) FindByID(ctx context.Context, id string) (*models.Admin, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	return s.findOne(ctx, bson.M{"_id": oid})
}

func (s *MongoAdminStore) FindByVerificationToken(ctx context.Context, username, token string, now time.Time) (*models.Admin, error) {
	return s.findOne(ctx, bson.M{
		"username":          username,
		"verificationToken": token,
		"tokenExpires":      bson.M{"$gt": now},
	})
}

func (s *MongoAdminStore) FindByResetToken(ctx context.Context, token string, now time.Time) (*models.Admin, error) {
	return s.findOne(ctx, bson.M{
		"resetPasswordToken":   token,
		"resetPasswordExpires": bson.M{"$gt": now},
	})
}

func (s *MongoAdminStore) updateByID(ctx context.Context, id string, update bson.M) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}
	res, err := s.collection.UpdateOne(ctx, bson.M{"_id": oid}, update)
	if err != nil {
		return translateError(err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoAdminStore) Activate(ctx context.Context, id string) error {
	return s.updateByID(ctx, id, bson.M{
		"$set": bson.M{
			"isVerified": true,
			"status":     models.AdminStatusActive,
			"firstLogin": false,
			"updatedAt":  time.Now(),
		},
		"$unset": bson.M{"verificationToken": "", "tokenExpires": ""},
	})
}

func (s *MongoAdminStore) RecordLogin(ctx context.Context, id string, at time.Time) error {
	return s.updateByID(ctx, id, bson.M{"$set": bson.M{"lastLogin": at, "updatedAt": time.Now()}})
}

func (s *MongoAdminStore) SetResetToken(ctx context.Context, id, token string, expires time.Time) error {
	return s.updateByID(ctx, id, bson.M{
		"$set": bson.M{"resetPasswordToken": token, "resetPasswordExpires": expires, "updatedAt": time.Now()},
	})
}

func (s *MongoAdminStore) ResetPassword(ctx context.Context, id, passwordHash string) error {
	return s.updateByID(ctx, id, bson.M{
		"$set":   bson.M{"password": passwordHash, "updatedAt": time.Now()},
		"$unset": bson.M{"resetPasswordToken": "", "resetPasswordExpires": ""},
	})
}

func (s *MongoAdminStore) Update(ctx context.Context, id string, update models.AdminUpdate) (*models.Admin, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}

	set := bson.M{
		"name":         update.Name,
		"organization": update.Organization,
		"phone":        update.Phone,
		"email":        update.Email,
		"status":       update.Status,
		"updatedAt":    time.Now(),
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var admin models.Admin
	if err := s.collection.FindOneAndUpdate(ctx, bson.M{"_id": oid}, bson.M{"$set": set}, opts).Decode(&admin); err != nil {
		return nil, translateError(err)
	}
	return &admin, nil
}

func (s *MongoAdminStore) List(ctx context.Context) ([]models.Admin, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetProjection(bson.M{"password": 0, "verificationToken": 0, "resetPasswordToken": 0})

	cursor, err := s.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list admins: %w", err)
	}
	defer cursor.Close(ctx)

	admins := []models.Admin{}
	if err := cursor.All(ctx, &admins); err != nil {
		return nil, fmt.Errorf("failed to decode admins: %w", err)
	}
	return admins, nil
}

func (s *MongoAdminStore) Delete(ctx context.Context, id string) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}
	res, err := s.collection.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return translateError(err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// UpsertSuperAdmin creates the super-admin account or overwrites its
// credentials and profile, keyed on the superadmin role.
func (s *MongoAdminStore) UpsertSuperAdmin(ctx context.Context, admin *models.Admin) (*models.Admin, error) {
	now := time.Now()
	update := bson.M{
		"$set": bson.M{
			"username":     admin.Username,
			"email":        admin.Email,
			"password":     admin.Password,
			"name":         admin.Name,
			"organization": admin.Organization,
			"phone":        admin.Phone,
			"role":         models.RoleSuperAdmin,
			"status":       models.AdminStatusActive,
			"isVerified":   true,
			"firstLogin":   false,
			"updatedAt":    now,
		},
		"$setOnInsert": bson.M{"createdAt": now},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var saved models.Admin
	err := s.collection.FindOneAndUpdate(ctx, bson.M{"role": models.RoleSuperAdmin}, update, opts).Decode(&saved)
	if err != nil {
		return nil, translateError(err)
	}
	return &saved, nil
}
