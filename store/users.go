package store

import (
	"context"
	"fmt"
	"time"

	"github.com/raushankrgupta/gait-speed-service/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoUserStore implements UserStore on the users collection
type MongoUserStore struct {
	collection *mongo.Collection
}

func NewMongoUserStore(db *mongo.Database) *MongoUserStore {
	return &MongoUserStore{collection: db.Collection(UsersCollection)}
}

func (s *MongoUserStore) Create(ctx context.Context, user *models.User) error {
	stampCreated(&user.CreatedAt, &user.UpdatedAt)

	res, err := s.collection.InsertOne(ctx, user)
	if err != nil {
		return translateError(err)
	}
	if id, ok := insertedObjectID(res); ok {
		user.ID = id
	}
	return nil
}

func (s *MongoUserStore) findOne(ctx context.Context, filter bson.M) (*models.User, error) {
	var user models.User
	if err := s.collection.FindOne(ctx, filter).Decode(&user); err != nil {
		return nil, translateError(err)
	}
	return &user, nil
}

func (s *MongoUserStore) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.findOne(ctx, bson.M{"username": username})
}

func (s *MongoUserStore) FindByVerificationToken(ctx context.Context, token string, now time.Time) (*models.User, error) {
	return s.findOne(ctx, bson.M{
		"emailVerificationToken":   token,
		"emailVerificationExpires": bson.M{"$gt": now},
	})
}

func (s *MongoUserStore) FindByResetToken(ctx context.Context, token string, now time.Time) (*models.User, error) {
	return s.findOne(ctx, bson.M{
		"resetPasswordToken":   token,
		"resetPasswordExpires": bson.M{"$gt": now},
	})
}

func (s *MongoUserStore) updateOne(ctx context.Context, username string, update bson.M) error {
	res, err := s.collection.UpdateOne(ctx, bson.M{"username": username}, update)
	if err != nil {
		return translateError(err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoUserStore) MarkEmailVerified(ctx context.Context, username string) error {
	return s.updateOne(ctx, username, bson.M{
		"$set":   bson.M{"isEmailVerified": true, "updatedAt": time.Now()},
		"$unset": bson.M{"emailVerificationToken": "", "emailVerificationExpires": ""},
	})
}

func (s *MongoUserStore) SetResetToken(ctx context.Context, username, token string, expires time.Time) error {
	return s.updateOne(ctx, username, bson.M{
		"$set": bson.M{"resetPasswordToken": token, "resetPasswordExpires": expires, "updatedAt": time.Now()},
	})
}

func (s *MongoUserStore) ResetPassword(ctx context.Context, username, passwordHash string) error {
	return s.updateOne(ctx, username, bson.M{
		"$set":   bson.M{"password": passwordHash, "updatedAt": time.Now()},
		"$unset": bson.M{"resetPasswordToken": "", "resetPasswordExpires": ""},
	})
}

func (s *MongoUserStore) UpdateProfile(ctx context.Context, username string, update models.ProfileUpdate) (*models.User, error) {
	set := bson.M{"updatedAt": time.Now()}
	for field, value := range map[string]*string{
		"name":         update.Name,
		"birthdate":    update.Birthdate,
		"gender":       update.Gender,
		"phone":        update.Phone,
		"email":        update.Email,
		"organization": update.Organization,
		"avatar":       update.Avatar,
	} {
		if value != nil {
			set[field] = *value
		}
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var user models.User
	err := s.collection.FindOneAndUpdate(ctx, bson.M{"username": username}, bson.M{"$set": set}, opts).Decode(&user)
	if err != nil {
		return nil, translateError(err)
	}
	return &user, nil
}

func (s *MongoUserStore) List(ctx context.Context) ([]models.UserProfile, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "name", Value: 1}}).
		SetProjection(bson.M{
			"username": 1, "name": 1, "organization": 1, "phone": 1,
			"email": 1, "birthdate": 1, "gender": 1, "avatar": 1, "_id": 0,
		})

	cursor, err := s.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer cursor.Close(ctx)

	users := []models.UserProfile{}
	if err := cursor.All(ctx, &users); err != nil {
		return nil, fmt.Errorf("failed to decode users: %w", err)
	}
	return users, nil
}

func (s *MongoUserStore) Delete(ctx context.Context, username string) error {
	res, err := s.collection.DeleteOne(ctx, bson.M{"username": username})
	if err != nil {
		return translateError(err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}
