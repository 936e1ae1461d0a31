// Package store persists users, admins and gait speed records in MongoDB.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/raushankrgupta/gait-speed-service/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

const (
	UsersCollection      = "users"
	AdminsCollection     = "admins"
	GaitSpeedsCollection = "gaitspeeds"
)

var (
	ErrNotFound  = errors.New("document not found")
	ErrDuplicate = errors.New("duplicate key")
)

// UserStore is the persistence contract for patient accounts
type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	// FindByVerificationToken only matches tokens that expire after now.
	FindByVerificationToken(ctx context.Context, token string, now time.Time) (*models.User, error)
	// FindByResetToken only matches tokens that expire after now.
	FindByResetToken(ctx context.Context, token string, now time.Time) (*models.User, error)
	MarkEmailVerified(ctx context.Context, username string) error
	SetResetToken(ctx context.Context, username, token string, expires time.Time) error
	// ResetPassword stores the new hash and clears the reset token.
	ResetPassword(ctx context.Context, username, passwordHash string) error
	UpdateProfile(ctx context.Context, username string, update models.ProfileUpdate) (*models.User, error)
	List(ctx context.Context) ([]models.UserProfile, error)
	Delete(ctx context.Context, username string) error
}

// AdminStore is the persistence contract for administrator accounts
type AdminStore interface {
	Create(ctx context.Context, admin *models.Admin) error
	FindByUsername(ctx context.Context, username string) (*models.Admin, error)
	FindByID(ctx context.Context, id string) (*models.Admin, error)
	FindByVerificationToken(ctx context.Context, username, token string, now time.Time) (*models.Admin, error)
	FindByResetToken(ctx context.Context, token string, now time.Time) (*models.Admin, error)
	// Activate marks the account verified and active and clears its verification token.
	Activate(ctx context.Context, id string) error
	RecordLogin(ctx context.Context, id string, at time.Time) error
	SetResetToken(ctx context.Context, id, token string, expires time.Time) error
	ResetPassword(ctx context.Context, id, passwordHash string) error
	Update(ctx context.Context, id string, update models.AdminUpdate) (*models.Admin, error)
	List(ctx context.Context) ([]models.Admin, error)
	Delete(ctx context.Context, id string) error
	UpsertSuperAdmin(ctx context.Context, admin *models.Admin) (*models.Admin, error)
}

// GaitSpeedStore is the persistence contract for speed measurements
type GaitSpeedStore interface {
	Add(ctx context.Context, record *models.GaitSpeedRecord) error
	// ListByUsername returns records oldest first. limit <= 0 means no limit.
	ListByUsername(ctx context.Context, username string, skip, limit int64) ([]models.GaitSpeedRecord, error)
	CountByUsername(ctx context.Context, username string) (int64, error)
	// Speeds returns every recorded speed, or only username's when it is non-empty.
	Speeds(ctx context.Context, username string) ([]float64, error)
}

func translateError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return ErrDuplicate
	}
	return err
}

func insertedObjectID(res *mongo.InsertOneResult) (primitive.ObjectID, bool) {
	if res == nil {
		return primitive.NilObjectID, false
	}
	id, ok := res.InsertedID.(primitive.ObjectID)
	return id, ok
}

// stampCreated fills creation timestamps the caller left unset.
func stampCreated(createdAt, updatedAt *time.Time) {
	now := time.Now()
	if createdAt.IsZero() {
		*createdAt = now
	}
	if updatedAt.IsZero() {
		*updatedAt = *createdAt
	}
}
