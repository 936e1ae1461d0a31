package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	RoleAdmin      = "admin"
	RoleSuperAdmin = "superadmin"
	// RoleUser is only ever carried in session tokens; it is never stored on an Admin.
	RoleUser = "user"
)

const (
	AdminStatusPending = "pending"
	AdminStatusActive  = "active"
	AdminStatusBlocked = "blocked"
)

// Admin represents an administrator account
type Admin struct {
	ID                   primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Username             string             `bson:"username" json:"username"`
	Name                 string             `bson:"name" json:"name"`
	Organization         string             `bson:"organization" json:"organization"`
	Phone                string             `bson:"phone" json:"phone"`
	Email                string             `bson:"email" json:"email"`
	Password             string             `bson:"password" json:"-"` // bcrypt hash
	Role                 string             `bson:"role" json:"role"`
	Status               string             `bson:"status" json:"status"`
	FirstLogin           bool               `bson:"firstLogin" json:"firstLogin"`
	IsVerified           bool               `bson:"isVerified" json:"isVerified"`
	VerificationToken    string             `bson:"verificationToken,omitempty" json:"-"`
	TokenExpires         *time.Time         `bson:"tokenExpires,omitempty" json:"tokenExpires,omitempty"`
	ResetPasswordToken   string             `bson:"resetPasswordToken,omitempty" json:"-"`
	ResetPasswordExpires *time.Time         `bson:"resetPasswordExpires,omitempty" json:"-"`
	LastLogin            *time.Time         `bson:"lastLogin,omitempty" json:"lastLogin,omitempty"`
	CreatedAt            time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt            time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// AdminUpdate is the set of fields a super-admin may edit on another admin
type AdminUpdate struct {
	Name         string
	Organization string
	Phone        string
	Email        string
	Status       string
}

// IsValidAdminStatus reports whether s is one of the known admin statuses.
func IsValidAdminStatus(s string) bool {
	switch s {
	case AdminStatusPending, AdminStatusActive, AdminStatusBlocked:
		return true
	}
	return false
}
