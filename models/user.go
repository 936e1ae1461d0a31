package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Accepted values for User.Gender.
const (
	GenderMale   = "male"
	GenderFemale = "female"
	GenderOther  = "other"
)

// User represents a registered patient account
type User struct {
	ID                       primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Username                 string             `bson:"username" json:"username"`
	Name                     string             `bson:"name" json:"name"`
	Email                    string             `bson:"email" json:"email"`
	Phone                    string             `bson:"phone" json:"phone"`
	Birthdate                string             `bson:"birthdate" json:"birthdate"`
	Gender                   string             `bson:"gender,omitempty" json:"gender,omitempty"`
	Organization             string             `bson:"organization,omitempty" json:"organization,omitempty"`
	Password                 string             `bson:"password" json:"-"` // bcrypt hash
	Avatar                   string             `bson:"avatar,omitempty" json:"avatar,omitempty"`
	IsEmailVerified          bool               `bson:"isEmailVerified" json:"isEmailVerified"`
	EmailVerificationToken   string             `bson:"emailVerificationToken,omitempty" json:"-"`
	EmailVerificationExpires *time.Time         `bson:"emailVerificationExpires,omitempty" json:"-"`
	ResetPasswordToken       string             `bson:"resetPasswordToken,omitempty" json:"-"`
	ResetPasswordExpires     *time.Time         `bson:"resetPasswordExpires,omitempty" json:"-"`
	CreatedAt                time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt                time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// UserProfile is the publicly visible part of a User
type UserProfile struct {
	Username     string `bson:"username" json:"username"`
	Name         string `bson:"name" json:"name"`
	Email        string `bson:"email" json:"email"`
	Phone        string `bson:"phone" json:"phone"`
	Birthdate    string `bson:"birthdate" json:"birthdate"`
	Gender       string `bson:"gender,omitempty" json:"gender,omitempty"`
	Organization string `bson:"organization,omitempty" json:"organization,omitempty"`
	Avatar       string `bson:"avatar,omitempty" json:"avatar"`
}

// Profile returns the public projection of u.
func (u *User) Profile() UserProfile {
	return UserProfile{
		Username:     u.Username,
		Name:         u.Name,
		Email:        u.Email,
		Phone:        u.Phone,
		Birthdate:    u.Birthdate,
		Gender:       u.Gender,
		Organization: u.Organization,
		Avatar:       u.Avatar,
	}
}

// ProfileUpdate carries the profile fields a user may change. Nil fields are left untouched.
type ProfileUpdate struct {
	Name         *string
	Birthdate    *string
	Gender       *string
	Phone        *string
	Email        *string
	Organization *string
	Avatar       *string
}
