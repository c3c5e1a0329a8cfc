package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// OTPChallenge is the pending email-verification code of an unverified user.
type OTPChallenge struct {
	Code      string    `bson:"code" json:"-"`
	ExpiresAt time.Time `bson:"expiresAt" json:"expiresAt"`
}

type User struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt" json:"updatedAt"`

	Name     string `bson:"name" json:"name"`
	Username string `bson:"username" json:"username"`
	Email    string `bson:"email" json:"email"`
	Password string `bson:"password" json:"-"` // Don't return password in JSON
	Avatar   string `bson:"avatar" json:"avatar"`
	Bio      string `bson:"bio" json:"bio"`

	Followers []primitive.ObjectID `bson:"followers" json:"followers"`
	Following []primitive.ObjectID `bson:"following" json:"following"`

	OTP *OTPChallenge `bson:"otp,omitempty" json:"-"`
	// OTPSentAt is when the current challenge was issued; the resend cooldown runs from here.
	OTPSentAt       *time.Time `bson:"otpSentAt,omitempty" json:"-"`
	IsEmailVerified bool       `bson:"isEmailVerified" json:"isEmailVerified"`
}

// IsFollowing reports whether u follows id.
func (u *User) IsFollowing(id primitive.ObjectID) bool {
	return containsID(u.Following, id)
}

// HasFollower reports whether id follows u.
func (u *User) HasFollower(id primitive.ObjectID) bool {
	return containsID(u.Followers, id)
}

// UserSummary is the public card embedded wherever another user is referenced.
type UserSummary struct {
	ID       primitive.ObjectID `bson:"_id" json:"_id"`
	Username string             `bson:"username" json:"username"`
	Name     string             `bson:"name" json:"name"`
	Avatar   string             `bson:"avatar" json:"avatar"`
}

func (u *User) Summary() UserSummary {
	return UserSummary{ID: u.ID, Username: u.Username, Name: u.Name, Avatar: u.Avatar}
}

// PublicProfile is a user with the social graph hydrated.
type PublicProfile struct {
	ID              primitive.ObjectID `json:"_id"`
	Name            string             `json:"name"`
	Username        string             `json:"username"`
	Avatar          string             `json:"avatar"`
	Bio             string             `json:"bio"`
	Followers       []UserSummary      `json:"followers"`
	Following       []UserSummary      `json:"following"`
	IsEmailVerified bool               `json:"isEmailVerified"`
	CreatedAt       time.Time          `json:"createdAt"`
}

// ProfileUpdate carries the editable profile fields; nil leaves a field unchanged.
type ProfileUpdate struct {
	Name     *string
	Username *string
	Email    *string
	Avatar   *string
	Bio      *string
}

func containsID(ids []primitive.ObjectID, id primitive.ObjectID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
