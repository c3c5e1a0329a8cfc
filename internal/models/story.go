package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// StoryLifetime is how long a story stays visible.
const StoryLifetime = 24 * time.Hour

type Story struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	User        primitive.ObjectID `bson:"user" json:"user"`
	MediaURL    string             `bson:"mediaUrl" json:"mediaUrl"`
	ContentType string             `bson:"contentType" json:"contentType"`
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`
	ExpiresAt   time.Time          `bson:"expiresAt" json:"expiresAt"`
}

type StoryView struct {
	Story
	Author UserSummary `json:"author"`
}
