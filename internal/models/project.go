package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Project struct {
	ID          primitive.ObjectID   `bson:"_id,omitempty" json:"_id"`
	User        primitive.ObjectID   `bson:"user" json:"user"`
	Title       string               `bson:"title" json:"title"`
	Description string               `bson:"description" json:"description"`
	Category    string               `bson:"category" json:"category"`
	CoverImage  string               `bson:"coverImage,omitempty" json:"coverImage,omitempty"`
	Posts       []primitive.ObjectID `bson:"posts" json:"posts"`
	CreatedAt   time.Time            `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time            `bson:"updatedAt" json:"updatedAt"`
}

func (p *Project) PostCount() int { return len(p.Posts) }

// ProjectView is a project with its owner and, on the detail page, its posts.
// PostViews replaces the raw post id list in JSON.
type ProjectView struct {
	Project
	Owner     UserSummary `json:"owner"`
	PostCount int         `json:"postCount"`
	PostViews []PostView  `json:"posts,omitempty"`
}

type ProjectUpdate struct {
	Title       *string
	Description *string
	Category    *string
	CoverImage  *string
}
