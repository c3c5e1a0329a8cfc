package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type PostType string

const (
	PostTypeUpdate       PostType = "update"
	PostTypeAnnouncement PostType = "announcement"
	PostTypeMilestone    PostType = "milestone"
)

func (t PostType) Valid() bool {
	switch t {
	case PostTypeUpdate, PostTypeAnnouncement, PostTypeMilestone:
		return true
	}
	return false
}

type Post struct {
	ID          primitive.ObjectID  `bson:"_id,omitempty" json:"_id"`
	Caption     string              `bson:"caption" json:"caption"`
	MediaURL    string              `bson:"mediaUrl" json:"mediaUrl"`
	ContentType string              `bson:"contentType" json:"contentType"`
	Project     *primitive.ObjectID `bson:"project,omitempty" json:"project,omitempty"`
	Type        PostType            `bson:"type" json:"type"`
	User        primitive.ObjectID  `bson:"user" json:"user"`

	Upvotes   []primitive.ObjectID `bson:"upvotes" json:"-"`
	Downvotes []primitive.ObjectID `bson:"downvotes" json:"-"`
	Comments  []primitive.ObjectID `bson:"comments" json:"-"`

	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

type VoteKind int

const (
	Upvote VoteKind = iota
	Downvote
)

// ApplyVote toggles userID's vote of the given kind. Casting a vote removes any
// opposite vote, so userID is never in both Upvotes and Downvotes.
func (p *Post) ApplyVote(userID primitive.ObjectID, kind VoteKind) {
	same, opposite := &p.Upvotes, &p.Downvotes
	if kind == Downvote {
		same, opposite = &p.Downvotes, &p.Upvotes
	}
	if containsID(*same, userID) {
		*same = removeID(*same, userID)
		return
	}
	*same = append(*same, userID)
	*opposite = removeID(*opposite, userID)
}

// VoteState is the vote summary of a post as seen by one viewer.
type VoteState struct {
	Upvotes      int  `json:"upvotes"`
	Downvotes    int  `json:"downvotes"`
	HasUpvoted   bool `json:"hasUpvoted"`
	HasDownvoted bool `json:"hasDownvoted"`
}

func (p *Post) VoteStateFor(viewer primitive.ObjectID) VoteState {
	s := VoteState{Upvotes: len(p.Upvotes), Downvotes: len(p.Downvotes)}
	if !viewer.IsZero() {
		s.HasUpvoted = containsID(p.Upvotes, viewer)
		s.HasDownvoted = containsID(p.Downvotes, viewer)
	}
	return s
}

// PostView is a post hydrated for a feed or project page.
type PostView struct {
	Post
	Author        UserSummary   `json:"author"`
	CommentCount  int           `json:"commentCount"`
	Comments      []CommentView `json:"comments,omitempty"`
	HasUpvoted    bool          `json:"hasUpvoted"`
	HasDownvoted  bool          `json:"hasDownvoted"`
	UpvoteCount   int           `json:"upvoteCount"`
	DownvoteCount int           `json:"downvoteCount"`
}

type Comment struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	Text      string             `bson:"text" json:"text"`
	User      primitive.ObjectID `bson:"user" json:"user"`
	Post      primitive.ObjectID `bson:"post" json:"post"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
}

type CommentView struct {
	Comment
	Author UserSummary `json:"author"`
}

func removeID(ids []primitive.ObjectID, id primitive.ObjectID) []primitive.ObjectID {
	out := ids[:0:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
