// Package repository declares the storage contracts the services depend on.
// mongostore is the production implementation; memory backs tests.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/AnshRaj112/buildlog-backend/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrNotFound  = errors.New("repository: not found")
	ErrDuplicate = errors.New("repository: duplicate key")
)

type UserRepository interface {
	Create(ctx context.Context, u *models.User) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	// FindByEmailOrUsername returns the first user whose email or username matches.
	FindByEmailOrUsername(ctx context.Context, email, username string) (*models.User, error)
	FindSummaries(ctx context.Context, ids []primitive.ObjectID) ([]models.UserSummary, error)
	// ReplaceRegistration overwrites the signup-owned fields (name, username, email,
	// password, otp, otpSentAt) of an existing unverified user.
	ReplaceRegistration(ctx context.Context, u *models.User) error
	SetOTP(ctx context.Context, id primitive.ObjectID, otp *models.OTPChallenge, sentAt *time.Time) error
	// MarkVerified flips isEmailVerified and clears the challenge.
	MarkVerified(ctx context.Context, id primitive.ObjectID) error
	UpdateProfile(ctx context.Context, id primitive.ObjectID, upd models.ProfileUpdate) (*models.User, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
	// AddFollow and RemoveFollow update both sides of the edge. Both are idempotent.
	AddFollow(ctx context.Context, follower, followee primitive.ObjectID) error
	RemoveFollow(ctx context.Context, follower, followee primitive.ObjectID) error
	// ClearExpiredOTPs unsets every challenge that expired at or before now.
	ClearExpiredOTPs(ctx context.Context, now time.Time) (int64, error)
}

type PostRepository interface {
	Create(ctx context.Context, p *models.Post) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Post, error)
	FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Post, error)
	// List returns posts newest first, optionally only those created before `before`.
	List(ctx context.Context, before *time.Time, limit int64) ([]models.Post, error)
	// ToggleVote applies models.Post.ApplyVote atomically and returns the post afterwards.
	ToggleVote(ctx context.Context, postID, userID primitive.ObjectID, kind models.VoteKind) (*models.Post, error)
	AddComment(ctx context.Context, postID, commentID primitive.ObjectID) error
	Delete(ctx context.Context, id primitive.ObjectID) error
	// DeleteByProject removes every post of a project and returns their ids.
	DeleteByProject(ctx context.Context, projectID primitive.ObjectID) ([]primitive.ObjectID, error)
}

type CommentRepository interface {
	Create(ctx context.Context, c *models.Comment) error
	ListByPost(ctx context.Context, postID primitive.ObjectID) ([]models.Comment, error)
	ListByPosts(ctx context.Context, postIDs []primitive.ObjectID) ([]models.Comment, error)
	DeleteByPosts(ctx context.Context, postIDs []primitive.ObjectID) error
}

type ProjectRepository interface {
	Create(ctx context.Context, p *models.Project) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Project, error)
	ListByUser(ctx context.Context, userID primitive.ObjectID) ([]models.Project, error)
	Update(ctx context.Context, id primitive.ObjectID, upd models.ProjectUpdate) (*models.Project, error)
	AddPost(ctx context.Context, projectID, postID primitive.ObjectID) error
	RemovePost(ctx context.Context, projectID, postID primitive.ObjectID) error
	Delete(ctx context.Context, id primitive.ObjectID) error
}

type StoryRepository interface {
	Create(ctx context.Context, s *models.Story) error
	ListActive(ctx context.Context, now time.Time) ([]models.Story, error)
}

type ChatRepository interface {
	// FindOrCreate returns the chat whose members are exactly a and b, creating it if needed.
	FindOrCreate(ctx context.Context, a, b primitive.ObjectID) (*models.Chat, error)
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Chat, error)
	ListByMember(ctx context.Context, userID primitive.ObjectID) ([]models.Chat, error)
	Touch(ctx context.Context, id primitive.ObjectID, at time.Time) error
}

type MessageRepository interface {
	Create(ctx context.Context, m *models.Message) error
	// ListByChat returns up to limit messages oldest first and whether older ones exist.
	ListByChat(ctx context.Context, chatID primitive.ObjectID, before *time.Time, limit int64) ([]models.Message, bool, error)
}

type AuditRepository interface {
	Insert(ctx context.Context, e *models.AuthEvent) error
	ListByUser(ctx context.Context, userID string, limit int) ([]models.AuthEvent, error)
}

// Store bundles the repositories one backend provides.
type Store struct {
	Users    UserRepository
	Posts    PostRepository
	Comments CommentRepository
	Projects ProjectRepository
	Stories  StoryRepository
	Chats    ChatRepository
	Messages MessageRepository
}
