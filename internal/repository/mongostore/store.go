// Package mongostore implements the repository contracts on MongoDB.
package mongostore

import (
	"context"
	"fmt"

	"github.com/AnshRaj112/buildlog-backend/internal/repository"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func NewStore(db *mongo.Database) *repository.Store {
	return &repository.Store{
		Users:    NewUserRepository(db),
		Posts:    NewPostRepository(db),
		Comments: NewCommentRepository(db),
		Projects: NewProjectRepository(db),
		Stories:  NewStoryRepository(db),
		Chats:    NewChatRepository(db),
		Messages: NewMessageRepository(db),
	}
}

// indexSpecs lists every index the repositories rely on, per collection.
func indexSpecs() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		usersCollection: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetName("uniq_email").SetUnique(true)},
			{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetName("uniq_username").SetUnique(true)},
			// Plain index: a TTL here would delete the account, the sweeper only clears the challenge.
			{Keys: bson.D{{Key: "otp.expiresAt", Value: 1}}, Options: options.Index().SetName("idx_otp_expires").SetSparse(true)},
		},
		postsCollection: {
			{Keys: bson.D{{Key: "createdAt", Value: -1}}, Options: options.Index().SetName("idx_created")},
			{Keys: bson.D{{Key: "project", Value: 1}}, Options: options.Index().SetName("idx_project")},
		},
		commentsCollection: {
			{Keys: bson.D{{Key: "post", Value: 1}, {Key: "createdAt", Value: 1}}, Options: options.Index().SetName("idx_post_created")},
		},
		projectsCollection: {
			{Keys: bson.D{{Key: "user", Value: 1}, {Key: "createdAt", Value: -1}}, Options: options.Index().SetName("idx_user_created")},
		},
		storiesCollection: {
			{Keys: bson.D{{Key: "expiresAt", Value: 1}}, Options: options.Index().SetName("ttl_expires").SetExpireAfterSeconds(0)},
		},
		chatsCollection: {
			{Keys: bson.D{{Key: "pairKey", Value: 1}}, Options: options.Index().SetName("uniq_pair").SetUnique(true)},
			{Keys: bson.D{{Key: "members", Value: 1}, {Key: "updatedAt", Value: -1}}, Options: options.Index().SetName("idx_members_updated")},
		},
		messagesCollection: {
			// Compound index on (chatId, createdAt) to support efficient pagination.
			{Keys: bson.D{{Key: "chatId", Value: 1}, {Key: "createdAt", Value: -1}}, Options: options.Index().SetName("idx_chat_created")},
		},
	}
}

// EnsureIndexes creates missing indexes. Called on startup after Mongo has connected.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	for collection, models := range indexSpecs() {
		if _, err := db.Collection(collection).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("ensure indexes on %s: %w", collection, err)
		}
	}
	return nil
}
