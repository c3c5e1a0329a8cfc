package mongostore

import (
	"context"
	"testing"
	"time"

	"github.com/AnshRaj112/buildlog-backend/internal/models"
	"github.com/AnshRaj112/buildlog-backend/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func userDoc(id primitive.ObjectID, username string, verified bool) bson.D {
	return bson.D{
		{Key: "_id", Value: id},
		{Key: "name", Value: "Ada"},
		{Key: "username", Value: username},
		{Key: "email", Value: username + "@example.com"},
		{Key: "password", Value: "hash"},
		{Key: "followers", Value: bson.A{}},
		{Key: "following", Value: bson.A{}},
		{Key: "isEmailVerified", Value: verified},
	}
}

func TestUserRepository(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()

	mt.Run("create assigns id and empty edge sets", func(mt *mtest.T) {
		repo := NewUserRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		u := &models.User{Name: "Ada", Username: "ada", Email: "ada@example.com"}
		require.NoError(t, repo.Create(ctx, u))
		assert.False(t, u.ID.IsZero())
		assert.NotNil(t, u.Followers)
		assert.NotNil(t, u.Following)
		assert.False(t, u.CreatedAt.IsZero())
	})

	mt.Run("create maps duplicate key", func(mt *mtest.T) {
		repo := NewUserRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index: 0, Code: 11000, Message: "E11000 duplicate key error",
		}))

		err := repo.Create(ctx, &models.User{Username: "ada"})
		assert.ErrorIs(t, err, repository.ErrDuplicate)
	})

	mt.Run("find by email", func(mt *mtest.T) {
		repo := NewUserRepository(mt.DB)
		id := primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "db.users", mtest.FirstBatch, userDoc(id, "ada", true)))

		u, err := repo.FindByEmail(ctx, "ada@example.com")
		require.NoError(t, err)
		assert.Equal(t, id, u.ID)
		assert.Equal(t, "ada", u.Username)
		assert.True(t, u.IsEmailVerified)
	})

	mt.Run("find missing user", func(mt *mtest.T) {
		repo := NewUserRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "db.users", mtest.FirstBatch))

		_, err := repo.FindByID(ctx, primitive.NewObjectID())
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})

	mt.Run("summaries keep request order", func(mt *mtest.T) {
		repo := NewUserRepository(mt.DB)
		a, b := primitive.NewObjectID(), primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "db.users", mtest.FirstBatch,
			bson.D{{Key: "_id", Value: a}, {Key: "username", Value: "alpha"}},
			bson.D{{Key: "_id", Value: b}, {Key: "username", Value: "beta"}},
		))

		got, err := repo.FindSummaries(ctx, []primitive.ObjectID{b, primitive.NewObjectID(), a})
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "beta", got[0].Username)
		assert.Equal(t, "alpha", got[1].Username)
	})

	mt.Run("summaries of nothing skip the query", func(mt *mtest.T) {
		repo := NewUserRepository(mt.DB)
		got, err := repo.FindSummaries(ctx, nil)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	mt.Run("mark verified on missing user", func(mt *mtest.T) {
		repo := NewUserRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 0},
			bson.E{Key: "nModified", Value: 0},
		))

		err := repo.MarkVerified(ctx, primitive.NewObjectID())
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})

	mt.Run("replace registration of verified user is not found", func(mt *mtest.T) {
		repo := NewUserRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}))

		err := repo.ReplaceRegistration(ctx, &models.User{ID: primitive.NewObjectID(), Username: "ada"})
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})

	mt.Run("add follow updates both users", func(mt *mtest.T) {
		repo := NewUserRepository(mt.DB)
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}, bson.E{Key: "nModified", Value: 1}),
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}, bson.E{Key: "nModified", Value: 1}),
		)

		require.NoError(t, repo.AddFollow(ctx, primitive.NewObjectID(), primitive.NewObjectID()))
	})

	mt.Run("remove follow reports missing followee", func(mt *mtest.T) {
		repo := NewUserRepository(mt.DB)
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}, bson.E{Key: "nModified", Value: 1}),
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}, bson.E{Key: "nModified", Value: 0}),
		)

		err := repo.RemoveFollow(ctx, primitive.NewObjectID(), primitive.NewObjectID())
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})

	mt.Run("update profile returns the new document", func(mt *mtest.T) {
		repo := NewUserRepository(mt.DB)
		id := primitive.NewObjectID()
		doc := userDoc(id, "ada", true)
		doc = append(doc, bson.E{Key: "bio", Value: "compilers"})
		mt.AddMockResponses(bson.D{{Key: "ok", Value: 1}, {Key: "value", Value: doc}})

		bio := "compilers"
		u, err := repo.UpdateProfile(ctx, id, models.ProfileUpdate{Bio: &bio})
		require.NoError(t, err)
		assert.Equal(t, "compilers", u.Bio)
	})

	mt.Run("clear expired otps", func(mt *mtest.T) {
		repo := NewUserRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 3},
			bson.E{Key: "nModified", Value: 3},
		))

		n, err := repo.ClearExpiredOTPs(ctx, time.Now())
		require.NoError(t, err)
		assert.Equal(t, int64(3), n)
	})
}
