package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/AnshRaj112/buildlog-backend/internal/models"
	"github.com/AnshRaj112/buildlog-backend/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestUserRepository_UniqueFields(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository()

	require.NoError(t, repo.Create(ctx, &models.User{Username: "ada", Email: "ada@example.com"}))
	err := repo.Create(ctx, &models.User{Username: "ada", Email: "other@example.com"})
	assert.ErrorIs(t, err, repository.ErrDuplicate)

	got, err := repo.FindByEmailOrUsername(ctx, "nobody@example.com", "ada")
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", got.Email)
}

func TestUserRepository_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository()
	u := &models.User{Username: "ada", Email: "ada@example.com"}
	require.NoError(t, repo.Create(ctx, u))

	got, err := repo.FindByID(ctx, u.ID)
	require.NoError(t, err)
	got.Username = "mutated"

	again, err := repo.FindByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "ada", again.Username)
}

func TestUserRepository_ClearExpiredOTPs(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository()
	now := time.Now()

	stale := &models.User{Username: "a", Email: "a@x.io", OTP: &models.OTPChallenge{Code: "111111", ExpiresAt: now.Add(-time.Minute)}}
	fresh := &models.User{Username: "b", Email: "b@x.io", OTP: &models.OTPChallenge{Code: "222222", ExpiresAt: now.Add(time.Minute)}}
	require.NoError(t, repo.Create(ctx, stale))
	require.NoError(t, repo.Create(ctx, fresh))

	n, err := repo.ClearExpiredOTPs(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, _ := repo.FindByID(ctx, stale.ID)
	assert.Nil(t, got.OTP)
	got, _ = repo.FindByID(ctx, fresh.ID)
	assert.NotNil(t, got.OTP)
}

func TestPostRepository_ConcurrentVotesStayExclusive(t *testing.T) {
	ctx := context.Background()
	repo := NewPostRepository()
	p := &models.Post{Caption: "ship it"}
	require.NoError(t, repo.Create(ctx, p))
	uid := primitive.NewObjectID()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			kind := models.Upvote
			if i%2 == 1 {
				kind = models.Downvote
			}
			_, err := repo.ToggleVote(ctx, p.ID, uid, kind)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	got, err := repo.FindByID(ctx, p.ID)
	require.NoError(t, err)
	s := got.VoteStateFor(uid)
	assert.False(t, s.HasUpvoted && s.HasDownvoted)
	assert.LessOrEqual(t, s.Upvotes+s.Downvotes, 1)
}

func TestChatRepository_FindOrCreateIsSymmetric(t *testing.T) {
	ctx := context.Background()
	repo := NewChatRepository()
	a, b := primitive.NewObjectID(), primitive.NewObjectID()

	first, err := repo.FindOrCreate(ctx, a, b)
	require.NoError(t, err)
	second, err := repo.FindOrCreate(ctx, b, a)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
}

func TestMessageRepository_ListByChat(t *testing.T) {
	ctx := context.Background()
	repo := NewMessageRepository()
	chatID := primitive.NewObjectID()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, text := range []string{"first", "second", "third"} {
		require.NoError(t, repo.Create(ctx, &models.Message{ChatID: chatID, Text: text, CreatedAt: base.Add(time.Duration(i) * time.Minute)}))
	}

	msgs, hasMore, err := repo.ListByChat(ctx, chatID, nil, 2)
	require.NoError(t, err)
	assert.True(t, hasMore)
	require.Len(t, msgs, 2)
	assert.Equal(t, "second", msgs[0].Text)
	assert.Equal(t, "third", msgs[1].Text)
}
