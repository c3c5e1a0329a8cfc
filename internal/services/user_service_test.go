package services

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/AnshRaj112/buildlog-backend/internal/apperr"
	"github.com/AnshRaj112/buildlog-backend/internal/repository/memory"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestUserService_ProfileCachedAndInvalidated(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	users := memory.NewUserRepository()
	ids := newUsers(t, users, "ada", "bob")
	ada, bob := ids[0], ids[1]
	require.NoError(t, users.AddFollow(ctx, bob, ada))

	svc := NewUserService(users, &folderMedia{}, NewRedisCache(client, time.Minute))

	p, err := svc.Profile(ctx, "Ada")
	require.NoError(t, err)
	require.Len(t, p.Followers, 1)
	assert.Equal(t, "bob", p.Followers[0].Username)
	assert.True(t, mr.Exists("cache:profile:ada"))

	_, err = svc.Profile(ctx, "bob")
	require.NoError(t, err)

	// Renaming bob must drop ada's cached profile, which embeds bob's card.
	_, err = svc.Update(ctx, bob, bob, ProfileInput{Username: "Robert"})
	require.NoError(t, err)
	assert.False(t, mr.Exists("cache:profile:ada"))
	assert.False(t, mr.Exists("cache:profile:bob"))

	p, err = svc.Profile(ctx, "ada")
	require.NoError(t, err)
	assert.Equal(t, "robert", p.Followers[0].Username)

	_, err = svc.Profile(ctx, "bob")
	assert.Equal(t, http.StatusNotFound, apperr.StatusOf(err))
}

func TestUserService_Update(t *testing.T) {
	ctx := context.Background()
	users := memory.NewUserRepository()
	ids := newUsers(t, users, "ada", "bob")
	media := &folderMedia{}
	svc := NewUserService(users, media, nil)

	_, err := svc.Update(ctx, ids[1], ids[0], ProfileInput{Bio: "hi"})
	assert.Equal(t, http.StatusForbidden, apperr.StatusOf(err))

	_, err = svc.Update(ctx, ids[0], ids[0], ProfileInput{Username: "bob"})
	assert.EqualError(t, err, msgCredentialsTaken)

	_, err = svc.Update(ctx, ids[0], ids[0], ProfileInput{Email: "not-an-email"})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	u, err := svc.Update(ctx, ids[0], ids[0], ProfileInput{Bio: " compilers ", Name: "Ada L"})
	require.NoError(t, err)
	assert.Equal(t, "compilers", u.Bio)
	assert.Equal(t, "Ada L", u.Name)
	assert.Equal(t, "ada", u.Username)

	u, err = svc.UpdateAvatar(ctx, ids[0], pngUpload("me.png"))
	require.NoError(t, err)
	assert.Equal(t, "https://media.test/avatars/me.png", u.Avatar)

	_, err = svc.Update(ctx, primitive.NilObjectID, primitive.NilObjectID, ProfileInput{Bio: "x"})
	assert.Equal(t, http.StatusNotFound, apperr.StatusOf(err))
}
