package services

import (
	"context"
	"math/rand"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/AnshRaj112/buildlog-backend/internal/apperr"
	"github.com/AnshRaj112/buildlog-backend/internal/models"
	"github.com/AnshRaj112/buildlog-backend/internal/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestVoteService(t *testing.T) {
	ctx := context.Background()
	posts := memory.NewPostRepository()
	svc := NewVoteService(posts)
	p := &models.Post{Caption: "v1"}
	require.NoError(t, posts.Create(ctx, p))
	uid := primitive.NewObjectID()

	res, err := svc.Upvote(ctx, p.ID, uid)
	require.NoError(t, err)
	assert.Equal(t, VoteResult{Upvotes: 1, HasUpvoted: true}, res)

	res, err = svc.Downvote(ctx, p.ID, uid)
	require.NoError(t, err)
	assert.Equal(t, VoteResult{Downvotes: 1, HasDownvoted: true}, res)

	res, err = svc.Downvote(ctx, p.ID, uid)
	require.NoError(t, err)
	assert.Equal(t, VoteResult{}, res)

	_, err = svc.Upvote(ctx, primitive.NewObjectID(), uid)
	assert.Equal(t, http.StatusNotFound, apperr.StatusOf(err))
}

func TestVoteService_ConcurrentTogglesKeepSetsDisjoint(t *testing.T) {
	ctx := context.Background()
	posts := memory.NewPostRepository()
	svc := NewVoteService(posts)
	p := &models.Post{}
	require.NoError(t, posts.Create(ctx, p))
	voters := []primitive.ObjectID{primitive.NewObjectID(), primitive.NewObjectID(), primitive.NewObjectID()}

	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			r := rand.New(rand.NewSource(seed))
			uid := voters[r.Intn(len(voters))]
			var err error
			if r.Intn(2) == 0 {
				_, err = svc.Upvote(ctx, p.ID, uid)
			} else {
				_, err = svc.Downvote(ctx, p.ID, uid)
			}
			assert.NoError(t, err)
		}(int64(i))
	}
	wg.Wait()

	got, err := posts.FindByID(ctx, p.ID)
	require.NoError(t, err)
	for _, uid := range voters {
		s := got.VoteStateFor(uid)
		assert.False(t, s.HasUpvoted && s.HasDownvoted)
	}
	assert.LessOrEqual(t, len(got.Upvotes)+len(got.Downvotes), len(voters))
}

type emitted struct {
	to    primitive.ObjectID
	event string
	data  interface{}
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []emitted
}

func (n *recordingNotifier) Register(primitive.ObjectID, Conn) *Subscription { return nil }
func (n *recordingNotifier) Unregister(*Subscription)                       {}
func (n *recordingNotifier) Emit(userID primitive.ObjectID, event string, payload interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, emitted{userID, event, payload})
}

func (n *recordingNotifier) Events() []emitted {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]emitted(nil), n.events...)
}

func newUsers(t *testing.T, repo *memory.UserRepository, names ...string) []primitive.ObjectID {
	t.Helper()
	ids := make([]primitive.ObjectID, len(names))
	for i, n := range names {
		u := &models.User{Name: n, Username: n, Email: n + "@x.com", IsEmailVerified: true}
		require.NoError(t, repo.Create(context.Background(), u))
		ids[i] = u.ID
	}
	return ids
}

func TestFollowService_Toggle(t *testing.T) {
	ctx := context.Background()
	users := memory.NewUserRepository()
	n := &recordingNotifier{}
	svc := NewFollowService(users, NewLocalLocker(), n, nil)
	ids := newUsers(t, users, "ada", "bob")
	a, b := ids[0], ids[1]

	following, err := svc.Toggle(ctx, a, b)
	require.NoError(t, err)
	assert.True(t, following)

	ua, _ := users.FindByID(ctx, a)
	ub, _ := users.FindByID(ctx, b)
	assert.True(t, ua.IsFollowing(b))
	assert.True(t, ub.HasFollower(a))

	events := n.Events()
	require.Len(t, events, 1)
	assert.Equal(t, b, events[0].to)
	assert.Equal(t, EventNotification, events[0].event)
	assert.Equal(t, FollowNotification{Type: "follow", From: a.Hex()}, events[0].data)

	following, err = svc.Toggle(ctx, a, b)
	require.NoError(t, err)
	assert.False(t, following)
	assert.Len(t, n.Events(), 1, "unfollow is silent")

	ua, _ = users.FindByID(ctx, a)
	ub, _ = users.FindByID(ctx, b)
	assert.False(t, ua.IsFollowing(b))
	assert.False(t, ub.HasFollower(a))
}

func TestFollowService_Errors(t *testing.T) {
	ctx := context.Background()
	users := memory.NewUserRepository()
	svc := NewFollowService(users, NewLocalLocker(), &recordingNotifier{}, nil)
	ids := newUsers(t, users, "ada")

	_, err := svc.Toggle(ctx, ids[0], ids[0])
	assert.EqualError(t, err, "Cannot follow yourself")

	_, err = svc.Toggle(ctx, ids[0], primitive.NewObjectID())
	assert.Equal(t, http.StatusNotFound, apperr.StatusOf(err))
}

func TestFollowService_ConcurrentTogglesStaySymmetric(t *testing.T) {
	ctx := context.Background()
	users := memory.NewUserRepository()
	svc := NewFollowService(users, NewLocalLocker(), &recordingNotifier{}, nil)
	ids := newUsers(t, users, "ada", "bob", "cy")

	var wg sync.WaitGroup
	for i := 0; i < 90; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			me, target := ids[i%3], ids[(i+1+i/3%2)%3]
			if me == target {
				return
			}
			_, err := svc.Toggle(ctx, me, target)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	for _, x := range ids {
		for _, y := range ids {
			if x == y {
				continue
			}
			ux, _ := users.FindByID(ctx, x)
			uy, _ := users.FindByID(ctx, y)
			assert.Equal(t, ux.IsFollowing(y), uy.HasFollower(x))
			assert.False(t, ux.IsFollowing(x))
		}
	}
}

func TestOTPSweeper(t *testing.T) {
	ctx := context.Background()
	users := memory.NewUserRepository()
	now := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	u := &models.User{Username: "ada", Email: "ada@x.com", OTP: &models.OTPChallenge{Code: "123456", ExpiresAt: now.Add(-time.Second)}}
	require.NoError(t, users.Create(ctx, u))

	s, err := NewOTPSweeper(users, "@every 1m")
	require.NoError(t, err)
	s.now = func() time.Time { return now }

	n, err := s.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := users.FindByID(ctx, u.ID)
	require.NoError(t, err, "the account survives the sweep")
	assert.Nil(t, got.OTP)

	s.Start()
	s.Stop(ctx)

	_, err = NewOTPSweeper(users, "not a schedule")
	assert.Error(t, err)
}
