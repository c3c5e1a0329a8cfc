package services

import (
	"context"
	"errors"

	"github.com/AnshRaj112/buildlog-backend/internal/apperr"
	"github.com/AnshRaj112/buildlog-backend/internal/models"
	"github.com/AnshRaj112/buildlog-backend/internal/repository"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// FollowNotification is sent to a user when someone starts following them.
type FollowNotification struct {
	Type string `json:"type"`
	From string `json:"from"`
}

// FollowService toggles follow edges. Both sides of an edge are written under
// a lock on the (follower, followee) pair, so concurrent toggles of the same
// edge apply one after another.
type FollowService struct {
	users    repository.UserRepository
	locker   Locker
	notifier Notifier
	cache    Cache
}

func NewFollowService(users repository.UserRepository, locker Locker, notifier Notifier, cache Cache) *FollowService {
	if cache == nil {
		cache = NopCache{}
	}
	return &FollowService{users: users, locker: locker, notifier: notifier, cache: cache}
}

// Toggle follows target if me does not follow them yet, and unfollows otherwise.
// It returns whether me follows target afterwards.
func (s *FollowService) Toggle(ctx context.Context, me, target primitive.ObjectID) (bool, error) {
	if me == target {
		return false, apperr.Validation("Cannot follow yourself")
	}

	unlock, err := s.locker.Lock(ctx, "follow:"+me.Hex()+":"+target.Hex())
	if err != nil {
		return false, apperr.Internal("Server error", err)
	}
	defer unlock()

	follower, err := s.user(ctx, me)
	if err != nil {
		return false, err
	}
	followee, err := s.user(ctx, target)
	if err != nil {
		return false, err
	}

	following := !follower.IsFollowing(target)
	if following {
		err = s.users.AddFollow(ctx, me, target)
	} else {
		err = s.users.RemoveFollow(ctx, me, target)
	}
	if errors.Is(err, repository.ErrNotFound) {
		return false, apperr.NotFound("User")
	}
	if err != nil {
		return false, apperr.Internal("Server error", err)
	}

	s.cache.Delete(ctx, profileCacheKey(follower.Username), profileCacheKey(followee.Username))
	if following && s.notifier != nil {
		s.notifier.Emit(target, EventNotification, FollowNotification{Type: "follow", From: me.Hex()})
	}
	return following, nil
}

func (s *FollowService) user(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	u, err := s.users.FindByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.NotFound("User")
	}
	if err != nil {
		return nil, apperr.Internal("Server error", err)
	}
	return u, nil
}
