package services

import (
	"context"
	"errors"
	"strings"

	"github.com/AnshRaj112/buildlog-backend/internal/apperr"
	"github.com/AnshRaj112/buildlog-backend/internal/models"
	"github.com/AnshRaj112/buildlog-backend/internal/repository"
	"github.com/AnshRaj112/buildlog-backend/pkg/utils"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func profileCacheKey(username string) string {
	return CacheKey("profile", username)
}

type UserService struct {
	users repository.UserRepository
	media MediaStore
	cache Cache
}

func NewUserService(users repository.UserRepository, media MediaStore, cache Cache) *UserService {
	if cache == nil {
		cache = NopCache{}
	}
	return &UserService{users: users, media: media, cache: cache}
}

// Profile returns the public profile of username with its follow graph hydrated.
func (s *UserService) Profile(ctx context.Context, username string) (*models.PublicProfile, error) {
	username = utils.NormalizeUsername(username)
	key := profileCacheKey(username)

	var cached models.PublicProfile
	if s.cache.Get(ctx, key, &cached) {
		return &cached, nil
	}

	u, err := s.users.FindByUsername(ctx, username)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.NotFound("User")
	}
	if err != nil {
		return nil, apperr.Internal("Server error", err)
	}

	followers, err := s.users.FindSummaries(ctx, u.Followers)
	if err != nil {
		return nil, apperr.Internal("Server error", err)
	}
	following, err := s.users.FindSummaries(ctx, u.Following)
	if err != nil {
		return nil, apperr.Internal("Server error", err)
	}

	p := &models.PublicProfile{
		ID:              u.ID,
		Name:            u.Name,
		Username:        u.Username,
		Avatar:          u.Avatar,
		Bio:             u.Bio,
		Followers:       followers,
		Following:       following,
		IsEmailVerified: u.IsEmailVerified,
		CreatedAt:       u.CreatedAt,
	}
	s.cache.Set(ctx, key, p)
	return p, nil
}

// ProfileInput holds the submitted profile fields; empty strings are left unchanged.
type ProfileInput struct {
	Name     string
	Username string
	Email    string
	Avatar   string
	Bio      string
}

func (in ProfileInput) toUpdate() (models.ProfileUpdate, error) {
	var upd models.ProfileUpdate
	set := func(dst **string, v string) {
		if v = strings.TrimSpace(v); v != "" {
			*dst = &v
		}
	}
	set(&upd.Name, in.Name)
	set(&upd.Avatar, in.Avatar)
	set(&upd.Bio, in.Bio)
	if in.Username != "" {
		username := utils.NormalizeUsername(in.Username)
		if err := utils.ValidateUsername(username); err != nil {
			return upd, apperr.Validation(err.Error())
		}
		upd.Username = &username
	}
	if in.Email != "" {
		email := utils.NormalizeEmail(in.Email)
		if err := utils.ValidateEmail(email); err != nil {
			return upd, apperr.Validation(err.Error())
		}
		upd.Email = &email
	}
	return upd, nil
}

// Update edits the profile of id. Only the owner may do so.
func (s *UserService) Update(ctx context.Context, caller, id primitive.ObjectID, in ProfileInput) (*models.User, error) {
	if caller != id {
		return nil, apperr.Forbidden("Not authorized to update this profile")
	}
	upd, err := in.toUpdate()
	if err != nil {
		return nil, err
	}
	return s.apply(ctx, id, upd)
}

// UpdateAvatar stores the uploaded image and points the caller's avatar at it.
func (s *UserService) UpdateAvatar(ctx context.Context, caller primitive.ObjectID, up *Upload) (*models.User, error) {
	url, err := s.media.Save(ctx, FolderAvatars, up.Filename, up.Data)
	if err != nil {
		return nil, apperr.Internal("Failed to upload avatar", err)
	}
	return s.apply(ctx, caller, models.ProfileUpdate{Avatar: &url})
}

func (s *UserService) apply(ctx context.Context, id primitive.ObjectID, upd models.ProfileUpdate) (*models.User, error) {
	before, err := s.users.FindByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.NotFound("User")
	}
	if err != nil {
		return nil, apperr.Internal("Server error", err)
	}

	u, err := s.users.UpdateProfile(ctx, id, upd)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return nil, apperr.NotFound("User")
	case errors.Is(err, repository.ErrDuplicate):
		return nil, apperr.Conflict(msgCredentialsTaken)
	case err != nil:
		return nil, apperr.Internal("Server error", err)
	}

	// Followers' and followees' profiles embed this user's summary too.
	keys := []string{profileCacheKey(before.Username), profileCacheKey(u.Username)}
	if related, err := s.users.FindSummaries(ctx, append(append([]primitive.ObjectID{}, u.Followers...), u.Following...)); err == nil {
		for _, r := range related {
			keys = append(keys, profileCacheKey(r.Username))
		}
	}
	s.cache.Delete(ctx, keys...)
	return u, nil
}

// summaryMap returns the public cards of ids keyed by id.
func summaryMap(ctx context.Context, users repository.UserRepository, ids []primitive.ObjectID) (map[primitive.ObjectID]models.UserSummary, error) {
	out := make(map[primitive.ObjectID]models.UserSummary, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	seen := make(map[primitive.ObjectID]bool, len(ids))
	uniq := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			uniq = append(uniq, id)
		}
	}
	list, err := users.FindSummaries(ctx, uniq)
	if err != nil {
		return nil, err
	}
	for _, s := range list {
		out[s.ID] = s
	}
	return out, nil
}
