package services

import (
	"context"
	"time"

	"github.com/AnshRaj112/buildlog-backend/internal/apperr"
	"github.com/AnshRaj112/buildlog-backend/internal/models"
	"github.com/AnshRaj112/buildlog-backend/internal/repository"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type StoryService struct {
	stories repository.StoryRepository
	users   repository.UserRepository
	media   MediaStore
	now     func() time.Time
}

func NewStoryService(store *repository.Store, media MediaStore) *StoryService {
	return &StoryService{
		stories: store.Stories,
		users:   store.Users,
		media:   media,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Active returns unexpired stories newest first.
func (s *StoryService) Active(ctx context.Context) ([]models.StoryView, error) {
	stories, err := s.stories.ListActive(ctx, s.now())
	if err != nil {
		return nil, apperr.Internal("Server error", err)
	}
	ids := make([]primitive.ObjectID, len(stories))
	for i := range stories {
		ids[i] = stories[i].User
	}
	authors, err := summaryMap(ctx, s.users, ids)
	if err != nil {
		return nil, apperr.Internal("Server error", err)
	}
	out := make([]models.StoryView, len(stories))
	for i, st := range stories {
		out[i] = models.StoryView{Story: st, Author: authors[st.User]}
	}
	return out, nil
}

func (s *StoryService) Create(ctx context.Context, caller primitive.ObjectID, media *Upload) (*models.Story, error) {
	if media == nil {
		return nil, apperr.Validation("No media uploaded")
	}
	url, err := s.media.Save(ctx, FolderStories, media.Filename, media.Data)
	if err != nil {
		return nil, apperr.Internal("Failed to save story media", err)
	}
	now := s.now()
	st := &models.Story{
		User:        caller,
		MediaURL:    url,
		ContentType: media.ContentType,
		CreatedAt:   now,
		ExpiresAt:   now.Add(models.StoryLifetime),
	}
	if err := s.stories.Create(ctx, st); err != nil {
		return nil, apperr.Internal("Server error", err)
	}
	return st, nil
}
