package services

import (
	"context"
	"errors"

	"github.com/AnshRaj112/buildlog-backend/internal/apperr"
	"github.com/AnshRaj112/buildlog-backend/internal/models"
	"github.com/AnshRaj112/buildlog-backend/internal/repository"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// VoteResult is the caller's view of a post right after voting.
type VoteResult = models.VoteState

// VoteService toggles votes. Any authenticated user may vote on any post.
type VoteService struct {
	posts repository.PostRepository
}

func NewVoteService(posts repository.PostRepository) *VoteService {
	return &VoteService{posts: posts}
}

func (s *VoteService) Upvote(ctx context.Context, postID, userID primitive.ObjectID) (VoteResult, error) {
	return s.toggle(ctx, postID, userID, models.Upvote)
}

func (s *VoteService) Downvote(ctx context.Context, postID, userID primitive.ObjectID) (VoteResult, error) {
	return s.toggle(ctx, postID, userID, models.Downvote)
}

func (s *VoteService) toggle(ctx context.Context, postID, userID primitive.ObjectID, kind models.VoteKind) (VoteResult, error) {
	post, err := s.posts.ToggleVote(ctx, postID, userID, kind)
	if errors.Is(err, repository.ErrNotFound) {
		return VoteResult{}, apperr.NotFound("Post")
	}
	if err != nil {
		return VoteResult{}, apperr.Internal("Failed to update vote", err)
	}
	return post.VoteStateFor(userID), nil
}
