package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/AnshRaj112/buildlog-backend/internal/apperr"
	"github.com/AnshRaj112/buildlog-backend/internal/models"
	"github.com/AnshRaj112/buildlog-backend/internal/repository"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	defaultFeedLimit = 20
	maxFeedLimit     = 100
)

// hydrator turns stored posts into views with authors, comments and the
// viewer's vote state.
type hydrator struct {
	users    repository.UserRepository
	comments repository.CommentRepository
}

func (h hydrator) posts(ctx context.Context, viewer primitive.ObjectID, posts []models.Post, withComments bool) ([]models.PostView, error) {
	var comments []models.Comment
	if withComments && len(posts) > 0 {
		ids := make([]primitive.ObjectID, len(posts))
		for i := range posts {
			ids[i] = posts[i].ID
		}
		var err error
		if comments, err = h.comments.ListByPosts(ctx, ids); err != nil {
			return nil, err
		}
	}

	authorIDs := make([]primitive.ObjectID, 0, len(posts)+len(comments))
	for i := range posts {
		authorIDs = append(authorIDs, posts[i].User)
	}
	for i := range comments {
		authorIDs = append(authorIDs, comments[i].User)
	}
	authors, err := summaryMap(ctx, h.users, authorIDs)
	if err != nil {
		return nil, err
	}

	byPost := make(map[primitive.ObjectID][]models.CommentView)
	for _, c := range comments {
		byPost[c.Post] = append(byPost[c.Post], models.CommentView{Comment: c, Author: authors[c.User]})
	}

	views := make([]models.PostView, len(posts))
	for i := range posts {
		p := posts[i]
		vs := p.VoteStateFor(viewer)
		views[i] = models.PostView{
			Post:          p,
			Author:        authors[p.User],
			CommentCount:  len(p.Comments),
			HasUpvoted:    vs.HasUpvoted,
			HasDownvoted:  vs.HasDownvoted,
			UpvoteCount:   vs.Upvotes,
			DownvoteCount: vs.Downvotes,
		}
		if withComments {
			views[i].Comments = byPost[p.ID]
			if views[i].Comments == nil {
				views[i].Comments = []models.CommentView{}
			}
		}
	}
	return views, nil
}

type PostService struct {
	posts    repository.PostRepository
	comments repository.CommentRepository
	projects repository.ProjectRepository
	media    MediaStore
	hydrate  hydrator
}

func NewPostService(store *repository.Store, media MediaStore) *PostService {
	return &PostService{
		posts:    store.Posts,
		comments: store.Comments,
		projects: store.Projects,
		media:    media,
		hydrate:  hydrator{users: store.Users, comments: store.Comments},
	}
}

// Feed returns posts newest first. A zero viewer sees no vote flags.
func (s *PostService) Feed(ctx context.Context, viewer primitive.ObjectID, before *time.Time, limit int64) ([]models.PostView, error) {
	if limit <= 0 {
		limit = defaultFeedLimit
	}
	if limit > maxFeedLimit {
		limit = maxFeedLimit
	}
	posts, err := s.posts.List(ctx, before, limit)
	if err != nil {
		return nil, apperr.Internal("Server error", err)
	}
	views, err := s.hydrate.posts(ctx, viewer, posts, true)
	if err != nil {
		return nil, apperr.Internal("Server error", err)
	}
	return views, nil
}

type PostInput struct {
	Caption   string
	ProjectID string
	Type      string
}

// Create stores the media and the post. A project, when given, must belong to the caller.
func (s *PostService) Create(ctx context.Context, caller primitive.ObjectID, in PostInput, media *Upload) (*models.PostView, error) {
	if media == nil {
		return nil, apperr.Validation("Media file is required")
	}
	kind := models.PostType(strings.TrimSpace(in.Type))
	if kind == "" {
		kind = models.PostTypeUpdate
	}
	if !kind.Valid() {
		return nil, apperr.Validation("Invalid post type")
	}

	var projectID *primitive.ObjectID
	if pid := strings.TrimSpace(in.ProjectID); pid != "" {
		id, err := primitive.ObjectIDFromHex(pid)
		if err != nil {
			return nil, apperr.Validation("Invalid project id")
		}
		project, err := s.projects.FindByID(ctx, id)
		if errors.Is(err, repository.ErrNotFound) || (err == nil && project.User != caller) {
			return nil, &apperr.Error{Kind: apperr.KindNotFound, Message: msgProjectNotOwned}
		}
		if err != nil {
			return nil, apperr.Internal("Server error", err)
		}
		projectID = &id
	}

	url, err := s.media.Save(ctx, FolderPosts, media.Filename, media.Data)
	if err != nil {
		return nil, apperr.Internal("Failed to save media", err)
	}

	post := &models.Post{
		Caption:     strings.TrimSpace(in.Caption),
		MediaURL:    url,
		ContentType: media.ContentType,
		Project:     projectID,
		Type:        kind,
		User:        caller,
	}
	if err := s.posts.Create(ctx, post); err != nil {
		return nil, apperr.Internal("Failed to create post", err)
	}
	if projectID != nil {
		if err := s.projects.AddPost(ctx, *projectID, post.ID); err != nil {
			return nil, apperr.Internal("Failed to create post", err)
		}
	}

	views, err := s.hydrate.posts(ctx, caller, []models.Post{*post}, false)
	if err != nil {
		return nil, apperr.Internal("Server error", err)
	}
	return &views[0], nil
}

func (s *PostService) AddComment(ctx context.Context, caller, postID primitive.ObjectID, text string) (*models.CommentView, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperr.Validation("Comment text is required")
	}
	if _, err := s.post(ctx, postID); err != nil {
		return nil, err
	}

	c := &models.Comment{Text: text, User: caller, Post: postID}
	if err := s.comments.Create(ctx, c); err != nil {
		return nil, apperr.Internal("Failed to add comment", err)
	}
	if err := s.posts.AddComment(ctx, postID, c.ID); err != nil {
		return nil, apperr.Internal("Failed to add comment", err)
	}

	authors, err := summaryMap(ctx, s.hydrate.users, []primitive.ObjectID{caller})
	if err != nil {
		return nil, apperr.Internal("Server error", err)
	}
	return &models.CommentView{Comment: *c, Author: authors[caller]}, nil
}

// Comments lists a post's comments oldest first.
func (s *PostService) Comments(ctx context.Context, postID primitive.ObjectID) ([]models.CommentView, error) {
	if _, err := s.post(ctx, postID); err != nil {
		return nil, err
	}
	comments, err := s.comments.ListByPost(ctx, postID)
	if err != nil {
		return nil, apperr.Internal("Server error", err)
	}
	ids := make([]primitive.ObjectID, len(comments))
	for i := range comments {
		ids[i] = comments[i].User
	}
	authors, err := summaryMap(ctx, s.hydrate.users, ids)
	if err != nil {
		return nil, apperr.Internal("Server error", err)
	}
	out := make([]models.CommentView, len(comments))
	for i, c := range comments {
		out[i] = models.CommentView{Comment: c, Author: authors[c.User]}
	}
	return out, nil
}

// Delete removes the caller's post with its comments and its project reference.
func (s *PostService) Delete(ctx context.Context, caller, postID primitive.ObjectID) error {
	post, err := s.post(ctx, postID)
	if err != nil {
		return err
	}
	if post.User != caller {
		return apperr.Forbidden("Not authorized to delete this post")
	}

	if err := s.comments.DeleteByPosts(ctx, []primitive.ObjectID{postID}); err != nil {
		return apperr.Internal("Failed to delete post", err)
	}
	if post.Project != nil {
		if err := s.projects.RemovePost(ctx, *post.Project, postID); err != nil && !errors.Is(err, repository.ErrNotFound) {
			return apperr.Internal("Failed to delete post", err)
		}
	}
	if err := s.posts.Delete(ctx, postID); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return apperr.Internal("Failed to delete post", err)
	}
	return nil
}

func (s *PostService) post(ctx context.Context, id primitive.ObjectID) (*models.Post, error) {
	p, err := s.posts.FindByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.NotFound("Post")
	}
	if err != nil {
		return nil, apperr.Internal("Server error", err)
	}
	return p, nil
}
