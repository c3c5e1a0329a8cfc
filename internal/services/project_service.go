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

const msgProjectNotOwned = "Project not found or unauthorized"

type ProjectService struct {
	projects repository.ProjectRepository
	posts    repository.PostRepository
	comments repository.CommentRepository
	users    repository.UserRepository
	media    MediaStore
	hydrate  hydrator
}

func NewProjectService(store *repository.Store, media MediaStore) *ProjectService {
	return &ProjectService{
		projects: store.Projects,
		posts:    store.Posts,
		comments: store.Comments,
		users:    store.Users,
		media:    media,
		hydrate:  hydrator{users: store.Users, comments: store.Comments},
	}
}

type ProjectInput struct {
	Title       string
	Description string
	Category    string
}

func (s *ProjectService) Create(ctx context.Context, caller primitive.ObjectID, in ProjectInput, cover *Upload) (*models.ProjectView, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, apperr.Validation("Title is required")
	}
	p := &models.Project{
		User:        caller,
		Title:       title,
		Description: strings.TrimSpace(in.Description),
		Category:    strings.TrimSpace(in.Category),
	}
	if cover != nil {
		url, err := s.media.Save(ctx, FolderProjects, cover.Filename, cover.Data)
		if err != nil {
			return nil, apperr.Internal("Failed to create project", err)
		}
		p.CoverImage = url
	}
	if err := s.projects.Create(ctx, p); err != nil {
		return nil, apperr.Internal("Failed to create project", err)
	}
	views, err := s.views(ctx, []models.Project{*p})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

func (s *ProjectService) ListMine(ctx context.Context, caller primitive.ObjectID) ([]models.ProjectView, error) {
	projects, err := s.projects.ListByUser(ctx, caller)
	if err != nil {
		return nil, apperr.Internal("Failed to fetch projects", err)
	}
	return s.views(ctx, projects)
}

func (s *ProjectService) ListByUsername(ctx context.Context, username string) ([]models.ProjectView, error) {
	u, err := s.users.FindByUsername(ctx, utils.NormalizeUsername(username))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.NotFound("User")
	}
	if err != nil {
		return nil, apperr.Internal("Failed to fetch user projects", err)
	}
	projects, err := s.projects.ListByUser(ctx, u.ID)
	if err != nil {
		return nil, apperr.Internal("Failed to fetch user projects", err)
	}
	return s.views(ctx, projects)
}

// Get returns a project with its posts newest first, each with comments.
func (s *ProjectService) Get(ctx context.Context, viewer, id primitive.ObjectID) (*models.ProjectView, error) {
	p, err := s.projects.FindByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.NotFound("Project")
	}
	if err != nil {
		return nil, apperr.Internal("Failed to fetch project", err)
	}

	views, err := s.views(ctx, []models.Project{*p})
	if err != nil {
		return nil, err
	}
	posts, err := s.posts.FindByIDs(ctx, p.Posts)
	if err != nil {
		return nil, apperr.Internal("Failed to fetch project", err)
	}
	postViews, err := s.hydrate.posts(ctx, viewer, posts, true)
	if err != nil {
		return nil, apperr.Internal("Failed to fetch project", err)
	}
	views[0].PostViews = postViews
	return &views[0], nil
}

// Update edits the caller's project. Empty fields are left unchanged.
func (s *ProjectService) Update(ctx context.Context, caller, id primitive.ObjectID, in ProjectInput, cover *Upload) (*models.ProjectView, error) {
	if _, err := s.owned(ctx, caller, id); err != nil {
		return nil, err
	}

	var upd models.ProjectUpdate
	set := func(dst **string, v string) {
		if v = strings.TrimSpace(v); v != "" {
			*dst = &v
		}
	}
	set(&upd.Title, in.Title)
	set(&upd.Description, in.Description)
	set(&upd.Category, in.Category)
	if cover != nil {
		url, err := s.media.Save(ctx, FolderProjects, cover.Filename, cover.Data)
		if err != nil {
			return nil, apperr.Internal("Failed to update project", err)
		}
		upd.CoverImage = &url
	}

	p, err := s.projects.Update(ctx, id, upd)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, &apperr.Error{Kind: apperr.KindNotFound, Message: msgProjectNotOwned}
	}
	if err != nil {
		return nil, apperr.Internal("Failed to update project", err)
	}
	views, err := s.views(ctx, []models.Project{*p})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

// Delete removes the caller's project together with its posts and their comments.
func (s *ProjectService) Delete(ctx context.Context, caller, id primitive.ObjectID) error {
	if _, err := s.owned(ctx, caller, id); err != nil {
		return err
	}
	postIDs, err := s.posts.DeleteByProject(ctx, id)
	if err != nil {
		return apperr.Internal("Failed to delete project", err)
	}
	if len(postIDs) > 0 {
		if err := s.comments.DeleteByPosts(ctx, postIDs); err != nil {
			return apperr.Internal("Failed to delete project", err)
		}
	}
	if err := s.projects.Delete(ctx, id); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return apperr.Internal("Failed to delete project", err)
	}
	return nil
}

// owned hides other users' projects behind the same not-found error.
func (s *ProjectService) owned(ctx context.Context, caller, id primitive.ObjectID) (*models.Project, error) {
	p, err := s.projects.FindByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) || (err == nil && p.User != caller) {
		return nil, &apperr.Error{Kind: apperr.KindNotFound, Message: msgProjectNotOwned}
	}
	if err != nil {
		return nil, apperr.Internal("Server error", err)
	}
	return p, nil
}

func (s *ProjectService) views(ctx context.Context, projects []models.Project) ([]models.ProjectView, error) {
	ids := make([]primitive.ObjectID, len(projects))
	for i := range projects {
		ids[i] = projects[i].User
	}
	owners, err := summaryMap(ctx, s.users, ids)
	if err != nil {
		return nil, apperr.Internal("Server error", err)
	}
	out := make([]models.ProjectView, len(projects))
	for i, p := range projects {
		out[i] = models.ProjectView{Project: p, Owner: owners[p.User], PostCount: p.PostCount()}
	}
	return out, nil
}
