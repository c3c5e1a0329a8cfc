package services

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/AnshRaj112/buildlog-backend/internal/apperr"
	"github.com/AnshRaj112/buildlog-backend/internal/models"
	"github.com/AnshRaj112/buildlog-backend/internal/repository"
	"github.com/AnshRaj112/buildlog-backend/internal/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// folderMedia hands out predictable URLs and remembers the folders it was asked for.
type folderMedia struct {
	mu      sync.Mutex
	folders []string
	err     error
}

func (m *folderMedia) Save(_ context.Context, folder, filename string, _ []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	m.folders = append(m.folders, folder)
	return "https://media.test/" + folder + "/" + filename, nil
}

func pngUpload(name string) *Upload {
	return &Upload{Filename: name, ContentType: "image/png", Data: pngHeader}
}

func newContentStore(t *testing.T, names ...string) (*repository.Store, []primitive.ObjectID) {
	t.Helper()
	store := memory.NewStore()
	return store, newUsers(t, store.Users.(*memory.UserRepository), names...)
}

func TestPostService_CreateInProject(t *testing.T) {
	ctx := context.Background()
	store, ids := newContentStore(t, "ada", "bob")
	ada, bob := ids[0], ids[1]
	media := &folderMedia{}
	projects := NewProjectService(store, media)
	posts := NewPostService(store, media)

	project, err := projects.Create(ctx, ada, ProjectInput{Title: "  Compiler ", Category: "tools"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Compiler", project.Title)
	assert.Equal(t, "ada", project.Owner.Username)

	post, err := posts.Create(ctx, ada, PostInput{Caption: "parser done", ProjectID: project.ID.Hex(), Type: "milestone"}, pngUpload("a.png"))
	require.NoError(t, err)
	assert.Equal(t, models.PostTypeMilestone, post.Type)
	assert.Equal(t, "https://media.test/posts/a.png", post.MediaURL)
	assert.Equal(t, "ada", post.Author.Username)
	require.NotNil(t, post.Project)
	assert.Equal(t, project.ID, *post.Project)

	got, err := projects.Get(ctx, bob, project.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.PostCount)
	require.Len(t, got.PostViews, 1)
	assert.Equal(t, "parser done", got.PostViews[0].Caption)
	assert.NotNil(t, got.PostViews[0].Comments)

	_, err = posts.Create(ctx, bob, PostInput{ProjectID: project.ID.Hex()}, pngUpload("b.png"))
	assert.Equal(t, http.StatusNotFound, apperr.StatusOf(err))
	assert.EqualError(t, err, msgProjectNotOwned)
}

func TestPostService_CreateValidation(t *testing.T) {
	ctx := context.Background()
	store, ids := newContentStore(t, "ada")
	posts := NewPostService(store, &folderMedia{})

	tests := []struct {
		name  string
		in    PostInput
		media *Upload
		msg   string
	}{
		{"no media", PostInput{Caption: "x"}, nil, "Media file is required"},
		{"bad type", PostInput{Type: "rant"}, pngUpload("a.png"), "Invalid post type"},
		{"bad project", PostInput{ProjectID: "nope"}, pngUpload("a.png"), "Invalid project id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := posts.Create(ctx, ids[0], tt.in, tt.media)
			require.Error(t, err)
			assert.True(t, apperr.Is(err, apperr.KindValidation))
			assert.EqualError(t, err, tt.msg)
		})
	}

	t.Run("media failure", func(t *testing.T) {
		failing := NewPostService(store, &folderMedia{err: errors.New("disk full")})
		_, err := failing.Create(ctx, ids[0], PostInput{}, pngUpload("a.png"))
		assert.Equal(t, http.StatusInternalServerError, apperr.StatusOf(err))
	})
}

func TestPostService_FeedAndComments(t *testing.T) {
	ctx := context.Background()
	store, ids := newContentStore(t, "ada", "bob")
	ada, bob := ids[0], ids[1]
	posts := NewPostService(store, &folderMedia{})
	votes := NewVoteService(store.Posts)

	p1, err := posts.Create(ctx, ada, PostInput{Caption: "first"}, pngUpload("1.png"))
	require.NoError(t, err)
	_, err = posts.Create(ctx, bob, PostInput{Caption: "second"}, pngUpload("2.png"))
	require.NoError(t, err)

	_, err = votes.Upvote(ctx, p1.ID, bob)
	require.NoError(t, err)
	c, err := posts.AddComment(ctx, bob, p1.ID, "  nice  ")
	require.NoError(t, err)
	assert.Equal(t, "nice", c.Text)
	assert.Equal(t, "bob", c.Author.Username)

	_, err = posts.AddComment(ctx, bob, p1.ID, "   ")
	assert.EqualError(t, err, "Comment text is required")
	_, err = posts.AddComment(ctx, bob, primitive.NewObjectID(), "hi")
	assert.Equal(t, http.StatusNotFound, apperr.StatusOf(err))

	feed, err := posts.Feed(ctx, bob, nil, 0)
	require.NoError(t, err)
	require.Len(t, feed, 2)
	var first models.PostView
	for _, v := range feed {
		if v.ID == p1.ID {
			first = v
		}
	}
	assert.True(t, first.HasUpvoted)
	assert.Equal(t, 1, first.UpvoteCount)
	assert.Equal(t, 1, first.CommentCount)
	require.Len(t, first.Comments, 1)
	assert.Equal(t, "bob", first.Comments[0].Author.Username)

	anon, err := posts.Feed(ctx, primitive.NilObjectID, nil, 0)
	require.NoError(t, err)
	for _, v := range anon {
		assert.False(t, v.HasUpvoted)
	}

	comments, err := posts.Comments(ctx, p1.ID)
	require.NoError(t, err)
	require.Len(t, comments, 1)
	assert.Equal(t, "nice", comments[0].Text)
}

func TestPostService_Delete(t *testing.T) {
	ctx := context.Background()
	store, ids := newContentStore(t, "ada", "bob")
	ada, bob := ids[0], ids[1]
	projects := NewProjectService(store, &folderMedia{})
	posts := NewPostService(store, &folderMedia{})

	project, err := projects.Create(ctx, ada, ProjectInput{Title: "Engine"}, nil)
	require.NoError(t, err)
	post, err := posts.Create(ctx, ada, PostInput{ProjectID: project.ID.Hex()}, pngUpload("a.png"))
	require.NoError(t, err)
	_, err = posts.AddComment(ctx, bob, post.ID, "hi")
	require.NoError(t, err)

	err = posts.Delete(ctx, bob, post.ID)
	assert.Equal(t, http.StatusForbidden, apperr.StatusOf(err))

	require.NoError(t, posts.Delete(ctx, ada, post.ID))
	_, err = store.Posts.FindByID(ctx, post.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	left, err := store.Comments.ListByPost(ctx, post.ID)
	require.NoError(t, err)
	assert.Empty(t, left)
	p, err := store.Projects.FindByID(ctx, project.ID)
	require.NoError(t, err)
	assert.Empty(t, p.Posts)
}

func TestProjectService_UpdateAndDelete(t *testing.T) {
	ctx := context.Background()
	store, ids := newContentStore(t, "ada", "bob")
	ada, bob := ids[0], ids[1]
	media := &folderMedia{}
	projects := NewProjectService(store, media)
	posts := NewPostService(store, media)

	_, err := projects.Create(ctx, ada, ProjectInput{Title: "  "}, nil)
	assert.EqualError(t, err, "Title is required")

	project, err := projects.Create(ctx, ada, ProjectInput{Title: "Engine", Description: "v1"}, pngUpload("cover.png"))
	require.NoError(t, err)
	assert.Equal(t, "https://media.test/projects/cover.png", project.CoverImage)

	_, err = projects.Update(ctx, bob, project.ID, ProjectInput{Title: "Mine now"}, nil)
	assert.EqualError(t, err, msgProjectNotOwned)

	updated, err := projects.Update(ctx, ada, project.ID, ProjectInput{Description: "v2"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Engine", updated.Title)
	assert.Equal(t, "v2", updated.Description)

	post, err := posts.Create(ctx, ada, PostInput{ProjectID: project.ID.Hex()}, pngUpload("a.png"))
	require.NoError(t, err)
	_, err = posts.AddComment(ctx, bob, post.ID, "hi")
	require.NoError(t, err)

	mine, err := projects.ListByUsername(ctx, "ADA")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, 1, mine[0].PostCount)
	_, err = projects.ListByUsername(ctx, "nobody")
	assert.Equal(t, http.StatusNotFound, apperr.StatusOf(err))

	assert.EqualError(t, projects.Delete(ctx, bob, project.ID), msgProjectNotOwned)
	require.NoError(t, projects.Delete(ctx, ada, project.ID))

	_, err = store.Posts.FindByID(ctx, post.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	left, err := store.Comments.ListByPost(ctx, post.ID)
	require.NoError(t, err)
	assert.Empty(t, left)
	gone, err := projects.ListMine(ctx, ada)
	require.NoError(t, err)
	assert.Empty(t, gone)
}

func TestStoryService(t *testing.T) {
	ctx := context.Background()
	store, ids := newContentStore(t, "ada")
	media := &folderMedia{}
	stories := NewStoryService(store, media)
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	stories.now = func() time.Time { return now }

	_, err := stories.Create(ctx, ids[0], nil)
	assert.EqualError(t, err, "No media uploaded")

	st, err := stories.Create(ctx, ids[0], pngUpload("s.png"))
	require.NoError(t, err)
	assert.Equal(t, now.Add(24*time.Hour), st.ExpiresAt)
	assert.Equal(t, []string{FolderStories}, media.folders)

	now = now.Add(time.Hour)
	later, err := stories.Create(ctx, ids[0], pngUpload("t.png"))
	require.NoError(t, err)

	active, err := stories.Active(ctx)
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, later.ID, active[0].ID)
	assert.Equal(t, "ada", active[0].Author.Username)

	now = now.Add(23*time.Hour + time.Minute)
	active, err = stories.Active(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, later.ID, active[0].ID)
}
