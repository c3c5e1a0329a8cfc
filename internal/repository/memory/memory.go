// Package memory is an in-process implementation of the repository contracts.
// Each repository serializes access with its own mutex and hands out copies.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/AnshRaj112/buildlog-backend/internal/models"
	"github.com/AnshRaj112/buildlog-backend/internal/repository"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func NewStore() *repository.Store {
	return &repository.Store{
		Users:    NewUserRepository(),
		Posts:    NewPostRepository(),
		Comments: NewCommentRepository(),
		Projects: NewProjectRepository(),
		Stories:  NewStoryRepository(),
		Chats:    NewChatRepository(),
		Messages: NewMessageRepository(),
	}
}

func cloneIDs(ids []primitive.ObjectID) []primitive.ObjectID {
	return append([]primitive.ObjectID{}, ids...)
}

func addID(ids []primitive.ObjectID, id primitive.ObjectID) []primitive.ObjectID {
	for _, v := range ids {
		if v == id {
			return ids
		}
	}
	return append(ids, id)
}

func removeID(ids []primitive.ObjectID, id primitive.ObjectID) []primitive.ObjectID {
	out := ids[:0:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

// ---- users ----

type UserRepository struct {
	mu    sync.Mutex
	users map[primitive.ObjectID]*models.User
}

func NewUserRepository() *UserRepository {
	return &UserRepository{users: make(map[primitive.ObjectID]*models.User)}
}

func copyUser(u *models.User) *models.User {
	cp := *u
	cp.Followers = cloneIDs(u.Followers)
	cp.Following = cloneIDs(u.Following)
	if u.OTP != nil {
		otp := *u.OTP
		cp.OTP = &otp
	}
	if u.OTPSentAt != nil {
		t := *u.OTPSentAt
		cp.OTPSentAt = &t
	}
	return &cp
}

// conflicts reports whether another user already owns email or username.
func (r *UserRepository) conflicts(self primitive.ObjectID, email, username string) bool {
	for id, u := range r.users {
		if id == self {
			continue
		}
		if (email != "" && u.Email == email) || (username != "" && u.Username == username) {
			return true
		}
	}
	return false
}

func (r *UserRepository) Create(_ context.Context, u *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	if r.conflicts(u.ID, u.Email, u.Username) {
		return repository.ErrDuplicate
	}
	now := time.Now().UTC()
	u.CreatedAt, u.UpdatedAt = now, now
	if u.Followers == nil {
		u.Followers = []primitive.ObjectID{}
	}
	if u.Following == nil {
		u.Following = []primitive.ObjectID{}
	}
	r.users[u.ID] = copyUser(u)
	return nil
}

func (r *UserRepository) findWhere(match func(*models.User) bool) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	// Deterministic order so $or lookups behave like an index scan by creation.
	all := make([]*models.User, 0, len(r.users))
	for _, u := range r.users {
		all = append(all, u)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID.Hex() < all[j].ID.Hex() })
	for _, u := range all {
		if match(u) {
			return copyUser(u), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *UserRepository) FindByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	return r.findWhere(func(u *models.User) bool { return u.ID == id })
}

func (r *UserRepository) FindByEmail(_ context.Context, email string) (*models.User, error) {
	return r.findWhere(func(u *models.User) bool { return u.Email == email })
}

func (r *UserRepository) FindByUsername(_ context.Context, username string) (*models.User, error) {
	return r.findWhere(func(u *models.User) bool { return u.Username == username })
}

func (r *UserRepository) FindByEmailOrUsername(_ context.Context, email, username string) (*models.User, error) {
	return r.findWhere(func(u *models.User) bool { return u.Email == email || u.Username == username })
}

func (r *UserRepository) FindSummaries(_ context.Context, ids []primitive.ObjectID) ([]models.UserSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.UserSummary, 0, len(ids))
	for _, id := range ids {
		if u, ok := r.users[id]; ok {
			out = append(out, u.Summary())
		}
	}
	return out, nil
}

func (r *UserRepository) ReplaceRegistration(_ context.Context, u *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.users[u.ID]
	if !ok || cur.IsEmailVerified {
		return repository.ErrNotFound
	}
	if r.conflicts(u.ID, u.Email, u.Username) {
		return repository.ErrDuplicate
	}
	u.UpdatedAt = time.Now().UTC()
	next := copyUser(cur)
	next.Name, next.Username, next.Email, next.Password = u.Name, u.Username, u.Email, u.Password
	next.UpdatedAt = u.UpdatedAt
	next.OTP, next.OTPSentAt = nil, nil
	if u.OTP != nil {
		otp := *u.OTP
		next.OTP = &otp
	}
	if u.OTPSentAt != nil {
		t := *u.OTPSentAt
		next.OTPSentAt = &t
	}
	r.users[u.ID] = next
	return nil
}

func (r *UserRepository) SetOTP(_ context.Context, id primitive.ObjectID, otp *models.OTPChallenge, sentAt *time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.OTP, u.OTPSentAt = nil, nil
	if otp != nil {
		c := *otp
		u.OTP = &c
	}
	if sentAt != nil {
		t := *sentAt
		u.OTPSentAt = &t
	}
	u.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *UserRepository) MarkVerified(_ context.Context, id primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.IsEmailVerified = true
	u.OTP, u.OTPSentAt = nil, nil
	u.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *UserRepository) UpdateProfile(_ context.Context, id primitive.ObjectID, upd models.ProfileUpdate) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	var email, username string
	if upd.Email != nil {
		email = *upd.Email
	}
	if upd.Username != nil {
		username = *upd.Username
	}
	if r.conflicts(id, email, username) {
		return nil, repository.ErrDuplicate
	}
	if upd.Name != nil {
		u.Name = *upd.Name
	}
	if upd.Username != nil {
		u.Username = *upd.Username
	}
	if upd.Email != nil {
		u.Email = *upd.Email
	}
	if upd.Avatar != nil {
		u.Avatar = *upd.Avatar
	}
	if upd.Bio != nil {
		u.Bio = *upd.Bio
	}
	u.UpdatedAt = time.Now().UTC()
	return copyUser(u), nil
}

func (r *UserRepository) Delete(_ context.Context, id primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.users, id)
	return nil
}

func (r *UserRepository) AddFollow(_ context.Context, follower, followee primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, okA := r.users[follower]
	b, okB := r.users[followee]
	if !okA || !okB {
		return repository.ErrNotFound
	}
	a.Following = addID(a.Following, followee)
	b.Followers = addID(b.Followers, follower)
	return nil
}

func (r *UserRepository) RemoveFollow(_ context.Context, follower, followee primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, okA := r.users[follower]
	b, okB := r.users[followee]
	if !okA || !okB {
		return repository.ErrNotFound
	}
	a.Following = removeID(a.Following, followee)
	b.Followers = removeID(b.Followers, follower)
	return nil
}

func (r *UserRepository) ClearExpiredOTPs(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, u := range r.users {
		if u.OTP != nil && !u.OTP.ExpiresAt.After(now) {
			u.OTP = nil
			n++
		}
	}
	return n, nil
}

// ---- posts ----

type PostRepository struct {
	mu    sync.Mutex
	posts map[primitive.ObjectID]*models.Post
}

func NewPostRepository() *PostRepository {
	return &PostRepository{posts: make(map[primitive.ObjectID]*models.Post)}
}

func copyPost(p *models.Post) models.Post {
	cp := *p
	cp.Upvotes = cloneIDs(p.Upvotes)
	cp.Downvotes = cloneIDs(p.Downvotes)
	cp.Comments = cloneIDs(p.Comments)
	if p.Project != nil {
		id := *p.Project
		cp.Project = &id
	}
	return cp
}

func newestFirst(posts []models.Post) {
	sort.SliceStable(posts, func(i, j int) bool {
		if posts[i].CreatedAt.Equal(posts[j].CreatedAt) {
			return posts[i].ID.Hex() > posts[j].ID.Hex()
		}
		return posts[i].CreatedAt.After(posts[j].CreatedAt)
	})
}

func (r *PostRepository) Create(_ context.Context, p *models.Post) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	cp := copyPost(p)
	r.posts[p.ID] = &cp
	return nil
}

func (r *PostRepository) FindByID(_ context.Context, id primitive.ObjectID) (*models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.posts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := copyPost(p)
	return &cp, nil
}

func (r *PostRepository) FindByIDs(_ context.Context, ids []primitive.ObjectID) ([]models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []models.Post{}
	for _, id := range ids {
		if p, ok := r.posts[id]; ok {
			out = append(out, copyPost(p))
		}
	}
	newestFirst(out)
	return out, nil
}

func (r *PostRepository) List(_ context.Context, before *time.Time, limit int64) ([]models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []models.Post{}
	for _, p := range r.posts {
		if before != nil && !p.CreatedAt.Before(*before) {
			continue
		}
		out = append(out, copyPost(p))
	}
	newestFirst(out)
	if limit > 0 && int64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *PostRepository) ToggleVote(_ context.Context, postID, userID primitive.ObjectID, kind models.VoteKind) (*models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.posts[postID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	p.ApplyVote(userID, kind)
	p.UpdatedAt = time.Now().UTC()
	cp := copyPost(p)
	return &cp, nil
}

func (r *PostRepository) AddComment(_ context.Context, postID, commentID primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.posts[postID]
	if !ok {
		return repository.ErrNotFound
	}
	p.Comments = append(p.Comments, commentID)
	return nil
}

func (r *PostRepository) Delete(_ context.Context, id primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.posts[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.posts, id)
	return nil
}

func (r *PostRepository) DeleteByProject(_ context.Context, projectID primitive.ObjectID) ([]primitive.ObjectID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := []primitive.ObjectID{}
	for id, p := range r.posts {
		if p.Project != nil && *p.Project == projectID {
			ids = append(ids, id)
			delete(r.posts, id)
		}
	}
	return ids, nil
}

// ---- comments ----

type CommentRepository struct {
	mu       sync.Mutex
	comments []models.Comment
}

func NewCommentRepository() *CommentRepository {
	return &CommentRepository{}
}

func (r *CommentRepository) Create(_ context.Context, c *models.Comment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c.ID.IsZero() {
		c.ID = primitive.NewObjectID()
	}
	c.CreatedAt = time.Now().UTC()
	r.comments = append(r.comments, *c)
	return nil
}

func (r *CommentRepository) ListByPost(_ context.Context, postID primitive.ObjectID) ([]models.Comment, error) {
	return r.filter(func(c models.Comment) bool { return c.Post == postID }), nil
}

func (r *CommentRepository) ListByPosts(_ context.Context, postIDs []primitive.ObjectID) ([]models.Comment, error) {
	set := make(map[primitive.ObjectID]bool, len(postIDs))
	for _, id := range postIDs {
		set[id] = true
	}
	return r.filter(func(c models.Comment) bool { return set[c.Post] }), nil
}

func (r *CommentRepository) filter(keep func(models.Comment) bool) []models.Comment {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []models.Comment{}
	for _, c := range r.comments {
		if keep(c) {
			out = append(out, c)
		}
	}
	return out
}

func (r *CommentRepository) DeleteByPosts(_ context.Context, postIDs []primitive.ObjectID) error {
	set := make(map[primitive.ObjectID]bool, len(postIDs))
	for _, id := range postIDs {
		set[id] = true
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.comments[:0]
	for _, c := range r.comments {
		if !set[c.Post] {
			kept = append(kept, c)
		}
	}
	r.comments = kept
	return nil
}

// ---- projects ----

type ProjectRepository struct {
	mu       sync.Mutex
	projects map[primitive.ObjectID]*models.Project
}

func NewProjectRepository() *ProjectRepository {
	return &ProjectRepository{projects: make(map[primitive.ObjectID]*models.Project)}
}

func copyProject(p *models.Project) models.Project {
	cp := *p
	cp.Posts = cloneIDs(p.Posts)
	return cp
}

func (r *ProjectRepository) Create(_ context.Context, p *models.Project) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now
	if p.Posts == nil {
		p.Posts = []primitive.ObjectID{}
	}
	cp := copyProject(p)
	r.projects[p.ID] = &cp
	return nil
}

func (r *ProjectRepository) FindByID(_ context.Context, id primitive.ObjectID) (*models.Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.projects[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := copyProject(p)
	return &cp, nil
}

func (r *ProjectRepository) ListByUser(_ context.Context, userID primitive.ObjectID) ([]models.Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []models.Project{}
	for _, p := range r.projects {
		if p.User == userID {
			out = append(out, copyProject(p))
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *ProjectRepository) Update(_ context.Context, id primitive.ObjectID, upd models.ProjectUpdate) (*models.Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.projects[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if upd.Title != nil {
		p.Title = *upd.Title
	}
	if upd.Description != nil {
		p.Description = *upd.Description
	}
	if upd.Category != nil {
		p.Category = *upd.Category
	}
	if upd.CoverImage != nil {
		p.CoverImage = *upd.CoverImage
	}
	p.UpdatedAt = time.Now().UTC()
	cp := copyProject(p)
	return &cp, nil
}

func (r *ProjectRepository) AddPost(_ context.Context, projectID, postID primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.projects[projectID]
	if !ok {
		return repository.ErrNotFound
	}
	p.Posts = addID(p.Posts, postID)
	return nil
}

func (r *ProjectRepository) RemovePost(_ context.Context, projectID, postID primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.projects[projectID]
	if !ok {
		return repository.ErrNotFound
	}
	p.Posts = removeID(p.Posts, postID)
	return nil
}

func (r *ProjectRepository) Delete(_ context.Context, id primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.projects[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.projects, id)
	return nil
}

// ---- stories ----

type StoryRepository struct {
	mu      sync.Mutex
	stories []models.Story
}

func NewStoryRepository() *StoryRepository {
	return &StoryRepository{}
}

func (r *StoryRepository) Create(_ context.Context, s *models.Story) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s.ID.IsZero() {
		s.ID = primitive.NewObjectID()
	}
	r.stories = append(r.stories, *s)
	return nil
}

func (r *StoryRepository) ListActive(_ context.Context, now time.Time) ([]models.Story, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []models.Story{}
	for _, s := range r.stories {
		if s.ExpiresAt.After(now) {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// ---- chats & messages ----

type ChatRepository struct {
	mu    sync.Mutex
	chats map[string]*models.Chat
}

func NewChatRepository() *ChatRepository {
	return &ChatRepository{chats: make(map[string]*models.Chat)}
}

func copyChat(c *models.Chat) *models.Chat {
	cp := *c
	cp.Members = cloneIDs(c.Members)
	return &cp
}

func (r *ChatRepository) FindOrCreate(_ context.Context, a, b primitive.ObjectID) (*models.Chat, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	members, key := models.ChatPair(a, b)
	if c, ok := r.chats[key]; ok {
		return copyChat(c), nil
	}
	now := time.Now().UTC()
	c := &models.Chat{ID: primitive.NewObjectID(), Members: members, PairKey: key, CreatedAt: now, UpdatedAt: now}
	r.chats[key] = c
	return copyChat(c), nil
}

func (r *ChatRepository) FindByID(_ context.Context, id primitive.ObjectID) (*models.Chat, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.chats {
		if c.ID == id {
			return copyChat(c), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *ChatRepository) ListByMember(_ context.Context, userID primitive.ObjectID) ([]models.Chat, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []models.Chat{}
	for _, c := range r.chats {
		if c.HasMember(userID) {
			out = append(out, *copyChat(c))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return strings.Compare(out[i].PairKey, out[j].PairKey) < 0
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

func (r *ChatRepository) Touch(_ context.Context, id primitive.ObjectID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.chats {
		if c.ID == id {
			c.UpdatedAt = at.UTC()
			return nil
		}
	}
	return repository.ErrNotFound
}

type MessageRepository struct {
	mu       sync.Mutex
	messages []models.Message
}

func NewMessageRepository() *MessageRepository {
	return &MessageRepository{}
}

func (r *MessageRepository) Create(_ context.Context, m *models.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m.ID.IsZero() {
		m.ID = primitive.NewObjectID()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	r.messages = append(r.messages, *m)
	return nil
}

func (r *MessageRepository) ListByChat(_ context.Context, chatID primitive.ObjectID, before *time.Time, limit int64) ([]models.Message, bool, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var matched []models.Message
	for _, m := range r.messages {
		if m.ChatID != chatID {
			continue
		}
		if before != nil && !m.CreatedAt.Before(*before) {
			continue
		}
		matched = append(matched, m)
	}
	sort.SliceStable(matched, func(i, j int) bool { return matched[i].CreatedAt.Before(matched[j].CreatedAt) })

	hasMore := int64(len(matched)) > limit
	if hasMore {
		matched = matched[int64(len(matched))-limit:]
	}
	if matched == nil {
		matched = []models.Message{}
	}
	return matched, hasMore, nil
}
