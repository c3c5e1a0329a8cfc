package handlers

import (
	"context"
	"net/http"

	"github.com/AnshRaj112/buildlog-backend/internal/services"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type PostHandler struct {
	posts   *services.PostService
	votes   *services.VoteService
	uploads Uploads
}

func NewPostHandler(posts *services.PostService, votes *services.VoteService, uploads Uploads) *PostHandler {
	return &PostHandler{posts: posts, votes: votes, uploads: uploads}
}

type commentRequest struct {
	Text string `json:"text" validate:"required,max=2000"`
}

// Feed lists posts newest first; ?before=<RFC3339>&limit=<n> pages back.
func (h *PostHandler) Feed(w http.ResponseWriter, r *http.Request) {
	before, limit, err := pageParams(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	posts, err := h.posts.Feed(r.Context(), caller(r), before, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, envelope{"posts": posts})
}

func (h *PostHandler) Create(w http.ResponseWriter, r *http.Request) {
	if err := h.uploads.parse(w, r); err != nil {
		writeError(w, r, err)
		return
	}
	media, err := h.uploads.file(r, "media")
	if err != nil {
		writeError(w, r, err)
		return
	}
	post, err := h.posts.Create(r.Context(), caller(r), services.PostInput{
		Caption:   r.FormValue("caption"),
		ProjectID: r.FormValue("projectId"),
		Type:      r.FormValue("type"),
	}, media)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusCreated, envelope{"post": post})
}

func (h *PostHandler) AddComment(w http.ResponseWriter, r *http.Request) {
	id, err := objectIDParam(r, "id", "post")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req commentRequest
	if err := bindJSON(r, &req, "Comment text is required"); err != nil {
		writeError(w, r, err)
		return
	}
	c, err := h.posts.AddComment(r.Context(), caller(r), id, req.Text)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusCreated, envelope{"comment": c})
}

func (h *PostHandler) Comments(w http.ResponseWriter, r *http.Request) {
	id, err := objectIDParam(r, "id", "post")
	if err != nil {
		writeError(w, r, err)
		return
	}
	comments, err := h.posts.Comments(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, envelope{"comments": comments})
}

func (h *PostHandler) Upvote(w http.ResponseWriter, r *http.Request) {
	h.vote(w, r, h.votes.Upvote)
}

func (h *PostHandler) Downvote(w http.ResponseWriter, r *http.Request) {
	h.vote(w, r, h.votes.Downvote)
}

func (h *PostHandler) vote(w http.ResponseWriter, r *http.Request, toggle func(context.Context, primitive.ObjectID, primitive.ObjectID) (services.VoteResult, error)) {
	id, err := objectIDParam(r, "id", "post")
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := toggle(r.Context(), id, caller(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, envelope{
		"upvotes":      res.Upvotes,
		"downvotes":    res.Downvotes,
		"hasUpvoted":   res.HasUpvoted,
		"hasDownvoted": res.HasDownvoted,
	})
}

func (h *PostHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := objectIDParam(r, "id", "post")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.posts.Delete(r.Context(), caller(r), id); err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, envelope{"message": "Post deleted"})
}
