package handlers

import (
	"net/http"

	"github.com/AnshRaj112/buildlog-backend/internal/apperr"
	"github.com/AnshRaj112/buildlog-backend/internal/services"
	"github.com/go-chi/chi/v5"
)

type UserHandler struct {
	users   *services.UserService
	follows *services.FollowService
	uploads Uploads
}

func NewUserHandler(users *services.UserService, follows *services.FollowService, uploads Uploads) *UserHandler {
	return &UserHandler{users: users, follows: follows, uploads: uploads}
}

type updateProfileRequest struct {
	Name     string `json:"name" validate:"max=100"`
	Username string `json:"username"`
	Email    string `json:"email" validate:"max=254"`
	Avatar   string `json:"avatar" validate:"omitempty,url"`
	Bio      string `json:"bio" validate:"max=500"`
}

// Profile serves GET /api/users/{user}, where {user} is a username.
func (h *UserHandler) Profile(w http.ResponseWriter, r *http.Request) {
	p, err := h.users.Profile(r.Context(), chi.URLParam(r, "user"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, envelope{"user": p})
}

// Update serves PUT /api/users/{user}, where {user} is the account id.
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := objectIDParam(r, "user", "user")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req updateProfileRequest
	if err := bindJSON(r, &req, "Invalid request body"); err != nil {
		writeError(w, r, err)
		return
	}
	u, err := h.users.Update(r.Context(), caller(r), id, services.ProfileInput{
		Name:     req.Name,
		Username: req.Username,
		Email:    req.Email,
		Avatar:   req.Avatar,
		Bio:      req.Bio,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, envelope{"user": u})
}

func (h *UserHandler) UploadAvatar(w http.ResponseWriter, r *http.Request) {
	if err := h.uploads.parse(w, r); err != nil {
		writeError(w, r, err)
		return
	}
	up, err := h.uploads.file(r, "avatar")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if up == nil {
		writeError(w, r, apperr.Validation("No avatar uploaded"))
		return
	}
	u, err := h.users.UpdateAvatar(r.Context(), caller(r), up)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, envelope{"user": u})
}

func (h *UserHandler) ToggleFollow(w http.ResponseWriter, r *http.Request) {
	target, err := objectIDParam(r, "id", "user")
	if err != nil {
		writeError(w, r, err)
		return
	}
	following, err := h.follows.Toggle(r.Context(), caller(r), target)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, envelope{"following": following})
}
