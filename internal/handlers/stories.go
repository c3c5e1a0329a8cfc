package handlers

import (
	"net/http"

	"github.com/AnshRaj112/buildlog-backend/internal/services"
)

type StoryHandler struct {
	stories *services.StoryService
	uploads Uploads
}

func NewStoryHandler(stories *services.StoryService, uploads Uploads) *StoryHandler {
	return &StoryHandler{stories: stories, uploads: uploads}
}

func (h *StoryHandler) Active(w http.ResponseWriter, r *http.Request) {
	stories, err := h.stories.Active(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, envelope{"stories": stories})
}

func (h *StoryHandler) Create(w http.ResponseWriter, r *http.Request) {
	if err := h.uploads.parse(w, r); err != nil {
		writeError(w, r, err)
		return
	}
	media, err := h.uploads.file(r, "media")
	if err != nil {
		writeError(w, r, err)
		return
	}
	st, err := h.stories.Create(r.Context(), caller(r), media)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusCreated, envelope{"story": st})
}
