package handlers

import (
	"net/http"

	"github.com/AnshRaj112/buildlog-backend/internal/services"
	"github.com/go-chi/chi/v5"
)

type ProjectHandler struct {
	projects *services.ProjectService
	uploads  Uploads
}

func NewProjectHandler(projects *services.ProjectService, uploads Uploads) *ProjectHandler {
	return &ProjectHandler{projects: projects, uploads: uploads}
}

type projectRequest struct {
	Title       string `json:"title" validate:"max=120"`
	Description string `json:"description" validate:"max=2000"`
	Category    string `json:"category" validate:"max=60"`
}

// input reads a project from either a multipart form (with an optional
// coverImage) or a JSON body.
func (h *ProjectHandler) input(w http.ResponseWriter, r *http.Request) (services.ProjectInput, *services.Upload, error) {
	var req projectRequest
	if !isMultipart(r) {
		if err := bindJSON(r, &req, "Invalid request body"); err != nil {
			return services.ProjectInput{}, nil, err
		}
		return services.ProjectInput(req), nil, nil
	}

	if err := h.uploads.parse(w, r); err != nil {
		return services.ProjectInput{}, nil, err
	}
	req = projectRequest{
		Title:       r.FormValue("title"),
		Description: r.FormValue("description"),
		Category:    r.FormValue("category"),
	}
	if err := validate.Struct(req); err != nil {
		return services.ProjectInput{}, nil, bindError(err, "Invalid request body")
	}
	cover, err := h.uploads.file(r, "coverImage")
	if err != nil {
		return services.ProjectInput{}, nil, err
	}
	return services.ProjectInput(req), cover, nil
}

func (h *ProjectHandler) Create(w http.ResponseWriter, r *http.Request) {
	in, cover, err := h.input(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	p, err := h.projects.Create(r.Context(), caller(r), in, cover)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusCreated, envelope{"project": p})
}

func (h *ProjectHandler) Mine(w http.ResponseWriter, r *http.Request) {
	list, err := h.projects.ListMine(r.Context(), caller(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, envelope{"projects": list})
}

func (h *ProjectHandler) ByUser(w http.ResponseWriter, r *http.Request) {
	list, err := h.projects.ListByUsername(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, envelope{"projects": list})
}

func (h *ProjectHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := objectIDParam(r, "id", "project")
	if err != nil {
		writeError(w, r, err)
		return
	}
	p, err := h.projects.Get(r.Context(), caller(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, envelope{"project": p})
}

func (h *ProjectHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := objectIDParam(r, "id", "project")
	if err != nil {
		writeError(w, r, err)
		return
	}
	in, cover, err := h.input(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	p, err := h.projects.Update(r.Context(), caller(r), id, in, cover)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, envelope{"project": p})
}

func (h *ProjectHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := objectIDParam(r, "id", "project")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.projects.Delete(r.Context(), caller(r), id); err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, envelope{"message": "Project deleted"})
}
