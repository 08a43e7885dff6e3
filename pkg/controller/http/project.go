package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"github.com/secmon-lab/mnemosyne/pkg/domain/types"
	"github.com/secmon-lab/mnemosyne/pkg/usecase"
)

type createProjectRequest struct {
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description" validate:"max=2000"`
}

type updateProjectRequest struct {
	Title       *string `json:"title,omitempty" validate:"omitempty,min=1,max=200"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=2000"`
	Status      *string `json:"status,omitempty" validate:"omitempty,oneof=draft in_progress completed"`
}

func projectIDParam(r *http.Request) model.ProjectID {
	return model.ProjectID(chi.URLParam(r, "projectID"))
}

func (s *Server) createProject(w http.ResponseWriter, r *http.Request) {
	var req createProjectRequest
	if err := s.decodeRequest(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	project, err := s.uc.Project.CreateProject(r.Context(), authorFrom(r.Context()), req.Title, req.Description)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, toProjectResponse(project))
}

func (s *Server) listProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.uc.Project.ListProjects(r.Context(), authorFrom(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := make([]projectResponse, len(projects))
	for i, p := range projects {
		resp[i] = toProjectResponse(p)
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"projects": resp})
}

func (s *Server) getProject(w http.ResponseWriter, r *http.Request) {
	project, err := s.uc.Project.GetProject(r.Context(), authorFrom(r.Context()), projectIDParam(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toProjectResponse(project))
}

func (s *Server) updateProject(w http.ResponseWriter, r *http.Request) {
	var req updateProjectRequest
	if err := s.decodeRequest(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	update := usecase.ProjectUpdate{
		Title:       req.Title,
		Description: req.Description,
	}
	if req.Status != nil {
		status := types.ProjectStatus(*req.Status)
		update.Status = &status
	}

	project, err := s.uc.Project.UpdateProject(r.Context(), authorFrom(r.Context()), projectIDParam(r), update)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toProjectResponse(project))
}
