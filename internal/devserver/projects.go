package devserver

import (
	"errors"
	"net/http"

	"github.com/nhle/teamboard/internal/model"
	"github.com/nhle/teamboard/internal/store"
)

type projectJSON struct {
	ID          int    `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Role        string `json:"role,omitempty"`
}

func toProjectJSON(p model.Project) projectJSON {
	return projectJSON{ID: p.ID, Title: p.Title, Description: p.Description, Role: p.Role}
}

// requireRole resolves the project id from the path and checks the caller's
// role. want "" accepts any member. It writes the denial itself and reports
// whether the handler may continue.
func (s *Server) requireRole(w http.ResponseWriter, r *http.Request, want string) (int, string, bool) {
	id, err := pathID(r, "projectID")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return 0, "", false
	}
	role, err := s.projectRole(r.Context(), id, currentUser(r.Context()))
	if err != nil {
		s.internalError(w, r, err)
		return 0, "", false
	}
	if role == "" || (want != "" && role != want) {
		writeText(w, http.StatusForbidden, "You do not have access to this project.")
		return 0, "", false
	}
	return id, role, true
}

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	u := currentUser(ctx)

	var (
		projects []model.Project
		err      error
	)
	if isAdmin(u) {
		projects, err = s.store.ListAllProjects(ctx)
	} else {
		projects, err = s.store.ListProjectsForUser(ctx, u.ID)
	}
	if err != nil {
		s.internalError(w, r, err)
		return
	}

	out := make([]projectJSON, 0, len(projects))
	for _, p := range projects {
		out = append(out, toProjectJSON(p))
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var in model.ProjectInput
	if err := decodeBody(r, &in); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	p, err := s.store.CreateProject(r.Context(), in, currentUser(r.Context()).ID)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, toProjectJSON(*p))
}

func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	id, _, ok := s.requireRole(w, r, "")
	if !ok {
		return
	}
	p, err := s.store.GetProject(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "project not found")
		return
	}
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toProjectJSON(*p))
}

func (s *Server) handleUpdateProject(w http.ResponseWriter, r *http.Request) {
	id, _, ok := s.requireRole(w, r, model.ProjectRoleManager)
	if !ok {
		return
	}
	var in model.ProjectInput
	if err := decodeBody(r, &in); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	err := s.store.UpdateProject(r.Context(), id, in)
	switch {
	case errors.Is(err, store.ErrNotFound):
		s.writeError(w, http.StatusNotFound, "project not found")
		return
	case err != nil:
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"message": "Project updated."})
}

func (s *Server) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	id, _, ok := s.requireRole(w, r, model.ProjectRoleManager)
	if !ok {
		return
	}
	err := s.store.DeleteProject(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeText(w, http.StatusNotFound, "Project does not exist.")
		return
	}
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	writeText(w, http.StatusOK, "Project deleted.")
}

func (s *Server) handleListMembers(w http.ResponseWriter, r *http.Request) {
	id, _, ok := s.requireRole(w, r, "")
	if !ok {
		return
	}
	members, err := s.store.ListMembers(r.Context(), id)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, members)
}

func (s *Server) handleRole(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "projectID")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	u := currentUser(r.Context())

	// The role endpoint reports the stored membership, not the admin view.
	role, err := s.store.MemberRole(r.Context(), id, u.ID)
	if errors.Is(err, store.ErrNotFound) {
		if isAdmin(u) {
			writeText(w, http.StatusOK, model.ProjectRoleManager)
			return
		}
		writeText(w, http.StatusForbidden, "Not a member")
		return
	}
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	writeText(w, http.StatusOK, role)
}
