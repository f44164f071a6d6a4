package devserver

import (
	"errors"
	"net/http"
	"strings"

	"github.com/nhle/teamboard/internal/model"
	"github.com/nhle/teamboard/internal/store"
)

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	d, err := s.store.UserDashboard(r.Context(), currentUser(r.Context()).ID, s.now())
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleManagerDashboard(w http.ResponseWriter, r *http.Request) {
	d, err := s.store.ManagerDashboard(r.Context(), currentUser(r.Context()).ID, s.now())
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, d)
}

type userJSON struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.store.ListUsers(r.Context(), currentUser(r.Context()).ID)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	out := make([]userJSON, 0, len(users))
	for _, u := range users {
		out = append(out, userJSON{ID: u.ID, Username: u.Username, Role: u.Role})
	}
	s.writeJSON(w, http.StatusOK, out)
}

type createUserRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

func validRole(role string) bool {
	switch role {
	case model.RoleAdmin, model.RoleManager, model.RoleUser:
		return true
	}
	return false
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	if !isAdmin(currentUser(r.Context())) {
		writeText(w, http.StatusForbidden, "Only administrators can create users.")
		return
	}

	var req createUserRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	role := strings.ToUpper(strings.TrimSpace(req.Role))
	if role == "" {
		role = model.RoleUser
	}
	if !validRole(role) {
		writeText(w, http.StatusBadRequest, "Unknown role "+req.Role+".")
		return
	}

	hash, err := s.HashPassword(req.Password)
	if err != nil {
		writeText(w, http.StatusBadRequest, err.Error())
		return
	}
	_, err = s.store.CreateUser(r.Context(), store.UserRecord{
		User:         model.User{Username: req.Username, Role: role},
		PasswordHash: hash,
	})
	switch {
	case errors.Is(err, store.ErrUsernameTaken):
		writeText(w, http.StatusBadRequest, "Username is already taken.")
		return
	case err != nil:
		writeText(w, http.StatusBadRequest, err.Error())
		return
	}
	writeText(w, http.StatusCreated, "User created.")
}
