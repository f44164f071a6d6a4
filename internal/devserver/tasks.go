package devserver

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/nhle/teamboard/internal/api"
	"github.com/nhle/teamboard/internal/model"
	"github.com/nhle/teamboard/internal/store"
)

type idRef struct {
	ID int `json:"id"`
}

type userRef struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
}

// taskJSON mirrors the service's task entity: the project is embedded as an
// object and the assignee as a user reference.
type taskJSON struct {
	ID          int            `json:"id"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Status      model.Status   `json:"status"`
	Deadline    *api.Timestamp `json:"deadline"`
	Tags        string         `json:"tags"`
	Position    int            `json:"position"`
	Project     idRef          `json:"project"`
	AssignedTo  *userRef       `json:"assignedTo"`
}

func toTaskJSON(t model.Task) taskJSON {
	out := taskJSON{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Status:      t.Status,
		Tags:        t.Tags,
		Position:    t.Position,
		Project:     idRef{ID: t.ProjectID},
	}
	if t.Deadline != nil {
		out.Deadline = &api.Timestamp{Time: *t.Deadline}
	}
	if t.Assignee != nil {
		out.AssignedTo = &userRef{ID: t.Assignee.ID, Username: t.Assignee.Username}
	}
	return out
}

func toTaskList(tasks []model.Task) []taskJSON {
	out := make([]taskJSON, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, toTaskJSON(t))
	}
	return out
}

type createTaskRequest struct {
	Title        string         `json:"title"`
	Description  string         `json:"description"`
	Deadline     *api.Timestamp `json:"deadline"`
	Status       string         `json:"status"`
	Tags         string         `json:"tags"`
	ProjectID    int            `json:"projectId"`
	AssignedToID int            `json:"assignedToId"`
}

type updateTaskRequest struct {
	Title        string         `json:"title"`
	Description  string         `json:"description"`
	Status       string         `json:"status"`
	Deadline     *api.Timestamp `json:"deadline"`
	Tags         string         `json:"tags"`
	AssignedToID *int           `json:"assignedToId"`
	Position     *int           `json:"position"`
}

func deadlineOf(ts *api.Timestamp) *time.Time {
	if ts == nil || ts.IsZero() {
		return nil
	}
	v := ts.Time
	return &v
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	u := currentUser(ctx)

	raw := r.URL.Query().Get("projectId")
	if raw == "" {
		tasks, err := s.store.ListAssignedTasks(ctx, u.ID)
		if err != nil {
			s.internalError(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusOK, toTaskList(tasks))
		return
	}

	projectID, err := strconv.Atoi(raw)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid projectId")
		return
	}
	role, err := s.projectRole(ctx, projectID, u)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	if role == "" {
		writeText(w, http.StatusForbidden, "You are not a member of this project.")
		return
	}
	tasks, err := s.store.ListProjectTasks(ctx, projectID)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toTaskList(tasks))
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	u := currentUser(ctx)

	var req createTaskRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	role, err := s.projectRole(ctx, req.ProjectID, u)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	if role != model.ProjectRoleManager {
		s.writeError(w, http.StatusForbidden, "You are not allowed to add tasks to this project.")
		return
	}

	if _, err := s.store.MemberRole(ctx, req.ProjectID, req.AssignedToID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.writeError(w, http.StatusBadRequest, "The assigned user is not a member of the project.")
			return
		}
		s.internalError(w, r, err)
		return
	}

	status, err := model.ParseStatus(req.Status)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	task, err := s.store.CreateTask(ctx, model.TaskInput{
		Title:        req.Title,
		Description:  req.Description,
		Deadline:     deadlineOf(req.Deadline),
		Status:       status,
		Tags:         req.Tags,
		ProjectID:    req.ProjectID,
		AssignedToID: req.AssignedToID,
	})
	if err != nil {
		// WIP limit and validation failures alike.
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, toTaskJSON(*task))
}

func (s *Server) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	u := currentUser(ctx)

	id, err := pathID(r, "taskID")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	current, err := s.store.GetTask(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		writeText(w, http.StatusNotFound, "Task does not exist.")
		return
	}
	if err != nil {
		s.internalError(w, r, err)
		return
	}

	role, err := s.projectRole(ctx, current.ProjectID, u)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	isManager := role == model.ProjectRoleManager
	if !isManager && current.AssigneeID() != u.ID {
		writeText(w, http.StatusForbidden, "You are not allowed to edit this task.")
		return
	}

	var req updateTaskRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	status, err := model.ParseStatus(req.Status)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	upd := store.TaskUpdate{
		Title:       req.Title,
		Description: req.Description,
		Status:      status,
		Deadline:    deadlineOf(req.Deadline),
		Tags:        req.Tags,
		Position:    req.Position,
		StatusOnly:  !isManager,
	}
	if isManager && req.AssignedToID != nil {
		if _, err := s.store.GetUserByID(ctx, *req.AssignedToID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				writeText(w, http.StatusBadRequest, "The assigned user does not exist.")
				return
			}
			s.internalError(w, r, err)
			return
		}
		upd.AssignedToID = req.AssignedToID
	}

	updated, err := s.store.UpdateTask(ctx, id, upd)
	switch {
	case errors.Is(err, store.ErrWIPLimit):
		writeText(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, toTaskJSON(*updated))
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	u := currentUser(ctx)

	id, err := pathID(r, "taskID")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	task, err := s.store.GetTask(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		writeText(w, http.StatusNotFound, "Task does not exist.")
		return
	}
	if err != nil {
		s.internalError(w, r, err)
		return
	}

	role, err := s.projectRole(ctx, task.ProjectID, u)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	if role != model.ProjectRoleManager {
		writeText(w, http.StatusForbidden, "You are not allowed to delete this task.")
		return
	}

	if err := s.store.DeleteTask(ctx, id); err != nil {
		s.internalError(w, r, err)
		return
	}
	writeText(w, http.StatusOK, "Task deleted.")
}
