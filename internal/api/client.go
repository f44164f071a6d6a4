// Package api is the typed client of the task service REST contract. Every
// call goes through the request gateway, so authenticated calls are checked
// by the session guard before dispatch.
package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/nhle/teamboard/internal/gateway"
	"github.com/nhle/teamboard/internal/model"
)

// Sender is the subset of gateway.Client the api client needs.
type Sender interface {
	Send(ctx context.Context, method, path string, body, out any) gateway.Outcome
	SendAnonymous(ctx context.Context, method, path string, body, out any) gateway.Outcome
}

// Client wraps a gateway with one method per remote endpoint.
//
// Task mutations used by the sync coordinator return the raw Outcome so the
// coordinator can decide between commit and rollback. Everything else
// returns an ordinary error built with Outcome.Err.
type Client struct {
	gw Sender
}

// New returns a client over gw.
func New(gw Sender) *Client {
	return &Client{gw: gw}
}

// Login exchanges a username and password for a bearer token. The token is
// not stored; hand it to session.Guard.Login.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	var resp loginResponse
	out := c.gw.SendAnonymous(ctx, http.MethodPost, "/auth/login",
		loginRequest{Username: username, Password: password}, &resp)
	if err := out.Err(); err != nil {
		return "", fmt.Errorf("logging in as %s: %w", username, err)
	}
	if resp.Token == "" {
		return "", fmt.Errorf("logging in as %s: response carried no token", username)
	}
	return resp.Token, nil
}

// ListTasks returns the tasks of a project, or the caller's own tasks when
// projectID is 0.
func (c *Client) ListTasks(ctx context.Context, projectID int) ([]model.Task, error) {
	path := "/tasks"
	if projectID != 0 {
		path += "?" + url.Values{"projectId": {strconv.Itoa(projectID)}}.Encode()
	}
	var wire []taskWire
	if err := c.gw.Send(ctx, http.MethodGet, path, nil, &wire).Err(); err != nil {
		return nil, fmt.Errorf("listing tasks: %w", err)
	}
	tasks := make([]model.Task, 0, len(wire))
	for _, w := range wire {
		t := w.toModel()
		if t.ProjectID == 0 {
			t.ProjectID = projectID
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

// UpdateTask persists every field of t, including status and position. A
// nil task with a successful outcome means the remote answered without a
// decodable record.
func (c *Client) UpdateTask(ctx context.Context, t model.Task) (*model.Task, gateway.Outcome) {
	var wire taskWire
	out := c.gw.Send(ctx, http.MethodPut, taskPath(t.ID), updateBody(t), &wire)
	return decodedTask(out, wire), out
}

// CreateTask creates a task from in. The remote assigns id and position.
func (c *Client) CreateTask(ctx context.Context, in model.TaskInput) (*model.Task, gateway.Outcome) {
	var wire taskWire
	out := c.gw.Send(ctx, http.MethodPost, "/tasks", createBody(in), &wire)
	created := decodedTask(out, wire)
	if created != nil && created.ProjectID == 0 {
		created.ProjectID = in.ProjectID
	}
	return created, out
}

// DeleteTask removes a task. The remote answers with a plain-text
// confirmation, which classifies as RawSuccess.
func (c *Client) DeleteTask(ctx context.Context, id int) gateway.Outcome {
	return c.gw.Send(ctx, http.MethodDelete, taskPath(id), nil, nil)
}

func decodedTask(out gateway.Outcome, wire taskWire) *model.Task {
	if out.Kind != gateway.DecodedSuccess || wire.ID == 0 {
		return nil
	}
	t := wire.toModel()
	return &t
}

func taskPath(id int) string { return "/tasks/" + strconv.Itoa(id) }

func projectPath(id int, rest ...string) string {
	p := "/projects/" + strconv.Itoa(id)
	if len(rest) > 0 {
		p += "/" + strings.Join(rest, "/")
	}
	return p
}

// ListProjects returns the projects visible to the caller with the caller's
// role in each.
func (c *Client) ListProjects(ctx context.Context) ([]model.Project, error) {
	var projects []model.Project
	if err := c.gw.Send(ctx, http.MethodGet, "/projects", nil, &projects).Err(); err != nil {
		return nil, fmt.Errorf("listing projects: %w", err)
	}
	return projects, nil
}

// GetProject fetches a single project.
func (c *Client) GetProject(ctx context.Context, id int) (*model.Project, error) {
	var p model.Project
	if err := c.gw.Send(ctx, http.MethodGet, projectPath(id), nil, &p).Err(); err != nil {
		return nil, fmt.Errorf("getting project %d: %w", id, err)
	}
	return &p, nil
}

// CreateProject creates a project managed by the caller.
func (c *Client) CreateProject(ctx context.Context, in model.ProjectInput) (*model.Project, error) {
	var p model.Project
	if err := c.gw.Send(ctx, http.MethodPost, "/projects", in, &p).Err(); err != nil {
		return nil, fmt.Errorf("creating project %q: %w", in.Title, err)
	}
	return &p, nil
}

// UpdateProject replaces a project's title, description and member list.
func (c *Client) UpdateProject(ctx context.Context, id int, in model.ProjectInput) error {
	if err := c.gw.Send(ctx, http.MethodPut, projectPath(id), in, nil).Err(); err != nil {
		return fmt.Errorf("updating project %d: %w", id, err)
	}
	return nil
}

// DeleteProject removes a project and its tasks.
func (c *Client) DeleteProject(ctx context.Context, id int) error {
	if err := c.gw.Send(ctx, http.MethodDelete, projectPath(id), nil, nil).Err(); err != nil {
		return fmt.Errorf("deleting project %d: %w", id, err)
	}
	return nil
}

// ListMembers returns the members of a project.
func (c *Client) ListMembers(ctx context.Context, projectID int) ([]model.Member, error) {
	var members []model.Member
	if err := c.gw.Send(ctx, http.MethodGet, projectPath(projectID, "members"), nil, &members).Err(); err != nil {
		return nil, fmt.Errorf("listing members of project %d: %w", projectID, err)
	}
	return members, nil
}

// Role returns the caller's role in a project, MANAGER or MEMBER. The
// remote answers in plain text; a JSON string is accepted as well.
func (c *Client) Role(ctx context.Context, projectID int) (string, error) {
	var role string
	out := c.gw.Send(ctx, http.MethodGet, projectPath(projectID, "role", "self"), nil, &role)
	if err := out.Err(); err != nil {
		return "", fmt.Errorf("getting role in project %d: %w", projectID, err)
	}
	if out.Kind == gateway.RawSuccess {
		role = out.Message
	}
	return strings.ToUpper(strings.TrimSpace(role)), nil
}

// ListComments returns a project's comments, pinned first and newest first
// within each group.
func (c *Client) ListComments(ctx context.Context, projectID int) ([]model.Comment, error) {
	var wire commentList
	if err := c.gw.Send(ctx, http.MethodGet, projectPath(projectID, "comments"), nil, &wire).Err(); err != nil {
		return nil, fmt.Errorf("listing comments of project %d: %w", projectID, err)
	}
	comments := make([]model.Comment, 0, len(wire))
	for _, w := range wire {
		comments = append(comments, w.toModel())
	}
	SortComments(comments)
	return comments, nil
}

// SortComments orders comments pinned first, then newest first.
func SortComments(comments []model.Comment) {
	sort.SliceStable(comments, func(i, j int) bool {
		if comments[i].Pinned != comments[j].Pinned {
			return comments[i].Pinned
		}
		return comments[i].CreatedAt.After(comments[j].CreatedAt)
	})
}

// AddComment posts a comment on a project.
func (c *Client) AddComment(ctx context.Context, projectID int, content string) error {
	body := map[string]string{"content": content}
	if err := c.gw.Send(ctx, http.MethodPost, projectPath(projectID, "comments"), body, nil).Err(); err != nil {
		return fmt.Errorf("adding comment to project %d: %w", projectID, err)
	}
	return nil
}

// DeleteComment removes a comment.
func (c *Client) DeleteComment(ctx context.Context, projectID, commentID int) error {
	path := projectPath(projectID, "comments", strconv.Itoa(commentID))
	if err := c.gw.Send(ctx, http.MethodDelete, path, nil, nil).Err(); err != nil {
		return fmt.Errorf("deleting comment %d: %w", commentID, err)
	}
	return nil
}

// TogglePin flips a comment's pinned flag.
func (c *Client) TogglePin(ctx context.Context, projectID, commentID int) error {
	path := projectPath(projectID, "comments", strconv.Itoa(commentID), "pin")
	if err := c.gw.Send(ctx, http.MethodPatch, path, nil, nil).Err(); err != nil {
		return fmt.Errorf("pinning comment %d: %w", commentID, err)
	}
	return nil
}

// Dashboard returns the caller's task counts.
func (c *Client) Dashboard(ctx context.Context) (*model.Dashboard, error) {
	var d model.Dashboard
	if err := c.gw.Send(ctx, http.MethodGet, "/dashboard", nil, &d).Err(); err != nil {
		return nil, fmt.Errorf("loading dashboard: %w", err)
	}
	return &d, nil
}

// ManagerDashboard returns counts across the projects the caller manages.
func (c *Client) ManagerDashboard(ctx context.Context) (*model.ManagerDashboard, error) {
	var d model.ManagerDashboard
	if err := c.gw.Send(ctx, http.MethodGet, "/dashboard/manager", nil, &d).Err(); err != nil {
		return nil, fmt.Errorf("loading manager dashboard: %w", err)
	}
	return &d, nil
}

// ListUsers returns every account except the caller's.
func (c *Client) ListUsers(ctx context.Context) ([]model.User, error) {
	var users []model.User
	if err := c.gw.Send(ctx, http.MethodGet, "/users", nil, &users).Err(); err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	return users, nil
}

// UserInput carries the fields of a new account.
type UserInput struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role,omitempty"`
}

// CreateUser creates an account. Requires the ADMIN role.
func (c *Client) CreateUser(ctx context.Context, in UserInput) error {
	if err := c.gw.Send(ctx, http.MethodPost, "/users", in, nil).Err(); err != nil {
		return fmt.Errorf("creating user %s: %w", in.Username, err)
	}
	return nil
}
