package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/teamboard/internal/gateway"
	"github.com/nhle/teamboard/internal/model"
)

type allowAll struct{}

func (allowAll) Authorize(req *http.Request) error {
	req.Header.Set("Authorization", "Bearer t")
	return nil
}

func newTestClient(t *testing.T, mux *http.ServeMux) *Client {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	log := logrus.New()
	log.SetOutput(io.Discard)
	return New(gateway.New(srv.URL, allowAll{}, 5*time.Second, log))
}

func TestListTasks_DecodesWireShapes(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /tasks", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "4", r.URL.Query().Get("projectId"))
		_, _ = io.WriteString(w, `[
			{"id":1,"title":"a","status":"TO_DO","position":0,"deadline":"2026-03-01T09:30:00",
			 "project":{"id":4},"assignedTo":{"id":2,"username":"ana"}},
			{"id":2,"title":"b","status":"DONE","position":1,"deadline":null,"projectId":4},
			{"id":3,"title":"c","status":"IN_PROGRESS","deadline":"2026-03-01T09:30:00Z"}
		]`)
	})
	c := newTestClient(t, mux)

	tasks, err := c.ListTasks(context.Background(), 4)
	require.NoError(t, err)
	require.Len(t, tasks, 3)

	assert.Equal(t, 4, tasks[0].ProjectID)
	assert.Equal(t, "ana", tasks[0].AssigneeName())
	require.NotNil(t, tasks[0].Deadline)
	assert.Equal(t, 9, tasks[0].Deadline.Hour())
	assert.Equal(t, time.Local, tasks[0].Deadline.Location())

	assert.Nil(t, tasks[1].Deadline)
	assert.Equal(t, model.StatusDone, tasks[1].Status)

	assert.Equal(t, 4, tasks[2].ProjectID)
	require.NotNil(t, tasks[2].Deadline)
	assert.True(t, tasks[2].Deadline.Equal(time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)))
}

func TestUpdateTask_SendsFullBody(t *testing.T) {
	deadline := time.Date(2026, 5, 2, 18, 0, 0, 0, time.Local)
	mux := http.NewServeMux()
	mux.HandleFunc("PUT /tasks/9", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{
			"title":"t","description":"d","status":"IN_PROGRESS",
			"deadline":"2026-05-02T18:00:00","tags":"api,go",
			"projectId":4,"assignedToId":2,"position":3
		}`, string(body))
		_, _ = io.WriteString(w, `{"id":9,"title":"t","status":"IN_PROGRESS","position":3,"projectId":4}`)
	})
	c := newTestClient(t, mux)

	got, out := c.UpdateTask(context.Background(), model.Task{
		ID: 9, Title: "t", Description: "d", Status: model.StatusInProgress,
		Deadline: &deadline, Tags: "api,go", ProjectID: 4, Position: 3,
		Assignee: &model.Assignee{ID: 2, Username: "ana"},
	})
	assert.Equal(t, gateway.DecodedSuccess, out.Kind)
	require.NotNil(t, got)
	assert.Equal(t, 9, got.ID)
}

func TestDeleteTask_PlainTextIsSuccess(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("DELETE /tasks/5", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "Task deleted.")
	})
	c := newTestClient(t, mux)

	out := c.DeleteTask(context.Background(), 5)
	assert.True(t, out.OK())
	assert.Equal(t, gateway.RawSuccess, out.Kind)
}

func TestCreateTask_RejectionKeepsMessage(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /tasks", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":"WIP limit reached"}`)
	})
	c := newTestClient(t, mux)

	got, out := c.CreateTask(context.Background(), model.TaskInput{Title: "x", Status: model.StatusInProgress, ProjectID: 1, AssignedToID: 2})
	assert.Nil(t, got)
	assert.Equal(t, gateway.Failure, out.Kind)
	assert.Equal(t, "WIP limit reached", out.Message)
}

func TestRole_PlainTextAndJSON(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /projects/1/role/self", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "MANAGER")
	})
	mux.HandleFunc("GET /projects/2/role/self", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `"member"`)
	})
	mux.HandleFunc("GET /projects/3/role/self", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = io.WriteString(w, "Not a member")
	})
	c := newTestClient(t, mux)

	role, err := c.Role(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, model.ProjectRoleManager, role)

	role, err = c.Role(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, model.ProjectRoleMember, role)

	_, err = c.Role(context.Background(), 3)
	assert.True(t, gateway.IsStatus(err, http.StatusForbidden))
}

func TestListComments_PinnedFirstNewestFirst(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /projects/1/comments", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[
			{"id":1,"content":"old","authorUsername":"ana","createdAt":"2026-01-01T10:00:00","pinned":false},
			{"id":2,"content":"pinned","authorUsername":"bo","createdAt":"2025-12-01T10:00:00","pinned":true},
			{"id":3,"content":"new","authorUsername":"ana","createdAt":"2026-02-01T10:00:00.123456","pinned":false}
		]`)
	})
	c := newTestClient(t, mux)

	comments, err := c.ListComments(context.Background(), 1)
	require.NoError(t, err)

	var order []int
	for _, cm := range comments {
		order = append(order, cm.ID)
	}
	assert.Equal(t, []int{2, 3, 1}, order)
}

func TestLogin(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login", func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if req.Username != "ana" || req.Password != "pw" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"error":"wrong password"}`)
			return
		}
		_, _ = io.WriteString(w, `{"token":"abc.def.ghi"}`)
	})
	c := newTestClient(t, mux)

	tok, err := c.Login(context.Background(), "ana", "pw")
	require.NoError(t, err)
	assert.Equal(t, "abc.def.ghi", tok)

	_, err = c.Login(context.Background(), "ana", "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wrong password")
}

func TestDashboard(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /dashboard", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"projectCount":2,"totalTasks":5,"todoCount":1,"inProgressCount":2,"doneCount":2,"lateCount":1}`)
	})
	c := newTestClient(t, mux)

	d, err := c.Dashboard(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.Dashboard{ProjectCount: 2, TotalTasks: 5, TodoCount: 1, InProgressCount: 2, DoneCount: 2, LateCount: 1}, *d)
}

func TestTimestamp_RoundTripsZoneless(t *testing.T) {
	var ts Timestamp
	require.NoError(t, ts.UnmarshalJSON([]byte(`"2026-07-04T08:15:00"`)))

	out, err := ts.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"2026-07-04T08:15:00"`, string(out))

	require.Error(t, ts.UnmarshalJSON([]byte(`"yesterday"`)))
}

func TestListComments_SplitShape(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /projects/1/comments", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{
			"pinned":[{"id":5,"content":"read me","authorUsername":"bo","createdAt":"2025-01-01T08:00:00"}],
			"unpinned":[{"id":6,"content":"hi","authorUsername":"ana","createdAt":"2026-01-01T08:00:00"}]
		}`)
	})
	c := newTestClient(t, mux)

	comments, err := c.ListComments(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, comments, 2)
	assert.Equal(t, 5, comments[0].ID)
	assert.True(t, comments[0].Pinned)
	assert.False(t, comments[1].Pinned)
}
