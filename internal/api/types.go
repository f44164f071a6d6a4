package api

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"github.com/nhle/teamboard/internal/model"
)

// DeadlineLayout is the zone-less timestamp format the service exchanges.
const DeadlineLayout = "2006-01-02T15:04:05"

var acceptedLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	DeadlineLayout,
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

// Timestamp decodes the service's timestamps: zone-less local date-times,
// RFC 3339, or null.
type Timestamp struct {
	time.Time
}

// ParseTimestamp parses any of the accepted layouts. Zone-less values are
// read in the local zone.
func ParseTimestamp(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range acceptedLayouts {
		if t, err := time.ParseInLocation(layout, raw, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", raw)
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}
	raw, err := strconv.Unquote(string(data))
	if err != nil {
		return fmt.Errorf("timestamp must be a string: %w", err)
	}
	if raw == "" {
		t.Time = time.Time{}
		return nil
	}
	parsed, err := ParseTimestamp(raw)
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return []byte(strconv.Quote(t.In(time.Local).Format(DeadlineLayout))), nil
}

func (t *Timestamp) ptr() *time.Time {
	if t == nil || t.IsZero() {
		return nil
	}
	v := t.Time
	return &v
}

func stamp(t *time.Time) *Timestamp {
	if t == nil {
		return nil
	}
	return &Timestamp{Time: *t}
}

type idRef struct {
	ID int `json:"id"`
}

type userRef struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
}

// taskWire is a task as the service returns it. Depending on the endpoint
// the project arrives as projectId or as an embedded project object.
type taskWire struct {
	ID          int        `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      string     `json:"status"`
	Deadline    *Timestamp `json:"deadline"`
	Tags        string     `json:"tags"`
	Position    *int       `json:"position"`
	ProjectID   int        `json:"projectId"`
	Project     *idRef     `json:"project"`
	AssignedTo  *userRef   `json:"assignedTo"`
}

func (w taskWire) toModel() model.Task {
	t := model.Task{
		ID:          w.ID,
		Title:       w.Title,
		Description: w.Description,
		Status:      model.Status(w.Status),
		Deadline:    w.Deadline.ptr(),
		Tags:        w.Tags,
		ProjectID:   w.ProjectID,
	}
	if w.Position != nil {
		t.Position = *w.Position
	}
	if t.ProjectID == 0 && w.Project != nil {
		t.ProjectID = w.Project.ID
	}
	if w.AssignedTo != nil {
		t.Assignee = &model.Assignee{ID: w.AssignedTo.ID, Username: w.AssignedTo.Username}
	}
	return t
}

// taskUpdate is the PUT /tasks/{id} body.
type taskUpdate struct {
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	Status       string     `json:"status"`
	Deadline     *Timestamp `json:"deadline"`
	Tags         string     `json:"tags,omitempty"`
	ProjectID    int        `json:"projectId"`
	AssignedToID *int       `json:"assignedToId,omitempty"`
	Position     int        `json:"position"`
}

func updateBody(t model.Task) taskUpdate {
	body := taskUpdate{
		Title:       t.Title,
		Description: t.Description,
		Status:      string(t.Status),
		Deadline:    stamp(t.Deadline),
		Tags:        t.Tags,
		ProjectID:   t.ProjectID,
		Position:    t.Position,
	}
	if id := t.AssigneeID(); id != 0 {
		body.AssignedToID = &id
	}
	return body
}

// taskCreate is the POST /tasks body.
type taskCreate struct {
	Title        string     `json:"title"`
	Description  string     `json:"description,omitempty"`
	Deadline     *Timestamp `json:"deadline,omitempty"`
	Status       string     `json:"status"`
	Tags         string     `json:"tags,omitempty"`
	ProjectID    int        `json:"projectId"`
	AssignedToID int        `json:"assignedToId"`
}

func createBody(in model.TaskInput) taskCreate {
	return taskCreate{
		Title:        in.Title,
		Description:  in.Description,
		Deadline:     stamp(in.Deadline),
		Status:       string(in.Status),
		Tags:         in.Tags,
		ProjectID:    in.ProjectID,
		AssignedToID: in.AssignedToID,
	}
}

type commentWire struct {
	ID             int        `json:"id"`
	Content        string     `json:"content"`
	AuthorUsername string     `json:"authorUsername"`
	CreatedAt      *Timestamp `json:"createdAt"`
	Pinned         bool       `json:"pinned"`
}

func (w commentWire) toModel() model.Comment {
	c := model.Comment{
		ID:             w.ID,
		Content:        w.Content,
		AuthorUsername: w.AuthorUsername,
		Pinned:         w.Pinned,
	}
	if w.CreatedAt != nil {
		c.CreatedAt = w.CreatedAt.Time
	}
	return c
}

// commentList accepts both list shapes the service uses: a flat array, or
// an object splitting pinned and unpinned comments.
type commentList []commentWire

func (l *commentList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var flat []commentWire
		if err := sonic.ConfigStd.Unmarshal(data, &flat); err != nil {
			return err
		}
		*l = flat
		return nil
	}
	var split struct {
		Pinned   []commentWire `json:"pinned"`
		Unpinned []commentWire `json:"unpinned"`
	}
	if err := sonic.ConfigStd.Unmarshal(data, &split); err != nil {
		return err
	}
	for i := range split.Pinned {
		split.Pinned[i].Pinned = true
	}
	*l = append(split.Pinned, split.Unpinned...)
	return nil
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}
