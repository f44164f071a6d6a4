package model

import "time"

// Project roles as reported by /projects/{id}/role/self.
const (
	ProjectRoleManager = "MANAGER"
	ProjectRoleMember  = "MEMBER"
)

// Global account roles carried in the credential's role claim.
const (
	RoleAdmin   = "ADMIN"
	RoleManager = "MANAGER"
	RoleUser    = "USER"
)

// Project is a board the current user can open.
type Project struct {
	ID          int    `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`

	// Role is the caller's role in the project, when the listing provides it.
	Role string `json:"role,omitempty"`
}

// IsManager reports whether the caller manages the project.
func (p Project) IsManager() bool { return p.Role == ProjectRoleManager }

// ProjectInput carries the editable project fields.
type ProjectInput struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	MemberIDs   []int  `json:"memberIds,omitempty"`
}

// Member is a user participating in a project.
type Member struct {
	UserID   int    `json:"userId"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

// Comment is a message on a project's discussion thread.
type Comment struct {
	ID             int       `json:"id"`
	Content        string    `json:"content"`
	AuthorUsername string    `json:"authorUsername"`
	CreatedAt      time.Time `json:"createdAt"`
	Pinned         bool      `json:"pinned"`
}

// User is an account as listed by the admin endpoints.
type User struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
	Role     string `json:"role"`
}

// Dashboard summarizes the caller's tasks across projects.
type Dashboard struct {
	ProjectCount    int `json:"projectCount"`
	TotalTasks      int `json:"totalTasks"`
	TodoCount       int `json:"todoCount"`
	InProgressCount int `json:"inProgressCount"`
	DoneCount       int `json:"doneCount"`
	LateCount       int `json:"lateCount"`
}

// ManagerDashboard summarizes the projects the caller manages.
type ManagerDashboard struct {
	ManagedProjects int `json:"managedProjects"`
	TotalMembers    int `json:"totalMembers"`
	TotalTasks      int `json:"totalTasks"`
	TodoCount       int `json:"todoCount"`
	InProgressCount int `json:"inProgressCount"`
	DoneCount       int `json:"doneCount"`
	LateCount       int `json:"lateCount"`
}
