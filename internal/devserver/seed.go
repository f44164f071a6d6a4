package devserver

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/nhle/teamboard/internal/api"
	"github.com/nhle/teamboard/internal/model"
	"github.com/nhle/teamboard/internal/store"
)

// Seed describes demo data loaded into an empty database.
type Seed struct {
	Users    []SeedUser    `yaml:"users"`
	Projects []SeedProject `yaml:"projects"`
}

// SeedUser is an account. Role defaults to USER.
type SeedUser struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Email    string `yaml:"email"`
	Role     string `yaml:"role"`
}

// SeedProject is a project with its board and discussion.
type SeedProject struct {
	Title       string        `yaml:"title"`
	Description string        `yaml:"description"`
	Manager     string        `yaml:"manager"`
	Members     []string      `yaml:"members"`
	Tasks       []SeedTask    `yaml:"tasks"`
	Comments    []SeedComment `yaml:"comments"`
}

// SeedTask is a board item. Deadline accepts the service's timestamp
// layouts.
type SeedTask struct {
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	Status      string `yaml:"status"`
	Deadline    string `yaml:"deadline"`
	Tags        string `yaml:"tags"`
	Assignee    string `yaml:"assignee"`
}

// SeedComment is a message on the project thread.
type SeedComment struct {
	Author  string `yaml:"author"`
	Content string `yaml:"content"`
	Pinned  bool   `yaml:"pinned"`
}

// defaultSeed bootstraps an empty database when no seed file is given.
var defaultSeed = Seed{
	Users: []SeedUser{{Username: "admin", Password: "admin", Role: model.RoleAdmin}},
}

// LoadSeed parses a YAML seed file.
func LoadSeed(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading seed %s: %w", path, err)
	}
	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("invalid seed yaml: %w", err)
	}
	return &seed, nil
}

// Apply loads seed into the store unless the store already has users.
// A nil seed applies the default admin account.
func (s *Server) Apply(ctx context.Context, seed *Seed) error {
	existing, err := s.store.ListUsers(ctx, 0)
	if err != nil {
		return fmt.Errorf("checking existing users: %w", err)
	}
	if len(existing) > 0 {
		s.log.WithField("users", len(existing)).Debug("database already seeded")
		return nil
	}
	if seed == nil {
		s.log.Warn("no seed file given, creating default admin account (admin/admin)")
		seed = &defaultSeed
	}

	ids := make(map[string]int, len(seed.Users))
	for _, su := range seed.Users {
		hash, err := s.HashPassword(su.Password)
		if err != nil {
			return fmt.Errorf("seeding user %s: %w", su.Username, err)
		}
		u, err := s.store.CreateUser(ctx, store.UserRecord{
			User:         model.User{Username: su.Username, Email: su.Email, Role: su.Role},
			PasswordHash: hash,
		})
		if err != nil {
			return fmt.Errorf("seeding user %s: %w", su.Username, err)
		}
		ids[u.Username] = u.ID
	}

	lookup := func(username string) (int, error) {
		id, ok := ids[username]
		if !ok {
			return 0, fmt.Errorf("unknown seed user %q", username)
		}
		return id, nil
	}

	for _, sp := range seed.Projects {
		if err := s.applyProject(ctx, sp, lookup); err != nil {
			return fmt.Errorf("seeding project %s: %w", sp.Title, err)
		}
	}

	s.log.WithField("users", len(seed.Users)).
		WithField("projects", len(seed.Projects)).
		Info("database seeded")
	return nil
}

func (s *Server) applyProject(ctx context.Context, sp SeedProject, lookup func(string) (int, error)) error {
	managerID, err := lookup(sp.Manager)
	if err != nil {
		return err
	}
	memberIDs := make([]int, 0, len(sp.Members))
	for _, m := range sp.Members {
		id, err := lookup(m)
		if err != nil {
			return err
		}
		memberIDs = append(memberIDs, id)
	}

	p, err := s.store.CreateProject(ctx, model.ProjectInput{
		Title:       sp.Title,
		Description: sp.Description,
		MemberIDs:   memberIDs,
	}, managerID)
	if err != nil {
		return err
	}

	for _, st := range sp.Tasks {
		in := model.TaskInput{
			Title:       st.Title,
			Description: st.Description,
			Tags:        st.Tags,
			ProjectID:   p.ID,
		}
		if st.Status != "" {
			if in.Status, err = model.ParseStatus(st.Status); err != nil {
				return err
			}
		}
		if st.Deadline != "" {
			d, err := api.ParseTimestamp(st.Deadline)
			if err != nil {
				return err
			}
			in.Deadline = &d
		}
		assignee := st.Assignee
		if assignee == "" {
			assignee = sp.Manager
		}
		if in.AssignedToID, err = lookup(assignee); err != nil {
			return err
		}
		if _, err := s.store.CreateTask(ctx, in); err != nil {
			return fmt.Errorf("task %q: %w", st.Title, err)
		}
	}

	for _, sc := range sp.Comments {
		authorID, err := lookup(sc.Author)
		if err != nil {
			return err
		}
		c, err := s.store.AddComment(ctx, p.ID, authorID, sc.Content)
		if err != nil {
			return err
		}
		if sc.Pinned {
			if _, err := s.store.TogglePin(ctx, p.ID, c.ID); err != nil {
				return err
			}
		}
	}
	return nil
}
