package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nhle/teamboard/internal/api"
	"github.com/nhle/teamboard/internal/model"
)

func projectsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "projects",
		Short: "List your projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(func(e *env) error {
				projects, err := e.client.ListProjects(cmd.Context())
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(projects)
				}
				tw := newTable("ID", "Title", "Role", "Description")
				for _, p := range projects {
					tw.AppendRow(table.Row{p.ID, p.Title, p.Role, p.Description})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.AddCommand(projectMembersCmd())
	return cmd
}

func projectMembersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "members <project-id>",
		Short: "List the members of a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid project id %q", args[0])
			}
			return withEnv(func(e *env) error {
				members, err := e.client.ListMembers(cmd.Context(), id)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(members)
				}
				tw := newTable("User ID", "Username", "Role")
				for _, m := range members {
					tw.AppendRow(table.Row{m.UserID, m.Username, m.Role})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func dashboardCmd() *cobra.Command {
	var manager bool
	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Show task counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(func(e *env) error {
				ctx := cmd.Context()
				if manager {
					d, err := e.client.ManagerDashboard(ctx)
					if err != nil {
						return err
					}
					if viper.GetBool("json") {
						return printJSON(d)
					}
					return printCounts([][2]any{
						{"Managed projects", d.ManagedProjects},
						{"Members", d.TotalMembers},
						{"Tasks", d.TotalTasks},
						{model.StatusTodo.Label(), d.TodoCount},
						{model.StatusInProgress.Label(), d.InProgressCount},
						{model.StatusDone.Label(), d.DoneCount},
						{model.StatusLate.Label(), d.LateCount},
					})
				}
				d, err := e.client.Dashboard(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(d)
				}
				return printCounts([][2]any{
					{"Projects", d.ProjectCount},
					{"Tasks", d.TotalTasks},
					{model.StatusTodo.Label(), d.TodoCount},
					{model.StatusInProgress.Label(), d.InProgressCount},
					{model.StatusDone.Label(), d.DoneCount},
					{model.StatusLate.Label(), d.LateCount},
				})
			})
		},
	}
	cmd.Flags().BoolVar(&manager, "manager", false, "counts across the projects you manage")
	return cmd
}

func printCounts(rows [][2]any) error {
	tw := newTable("", "Count")
	for _, r := range rows {
		tw.AppendRow(table.Row{r[0], humanize.Comma(int64(r[1].(int)))})
	}
	tw.Render()
	return nil
}

func commentsCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "comments", Short: "Read and post project comments"}
	cmd.AddCommand(commentsListCmd())
	cmd.AddCommand(commentsAddCmd())
	return cmd
}

func commentsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <project-id>",
		Short: "List a project's comments, pinned first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid project id %q", args[0])
			}
			return withEnv(func(e *env) error {
				comments, err := e.client.ListComments(cmd.Context(), id)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(comments)
				}
				now := time.Now()
				tw := newTable("ID", "", "Author", "When", "Comment")
				for _, c := range comments {
					pin := ""
					if c.Pinned {
						pin = "📌"
					}
					tw.AppendRow(table.Row{c.ID, pin, c.AuthorUsername, humanize.RelTime(c.CreatedAt, now, "ago", "from now"), c.Content})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func commentsAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <project-id> <text>",
		Short: "Post a comment",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid project id %q", args[0])
			}
			return withEnv(func(e *env) error {
				if err := e.client.AddComment(cmd.Context(), id, args[1]); err != nil {
					return err
				}
				fmt.Println("Comment posted.")
				return nil
			})
		},
	}
}

func usersCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "users", Short: "Manage accounts (admins)"}
	cmd.AddCommand(usersListCmd())
	cmd.AddCommand(usersCreateCmd())
	return cmd
}

func usersListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(func(e *env) error {
				users, err := e.client.ListUsers(cmd.Context())
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(users)
				}
				tw := newTable("ID", "Username", "Email", "Role")
				for _, u := range users {
					tw.AppendRow(table.Row{u.ID, u.Username, u.Email, u.Role})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func usersCreateCmd() *cobra.Command {
	var in api.UserInput
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an account",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(func(e *env) error {
				if err := e.client.CreateUser(cmd.Context(), in); err != nil {
					return err
				}
				fmt.Printf("Created user %s\n", in.Username)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&in.Username, "username", "", "username")
	cmd.Flags().StringVar(&in.Password, "password", "", "initial password")
	cmd.Flags().StringVar(&in.Role, "role", model.RoleUser, "USER, MANAGER or ADMIN")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}
