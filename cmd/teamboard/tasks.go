package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/nhle/teamboard/internal/api"
	"github.com/nhle/teamboard/internal/board"
	"github.com/nhle/teamboard/internal/gateway"
	"github.com/nhle/teamboard/internal/model"
	"github.com/nhle/teamboard/internal/session"
	appsync "github.com/nhle/teamboard/internal/sync"
)

func tasksCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "tasks", Short: "List and change tasks"}
	cmd.AddCommand(tasksListCmd())
	cmd.AddCommand(tasksCreateCmd())
	cmd.AddCommand(tasksMoveCmd())
	cmd.AddCommand(tasksDeleteCmd())
	return cmd
}

func tasksListCmd() *cobra.Command {
	var projectID int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List a project's tasks, or your own without --project",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(func(e *env) error {
				if projectID == 0 {
					tasks, err := e.client.ListTasks(cmd.Context(), 0)
					if err != nil {
						return err
					}
					return printTasks(tasks)
				}
				b, err := loadBoard(cmd.Context(), e.client, projectID)
				if err != nil {
					return err
				}
				var tasks []model.Task
				for _, s := range model.Columns {
					tasks = append(tasks, b.Column(s)...)
				}
				return printTasks(tasks)
			})
		},
	}
	cmd.Flags().IntVar(&projectID, "project", 0, "project id")
	return cmd
}

func tasksCreateCmd() *cobra.Command {
	var (
		projectID                    int
		title, description, status   string
		deadline, assigneeName, tags string
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a task (project managers)",
		RunE: func(cmd *cobra.Command, args []string) error {
			in := model.TaskInput{
				Title:       title,
				Description: description,
				ProjectID:   projectID,
				Tags:        strings.TrimSpace(tags),
			}
			if status != "" {
				s, err := model.ParseStatus(status)
				if err != nil {
					return err
				}
				in.Status = s
			}
			if deadline != "" {
				d, err := api.ParseTimestamp(deadline)
				if err != nil {
					return fmt.Errorf("invalid --deadline: %w", err)
				}
				in.Deadline = &d
			}
			in = in.Normalize()

			return withEnv(func(e *env) error {
				ctx := cmd.Context()
				assignee, err := findMember(ctx, e.client, projectID, assigneeName)
				if err != nil {
					return err
				}
				in.AssignedToID = assignee.ID
				if err := in.Validate(); err != nil {
					return err
				}
				b, err := loadBoard(ctx, e.client, projectID)
				if err != nil {
					return err
				}
				coord := appsync.NewCoordinator(b, e.client, e.cfg.Server.Timeout(), e.log)
				run, _, err := coord.Create(in, assignee)
				if err != nil {
					return err
				}
				if err := settleNow(coord, run); err != nil {
					return err
				}
				// The created record replaces the provisional tail card.
				col := b.Column(in.Status)
				if last := col[len(col)-1]; last.ID > 0 {
					fmt.Printf("Created task %d in %s\n", last.ID, in.Status.Label())
					return nil
				}
				fmt.Printf("Created %q in %s\n", in.Title, in.Status.Label())
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&projectID, "project", 0, "project id")
	cmd.Flags().StringVar(&title, "title", "", "task title")
	cmd.Flags().StringVar(&description, "description", "", "description")
	cmd.Flags().StringVar(&status, "status", "", "TO_DO, IN_PROGRESS or DONE")
	cmd.Flags().StringVar(&deadline, "deadline", "", "deadline, e.g. 2026-05-01 17:00")
	cmd.Flags().StringVar(&assigneeName, "assignee", "", "username of a project member")
	cmd.Flags().StringVar(&tags, "tags", "", "comma separated tags")
	_ = cmd.MarkFlagRequired("project")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("assignee")
	return cmd
}

func tasksMoveCmd() *cobra.Command {
	var (
		projectID int
		to        string
		index     int
	)
	cmd := &cobra.Command{
		Use:   "move <task-id>",
		Short: "Move a task to a column and position",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid task id %q", args[0])
			}
			return withEnv(func(e *env) error {
				b, err := loadBoard(cmd.Context(), e.client, projectID)
				if err != nil {
					return err
				}
				_, from, fromIndex, ok := b.Find(id)
				if !ok {
					return fmt.Errorf("%w: task %d in project %d", board.ErrUnknownTask, id, projectID)
				}
				dest := from
				if to != "" {
					if dest, err = model.ParseStatus(to); err != nil {
						return err
					}
				}
				coord := appsync.NewCoordinator(b, e.client, e.cfg.Server.Timeout(), e.log)
				run, err := coord.Move(board.Move{
					TaskID:    id,
					From:      from,
					To:        dest,
					FromIndex: fromIndex,
					ToIndex:   moveTarget(b, from, dest, index),
				})
				if err != nil {
					return err
				}
				if run == nil {
					fmt.Println("Task is already there.")
					return nil
				}
				if err := settleNow(coord, run); err != nil {
					return err
				}
				_, status, pos, _ := b.Find(id)
				fmt.Printf("Moved task %d to %s at position %d\n", id, status.Label(), pos)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&projectID, "project", 0, "project id")
	cmd.Flags().StringVar(&to, "to", "", "destination column (default: current column)")
	cmd.Flags().IntVar(&index, "index", -1, "destination position (default: end of column)")
	_ = cmd.MarkFlagRequired("project")
	return cmd
}

func tasksDeleteCmd() *cobra.Command {
	var projectID int
	cmd := &cobra.Command{
		Use:   "delete <task-id>",
		Short: "Delete a task (project managers)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid task id %q", args[0])
			}
			return withEnv(func(e *env) error {
				b, err := loadBoard(cmd.Context(), e.client, projectID)
				if err != nil {
					return err
				}
				coord := appsync.NewCoordinator(b, e.client, e.cfg.Server.Timeout(), e.log)
				run, err := coord.Delete(id)
				if err != nil {
					return err
				}
				if err := settleNow(coord, run); err != nil {
					return err
				}
				fmt.Printf("Deleted task %d\n", id)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&projectID, "project", 0, "project id")
	_ = cmd.MarkFlagRequired("project")
	return cmd
}

// moveTarget resolves the destination index of a move. A negative index
// means the end of dest, which within the same column is the last slot.
func moveTarget(b *board.Board, from, dest model.Status, index int) int {
	if index >= 0 {
		return index
	}
	target := len(b.Column(dest))
	if dest == from {
		target--
	}
	return target
}

func loadBoard(ctx context.Context, c *api.Client, projectID int) (*board.Board, error) {
	tasks, err := c.ListTasks(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return board.New(projectID, tasks), nil
}

func findMember(ctx context.Context, c *api.Client, projectID int, username string) (*model.Assignee, error) {
	members, err := c.ListMembers(ctx, projectID)
	if err != nil {
		return nil, err
	}
	for _, m := range members {
		if strings.EqualFold(m.Username, username) {
			return &model.Assignee{ID: m.UserID, Username: m.Username}, nil
		}
	}
	return nil, fmt.Errorf("%s is not a member of project %d", username, projectID)
}

// settleNow runs a persistence command on the calling goroutine and
// resolves it, turning a rollback into an error.
func settleNow(coord *appsync.Coordinator, run tea.Cmd) error {
	msg, ok := run().(appsync.SettledMsg)
	if !ok {
		return errors.New("unexpected completion")
	}
	s := coord.Settle(msg)
	if s.Phase != appsync.RolledBack {
		return nil
	}
	if msg.Outcome.Kind == gateway.Unauthenticated {
		return session.ErrReauthenticate
	}
	if s.Notice != "" {
		return errors.New(s.Notice)
	}
	return msg.Outcome.Err()
}
