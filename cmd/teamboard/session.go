package main

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/nhle/teamboard/internal/app"
)

func loginCmd() *cobra.Command {
	var username, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the credential",
		RunE: func(cmd *cobra.Command, args []string) error {
			if username == "" || password == "" {
				form := huh.NewForm(huh.NewGroup(
					huh.NewInput().Title("Username").Value(&username),
					huh.NewInput().Title("Password").EchoMode(huh.EchoModePassword).Value(&password),
				))
				if err := form.Run(); err != nil {
					return err
				}
			}
			username = strings.TrimSpace(username)
			if username == "" || password == "" {
				return fmt.Errorf("username and password are required")
			}

			return withEnv(func(e *env) error {
				token, err := e.client.Login(cmd.Context(), username, password)
				if err != nil {
					return err
				}
				if err := e.guard.Login(token); err != nil {
					return err
				}
				if !e.cfg.Session.Keyring {
					fmt.Println(token)
					return nil
				}
				fmt.Printf("Logged in as %s at %s\n", username, e.cfg.Server.BaseURL)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "username")
	cmd.Flags().StringVarP(&password, "password", "p", "", "password (prompted when omitted)")
	return cmd
}

func logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored credential",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(func(e *env) error {
				if err := e.guard.Logout(); err != nil {
					return err
				}
				fmt.Println("Logged out.")
				return nil
			})
		},
	}
}

func whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(func(e *env) error {
				claims, err := e.guard.Claims()
				if err != nil {
					return err
				}
				if !e.guard.Valid() {
					return fmt.Errorf("session for %s expired; run teamboard login", claims.Username())
				}
				out := map[string]string{
					"username": claims.Username(),
					"role":     claims.Role,
					"server":   e.cfg.Server.BaseURL,
				}
				if claims.ExpiresAt != nil {
					out["expires"] = humanize.RelTime(claims.ExpiresAt.Time, time.Now(), "ago", "from now")
				}
				return printRecord(out, []string{"username", "role", "server", "expires"})
			})
		},
	}
}

func boardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "board",
		Short: "Open the interactive board",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(func(e *env) error {
				m := app.New(e.client, e.guard, *e.cfg, e.log)
				p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(cmd.Context()))
				_, err := p.Run()
				return err
			})
		},
	}
}
