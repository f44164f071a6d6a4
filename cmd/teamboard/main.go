// Command teamboard is a terminal client for the team task service.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nhle/teamboard/internal/api"
	"github.com/nhle/teamboard/internal/credential"
	"github.com/nhle/teamboard/internal/gateway"
	"github.com/nhle/teamboard/internal/logging"
	"github.com/nhle/teamboard/internal/model"
	"github.com/nhle/teamboard/internal/session"
)

var rootCmd = &cobra.Command{
	Use:   "teamboard",
	Short: "Team task board client",
	Long: `teamboard talks to a team task service: sign in, browse your projects and
move tasks across the TO_DO, IN_PROGRESS and DONE columns.

Run "teamboard board" for the interactive board, or use the subcommands for
scripting. "teamboard devserver" starts a local service to try it against.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if errors.Is(err, session.ErrReauthenticate) {
			fmt.Fprintln(os.Stderr, "error: not logged in or session expired; run teamboard login")
		} else {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		os.Exit(1)
	}
}

func initConfig() {
	if path := viper.GetString("config"); path != "" {
		viper.SetConfigFile(path)
	} else {
		viper.SetConfigFile(model.DefaultConfigPath())
	}
	viper.SetConfigType("yaml")
	viper.SetEnvPrefix("TEAMBOARD")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()
	model.SetDefaults(viper.GetViper())

	// A missing file leaves the defaults in place.
	_ = viper.ReadInConfig()
}

func addPersistentFlags() {
	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "config file (default ~/.config/teamboard/config.yaml)")
	flags.String("server", "", "task service base URL")
	flags.Bool("json", false, "output JSON")
	flags.Bool("no-keyring", false, "keep the credential in memory only")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	_ = viper.BindPFlag("config", flags.Lookup("config"))
	_ = viper.BindPFlag("server.base_url", flags.Lookup("server"))
	_ = viper.BindPFlag("json", flags.Lookup("json"))
	_ = viper.BindPFlag("no_keyring", flags.Lookup("no-keyring"))
	_ = viper.BindPFlag("log.level", flags.Lookup("log-level"))
}

func registerCommands() {
	rootCmd.AddCommand(loginCmd())
	rootCmd.AddCommand(logoutCmd())
	rootCmd.AddCommand(whoamiCmd())
	rootCmd.AddCommand(boardCmd())
	rootCmd.AddCommand(projectsCmd())
	rootCmd.AddCommand(tasksCmd())
	rootCmd.AddCommand(dashboardCmd())
	rootCmd.AddCommand(commentsCmd())
	rootCmd.AddCommand(usersCmd())
	rootCmd.AddCommand(devserverCmd())
}

// loadConfig decodes the merged file, environment and flag settings.
func loadConfig() (*model.AppConfig, error) {
	cfg, err := model.Decode(viper.GetViper())
	if err != nil {
		return nil, err
	}
	if viper.GetBool("no_keyring") {
		cfg.Session.Keyring = false
	}
	return cfg, nil
}

// env bundles what every remote command needs.
type env struct {
	cfg    *model.AppConfig
	log    *logrus.Logger
	guard  *session.Guard
	client *api.Client
	closer io.Closer
}

func (e *env) Close() error { return e.closer.Close() }

// openEnv builds the logger, credential store, guard and API client.
func openEnv() (*env, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	log, closer, err := logging.New(cfg.Log, logging.Text, nil)
	if err != nil {
		return nil, err
	}

	store, err := openStore(cfg)
	if err != nil {
		closer.Close()
		return nil, err
	}
	guard := session.NewGuard(store, log)
	gw := gateway.New(cfg.Server.BaseURL, guard, cfg.Server.Timeout(), log)
	return &env{
		cfg:    cfg,
		log:    log,
		guard:  guard,
		client: api.New(gw),
		closer: closer,
	}, nil
}

// openStore returns the keyring store, or a memory store seeded from
// TEAMBOARD_TOKEN when the keyring is disabled.
func openStore(cfg *model.AppConfig) (credential.Store, error) {
	if !cfg.Session.Keyring {
		return credential.NewMemoryStore(os.Getenv("TEAMBOARD_TOKEN")), nil
	}
	return credential.NewKeyringStore(model.ConfigDir())
}

// withEnv runs fn with an open env and closes it afterwards.
func withEnv(fn func(e *env) error) error {
	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.Close()
	return fn(e)
}
