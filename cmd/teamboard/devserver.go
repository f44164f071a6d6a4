package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nhle/teamboard/internal/devserver"
	"github.com/nhle/teamboard/internal/logging"
	"github.com/nhle/teamboard/internal/store"
)

func devserverCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "devserver",
		Short: "Run a local task service backed by SQLite",
		Long: `devserver serves the task service API from a local SQLite database so the
client can be tried without a real deployment. On an empty database it loads
the seed file, or creates an admin/admin account when none is given.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			dc := cfg.DevServer

			// The server logs to stderr unless --log-file is given.
			logCfg := cfg.Log
			logCfg.File, _ = cmd.Flags().GetString("log-file")
			log, closer, err := logging.New(logCfg, logging.JSON, os.Stderr)
			if err != nil {
				return err
			}
			defer closer.Close()

			if err := os.MkdirAll(filepath.Dir(dc.DBPath), 0o755); err != nil {
				return fmt.Errorf("creating database directory: %w", err)
			}
			st, err := store.NewSQLiteStore(dc.DBPath)
			if err != nil {
				return err
			}
			defer st.Close()

			srv, err := devserver.New(devserver.Config{
				Store:    st,
				Secret:   dc.JWTSecret,
				TokenTTL: time.Duration(dc.TokenTTLMin) * time.Minute,
				Logger:   log,
			})
			if err != nil {
				return err
			}

			var seed *devserver.Seed
			if dc.SeedFile != "" {
				if seed, err = devserver.LoadSeed(dc.SeedFile); err != nil {
					return err
				}
			}
			if err := srv.Apply(cmd.Context(), seed); err != nil {
				return err
			}

			fmt.Fprintf(os.Stderr, "Serving the task service on %s (database %s)\n", dc.Addr, dc.DBPath)
			return srv.ListenAndServe(cmd.Context(), dc.Addr)
		},
	}
	flags := cmd.Flags()
	flags.String("addr", "", "listen address (default :8080)")
	flags.String("db", "", "SQLite database path")
	flags.String("seed", "", "YAML seed file applied to an empty database")
	flags.String("jwt-secret", "", "HS256 signing secret")
	flags.String("log-file", "", "write logs to this file instead of stderr")
	_ = viper.BindPFlag("devserver.addr", flags.Lookup("addr"))
	_ = viper.BindPFlag("devserver.db_path", flags.Lookup("db"))
	_ = viper.BindPFlag("devserver.seed_file", flags.Lookup("seed"))
	_ = viper.BindPFlag("devserver.jwt_secret", flags.Lookup("jwt-secret"))
	return cmd
}
