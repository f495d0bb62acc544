package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/valentinpelus/alertdesk/internal/app"
	"github.com/valentinpelus/alertdesk/internal/config"
	"github.com/valentinpelus/alertdesk/internal/logging"
	"github.com/valentinpelus/alertdesk/internal/store"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := viper.New()
	config.Bind(v)

	cmd := &cobra.Command{
		Use:           "alertdesk",
		Short:         "Relay Datto backup alerts to Slack and turn them into Freshservice tickets",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load(v)
			if err != nil {
				return err
			}
			return serve(cfg)
		},
	}

	cmd.PersistentFlags().String("port", "", "HTTP listen port (overrides PORT).")
	cmd.PersistentFlags().String("log-level", "", "Log level: debug|info|warn|error (overrides LOG_LEVEL).")
	_ = v.BindPFlag("port", cmd.PersistentFlags().Lookup("port"))
	_ = v.BindPFlag("log_level", cmd.PersistentFlags().Lookup("log-level"))

	cmd.AddCommand(newMigrateCmd(v))
	return cmd
}

func newMigrateCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the teams table and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(v)
			if err := logging.Setup(cfg.LogLevel, cfg.LogFormat); err != nil {
				return err
			}

			teams, err := store.NewTeamStore(cfg.DatabaseURL)
			if err != nil {
				log.WithError(err).Error("Failed to connect to database")
				return err
			}
			defer teams.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			if err := teams.EnsureSchema(ctx); err != nil {
				log.WithError(err).Error("Migration failed")
				return err
			}
			log.Info("Schema is up to date")
			return nil
		},
	}
}

// load reads and validates configuration, then configures logging
func load(v *viper.Viper) (*config.Config, error) {
	cfg := config.LoadConfig(v)
	if err := logging.Setup(cfg.LogLevel, cfg.LogFormat); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		log.WithError(err).Error("Please see README for required env vars")
		return nil, err
	}
	return cfg, nil
}

func serve(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize application
	application, err := app.New(ctx, cfg)
	if err != nil {
		log.WithError(err).Error("Failed to initialize application")
		return err
	}
	defer application.Close()

	// Log startup information
	application.LogStartupInfo()

	if err := application.Run(ctx); err != nil {
		log.WithError(err).Error("Server error")
		return err
	}
	log.Info("Stopped")
	return nil
}
