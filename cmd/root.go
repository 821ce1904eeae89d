// Package cmd provides the command-line interface for boardsync.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/danielolaszy/boardsync/internal/api"
	"github.com/danielolaszy/boardsync/internal/config"
	"github.com/danielolaszy/boardsync/internal/logging"
	"github.com/danielolaszy/boardsync/internal/store"
	"github.com/spf13/cobra"
)

// appConfig is loaded once per invocation before any subcommand runs.
var appConfig *config.Config

var rootCmd = &cobra.Command{
	Use:   "boardsync",
	Short: "Boardsync drives a TODO-file kanban board from the command line",
	Long: `Boardsync is a CLI client for the kanban board server that manages
projects backed by todo.md files. It lists projects and tickets, moves
tickets between stages, creates and deletes tickets, follows the server's
change stream and hands tickets to the automation agent.

Configuration is read from BOARDSYNC_* environment variables, an optional
config file and the flags below, in increasing precedence.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		configFile, err := cmd.Flags().GetString("config")
		if err != nil {
			return err
		}

		apiURL, err := cmd.Flags().GetString("api-url")
		if err != nil {
			return err
		}

		logLevel, err := cmd.Flags().GetString("log-level")
		if err != nil {
			return err
		}

		cfg, err := config.LoadConfig(config.Options{
			ConfigFile: configFile,
			APIURL:     apiURL,
			LogLevel:   logLevel,
		})
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		logging.SetupLogger(cmd.ErrOrStderr(), logging.LogLevel(cfg.Logging.Level))
		logging.Debug("loaded configuration",
			"api_url", cfg.API.URL,
			"events_url", cfg.API.EventsURL,
			"timeout", cfg.API.Timeout)

		appConfig = cfg
		return nil
	},
}

// Execute runs the root command until it finishes or the process is
// interrupted.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Config file (YAML, TOML or JSON)")
	rootCmd.PersistentFlags().String("api-url", "", "Board server API root (default http://127.0.0.1:9999/api)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn or error")
}

// newClient creates a REST client from the loaded configuration.
func newClient() (*api.Client, error) {
	client, err := api.NewClient(appConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize api client: %w", err)
	}
	return client, nil
}

// loadProject creates a ticket store with projectID active and its tickets
// loaded.
func loadProject(ctx context.Context, client store.TicketAPI, projectID string) (*store.TicketStore, error) {
	s := store.New(client)
	if err := s.Fetch(ctx, projectID); err != nil {
		return nil, err
	}

	logging.Info("loaded project",
		"project_id", projectID,
		"tickets", s.Total())
	return s, nil
}

// requireTickets fails unless every id is held by s. Store operations treat
// unknown ids as no-ops, so the CLI checks up front to report them.
func requireTickets(s *store.TicketStore, ids []string) error {
	for _, id := range ids {
		if _, ok := s.Ticket(id); !ok {
			return fmt.Errorf("ticket %s not found in project %s", id, s.ProjectID())
		}
	}
	return nil
}
