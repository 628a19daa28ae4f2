package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	brokeradapter "github.com/devlinkhq/devlink/internal/adapter/driven/broker"
	githubadapter "github.com/devlinkhq/devlink/internal/adapter/driven/github"
	slackadapter "github.com/devlinkhq/devlink/internal/adapter/driven/slack"
	sqliteadapter "github.com/devlinkhq/devlink/internal/adapter/driven/sqlite"
	"github.com/devlinkhq/devlink/internal/adapter/driving/mcptools"
	"github.com/devlinkhq/devlink/internal/application"
	"github.com/devlinkhq/devlink/internal/config"
	"github.com/devlinkhq/devlink/internal/domain/port/driven"
)

// services is the wired application layer shared by serve and the auth
// subcommands.
type services struct {
	auth   *application.AuthService
	github *application.GitHubProvider
	slack  *application.SlackProvider
}

func buildServices(cfg *config.Config) (*services, error) {
	broker := brokeradapter.NewClient(cfg.APIURL)

	store := application.NewCredentialStore(cfg.CredentialsPath(), broker)
	if err := store.Load(); err != nil {
		return nil, err
	}

	locator := application.NewSecretLocator(store)

	githubFactory := func(token, username string, installationID int64) driven.GitHubClient {
		return githubadapter.NewClient(token, username, installationID)
	}
	slackFactory := func(botToken string) driven.SlackClient {
		return slackadapter.NewClient(botToken)
	}

	flow := application.NewDeviceFlowService(broker, store, cfg.DeviceFlowTimeout, cfg.WebURL)

	return &services{
		auth:   application.NewAuthService(store, flow, githubFactory),
		github: application.NewGitHubProvider(store, locator, githubFactory),
		slack:  application.NewSlackProvider(store, slackFactory),
	}, nil
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve MCP tools over stdio",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			svcs, err := buildServices(cfg)
			if err != nil {
				return err
			}

			db, err := sqliteadapter.NewDB(cfg.BatchDBPath)
			if err != nil {
				return err
			}
			defer func() {
				if closeErr := db.Close(); closeErr != nil {
					slog.Error("error closing batch store", "error", closeErr)
				}
			}()

			if err := sqliteadapter.RunMigrations(db.Writer); err != nil {
				return err
			}

			batches := sqliteadapter.NewBatchRepo(db)
			if purged, err := batches.PurgeExpired(ctx, cfg.BatchRetention); err != nil {
				slog.Warn("batch store cleanup failed", "error", err)
			} else if purged > 0 {
				slog.Info("expired batches purged", "count", purged, "retention", cfg.BatchRetention)
			}

			bulk := application.NewBulkService(svcs.github, batches, cfg.BulkConcurrency)

			server := mcptools.NewServer(version, mcptools.Deps{
				Auth:   svcs.auth,
				Bulk:   bulk,
				GitHub: svcs.github,
				Slack:  svcs.slack,
			})

			slog.Info("devlink mcp server starting",
				"version", version,
				"api_url", cfg.APIURL,
				"batch_db", cfg.BatchDBPath,
			)
			return server.Run(ctx)
		},
	}
}
