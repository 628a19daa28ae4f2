package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/devlinkhq/devlink/internal/config"
)

func newAuthCmd() *cobra.Command {
	auth := &cobra.Command{
		Use:   "auth",
		Short: "Manage the devlink account link",
	}

	auth.AddCommand(&cobra.Command{
		Use:   "login",
		Short: "Link this install via the interactive device flow",
		RunE: func(cmd *cobra.Command, _ []string) error {
			svcs, err := loadServices()
			if err != nil {
				return err
			}

			creds, err := svcs.auth.Link(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Linked as %s (%s)\n", creds.Username, creds.UserID)
			return nil
		},
	})

	auth.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show session and integration status",
		RunE: func(cmd *cobra.Command, _ []string) error {
			svcs, err := loadServices()
			if err != nil {
				return err
			}

			report, err := svcs.auth.Status(cmd.Context())
			if err != nil {
				return err
			}

			out, err := json.MarshalIndent(report, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	})

	auth.AddCommand(&cobra.Command{
		Use:   "logout",
		Short: "Drop the devlink session (a configured PAT is kept)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			svcs, err := loadServices()
			if err != nil {
				return err
			}

			if err := svcs.auth.Logout(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Session cleared")
			return nil
		},
	})

	return auth
}

func loadServices() (*services, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return buildServices(cfg)
}
