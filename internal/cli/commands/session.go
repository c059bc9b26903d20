package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/lavacar-app/lavacar/internal/auth"
)

// NewSessionCmd creates the session command group
func NewSessionCmd(provider Provider) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Manage the stored session token",
	}

	refresh := &cobra.Command{
		Use:     "refresh",
		Short:   "Exchange the stored token for a new one",
		PreRunE: requireRole(provider),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider(cmd)
			if err != nil {
				return err
			}
			res, err := app.Auth.Refresh(cmd.Context())
			if err != nil {
				return err
			}
			if !res.Success {
				return failure("refresh failed: "+res.FirstError(), res.Errors)
			}

			out := cmd.OutOrStdout()
			printSuccess(out, "Token refreshed")
			if info := auth.InspectToken(res.Data.Token); info.HasExpiry() {
				fmt.Fprintf(out, "  Expires: %s\n", info.ExpiresAt.Local().Format(time.RFC1123))
			}
			return nil
		},
	}

	var schedule string
	keepalive := &cobra.Command{
		Use:     "keepalive",
		Short:   "Refresh the token on a schedule until interrupted",
		PreRunE: requireRole(provider),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider(cmd)
			if err != nil {
				return err
			}
			if schedule == "" {
				schedule = app.Config.Session.RefreshSchedule
			}

			scheduler, err := auth.NewRefreshScheduler(app.Auth, schedule, app.Logger)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Keeping the session alive (%s), next refresh at %s. Press Ctrl+C to stop.\n",
				schedule, scheduler.Next(time.Now()).Local().Format(time.Kitchen))

			err = scheduler.Run(cmd.Context())
			switch {
			case errors.Is(err, auth.ErrSessionEnded):
				return fmt.Errorf("session ended, run 'lavacar login' to sign in again")
			case errors.Is(err, context.Canceled):
				printMuted(out, "Stopped")
				return nil
			}
			return err
		},
	}
	keepalive.Flags().StringVar(&schedule, "schedule", "", "Cron schedule, e.g. '@every 30m' (default from LAVACAR_REFRESH_SCHEDULE)")

	cmd.AddCommand(refresh, keepalive)
	return cmd
}
