package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewNotificationsCmd creates the notifications command group. The flags are
// stored on this device only.
func NewNotificationsCmd(provider Provider) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "notifications",
		Short: "Manage notification preferences on this device",
	}

	status := &cobra.Command{
		Use:   "status",
		Short: "Show the notification preference",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			asked, err := app.Notifications.HasAsked(ctx)
			if err != nil {
				return err
			}
			enabled, err := app.Notifications.Enabled(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch {
			case !asked:
				fmt.Fprintln(out, "Notifications: not set")
			case enabled:
				fmt.Fprintln(out, "Notifications: enabled")
			default:
				fmt.Fprintln(out, "Notifications: disabled")
			}
			return nil
		},
	}

	setter := func(use, short string, enabled bool) *cobra.Command {
		return &cobra.Command{
			Use:   use,
			Short: short,
			RunE: func(cmd *cobra.Command, args []string) error {
				app, err := provider(cmd)
				if err != nil {
					return err
				}
				if err := app.Notifications.Answer(cmd.Context(), enabled); err != nil {
					return err
				}
				printSuccess(cmd.OutOrStdout(), "Notifications %sd", use)
				return nil
			},
		}
	}

	reset := &cobra.Command{
		Use:   "reset",
		Short: "Forget the preference so you are asked again",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider(cmd)
			if err != nil {
				return err
			}
			if err := app.Notifications.Reset(cmd.Context()); err != nil {
				return err
			}
			printSuccess(cmd.OutOrStdout(), "Notification preference reset")
			return nil
		},
	}

	cmd.AddCommand(status, setter("enable", "Turn notifications on", true), setter("disable", "Turn notifications off", false), reset)
	return cmd
}
