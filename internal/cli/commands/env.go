package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lavacar-app/lavacar/internal/cli/envselect"
	"github.com/lavacar-app/lavacar/internal/config"
)

// NewEnvCmd creates the env command
func NewEnvCmd(provider Provider) *cobra.Command {
	return &cobra.Command{
		Use:   "env [name]",
		Short: "Show or select the backend environment",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider(cmd)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			current := app.Config.API.Environment

			var name string
			switch {
			case len(args) == 1:
				name = args[0]
			case app.Interactive:
				if name, err = envselect.PromptEnvironment(current); err != nil {
					return err
				}
			default:
				for _, env := range envselect.Names() {
					marker := " "
					if env == current {
						marker = "*"
					}
					fmt.Fprintf(out, "%s %-12s %s\n", marker, env, config.Environments[env])
				}
				return nil
			}

			if err := envselect.Select(name); err != nil {
				return err
			}
			printSuccess(out, "Selected environment %s (%s)", name, config.Environments[name])
			if name != current {
				printMuted(out, "Sessions are kept per environment; sign in again if needed.")
			}
			return nil
		},
	}
}
