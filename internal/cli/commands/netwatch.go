package commands

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/lavacar-app/lavacar/internal/netwatch"
)

// NewNetwatchCmd creates the netwatch command
func NewNetwatchCmd(provider Provider) *cobra.Command {
	var once bool
	var schedule string

	cmd := &cobra.Command{
		Use:   "netwatch",
		Short: "Watch connectivity to the backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider(cmd)
			if err != nil {
				return err
			}
			if schedule == "" {
				schedule = app.Config.Network.ProbeSchedule
			}

			probe := netwatch.NewHTTPProbe(app.Config.API.BaseURL, app.Config.API.Timeout)
			watcher, err := netwatch.New(probe, schedule, app.Logger)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if once {
				printState(out, watcher.Check(cmd.Context()), app.Config.API.BaseURL)
				return nil
			}

			watcher.OnChange(func(state netwatch.State) {
				printState(out, state, app.Config.API.BaseURL)
			})
			fmt.Fprintf(out, "Watching %s (%s). Press Ctrl+C to stop.\n", app.Config.API.BaseURL, schedule)
			return watcher.Run(cmd.Context())
		},
	}

	cmd.Flags().BoolVar(&once, "once", false, "Probe once and exit")
	cmd.Flags().StringVar(&schedule, "schedule", "", "Cron schedule, e.g. '@every 15s' (default from LAVACAR_PROBE_SCHEDULE)")

	return cmd
}

func printState(w io.Writer, state netwatch.State, target string) {
	stamp := time.Now().Format(time.TimeOnly)
	if state == netwatch.StateOnline {
		printSuccess(w, "%s online: %s is reachable", stamp, target)
		return
	}
	printWarning(w, "%s offline: no connection to %s", stamp, target)
}
