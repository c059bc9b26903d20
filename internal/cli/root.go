package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lavacar-app/lavacar/internal/cli/commands"
	"github.com/lavacar-app/lavacar/internal/cli/envselect"
	"github.com/lavacar-app/lavacar/internal/config"
	"github.com/lavacar-app/lavacar/internal/logger"
)

var version = "dev" // Will be set during build

// NewRootCmd builds the command tree over provider
func NewRootCmd(provider commands.Provider) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "lavacar",
		Short: "Lavacar - car wash loyalty from the terminal",
		Long: `Lavacar CLI - Earn and spend wash points from the terminal.

Customers browse coupons and redemptions and show claim tickets at the wash.
Agents sign in with their station code to claim those tickets.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().String("env", "", "Backend environment (development, production)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Log requests and session changes")
	rootCmd.PersistentFlags().Bool("ephemeral", false, "Keep the session in memory for this run only")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "lavacar version %s\n", version)
		},
	})

	// Add all subcommands
	rootCmd.AddCommand(commands.NewLoginCmd(provider))
	rootCmd.AddCommand(commands.NewLogoutCmd(provider))
	rootCmd.AddCommand(commands.NewStatusCmd(provider))
	rootCmd.AddCommand(commands.NewRegisterCmd(provider))
	rootCmd.AddCommand(commands.NewVerifyCmd(provider))
	rootCmd.AddCommand(commands.NewPasswordCmd(provider))
	rootCmd.AddCommand(commands.NewSessionCmd(provider))
	rootCmd.AddCommand(commands.NewVehiclesCmd(provider))
	rootCmd.AddCommand(commands.NewCouponsCmd(provider))
	rootCmd.AddCommand(commands.NewRedemptionsCmd(provider))
	rootCmd.AddCommand(commands.NewHistoryCmd(provider))
	rootCmd.AddCommand(commands.NewAlertsCmd(provider))
	rootCmd.AddCommand(commands.NewBannersCmd(provider))
	rootCmd.AddCommand(commands.NewNotificationsCmd(provider))
	rootCmd.AddCommand(commands.NewAgentCmd(provider))
	rootCmd.AddCommand(commands.NewEnvCmd(provider))
	rootCmd.AddCommand(commands.NewNetwatchCmd(provider))

	return rootCmd
}

// lazyApp opens the App the first time a command asks for it
type lazyApp struct {
	app *commands.App
}

func (l *lazyApp) get(cmd *cobra.Command) (*commands.App, error) {
	if l.app != nil {
		return l.app, nil
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	envFlag, _ := cmd.Flags().GetString("env")
	if err := envselect.Resolve(cfg, envFlag); err != nil {
		return nil, err
	}

	level := cfg.Logging.Level
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		level = "debug"
	}
	logger.Init(level, cfg.Logging.Format)

	var app *commands.App
	if ephemeral, _ := cmd.Flags().GetBool("ephemeral"); ephemeral {
		app = commands.OpenEphemeralApp(cfg, logger.Logger)
	} else if app, err = commands.OpenApp(cfg, logger.Logger); err != nil {
		return nil, err
	}
	app.WatchExpiry(cmd.ErrOrStderr())
	l.app = app
	return app, nil
}

func (l *lazyApp) close() {
	if l.app == nil {
		return
	}
	if err := l.app.Close(); err != nil {
		logger.Logger.Warn().Err(err).Msg("Failed to close device storage")
	}
}

// Execute runs the root command
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	lazy := &lazyApp{}
	defer lazy.close()

	if err := NewRootCmd(lazy.get).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}
