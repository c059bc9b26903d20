package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lavacar-app/lavacar/internal/auth"
	"github.com/lavacar-app/lavacar/internal/session"
)

var (
	ErrNotSignedIn = errors.New("not signed in")
	ErrWrongRole   = errors.New("not available for this account")
)

// requireRole resolves the stored session before the command runs and
// refuses it unless the account has one of roles
func requireRole(provider Provider, roles ...session.Role) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		app, err := provider(cmd)
		if err != nil {
			return err
		}

		decision, err := app.Guard.Check(cmd.Context(), roles...)
		if err != nil {
			return err
		}
		if decision.Allowed {
			return nil
		}
		return guardError(decision, app.Config.API.BaseURL)
	}
}

func guardError(d auth.Decision, baseURL string) error {
	switch d.Redirect {
	case auth.RouteLogin:
		if d.Outcome.Reason == auth.ReasonUnreachable {
			return fmt.Errorf("%w: could not reach %s", ErrNotSignedIn, baseURL)
		}
		return fmt.Errorf("%w: run 'lavacar login' first", ErrNotSignedIn)
	case auth.RouteAgentHome:
		return fmt.Errorf("%w: signed in as an agent, see 'lavacar agent --help'", ErrWrongRole)
	case auth.RouteUserHome:
		return fmt.Errorf("%w: signed in as a customer account", ErrWrongRole)
	}
	return ErrNotSignedIn
}
