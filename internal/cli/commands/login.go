package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/lavacar-app/lavacar/internal/auth"
	"github.com/lavacar-app/lavacar/internal/session"
)

// NewLoginCmd creates the login command
func NewLoginCmd(provider Provider) *cobra.Command {
	var email, code, password string
	var asAgent bool

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in as a customer or as a wash agent",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider(cmd)
			if err != nil {
				return err
			}
			return runLogin(cmd, app, loginInput{email: email, code: code, password: password, agent: asAgent})
		},
	}

	cmd.Flags().BoolVar(&asAgent, "agent", false, "Sign in with an agent code")
	cmd.Flags().StringVar(&email, "email", "", "Email address (or set LAVACAR_EMAIL)")
	cmd.Flags().StringVar(&code, "code", "", "Agent code (or set LAVACAR_AGENT_CODE)")
	cmd.Flags().StringVar(&password, "password", "", "Password (or set LAVACAR_PASSWORD, will prompt if not provided)")

	return cmd
}

type loginInput struct {
	email    string
	code     string
	password string
	agent    bool
}

func runLogin(cmd *cobra.Command, app *App, in loginInput) error {
	out := cmd.OutOrStdout()

	// Check for environment variables (useful for scripts)
	if in.email == "" {
		in.email = os.Getenv("LAVACAR_EMAIL")
	}
	if in.code == "" {
		in.code = os.Getenv("LAVACAR_AGENT_CODE")
	}
	if in.password == "" {
		in.password = os.Getenv("LAVACAR_PASSWORD")
	}

	role := session.RoleUser
	switch {
	case in.agent || (in.code != "" && in.email == ""):
		role = session.RoleAgent
	case in.email == "" && app.Interactive:
		picked, err := pick(app, "Sign in as", []session.Role{session.RoleUser, session.RoleAgent}, roleLabel)
		if err != nil {
			return err
		}
		role = picked
	}

	creds := auth.Credentials{Role: role}
	var err error
	if role == session.RoleAgent {
		creds.Code, err = promptValue(app, "Agent code", in.code, required("agent code"))
	} else {
		creds.Email, err = promptValue(app, "Email", in.email, required("email"))
	}
	if err != nil {
		return err
	}
	if creds.Password, err = promptPassword(app, "Password", in.password); err != nil {
		return err
	}

	fmt.Fprintf(out, "Signing in to %s...\n", app.Config.API.BaseURL)

	res, err := app.Auth.Login(cmd.Context(), creds)
	if err != nil {
		return err
	}
	if !res.Success {
		return failure("login failed: "+res.FirstError(), res.Errors)
	}

	printSuccess(out, "Login successful!")
	printProfile(out, role, res.Data.Profile())

	if role == session.RoleUser {
		askNotifications(cmd, app)
	}
	return nil
}

// askNotifications asks once per session whether to enable notifications
func askNotifications(cmd *cobra.Command, app *App) {
	ctx := cmd.Context()
	asked, err := app.Notifications.HasAsked(ctx)
	if err != nil || asked || !app.Interactive {
		return
	}
	enabled := confirm(app, "Enable notifications for new coupons")
	if err := app.Notifications.Answer(ctx, enabled); err != nil {
		app.Logger.Warn().Err(err).Msg("Failed to save notification preference")
	}
}

func roleLabel(r session.Role) string {
	if r == session.RoleAgent {
		return "Wash agent"
	}
	return "Customer"
}

// profileSummary holds the fields shown for either account type
type profileSummary struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Code      string `json:"code"`
	Name      string `json:"name"`
	Agent     *struct {
		Code string `json:"code"`
		Name string `json:"name"`
	} `json:"agent"`
}

func printProfile(w io.Writer, role session.Role, raw json.RawMessage) {
	var p profileSummary
	if len(raw) == 0 || json.Unmarshal(raw, &p) != nil {
		fmt.Fprintf(w, "  Role: %s\n", roleLabel(role))
		return
	}
	if p.Agent != nil {
		p.Code, p.Name = p.Agent.Code, p.Agent.Name
	}

	if role == session.RoleAgent {
		fmt.Fprintf(w, "  Agent: %s (%s)\n", orDash(p.Name), orDash(p.Code))
	} else {
		name := strings.TrimSpace(p.FirstName + " " + p.LastName)
		fmt.Fprintf(w, "  User: %s (%s)\n", orDash(name), orDash(p.Email))
	}
	fmt.Fprintf(w, "  Role: %s\n", roleLabel(role))
}

// NewLogoutCmd creates the logout command
func NewLogoutCmd(provider Provider) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider(cmd)
			if err != nil {
				return err
			}
			if err := app.Auth.Logout(cmd.Context()); err != nil {
				return err
			}
			printSuccess(cmd.OutOrStdout(), "Signed out")
			return nil
		},
	}
}

// NewStatusCmd creates the status command
func NewStatusCmd(provider Provider) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show who is signed in",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider(cmd)
			if err != nil {
				return err
			}
			return runStatus(cmd, app)
		},
	}
}

func runStatus(cmd *cobra.Command, app *App) error {
	out := cmd.OutOrStdout()
	ctx := cmd.Context()

	fmt.Fprintf(out, "Environment: %s (%s)\n", app.Config.API.Environment, app.Config.API.BaseURL)

	token, err := app.Session.Token(ctx)
	if err != nil {
		return err
	}

	outcome, err := app.Resolver.Resolve(ctx)
	if err != nil {
		return err
	}

	switch {
	case outcome.Authenticated:
		printSuccess(out, "Signed in")
		printProfile(out, outcome.Role, outcome.Profile)
	case outcome.Reason == auth.ReasonUnreachable:
		printWarning(out, "Server unreachable, session state unknown")
		return nil
	case outcome.Reason == auth.ReasonRejected:
		printWarning(out, "Stored session was rejected and has been cleared")
		return nil
	default:
		fmt.Fprintln(out, "Not signed in")
		return nil
	}

	info := auth.InspectToken(token)
	if info.HasExpiry() {
		fmt.Fprintf(out, "  Token expires: %s (in %s)\n",
			info.ExpiresAt.Local().Format(time.RFC1123),
			info.ExpiresIn(time.Now()).Round(time.Minute))
	}
	return nil
}
