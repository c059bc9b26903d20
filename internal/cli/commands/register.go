package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/lavacar-app/lavacar/internal/auth"
	"github.com/lavacar-app/lavacar/internal/session"
	"github.com/lavacar-app/lavacar/internal/vehicles"
)

// NewRegisterCmd creates the register command
func NewRegisterCmd(provider Provider) *cobra.Command {
	var req auth.RegisterRequest

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create a customer account with its first vehicle",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider(cmd)
			if err != nil {
				return err
			}
			return runRegister(cmd, app, req)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&req.FirstName, "first-name", "", "First name")
	flags.StringVar(&req.LastName, "last-name", "", "Last name")
	flags.StringVar(&req.Email, "email", "", "Email address")
	flags.StringVar(&req.Phone, "phone", "", "Phone number")
	flags.StringVar(&req.Password, "password", "", "Password (will prompt if not provided)")
	flags.StringVar(&req.LicensePlate, "plate", "", "License plate of your vehicle")
	flags.StringVar(&req.VehicleBrandID, "brand", "", "Vehicle brand id (see 'lavacar vehicles brands')")
	flags.StringVar(&req.VehicleModelID, "model", "", "Vehicle model id")
	flags.StringVar(&req.VehicleTypeID, "type", "", "Vehicle type id")
	flags.StringVar(&req.VehicleYear, "year", "", "Vehicle year")

	return cmd
}

func runRegister(cmd *cobra.Command, app *App, req auth.RegisterRequest) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if app.Interactive {
		if err := completeRegistration(cmd, app, &req); err != nil {
			return err
		}
	}
	if req.PasswordConfirmation == "" {
		req.PasswordConfirmation = req.Password
	}

	res := app.Auth.Register(ctx, req)
	if !res.Success {
		return failure("registration failed: "+res.FirstError(), res.Errors)
	}

	printSuccess(out, "Account created for %s", res.Data.Email)
	if !res.Data.VerificationRequired {
		return nil
	}

	if !app.Interactive {
		fmt.Fprintf(out, "Check your inbox, then run: lavacar verify --email %s --code <code>\n", res.Data.Email)
		return nil
	}
	code, err := promptValue(app, "Verification code", "", required("code"))
	if err != nil {
		return err
	}
	return runVerify(cmd, app, auth.VerifyEmailRequest{Email: res.Data.Email, Code: code})
}

// completeRegistration prompts for every field left empty
func completeRegistration(cmd *cobra.Command, app *App, req *auth.RegisterRequest) error {
	var err error
	fields := []struct {
		label string
		value *string
	}{
		{"First name", &req.FirstName},
		{"Last name", &req.LastName},
		{"Email", &req.Email},
		{"Phone", &req.Phone},
	}
	for _, f := range fields {
		if *f.value, err = promptValue(app, f.label, *f.value, required(f.label)); err != nil {
			return err
		}
	}

	if req.Password == "" {
		if req.Password, err = promptPassword(app, "Password", ""); err != nil {
			return err
		}
		if req.PasswordConfirmation, err = promptPassword(app, "Confirm password", ""); err != nil {
			return err
		}
	}

	if req.LicensePlate, err = promptValue(app, "License plate", req.LicensePlate, required("license plate")); err != nil {
		return err
	}
	if err := pickVehicle(cmd, app, &req.VehicleBrandID, &req.VehicleModelID, &req.VehicleTypeID); err != nil {
		return err
	}
	req.VehicleYear, err = promptValue(app, "Year", req.VehicleYear, required("year"))
	return err
}

// pickVehicle fills brand, model and type ids from the public catalog
func pickVehicle(cmd *cobra.Command, app *App, brandID, modelID, typeID *string) error {
	ctx := cmd.Context()

	if *brandID == "" {
		brands, err := app.Vehicles.Brands(ctx)
		if err != nil {
			return fmt.Errorf("failed to load brands: %w", err)
		}
		brand, err := pick(app, "Brand", brands, func(b vehicles.Brand) string { return b.Name })
		if err != nil {
			return err
		}
		*brandID = strconv.FormatInt(brand.ID, 10)
	}

	if *modelID == "" {
		id, err := strconv.ParseInt(*brandID, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid brand id %q", *brandID)
		}
		models, err := app.Vehicles.Models(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to load models: %w", err)
		}
		model, err := pick(app, "Model", models.Models, func(m vehicles.Model) string { return m.Name })
		if err != nil {
			return err
		}
		*modelID = strconv.FormatInt(model.ID, 10)
		if *typeID == "" && model.VehicleTypeID != 0 {
			*typeID = strconv.FormatInt(model.VehicleTypeID, 10)
		}
	}

	if *typeID == "" {
		types, err := app.Vehicles.Types(ctx)
		if err != nil {
			return fmt.Errorf("failed to load vehicle types: %w", err)
		}
		typ, err := pick(app, "Vehicle type", types, func(t vehicles.Type) string { return t.Name })
		if err != nil {
			return err
		}
		*typeID = strconv.FormatInt(typ.ID, 10)
	}
	return nil
}

// NewVerifyCmd creates the verify command
func NewVerifyCmd(provider Provider) *cobra.Command {
	var req auth.VerifyEmailRequest

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Confirm your email with the code you received",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider(cmd)
			if err != nil {
				return err
			}
			if req.Email, err = promptValue(app, "Email", req.Email, required("email")); err != nil {
				return err
			}
			if req.Code, err = promptValue(app, "Verification code", req.Code, required("code")); err != nil {
				return err
			}
			return runVerify(cmd, app, req)
		},
	}

	cmd.Flags().StringVar(&req.Email, "email", "", "Email address")
	cmd.Flags().StringVar(&req.Code, "code", "", "Verification code")

	return cmd
}

func runVerify(cmd *cobra.Command, app *App, req auth.VerifyEmailRequest) error {
	res, err := app.Auth.VerifyEmail(cmd.Context(), req)
	if err != nil {
		return err
	}
	if !res.Success {
		return failure("verification failed: "+res.FirstError(), res.Errors)
	}

	out := cmd.OutOrStdout()
	printSuccess(out, "Email verified, you are signed in")
	printProfile(out, session.RoleUser, res.Data.Profile())
	askNotifications(cmd, app)
	return nil
}

// NewPasswordCmd creates the password command group
func NewPasswordCmd(provider Provider) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "password",
		Short: "Recover a forgotten password",
	}

	var email string
	forgot := &cobra.Command{
		Use:   "forgot",
		Short: "Send a password reset link",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider(cmd)
			if err != nil {
				return err
			}
			if email, err = promptValue(app, "Email", email, required("email")); err != nil {
				return err
			}
			res := app.Auth.ForgotPassword(cmd.Context(), email)
			if !res.Success {
				return failure(res.FirstError(), res.Errors)
			}
			printSuccess(cmd.OutOrStdout(), "%s", orDash(res.Message))
			return nil
		},
	}
	forgot.Flags().StringVar(&email, "email", "", "Email address")

	var token, password string
	reset := &cobra.Command{
		Use:   "reset",
		Short: "Set a new password with the token from the reset link",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider(cmd)
			if err != nil {
				return err
			}
			if token, err = promptValue(app, "Reset token", token, required("token")); err != nil {
				return err
			}
			if password, err = promptPassword(app, "New password", password); err != nil {
				return err
			}
			res := app.Auth.ResetPassword(cmd.Context(), token, password)
			if !res.Success {
				return failure("password reset failed: "+res.FirstError(), res.Errors)
			}
			printSuccess(cmd.OutOrStdout(), "Password updated, sign in with 'lavacar login'")
			return nil
		},
	}
	reset.Flags().StringVar(&token, "token", "", "Reset token")
	reset.Flags().StringVar(&password, "password", "", "New password (will prompt if not provided)")

	cmd.AddCommand(forgot, reset)
	return cmd
}
