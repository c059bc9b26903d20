// Package auth talks to the backend's authentication endpoints and decides,
// from a stored token, which kind of account the device is signed in as.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/lavacar-app/lavacar/internal/api"
	"github.com/lavacar-app/lavacar/internal/session"
)

// ErrInvalidInput marks a request rejected before it was sent
var ErrInvalidInput = errors.New("invalid input")

// Credentials identify a user by email or an agent by code
type Credentials struct {
	Role     session.Role
	Email    string
	Code     string
	Password string
}

// LoginResponse is returned by both login endpoints and by email verification
type LoginResponse struct {
	Token   string          `json:"token"`
	Account json.RawMessage `json:"account,omitempty"`
	Agent   json.RawMessage `json:"agent,omitempty"`
}

// Profile returns whichever profile the backend sent along with the token
func (r LoginResponse) Profile() json.RawMessage {
	if len(r.Account) > 0 {
		return r.Account
	}
	return r.Agent
}

// RegisterRequest creates a user account together with its first vehicle
type RegisterRequest struct {
	FirstName            string `json:"first_name" validate:"required"`
	LastName             string `json:"last_name" validate:"required"`
	Email                string `json:"email" validate:"required,email"`
	Password             string `json:"password" validate:"required,min=8"`
	PasswordConfirmation string `json:"password_confirmation" validate:"required,eqfield=Password"`
	VehicleBrandID       string `json:"vehicle_brand_id" validate:"required"`
	VehicleModelID       string `json:"vehicle_model_id" validate:"required"`
	VehicleTypeID        string `json:"vehicle_type_id" validate:"required"`
	VehicleYear          string `json:"vehicle_year" validate:"required,numeric,len=4"`
	LicensePlate         string `json:"license_plate" validate:"required"`
	Phone                string `json:"phone" validate:"required"`
}

// RegisterResponse is returned by the register endpoint
type RegisterResponse struct {
	AccountID            int64  `json:"account_id"`
	Email                string `json:"email"`
	VerificationRequired bool   `json:"verification_required"`
}

// VerifyEmailRequest confirms a freshly registered account
type VerifyEmailRequest struct {
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"code" validate:"required"`
}

// MessageResponse is the body of endpoints that only acknowledge
type MessageResponse struct {
	Message string `json:"message"`
}

// TokenResponse is the body of the refresh endpoint
type TokenResponse struct {
	Token string `json:"token"`
}

// Service exposes the backend's authentication endpoints
type Service struct {
	client   *api.Client
	session  *session.Session
	validate *validator.Validate
	logger   zerolog.Logger
}

// NewService creates an auth service
func NewService(client *api.Client, sess *session.Session, logger zerolog.Logger) *Service {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &Service{
		client:   client,
		session:  sess,
		validate: validate,
		logger:   logger,
	}
}

// Login authenticates with the endpoint matching the credential's role and
// establishes the session on success
func (s *Service) Login(ctx context.Context, creds Credentials) (api.Result[LoginResponse], error) {
	var path string
	var body map[string]string
	switch creds.Role {
	case session.RoleAgent:
		path = api.PathAgentLogin
		body = map[string]string{"code": creds.Code, "password": creds.Password}
	case session.RoleUser, session.RoleNone:
		creds.Role = session.RoleUser
		path = api.PathLogin
		body = map[string]string{"email": creds.Email, "password": creds.Password}
	default:
		return api.Result[LoginResponse]{}, fmt.Errorf("%w: %q", session.ErrInvalidRole, creds.Role)
	}

	s.logger.Debug().Str("role", string(creds.Role)).Str("endpoint", path).Msg("Attempting login")

	res := api.Post[LoginResponse](ctx, s.client, path, body, false)
	if !res.Success {
		return res, nil
	}
	if res.Data.Token == "" {
		return res, fmt.Errorf("login response carried no token")
	}

	if err := s.session.Establish(ctx, res.Data.Token, creds.Role, res.Data.Profile()); err != nil {
		return res, fmt.Errorf("failed to save session: %w", err)
	}

	s.logger.Info().Str("role", string(creds.Role)).Msg("Login successful")
	return res, nil
}

// Register creates a user account. Invalid input is reported in the result's
// field errors without contacting the backend.
func (s *Service) Register(ctx context.Context, req RegisterRequest) api.Result[RegisterResponse] {
	if res, ok := invalid[RegisterResponse](s.validate.Struct(req)); !ok {
		return res
	}
	return api.Post[RegisterResponse](ctx, s.client, api.PathRegister, req, false)
}

// VerifyEmail confirms an account and signs the user in
func (s *Service) VerifyEmail(ctx context.Context, req VerifyEmailRequest) (api.Result[LoginResponse], error) {
	if res, ok := invalid[LoginResponse](s.validate.Struct(req)); !ok {
		return res, nil
	}

	res := api.Post[LoginResponse](ctx, s.client, api.PathVerifyEmail, req, false)
	if !res.Success || res.Data.Token == "" {
		return res, nil
	}

	if err := s.session.Establish(ctx, res.Data.Token, session.RoleUser, res.Data.Profile()); err != nil {
		return res, fmt.Errorf("failed to save session: %w", err)
	}
	return res, nil
}

// ForgotPassword asks the backend to send a reset link
func (s *Service) ForgotPassword(ctx context.Context, email string) api.Result[MessageResponse] {
	return api.Post[MessageResponse](ctx, s.client, api.PathForgotPassword, map[string]string{"email": email}, false)
}

// ResetPassword sets a new password using the token from the reset link
func (s *Service) ResetPassword(ctx context.Context, token, password string) api.Result[MessageResponse] {
	return api.Post[MessageResponse](ctx, s.client, api.PathResetPassword, map[string]string{
		"token":    token,
		"password": password,
	}, false)
}

// Refresh exchanges the current token for a new one
func (s *Service) Refresh(ctx context.Context) (api.Result[TokenResponse], error) {
	res := api.Post[TokenResponse](ctx, s.client, api.PathRefreshToken, struct{}{}, true)
	if !res.Success || res.Data.Token == "" {
		return res, nil
	}
	if err := s.session.SetToken(ctx, res.Data.Token); err != nil {
		return res, fmt.Errorf("failed to save refreshed token: %w", err)
	}
	s.logger.Debug().Msg("Token refreshed")
	return res, nil
}

// Logout forgets the local session. The backend keeps no session to end.
func (s *Service) Logout(ctx context.Context) error {
	if err := s.session.Clear(ctx, session.ReasonLogout); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}

// CheckUserAccount fetches the user profile for the stored token
func (s *Service) CheckUserAccount(ctx context.Context) api.Result[json.RawMessage] {
	return s.probe(ctx, api.PathUserAccount)
}

// CheckAgentAccount fetches the agent profile for the stored token
func (s *Service) CheckAgentAccount(ctx context.Context) api.Result[json.RawMessage] {
	return s.probe(ctx, api.PathAgentAccount)
}

// probe never tears the session down itself; the resolver decides that
func (s *Service) probe(ctx context.Context, path string) api.Result[json.RawMessage] {
	return api.Do[json.RawMessage](ctx, s.client, api.Request{
		Method:     http.MethodGet,
		Path:       path,
		Auth:       true,
		NoTeardown: true,
	})
}

// invalid converts validator errors into a failed result
func invalid[T any](err error) (api.Result[T], bool) {
	if err == nil {
		return api.Result[T]{}, true
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return api.Result[T]{Message: err.Error(), Err: fmt.Errorf("%w: %v", ErrInvalidInput, err)}, false
	}

	fields := make(map[string][]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = append(fields[fe.Field()], fieldMessage(fe))
	}
	return api.Result[T]{
		Message: "Please review the highlighted fields",
		Errors:  fields,
		Err:     ErrInvalidInput,
	}, false
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "email":
		return fmt.Sprintf("%s must be a valid email address", fe.Field())
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", fe.Field(), fe.Param())
	case "eqfield":
		return fmt.Sprintf("%s does not match", fe.Field())
	case "numeric", "len":
		return fmt.Sprintf("%s is not valid", fe.Field())
	}
	return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
}
