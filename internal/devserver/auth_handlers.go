package devserver

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lavacar-app/lavacar/internal/vehicles"
)

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type agentLoginRequest struct {
	Code     string `json:"code" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type vehicleRequest struct {
	BrandID      string `json:"vehicle_brand_id" validate:"required"`
	ModelID      string `json:"vehicle_model_id" validate:"required"`
	TypeID       string `json:"vehicle_type_id" validate:"required"`
	Year         string `json:"vehicle_year" validate:"required,numeric,len=4"`
	LicensePlate string `json:"license_plate" validate:"required"`
}

type registerRequest struct {
	FirstName            string `json:"first_name" validate:"required"`
	LastName             string `json:"last_name" validate:"required"`
	Email                string `json:"email" validate:"required,email"`
	Password             string `json:"password" validate:"required,min=8"`
	PasswordConfirmation string `json:"password_confirmation" validate:"required,eqfield=Password"`
	Phone                string `json:"phone" validate:"required"`
	vehicleRequest
}

type verifyEmailRequest struct {
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"code" validate:"required"`
}

type forgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type resetPasswordRequest struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required,min=8"`
}

// accountView is the account as the backend returns it
type accountView struct {
	ID             int64              `json:"id"`
	FirstName      string             `json:"first_name"`
	LastName       string             `json:"last_name"`
	Email          string             `json:"email"`
	Phone          string             `json:"phone"`
	Verified       bool               `json:"email_verified"`
	LastLoginAt    *time.Time         `json:"last_login_at"`
	CreatedAt      time.Time          `json:"created_at"`
	PrimaryVehicle *vehicles.Vehicle  `json:"primary_vehicle"`
	Vehicles       []vehicles.Vehicle `json:"vehicles"`
}

func (s *Server) accountView(acc *account) accountView {
	view := accountView{
		ID:          acc.ID,
		FirstName:   acc.FirstName,
		LastName:    acc.LastName,
		Email:       acc.Email,
		Phone:       acc.Phone,
		Verified:    acc.Verified,
		LastLoginAt: acc.LastLoginAt,
		CreatedAt:   acc.CreatedAt,
		Vehicles:    s.store.Vehicles(acc.ID),
	}
	if len(view.Vehicles) > 0 {
		primary := view.Vehicles[0]
		view.PrimaryVehicle = &primary
	}
	return view
}

func (s *Server) login(c *gin.Context) {
	var req loginRequest
	if !s.bind(c, &req) {
		return
	}

	acc, err := s.store.AuthenticateUser(req.Email, req.Password)
	switch {
	case errors.Is(err, ErrNotVerified):
		fail(c, http.StatusForbidden, "Email not verified.", nil)
		return
	case err != nil:
		s.logger.Debug().Err(err).Msg("User login failed")
		fail(c, http.StatusUnauthorized, "Invalid credentials", nil)
		return
	}

	token, err := s.issuer.Issue(acc.ID, roleUser)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to issue token")
		fail(c, http.StatusInternalServerError, "Failed to sign in.", nil)
		return
	}

	s.logger.Info().Int64("account_id", acc.ID).Msg("User signed in")
	ok(c, http.StatusOK, gin.H{"token": token, "account": s.accountView(acc)})
}

func (s *Server) agentLogin(c *gin.Context) {
	var req agentLoginRequest
	if !s.bind(c, &req) {
		return
	}

	ag, err := s.store.AuthenticateAgent(req.Code, req.Password)
	if err != nil {
		s.logger.Debug().Err(err).Msg("Agent login failed")
		fail(c, http.StatusUnauthorized, "Invalid credentials", nil)
		return
	}

	token, err := s.issuer.Issue(ag.ID, roleAgent)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to issue token")
		fail(c, http.StatusInternalServerError, "Failed to sign in.", nil)
		return
	}

	s.logger.Info().Str("code", ag.Code).Msg("Agent signed in")
	ok(c, http.StatusOK, gin.H{"token": token, "agent": ag})
}

func (s *Server) register(c *gin.Context) {
	var req registerRequest
	if !s.bind(c, &req) {
		return
	}

	acc, code, err := s.store.Register(req)
	var conflict *FieldConflict
	if errors.As(err, &conflict) {
		fail(c, http.StatusUnprocessableEntity, "The given data was invalid.", map[string][]string{
			conflict.Field: {"The " + conflict.Field + " has already been taken."},
		})
		return
	}
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to register account")
		fail(c, http.StatusInternalServerError, "Failed to create account.", nil)
		return
	}

	// No mail is sent in development; the code goes to the log instead
	s.logger.Info().Str("email", acc.Email).Str("code", code).Msg("Verification code issued")

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": "Account created. Check your email for the verification code.",
		"data": gin.H{
			"account_id":            acc.ID,
			"email":                 acc.Email,
			"verification_required": true,
		},
	})
}

func (s *Server) verifyEmail(c *gin.Context) {
	var req verifyEmailRequest
	if !s.bind(c, &req) {
		return
	}

	acc, err := s.store.VerifyEmail(req.Email, req.Code)
	if err != nil {
		fail(c, http.StatusUnprocessableEntity, "Invalid or expired verification code.", map[string][]string{
			"code": {"The verification code is invalid."},
		})
		return
	}

	token, err := s.issuer.Issue(acc.ID, roleUser)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to issue token")
		fail(c, http.StatusInternalServerError, "Failed to sign in.", nil)
		return
	}
	ok(c, http.StatusOK, gin.H{"token": token, "account": s.accountView(acc)})
}

func (s *Server) forgotPassword(c *gin.Context) {
	var req forgotPasswordRequest
	if !s.bind(c, &req) {
		return
	}

	if token, found := s.store.StartPasswordReset(req.Email); found {
		s.logger.Info().Str("email", req.Email).Str("reset_token", token).Msg("Password reset requested")
	}
	// Same answer whether or not the email exists
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "If the email is registered, a reset link has been sent.",
	})
}

func (s *Server) resetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if !s.bind(c, &req) {
		return
	}

	if err := s.store.ResetPassword(req.Token, req.Password); err != nil {
		fail(c, http.StatusUnprocessableEntity, "Invalid or expired reset token.", nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Password updated."})
}

func (s *Server) refresh(c *gin.Context) {
	claims := currentClaims(c)
	id, _ := claims.AccountID()

	token, err := s.issuer.Issue(id, claims.Role)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to issue token")
		fail(c, http.StatusInternalServerError, "Failed to refresh token.", nil)
		return
	}
	ok(c, http.StatusOK, gin.H{"token": token, "expires_in": int(s.issuer.ttl.Seconds())})
}
