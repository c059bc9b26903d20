// Package devserver is a stub of the loyalty backend for local development.
// It serves the endpoints the client uses from in-memory state seeded from
// YAML fixtures.
package devserver

import (
	"context"
	"errors"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/lavacar-app/lavacar/internal/config"
)

const (
	roleUser  = "user"
	roleAgent = "agent"
)

// Server is the development backend
type Server struct {
	router    *gin.Engine
	store     *Store
	issuer    *Issuer
	validator *validator.Validate
	config    config.DevServerConfig
	logger    zerolog.Logger
}

// New creates a server backed by a store built from seed
func New(cfg config.DevServerConfig, seed *Seed, zlog zerolog.Logger) (*Server, error) {
	issuer, err := NewIssuer(cfg.JWTSecret)
	if err != nil {
		return nil, err
	}

	store, err := NewStore(seed)
	if err != nil {
		return nil, err
	}

	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	server := &Server{
		store:     store,
		issuer:    issuer,
		validator: validate,
		config:    cfg,
		logger:    zlog,
	}
	server.setupRouter()

	return server, nil
}

// Handler returns the HTTP handler, for use with httptest
func (s *Server) Handler() http.Handler {
	return s.router
}

// Store exposes the backing state
func (s *Server) Store() *Store {
	return s.store
}

func (s *Server) setupRouter() {
	gin.SetMode(gin.ReleaseMode)

	s.router = gin.New()
	s.router.Use(gin.Recovery())
	s.router.Use(s.loggingMiddleware())
	s.router.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"http://localhost:8081", "http://localhost:19006"},
		AllowMethods:  []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Length", "Content-Type", "Authorization", "X-Device-Id", "Idempotency-Key"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}))

	s.router.GET("/health", s.healthCheck)
	s.router.NoRoute(func(c *gin.Context) {
		fail(c, http.StatusNotFound, "Not found.", nil)
	})

	public := s.router.Group("/public/vehicles")
	{
		public.GET("/brands", s.listBrands)
		public.GET("/models", s.listModels)
		public.GET("/types", s.listTypes)
	}

	authRoutes := s.router.Group("/auth")
	authRoutes.Use(s.idempotencyMiddleware())
	{
		authRoutes.POST("/login", s.login)
		authRoutes.POST("/agent/login", s.agentLogin)
		authRoutes.POST("/register", s.register)
		authRoutes.POST("/verify-email", s.verifyEmail)
		authRoutes.POST("/forgot-password", s.forgotPassword)
		authRoutes.POST("/reset-password", s.resetPassword)
		authRoutes.POST("/refresh", s.tokenMiddleware(roleUser, roleAgent), s.refresh)
	}

	user := s.router.Group("")
	user.Use(s.tokenMiddleware(roleUser), s.idempotencyMiddleware())
	{
		user.GET("/account", s.getAccount)
		user.GET("/account/vehicles", s.listVehicles)
		user.GET("/account/vehicles/primary", s.primaryVehicle)
		user.POST("/account/vehicles", s.createVehicle)
		user.GET("/account/transactions/recent", s.history)

		user.GET("/coupons", s.listCoupons)
		user.GET("/coupons/recent", s.recentCoupons)
		user.GET("/coupons/:id", s.getCoupon)
		user.GET("/redemptions", s.listRedemptions)
		user.GET("/alerts", s.listAlerts)
		user.GET("/banners", s.listBanners)
	}

	agentRoutes := s.router.Group("/agent")
	agentRoutes.Use(s.tokenMiddleware(roleAgent), s.idempotencyMiddleware())
	{
		agentRoutes.GET("/me", s.getAgent)
		agentRoutes.GET("/transactions", s.agentTransactions)
		agentRoutes.POST("/claims/coupon", s.claimCoupon)
		agentRoutes.POST("/claims/redemption", s.claimRedemption)
	}
}

// loggingMiddleware logs every request with zerolog
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		s.logger.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Str("device_id", c.GetHeader("X-Device-Id")).
			Msg("HTTP request")
	}
}

func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "online",
		"timestamp": time.Now().UTC(),
		"service":   "lavacar-devserver",
	})
}

// Start serves on the configured address until ctx is cancelled
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.config.Addr,
		Handler:           s.router,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.config.Addr).Msg("Starting development backend")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info().Msg("Received shutdown signal, shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Error().Err(err).Msg("Error shutting down HTTP server")
		return err
	}

	s.logger.Info().Msg("Server shutdown complete")
	return nil
}
