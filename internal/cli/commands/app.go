package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/lavacar-app/lavacar/internal/agent"
	"github.com/lavacar-app/lavacar/internal/api"
	"github.com/lavacar-app/lavacar/internal/auth"
	"github.com/lavacar-app/lavacar/internal/cli/userconfig"
	"github.com/lavacar-app/lavacar/internal/config"
	"github.com/lavacar-app/lavacar/internal/notifications"
	"github.com/lavacar-app/lavacar/internal/rewards"
	"github.com/lavacar-app/lavacar/internal/session"
	"github.com/lavacar-app/lavacar/internal/storage"
	"github.com/lavacar-app/lavacar/internal/vehicles"
)

// App holds the services every command runs against
type App struct {
	Config      *config.Config
	Logger      zerolog.Logger
	Interactive bool

	Session       *session.Session
	Client        *api.Client
	Auth          *auth.Service
	Resolver      *auth.Resolver
	Guard         *auth.Guard
	Vehicles      *vehicles.Service
	Rewards       *rewards.Service
	Agent         *agent.Service
	Notifications *notifications.Preferences

	closers []func() error
}

// Provider returns the App for a command, creating it on first use
type Provider func(cmd *cobra.Command) (*App, error)

// Stores are the device storage backends of an App
type Stores struct {
	Secrets storage.Store // token
	Data    storage.Store // role, profile and local flags
}

// NewApp wires the services over the given stores
func NewApp(cfg *config.Config, stores Stores, deviceID string, logger zerolog.Logger) *App {
	sess := session.New(stores.Secrets, stores.Data, logger.With().Str("component", "session").Logger())
	client := api.New(cfg.API.BaseURL, sess, api.Options{
		Timeout:  cfg.API.Timeout,
		DeviceID: deviceID,
		Logger:   logger.With().Str("component", "api").Logger(),
	})
	authService := auth.NewService(client, sess, logger)
	resolver := auth.NewResolver(authService, sess, auth.ResolverOptions{
		KeepTokenWhenUnreachable: cfg.Session.KeepTokenWhenUnreachable,
	}, logger)

	return &App{
		Config:        cfg,
		Logger:        logger,
		Session:       sess,
		Client:        client,
		Auth:          authService,
		Resolver:      resolver,
		Guard:         auth.NewGuard(resolver),
		Vehicles:      vehicles.NewService(client),
		Rewards:       rewards.NewService(client),
		Agent:         agent.NewService(client, logger),
		Notifications: notifications.New(sess.Data()),
	}
}

// OpenApp opens the device stores for the configured environment and wires
// the services over them
func OpenApp(cfg *config.Config, logger zerolog.Logger) (*App, error) {
	data, err := storage.OpenSQLite(cfg.Storage.DatabasePath(cfg.API.Environment), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open device storage: %w", err)
	}

	var secrets storage.Store = data
	if cfg.Storage.TokenBackend == config.TokenStoreKeyring {
		secrets = storage.NewKeyring(cfg.API.Environment)
	}

	app := newDeviceApp(cfg, Stores{Secrets: secrets, Data: data}, logger)
	app.closers = append(app.closers, data.Close)
	return app, nil
}

// OpenEphemeralApp wires the services over memory stores. Nothing survives
// the process.
func OpenEphemeralApp(cfg *config.Config, logger zerolog.Logger) *App {
	return newDeviceApp(cfg, Stores{Secrets: storage.NewMemory(), Data: storage.NewMemory()}, logger)
}

func newDeviceApp(cfg *config.Config, stores Stores, logger zerolog.Logger) *App {
	deviceID, err := userconfig.DeviceID()
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to load device id")
	}

	app := NewApp(cfg, stores, deviceID, logger)
	app.Interactive = term.IsTerminal(int(os.Stdin.Fd()))
	return app
}

// WatchExpiry prints a sign-in hint to w when the backend rejects the stored
// token in the middle of a command
func (a *App) WatchExpiry(w io.Writer) {
	unsubscribe := a.Session.OnChange(func(ev session.Event) {
		if ev.Kind == session.EventCleared && ev.Reason == session.ReasonExpired {
			printWarning(w, "Your session expired. Run 'lavacar login' to sign in again.")
		}
	})
	a.closers = append(a.closers, func() error {
		unsubscribe()
		return nil
	})
}

// Close releases the device stores
func (a *App) Close() error {
	var firstErr error
	for _, closeFn := range a.closers {
		if err := closeFn(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	a.closers = nil
	return firstErr
}
