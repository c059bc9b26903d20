package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	TokenStoreKeyring = "keyring"
	TokenStoreSQLite  = "sqlite"

	defaultTimeout         = 10 * time.Second
	defaultRefreshSchedule = "@every 30m"
	defaultProbeSchedule   = "@every 15s"
	defaultDevServerAddr   = ":8000"
)

// Environments maps an environment name to its API base URL
var Environments = map[string]string{
	EnvDevelopment: "https://lavacar-back-office.codigtivo.com/api/v1",
	EnvProduction:  "https://api.lavacar.com/api/v1",
}

// Config holds all configuration for the application
type Config struct {
	// API Configuration
	API APIConfig

	// Local storage Configuration
	Storage StorageConfig

	// Session Configuration
	Session SessionConfig

	// Network observer Configuration
	Network NetworkConfig

	// Logging Configuration
	Logging LoggingConfig

	// Development stub server Configuration
	DevServer DevServerConfig
}

// APIConfig holds backend connection settings
type APIConfig struct {
	Environment string
	BaseURL     string
	Timeout     time.Duration
}

// StorageConfig holds device storage settings
type StorageConfig struct {
	DataDir      string // directory holding the SQLite store
	TokenBackend string // keyring, sqlite
}

// SessionConfig holds session resolution settings
type SessionConfig struct {
	KeepTokenWhenUnreachable bool
	RefreshSchedule          string // cron expression for keepalive refreshes
}

// NetworkConfig holds connectivity observer settings
type NetworkConfig struct {
	ProbeSchedule string // cron expression
}

// LoggingConfig holds logging-related configuration
type LoggingConfig struct {
	Level  string
	Format string // json, console
}

// DevServerConfig holds settings for the stub backend
type DevServerConfig struct {
	Addr      string
	JWTSecret string
	SeedFile  string // empty uses the embedded fixtures
}

// DatabasePath returns the SQLite file used for device storage in env.
// Each environment keeps its own file.
func (s StorageConfig) DatabasePath(env string) string {
	return filepath.Join(s.DataDir, "lavacar-"+env+".sqlite")
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env files (fails silently if files don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	env := strings.ToLower(getEnv("LAVACAR_ENV", EnvDevelopment))
	baseURL, ok := Environments[env]
	if !ok {
		return nil, fmt.Errorf("unknown LAVACAR_ENV %q (expected %s or %s)", env, EnvDevelopment, EnvProduction)
	}
	if v := os.Getenv("LAVACAR_API_URL"); v != "" {
		baseURL = v
	}

	timeout, err := getDuration("LAVACAR_API_TIMEOUT", defaultTimeout)
	if err != nil {
		return nil, err
	}

	dataDir := os.Getenv("LAVACAR_DATA_DIR")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		dataDir = filepath.Join(homeDir, ".local", "share", "lavacar")
	}

	tokenBackend := strings.ToLower(getEnv("LAVACAR_TOKEN_STORE", TokenStoreKeyring))
	if tokenBackend != TokenStoreKeyring && tokenBackend != TokenStoreSQLite {
		return nil, fmt.Errorf("invalid LAVACAR_TOKEN_STORE %q (expected %s or %s)", tokenBackend, TokenStoreKeyring, TokenStoreSQLite)
	}

	keepToken := false
	if v := os.Getenv("LAVACAR_KEEP_TOKEN_OFFLINE"); v != "" {
		keepToken, err = strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid LAVACAR_KEEP_TOKEN_OFFLINE: %w", err)
		}
	}

	return &Config{
		API: APIConfig{
			Environment: env,
			BaseURL:     strings.TrimRight(baseURL, "/"),
			Timeout:     timeout,
		},
		Storage: StorageConfig{
			DataDir:      dataDir,
			TokenBackend: tokenBackend,
		},
		Session: SessionConfig{
			KeepTokenWhenUnreachable: keepToken,
			RefreshSchedule:          getEnv("LAVACAR_REFRESH_SCHEDULE", defaultRefreshSchedule),
		},
		Network: NetworkConfig{
			ProbeSchedule: getEnv("LAVACAR_PROBE_SCHEDULE", defaultProbeSchedule),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "warn"),
			Format: getEnv("LOG_FORMAT", "console"),
		},
		DevServer: DevServerConfig{
			Addr:      getEnv("DEVSERVER_ADDR", defaultDevServerAddr),
			JWTSecret: getEnv("DEVSERVER_JWT_SECRET", "lavacar-dev-secret"),
			SeedFile:  os.Getenv("DEVSERVER_SEED_FILE"),
		},
	}, nil
}

// UseEnvironment switches the API base URL to a named environment,
// unless LAVACAR_API_URL pins an explicit URL.
func (c *Config) UseEnvironment(name string) error {
	baseURL, ok := Environments[name]
	if !ok {
		return fmt.Errorf("unknown environment %q", name)
	}
	c.API.Environment = name
	if os.Getenv("LAVACAR_API_URL") == "" {
		c.API.BaseURL = baseURL
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// getDuration accepts either a Go duration ("15s") or a plain number of milliseconds
func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	if ms, err := strconv.Atoi(v); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
