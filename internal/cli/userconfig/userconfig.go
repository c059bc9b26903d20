package userconfig

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

const (
	configDirName  = "lavacar"
	configFileName = "config.json"
)

// UserConfig represents the user's local configuration stored in ~/.config/lavacar/config.json
type UserConfig struct {
	Environment string `json:"environment,omitempty"`
	DeviceID    string `json:"device_id,omitempty"`
}

// GetConfigPath returns the path to the user config file
func GetConfigPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	configDir := filepath.Join(homeDir, ".config", configDirName)
	return filepath.Join(configDir, configFileName), nil
}

// Load reads the user configuration file. A missing file is an empty config.
func Load() (*UserConfig, error) {
	configPath, err := GetConfigPath()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(configPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return &UserConfig{}, nil
	case err != nil:
		return nil, fmt.Errorf("failed to read user config file: %w", err)
	}

	var cfg UserConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse user config file %s: %w", configPath, err)
	}
	return &cfg, nil
}

// Save writes the user configuration through a temporary file so a crash
// never leaves a truncated config behind
func Save(cfg *UserConfig) error {
	configPath, err := GetConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(configPath), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal user config: %w", err)
	}

	tmp := configPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write user config file: %w", err)
	}
	if err := os.Rename(tmp, configPath); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to replace user config file: %w", err)
	}
	return nil
}

// SetEnvironment updates the selected environment and saves the config
func SetEnvironment(env string) error {
	cfg, err := Load()
	if err != nil {
		return err
	}

	cfg.Environment = env
	return Save(cfg)
}

// GetEnvironment returns the selected environment, or "" when none is saved
func GetEnvironment() (string, error) {
	cfg, err := Load()
	if err != nil {
		return "", err
	}
	return cfg.Environment, nil
}

// DeviceID returns the identifier sent with every request, generating and
// saving one on first use. A saved value that is not a UUID is replaced.
func DeviceID() (string, error) {
	cfg, err := Load()
	if err != nil {
		return "", err
	}
	if _, err := uuid.Parse(cfg.DeviceID); err == nil {
		return cfg.DeviceID, nil
	}

	cfg.DeviceID = uuid.NewString()
	if err := Save(cfg); err != nil {
		return "", err
	}
	return cfg.DeviceID, nil
}
