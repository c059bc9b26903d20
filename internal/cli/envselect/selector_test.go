package envselect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lavacar-app/lavacar/internal/cli/userconfig"
	"github.com/lavacar-app/lavacar/internal/config"
)

func newConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("LAVACAR_ENV", "")
	t.Setenv("LAVACAR_API_URL", "")
	cfg, err := config.Load()
	require.NoError(t, err)
	return cfg
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name     string
		saved    string
		flag     string
		wantEnv  string
		wantSave string
	}{
		{name: "default", wantEnv: config.EnvDevelopment},
		{name: "saved selection", saved: config.EnvProduction, wantEnv: config.EnvProduction, wantSave: config.EnvProduction},
		{name: "flag wins", saved: config.EnvProduction, flag: config.EnvDevelopment, wantEnv: config.EnvDevelopment, wantSave: config.EnvProduction},
		{name: "stale selection is cleared", saved: "staging", wantEnv: config.EnvDevelopment, wantSave: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := newConfig(t)
			if tt.saved != "" {
				require.NoError(t, userconfig.SetEnvironment(tt.saved))
			}

			require.NoError(t, Resolve(cfg, tt.flag))
			assert.Equal(t, tt.wantEnv, cfg.API.Environment)
			assert.Equal(t, config.Environments[tt.wantEnv], cfg.API.BaseURL)

			saved, err := userconfig.GetEnvironment()
			require.NoError(t, err)
			assert.Equal(t, tt.wantSave, saved)
		})
	}
}

func TestResolve_UnknownFlag(t *testing.T) {
	cfg := newConfig(t)
	assert.Error(t, Resolve(cfg, "staging"))
}

func TestSelect(t *testing.T) {
	newConfig(t)

	require.NoError(t, Select(config.EnvProduction))
	saved, err := userconfig.GetEnvironment()
	require.NoError(t, err)
	assert.Equal(t, config.EnvProduction, saved)

	assert.Error(t, Select("staging"))
	assert.Equal(t, []string{config.EnvDevelopment, config.EnvProduction}, Names())
}
