package commands

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"github.com/lavacar-app/lavacar/internal/auth"
	"github.com/lavacar-app/lavacar/internal/config"
	"github.com/lavacar-app/lavacar/internal/session"
	"github.com/lavacar-app/lavacar/internal/storage"
)

func testConfig(t *testing.T, backend string) *config.Config {
	return &config.Config{
		API: config.APIConfig{
			Environment: config.EnvDevelopment,
			BaseURL:     "http://127.0.0.1:0",
			Timeout:     time.Second,
		},
		Storage: config.StorageConfig{
			DataDir:      t.TempDir(),
			TokenBackend: backend,
		},
	}
}

func TestOpenApp_SessionSurvivesReopen(t *testing.T) {
	keyring.MockInit()

	tests := []struct {
		name    string
		backend string
	}{
		{name: "keyring token store", backend: config.TokenStoreKeyring},
		{name: "sqlite token store", backend: config.TokenStoreSQLite},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("HOME", t.TempDir())
			cfg := testConfig(t, tt.backend)
			ctx := context.Background()

			app, err := OpenApp(cfg, zerolog.Nop())
			require.NoError(t, err)
			require.NoError(t, app.Session.Establish(ctx, "tok-123", session.RoleAgent, map[string]string{"code": "AG-01"}))
			require.NoError(t, app.Close())

			reopened, err := OpenApp(cfg, zerolog.Nop())
			require.NoError(t, err)
			defer reopened.Close()

			token, err := reopened.Session.Token(ctx)
			require.NoError(t, err)
			assert.Equal(t, "tok-123", token)

			role, _, err := reopened.Session.Profile(ctx)
			require.NoError(t, err)
			assert.Equal(t, session.RoleAgent, role)

			require.NoError(t, reopened.Session.Clear(ctx, session.ReasonLogout))
		})
	}
}

func TestWatchExpiry(t *testing.T) {
	cfg := testConfig(t, config.TokenStoreSQLite)
	app := NewApp(cfg, Stores{Secrets: storage.NewMemory(), Data: storage.NewMemory()}, "test-device", zerolog.Nop())
	defer app.Close()

	var out bytes.Buffer
	app.WatchExpiry(&out)
	ctx := context.Background()

	require.NoError(t, app.Session.Establish(ctx, "tok", session.RoleUser, nil))
	require.NoError(t, app.Session.Clear(ctx, session.ReasonLogout))
	assert.Empty(t, out.String())

	require.NoError(t, app.Session.Establish(ctx, "tok", session.RoleUser, nil))
	require.NoError(t, app.Session.Clear(ctx, session.ReasonExpired))
	assert.Contains(t, out.String(), "session expired")
}

func TestGuardError(t *testing.T) {
	tests := []struct {
		name     string
		decision auth.Decision
		want     error
		contains string
	}{
		{
			name:     "no token",
			decision: auth.Decision{Redirect: auth.RouteLogin, Outcome: auth.Outcome{Reason: auth.ReasonNoToken}},
			want:     ErrNotSignedIn,
			contains: "lavacar login",
		},
		{
			name:     "unreachable",
			decision: auth.Decision{Redirect: auth.RouteLogin, Outcome: auth.Outcome{Reason: auth.ReasonUnreachable}},
			want:     ErrNotSignedIn,
			contains: "could not reach http://api.test",
		},
		{
			name:     "agent on user command",
			decision: auth.Decision{Redirect: auth.RouteAgentHome},
			want:     ErrWrongRole,
			contains: "agent",
		},
		{
			name:     "user on agent command",
			decision: auth.Decision{Redirect: auth.RouteUserHome},
			want:     ErrWrongRole,
			contains: "customer",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := guardError(tt.decision, "http://api.test")
			assert.True(t, errors.Is(err, tt.want))
			assert.Contains(t, err.Error(), tt.contains)
		})
	}
}

func TestFailure(t *testing.T) {
	err := failure("The given data was invalid.", map[string][]string{
		"password": {"The password must be at least 8 characters."},
		"email":    {"The email has already been taken."},
	})
	assert.Equal(t, "The given data was invalid.\n"+
		"  email: The email has already been taken.\n"+
		"  password: The password must be at least 8 characters.", err.Error())

	assert.EqualError(t, failure("Invalid credentials", nil), "Invalid credentials")
}

func TestParseID(t *testing.T) {
	id, err := parseID("42")
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	for _, raw := range []string{"", "0", "-1", "abc"} {
		_, err := parseID(raw)
		assert.Error(t, err, raw)
	}
}
