package cli

import (
	"bytes"
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lavacar-app/lavacar/internal/cli/commands"
	"github.com/lavacar-app/lavacar/internal/config"
	"github.com/lavacar-app/lavacar/internal/devserver"
	"github.com/lavacar-app/lavacar/internal/storage"
)

func newBackend(t *testing.T) *httptest.Server {
	t.Helper()

	seed, err := devserver.DefaultSeed()
	require.NoError(t, err)
	srv, err := devserver.New(config.DevServerConfig{JWTSecret: "test-secret"}, seed, zerolog.Nop())
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

// newTestApp builds an App over memory stores talking to baseURL
func newTestApp(t *testing.T, baseURL string) *commands.App {
	t.Helper()
	t.Setenv("HOME", t.TempDir())

	cfg := &config.Config{
		API: config.APIConfig{
			Environment: config.EnvDevelopment,
			BaseURL:     baseURL,
			Timeout:     5 * time.Second,
		},
		Session: config.SessionConfig{RefreshSchedule: "@every 30m"},
		Network: config.NetworkConfig{ProbeSchedule: "@every 15s"},
	}
	stores := commands.Stores{Secrets: storage.NewMemory(), Data: storage.NewMemory()}
	return commands.NewApp(cfg, stores, "test-device", zerolog.Nop())
}

func run(t *testing.T, app *commands.App, args ...string) (string, error) {
	t.Helper()

	root := NewRootCmd(func(*cobra.Command) (*commands.App, error) { return app, nil })
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)

	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func mustRun(t *testing.T, app *commands.App, args ...string) string {
	t.Helper()
	out, err := run(t, app, args...)
	require.NoError(t, err, out)
	return out
}

func TestVersion(t *testing.T) {
	app := newTestApp(t, "http://127.0.0.1:0")
	out := mustRun(t, app, "version")
	assert.Contains(t, out, "lavacar version dev")
}

func TestLoginStatusLogout(t *testing.T) {
	ts := newBackend(t)
	app := newTestApp(t, ts.URL)

	out := mustRun(t, app, "status")
	assert.Contains(t, out, "Not signed in")

	out = mustRun(t, app, "login", "--email", "ana@example.com", "--password", "secret123")
	assert.Contains(t, out, "Login successful!")
	assert.Contains(t, out, "Ana Mora")
	assert.Contains(t, out, "Role: Customer")

	out = mustRun(t, app, "status")
	assert.Contains(t, out, "Signed in")
	assert.Contains(t, out, "ana@example.com")

	out = mustRun(t, app, "vehicles", "list")
	assert.Contains(t, out, "ABC123")
	assert.Contains(t, out, "BCD234")

	out = mustRun(t, app, "logout")
	assert.Contains(t, out, "Signed out")

	out = mustRun(t, app, "status")
	assert.Contains(t, out, "Not signed in")
}

func TestLoginFailure(t *testing.T) {
	ts := newBackend(t)
	app := newTestApp(t, ts.URL)

	_, err := run(t, app, "login", "--email", "ana@example.com", "--password", "wrong-password")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid credentials")

	token, err := app.Session.Token(context.Background())
	require.NoError(t, err)
	assert.Empty(t, token)
}

func TestGuard(t *testing.T) {
	ts := newBackend(t)
	app := newTestApp(t, ts.URL)

	_, err := run(t, app, "coupons", "list")
	assert.ErrorIs(t, err, commands.ErrNotSignedIn)

	mustRun(t, app, "login", "--agent", "--code", "AG-01", "--password", "agent123")

	_, err = run(t, app, "vehicles", "list")
	assert.ErrorIs(t, err, commands.ErrWrongRole)

	out := mustRun(t, app, "agent", "profile")
	assert.Contains(t, out, "Station North (AG-01)")
}

func TestPublicCatalogNeedsNoSession(t *testing.T) {
	ts := newBackend(t)
	app := newTestApp(t, ts.URL)

	out := mustRun(t, app, "vehicles", "brands")
	assert.Contains(t, out, "Toyota")

	out = mustRun(t, app, "vehicles", "types")
	assert.Contains(t, out, "Sedan")

	_, err := run(t, app, "vehicles", "models", "abc")
	assert.Error(t, err)
}

func TestCouponTicketClaimedByAgent(t *testing.T) {
	ts := newBackend(t)
	customer := newTestApp(t, ts.URL)
	station := newTestApp(t, ts.URL)

	mustRun(t, customer, "login", "--email", "ana@example.com", "--password", "secret123")
	payload := strings.TrimSpace(mustRun(t, customer, "coupons", "qr", "1"))
	assert.Contains(t, payload, `"license_plate":"ABC123"`)
	assert.Contains(t, payload, `"coupon_id":"1"`)

	mustRun(t, station, "login", "--agent", "--code", "AG-01", "--password", "agent123")
	out := mustRun(t, station, "agent", "claim", payload)
	assert.Contains(t, out, "Claimed coupon")
	assert.Contains(t, out, "Ana Mora")
	assert.Contains(t, out, "600 pts")

	out = mustRun(t, station, "agent", "transactions")
	assert.Contains(t, out, "ABC123")

	// Redemption by flags on the same vehicle
	out = mustRun(t, station, "agent", "claim", "--plate", "abc123", "--redemption", "1")
	assert.Contains(t, out, "Claimed redemption")
	assert.Contains(t, out, "300 pts")

	out = mustRun(t, customer, "history")
	assert.Contains(t, out, "ABC123")
}

func TestAgentClaimRejectsBadTicket(t *testing.T) {
	ts := newBackend(t)
	station := newTestApp(t, ts.URL)
	mustRun(t, station, "login", "--agent", "--code", "AG-01", "--password", "agent123")

	_, err := run(t, station, "agent", "claim", "not a ticket")
	assert.Error(t, err)

	_, err = run(t, station, "agent", "claim", "--plate", "ABC123")
	assert.Error(t, err)
}

func TestNotificationPreferences(t *testing.T) {
	app := newTestApp(t, "http://127.0.0.1:0")

	out := mustRun(t, app, "notifications", "status")
	assert.Contains(t, out, "not set")

	out = mustRun(t, app, "notifications", "enable")
	assert.Contains(t, out, "Notifications enabled")
	out = mustRun(t, app, "notifications", "status")
	assert.Contains(t, out, "Notifications: enabled")

	mustRun(t, app, "notifications", "disable")
	out = mustRun(t, app, "notifications", "status")
	assert.Contains(t, out, "Notifications: disabled")

	mustRun(t, app, "notifications", "reset")
	out = mustRun(t, app, "notifications", "status")
	assert.Contains(t, out, "not set")
}

func TestEnvList(t *testing.T) {
	app := newTestApp(t, "http://127.0.0.1:0")

	out := mustRun(t, app, "env")
	assert.Contains(t, out, "* development")
	assert.Contains(t, out, "  production")
}
