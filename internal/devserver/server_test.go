package devserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lavacar-app/lavacar/internal/agent"
	"github.com/lavacar-app/lavacar/internal/api"
	"github.com/lavacar-app/lavacar/internal/auth"
	"github.com/lavacar-app/lavacar/internal/config"
	"github.com/lavacar-app/lavacar/internal/rewards"
	"github.com/lavacar-app/lavacar/internal/session"
	"github.com/lavacar-app/lavacar/internal/storage"
	"github.com/lavacar-app/lavacar/internal/ticket"
	"github.com/lavacar-app/lavacar/internal/vehicles"
)

type harness struct {
	server  *Server
	http    *httptest.Server
	session *session.Session
	client  *api.Client
	auth    *auth.Service
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	seed, err := DefaultSeed()
	require.NoError(t, err)

	srv, err := New(config.DevServerConfig{JWTSecret: "test-secret"}, seed, zerolog.Nop())
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	sess := session.New(storage.NewMemory(), storage.NewMemory(), zerolog.Nop())
	client := api.New(ts.URL, sess, api.Options{Timeout: 5 * time.Second, DeviceID: "test-device", Logger: zerolog.Nop()})
	return &harness{
		server:  srv,
		http:    ts,
		session: sess,
		client:  client,
		auth:    auth.NewService(client, sess, zerolog.Nop()),
	}
}

func (h *harness) login(t *testing.T, creds auth.Credentials) {
	t.Helper()
	res, err := h.auth.Login(context.Background(), creds)
	require.NoError(t, err)
	require.True(t, res.Success, res.FirstError())
}

func (h *harness) rawRequest(t *testing.T, method, path, token, body string, headers map[string]string) (int, map[string]any, http.Header) {
	t.Helper()
	req, err := http.NewRequest(method, h.http.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	decoded := map[string]any{}
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	return resp.StatusCode, decoded, resp.Header
}

func TestHealthCheck(t *testing.T) {
	h := newHarness(t)
	status, body, _ := h.rawRequest(t, http.MethodGet, "/health", "", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "online", body["status"])
}

func TestTokenMiddleware(t *testing.T) {
	h := newHarness(t)
	agentToken, err := h.server.issuer.Issue(1, roleAgent)
	require.NoError(t, err)
	unknownUser, err := h.server.issuer.Issue(999, roleUser)
	require.NoError(t, err)

	foreign, err := NewIssuer("another-secret")
	require.NoError(t, err)
	forged, err := foreign.Issue(1, roleUser)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
	}{
		{name: "missing header", header: ""},
		{name: "wrong scheme", header: "Basic abc"},
		{name: "empty bearer", header: "Bearer "},
		{name: "garbage token", header: "Bearer not-a-jwt"},
		{name: "foreign signature", header: "Bearer " + forged},
		{name: "agent token on user route", header: "Bearer " + agentToken},
		{name: "unknown account", header: "Bearer " + unknownUser},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body, _ := h.rawRequest(t, http.MethodGet, "/account", "", "", map[string]string{"Authorization": tt.header})
			assert.Equal(t, http.StatusUnauthorized, status)
			assert.Equal(t, false, body["success"])
			assert.Equal(t, "Unauthenticated.", body["message"])
		})
	}
}

func TestUserFlow(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	res, err := h.auth.Login(ctx, auth.Credentials{Email: "ana@example.com", Password: "wrong-password"})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, http.StatusUnauthorized, res.Status)
	assert.Equal(t, "Invalid credentials", res.FirstError())

	h.login(t, auth.Credentials{Email: "ana@example.com", Password: "secret123"})

	outcome, err := auth.NewResolver(h.auth, h.session, auth.ResolverOptions{}, zerolog.Nop()).Resolve(ctx)
	require.NoError(t, err)
	assert.True(t, outcome.Authenticated)
	assert.Equal(t, session.RoleUser, outcome.Role)

	vs := vehicles.NewService(h.client)
	list, err := vs.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "ABC123", list[0].LicensePlate)
	assert.True(t, list[0].IsPrimary)

	primary, err := vs.Primary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 450, primary.AvailablePoints)

	rs := rewards.NewService(h.client)
	coupons, err := rs.Coupons(ctx)
	require.NoError(t, err)
	assert.Len(t, coupons.Data, 3)
	assert.Equal(t, 3, coupons.Meta.Total)
	require.NotNil(t, coupons.Meta.FilteredForVehicle)
	assert.Equal(t, "ABC123", coupons.Meta.FilteredForVehicle.LicensePlate)

	recent, err := rs.RecentCoupons(ctx)
	require.NoError(t, err)
	assert.Len(t, recent.Data, 2)
	assert.True(t, recent.Meta.IsRecent)

	detail, err := rs.Coupon(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, "Pickup detail", detail.Title)
	assert.True(t, detail.AppliesToYourVehicle)

	_, err = rs.Coupon(ctx, 99)
	assert.Equal(t, http.StatusNotFound, api.StatusOf(err))

	redemptions, err := rs.Redemptions(ctx)
	require.NoError(t, err)
	require.Len(t, redemptions.Data, 2)
	for _, r := range redemptions.Data {
		assert.True(t, r.UserCanRedeem, r.Title)
	}

	alerts, err := rs.Alerts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, alerts.Meta.CouponAlerts)
	require.NotNil(t, alerts.Data[1].CouponData)
	assert.Equal(t, 300, alerts.Data[1].CouponData.Points)

	banners, err := rs.Banners(ctx)
	require.NoError(t, err)
	require.Len(t, banners, 3)
	assert.Equal(t, "Refer a friend", banners[0].Title)
	kind, link := banners[0].Link()
	assert.Equal(t, rewards.LinkExternal, kind)
	assert.Equal(t, "https://lavacar.com/refer", link)

	// An agent endpoint is closed to a user token and tears the session down
	_, err = agent.NewService(h.client, zerolog.Nop()).Profile(ctx)
	assert.Equal(t, http.StatusUnauthorized, api.StatusOf(err))
	token, err := h.session.Token(ctx)
	require.NoError(t, err)
	assert.Empty(t, token)
}

func TestCatalog(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	vs := vehicles.NewService(h.client)

	brands, err := vs.Brands(ctx)
	require.NoError(t, err)
	assert.Len(t, brands, 3)

	types, err := vs.Types(ctx)
	require.NoError(t, err)
	assert.Len(t, types, 3)

	models, err := vs.Models(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Toyota", models.Brand.Name)
	require.Len(t, models.Models, 2)
	assert.Equal(t, "Sedan", models.Models[0].VehicleTypeName)

	_, err = vs.Models(ctx, 42)
	assert.Equal(t, http.StatusNotFound, api.StatusOf(err))
}

func TestAgentClaimFlow(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.login(t, auth.Credentials{Role: session.RoleAgent, Code: "ag-01", Password: "agent123"})

	as := agent.NewService(h.client, zerolog.Nop())
	profile, err := as.Profile(ctx)
	require.NoError(t, err)
	assert.Equal(t, "AG-01", profile.Agent.Code)
	assert.Zero(t, profile.Stats.TotalTransactions)

	res, err := as.Claim(ctx, ticket.ForCoupon("abc123", 1))
	require.NoError(t, err)
	assert.Equal(t, ticket.KindCoupon, res.Kind)
	assert.Equal(t, "Full wash", res.Title())
	assert.Equal(t, 600, res.Vehicle.AvailablePoints)
	assert.Equal(t, "ana@example.com", res.Account.Email)

	res, err = as.ClaimRedemption(ctx, "ABC123", "1")
	require.NoError(t, err)
	assert.Equal(t, "Free wax", res.Title())
	assert.Equal(t, 300, res.Vehicle.AvailablePoints)
	assert.Equal(t, 600, res.Vehicle.Points)

	_, err = as.ClaimRedemption(ctx, "XYZ789", "1")
	assert.Equal(t, http.StatusUnprocessableEntity, api.StatusOf(err))

	_, err = as.ClaimCoupon(ctx, "NOPE00", "1")
	assert.Equal(t, http.StatusNotFound, api.StatusOf(err))

	list, err := as.Transactions(ctx, 0)
	require.NoError(t, err)
	require.Len(t, list.Data, 2)
	assert.Equal(t, "redemption_claim", list.Data[0].TransactionType)
	assert.Equal(t, 2, list.Meta.Total)

	recent, err := as.RecentTransactions(ctx)
	require.NoError(t, err)
	assert.Len(t, recent, 2)

	profile, err = as.Profile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, profile.Stats.TotalTransactions)
	assert.Equal(t, 1, profile.Stats.TotalCouponTransactions)

	// The customer sees the claims in the point history
	user := newHarnessSharing(t, h)
	user.login(t, auth.Credentials{Email: "ana@example.com", Password: "secret123"})
	history, err := rewards.NewService(user.client).History(ctx, 0)
	require.NoError(t, err)
	require.Len(t, history.Data, 2)
	assert.Equal(t, "6", history.Period.Months.String())
	assert.Equal(t, "150", history.Stats.TotalPointsEarned.String())
	assert.Equal(t, "300", history.Stats.TotalPointsSpent.String())
	assert.Equal(t, "-150", history.Stats.NetPoints.String())
}

// newHarnessSharing returns a second client session against the same server
func newHarnessSharing(t *testing.T, h *harness) *harness {
	t.Helper()
	sess := session.New(storage.NewMemory(), storage.NewMemory(), zerolog.Nop())
	client := api.New(h.http.URL, sess, api.Options{Timeout: 5 * time.Second, Logger: zerolog.Nop()})
	return &harness{
		server:  h.server,
		http:    h.http,
		session: sess,
		client:  client,
		auth:    auth.NewService(client, sess, zerolog.Nop()),
	}
}

func TestRegisterAndVerify(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	req := auth.RegisterRequest{
		FirstName:            "Marta",
		LastName:             "Solís",
		Email:                "marta@example.com",
		Password:             "secret123",
		PasswordConfirmation: "secret123",
		VehicleBrandID:       "2",
		VehicleModelID:       "21",
		VehicleTypeID:        "1",
		VehicleYear:          "2019",
		LicensePlate:         "mrt001",
		Phone:                "88882222",
	}
	reg := h.auth.Register(ctx, req)
	require.True(t, reg.Success, reg.FirstError())
	assert.True(t, reg.Data.VerificationRequired)
	assert.Equal(t, http.StatusCreated, reg.Status)

	// Same email with other details, so it is not a replay of the first request
	dupReq := req
	dupReq.Phone = "88883333"
	dupReq.LicensePlate = "mrt002"
	dup := h.auth.Register(ctx, dupReq)
	assert.False(t, dup.Success)
	assert.Equal(t, http.StatusUnprocessableEntity, dup.Status)
	assert.Contains(t, dup.Errors, "email")

	res, err := h.auth.Login(ctx, auth.Credentials{Email: "marta@example.com", Password: "secret123"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, res.Status)

	code, found := h.server.Store().PendingCode("marta@example.com")
	require.True(t, found)

	verified, err := h.auth.VerifyEmail(ctx, auth.VerifyEmailRequest{Email: "marta@example.com", Code: code})
	require.NoError(t, err)
	require.True(t, verified.Success)

	primary, err := vehicles.NewService(h.client).Primary(ctx)
	require.NoError(t, err)
	assert.Equal(t, "MRT001", primary.LicensePlate)
	assert.Equal(t, "Nissan", primary.Brand)
	assert.Equal(t, "Sentra", primary.Model)
	assert.Equal(t, 2019, primary.Year)
}

func TestRepeatedSubmitIsReplayed(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.login(t, auth.Credentials{Email: "ana@example.com", Password: "secret123"})

	service := vehicles.NewService(h.client)
	req := vehicles.CreateRequest{
		BrandID:      "2",
		ModelID:      "21",
		TypeID:       "1",
		Year:         "2019",
		LicensePlate: "TAP001",
	}

	first, err := service.Create(ctx, req)
	require.NoError(t, err)
	second, err := service.Create(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	list, err := service.List(ctx)
	require.NoError(t, err)
	var plates []string
	for _, v := range list {
		plates = append(plates, v.LicensePlate)
	}
	assert.ElementsMatch(t, []string{"ABC123", "BCD234", "TAP001"}, plates)
}

func TestPasswordReset(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	forgot := h.auth.ForgotPassword(ctx, "nobody@example.com")
	require.True(t, forgot.Success)

	token, found := h.server.Store().StartPasswordReset("luis@example.com")
	require.True(t, found)

	bad := h.auth.ResetPassword(ctx, "not-a-token", "newsecret1")
	assert.False(t, bad.Success)

	reset := h.auth.ResetPassword(ctx, token, "newsecret1")
	require.True(t, reset.Success, reset.FirstError())

	h.login(t, auth.Credentials{Email: "luis@example.com", Password: "newsecret1"})

	// Reset tokens are single use
	again := h.auth.ResetPassword(ctx, token, "another-secret")
	assert.False(t, again.Success)
}

func TestRefreshIssuesNewToken(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.login(t, auth.Credentials{Role: session.RoleAgent, Code: "AG-02", Password: "agent123"})

	before, err := h.session.Token(ctx)
	require.NoError(t, err)

	res, err := h.auth.Refresh(ctx)
	require.NoError(t, err)
	require.True(t, res.Success)

	after, err := h.session.Token(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, before, after)

	info := auth.InspectToken(after)
	assert.Equal(t, "agent", info.Role)
	assert.Equal(t, "2", info.Subject)
	assert.False(t, info.Expired(time.Now()))
}

func TestIdempotentReplay(t *testing.T) {
	h := newHarness(t)
	token, err := h.server.issuer.Issue(2, roleUser)
	require.NoError(t, err)

	body := `{"vehicle_brand_id":"1","vehicle_model_id":"11","vehicle_type_id":"2","vehicle_year":"2021","license_plate":"HLX100"}`
	key := map[string]string{"Idempotency-Key": "01J0000000000000000000000A"}

	status, first, headers := h.rawRequest(t, http.MethodPost, "/account/vehicles", token, body, key)
	require.Equal(t, http.StatusCreated, status)
	assert.Empty(t, headers.Get("Idempotent-Replayed"))

	status, second, headers := h.rawRequest(t, http.MethodPost, "/account/vehicles", token, body, key)
	assert.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "true", headers.Get("Idempotent-Replayed"))
	assert.Equal(t, first, second)

	status, conflict, _ := h.rawRequest(t, http.MethodPost, "/account/vehicles", token, body, map[string]string{"Idempotency-Key": "01J0000000000000000000000B"})
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Contains(t, conflict["errors"], "license_plate")
}

func TestValidationErrors(t *testing.T) {
	h := newHarness(t)

	status, body, _ := h.rawRequest(t, http.MethodPost, "/auth/login", "", `{"email":"nope"}`, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	errs, ok := body["errors"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, errs, "email")
	assert.Contains(t, errs, "password")

	status, _, _ = h.rawRequest(t, http.MethodPost, "/auth/login", "", `{`, nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestParseSeed(t *testing.T) {
	seed, err := ParseSeed([]byte(`
users:
  - id: 7
    email: Someone@Example.com
    password: pw
    vehicles:
      - {id: 70, license_plate: aaa111, primary: true, points: 5, available_points: 5}
agents:
  - {id: 3, code: ag-09, password: pw}
`))
	require.NoError(t, err)
	require.Len(t, seed.Users, 1)
	assert.Equal(t, "aaa111", seed.Users[0].Vehicles[0].LicensePlate)

	store, err := NewStore(seed)
	require.NoError(t, err)

	acc, err := store.AuthenticateUser("someone@example.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, int64(7), acc.ID)

	v, err := store.PrimaryVehicle(7)
	require.NoError(t, err)
	assert.Equal(t, "AAA111", v.LicensePlate)

	_, err = store.AuthenticateAgent("AG-09", "wrong")
	assert.ErrorIs(t, err, ErrInvalidPassword)

	_, err = ParseSeed([]byte("users: [unclosed"))
	assert.Error(t, err)
}
