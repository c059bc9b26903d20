package vehicles

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lavacar-app/lavacar/internal/api"
	"github.com/lavacar-app/lavacar/internal/session"
	"github.com/lavacar-app/lavacar/internal/storage"
)

func newTestService(t *testing.T, handler http.HandlerFunc) (*Service, *session.Session) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	sess := session.New(storage.NewMemory(), storage.NewMemory(), zerolog.Nop())
	require.NoError(t, sess.Establish(context.Background(), "tok", session.RoleUser, nil))
	return NewService(api.New(server.URL, sess, api.Options{Logger: zerolog.Nop()})), sess
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestCatalog(t *testing.T) {
	service, _ := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"), "catalog endpoints are public")
		switch r.URL.Path {
		case "/public/vehicles/brands":
			writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": []Brand{{ID: 1, Name: "Toyota"}, {ID: 2, Name: "Nissan"}}})
		case "/public/vehicles/models":
			assert.Equal(t, "1", r.URL.Query().Get("brand_id"))
			writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": map[string]any{
				"brand":  map[string]any{"id": 1, "name": "Toyota"},
				"models": []Model{{ID: 10, Name: "Corolla", BrandID: 1, VehicleTypeID: 3, VehicleTypeName: "Sedan"}},
			}})
		case "/public/vehicles/types":
			writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": []Type{{ID: 3, Name: "Sedan"}}})
		default:
			http.NotFound(w, r)
		}
	})
	ctx := context.Background()

	brands, err := service.Brands(ctx)
	require.NoError(t, err)
	assert.Len(t, brands, 2)
	assert.Equal(t, "Toyota", brands[0].Name)

	models, err := service.Models(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Toyota", models.Brand.Name)
	require.Len(t, models.Models, 1)
	assert.Equal(t, "Sedan", models.Models[0].VehicleTypeName)

	types, err := service.Types(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Type{{ID: 3, Name: "Sedan"}}, types)
}

func TestAccountVehicles(t *testing.T) {
	var created CreateRequest
	service, _ := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/account/vehicles":
			writeJSON(w, http.StatusOK, map[string]any{"data": []Vehicle{{ID: 1, LicensePlate: "ABC123", IsPrimary: true, Points: 40}}})
		case r.Method == http.MethodGet && r.URL.Path == "/account/vehicles/primary":
			writeJSON(w, http.StatusOK, map[string]any{"data": Vehicle{ID: 1, LicensePlate: "ABC123", IsPrimary: true}})
		case r.Method == http.MethodPost && r.URL.Path == "/account/vehicles":
			_ = json.NewDecoder(r.Body).Decode(&created)
			writeJSON(w, http.StatusCreated, map[string]any{"data": Vehicle{ID: 2, LicensePlate: created.LicensePlate}})
		default:
			http.NotFound(w, r)
		}
	})
	ctx := context.Background()

	list, err := service.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 40, list[0].Points)

	primary, err := service.Primary(ctx)
	require.NoError(t, err)
	assert.True(t, primary.IsPrimary)

	vehicle, err := service.Create(ctx, CreateRequest{BrandID: "1", ModelID: "10", TypeID: "3", Year: "2021", LicensePlate: "XYZ789"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), vehicle.ID)
	assert.Equal(t, "XYZ789", created.LicensePlate)
	assert.Equal(t, "2021", created.Year)
}

func TestAccountVehicles_ExpiredSession(t *testing.T) {
	service, sess := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "Unauthenticated."})
	})
	ctx := context.Background()

	_, err := service.List(ctx)
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, api.StatusOf(err))

	token, err := sess.Token(ctx)
	require.NoError(t, err)
	assert.Empty(t, token)
}
