package rewards

import (
	"context"
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

func newTestService(t *testing.T, routes map[string]string) *Service {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.URL.Path
		if r.URL.RawQuery != "" {
			key += "?" + r.URL.RawQuery
		}
		body, ok := routes[key]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"success":false,"message":"Not found"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)

	sess := session.New(storage.NewMemory(), storage.NewMemory(), zerolog.Nop())
	require.NoError(t, sess.Establish(context.Background(), "tok", session.RoleUser, nil))
	return NewService(api.New(server.URL, sess, api.Options{Logger: zerolog.Nop()}))
}

func TestCoupons(t *testing.T) {
	service := newTestService(t, map[string]string{
		"/coupons": `{"success":true,"data":[{"id":1,"title":"Full wash","price":"15000.00","points":150,"is_valid":true,"expiration_date":null}],
			"meta":{"limit":20,"total":1,"is_recent":false,"filtered_for_vehicle":{"license_plate":"ABC123","brand":"Toyota","type":"Sedan"}}}`,
		"/coupons/recent": `{"success":true,"data":[],"meta":{"limit":5,"total":0,"is_recent":true}}`,
		"/coupons/1": `{"success":true,"data":{"id":1,"title":"Full wash","price":"15000.00","points":150,
			"applies_to_your_vehicle":true,"your_vehicle":{"license_plate":"ABC123","brand":"Toyota","type":"Sedan"}}}`,
	})
	ctx := context.Background()

	all, err := service.Coupons(ctx)
	require.NoError(t, err)
	require.Len(t, all.Data, 1)
	assert.Equal(t, "15000.00", all.Data[0].Price)
	assert.Nil(t, all.Data[0].ExpirationDate)
	assert.Equal(t, 1, all.Meta.Total)
	require.NotNil(t, all.Meta.FilteredForVehicle)
	assert.Equal(t, "ABC123", all.Meta.FilteredForVehicle.LicensePlate)

	recent, err := service.RecentCoupons(ctx)
	require.NoError(t, err)
	assert.Empty(t, recent.Data)
	assert.True(t, recent.Meta.IsRecent)

	detail, err := service.Coupon(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Full wash", detail.Title)
	assert.True(t, detail.AppliesToYourVehicle)
	require.NotNil(t, detail.YourVehicle)
	assert.Equal(t, "Sedan", detail.YourVehicle.Type)

	_, err = service.Coupon(ctx, 99)
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, api.StatusOf(err))
	assert.Contains(t, err.Error(), "Not found")
}

func TestRedemptions(t *testing.T) {
	service := newTestService(t, map[string]string{
		"/redemptions": `{"success":true,"data":[{"id":4,"title":"Free wax","points_required":300,"user_can_redeem":false}],"meta":{"limit":20,"total":1}}`,
	})

	list, err := service.Redemptions(context.Background())
	require.NoError(t, err)
	require.Len(t, list.Data, 1)
	assert.Equal(t, 300, list.Data[0].PointsRequired)
	assert.False(t, list.Data[0].UserCanRedeem)
}

func TestHistory(t *testing.T) {
	service := newTestService(t, map[string]string{
		"/account/transactions/recent?months=6": `{"success":true,"data":[{"id":1,"transaction_type":"coupon","points_amount":150,"formatted_points":"+150",
			"vehicle":{"license_plate":"ABC123"},"related_item":{"type":"coupon","id":1,"points":150,"description":null}}],
			"period":{"months":"6","from_date":"2025-01-01","to_date":"2025-06-30"},
			"stats":{"total_transactions":1,"total_points_earned":"150","total_points_spent":0,"net_points":150},
			"pagination":{"current_page":1,"last_page":1,"per_page":20,"total":1}}`,
		"/account/transactions/recent?months=12": `{"success":true,"data":[],"period":{"months":12},"stats":{},"pagination":{}}`,
	})
	ctx := context.Background()

	history, err := service.History(ctx, 0)
	require.NoError(t, err)
	require.Len(t, history.Data, 1)
	assert.Equal(t, "ABC123", history.Data[0].Vehicle.LicensePlate)
	require.NotNil(t, history.Data[0].RelatedItem.Points)
	assert.Equal(t, 150, *history.Data[0].RelatedItem.Points)
	assert.Equal(t, "150", history.Stats.TotalPointsEarned.String())
	assert.Equal(t, "6", history.Period.Months.String())

	history, err = service.History(ctx, 12)
	require.NoError(t, err)
	assert.Empty(t, history.Data)
}

func TestAlerts(t *testing.T) {
	service := newTestService(t, map[string]string{
		"/alerts": `{"success":true,"data":[{"id":1,"type":"coupon","title":"2x1","priority":1,"coupon_data":{"price":"5000","points":50}},
			{"id":2,"type":"alert","title":"Closed on Sunday","priority":2,"link_url":null}],
			"meta":{"total":2,"normal_alerts":1,"coupon_alerts":1,"ordered_by":"priority"}}`,
	})

	alerts, err := service.Alerts(context.Background())
	require.NoError(t, err)
	require.Len(t, alerts.Data, 2)
	require.NotNil(t, alerts.Data[0].CouponData)
	assert.Equal(t, 50, alerts.Data[0].CouponData.Points)
	assert.Nil(t, alerts.Data[1].LinkURL)
	assert.Equal(t, "priority", alerts.Meta.OrderedBy)
}

func TestBanners_SortedByPosition(t *testing.T) {
	service := newTestService(t, map[string]string{
		"/banners": `{"success":true,"data":[
			{"id":1,"title":"c","order_position":3},
			{"id":2,"title":"a","order_position":1},
			{"id":3,"title":"b","order_position":2}],
			"meta":{"total":3,"active_banners":3}}`,
	})

	banners, err := service.Banners(context.Background())
	require.NoError(t, err)
	require.Len(t, banners, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{banners[0].Title, banners[1].Title, banners[2].Title})
}

func TestBanners_Failure(t *testing.T) {
	service := newTestService(t, map[string]string{})

	_, err := service.Banners(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, api.ErrStatus)
}

func TestBanner_Link(t *testing.T) {
	str := func(s string) *string { return &s }
	tests := []struct {
		name     string
		banner   Banner
		wantKind LinkKind
		wantURL  string
	}{
		{name: "no link flag", banner: Banner{HasLink: false, LinkURL: str("https://lavacar.com")}, wantKind: LinkNone},
		{name: "missing url", banner: Banner{HasLink: true}, wantKind: LinkNone},
		{name: "empty url", banner: Banner{HasLink: true, LinkURL: str("")}, wantKind: LinkNone},
		{name: "https", banner: Banner{HasLink: true, LinkURL: str("https://lavacar.com/promo")}, wantKind: LinkExternal, wantURL: "https://lavacar.com/promo"},
		{name: "http", banner: Banner{HasLink: true, LinkURL: str("http://lavacar.com")}, wantKind: LinkExternal, wantURL: "http://lavacar.com"},
		{name: "app route", banner: Banner{HasLink: true, LinkURL: str("/(protected)/(user)/coupons")}, wantKind: LinkInternal, wantURL: "/(protected)/(user)/coupons"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, url := tt.banner.Link()
			assert.Equal(t, tt.wantKind, kind)
			assert.Equal(t, tt.wantURL, url)
		})
	}
}
