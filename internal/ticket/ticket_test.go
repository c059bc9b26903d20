package ticket

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode(t *testing.T) {
	payload, err := Encode(ForCoupon("ABC123", 12))
	require.NoError(t, err)
	assert.JSONEq(t, `{"license_plate":"ABC123","coupon_id":"12"}`, payload)

	payload, err = Encode(ForRedemption("ABC123", 7))
	require.NoError(t, err)
	assert.JSONEq(t, `{"license_plate":"ABC123","redemption_id":"7"}`, payload)

	_, err = Encode(Ticket{LicensePlate: "ABC123"})
	assert.ErrorIs(t, err, ErrInvalidTicket)
}

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    Ticket
		wantErr bool
	}{
		{name: "coupon", payload: `{"license_plate":"ABC123","coupon_id":"12"}`, want: Ticket{LicensePlate: "ABC123", CouponID: "12"}},
		{name: "redemption", payload: `{"license_plate":"ABC123","redemption_id":"7"}`, want: Ticket{LicensePlate: "ABC123", RedemptionID: "7"}},
		{name: "numeric id", payload: `{"license_plate":"ABC123","coupon_id":12}`, want: Ticket{LicensePlate: "ABC123", CouponID: "12"}},
		{name: "surrounding whitespace", payload: "  {\"license_plate\":\" ABC123 \",\"coupon_id\":\"12\"}\n", want: Ticket{LicensePlate: "ABC123", CouponID: "12"}},
		{name: "null other id", payload: `{"license_plate":"ABC123","coupon_id":"12","redemption_id":null}`, want: Ticket{LicensePlate: "ABC123", CouponID: "12"}},
		{name: "not json", payload: `https://lavacar.com`, wantErr: true},
		{name: "missing plate", payload: `{"coupon_id":"12"}`, wantErr: true},
		{name: "missing ids", payload: `{"license_plate":"ABC123"}`, wantErr: true},
		{name: "both ids", payload: `{"license_plate":"ABC123","coupon_id":"1","redemption_id":"2"}`, wantErr: true},
		{name: "object id", payload: `{"license_plate":"ABC123","coupon_id":{"id":1}}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.payload)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidTicket)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTicket_KindAndID(t *testing.T) {
	coupon := ForCoupon("ABC123", 3)
	assert.Equal(t, KindCoupon, coupon.Kind())
	assert.Equal(t, "3", coupon.ID())

	redemption := ForRedemption("ABC123", 4)
	assert.Equal(t, KindRedemption, redemption.Kind())
	assert.Equal(t, "4", redemption.ID())
}
