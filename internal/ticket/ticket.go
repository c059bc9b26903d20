// Package ticket encodes and parses the QR payload a customer shows at the
// wash so an agent can claim a coupon or a redemption for a vehicle.
package ticket

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidTicket is returned for payloads that are not claim tickets
var ErrInvalidTicket = errors.New("invalid claim ticket")

// Kind says what a ticket claims
type Kind string

const (
	KindCoupon     Kind = "coupon"
	KindRedemption Kind = "redemption"
)

// Ticket identifies one coupon or one redemption for a license plate
type Ticket struct {
	LicensePlate string `json:"license_plate"`
	CouponID     string `json:"coupon_id,omitempty"`
	RedemptionID string `json:"redemption_id,omitempty"`
}

// ForCoupon builds a coupon ticket
func ForCoupon(plate string, couponID int64) Ticket {
	return Ticket{LicensePlate: plate, CouponID: strconv.FormatInt(couponID, 10)}
}

// ForRedemption builds a redemption ticket
func ForRedemption(plate string, redemptionID int64) Ticket {
	return Ticket{LicensePlate: plate, RedemptionID: strconv.FormatInt(redemptionID, 10)}
}

// Kind returns what the ticket claims
func (t Ticket) Kind() Kind {
	if t.CouponID != "" {
		return KindCoupon
	}
	return KindRedemption
}

// ID returns the coupon or redemption id
func (t Ticket) ID() string {
	if t.CouponID != "" {
		return t.CouponID
	}
	return t.RedemptionID
}

// Validate checks that the ticket names a plate and exactly one item
func (t Ticket) Validate() error {
	if strings.TrimSpace(t.LicensePlate) == "" {
		return fmt.Errorf("%w: missing license plate", ErrInvalidTicket)
	}
	switch {
	case t.CouponID == "" && t.RedemptionID == "":
		return fmt.Errorf("%w: missing coupon or redemption id", ErrInvalidTicket)
	case t.CouponID != "" && t.RedemptionID != "":
		return fmt.Errorf("%w: both coupon and redemption id set", ErrInvalidTicket)
	}
	return nil
}

// Encode returns the QR payload for t
func Encode(t Ticket) (string, error) {
	if err := t.Validate(); err != nil {
		return "", err
	}
	data, err := json.Marshal(t)
	if err != nil {
		return "", fmt.Errorf("failed to encode ticket: %w", err)
	}
	return string(data), nil
}

// Parse decodes a scanned QR payload. Ids may be sent as strings or numbers.
func Parse(payload string) (Ticket, error) {
	var raw struct {
		LicensePlate string          `json:"license_plate"`
		CouponID     json.RawMessage `json:"coupon_id"`
		RedemptionID json.RawMessage `json:"redemption_id"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(payload)), &raw); err != nil {
		return Ticket{}, fmt.Errorf("%w: %v", ErrInvalidTicket, err)
	}

	couponID, err := idString(raw.CouponID)
	if err != nil {
		return Ticket{}, err
	}
	redemptionID, err := idString(raw.RedemptionID)
	if err != nil {
		return Ticket{}, err
	}

	t := Ticket{
		LicensePlate: strings.TrimSpace(raw.LicensePlate),
		CouponID:     couponID,
		RedemptionID: redemptionID,
	}
	if err := t.Validate(); err != nil {
		return Ticket{}, err
	}
	return t, nil
}

func idString(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s), nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String(), nil
	}
	return "", fmt.Errorf("%w: id must be a string or number", ErrInvalidTicket)
}
