// Package rewards reads the loyalty catalog of the signed-in account:
// coupons, point redemptions, alerts, banners and point history.
package rewards

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/lavacar-app/lavacar/internal/api"
)

// VehicleRef is the short vehicle description embedded in catalog responses
type VehicleRef struct {
	LicensePlate string `json:"license_plate"`
	Brand        string `json:"brand"`
	Type         string `json:"type"`
}

// Coupon is a paid wash package that also earns points
type Coupon struct {
	ID                       int64   `json:"id"`
	Title                    string  `json:"title"`
	Description              string  `json:"description"`
	CoverImageURL            string  `json:"cover_image_url,omitempty"`
	PresentationImageURL     string  `json:"presentation_image_url,omitempty"`
	Price                    string  `json:"price"`
	Points                   int     `json:"points"`
	StartDate                *string `json:"start_date"`
	ExpirationDate           *string `json:"expiration_date"`
	IsValid                  bool    `json:"is_valid"`
	IsAlert                  bool    `json:"is_alert"`
	ApplicabilityDescription string  `json:"applicability_description,omitempty"`
	CreatedAt                string  `json:"created_at,omitempty"`
	CreatedAtHuman           string  `json:"created_at_human,omitempty"`
}

// CouponDetail adds vehicle applicability to a coupon
type CouponDetail struct {
	Coupon
	PlateEndingFilter    string      `json:"plate_ending_filter,omitempty"`
	AppliesToYourVehicle bool        `json:"applies_to_your_vehicle"`
	YourVehicle          *VehicleRef `json:"your_vehicle,omitempty"`
	UpdatedAt            string      `json:"updated_at,omitempty"`
}

// CouponList is the coupon listing with its metadata
type CouponList struct {
	Data []Coupon `json:"data"`
	Meta struct {
		Limit              int         `json:"limit"`
		Total              int         `json:"total"`
		IsRecent           bool        `json:"is_recent"`
		FilteredForVehicle *VehicleRef `json:"filtered_for_vehicle,omitempty"`
	} `json:"meta"`
}

// Redemption is a reward bought with points
type Redemption struct {
	ID                   int64  `json:"id"`
	Title                string `json:"title"`
	Description          string `json:"description"`
	Points               int    `json:"points"`
	PointsRequired       int    `json:"points_required"`
	CoverImageURL        string `json:"cover_image_url,omitempty"`
	PresentationImageURL string `json:"presentation_image_url,omitempty"`
	BackgroundImageURL   string `json:"background_image_url,omitempty"`
	UserCanRedeem        bool   `json:"user_can_redeem"`
	CreatedAt            string `json:"created_at,omitempty"`
	CreatedAtHuman       string `json:"created_at_human,omitempty"`
}

// RedemptionList is the redemption listing with its metadata
type RedemptionList struct {
	Data []Redemption `json:"data"`
	Meta struct {
		Limit int `json:"limit"`
		Total int `json:"total"`
	} `json:"meta"`
}

// Service wraps the catalog endpoints. Listing failures are returned as
// *api.Error values.
type Service struct {
	client *api.Client
}

// NewService creates a rewards service
func NewService(client *api.Client) *Service {
	return &Service{client: client}
}

// Coupons lists the coupons that apply to the account's vehicle
func (s *Service) Coupons(ctx context.Context) (CouponList, error) {
	return list[CouponList](ctx, s.client, api.PathCoupons, nil)
}

// RecentCoupons lists the newest coupons
func (s *Service) RecentCoupons(ctx context.Context) (CouponList, error) {
	return list[CouponList](ctx, s.client, api.PathRecentCoupons, nil)
}

// Coupon returns one coupon with its applicability details
func (s *Service) Coupon(ctx context.Context, id int64) (CouponDetail, error) {
	res := api.Get[CouponDetail](ctx, s.client, fmt.Sprintf("%s/%d", api.PathCoupons, id), nil, true)
	return res.Data, res.AsError()
}

// Redemptions lists the rewards available for points
func (s *Service) Redemptions(ctx context.Context) (RedemptionList, error) {
	return list[RedemptionList](ctx, s.client, api.PathRedemptions, nil)
}

// list fetches an authenticated listing and keeps its meta member
func list[T any](ctx context.Context, client *api.Client, path string, query url.Values) (T, error) {
	res := api.Do[T](ctx, client, api.Request{
		Path:     path,
		Query:    query,
		Auth:     true,
		Envelope: true,
	})
	return res.Data, res.AsError()
}

func monthsQuery(months int) url.Values {
	return url.Values{"months": {strconv.Itoa(months)}}
}
