// Package vehicles reads the public vehicle catalog and manages the vehicles
// registered to the signed-in account.
package vehicles

import (
	"context"
	"net/url"
	"strconv"

	"github.com/lavacar-app/lavacar/internal/api"
)

// Brand is a vehicle manufacturer
type Brand struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	LogoURL string `json:"logo_url,omitempty"`
}

// Model is a vehicle model of a brand
type Model struct {
	ID              int64  `json:"id"`
	Name            string `json:"name"`
	BrandID         int64  `json:"brand_id"`
	VehicleTypeID   int64  `json:"vehicle_type_id"`
	VehicleTypeName string `json:"vehicle_type_name"`
	Year            int    `json:"year,omitempty"`
}

// Type is a vehicle category such as sedan or pickup
type Type struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// ModelsResponse lists the models of one brand
type ModelsResponse struct {
	Brand struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	} `json:"brand"`
	Models []Model `json:"models"`
}

// Vehicle is a vehicle registered to the account. Points accrue per vehicle.
type Vehicle struct {
	ID              int64  `json:"id"`
	LicensePlate    string `json:"license_plate"`
	Brand           string `json:"brand,omitempty"`
	Model           string `json:"model,omitempty"`
	Type            string `json:"type,omitempty"`
	Year            int    `json:"year,omitempty"`
	Points          int    `json:"points"`
	AvailablePoints int    `json:"available_points"`
	IsPrimary       bool   `json:"is_primary"`
}

// CreateRequest registers another vehicle to the account
type CreateRequest struct {
	BrandID      string `json:"vehicle_brand_id"`
	ModelID      string `json:"vehicle_model_id"`
	TypeID       string `json:"vehicle_type_id"`
	Year         string `json:"vehicle_year"`
	LicensePlate string `json:"license_plate"`
}

// Service wraps the vehicle endpoints
type Service struct {
	client *api.Client
}

// NewService creates a vehicle service
func NewService(client *api.Client) *Service {
	return &Service{client: client}
}

// Brands lists every brand in the public catalog
func (s *Service) Brands(ctx context.Context) ([]Brand, error) {
	res := api.Get[[]Brand](ctx, s.client, api.PathVehicleBrands, nil, false)
	return res.Data, res.AsError()
}

// Models lists the models of a brand
func (s *Service) Models(ctx context.Context, brandID int64) (ModelsResponse, error) {
	query := url.Values{"brand_id": {strconv.FormatInt(brandID, 10)}}
	res := api.Get[ModelsResponse](ctx, s.client, api.PathVehicleModels, query, false)
	return res.Data, res.AsError()
}

// Types lists the vehicle categories
func (s *Service) Types(ctx context.Context) ([]Type, error) {
	res := api.Get[[]Type](ctx, s.client, api.PathVehicleTypes, nil, false)
	return res.Data, res.AsError()
}

// List returns the vehicles registered to the account
func (s *Service) List(ctx context.Context) ([]Vehicle, error) {
	res := api.Get[[]Vehicle](ctx, s.client, api.PathUserVehicles, nil, true)
	return res.Data, res.AsError()
}

// Primary returns the account's primary vehicle
func (s *Service) Primary(ctx context.Context) (Vehicle, error) {
	res := api.Get[Vehicle](ctx, s.client, api.PathPrimaryVehicle, nil, true)
	return res.Data, res.AsError()
}

// Create registers a vehicle to the account
func (s *Service) Create(ctx context.Context, req CreateRequest) (Vehicle, error) {
	res := api.Post[Vehicle](ctx, s.client, api.PathUserVehicles, req, true)
	return res.Data, res.AsError()
}
