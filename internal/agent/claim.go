package agent

import "github.com/lavacar-app/lavacar/internal/ticket"

// ClaimResult is the backend's receipt for a processed claim. Exactly one of
// Coupon and Redemption is set.
type ClaimResult struct {
	Kind        ticket.Kind `json:"-"`
	Transaction struct {
		ID              int64   `json:"id"`
		TransactionType string  `json:"transaction_type"`
		Status          *string `json:"status"`
		TransactionDate *string `json:"transaction_date"`
		Notes           *string `json:"notes"`
	} `json:"transaction"`
	Coupon *struct {
		ID          int64  `json:"id"`
		Title       string `json:"title"`
		Description string `json:"description"`
		Price       string `json:"price"`
		Points      int    `json:"points"`
	} `json:"coupon,omitempty"`
	Redemption *struct {
		ID             int64  `json:"id"`
		Title          string `json:"title"`
		Description    string `json:"description"`
		PointsRequired int    `json:"points_required"`
	} `json:"redemption,omitempty"`
	Account struct {
		ID        int64  `json:"id"`
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
		Email     string `json:"email"`
		Phone     string `json:"phone"`
	} `json:"account"`
	Vehicle struct {
		ID              int64  `json:"id"`
		LicensePlate    string `json:"license_plate"`
		Brand           string `json:"brand"`
		Type            string `json:"type"`
		Points          int    `json:"points"`
		AvailablePoints int    `json:"available_points"`
	} `json:"vehicle"`
	Agent struct {
		ID   int64  `json:"id"`
		Code string `json:"code"`
		Name string `json:"name"`
	} `json:"agent"`
}

// Title returns the claimed item's title
func (c ClaimResult) Title() string {
	switch {
	case c.Coupon != nil:
		return c.Coupon.Title
	case c.Redemption != nil:
		return c.Redemption.Title
	}
	return ""
}
