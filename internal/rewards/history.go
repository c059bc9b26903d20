package rewards

import (
	"context"
	"encoding/json"

	"github.com/lavacar-app/lavacar/internal/api"
)

// DefaultHistoryMonths is the window of the point history when none is given
const DefaultHistoryMonths = 6

// Transaction is one entry in the account's point history
type Transaction struct {
	ID                     int64  `json:"id"`
	TransactionType        string `json:"transaction_type"`
	TransactionTypeDisplay string `json:"transaction_type_display"`
	PointsAmount           int    `json:"points_amount"`
	PointsOperation        string `json:"points_operation"`
	PointsOperationDisplay string `json:"points_operation_display"`
	FormattedPoints        string `json:"formatted_points"`
	Description            string `json:"description"`
	Vehicle                struct {
		ID                 int64  `json:"id"`
		LicensePlate       string `json:"license_plate"`
		VehicleDescription string `json:"vehicle_description"`
		BrandName          string `json:"brand_name"`
		ModelName          string `json:"model_name"`
	} `json:"vehicle"`
	RelatedItem struct {
		Type        string  `json:"type"`
		ID          int64   `json:"id"`
		Points      *int    `json:"points"`
		Description *string `json:"description"`
	} `json:"related_item"`
	Metadata       json.RawMessage `json:"metadata,omitempty"`
	CreatedAt      string          `json:"created_at"`
	CreatedAtHuman string          `json:"created_at_human"`
}

// History is the point history of a period with its totals
type History struct {
	Data   []Transaction `json:"data"`
	Period struct {
		Months   json.Number `json:"months"`
		FromDate string      `json:"from_date"`
		ToDate   string      `json:"to_date"`
	} `json:"period"`
	Stats struct {
		TotalTransactions int         `json:"total_transactions"`
		TotalCoupons      int         `json:"total_coupons"`
		TotalRedemptions  int         `json:"total_redemptions"`
		TotalBonuses      int         `json:"total_bonuses"`
		TotalPointsEarned json.Number `json:"total_points_earned"`
		TotalPointsSpent  json.Number `json:"total_points_spent"`
		NetPoints         json.Number `json:"net_points"`
	} `json:"stats"`
	Pagination struct {
		CurrentPage int `json:"current_page"`
		LastPage    int `json:"last_page"`
		PerPage     int `json:"per_page"`
		Total       int `json:"total"`
	} `json:"pagination"`
}

// History returns the point history of the last months. A non-positive
// value uses DefaultHistoryMonths.
func (s *Service) History(ctx context.Context, months int) (History, error) {
	if months <= 0 {
		months = DefaultHistoryMonths
	}
	return list[History](ctx, s.client, api.PathRecentTransactions, monthsQuery(months))
}
