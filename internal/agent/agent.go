// Package agent serves the wash-station side of the app: the agent's
// profile and stats, its transaction log, and claiming tickets.
package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/lavacar-app/lavacar/internal/api"
	"github.com/lavacar-app/lavacar/internal/ticket"
)

// TransactionsTimeout bounds the transaction listing, which is slower than
// other endpoints
const TransactionsTimeout = 20 * time.Second

// RecentLimit is the number of transactions shown on the agent home
const RecentLimit = 3

// Agent is a wash-station operator account
type Agent struct {
	ID          int64  `json:"id"`
	Code        string `json:"code"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Location    string `json:"location,omitempty"`
	IsActive    bool   `json:"is_active"`
	LastLoginAt string `json:"last_login_at,omitempty"`
	CreatedAt   string `json:"created_at,omitempty"`
}

// Stats summarizes an agent's activity
type Stats struct {
	TotalCouponTransactions     int    `json:"total_coupon_transactions"`
	TotalRedemptionTransactions int    `json:"total_redemption_transactions"`
	TotalTransactions           int    `json:"total_transactions"`
	TransactionsToday           int    `json:"transactions_today"`
	TransactionsThisWeek        int    `json:"transactions_this_week"`
	LastTransactionDate         string `json:"last_transaction_date,omitempty"`
}

// Profile is the body of the agent whoami endpoint
type Profile struct {
	Agent Agent `json:"agent"`
	Stats Stats `json:"stats"`
}

// Transaction is a claim processed by the agent
type Transaction struct {
	ID              int64   `json:"id"`
	Type            string  `json:"type"`
	TransactionType string  `json:"transaction_type"`
	Status          string  `json:"status"`
	AccountID       int64   `json:"account_id"`
	ItemID          int64   `json:"item_id"`
	ItemTitle       string  `json:"item_title"`
	LicensePlate    string  `json:"license_plate"`
	Value           *string `json:"value"`
	Points          int     `json:"points"`
	PointsBefore    *int    `json:"points_before,omitempty"`
	PointsAfter     *int    `json:"points_after,omitempty"`
	Notes           *string `json:"notes"`
	TransactionDate string  `json:"transaction_date"`
	CreatedAt       string  `json:"created_at"`
}

// TransactionList is the transaction listing with its paging metadata
type TransactionList struct {
	Data []Transaction `json:"data"`
	Meta struct {
		Total      int     `json:"total"`
		Page       int     `json:"page"`
		Limit      int     `json:"limit"`
		TotalPages int     `json:"total_pages"`
		DateFrom   *string `json:"date_from"`
		DateTo     *string `json:"date_to"`
	} `json:"meta"`
}

// Service wraps the agent endpoints
type Service struct {
	client *api.Client
	logger zerolog.Logger
}

// NewService creates an agent service
func NewService(client *api.Client, logger zerolog.Logger) *Service {
	return &Service{client: client, logger: logger}
}

// Profile returns the signed-in agent and its stats
func (s *Service) Profile(ctx context.Context) (Profile, error) {
	res := api.Get[Profile](ctx, s.client, api.PathAgentAccount, nil, true)
	return res.Data, res.AsError()
}

// Transactions lists the agent's transactions, newest first. A non-positive
// limit lets the backend choose.
func (s *Service) Transactions(ctx context.Context, limit int) (TransactionList, error) {
	res := api.Do[TransactionList](ctx, s.client, api.Request{
		Path:     api.PathAgentTransactions,
		Query:    limitQuery(limit),
		Auth:     true,
		Envelope: true,
		Timeout:  TransactionsTimeout,
	})
	return res.Data, res.AsError()
}

// RecentTransactions returns the last few transactions. The list may arrive
// bare or nested in a data member.
func (s *Service) RecentTransactions(ctx context.Context) ([]Transaction, error) {
	res := api.Do[json.RawMessage](ctx, s.client, api.Request{
		Path:     api.PathAgentTransactions,
		Query:    limitQuery(RecentLimit),
		Auth:     true,
		Envelope: true,
	})
	if err := res.AsError(); err != nil {
		return nil, err
	}
	return transactionsFrom(res.Data), nil
}

func transactionsFrom(raw json.RawMessage) []Transaction {
	raw = bytes.TrimSpace(raw)
	for depth := 0; depth < 3 && len(raw) > 0; depth++ {
		switch raw[0] {
		case '[':
			var list []Transaction
			if err := json.Unmarshal(raw, &list); err != nil {
				return []Transaction{}
			}
			return list
		case '{':
			var wrapper struct {
				Data json.RawMessage `json:"data"`
			}
			if err := json.Unmarshal(raw, &wrapper); err != nil {
				return []Transaction{}
			}
			raw = bytes.TrimSpace(wrapper.Data)
		default:
			return []Transaction{}
		}
	}
	return []Transaction{}
}

func limitQuery(limit int) url.Values {
	if limit <= 0 {
		return nil
	}
	return url.Values{"limit": {strconv.Itoa(limit)}}
}

// Claim dispatches a scanned ticket to the matching claim endpoint
func (s *Service) Claim(ctx context.Context, t ticket.Ticket) (ClaimResult, error) {
	if err := t.Validate(); err != nil {
		return ClaimResult{}, err
	}

	path := api.PathClaimRedemption
	if t.Kind() == ticket.KindCoupon {
		path = api.PathClaimCoupon
	}

	s.logger.Info().
		Str("kind", string(t.Kind())).
		Str("item_id", t.ID()).
		Str("license_plate", t.LicensePlate).
		Msg("Processing claim")

	res := api.Do[ClaimResult](ctx, s.client, api.Request{
		Method: http.MethodPost,
		Path:   path,
		Body:   t,
		Auth:   true,
	})
	if err := res.AsError(); err != nil {
		return ClaimResult{}, fmt.Errorf("failed to claim %s %s: %w", t.Kind(), t.ID(), err)
	}
	res.Data.Kind = t.Kind()
	return res.Data, nil
}

// ClaimCoupon claims a coupon for a license plate
func (s *Service) ClaimCoupon(ctx context.Context, plate, couponID string) (ClaimResult, error) {
	return s.Claim(ctx, ticket.Ticket{LicensePlate: plate, CouponID: couponID})
}

// ClaimRedemption claims a redemption for a license plate
func (s *Service) ClaimRedemption(ctx context.Context, plate, redemptionID string) (ClaimResult, error) {
	return s.Claim(ctx, ticket.Ticket{LicensePlate: plate, RedemptionID: redemptionID})
}
