package devserver

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/crypto/bcrypt"

	"github.com/lavacar-app/lavacar/internal/agent"
	"github.com/lavacar-app/lavacar/internal/rewards"
	"github.com/lavacar-app/lavacar/internal/vehicles"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("already exists")
	ErrInvalidPassword   = errors.New("invalid password")
	ErrNotVerified       = errors.New("email not verified")
	ErrInsufficientFunds = errors.New("not enough points")
)

// FieldConflict reports a unique field that is already taken
type FieldConflict struct {
	Field string
}

func (e *FieldConflict) Error() string {
	return e.Field + " already exists"
}

func (e *FieldConflict) Is(target error) bool {
	return target == ErrConflict
}

type account struct {
	ID           int64
	FirstName    string
	LastName     string
	Email        string
	Phone        string
	PasswordHash []byte
	Verified     bool
	CreatedAt    time.Time
	LastLoginAt  *time.Time
}

type agentAccount struct {
	agent.Agent
	PasswordHash []byte
}

type vehicle struct {
	vehicles.Vehicle
	AccountID int64
}

type ledgerEntry struct {
	rewards.Transaction
	AccountID int64
	AgentID   int64
	At        time.Time
}

// Store holds the mutable state of the development backend in memory
type Store struct {
	mu sync.Mutex

	accounts      map[int64]*account
	agents        map[int64]*agentAccount
	vehicles      map[int64]*vehicle
	brands        []vehicles.Brand
	types         []vehicles.Type
	models        []vehicles.Model
	coupons       []rewards.Coupon
	recentCoupons map[int64]bool
	redemptions   []rewards.Redemption
	alerts        []rewards.Alert
	banners       []rewards.Banner
	ledger        []ledgerEntry
	agentLog      []agent.Transaction

	verificationCodes map[string]string // email -> code
	resetTokens       map[string]int64  // token -> account id
	idempotent        map[string]cachedResponse

	nextAccountID int64
	nextVehicleID int64
	nextTxID      int64
	now           func() time.Time
}

type cachedResponse struct {
	status int
	body   []byte
}

// NewStore builds the in-memory state from seed fixtures
func NewStore(seed *Seed) (*Store, error) {
	s := &Store{
		accounts:          make(map[int64]*account),
		agents:            make(map[int64]*agentAccount),
		vehicles:          make(map[int64]*vehicle),
		recentCoupons:     make(map[int64]bool),
		verificationCodes: make(map[string]string),
		resetTokens:       make(map[string]int64),
		idempotent:        make(map[string]cachedResponse),
		now:               time.Now,
	}
	created := s.now().UTC()

	for _, u := range seed.Users {
		hash, err := hashPassword(u.Password)
		if err != nil {
			return nil, err
		}
		s.accounts[u.ID] = &account{
			ID:           u.ID,
			FirstName:    u.FirstName,
			LastName:     u.LastName,
			Email:        strings.ToLower(u.Email),
			Phone:        u.Phone,
			PasswordHash: hash,
			Verified:     true,
			CreatedAt:    created,
		}
		s.nextAccountID = max(s.nextAccountID, u.ID)

		for _, v := range u.Vehicles {
			s.vehicles[v.ID] = &vehicle{
				AccountID: u.ID,
				Vehicle: vehicles.Vehicle{
					ID:              v.ID,
					LicensePlate:    strings.ToUpper(v.LicensePlate),
					Brand:           v.Brand,
					Model:           v.Model,
					Type:            v.Type,
					Year:            v.Year,
					Points:          v.Points,
					AvailablePoints: v.AvailablePoints,
					IsPrimary:       v.Primary,
				},
			}
			s.nextVehicleID = max(s.nextVehicleID, v.ID)
		}
	}

	for _, a := range seed.Agents {
		hash, err := hashPassword(a.Password)
		if err != nil {
			return nil, err
		}
		s.agents[a.ID] = &agentAccount{
			Agent: agent.Agent{
				ID:          a.ID,
				Code:        strings.ToUpper(a.Code),
				Name:        a.Name,
				Description: a.Description,
				Location:    a.Location,
				IsActive:    true,
				CreatedAt:   created.Format(time.RFC3339),
			},
			PasswordHash: hash,
		}
	}

	typeNames := make(map[int64]string)
	for _, t := range seed.Types {
		s.types = append(s.types, vehicles.Type{ID: t.ID, Name: t.Name, Description: t.Description})
		typeNames[t.ID] = t.Name
	}
	for _, b := range seed.Brands {
		s.brands = append(s.brands, vehicles.Brand{ID: b.ID, Name: b.Name})
	}
	for _, m := range seed.Models {
		s.models = append(s.models, vehicles.Model{
			ID:              m.ID,
			Name:            m.Name,
			BrandID:         m.BrandID,
			VehicleTypeID:   m.TypeID,
			VehicleTypeName: typeNames[m.TypeID],
		})
	}

	couponsByID := make(map[int64]rewards.Coupon)
	for _, c := range seed.Coupons {
		coupon := rewards.Coupon{
			ID:                       c.ID,
			Title:                    c.Title,
			Description:              c.Description,
			Price:                    c.Price,
			Points:                   c.Points,
			IsValid:                  true,
			IsAlert:                  c.Alert,
			ApplicabilityDescription: c.Applicability,
			CreatedAt:                created.Format(time.RFC3339),
		}
		s.coupons = append(s.coupons, coupon)
		couponsByID[c.ID] = coupon
		if c.Recent {
			s.recentCoupons[c.ID] = true
		}
	}
	for _, r := range seed.Redemptions {
		s.redemptions = append(s.redemptions, rewards.Redemption{
			ID:             r.ID,
			Title:          r.Title,
			Description:    r.Description,
			Points:         r.PointsRequired,
			PointsRequired: r.PointsRequired,
			CreatedAt:      created.Format(time.RFC3339),
		})
	}
	for _, a := range seed.Alerts {
		alert := rewards.Alert{
			ID:          a.ID,
			Type:        a.Type,
			Title:       a.Title,
			Description: a.Description,
			Priority:    a.Priority,
			IsValid:     true,
		}
		if a.LinkURL != "" {
			link := a.LinkURL
			alert.LinkURL = &link
			alert.HasLink = true
		}
		if c, ok := couponsByID[a.CouponID]; ok {
			alert.CouponData = &struct {
				Price  string `json:"price"`
				Points int    `json:"points"`
			}{Price: c.Price, Points: c.Points}
		}
		s.alerts = append(s.alerts, alert)
	}
	sort.SliceStable(s.alerts, func(i, j int) bool { return s.alerts[i].Priority < s.alerts[j].Priority })

	for _, b := range seed.Banners {
		banner := rewards.Banner{
			ID:            b.ID,
			Title:         b.Title,
			ImageURL:      b.ImageURL,
			OrderPosition: b.OrderPosition,
		}
		if b.Description != "" {
			desc := b.Description
			banner.Description = &desc
		}
		if b.LinkURL != "" {
			link := b.LinkURL
			banner.LinkURL = &link
			banner.HasLink = true
		}
		s.banners = append(s.banners, banner)
	}

	return s, nil
}

func hashPassword(password string) ([]byte, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	return hash, nil
}

// AuthenticateUser checks an email and password
func (s *Store) AuthenticateUser(email, password string) (*account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc := s.accountByEmail(email)
	if acc == nil {
		return nil, ErrNotFound
	}
	if bcrypt.CompareHashAndPassword(acc.PasswordHash, []byte(password)) != nil {
		return nil, ErrInvalidPassword
	}
	if !acc.Verified {
		return nil, ErrNotVerified
	}
	now := s.now().UTC()
	acc.LastLoginAt = &now
	copied := *acc
	return &copied, nil
}

// AuthenticateAgent checks an agent code and password
func (s *Store) AuthenticateAgent(code, password string) (*agent.Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range s.agents {
		if !strings.EqualFold(a.Code, code) {
			continue
		}
		if bcrypt.CompareHashAndPassword(a.PasswordHash, []byte(password)) != nil {
			return nil, ErrInvalidPassword
		}
		a.LastLoginAt = s.now().UTC().Format(time.RFC3339)
		copied := a.Agent
		return &copied, nil
	}
	return nil, ErrNotFound
}

func (s *Store) accountByEmail(email string) *account {
	email = strings.ToLower(strings.TrimSpace(email))
	for _, acc := range s.accounts {
		if acc.Email == email {
			return acc
		}
	}
	return nil
}

// Register creates an unverified account with its first vehicle and returns
// the verification code
func (s *Store) Register(req registerRequest) (*account, string, error) {
	hash, err := hashPassword(req.Password)
	if err != nil {
		return nil, "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.accountByEmail(req.Email) != nil {
		return nil, "", &FieldConflict{Field: "email"}
	}
	if s.vehicleByPlate(req.LicensePlate) != nil {
		return nil, "", &FieldConflict{Field: "license_plate"}
	}

	s.nextAccountID++
	acc := &account{
		ID:           s.nextAccountID,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Email:        strings.ToLower(req.Email),
		Phone:        req.Phone,
		PasswordHash: hash,
		CreatedAt:    s.now().UTC(),
	}
	s.accounts[acc.ID] = acc

	s.addVehicle(acc.ID, req.vehicleRequest, true)

	code, err := verificationCode()
	if err != nil {
		return nil, "", err
	}
	s.verificationCodes[acc.Email] = code

	copied := *acc
	return &copied, code, nil
}

// PendingCode returns the verification code sent to email
func (s *Store) PendingCode(email string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	code, ok := s.verificationCodes[strings.ToLower(email)]
	return code, ok
}

// VerifyEmail marks the account verified when code matches
func (s *Store) VerifyEmail(email, code string) (*account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	email = strings.ToLower(email)
	expected, ok := s.verificationCodes[email]
	if !ok || expected != code {
		return nil, ErrNotFound
	}
	acc := s.accountByEmail(email)
	if acc == nil {
		return nil, ErrNotFound
	}
	acc.Verified = true
	delete(s.verificationCodes, email)
	copied := *acc
	return &copied, nil
}

// StartPasswordReset issues a reset token. Unknown emails get no token.
func (s *Store) StartPasswordReset(email string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc := s.accountByEmail(email)
	if acc == nil {
		return "", false
	}
	token := ulid.Make().String()
	s.resetTokens[token] = acc.ID
	return token, true
}

// ResetPassword consumes a reset token
func (s *Store) ResetPassword(token, password string) error {
	hash, err := hashPassword(password)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.resetTokens[token]
	if !ok {
		return ErrNotFound
	}
	s.accounts[id].PasswordHash = hash
	delete(s.resetTokens, token)
	return nil
}

// Account returns an account by id
func (s *Store) Account(id int64) (*account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *acc
	return &copied, nil
}

// Agent returns an agent by id
func (s *Store) Agent(id int64) (*agent.Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.agents[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := a.Agent
	return &copied, nil
}

// Vehicles returns the vehicles of an account, primary first
func (s *Store) Vehicles(accountID int64) []vehicles.Vehicle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.vehiclesOf(accountID)
}

func (s *Store) vehiclesOf(accountID int64) []vehicles.Vehicle {
	out := []vehicles.Vehicle{}
	for _, v := range s.vehicles {
		if v.AccountID == accountID {
			out = append(out, v.Vehicle)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].IsPrimary != out[j].IsPrimary {
			return out[i].IsPrimary
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// PrimaryVehicle returns the account's primary vehicle
func (s *Store) PrimaryVehicle(accountID int64) (vehicles.Vehicle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.vehiclesOf(accountID)
	if len(list) == 0 {
		return vehicles.Vehicle{}, ErrNotFound
	}
	return list[0], nil
}

// AddVehicle registers a vehicle; the first vehicle becomes primary
func (s *Store) AddVehicle(accountID int64, req vehicleRequest) (vehicles.Vehicle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.vehicleByPlate(req.LicensePlate) != nil {
		return vehicles.Vehicle{}, &FieldConflict{Field: "license_plate"}
	}
	primary := len(s.vehiclesOf(accountID)) == 0
	return s.addVehicle(accountID, req, primary), nil
}

func (s *Store) addVehicle(accountID int64, req vehicleRequest, primary bool) vehicles.Vehicle {
	brand, model, typ := s.describe(req)
	s.nextVehicleID++
	v := &vehicle{
		AccountID: accountID,
		Vehicle: vehicles.Vehicle{
			ID:           s.nextVehicleID,
			LicensePlate: strings.ToUpper(strings.TrimSpace(req.LicensePlate)),
			Brand:        brand,
			Model:        model,
			Type:         typ,
			IsPrimary:    primary,
		},
	}
	v.Year, _ = strconv.Atoi(req.Year)
	s.vehicles[v.ID] = v
	return v.Vehicle
}

func (s *Store) describe(req vehicleRequest) (brand, model, typ string) {
	for _, b := range s.brands {
		if fmt.Sprint(b.ID) == req.BrandID {
			brand = b.Name
		}
	}
	for _, m := range s.models {
		if fmt.Sprint(m.ID) == req.ModelID {
			model = m.Name
		}
	}
	for _, t := range s.types {
		if fmt.Sprint(t.ID) == req.TypeID {
			typ = t.Name
		}
	}
	return brand, model, typ
}

func (s *Store) vehicleByPlate(plate string) *vehicle {
	plate = strings.ToUpper(strings.TrimSpace(plate))
	for _, v := range s.vehicles {
		if v.LicensePlate == plate {
			return v
		}
	}
	return nil
}

// Brands lists the catalog brands
func (s *Store) Brands() []vehicles.Brand {
	return append([]vehicles.Brand{}, s.brands...)
}

// Types lists the catalog vehicle types
func (s *Store) Types() []vehicles.Type {
	return append([]vehicles.Type{}, s.types...)
}

// Models lists the models of a brand
func (s *Store) Models(brandID int64) (vehicles.Brand, []vehicles.Model, error) {
	var brand vehicles.Brand
	found := false
	for _, b := range s.brands {
		if b.ID == brandID {
			brand, found = b, true
		}
	}
	if !found {
		return brand, nil, ErrNotFound
	}
	out := []vehicles.Model{}
	for _, m := range s.models {
		if m.BrandID == brandID {
			out = append(out, m)
		}
	}
	return brand, out, nil
}

// Coupons lists coupons, optionally only the recent ones
func (s *Store) Coupons(recentOnly bool) []rewards.Coupon {
	out := []rewards.Coupon{}
	for _, c := range s.coupons {
		if recentOnly && !s.recentCoupons[c.ID] {
			continue
		}
		out = append(out, c)
	}
	return out
}

// Coupon returns a coupon by id
func (s *Store) Coupon(id int64) (rewards.Coupon, error) {
	for _, c := range s.coupons {
		if c.ID == id {
			return c, nil
		}
	}
	return rewards.Coupon{}, ErrNotFound
}

// Redemptions lists redemptions, flagged for what the vehicle can afford
func (s *Store) Redemptions(availablePoints int) []rewards.Redemption {
	out := make([]rewards.Redemption, 0, len(s.redemptions))
	for _, r := range s.redemptions {
		r.UserCanRedeem = availablePoints >= r.PointsRequired
		out = append(out, r)
	}
	return out
}

// Alerts lists the alerts by priority
func (s *Store) Alerts() []rewards.Alert {
	return append([]rewards.Alert{}, s.alerts...)
}

// Banners lists the banners in seed order
func (s *Store) Banners() []rewards.Banner {
	return append([]rewards.Banner{}, s.banners...)
}

// History returns the ledger entries of an account newer than since
func (s *Store) History(accountID int64, since time.Time) []rewards.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []rewards.Transaction{}
	for i := len(s.ledger) - 1; i >= 0; i-- {
		e := s.ledger[i]
		if e.AccountID == accountID && !e.At.Before(since) {
			out = append(out, e.Transaction)
		}
	}
	return out
}

// AgentTransactions returns the agent's log, newest first
func (s *Store) AgentTransactions(agentID int64) []agent.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []agent.Transaction{}
	for i := len(s.agentLog) - 1; i >= 0; i-- {
		if s.ledger[i].AgentID == agentID {
			out = append(out, s.agentLog[i])
		}
	}
	return out
}

// Claim applies a coupon or redemption to the vehicle with plate
func (s *Store) Claim(agentID int64, plate string, couponID, redemptionID int64) (agent.ClaimResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var res agent.ClaimResult
	v := s.vehicleByPlate(plate)
	if v == nil {
		return res, fmt.Errorf("vehicle %w", ErrNotFound)
	}
	ag, ok := s.agents[agentID]
	if !ok {
		return res, fmt.Errorf("agent %w", ErrNotFound)
	}
	acc := s.accounts[v.AccountID]

	now := s.now().UTC()
	s.nextTxID++
	entry := ledgerEntry{AccountID: v.AccountID, AgentID: agentID, At: now}
	entry.ID = s.nextTxID
	entry.CreatedAt = now.Format(time.RFC3339)
	entry.Vehicle.ID = v.ID
	entry.Vehicle.LicensePlate = v.LicensePlate
	entry.Vehicle.BrandName = v.Brand
	entry.Vehicle.ModelName = v.Model

	logEntry := agent.Transaction{
		ID:              s.nextTxID,
		Status:          "completed",
		AccountID:       v.AccountID,
		LicensePlate:    v.LicensePlate,
		TransactionDate: now.Format(time.RFC3339),
		CreatedAt:       now.Format(time.RFC3339),
	}
	before := v.AvailablePoints

	switch {
	case couponID != 0:
		coupon, err := s.Coupon(couponID)
		if err != nil {
			return res, fmt.Errorf("coupon %w", err)
		}
		v.Points += coupon.Points
		v.AvailablePoints += coupon.Points

		entry.TransactionType = "coupon"
		entry.TransactionTypeDisplay = "Coupon"
		entry.PointsAmount = coupon.Points
		entry.PointsOperation = "add"
		entry.PointsOperationDisplay = "Earned"
		entry.FormattedPoints = fmt.Sprintf("+%d", coupon.Points)
		entry.Description = coupon.Title
		entry.RelatedItem.Type = "coupon"
		entry.RelatedItem.ID = coupon.ID

		logEntry.Type = "coupon"
		logEntry.TransactionType = "coupon_claim"
		logEntry.ItemID = coupon.ID
		logEntry.ItemTitle = coupon.Title
		logEntry.Points = coupon.Points
		price := coupon.Price
		logEntry.Value = &price

		res.Coupon = &struct {
			ID          int64  `json:"id"`
			Title       string `json:"title"`
			Description string `json:"description"`
			Price       string `json:"price"`
			Points      int    `json:"points"`
		}{ID: coupon.ID, Title: coupon.Title, Description: coupon.Description, Price: coupon.Price, Points: coupon.Points}

	case redemptionID != 0:
		var redemption *rewards.Redemption
		for i := range s.redemptions {
			if s.redemptions[i].ID == redemptionID {
				redemption = &s.redemptions[i]
			}
		}
		if redemption == nil {
			return res, fmt.Errorf("redemption %w", ErrNotFound)
		}
		if v.AvailablePoints < redemption.PointsRequired {
			return res, ErrInsufficientFunds
		}
		v.AvailablePoints -= redemption.PointsRequired

		entry.TransactionType = "redemption"
		entry.TransactionTypeDisplay = "Redemption"
		entry.PointsAmount = redemption.PointsRequired
		entry.PointsOperation = "subtract"
		entry.PointsOperationDisplay = "Spent"
		entry.FormattedPoints = fmt.Sprintf("-%d", redemption.PointsRequired)
		entry.Description = redemption.Title
		entry.RelatedItem.Type = "redemption"
		entry.RelatedItem.ID = redemption.ID

		logEntry.Type = "redemption"
		logEntry.TransactionType = "redemption_claim"
		logEntry.ItemID = redemption.ID
		logEntry.ItemTitle = redemption.Title
		logEntry.Points = redemption.PointsRequired

		res.Redemption = &struct {
			ID             int64  `json:"id"`
			Title          string `json:"title"`
			Description    string `json:"description"`
			PointsRequired int    `json:"points_required"`
		}{ID: redemption.ID, Title: redemption.Title, Description: redemption.Description, PointsRequired: redemption.PointsRequired}

	default:
		return res, fmt.Errorf("item %w", ErrNotFound)
	}

	after := v.AvailablePoints
	logEntry.PointsBefore = &before
	logEntry.PointsAfter = &after
	s.ledger = append(s.ledger, entry)
	s.agentLog = append(s.agentLog, logEntry)

	status := "completed"
	date := logEntry.TransactionDate
	res.Transaction.ID = logEntry.ID
	res.Transaction.TransactionType = logEntry.TransactionType
	res.Transaction.Status = &status
	res.Transaction.TransactionDate = &date
	if acc != nil {
		res.Account.ID = acc.ID
		res.Account.FirstName = acc.FirstName
		res.Account.LastName = acc.LastName
		res.Account.Email = acc.Email
		res.Account.Phone = acc.Phone
	}
	res.Vehicle.ID = v.ID
	res.Vehicle.LicensePlate = v.LicensePlate
	res.Vehicle.Brand = v.Brand
	res.Vehicle.Type = v.Type
	res.Vehicle.Points = v.Points
	res.Vehicle.AvailablePoints = v.AvailablePoints
	res.Agent.ID = ag.ID
	res.Agent.Code = ag.Code
	res.Agent.Name = ag.Name
	return res, nil
}

// AgentStats summarizes an agent's log
func (s *Store) AgentStats(agentID int64) agent.Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	var stats agent.Stats
	now := s.now().UTC()
	today := now.Truncate(24 * time.Hour)
	week := today.AddDate(0, 0, -7)
	for i, tx := range s.agentLog {
		e := s.ledger[i]
		if e.AgentID != agentID {
			continue
		}
		stats.TotalTransactions++
		if tx.Type == "coupon" {
			stats.TotalCouponTransactions++
		} else {
			stats.TotalRedemptionTransactions++
		}
		if !e.At.Before(today) {
			stats.TransactionsToday++
		}
		if !e.At.Before(week) {
			stats.TransactionsThisWeek++
		}
		stats.LastTransactionDate = tx.TransactionDate
	}
	return stats
}

// Replay returns the response recorded for an idempotency key
func (s *Store) Replay(key string) (int, []byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cached, ok := s.idempotent[key]
	return cached.status, cached.body, ok
}

// Remember records the response for an idempotency key
func (s *Store) Remember(key string, status int, body []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.idempotent[key] = cachedResponse{status: status, body: body}
}

func verificationCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", fmt.Errorf("failed to generate verification code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
