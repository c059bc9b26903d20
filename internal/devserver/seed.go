package devserver

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed seed.yaml
var defaultSeed []byte

// Seed is the initial content of the development backend
type Seed struct {
	Users       []SeedUser       `yaml:"users"`
	Agents      []SeedAgent      `yaml:"agents"`
	Brands      []SeedBrand      `yaml:"brands"`
	Types       []SeedType       `yaml:"types"`
	Models      []SeedModel      `yaml:"models"`
	Coupons     []SeedCoupon     `yaml:"coupons"`
	Redemptions []SeedRedemption `yaml:"redemptions"`
	Alerts      []SeedAlert      `yaml:"alerts"`
	Banners     []SeedBanner     `yaml:"banners"`
}

type SeedUser struct {
	ID        int64         `yaml:"id"`
	FirstName string        `yaml:"first_name"`
	LastName  string        `yaml:"last_name"`
	Email     string        `yaml:"email"`
	Password  string        `yaml:"password"`
	Phone     string        `yaml:"phone"`
	Vehicles  []SeedVehicle `yaml:"vehicles"`
}

type SeedVehicle struct {
	ID              int64  `yaml:"id"`
	LicensePlate    string `yaml:"license_plate"`
	Brand           string `yaml:"brand"`
	Model           string `yaml:"model"`
	Type            string `yaml:"type"`
	Year            int    `yaml:"year"`
	Points          int    `yaml:"points"`
	AvailablePoints int    `yaml:"available_points"`
	Primary         bool   `yaml:"primary"`
}

type SeedAgent struct {
	ID          int64  `yaml:"id"`
	Code        string `yaml:"code"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Location    string `yaml:"location"`
	Password    string `yaml:"password"`
}

type SeedBrand struct {
	ID   int64  `yaml:"id"`
	Name string `yaml:"name"`
}

type SeedType struct {
	ID          int64  `yaml:"id"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

type SeedModel struct {
	ID      int64  `yaml:"id"`
	Name    string `yaml:"name"`
	BrandID int64  `yaml:"brand_id"`
	TypeID  int64  `yaml:"type_id"`
}

type SeedCoupon struct {
	ID            int64  `yaml:"id"`
	Title         string `yaml:"title"`
	Description   string `yaml:"description"`
	Price         string `yaml:"price"`
	Points        int    `yaml:"points"`
	Applicability string `yaml:"applicability"`
	Alert         bool   `yaml:"alert"`
	Recent        bool   `yaml:"recent"`
}

type SeedRedemption struct {
	ID             int64  `yaml:"id"`
	Title          string `yaml:"title"`
	Description    string `yaml:"description"`
	PointsRequired int    `yaml:"points_required"`
}

type SeedAlert struct {
	ID          int64  `yaml:"id"`
	Type        string `yaml:"type"`
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	Priority    int    `yaml:"priority"`
	LinkURL     string `yaml:"link_url"`
	CouponID    int64  `yaml:"coupon_id"`
}

type SeedBanner struct {
	ID            int64  `yaml:"id"`
	Title         string `yaml:"title"`
	Description   string `yaml:"description"`
	ImageURL      string `yaml:"image_url"`
	LinkURL       string `yaml:"link_url"`
	OrderPosition int    `yaml:"order_position"`
}

// DefaultSeed returns the embedded fixtures
func DefaultSeed() (*Seed, error) {
	return ParseSeed(defaultSeed)
}

// LoadSeed reads fixtures from a YAML file
func LoadSeed(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}
	return ParseSeed(data)
}

// ParseSeed decodes YAML fixtures
func ParseSeed(data []byte) (*Seed, error) {
	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse seed: %w", err)
	}
	return &seed, nil
}
