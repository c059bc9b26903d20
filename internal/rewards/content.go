package rewards

import (
	"context"
	"sort"
	"strings"

	"github.com/lavacar-app/lavacar/internal/api"
)

// Alert is a notice or promoted coupon shown on the home screen
type Alert struct {
	ID             int64   `json:"id"`
	Type           string  `json:"type"`
	Title          string  `json:"title"`
	Description    string  `json:"description"`
	ImageURL       *string `json:"alert_image_url"`
	LinkURL        *string `json:"link_url"`
	HasLink        bool    `json:"has_link"`
	HasImage       bool    `json:"has_image"`
	Priority       int     `json:"priority"`
	PriorityLabel  string  `json:"priority_label,omitempty"`
	StartDate      *string `json:"start_date"`
	ExpirationDate *string `json:"expiration_date"`
	IsValid        bool    `json:"is_valid"`
	CouponData     *struct {
		Price  string `json:"price"`
		Points int    `json:"points"`
	} `json:"coupon_data,omitempty"`
}

// AlertList is the alert listing with its metadata
type AlertList struct {
	Data []Alert `json:"data"`
	Meta struct {
		Total        int    `json:"total"`
		NormalAlerts int    `json:"normal_alerts"`
		CouponAlerts int    `json:"coupon_alerts"`
		OrderedBy    string `json:"ordered_by"`
	} `json:"meta"`
}

// Banner is a promotional image, optionally linked
type Banner struct {
	ID            int64   `json:"id"`
	Title         string  `json:"title"`
	Description   *string `json:"description"`
	ImageURL      string  `json:"banner_image_url"`
	LinkURL       *string `json:"link_url"`
	HasLink       bool    `json:"has_link"`
	OrderPosition int     `json:"order_position"`
	CreatedAt     string  `json:"created_at,omitempty"`
	UpdatedAt     string  `json:"updated_at,omitempty"`
}

// LinkKind classifies where a banner leads
type LinkKind string

const (
	LinkNone     LinkKind = "none"
	LinkExternal LinkKind = "external"
	LinkInternal LinkKind = "internal"
)

// Link returns where the banner leads. Absolute http(s) URLs are external,
// anything else is a route inside the app.
func (b Banner) Link() (LinkKind, string) {
	if !b.HasLink || b.LinkURL == nil || *b.LinkURL == "" {
		return LinkNone, ""
	}
	link := *b.LinkURL
	if IsExternalURL(link) {
		return LinkExternal, link
	}
	return LinkInternal, link
}

// IsExternalURL reports whether link starts with an http or https scheme
func IsExternalURL(link string) bool {
	return strings.HasPrefix(link, "http://") || strings.HasPrefix(link, "https://")
}

// Alerts lists the active alerts ordered by the backend
func (s *Service) Alerts(ctx context.Context) (AlertList, error) {
	return list[AlertList](ctx, s.client, api.PathAlerts, nil)
}

// Banners lists the active banners by ascending order_position
func (s *Service) Banners(ctx context.Context) ([]Banner, error) {
	res, err := list[struct {
		Data []Banner `json:"data"`
	}](ctx, s.client, api.PathBanners, nil)
	if err != nil {
		return nil, err
	}

	banners := res.Data
	sort.SliceStable(banners, func(i, j int) bool {
		return banners[i].OrderPosition < banners[j].OrderPosition
	})
	return banners, nil
}
