package devserver

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lavacar-app/lavacar/internal/rewards"
)

const defaultHistoryMonths = 6

func (s *Server) listBrands(c *gin.Context) {
	ok(c, http.StatusOK, s.store.Brands())
}

func (s *Server) listTypes(c *gin.Context) {
	ok(c, http.StatusOK, s.store.Types())
}

func (s *Server) listModels(c *gin.Context) {
	brandID, err := strconv.ParseInt(c.Query("brand_id"), 10, 64)
	if err != nil {
		fail(c, http.StatusUnprocessableEntity, "The given data was invalid.", map[string][]string{
			"brand_id": {"The brand_id field is required."},
		})
		return
	}

	brand, models, err := s.store.Models(brandID)
	if err != nil {
		fail(c, http.StatusNotFound, "Brand not found.", nil)
		return
	}
	ok(c, http.StatusOK, gin.H{
		"brand":  gin.H{"id": brand.ID, "name": brand.Name},
		"models": models,
	})
}

func (s *Server) getAccount(c *gin.Context) {
	acc, err := s.store.Account(currentID(c))
	if err != nil {
		fail(c, http.StatusNotFound, "Account not found.", nil)
		return
	}
	ok(c, http.StatusOK, s.accountView(acc))
}

func (s *Server) listVehicles(c *gin.Context) {
	ok(c, http.StatusOK, s.store.Vehicles(currentID(c)))
}

func (s *Server) primaryVehicle(c *gin.Context) {
	v, err := s.store.PrimaryVehicle(currentID(c))
	if err != nil {
		fail(c, http.StatusNotFound, "No vehicle registered.", nil)
		return
	}
	ok(c, http.StatusOK, v)
}

func (s *Server) createVehicle(c *gin.Context) {
	var req vehicleRequest
	if !s.bind(c, &req) {
		return
	}

	v, err := s.store.AddVehicle(currentID(c), req)
	if errors.Is(err, ErrConflict) {
		fail(c, http.StatusUnprocessableEntity, "The given data was invalid.", map[string][]string{
			"license_plate": {"The license_plate has already been taken."},
		})
		return
	}
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to add vehicle")
		fail(c, http.StatusInternalServerError, "Failed to add vehicle.", nil)
		return
	}
	ok(c, http.StatusCreated, v)
}

func (s *Server) vehicleRef(accountID int64) *rewards.VehicleRef {
	v, err := s.store.PrimaryVehicle(accountID)
	if err != nil {
		return nil
	}
	return &rewards.VehicleRef{LicensePlate: v.LicensePlate, Brand: v.Brand, Type: v.Type}
}

func (s *Server) couponList(c *gin.Context, recent bool) {
	coupons := s.store.Coupons(recent)
	okWith(c, coupons, gin.H{
		"meta": gin.H{
			"limit":                len(coupons),
			"total":                len(coupons),
			"is_recent":            recent,
			"filtered_for_vehicle": s.vehicleRef(currentID(c)),
		},
	})
}

func (s *Server) listCoupons(c *gin.Context) {
	s.couponList(c, false)
}

func (s *Server) recentCoupons(c *gin.Context) {
	s.couponList(c, true)
}

func (s *Server) getCoupon(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		fail(c, http.StatusNotFound, "Coupon not found.", nil)
		return
	}
	coupon, err := s.store.Coupon(id)
	if err != nil {
		fail(c, http.StatusNotFound, "Coupon not found.", nil)
		return
	}

	ref := s.vehicleRef(currentID(c))
	ok(c, http.StatusOK, rewards.CouponDetail{
		Coupon:               coupon,
		AppliesToYourVehicle: ref != nil,
		YourVehicle:          ref,
	})
}

func (s *Server) listRedemptions(c *gin.Context) {
	available := 0
	if v, err := s.store.PrimaryVehicle(currentID(c)); err == nil {
		available = v.AvailablePoints
	}
	list := s.store.Redemptions(available)
	okWith(c, list, gin.H{"meta": gin.H{"limit": len(list), "total": len(list)}})
}

func (s *Server) listAlerts(c *gin.Context) {
	alerts := s.store.Alerts()
	couponAlerts := 0
	for _, a := range alerts {
		if a.CouponData != nil {
			couponAlerts++
		}
	}
	okWith(c, alerts, gin.H{"meta": gin.H{
		"total":         len(alerts),
		"normal_alerts": len(alerts) - couponAlerts,
		"coupon_alerts": couponAlerts,
		"ordered_by":    "priority",
	}})
}

func (s *Server) listBanners(c *gin.Context) {
	ok(c, http.StatusOK, s.store.Banners())
}

func (s *Server) history(c *gin.Context) {
	months := defaultHistoryMonths
	if raw := c.Query("months"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 24 {
			fail(c, http.StatusUnprocessableEntity, "The given data was invalid.", map[string][]string{
				"months": {"The months must be between 1 and 24."},
			})
			return
		}
		months = n
	}

	to := time.Now().UTC()
	from := to.AddDate(0, -months, 0)
	txs := s.store.History(currentID(c), from)

	var coupons, redemptions, earned, spent int
	for _, tx := range txs {
		switch tx.PointsOperation {
		case "add":
			earned += tx.PointsAmount
		case "subtract":
			spent += tx.PointsAmount
		}
		switch tx.TransactionType {
		case "coupon":
			coupons++
		case "redemption":
			redemptions++
		}
	}

	okWith(c, txs, gin.H{
		"period": gin.H{
			"months":    months,
			"from_date": from.Format(time.DateOnly),
			"to_date":   to.Format(time.DateOnly),
		},
		"stats": gin.H{
			"total_transactions":  len(txs),
			"total_coupons":       coupons,
			"total_redemptions":   redemptions,
			"total_bonuses":       0,
			"total_points_earned": earned,
			"total_points_spent":  spent,
			"net_points":          earned - spent,
		},
		"pagination": gin.H{
			"current_page": 1,
			"last_page":    1,
			"per_page":     len(txs),
			"total":        len(txs),
		},
	})
}
