package devserver

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/lavacar-app/lavacar/internal/agent"
	"github.com/lavacar-app/lavacar/internal/ticket"
)

const defaultTransactionLimit = 20

func (s *Server) getAgent(c *gin.Context) {
	id := currentID(c)
	ag, err := s.store.Agent(id)
	if err != nil {
		fail(c, http.StatusNotFound, "Agent not found.", nil)
		return
	}
	ok(c, http.StatusOK, agent.Profile{Agent: *ag, Stats: s.store.AgentStats(id)})
}

func (s *Server) agentTransactions(c *gin.Context) {
	limit := defaultTransactionLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			fail(c, http.StatusUnprocessableEntity, "The given data was invalid.", map[string][]string{
				"limit": {"The limit must be a positive integer."},
			})
			return
		}
		limit = n
	}

	all := s.store.AgentTransactions(currentID(c))
	page := all
	if len(page) > limit {
		page = page[:limit]
	}

	totalPages := (len(all) + limit - 1) / limit
	okWith(c, page, gin.H{"meta": gin.H{
		"total":       len(all),
		"page":        1,
		"limit":       limit,
		"total_pages": totalPages,
		"date_from":   nil,
		"date_to":     nil,
	}})
}

func (s *Server) claimCoupon(c *gin.Context) {
	s.claim(c, ticket.KindCoupon)
}

func (s *Server) claimRedemption(c *gin.Context) {
	s.claim(c, ticket.KindRedemption)
}

func (s *Server) claim(c *gin.Context, kind ticket.Kind) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		fail(c, http.StatusBadRequest, "Malformed request body.", nil)
		return
	}

	t, err := ticket.Parse(string(body))
	if err != nil || t.Kind() != kind {
		fail(c, http.StatusUnprocessableEntity, "Invalid claim ticket.", nil)
		return
	}

	itemID, err := strconv.ParseInt(t.ID(), 10, 64)
	if err != nil {
		fail(c, http.StatusUnprocessableEntity, "Invalid claim ticket.", nil)
		return
	}

	var couponID, redemptionID int64
	if kind == ticket.KindCoupon {
		couponID = itemID
	} else {
		redemptionID = itemID
	}

	res, err := s.store.Claim(currentID(c), t.LicensePlate, couponID, redemptionID)
	switch {
	case errors.Is(err, ErrInsufficientFunds):
		fail(c, http.StatusUnprocessableEntity, "The vehicle does not have enough points.", nil)
		return
	case errors.Is(err, ErrNotFound):
		fail(c, http.StatusNotFound, err.Error(), nil)
		return
	case err != nil:
		s.logger.Error().Err(err).Msg("Failed to process claim")
		fail(c, http.StatusInternalServerError, "Failed to process claim.", nil)
		return
	}

	s.logger.Info().
		Str("kind", string(kind)).
		Int64("item_id", itemID).
		Str("license_plate", res.Vehicle.LicensePlate).
		Int("available_points", res.Vehicle.AvailablePoints).
		Msg("Claim processed")

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Claim processed.",
		"data":    res,
	})
}
