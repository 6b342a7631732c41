package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// OfferStats serves the per-offer reporting rollup. The range defaults to
// the trailing thirty days.
func (s *Server) OfferStats(c *gin.Context) {
	offerID, err := strconv.ParseInt(c.Param("offer_id"), 10, 64)
	if err != nil {
		AbortWithError(c, newValidationError("offer_id", "must be an integer"))
		return
	}

	now := s.clock.Now()
	start := now.AddDate(0, 0, -30)
	end := now

	if raw, err := optionalTime(c, "start_date"); err != nil {
		AbortWithError(c, err)
		return
	} else if raw != nil {
		start = *raw
	}
	if raw, err := optionalTime(c, "end_date"); err != nil {
		AbortWithError(c, err)
		return
	} else if raw != nil {
		end = *raw
	}

	result, err := s.statssvc.OfferStats(c.Request.Context(), offerID, start, end)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":     "success",
		"offer":      result.Offer,
		"date_range": result.DateRange,
		"summary":    result.Summary,
		"by_country": result.ByCountry,
		"by_device":  result.ByDevice,
		"by_referrer": result.ByReferrer,
		"daily_stats": result.Daily,
	})
}
