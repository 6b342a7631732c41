package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	clickdomain "github.com/afftrack/clickpipe/internal/click/domain"
	clickservice "github.com/afftrack/clickpipe/internal/click/service"
)

type conversionRequest struct {
	ClickID       string   `json:"click_id"`
	Amount        *float64 `json:"amount"`
	Revenue       *float64 `json:"revenue"`
	TransactionID string   `json:"transaction_id"`
	Status        string   `json:"status"`
}

// Conversion records a postback against a previously tracked click.
func (s *Server) Conversion(c *gin.Context) {
	var req conversionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, newValidationError("body", "invalid JSON payload"))
		return
	}
	if !clickservice.ValidClickID(req.ClickID) {
		AbortWithError(c, newValidationError("click_id", "must be a valid click identifier"))
		return
	}

	c.Set("click_id", req.ClickID)

	result, err := s.clicksvc.Convert(c.Request.Context(), clickdomain.ConvertRequest{
		ClickID:       req.ClickID,
		Amount:        req.Amount,
		Revenue:       req.Revenue,
		TransactionID: req.TransactionID,
		Status:        req.Status,
		SourceIP:      c.ClientIP(),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if result.AlreadyConverted {
		c.JSON(http.StatusOK, gin.H{
			"status":       "warning",
			"message":      "Click already converted",
			"click_id":     result.ClickID,
			"converted_at": result.ConvertedAt,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":       "success",
		"message":      "Conversion recorded successfully",
		"click_id":     result.ClickID,
		"offer_id":     result.OfferID,
		"ref_id":       result.RefID,
		"payout":       result.Payout,
		"revenue":      result.Revenue,
		"converted_at": result.ConvertedAt,
	})
}
