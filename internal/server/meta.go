package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetMetaData serves the offer display metadata used for link previews.
func (s *Server) GetMetaData(c *gin.Context) {
	offerID, err := requiredInt(c, "offer_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	off, err := s.offers.FindByID(c.Request.Context(), offerID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": "Meta data retrieved successfully",
		"meta_data": gin.H{
			"title":       off.Name,
			"description": off.Details,
			"image":       off.ImageURL,
			"url":         off.PageURL,
			"keywords":    off.Keywords,
			"author":      off.Author,
			"publisher":   off.Publisher,
		},
	})
}
