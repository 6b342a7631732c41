package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	clickdomain "github.com/afftrack/clickpipe/internal/click/domain"
)

// ListClicks serves the filtered click listing for reporting surfaces.
func (s *Server) ListClicks(c *gin.Context) {
	filter, err := parseListFilter(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	result, err := s.clickrepo.List(c.Request.Context(), *filter)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data":   result,
	})
}

// GetClick serves one click by its public identifier.
func (s *Server) GetClick(c *gin.Context) {
	click, err := s.clickrepo.FindByClickID(c.Request.Context(), c.Param("click_id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data":   click,
	})
}

func parseListFilter(c *gin.Context) (*clickdomain.ListFilter, error) {
	filter := clickdomain.ListFilter{
		SortBy:  c.DefaultQuery("sort_by", "created_at"),
		SortDir: c.DefaultQuery("sort_dir", "desc"),
	}

	var err error
	if filter.OfferID, err = optionalInt64(c, "offer_id"); err != nil {
		return nil, err
	}
	if filter.RefID, err = optionalInt64(c, "ref_id"); err != nil {
		return nil, err
	}
	if raw := c.Query("country"); raw != "" {
		filter.Country = &raw
	}
	if raw := c.Query("device_type"); raw != "" {
		filter.DeviceType = &raw
	}
	if filter.Converted, err = optionalBool(c, "converted"); err != nil {
		return nil, err
	}
	if filter.VPNDetected, err = optionalBool(c, "vpn_detected"); err != nil {
		return nil, err
	}
	if filter.ProxyDetected, err = optionalBool(c, "proxy_detected"); err != nil {
		return nil, err
	}
	if raw := c.Query("min_risk_score"); raw != "" {
		score, err := strconv.Atoi(raw)
		if err != nil {
			return nil, newValidationError("min_risk_score", "must be an integer")
		}
		filter.MinRiskScore = &score
	}
	if filter.StartDate, err = optionalTime(c, "start_date"); err != nil {
		return nil, err
	}
	if filter.EndDate, err = optionalTime(c, "end_date"); err != nil {
		return nil, err
	}

	filter.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	filter.PerPage, _ = strconv.Atoi(c.DefaultQuery("per_page", "15"))

	return &filter, nil
}

func optionalInt64(c *gin.Context, key string) (*int64, error) {
	raw := c.Query(key)
	if raw == "" {
		return nil, nil
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, newValidationError(key, "must be an integer")
	}
	return &value, nil
}

func optionalBool(c *gin.Context, key string) (*bool, error) {
	raw := c.Query(key)
	if raw == "" {
		return nil, nil
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, newValidationError(key, "must be a boolean")
	}
	return &value, nil
}

func optionalTime(c *gin.Context, key string) (*time.Time, error) {
	raw := c.Query(key)
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if value, err := time.Parse(layout, raw); err == nil {
			return &value, nil
		}
	}
	return nil, newValidationError(key, "must be a date")
}
