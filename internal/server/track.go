package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	clickdomain "github.com/afftrack/clickpipe/internal/click/domain"
	"github.com/afftrack/clickpipe/internal/geo"
)

const maxParamLength = 100

// TrackOffer handles the hot tracking path.
func (s *Server) TrackOffer(c *gin.Context) {
	req, err := s.parseTrackRequest(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	result, err := s.clicksvc.Track(c.Request.Context(), *req)
	if err != nil {
		var rejection *clickdomain.PolicyRejection
		if errors.As(err, &rejection) && rejection.ClickID != "" {
			c.Set("click_id", rejection.ClickID)
		}
		AbortWithError(c, err)
		return
	}

	c.Set("click_id", result.ClickID)
	c.JSON(http.StatusOK, gin.H{
		"status":       "success",
		"heading":      "Success",
		"message":      "Click tracked successfully",
		"click_id":     result.ClickID,
		"redirect_url": result.RedirectURL,
	})
}

func (s *Server) parseTrackRequest(c *gin.Context) (*clickdomain.TrackRequest, error) {
	offerID, err := requiredInt(c, "offer_id")
	if err != nil {
		return nil, err
	}
	ref, err := requiredInt(c, "ref")
	if err != nil {
		return nil, err
	}

	req := clickdomain.TrackRequest{
		OfferID: offerID,
		Ref:     ref,

		UTMSource:   boundedQuery(c, "utm_source"),
		UTMMedium:   boundedQuery(c, "utm_medium"),
		UTMCampaign: boundedQuery(c, "utm_campaign"),
		UTMTerm:     boundedQuery(c, "utm_term"),
		UTMContent:  boundedQuery(c, "utm_content"),

		Fingerprint: c.Query("fingerprint"),
		LocalTime:   c.Query("local_time"),

		IP:        c.ClientIP(),
		RealIP:    geo.ClientIP(c.Request, s.cfg.IsProduction(), s.cfg.FallbackIP),
		UserAgent: c.Request.UserAgent(),
		Referer:   c.Request.Referer(),
	}

	if raw := c.Query("utm_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, newValidationError("utm_id", "must be an integer")
		}
		req.UTMID = &id
	}

	if raw := c.Query("timezone_offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil {
			return nil, newValidationError("timezone_offset", "must be an integer")
		}
		req.TimezoneOffset = &offset
	}

	req.SubIDs = make(map[int]string)
	for position := 1; position <= 10; position++ {
		key := fmt.Sprintf("sub_id%d", position)
		if value := boundedQuery(c, key); value != "" {
			req.SubIDs[position] = value
		}
	}

	passThrough := c.Request.URL.Query()
	passThrough.Del("offer_id")
	passThrough.Del("ref")
	req.PassThrough = passThrough

	return &req, nil
}

func requiredInt(c *gin.Context, key string) (int64, error) {
	raw := c.Query(key)
	if raw == "" {
		return 0, newValidationError(key, "is required")
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, newValidationError(key, "must be an integer")
	}
	return value, nil
}

func boundedQuery(c *gin.Context, key string) string {
	value := c.Query(key)
	if len(value) > maxParamLength {
		return value[:maxParamLength]
	}
	return value
}
