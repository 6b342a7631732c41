package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	clickdomain "github.com/afftrack/clickpipe/internal/click/domain"
	"github.com/afftrack/clickpipe/internal/offer"
)

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v *ValidationErrors) Error() string {
	return "validation error"
}

func newValidationError(field, message string) error {
	return &ValidationErrors{Errors: []ValidationError{{Field: field, Message: message}}}
}

// responseBody is the flat envelope every tracking endpoint speaks.
type responseBody struct {
	Status  string            `json:"status"`
	Heading string            `json:"heading,omitempty"`
	Message string            `json:"message"`
	ClickID string            `json:"click_id,omitempty"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

func ErrorHandlingMiddleware(production bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, body := mapError(lastErr.Err, production)
		c.AbortWithStatusJSON(status, body)
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func mapError(err error, production bool) (int, responseBody) {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) {
		return http.StatusUnprocessableEntity, responseBody{
			Status:  "error",
			Heading: "Error",
			Message: "Validation failed",
			Errors:  vErr.Errors,
		}
	}

	var rejection *clickdomain.PolicyRejection
	if errors.As(err, &rejection) {
		status := "error"
		switch rejection.StatusCode {
		case http.StatusConflict:
			status = "duplicate"
		case http.StatusForbidden:
			status = "rejected"
		}
		return rejection.StatusCode, responseBody{
			Status:  status,
			Heading: rejection.Heading,
			Message: rejection.Message,
			ClickID: rejection.ClickID,
		}
	}

	switch {
	case errors.Is(err, offer.ErrNotFound):
		return http.StatusUnprocessableEntity, responseBody{
			Status:  "error",
			Heading: "Error",
			Message: "Validation failed",
			Errors:  []ValidationError{{Field: "offer_id", Message: "offer does not exist"}},
		}
	case errors.Is(err, clickdomain.ErrReferrerNotFound):
		return http.StatusUnprocessableEntity, responseBody{
			Status:  "error",
			Heading: "Error",
			Message: "Validation failed",
			Errors:  []ValidationError{{Field: "ref", Message: "referrer does not exist"}},
		}
	case errors.Is(err, clickdomain.ErrClickNotFound):
		return http.StatusNotFound, responseBody{
			Status:  "error",
			Message: "Click not found",
		}
	default:
		// The detailed message leaks internals; production gets the
		// generic one.
		message := "Server error"
		if !production {
			message = err.Error()
		}
		return http.StatusInternalServerError, responseBody{
			Status:  "error",
			Heading: "Error",
			Message: message,
		}
	}
}
