package domain

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"
)

// TrackRequest carries everything the tracking pipeline reads from one
// incoming request. The transport layer resolves the client IP before
// building it.
type TrackRequest struct {
	OfferID int64
	Ref     int64
	UTMID   *int64

	UTMSource   string
	UTMMedium   string
	UTMCampaign string
	UTMTerm     string
	UTMContent  string

	SubIDs map[int]string

	Fingerprint    string
	TimezoneOffset *int
	LocalTime      string

	IP        string
	RealIP    string
	UserAgent string
	Referer   string

	// PassThrough is the raw query set minus offer_id and ref; it is
	// replayed onto the redirect URL.
	PassThrough url.Values
}

type TrackResult struct {
	ClickID     string `json:"click_id"`
	RedirectURL string `json:"redirect_url"`
}

type ConvertRequest struct {
	ClickID       string
	Amount        *float64
	Revenue       *float64
	TransactionID string
	Status        string
	SourceIP      string
}

type ConvertResult struct {
	AlreadyConverted bool       `json:"-"`
	ClickID          string     `json:"click_id"`
	OfferID          int64      `json:"offer_id"`
	RefID            int64      `json:"ref_id"`
	Payout           float64    `json:"payout"`
	Revenue          float64    `json:"revenue"`
	ConvertedAt      *time.Time `json:"converted_at"`
}

type Service interface {
	Track(context.Context, TrackRequest) (*TrackResult, error)
	Convert(context.Context, ConvertRequest) (*ConvertResult, error)
}

var (
	ErrReferrerNotFound = errors.New("referrer_not_found")
	ErrClickNotFound    = errors.New("click_not_found")
)

// PolicyRejection is a gate verdict carried up to the transport layer. The
// anti-fraud gates include the click identifier that was minted before the
// rejection so operators can trace it.
type PolicyRejection struct {
	StatusCode int
	Heading    string
	Message    string
	ClickID    string
}

func (e *PolicyRejection) Error() string {
	return fmt.Sprintf("%s: %s", e.Heading, e.Message)
}
