package domain

import (
	"context"
	"time"
)

// ListFilter narrows the click listing. Nil pointers mean "not filtered".
type ListFilter struct {
	OfferID       *int64
	RefID         *int64
	Country       *string
	DeviceType    *string
	Converted     *bool
	VPNDetected   *bool
	ProxyDetected *bool
	MinRiskScore  *int
	StartDate     *time.Time
	EndDate       *time.Time

	SortBy  string
	SortDir string
	Page    int
	PerPage int
}

type ListResult struct {
	Clicks     []Click `json:"data"`
	Total      int64   `json:"total"`
	Page       int     `json:"page"`
	PerPage    int     `json:"per_page"`
	TotalPages int     `json:"total_pages"`
}

type Repository interface {
	Insert(ctx context.Context, click *Click) error
	Update(ctx context.Context, click *Click) error

	FindByID(ctx context.Context, id int64) (*Click, error)
	FindByClickID(ctx context.Context, clickID string) (*Click, error)

	// RecentByIP returns the newest click for offerID from realIP at or
	// after since, or nil.
	RecentByIP(ctx context.Context, offerID int64, realIP string, since time.Time) (*Click, error)

	CountForOffer(ctx context.Context, offerID int64) (int64, error)
	CountForOfferSince(ctx context.Context, offerID int64, since time.Time) (int64, error)
	CountSince(ctx context.Context, since time.Time) (int64, error)

	List(ctx context.Context, filter ListFilter) (*ListResult, error)
}
