// Package offer exposes the read side of the offer catalog consumed by the
// tracking pipeline. Offers are owned by the management surface; this module
// only reads them.
package offer

import (
	"context"
	"errors"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var ErrNotFound = errors.New("offer_not_found")

// Offer is one tracked destination with its anti-fraud policy and caps.
// DeviceURLs maps a device type to its landing URL; the "default" key is the
// last resort.
type Offer struct {
	ID     int64  `gorm:"primaryKey" json:"id"`
	UserID int64  `json:"user_id"`
	Name   string `json:"name"`

	DeviceURLs datatypes.JSONMap `gorm:"column:device_urls" json:"device_urls"`

	Details string `json:"details"`
	Status  string `gorm:"default:draft" json:"status"`

	AllowMultipleClicks bool `json:"allow_multiple_clicks"`
	ProxyAllowed        bool `gorm:"column:proxy_check" json:"proxy_check"`
	VPNAllowed          bool `gorm:"column:vpn_allowed" json:"vpn_allowed"`
	TorAllowed          bool `json:"tor_allowed"`
	MaxRiskScore        int  `gorm:"default:50" json:"max_risk_score"`

	ExpiresAt *time.Time `json:"expires_at"`
	DailyCap  *int64     `json:"daily_cap"`
	TotalCap  *int64     `json:"total_cap"`

	Payout  *float64 `json:"payout"`
	Revenue *float64 `json:"revenue"`

	// Display metadata served on the offer preview endpoint.
	ImageURL  string `json:"image_url"`
	PageURL   string `json:"page_url"`
	Keywords  string `json:"keywords"`
	Author    string `json:"author"`
	Publisher string `json:"publisher"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Offer) TableName() string { return "offers" }

// Expired reports whether the offer's end date has passed. Offers without an
// end date never expire.
func (o *Offer) Expired(now time.Time) bool {
	return o.ExpiresAt != nil && now.After(*o.ExpiresAt)
}

// URLFor picks the landing URL for a device type. An exact match wins, then
// the class fallback (mobile for handheld types, desktop otherwise), then
// "default".
func (o *Offer) URLFor(deviceType string) string {
	if url := o.urlKey(deviceType); url != "" {
		return url
	}
	fallback := "desktop"
	if deviceType == "mobile" || deviceType == "tablet" {
		fallback = "mobile"
	}
	if url := o.urlKey(fallback); url != "" {
		return url
	}
	return o.urlKey("default")
}

func (o *Offer) urlKey(key string) string {
	raw, ok := o.DeviceURLs[key]
	if !ok {
		return ""
	}
	url, _ := raw.(string)
	return url
}

type Repository interface {
	FindByID(ctx context.Context, id int64) (*Offer, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) FindByID(ctx context.Context, id int64) (*Offer, error) {
	var o Offer
	if err := r.db.WithContext(ctx).First(&o, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &o, nil
}
