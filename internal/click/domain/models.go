package domain

import (
	"time"

	"gorm.io/datatypes"
)

const (
	StatusPending   = "pending"
	StatusConverted = "converted"
)

// Click is one recorded tracking event. ClickID is the public identifier
// handed to networks; ID is the internal row key.
type Click struct {
	ID      int64  `gorm:"primaryKey" json:"id"`
	ClickID string `gorm:"uniqueIndex;size:32" json:"click_id"`
	OfferID int64  `gorm:"index:idx_clicks_offer_created,priority:1" json:"offer_id"`
	RefID   int64  `gorm:"index" json:"ref_id"`

	IP        string `gorm:"size:45" json:"ip"`
	RealIP    string `gorm:"size:45" json:"real_ip"`
	UserAgent string `json:"user_agent"`

	DeviceType string `gorm:"size:20" json:"device_type"`
	Browser    string `gorm:"size:50" json:"browser"`
	Platform   string `gorm:"size:50" json:"platform"`

	Country string `gorm:"size:2;index" json:"country"`
	City    string `gorm:"size:100" json:"city"`
	Region  string `gorm:"size:100" json:"region"`

	UTMSource   string `gorm:"size:100" json:"utm_source"`
	UTMMedium   string `gorm:"size:100" json:"utm_medium"`
	UTMCampaign string `gorm:"size:100" json:"utm_campaign"`
	UTMTerm     string `gorm:"size:100" json:"utm_term"`
	UTMContent  string `gorm:"size:100" json:"utm_content"`

	SubID1  string `gorm:"size:100" json:"sub_id1"`
	SubID2  string `gorm:"size:100" json:"sub_id2"`
	SubID3  string `gorm:"size:100" json:"sub_id3"`
	SubID4  string `gorm:"size:100" json:"sub_id4"`
	SubID5  string `gorm:"size:100" json:"sub_id5"`
	SubID6  string `gorm:"size:100" json:"sub_id6"`
	SubID7  string `gorm:"size:100" json:"sub_id7"`
	SubID8  string `gorm:"size:100" json:"sub_id8"`
	SubID9  string `gorm:"size:100" json:"sub_id9"`
	SubID10 string `gorm:"size:100" json:"sub_id10"`

	VPNDetected   bool `json:"vpn_detected"`
	ProxyDetected bool `json:"proxy_detected"`
	TorDetected   bool `json:"tor_detected"`
	IPRiskScore   int  `json:"ip_risk_score"`
	FraudScore    int  `json:"fraud_score"`

	Converted   bool       `gorm:"index" json:"converted"`
	ConvertedAt *time.Time `json:"converted_at"`
	Payout      *float64   `json:"payout"`
	Revenue     *float64   `json:"revenue"`

	Metadata datatypes.JSONMap `json:"metadata"`
	Status   string            `gorm:"size:20;default:pending;index" json:"status"`

	CreatedAt time.Time `gorm:"index:idx_clicks_offer_created,priority:2" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Click) TableName() string { return "clicks" }

// SetSubID assigns the positional sub ID column, 1 through 10.
func (c *Click) SetSubID(position int, value string) {
	switch position {
	case 1:
		c.SubID1 = value
	case 2:
		c.SubID2 = value
	case 3:
		c.SubID3 = value
	case 4:
		c.SubID4 = value
	case 5:
		c.SubID5 = value
	case 6:
		c.SubID6 = value
	case 7:
		c.SubID7 = value
	case 8:
		c.SubID8 = value
	case 9:
		c.SubID9 = value
	case 10:
		c.SubID10 = value
	}
}

// SubID reads the positional sub ID column, 1 through 10.
func (c *Click) SubID(position int) string {
	switch position {
	case 1:
		return c.SubID1
	case 2:
		return c.SubID2
	case 3:
		return c.SubID3
	case 4:
		return c.SubID4
	case 5:
		return c.SubID5
	case 6:
		return c.SubID6
	case 7:
		return c.SubID7
	case 8:
		return c.SubID8
	case 9:
		return c.SubID9
	case 10:
		return c.SubID10
	}
	return ""
}
