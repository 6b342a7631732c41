// Package stats computes reporting rollups over recorded clicks.
package stats

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	clickdomain "github.com/afftrack/clickpipe/internal/click/domain"
	"github.com/afftrack/clickpipe/internal/offer"
)

type Summary struct {
	TotalClicks      int64   `json:"total_clicks"`
	TotalConversions int64   `json:"total_conversions"`
	ConversionRate   float64 `json:"conversion_rate"`
	TotalPayout      float64 `json:"total_payout"`
	TotalRevenue     float64 `json:"total_revenue"`
	Profit           float64 `json:"profit"`
	ROI              float64 `json:"roi"`
}

// Breakdown is one clicks/conversions pair grouped by a dimension value.
type Breakdown struct {
	Key         string `json:"key"`
	Clicks      int64  `json:"clicks"`
	Conversions int64  `json:"conversions"`
}

type DailyStat struct {
	Date        string  `json:"date"`
	Clicks      int64   `json:"clicks"`
	Conversions int64   `json:"conversions"`
	Revenue     float64 `json:"revenue"`
	Payout      float64 `json:"payout"`
	Profit      float64 `json:"profit"`
}

type OfferInfo struct {
	ID        int64      `json:"id"`
	Name      string     `json:"name"`
	Status    string     `json:"status"`
	ExpiresAt *time.Time `json:"expires_at"`
	DailyCap  *int64     `json:"daily_cap"`
	TotalCap  *int64     `json:"total_cap"`
}

type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

type OfferStats struct {
	Offer      OfferInfo   `json:"offer"`
	DateRange  DateRange   `json:"date_range"`
	Summary    Summary     `json:"summary"`
	ByCountry  []Breakdown `json:"by_country"`
	ByDevice   []Breakdown `json:"by_device"`
	ByReferrer []Breakdown `json:"by_referrer"`
	Daily      []DailyStat `json:"daily_stats"`
}

type Service struct {
	db     *gorm.DB
	log    *zap.Logger
	offers offer.Repository
}

func NewService(db *gorm.DB, log *zap.Logger, offers offer.Repository) *Service {
	return &Service{
		db:     db,
		log:    log.Named("stats.service"),
		offers: offers,
	}
}

// OfferStats aggregates one offer's clicks over [start, end].
func (s *Service) OfferStats(ctx context.Context, offerID int64, start, end time.Time) (*OfferStats, error) {
	off, err := s.offers.FindByID(ctx, offerID)
	if err != nil {
		return nil, err
	}

	summary, err := s.summary(ctx, offerID, start, end)
	if err != nil {
		return nil, err
	}

	byCountry, err := s.breakdown(ctx, offerID, start, end, "country")
	if err != nil {
		return nil, err
	}
	byDevice, err := s.breakdown(ctx, offerID, start, end, "device_type")
	if err != nil {
		return nil, err
	}
	byReferrer, err := s.breakdown(ctx, offerID, start, end, "ref_id")
	if err != nil {
		return nil, err
	}

	daily, err := s.daily(ctx, offerID, start, end)
	if err != nil {
		return nil, err
	}

	return &OfferStats{
		Offer: OfferInfo{
			ID:        off.ID,
			Name:      off.Name,
			Status:    off.Status,
			ExpiresAt: off.ExpiresAt,
			DailyCap:  off.DailyCap,
			TotalCap:  off.TotalCap,
		},
		DateRange:  DateRange{Start: start, End: end},
		Summary:    summary,
		ByCountry:  byCountry,
		ByDevice:   byDevice,
		ByReferrer: byReferrer,
		Daily:      daily,
	}, nil
}

func (s *Service) summary(ctx context.Context, offerID int64, start, end time.Time) (Summary, error) {
	var row struct {
		TotalClicks      int64
		TotalConversions int64
		TotalPayout      float64
		TotalRevenue     float64
	}
	err := s.db.WithContext(ctx).Model(&clickdomain.Click{}).
		Select(`COUNT(*) AS total_clicks,
			COALESCE(SUM(CASE WHEN converted THEN 1 ELSE 0 END), 0) AS total_conversions,
			COALESCE(SUM(CASE WHEN converted THEN payout ELSE 0 END), 0) AS total_payout,
			COALESCE(SUM(CASE WHEN converted THEN revenue ELSE 0 END), 0) AS total_revenue`).
		Where("offer_id = ? AND created_at BETWEEN ? AND ?", offerID, start, end).
		Scan(&row).Error
	if err != nil {
		return Summary{}, err
	}

	summary := Summary{
		TotalClicks:      row.TotalClicks,
		TotalConversions: row.TotalConversions,
		TotalPayout:      row.TotalPayout,
		TotalRevenue:     row.TotalRevenue,
		Profit:           row.TotalRevenue - row.TotalPayout,
	}
	if summary.TotalClicks > 0 {
		summary.ConversionRate = round2(float64(summary.TotalConversions) / float64(summary.TotalClicks) * 100)
	}
	if summary.TotalPayout > 0 {
		summary.ROI = round2(summary.Profit / summary.TotalPayout * 100)
	}
	return summary, nil
}

func (s *Service) breakdown(ctx context.Context, offerID int64, start, end time.Time, column string) ([]Breakdown, error) {
	rows := make([]Breakdown, 0)
	err := s.db.WithContext(ctx).Model(&clickdomain.Click{}).
		Select(column+` AS key,
			COUNT(*) AS clicks,
			COALESCE(SUM(CASE WHEN converted THEN 1 ELSE 0 END), 0) AS conversions`).
		Where("offer_id = ? AND created_at BETWEEN ? AND ?", offerID, start, end).
		Group(column).
		Order("clicks DESC").
		Scan(&rows).Error
	return rows, err
}

func (s *Service) daily(ctx context.Context, offerID int64, start, end time.Time) ([]DailyStat, error) {
	var rows []DailyStat
	err := s.db.WithContext(ctx).Model(&clickdomain.Click{}).
		Select(`DATE(created_at) AS date,
			COUNT(*) AS clicks,
			COALESCE(SUM(CASE WHEN converted THEN 1 ELSE 0 END), 0) AS conversions,
			COALESCE(SUM(CASE WHEN converted THEN revenue ELSE 0 END), 0) AS revenue,
			COALESCE(SUM(CASE WHEN converted THEN payout ELSE 0 END), 0) AS payout`).
		Where("offer_id = ? AND created_at BETWEEN ? AND ?", offerID, start, end).
		Group("DATE(created_at)").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	byDate := make(map[string]DailyStat, len(rows))
	for _, row := range rows {
		byDate[row.Date] = row
	}

	// Emit every day in the range so charts have a continuous series.
	series := make([]DailyStat, 0)
	for day := startOfDay(start); !day.After(end); day = day.AddDate(0, 0, 1) {
		date := day.Format("2006-01-02")
		stat, ok := byDate[date]
		if !ok {
			stat = DailyStat{Date: date}
		}
		stat.Profit = stat.Revenue - stat.Payout
		series = append(series, stat)
	}
	return series, nil
}

func startOfDay(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, t.Location())
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
